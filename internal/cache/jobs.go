package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/inspection-verifier/internal/async"
	"github.com/joseph-ayodele/inspection-verifier/internal/common"
)

const DefaultJobTTL = 24 * time.Hour

// JobPublisher mirrors queue snapshots into a Client.
type JobPublisher struct {
	client Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ async.SnapshotPublisher = (*JobPublisher)(nil)

func NewJobPublisher(client Client, ttl time.Duration, logger *slog.Logger) *JobPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultJobTTL
	}
	return &JobPublisher{client: client, ttl: ttl, logger: logger}
}

func jobKey(id string) string { return Key("job", id) }

func (p *JobPublisher) PublishJob(ctx context.Context, job async.Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}
	if err := p.client.Set(ctx, jobKey(job.ID), raw, p.ttl); err != nil {
		p.logger.Warn("failed to cache job snapshot", "job_id", job.ID, "error", err)
		return err
	}
	return nil
}

// GetJob returns the last published snapshot, or ErrJobNotFound.
func (p *JobPublisher) GetJob(ctx context.Context, id string) (async.Job, error) {
	raw, err := p.client.Get(ctx, jobKey(id))
	if errors.Is(err, ErrCacheMiss) {
		return async.Job{}, fmt.Errorf("%w: %s", common.ErrJobNotFound, id)
	}
	if err != nil {
		return async.Job{}, err
	}
	var job async.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return async.Job{}, fmt.Errorf("decode cached job %s: %w", id, err)
	}
	return job, nil
}
