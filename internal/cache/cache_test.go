package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/inspection-verifier/constants"
	"github.com/joseph-ayodele/inspection-verifier/internal/analysis"
	"github.com/joseph-ayodele/inspection-verifier/internal/async"
	"github.com/joseph-ayodele/inspection-verifier/internal/common"
)

func TestMemoryClient_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	c := NewMemoryClient()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))

	v, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", string(v))

	now = now.Add(2 * time.Minute)
	_, err = c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)

	v, err = c.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "2", string(v))

	require.NoError(t, c.Delete(ctx, "b"))
	_, err = c.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "job:abc", Key("job", "abc"))
}

type failingClient struct{ *MemoryClient }

func (failingClient) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("redis down")
}

func TestJobPublisher_RoundTrip(t *testing.T) {
	ctx := context.Background()
	client := NewMemoryClient()
	p := NewJobPublisher(client, 0, nil)
	assert.Equal(t, DefaultJobTTL, p.ttl)

	done := time.Date(2024, 3, 15, 10, 0, 5, 0, time.UTC)
	job := async.Job{
		ID:             "k3j9x2m1q",
		Status:         constants.JobStatusCompleted,
		Files:          []async.File{{OriginalName: "cert.pdf", StoredName: "1-cert.pdf", Path: "/u/1-cert.pdf", Size: 10, MimeType: "application/pdf"}},
		CompletedAt:    &done,
		ProcessedFiles: 1,
		Progress:       100,
		Results: []async.FileResult{{
			File:     async.FileInfo{OriginalName: "cert.pdf", StoredName: "1-cert.pdf", Size: 10, MimeType: "application/pdf"},
			Analysis: &analysis.Result{Type: constants.PDF, Status: constants.StatusValid, Confidence: 90, Issues: []string{}, Summary: "ok"},
		}},
	}
	require.NoError(t, p.PublishJob(ctx, job))

	raw, err := client.Get(ctx, "job:k3j9x2m1q")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"progress":100`)

	got, err := p.GetJob(ctx, "k3j9x2m1q")
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, constants.JobStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	require.Len(t, got.Results, 1)
	require.NotNil(t, got.Results[0].Analysis)
	assert.Equal(t, 90, got.Results[0].Analysis.Confidence)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, done.Equal(*got.CompletedAt))
}

func TestJobPublisher_Missing(t *testing.T) {
	p := NewJobPublisher(NewMemoryClient(), time.Hour, nil)
	_, err := p.GetJob(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrJobNotFound)
}

func TestJobPublisher_SetFailure(t *testing.T) {
	p := NewJobPublisher(failingClient{NewMemoryClient()}, time.Hour, nil)
	err := p.PublishJob(context.Background(), async.Job{ID: "x"})
	assert.EqualError(t, err, "redis down")
}
