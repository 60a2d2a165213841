package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/inspection-verifier/constants"
	"github.com/joseph-ayodele/inspection-verifier/internal/analysis"
	"github.com/joseph-ayodele/inspection-verifier/internal/common"
)

// Processor analyzes a single file.
type Processor interface {
	Analyze(ctx context.Context, f File) (*analysis.Result, error)
}

// DocumentSaver persists one successful file result and returns its id.
type DocumentSaver interface {
	Save(ctx context.Context, job Job, res FileResult) (int64, error)
}

// SnapshotPublisher receives every job snapshot the queue publishes.
type SnapshotPublisher interface {
	PublishJob(ctx context.Context, job Job) error
}

// JobQueue runs submitted jobs one at a time on a single worker. Files of a
// job are processed in order, so results and progress are deterministic.
type JobQueue struct {
	proc        Processor
	saver       DocumentSaver
	publisher   SnapshotPublisher
	listener    func(Event)
	logger      *slog.Logger
	fileTimeout time.Duration
	maxFiles    int
	now         func() time.Time
	newID       func() string

	// pubMu orders every snapshot publication and listener call. Taken before mu.
	pubMu sync.Mutex

	mu         sync.RWMutex
	jobs       map[string]*Job // published snapshots
	fifo       []string
	processing bool
	totalJobs  int
	closed     bool

	wake chan struct{}
	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

type Option func(*JobQueue)

func WithFileTimeout(d time.Duration) Option {
	return func(q *JobQueue) {
		if d > 0 {
			q.fileTimeout = d
		}
	}
}

func WithMaxFiles(n int) Option {
	return func(q *JobQueue) {
		if n > 0 {
			q.maxFiles = n
		}
	}
}

func WithPublisher(p SnapshotPublisher) Option {
	return func(q *JobQueue) { q.publisher = p }
}

// WithListener registers a callback for lifecycle events. Calls are
// serialized in publication order; the callback must not block or call Submit.
func WithListener(fn func(Event)) Option {
	return func(q *JobQueue) { q.listener = fn }
}

func WithClock(now func() time.Time) Option {
	return func(q *JobQueue) {
		if now != nil {
			q.now = now
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(q *JobQueue) {
		if fn != nil {
			q.newID = fn
		}
	}
}

// NewJobQueue builds the queue and starts its worker. saver may be nil.
func NewJobQueue(proc Processor, saver DocumentSaver, logger *slog.Logger, opts ...Option) *JobQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &JobQueue{
		proc:        proc,
		saver:       saver,
		logger:      logger,
		fileTimeout: 3 * time.Minute,
		now:         time.Now,
		jobs:        make(map[string]*Job),
		wake:        make(chan struct{}, 1),
		stop:        make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	if q.newID == nil {
		q.newID = func() string { return NewJobID(q.now()) }
	}
	q.start()
	return q
}

func (q *JobQueue) start() {
	q.once.Do(func() {
		q.wg.Add(1)
		go q.run()
	})
}

// Submit registers a job for files and returns its id without waiting.
func (q *JobQueue) Submit(ctx context.Context, files []File, userID string) (string, error) {
	if len(files) == 0 {
		return "", common.NewAppError("INVALID_INPUT", "no se proporcionaron archivos", common.ErrInvalidInput)
	}
	if q.maxFiles > 0 && len(files) > q.maxFiles {
		return "", common.NewAppError("INVALID_INPUT",
			fmt.Sprintf("máximo %d archivos por trabajo", q.maxFiles), common.ErrInvalidInput)
	}

	q.pubMu.Lock()
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.pubMu.Unlock()
		q.logger.Warn("cannot submit: queue is shutting down", "files", len(files))
		return "", common.ErrQueueClosed
	}
	job := &Job{
		ID:        q.newID(),
		UserID:    userID,
		Files:     append([]File(nil), files...),
		Status:    constants.JobStatusPending,
		CreatedAt: q.now(),
		Results:   []FileResult{},
	}
	q.jobs[job.ID] = job
	q.fifo = append(q.fifo, job.ID)
	q.totalJobs++
	snap := job.Clone()
	q.mu.Unlock()

	// the worker may already see the job, but it cannot publish until pending is out
	q.safeExport(ctx, snap)
	q.safeEmit(eventFor(EventJobAdded, &snap))
	q.pubMu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	q.logger.Info("job queued", "job_id", job.ID, "files", len(files), "user_id", userID)
	return job.ID, nil
}

// Status returns a copy of the latest published snapshot of a job.
func (q *JobQueue) Status(id string) (Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	j, ok := q.jobs[id]
	if !ok {
		return Job{}, false
	}
	return j.Clone(), true
}

func (q *JobQueue) Snapshot() QueueSnapshot {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return QueueSnapshot{
		QueueLength:   len(q.fifo),
		IsProcessing:  q.processing,
		TotalJobsSeen: q.totalJobs,
	}
}

// Shutdown stops accepting jobs and waits for the in-flight job to finish.
// Jobs still waiting in the queue stay pending.
func (q *JobQueue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.stop)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
		return ctx.Err()
	case <-done:
		q.logger.Info("job queue stopped")
		return nil
	}
}

func (q *JobQueue) run() {
	defer q.wg.Done()
	q.logger.Info("worker started")
	defer q.logger.Info("worker stopped")

	for {
		select {
		case <-q.stop:
			return
		default:
		}

		id, ok := q.dequeue()
		if !ok {
			select {
			case <-q.wake:
			case <-q.stop:
				return
			}
			continue
		}
		q.process(id)
	}
}

func (q *JobQueue) dequeue() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.fifo) == 0 {
		return "", false
	}
	id := q.fifo[0]
	q.fifo = q.fifo[1:]
	q.processing = true
	return id, true
}

// process owns a private working copy of the job and publishes clones of it.
func (q *JobQueue) process(id string) {
	q.mu.RLock()
	work := q.jobs[id].Clone()
	q.mu.RUnlock()

	ctx := common.WithJobID(context.Background(), id)
	logger := common.LoggerWith(ctx, q.logger)

	defer func() {
		q.mu.Lock()
		q.processing = false
		q.mu.Unlock()
	}()
	defer func() {
		if r := recover(); r != nil {
			done := q.now()
			work.Status = constants.JobStatusFailed
			work.Error = fmt.Sprintf("%v: %v", common.ErrJobFailure, r)
			work.CompletedAt = &done
			logger.Error("job failed", "error", work.Error)
			q.pubMu.Lock()
			defer q.pubMu.Unlock()
			snap := q.store(&work)
			q.safeExport(ctx, snap)
			q.safeEmit(eventFor(EventJobFailed, &snap))
		}
	}()

	started := q.now()
	work.Status = constants.JobStatusProcessing
	work.StartedAt = &started
	q.publish(ctx, &work, EventJobStarted)
	logger.Info("job started", "files", len(work.Files))

	total := len(work.Files)
	for i, f := range work.Files {
		res := q.processFile(ctx, logger, &work, f)
		work.Results = append(work.Results, res)
		work.ProcessedFiles = i + 1
		work.Progress = progressFor(i+1, total)
		q.publish(ctx, &work, EventJobProgress)
	}

	completed := q.now()
	work.Status = constants.JobStatusCompleted
	work.Progress = 100
	work.CompletedAt = &completed
	q.publish(ctx, &work, EventJobCompleted)
	logger.Info("job completed",
		"files", total,
		"duration_ms", completed.Sub(started).Milliseconds(),
	)
}

// processFile never fails the job: every problem ends up in the FileResult.
func (q *JobQueue) processFile(ctx context.Context, logger *slog.Logger, job *Job, f File) FileResult {
	res := FileResult{File: f.Info()}
	logger = logger.With("file", f.OriginalName)

	fctx, cancel := context.WithTimeout(ctx, q.fileTimeout)
	defer cancel()

	start := q.now()
	out, err := q.analyze(fctx, f)
	res.ProcessedAt = q.now()
	if err != nil {
		logger.Error("file analysis failed", "error", err)
		res.Error = err.Error()
		return res
	}
	res.Analysis = out
	logger.Info("file analyzed",
		"status", out.Status,
		"confidence", out.Confidence,
		"duration_ms", res.ProcessedAt.Sub(start).Milliseconds(),
	)

	if q.saver == nil {
		return res
	}
	id, err := q.save(fctx, job.Clone(), res)
	if err != nil {
		logger.Error("persist failed", "error", fmt.Errorf("%w: %w", common.ErrPersistenceFailure, err))
		return res
	}
	res.DocumentID = id
	return res
}

func (q *JobQueue) analyze(ctx context.Context, f File) (res *analysis.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("panic analyzing %s: %v", f.OriginalName, r)
		}
	}()
	res, err = q.proc.Analyze(ctx, f)
	if err == nil && res == nil {
		err = errors.New("processor returned no result")
	}
	return res, err
}

func (q *JobQueue) save(ctx context.Context, job Job, res FileResult) (id int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic saving %s: %v", res.File.OriginalName, r)
		}
	}()
	return q.saver.Save(ctx, job, res)
}

// store replaces the published snapshot of work under the write lock.
func (q *JobQueue) store(work *Job) Job {
	snap := work.Clone()
	q.mu.Lock()
	stored := snap.Clone()
	q.jobs[work.ID] = &stored
	q.mu.Unlock()
	return snap
}

// publish stores and exports a snapshot of work. A panicking publisher
// escapes to the job-level recover; listener panics are contained.
func (q *JobQueue) publish(ctx context.Context, work *Job, ev EventType) {
	q.pubMu.Lock()
	defer q.pubMu.Unlock()
	snap := q.store(work)
	q.export(ctx, snap)
	q.safeEmit(eventFor(ev, &snap))
}

func (q *JobQueue) export(ctx context.Context, snap Job) {
	if q.publisher == nil {
		return
	}
	if err := q.publisher.PublishJob(ctx, snap); err != nil {
		q.logger.Warn("publish job snapshot failed", "job_id", snap.ID, "error", err)
	}
}

func (q *JobQueue) safeExport(ctx context.Context, snap Job) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("snapshot publisher panicked", "job_id", snap.ID, "panic", r)
		}
	}()
	q.export(ctx, snap)
}

func (q *JobQueue) safeEmit(ev Event) {
	if q.listener == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("event listener panicked", "job_id", ev.JobID, "event", ev.Type, "panic", r)
		}
	}()
	q.listener(ev)
}
