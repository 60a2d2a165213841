package async

import (
	"context"
	"errors"
	"math/rand"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/inspection-verifier/constants"
	"github.com/joseph-ayodele/inspection-verifier/internal/analysis"
	"github.com/joseph-ayodele/inspection-verifier/internal/common"
)

type fakeProcessor struct {
	delay map[string]time.Duration
	fail  map[string]error
	panic map[string]bool
	gate  chan struct{}
}

func (p *fakeProcessor) Analyze(ctx context.Context, f File) (*analysis.Result, error) {
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d := p.delay[f.OriginalName]; d > 0 {
		time.Sleep(d)
	}
	if p.panic[f.OriginalName] {
		panic("decoder exploded")
	}
	if err := p.fail[f.OriginalName]; err != nil {
		return nil, err
	}
	return &analysis.Result{
		Type:       constants.PDF,
		Status:     constants.StatusValid,
		Confidence: 90,
		Summary:    "ok " + f.OriginalName,
	}, nil
}

type fakeSaver struct {
	mu    sync.Mutex
	next  int64
	err   error
	saved []string
}

func (s *fakeSaver) Save(_ context.Context, job Job, res FileResult) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.next++
	s.saved = append(s.saved, job.ID+"/"+res.File.OriginalName)
	return s.next, nil
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) listen(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func files(names ...string) []File {
	out := make([]File, 0, len(names))
	for _, n := range names {
		out = append(out, File{OriginalName: n, StoredName: "1-" + n, Path: "/tmp/" + n, Size: 10, MimeType: constants.MimePDF})
	}
	return out
}

func waitTerminal(t *testing.T, q *JobQueue, id string) Job {
	t.Helper()
	var job Job
	require.Eventually(t, func() bool {
		j, ok := q.Status(id)
		job = j
		return ok && j.Status.Terminal()
	}, 5*time.Second, 5*time.Millisecond)
	return job
}

func newQueue(t *testing.T, proc Processor, saver DocumentSaver, opts ...Option) *JobQueue {
	t.Helper()
	q := NewJobQueue(proc, saver, nil, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = q.Shutdown(ctx)
	})
	return q
}

func TestResultsFollowInputOrder(t *testing.T) {
	proc := &fakeProcessor{delay: map[string]time.Duration{
		"a.pdf": 30 * time.Millisecond,
		"b.pdf": time.Millisecond,
		"c.pdf": 10 * time.Millisecond,
	}}
	q := newQueue(t, proc, nil)

	id, err := q.Submit(context.Background(), files("a.pdf", "b.pdf", "c.pdf"), "")
	require.NoError(t, err)

	job := waitTerminal(t, q, id)
	assert.Equal(t, constants.JobStatusCompleted, job.Status)
	require.Len(t, job.Results, 3)
	for i, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		assert.Equal(t, name, job.Results[i].File.OriginalName)
	}
	assert.Equal(t, 3, job.ProcessedFiles)
	assert.Equal(t, 100, job.Progress)
	assert.NotNil(t, job.StartedAt)
	assert.NotNil(t, job.CompletedAt)
}

func TestPartialFailureStillCompletes(t *testing.T) {
	proc := &fakeProcessor{fail: map[string]error{"b.pdf": common.ErrExtractionFailure}}
	saver := &fakeSaver{}
	q := newQueue(t, proc, saver)

	id, err := q.Submit(context.Background(), files("a.pdf", "b.pdf"), "user-1")
	require.NoError(t, err)

	job := waitTerminal(t, q, id)
	assert.Equal(t, constants.JobStatusCompleted, job.Status)
	assert.Empty(t, job.Error)
	require.Len(t, job.Results, 2)

	assert.NotNil(t, job.Results[0].Analysis)
	assert.Empty(t, job.Results[0].Error)
	assert.Equal(t, int64(1), job.Results[0].DocumentID)

	assert.Nil(t, job.Results[1].Analysis)
	assert.Contains(t, job.Results[1].Error, "text extraction failed")
	assert.True(t, job.Results[1].Failed())
	assert.Equal(t, []string{id + "/a.pdf"}, saver.saved)
}

func TestProgressIsMonotoneAndEndsAt100(t *testing.T) {
	rec := &recorder{}
	q := newQueue(t, &fakeProcessor{}, nil, WithListener(rec.listen))

	id, err := q.Submit(context.Background(), files("1.pdf", "2.pdf", "3.pdf", "4.pdf"), "")
	require.NoError(t, err)
	waitTerminal(t, q, id)

	require.Eventually(t, func() bool {
		evs := rec.snapshot()
		return len(evs) > 0 && evs[len(evs)-1].Type == EventJobCompleted
	}, time.Second, 5*time.Millisecond)

	var types []EventType
	var progress []int
	for _, ev := range rec.snapshot() {
		types = append(types, ev.Type)
		progress = append(progress, ev.Progress)
	}
	assert.Equal(t, []EventType{
		EventJobAdded, EventJobStarted,
		EventJobProgress, EventJobProgress, EventJobProgress, EventJobProgress,
		EventJobCompleted,
	}, types)
	assert.Equal(t, []int{0, 0, 25, 50, 75, 99, 100}, progress)
	assert.IsNonDecreasing(t, progress)
}

func TestProgressFor(t *testing.T) {
	assert.Equal(t, 0, progressFor(0, 0))
	assert.Equal(t, 33, progressFor(1, 3))
	assert.Equal(t, 66, progressFor(2, 3))
	assert.Equal(t, 99, progressFor(3, 3))
	assert.Equal(t, 99, progressFor(1, 1))
}

func TestSnapshotWhileProcessing(t *testing.T) {
	proc := &fakeProcessor{gate: make(chan struct{})}
	q := newQueue(t, proc, nil)

	_, err := q.Submit(context.Background(), files("a.pdf"), "")
	require.NoError(t, err)
	second, err := q.Submit(context.Background(), files("b.pdf"), "")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return q.Snapshot().IsProcessing }, time.Second, 5*time.Millisecond)
	snap := q.Snapshot()
	assert.Equal(t, 1, snap.QueueLength)
	assert.Equal(t, 2, snap.TotalJobsSeen)

	pending, ok := q.Status(second)
	require.True(t, ok)
	assert.Equal(t, constants.JobStatusPending, pending.Status)

	close(proc.gate)
	waitTerminal(t, q, second)
	require.Eventually(t, func() bool { return !q.Snapshot().IsProcessing }, time.Second, 5*time.Millisecond)
	assert.Equal(t, QueueSnapshot{QueueLength: 0, IsProcessing: false, TotalJobsSeen: 2}, q.Snapshot())
}

func TestShutdownFinishesInFlightJob(t *testing.T) {
	proc := &fakeProcessor{gate: make(chan struct{})}
	q := NewJobQueue(proc, nil, nil)

	first, err := q.Submit(context.Background(), files("a.pdf"), "")
	require.NoError(t, err)
	second, err := q.Submit(context.Background(), files("b.pdf"), "")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return q.Snapshot().IsProcessing }, time.Second, 5*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- q.Shutdown(context.Background()) }()

	require.Eventually(t, func() bool {
		_, err = q.Submit(context.Background(), files("c.pdf"), "")
		return errors.Is(err, common.ErrQueueClosed)
	}, time.Second, 5*time.Millisecond)

	close(proc.gate)
	require.NoError(t, <-done)

	j, _ := q.Status(first)
	assert.Equal(t, constants.JobStatusCompleted, j.Status)
	j, _ = q.Status(second)
	assert.Equal(t, constants.JobStatusPending, j.Status)

	require.NoError(t, q.Shutdown(context.Background()))
}

func TestShutdownGivesUpOnContext(t *testing.T) {
	proc := &fakeProcessor{gate: make(chan struct{})}
	q := NewJobQueue(proc, nil, nil)
	_, err := q.Submit(context.Background(), files("a.pdf"), "")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return q.Snapshot().IsProcessing }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Shutdown(ctx), context.DeadlineExceeded)
	close(proc.gate)
}

func TestAnalyzePanicBecomesFileError(t *testing.T) {
	proc := &fakeProcessor{panic: map[string]bool{"a.pdf": true}}
	q := newQueue(t, proc, nil)

	id, err := q.Submit(context.Background(), files("a.pdf", "b.pdf"), "")
	require.NoError(t, err)

	job := waitTerminal(t, q, id)
	assert.Equal(t, constants.JobStatusCompleted, job.Status)
	assert.Contains(t, job.Results[0].Error, "decoder exploded")
	assert.NotNil(t, job.Results[1].Analysis)
}

type panickingPublisher struct {
	on constants.JobStatus
}

func (p panickingPublisher) PublishJob(_ context.Context, job Job) error {
	if job.Status == p.on && job.ProcessedFiles > 0 {
		panic("publisher bug")
	}
	return nil
}

func TestEscapingPanicFailsJob(t *testing.T) {
	rec := &recorder{}
	q := newQueue(t, &fakeProcessor{}, nil,
		WithPublisher(panickingPublisher{on: constants.JobStatusProcessing}),
		WithListener(rec.listen),
	)

	id, err := q.Submit(context.Background(), files("a.pdf", "b.pdf"), "")
	require.NoError(t, err)

	job := waitTerminal(t, q, id)
	assert.Equal(t, constants.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "job failed")
	assert.Contains(t, job.Error, "publisher bug")
	assert.NotNil(t, job.CompletedAt)

	require.Eventually(t, func() bool {
		evs := rec.snapshot()
		return len(evs) > 0 && evs[len(evs)-1].Type == EventJobFailed
	}, time.Second, 5*time.Millisecond)

	// the worker survives and keeps serving
	id2, err := q.Submit(context.Background(), files("c.pdf"), "")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, waitTerminal(t, q, id2).Status)
}

func TestListenerPanicDoesNotFailJob(t *testing.T) {
	listener := func(ev Event) {
		if ev.Type == EventJobProgress || ev.Type == EventJobCompleted {
			panic("listener bug")
		}
	}
	q := newQueue(t, &fakeProcessor{}, nil, WithListener(listener))

	id, err := q.Submit(context.Background(), files("a.pdf", "b.pdf"), "")
	require.NoError(t, err)

	job := waitTerminal(t, q, id)
	assert.Equal(t, constants.JobStatusCompleted, job.Status)
	assert.Empty(t, job.Error)
	assert.Len(t, job.Results, 2)
}

func TestSaveFailureKeepsAnalysis(t *testing.T) {
	saver := &fakeSaver{err: errors.New("db down")}
	q := newQueue(t, &fakeProcessor{}, saver)

	id, err := q.Submit(context.Background(), files("a.pdf"), "")
	require.NoError(t, err)

	job := waitTerminal(t, q, id)
	assert.Equal(t, constants.JobStatusCompleted, job.Status)
	require.Len(t, job.Results, 1)
	assert.NotNil(t, job.Results[0].Analysis)
	assert.Empty(t, job.Results[0].Error)
	assert.Zero(t, job.Results[0].DocumentID)
}

func TestFileTimeout(t *testing.T) {
	proc := &fakeProcessor{gate: make(chan struct{})}
	q := newQueue(t, proc, nil, WithFileTimeout(20*time.Millisecond))

	id, err := q.Submit(context.Background(), files("slow.pdf"), "")
	require.NoError(t, err)

	job := waitTerminal(t, q, id)
	assert.Equal(t, constants.JobStatusCompleted, job.Status)
	assert.Contains(t, job.Results[0].Error, context.DeadlineExceeded.Error())
}

func TestSubmitValidation(t *testing.T) {
	q := newQueue(t, &fakeProcessor{}, nil, WithMaxFiles(2))

	_, err := q.Submit(context.Background(), nil, "")
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = q.Submit(context.Background(), files("1.pdf", "2.pdf", "3.pdf"), "")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Zero(t, q.Snapshot().TotalJobsSeen)
}

func TestStatusReturnsCopies(t *testing.T) {
	q := newQueue(t, &fakeProcessor{}, nil, WithIDGenerator(func() string { return "job_fixed" }))

	id, err := q.Submit(context.Background(), files("a.pdf"), "")
	require.NoError(t, err)
	assert.Equal(t, "job_fixed", id)
	job := waitTerminal(t, q, id)

	job.Results[0].Error = "tampered"
	job.Files[0].OriginalName = "tampered"
	*job.CompletedAt = time.Time{}

	again, ok := q.Status(id)
	require.True(t, ok)
	assert.Empty(t, again.Results[0].Error)
	assert.Equal(t, "a.pdf", again.Files[0].OriginalName)
	assert.False(t, again.CompletedAt.IsZero())

	_, ok = q.Status("job_missing")
	assert.False(t, ok)
}

func TestClockIsInjected(t *testing.T) {
	fixed := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	q := newQueue(t, &fakeProcessor{}, nil, WithClock(func() time.Time { return fixed }))

	id, err := q.Submit(context.Background(), files("a.pdf"), "")
	require.NoError(t, err)
	assert.Regexp(t, `^job_1710496800000_[0-9a-z]{9}$`, id)

	job := waitTerminal(t, q, id)
	assert.Equal(t, fixed, job.CreatedAt)
	assert.Equal(t, fixed, *job.CompletedAt)
}

func TestNewJobIDFormat(t *testing.T) {
	re := regexp.MustCompile(`^job_\d{13}_[0-9a-z]{9}$`)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewJobID(time.Now())
		assert.Regexp(t, re, id)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

type recordingPublisher struct {
	mu       sync.Mutex
	statuses []constants.JobStatus
}

func (p *recordingPublisher) PublishJob(_ context.Context, job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, job.Status)
	return nil
}

func TestPublisherSeesEverySnapshot(t *testing.T) {
	pub := &recordingPublisher{}
	q := newQueue(t, &fakeProcessor{}, nil, WithPublisher(pub))

	id, err := q.Submit(context.Background(), files("a.pdf"), "")
	require.NoError(t, err)
	waitTerminal(t, q, id)

	require.Eventually(t, func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()
		return len(pub.statuses) == 4
	}, time.Second, 5*time.Millisecond)
	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, []constants.JobStatus{
		constants.JobStatusPending,
		constants.JobStatusProcessing,
		constants.JobStatusProcessing,
		constants.JobStatusCompleted,
	}, pub.statuses)
}

type jitterPublisher struct {
	mu   sync.Mutex
	rnd  *rand.Rand
	last map[string]constants.JobStatus
}

func (p *jitterPublisher) PublishJob(_ context.Context, job Job) error {
	p.mu.Lock()
	d := time.Duration(p.rnd.Intn(3000)) * time.Microsecond
	p.mu.Unlock()
	time.Sleep(d)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.last[job.ID] = job.Status
	return nil
}

func (p *jitterPublisher) lastStatus(id string) constants.JobStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last[id]
}

func TestPublicationOrderAcrossManyJobs(t *testing.T) {
	pub := &jitterPublisher{rnd: rand.New(rand.NewSource(7)), last: map[string]constants.JobStatus{}}
	rec := &recorder{}
	q := newQueue(t, &fakeProcessor{}, nil, WithPublisher(pub), WithListener(rec.listen))

	const n = 40
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id, err := q.Submit(context.Background(), files("a.pdf"), "")
		require.NoError(t, err)
		ids = append(ids, id)
	}
	for _, id := range ids {
		waitTerminal(t, q, id)
	}

	require.Eventually(t, func() bool {
		for _, id := range ids {
			if pub.lastStatus(id) != constants.JobStatusCompleted {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)

	first := map[string]EventType{}
	for _, ev := range rec.snapshot() {
		if _, ok := first[ev.JobID]; !ok {
			first[ev.JobID] = ev.Type
		}
	}
	for _, id := range ids {
		assert.Equal(t, EventJobAdded, first[id], id)
		assert.Equal(t, constants.JobStatusCompleted, pub.lastStatus(id), id)
	}
}
