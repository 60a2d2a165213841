package async

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/inspection-verifier/constants"
	"github.com/joseph-ayodele/inspection-verifier/internal/analysis"
)

// File is one stored upload waiting to be analyzed.
type File struct {
	OriginalName string `json:"originalName"`
	StoredName   string `json:"storedName"`
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimeType"`
}

// FileInfo is the part of a File reported back to callers.
type FileInfo struct {
	OriginalName string `json:"originalName"`
	StoredName   string `json:"storedName"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimeType"`
}

func (f File) Info() FileInfo {
	return FileInfo{OriginalName: f.OriginalName, StoredName: f.StoredName, Size: f.Size, MimeType: f.MimeType}
}

// FileResult is the outcome for one file: either Analysis or Error is set.
type FileResult struct {
	File        FileInfo         `json:"file"`
	Analysis    *analysis.Result `json:"analysis,omitempty"`
	Error       string           `json:"error,omitempty"`
	DocumentID  int64            `json:"documentId,omitempty"`
	ProcessedAt time.Time        `json:"processedAt"`
}

func (r FileResult) Failed() bool { return r.Error != "" }

type Job struct {
	ID             string              `json:"id"`
	UserID         string              `json:"userId,omitempty"`
	Files          []File              `json:"files"`
	Status         constants.JobStatus `json:"status"`
	CreatedAt      time.Time           `json:"createdAt"`
	StartedAt      *time.Time          `json:"startedAt,omitempty"`
	CompletedAt    *time.Time          `json:"completedAt,omitempty"`
	Results        []FileResult        `json:"results"`
	ProcessedFiles int                 `json:"processedFiles"`
	Progress       int                 `json:"progress"`
	Error          string              `json:"error,omitempty"`
}

// Clone copies everything a reader could observe changing. Analysis
// results are shared since they are never modified after creation.
func (j *Job) Clone() Job {
	c := *j
	c.Files = append([]File(nil), j.Files...)
	c.Results = append(make([]FileResult, 0, len(j.Results)), j.Results...)
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return c
}

func (j *Job) TotalFiles() int { return len(j.Files) }

// progressFor is the percentage after processed of total files. It stays
// below 100 until the job is marked completed.
func progressFor(processed, total int) int {
	if total <= 0 {
		return 0
	}
	p := processed * 100 / total
	if p > 99 {
		p = 99
	}
	return p
}

// NewJobID returns job_<unix millis>_<9 base36 chars>.
func NewJobID(now time.Time) string {
	u := uuid.New()
	r := new(big.Int).SetBytes(u[:]).Text(36)
	if len(r) < 9 {
		r = strings.Repeat("0", 9-len(r)) + r
	}
	return fmt.Sprintf("job_%d_%s", now.UnixMilli(), r[len(r)-9:])
}

// EventType names a job lifecycle notification.
type EventType string

const (
	EventJobAdded     EventType = "job_added"
	EventJobStarted   EventType = "job_started"
	EventJobProgress  EventType = "job_progress"
	EventJobCompleted EventType = "job_completed"
	EventJobFailed    EventType = "job_failed"
)

type Event struct {
	Type           EventType
	JobID          string
	Status         constants.JobStatus
	Progress       int
	ProcessedFiles int
	TotalFiles     int
	Error          string
}

func eventFor(t EventType, j *Job) Event {
	return Event{
		Type:           t,
		JobID:          j.ID,
		Status:         j.Status,
		Progress:       j.Progress,
		ProcessedFiles: j.ProcessedFiles,
		TotalFiles:     len(j.Files),
		Error:          j.Error,
	}
}

// QueueSnapshot describes the queue itself rather than any one job.
type QueueSnapshot struct {
	QueueLength   int  `json:"queueLength"`
	IsProcessing  bool `json:"isProcessing"`
	TotalJobsSeen int  `json:"totalJobsSeen"`
}
