package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/joseph-ayodele/inspection-verifier/internal/async"
	"github.com/joseph-ayodele/inspection-verifier/internal/common"
)

// DocumentSaver stores successful file results for the job queue.
type DocumentSaver struct {
	repo DocumentRepository
}

func NewDocumentSaver(repo DocumentRepository) *DocumentSaver {
	return &DocumentSaver{repo: repo}
}

var _ async.DocumentSaver = (*DocumentSaver)(nil)

func (s *DocumentSaver) Save(ctx context.Context, job async.Job, res async.FileResult) (int64, error) {
	doc, err := DocumentFromResult(job, res)
	if err != nil {
		return 0, err
	}
	return s.repo.SaveDocument(ctx, doc)
}

// DocumentFromResult builds the row for a file result after checking the
// analysis against the result schema.
func DocumentFromResult(job async.Job, res async.FileResult) (*Document, error) {
	a := res.Analysis
	if a == nil {
		return nil, common.NewAppError("VALIDATION_ERROR", "file result has no analysis", common.ErrValidation)
	}
	if err := a.Validate(); err != nil {
		return nil, common.NewAppError("VALIDATION_ERROR", "analysis result failed schema check", errors.Join(common.ErrValidation, err))
	}

	details, err := json.Marshal(a.Details)
	if err != nil {
		return nil, fmt.Errorf("marshal details: %w", err)
	}
	data, err := json.Marshal(a.ExtractedData)
	if err != nil {
		return nil, fmt.Errorf("marshal extracted data: %w", err)
	}
	issues, err := json.Marshal(a.Issues)
	if err != nil {
		return nil, fmt.Errorf("marshal issues: %w", err)
	}

	doc := &Document{
		JobID:           job.ID,
		FileName:        res.File.StoredName,
		OriginalName:    res.File.OriginalName,
		FileSize:        res.File.Size,
		MimeType:        res.File.MimeType,
		FilePath:        pathFor(job, res.File),
		Status:          string(a.Status),
		Confidence:      float64(a.Confidence),
		AnalysisDetails: details,
		ExtractedData:   data,
		Issues:          issues,
		Summary:         a.Summary,
	}
	if job.UserID != "" {
		uid := job.UserID
		doc.UserID = &uid
	}
	return doc, nil
}

func pathFor(job async.Job, fi async.FileInfo) string {
	for _, f := range job.Files {
		if f.StoredName == fi.StoredName {
			return f.Path
		}
	}
	return ""
}
