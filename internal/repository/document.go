package repository

import (
	"context"
	"encoding/json"
	"time"
)

// Document is one persisted verification result.
type Document struct {
	ID              int64           `json:"id"`
	JobID           string          `json:"jobId"`
	UserID          *string         `json:"userId,omitempty"`
	FileName        string          `json:"fileName"`
	OriginalName    string          `json:"originalName"`
	FileSize        int64           `json:"fileSize"`
	MimeType        string          `json:"mimeType"`
	FilePath        string          `json:"filePath"`
	Status          string          `json:"status"`
	Confidence      float64         `json:"confidence"`
	AnalysisDetails json.RawMessage `json:"analysisDetails"`
	ExtractedData   json.RawMessage `json:"extractedData"`
	Issues          json.RawMessage `json:"issues"`
	Summary         string          `json:"summary"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Page is a window of rows plus the total number of matching rows.
type Page struct {
	Rows  []Document `json:"rows"`
	Count int        `json:"count"`
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type DocumentRepository interface {
	SaveDocument(ctx context.Context, doc *Document) (int64, error)
	// GetDocumentsByJobID returns the job's documents, newest first.
	GetDocumentsByJobID(ctx context.Context, jobID string) ([]Document, error)
	GetDocumentsByUserID(ctx context.Context, userID string, limit, offset int) (Page, error)
	GetAllDocuments(ctx context.Context, limit, offset int) (Page, error)
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
