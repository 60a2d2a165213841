package repository

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository keeps documents in process memory. Used when no database
// is configured and in tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	docs   []Document
	nextID int64
	now    func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{now: time.Now}
}

func (r *MemoryRepository) SaveDocument(_ context.Context, doc *Document) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	doc.ID = r.nextID
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = r.now()
	}
	doc.UpdatedAt = doc.CreatedAt
	r.docs = append(r.docs, *doc)
	return doc.ID, nil
}

func (r *MemoryRepository) GetDocumentsByJobID(_ context.Context, jobID string) ([]Document, error) {
	return r.filter(func(d Document) bool { return d.JobID == jobID }), nil
}

func (r *MemoryRepository) GetDocumentsByUserID(_ context.Context, userID string, limit, offset int) (Page, error) {
	rows := r.filter(func(d Document) bool { return d.UserID != nil && *d.UserID == userID })
	return paginate(rows, limit, offset), nil
}

func (r *MemoryRepository) GetAllDocuments(_ context.Context, limit, offset int) (Page, error) {
	return paginate(r.filter(func(Document) bool { return true }), limit, offset), nil
}

// filter returns matching documents newest first.
func (r *MemoryRepository) filter(keep func(Document) bool) []Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Document, 0)
	for _, d := range r.docs {
		if keep(d) {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func paginate(rows []Document, limit, offset int) Page {
	limit, offset = normalizePage(limit, offset)
	p := Page{Count: len(rows), Rows: []Document{}}
	if offset >= len(rows) {
		return p
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	p.Rows = rows[offset:end]
	return p
}
