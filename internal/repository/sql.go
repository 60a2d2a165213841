package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/inspection-verifier/internal/common"
)

// Dialect names follow goose's.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

const documentColumns = `id, job_id, user_id, file_name, original_name, file_size, mime_type, file_path,
	status, confidence, analysis_details, extracted_data, issues, summary, created_at, updated_at`

// SQLRepository stores documents through database/sql. Queries are written
// with ? placeholders and rebound for Postgres.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
	now     func() time.Time
}

func NewSQLRepository(db *sql.DB, dialect Dialect, logger *slog.Logger) *SQLRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLRepository{db: db, dialect: dialect, logger: logger, now: time.Now}
}

func (r *SQLRepository) SaveDocument(ctx context.Context, doc *Document) (int64, error) {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = r.now().UTC()
	}
	doc.UpdatedAt = doc.CreatedAt

	q := r.rebind(`INSERT INTO documents (job_id, user_id, file_name, original_name, file_size, mime_type, file_path,
	status, confidence, analysis_details, extracted_data, issues, summary, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`)

	var id int64
	err := r.db.QueryRowContext(ctx, q,
		doc.JobID,
		nullString(doc.UserID),
		doc.FileName,
		doc.OriginalName,
		doc.FileSize,
		doc.MimeType,
		doc.FilePath,
		doc.Status,
		doc.Confidence,
		jsonText(doc.AnalysisDetails),
		jsonText(doc.ExtractedData),
		jsonText(doc.Issues),
		doc.Summary,
		doc.CreatedAt,
		doc.UpdatedAt,
	).Scan(&id)
	if err != nil {
		r.logger.Error("failed to save document", "job_id", doc.JobID, "file", doc.OriginalName, "error", err)
		return 0, common.NewAppError("DATABASE_ERROR", "save document", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	doc.ID = id
	return id, nil
}

func (r *SQLRepository) GetDocumentsByJobID(ctx context.Context, jobID string) ([]Document, error) {
	q := r.rebind(`SELECT ` + documentColumns + ` FROM documents WHERE job_id = ? ORDER BY created_at DESC, id DESC`)
	return r.query(ctx, q, jobID)
}

func (r *SQLRepository) GetDocumentsByUserID(ctx context.Context, userID string, limit, offset int) (Page, error) {
	return r.page(ctx, "WHERE user_id = ?", []any{userID}, limit, offset)
}

func (r *SQLRepository) GetAllDocuments(ctx context.Context, limit, offset int) (Page, error) {
	return r.page(ctx, "", nil, limit, offset)
}

func (r *SQLRepository) page(ctx context.Context, where string, args []any, limit, offset int) (Page, error) {
	limit, offset = normalizePage(limit, offset)

	var count int
	if err := r.db.QueryRowContext(ctx, r.rebind(`SELECT COUNT(*) FROM documents `+where), args...).Scan(&count); err != nil {
		r.logger.Error("failed to count documents", "error", err)
		return Page{}, fmt.Errorf("%w: count documents: %w", common.ErrDatabase, err)
	}

	q := r.rebind(`SELECT ` + documentColumns + ` FROM documents ` + where + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`)
	rows, err := r.query(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return Page{}, err
	}
	return Page{Rows: rows, Count: count}, nil
}

func (r *SQLRepository) query(ctx context.Context, q string, args ...any) ([]Document, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		r.logger.Error("failed to query documents", "error", err)
		return nil, fmt.Errorf("%w: query documents: %w", common.ErrDatabase, err)
	}
	defer rows.Close()

	out := make([]Document, 0)
	for rows.Next() {
		var (
			d                     Document
			userID                sql.NullString
			details, data, issues []byte
		)
		if err := rows.Scan(
			&d.ID, &d.JobID, &userID, &d.FileName, &d.OriginalName, &d.FileSize, &d.MimeType, &d.FilePath,
			&d.Status, &d.Confidence, &details, &data, &issues, &d.Summary, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: scan document: %w", common.ErrDatabase, err)
		}
		if userID.Valid {
			u := userID.String
			d.UserID = &u
		}
		d.AnalysisDetails, d.ExtractedData, d.Issues = details, data, issues
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate documents: %w", common.ErrDatabase, err)
	}
	return out, nil
}

// rebind turns ? placeholders into $1..$n for Postgres.
func (r *SQLRepository) rebind(q string) string {
	if r.dialect != DialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, c := range q {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func jsonText(b []byte) string {
	if len(b) == 0 {
		return "null"
	}
	return string(b)
}
