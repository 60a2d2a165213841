// Package server exposes the verification queue and stored results over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/inspection-verifier/constants"
	"github.com/joseph-ayodele/inspection-verifier/internal/async"
	"github.com/joseph-ayodele/inspection-verifier/internal/repository"
)

// Queue is the part of the job queue the API drives.
type Queue interface {
	Submit(ctx context.Context, files []async.File, userID string) (string, error)
	Status(id string) (async.Job, bool)
	Snapshot() async.QueueSnapshot
}

// JobLookup finds job snapshots the queue no longer holds.
type JobLookup interface {
	GetJob(ctx context.Context, id string) (async.Job, error)
}

type Exporter interface {
	ExportJobXLSX(ctx context.Context, job async.Job) ([]byte, error)
}

type Config struct {
	UploadDir   string
	MaxFiles    int
	MaxFileSize int64
}

type Server struct {
	queue    Queue
	docs     repository.DocumentRepository
	exporter Exporter
	jobs     JobLookup
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Server)

// WithJobCache makes job lookups fall back to lookup when the queue misses.
func WithJobCache(lookup JobLookup) Option {
	return func(s *Server) { s.jobs = lookup }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

func New(queue Queue, docs repository.DocumentRepository, exporter Exporter, cfg Config, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = constants.DefaultMaxFilesPerJob
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = constants.DefaultMaxFileSize
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "./uploads"
	}
	s := &Server{queue: queue, docs: docs, exporter: exporter, cfg: cfg, logger: logger, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Router builds the gin engine with every route mounted under /api.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	r.Use(RequestID(), Recovery(s.logger), Logging(s.logger), UserID())

	api := r.Group("/api")
	docs := api.Group("/documents")
	docs.POST("/verify", s.verifyDocuments)
	docs.GET("/jobs/:jobId", s.getJobStatus)
	docs.GET("/jobs/:jobId/documents", s.getDocumentsByJobID)
	docs.GET("/jobs/:jobId/export", s.exportJob)
	docs.GET("/history", s.getDocumentHistory)
	docs.GET("/supported-types", s.supportedTypes)
	docs.GET("", s.getAllDocuments)
	api.GET("/queue", s.queueStatus)

	r.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "NOT_FOUND", "Ruta no encontrada")
	})
	return r
}

// HTTPServer wraps the router in an http.Server bound to addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
