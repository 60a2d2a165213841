package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/inspection-verifier/constants"
	"github.com/joseph-ayodele/inspection-verifier/internal/async"
	"github.com/joseph-ayodele/inspection-verifier/internal/common"
	"github.com/joseph-ayodele/inspection-verifier/internal/repository"
)

const (
	historyDefaultLimit = 10
	xlsxContentType     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type jobView struct {
	ID             string              `json:"id"`
	Status         constants.JobStatus `json:"status"`
	FilesCount     int                 `json:"filesCount"`
	Results        []async.FileResult  `json:"results"`
	ProcessedFiles int                 `json:"processedFiles"`
	TotalFiles     int                 `json:"totalFiles"`
	Progress       int                 `json:"progress"`
	CreatedAt      time.Time           `json:"createdAt"`
	StartedAt      *time.Time          `json:"startedAt,omitempty"`
	CompletedAt    *time.Time          `json:"completedAt,omitempty"`
	Error          string              `json:"error,omitempty"`
}

func viewOf(j async.Job) jobView {
	results := j.Results
	if results == nil {
		results = []async.FileResult{}
	}
	return jobView{
		ID:             j.ID,
		Status:         j.Status,
		FilesCount:     len(j.Files),
		Results:        results,
		ProcessedFiles: j.ProcessedFiles,
		TotalFiles:     len(j.Files),
		Progress:       j.Progress,
		CreatedAt:      j.CreatedAt,
		StartedAt:      j.StartedAt,
		CompletedAt:    j.CompletedAt,
		Error:          j.Error,
	}
}

type pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// lookupJob prefers the live queue and falls back to the snapshot cache.
func (s *Server) lookupJob(ctx context.Context, id string) (async.Job, error) {
	if job, found := s.queue.Status(id); found {
		return job, nil
	}
	if s.jobs != nil {
		return s.jobs.GetJob(ctx, id)
	}
	return async.Job{}, fmt.Errorf("%w: %s", common.ErrJobNotFound, id)
}

func (s *Server) jobOr404(c *gin.Context) (async.Job, bool) {
	id := c.Param("jobId")
	if isBlank(id) {
		fail(c, http.StatusBadRequest, "INVALID_INPUT", "ID de trabajo requerido")
		return async.Job{}, false
	}
	job, err := s.lookupJob(c.Request.Context(), id)
	if errors.Is(err, common.ErrJobNotFound) {
		fail(c, http.StatusNotFound, "JOB_NOT_FOUND", "Trabajo no encontrado")
		return async.Job{}, false
	}
	if err != nil {
		s.failErr(c, err)
		return async.Job{}, false
	}
	return job, true
}

func (s *Server) getJobStatus(c *gin.Context) {
	job, found := s.jobOr404(c)
	if !found {
		return
	}
	respondOK(c, gin.H{"job": viewOf(job)})
}

func (s *Server) getDocumentsByJobID(c *gin.Context) {
	id := c.Param("jobId")
	docs, err := s.docs.GetDocumentsByJobID(c.Request.Context(), id)
	if err != nil {
		s.failErr(c, err)
		return
	}
	if len(docs) == 0 {
		fail(c, http.StatusNotFound, "NOT_FOUND", "No se encontraron documentos para ese Job")
		return
	}
	respondOK(c, gin.H{"data": gin.H{
		"jobId":     id,
		"count":     len(docs),
		"documents": docs,
	}})
}

func (s *Server) exportJob(c *gin.Context) {
	job, found := s.jobOr404(c)
	if !found {
		return
	}
	raw, err := s.exporter.ExportJobXLSX(c.Request.Context(), job)
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="verificacion-%s.xlsx"`, job.ID))
	c.Data(http.StatusOK, xlsxContentType, raw)
}

func (s *Server) getDocumentHistory(c *gin.Context) {
	page, limit := pageParams(c, historyDefaultLimit)
	ctx := c.Request.Context()

	var (
		res repository.Page
		err error
	)
	if userID := common.UserIDFromContext(ctx); userID != "" {
		res, err = s.docs.GetDocumentsByUserID(ctx, userID, limit, (page-1)*limit)
	} else {
		res, err = s.docs.GetAllDocuments(ctx, limit, (page-1)*limit)
	}
	if err != nil {
		s.failErr(c, err)
		return
	}
	s.writePage(c, res, page, limit)
}

func (s *Server) getAllDocuments(c *gin.Context) {
	page, limit := pageParams(c, repository.DefaultLimit)
	res, err := s.docs.GetAllDocuments(c.Request.Context(), limit, (page-1)*limit)
	if err != nil {
		s.failErr(c, err)
		return
	}
	s.writePage(c, res, page, limit)
}

func (s *Server) writePage(c *gin.Context, res repository.Page, page, limit int) {
	rows := res.Rows
	if rows == nil {
		rows = []repository.Document{}
	}
	respondOK(c, gin.H{"data": gin.H{
		"documents": rows,
		"pagination": pagination{
			Total:      res.Count,
			Page:       page,
			Limit:      limit,
			TotalPages: (res.Count + limit - 1) / limit,
		},
	}})
}

func (s *Server) queueStatus(c *gin.Context) {
	respondOK(c, gin.H{"queue": s.queue.Snapshot()})
}

// pageParams reads ?page and ?limit; bad values fall back to defaults.
func pageParams(c *gin.Context, defaultLimit int) (page, limit int) {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err = strconv.Atoi(c.Query("limit"))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if limit > repository.MaxLimit {
		limit = repository.MaxLimit
	}
	return page, limit
}
