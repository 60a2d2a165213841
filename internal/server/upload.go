package server

import (
	"errors"
	"fmt"
	"io/fs"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/inspection-verifier/constants"
	"github.com/joseph-ayodele/inspection-verifier/internal/async"
	"github.com/joseph-ayodele/inspection-verifier/internal/common"
)

const uploadField = "documents"

type uploadError struct {
	code    string
	message string
}

func (e *uploadError) Error() string { return e.message }

// checkUpload applies the per-file extension, mime and size limits.
func (s *Server) checkUpload(fh *multipart.FileHeader) *uploadError {
	name := filepath.Base(fh.Filename)
	if _, ok := constants.AllowedExtensions[constants.NormalizeExt(filepath.Ext(name))]; !ok {
		return &uploadError{
			code:    "INVALID_FILE_TYPE",
			message: fmt.Sprintf("Extensión de archivo no permitida en %s. Solo se permiten archivos PDF, JPG y JPEG", name),
		}
	}
	if _, ok := constants.AllowedMimeTypes[constants.NormalizeMime(fh.Header.Get("Content-Type"))]; !ok {
		return &uploadError{
			code:    "INVALID_FILE_TYPE",
			message: "Tipo de archivo no permitido. Solo es posible subir PDF, JPG y JPEG",
		}
	}
	if fh.Size > s.cfg.MaxFileSize {
		return &uploadError{
			code:    "FILE_TOO_LARGE",
			message: fmt.Sprintf("El archivo es demasiado grande. El tamaño máximo permitido es %dMB", s.cfg.MaxFileSize>>20),
		}
	}
	return nil
}

// storeUploads writes each part to the upload dir as <unixms>-<name>.
func (s *Server) storeUploads(c *gin.Context, headers []*multipart.FileHeader) ([]async.File, error) {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	ms := s.now().UnixMilli()
	used := map[string]int{}
	files := make([]async.File, 0, len(headers))
	for _, fh := range headers {
		name := filepath.Base(fh.Filename)
		stored := fmt.Sprintf("%d-%s", ms, name)
		if n := used[name]; n > 0 {
			stored = fmt.Sprintf("%d-%d-%s", ms, n, name)
		}
		used[name]++

		path := filepath.Join(s.cfg.UploadDir, stored)
		if err := c.SaveUploadedFile(fh, path); err != nil {
			s.removeUploads(files)
			return nil, fmt.Errorf("store %s: %w", name, err)
		}
		files = append(files, async.File{
			OriginalName: name,
			StoredName:   stored,
			Path:         path,
			Size:         fh.Size,
			MimeType:     constants.NormalizeMime(fh.Header.Get("Content-Type")),
		})
	}
	return files, nil
}

func (s *Server) removeUploads(files []async.File) {
	for _, f := range files {
		if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to remove upload", "path", f.Path, "error", err)
		}
	}
}

func (s *Server) verifyDocuments(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		fail(c, http.StatusBadRequest, "UPLOAD_ERROR", "Error en la subida del archivo")
		return
	}
	headers := form.File[uploadField]
	if len(headers) == 0 {
		fail(c, http.StatusBadRequest, "NO_FILES", "No se proporcionó ningún archivo")
		return
	}
	if len(headers) > s.cfg.MaxFiles {
		fail(c, http.StatusBadRequest, "TOO_MANY_FILES",
			fmt.Sprintf("Demasiados archivos. Solo se permiten %d archivos a la vez", s.cfg.MaxFiles))
		return
	}
	for _, fh := range headers {
		if uerr := s.checkUpload(fh); uerr != nil {
			fail(c, http.StatusBadRequest, uerr.code, uerr.message)
			return
		}
	}

	files, err := s.storeUploads(c, headers)
	if err != nil {
		s.failErr(c, err)
		return
	}

	ctx := c.Request.Context()
	userID := common.UserIDFromContext(ctx)
	jobID, err := s.queue.Submit(ctx, files, userID)
	if err != nil {
		s.removeUploads(files)
		s.failErr(c, err)
		return
	}

	infos := make([]async.FileInfo, 0, len(files))
	for _, f := range files {
		infos = append(infos, f.Info())
	}
	respondOK(c, gin.H{
		"message":   fmt.Sprintf("%d archivo(s) agregado(s) a la cola de procesamiento", len(files)),
		"jobId":     jobID,
		"fileCount": len(files),
		"files":     infos,
	})
}

func (s *Server) supportedTypes(c *gin.Context) {
	respondOK(c, gin.H{
		"supportedTypes": []gin.H{
			{"extension": ".pdf", "mimetype": constants.MimePDF, "description": "Documento PDF"},
			{"extension": ".jpg", "mimetype": "image/jpg", "description": "Imagen JPG"},
			{"extension": ".jpeg", "mimetype": constants.MimeJPEG, "description": "Imagen JPEG"},
		},
		"maxFileSize": fmt.Sprintf("%dMB", s.cfg.MaxFileSize>>20),
		"maxFiles":    s.cfg.MaxFiles,
		"endpoints": gin.H{
			"multipleFiles":      "/api/documents/verify",
			"jobStatus":          "/api/documents/jobs/:jobId",
			"documentsByJobId":   "/api/documents/jobs/:jobId/documents",
			"exportByJobId":      "/api/documents/jobs/:jobId/export",
			"historyOfDocuments": "/api/documents/history",
		},
	})
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
