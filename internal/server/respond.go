package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/inspection-verifier/internal/common"
)

type errorResponse struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	ErrorCode  string `json:"errorCode,omitempty"`
}

func fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{
		Success:    false,
		StatusCode: status,
		Message:    message,
		ErrorCode:  code,
	})
}

// failErr answers with the status the error chain maps to. Internal errors
// are logged and hidden from the caller.
func (s *Server) failErr(c *gin.Context, err error) {
	status := common.HTTPStatus(err)
	code := "INTERNAL_ERROR"
	msg := "Error interno del servidor"
	if status == http.StatusServiceUnavailable {
		code, msg = "SERVICE_UNAVAILABLE", "El servicio se está deteniendo, intente más tarde"
	}

	var appErr *common.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
		if status < http.StatusInternalServerError {
			msg = appErr.Message
		}
	} else if status < http.StatusInternalServerError {
		msg = err.Error()
	}
	if status >= http.StatusInternalServerError {
		common.LoggerWith(c.Request.Context(), s.logger).Error("request failed", "path", c.Request.URL.Path, "error", err)
	}
	fail(c, status, code, msg)
}

func respondOK(c *gin.Context, payload gin.H) {
	payload["success"] = true
	payload["statusCode"] = http.StatusOK
	c.JSON(http.StatusOK, payload)
}
