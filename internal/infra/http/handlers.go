package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"chiefgate/internal/domain"

	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type licenceEnvelope struct {
	Licence *domain.Licence `json:"licence"`
}

// handleUpdateLicence accepts a LITE licence operation. The body is
// either {"licence": {...}} or the bare licence object. Submission is
// idempotent on the licence reference.
func (s *Server) handleUpdateLicence(c *gin.Context) {
	if s.hawkAuth != nil {
		if _, err := s.hawkAuth.Authenticate(c.Request); err != nil {
			writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "hawk authentication failed")
			return
		}
	}
	if !s.enforceRateLimit(c, "mail:update-licence") {
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "BAD_BODY", "cannot read request body")
		return
	}
	var envelope licenceEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "BAD_JSON", "request body is not valid JSON")
		return
	}
	licence := envelope.Licence
	if licence == nil {
		licence = &domain.Licence{}
		if err := json.Unmarshal(body, licence); err != nil || licence.Reference == "" {
			writeErrorCode(c, http.StatusBadRequest, "VALIDATION", "licence object is required")
			return
		}
	}

	payload, created, err := s.ingress.Submit(c.Request.Context(), *licence)
	if err != nil {
		writeError(c, err)
		return
	}
	if !created {
		c.Status(http.StatusNotModified)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"payload_id": payload.ID,
		"reference":  payload.Reference,
		"action":     payload.Action,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	report, err := s.health.Report(c.Request.Context())
	if err != nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "HEALTH_UNAVAILABLE", err.Error())
		return
	}
	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrValidation):
		status, code = http.StatusBadRequest, "VALIDATION"
	case errors.Is(err, domain.ErrUnknownLicenceType):
		status, code = http.StatusBadRequest, "UNKNOWN_LICENCE_TYPE"
	}
	c.JSON(status, errorResponse{Code: code, Message: err.Error()})
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{Code: code, Message: message})
}
