package rest

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/Narodni-repozitar/nr-Nresults/internal/core"
	"github.com/Narodni-repozitar/nr-Nresults/internal/pidstore"
	"github.com/Narodni-repozitar/nr-Nresults/internal/schema"
	"github.com/Narodni-repozitar/nr-Nresults/internal/search"
	"github.com/Narodni-repozitar/nr-Nresults/internal/taxonomy"
	"github.com/Narodni-repozitar/nr-Nresults/pkg/domain"
)

type fieldError struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Message    string `json:"message"`
}

type violation struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Entity   string `json:"entity,omitempty"`
	EntityID string `json:"entity_id,omitempty"`
}

type errorResponse struct {
	Status     int          `json:"status"`
	Message    string       `json:"message"`
	Errors     []fieldError `json:"errors,omitempty"`
	Violations []violation  `json:"violations,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Status: status, Message: message})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var nf domain.ErrNotFound
	switch {
	case errors.As(err, &nf),
		errors.Is(err, pidstore.ErrPIDDoesNotExist),
		errors.Is(err, pidstore.ErrPIDUnregistered),
		errors.Is(err, pidstore.ErrPIDMissingObject):
		return http.StatusNotFound
	case errors.Is(err, pidstore.ErrPIDDeleted):
		return http.StatusGone
	case errors.Is(err, pidstore.ErrPIDExists):
		return http.StatusConflict
	case errors.Is(err, search.ErrResultWindow),
		errors.Is(err, search.ErrUnknownSort),
		errors.Is(err, search.ErrInvalidQuery),
		errors.Is(err, taxonomy.ErrInvalidLink),
		errors.Is(err, core.ErrDraftInvalid):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if ve, ok := schema.AsValidationError(err); ok {
		body := errorResponse{Status: http.StatusBadRequest, Message: "Validation error."}
		for _, fe := range ve.Errors {
			body.Errors = append(body.Errors, fieldError{Field: fe.Field, Constraint: fe.Constraint, Message: fe.Message})
		}
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, body)
		return
	}
	var rv domain.RuleViolationError
	if errors.As(err, &rv) {
		body := errorResponse{Status: http.StatusConflict, Message: rv.Error()}
		for _, v := range rv.Result.Violations {
			body.Violations = append(body.Violations, violation{
				Rule:     v.Rule,
				Severity: string(v.Severity),
				Message:  v.Message,
				Entity:   string(v.Entity),
				EntityID: v.EntityID,
			})
		}
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, body)
		return
	}
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("rest.request_failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, r, status, "Internal server error.")
		return
	}
	writeError(w, r, status, err.Error())
}
