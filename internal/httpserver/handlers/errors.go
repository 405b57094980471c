package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/MrSnakeDoc/linkhub/internal/controller"
	"github.com/MrSnakeDoc/linkhub/internal/domain"
	"github.com/MrSnakeDoc/linkhub/internal/httpserver/respond"
	"github.com/MrSnakeDoc/linkhub/internal/identity"
	"github.com/MrSnakeDoc/linkhub/internal/logger"
)

const defaultMaxBodyBytes = 64 << 10

type validationDetails struct {
	Field string `json:"field"`
	Code  string `json:"code"`
	Value string `json:"value,omitempty"`
	Index *int   `json:"index,omitempty"`
}

// indexedError ties a validation failure to an element of a request array.
type indexedError struct {
	index int
	err   error
}

func (e *indexedError) Error() string { return fmt.Sprintf("links[%d]: %v", e.index, e.err) }
func (e *indexedError) Unwrap() error { return e.err }

// writeDomainError maps the error taxonomy onto status codes and envelope codes.
func writeDomainError(w http.ResponseWriter, r *http.Request, log logger.Logger, err error) {
	var (
		verr *domain.ValidationError
		ierr *indexedError
	)
	switch {
	case errors.As(err, &verr):
		d := validationDetails{Field: verr.Field, Code: string(verr.Code), Value: verr.Value}
		if errors.As(err, &ierr) {
			d.Index = &ierr.index
		}
		respond.Fail(w, http.StatusBadRequest, respond.CodeValidation, err.Error(), d)
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrIndexOutOfRange):
		respond.Fail(w, http.StatusBadRequest, respond.CodeValidation, err.Error(), nil)
	case errors.Is(err, domain.ErrLinkNotFound):
		respond.Fail(w, http.StatusNotFound, respond.CodeLinkNotFound, err.Error(), nil)
	case errors.Is(err, domain.ErrProfileNotFound):
		respond.Fail(w, http.StatusNotFound, respond.CodeProfileMissing, err.Error(), nil)
	case errors.Is(err, domain.ErrUsernameTaken):
		respond.Fail(w, http.StatusConflict, respond.CodeUsernameTaken, err.Error(), nil)
	case errors.Is(err, domain.ErrUnauthorized):
		if !identity.FromContext(r.Context()).SignedIn {
			respond.Fail(w, http.StatusUnauthorized, respond.CodeUnauthenticate, "sign in required", nil)
			return
		}
		respond.Fail(w, http.StatusForbidden, respond.CodeForbidden, err.Error(), nil)
	case errors.Is(err, domain.ErrSaveInProgress), errors.Is(err, controller.ErrLoading):
		respond.Fail(w, http.StatusConflict, respond.CodeSaveInProgress, err.Error(), nil)
	case errors.Is(err, domain.ErrTransient):
		log.Warn("transient failure", logger.String("path", r.URL.Path), logger.Error(err))
		w.Header().Set("Retry-After", "1")
		respond.Fail(w, http.StatusServiceUnavailable, respond.CodeUnavailable,
			"temporary failure, please retry", nil)
	default:
		log.Error("unexpected failure", logger.String("path", r.URL.Path), logger.Error(err))
		respond.Fail(w, http.StatusInternalServerError, respond.CodeInternal, "internal error", nil)
	}
}

// decodeJSON reads exactly one JSON object from the body into dst.
// It writes the 400 response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst interface{}) bool {
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		msg := "malformed JSON body"
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			msg = "request body is empty"
		case errors.As(err, &tooLarge):
			msg = fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)
		}
		respond.Fail(w, http.StatusBadRequest, respond.CodeInvalidJSON, msg, nil)
		return false
	}
	if dec.More() {
		respond.Fail(w, http.StatusBadRequest, respond.CodeInvalidJSON, "unexpected data after JSON object", nil)
		return false
	}
	return true
}
