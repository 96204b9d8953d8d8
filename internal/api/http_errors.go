package api

import (
	"errors"
	"net/http"

	"github.com/dantiel/aethercodex/internal/core"
)

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func httpStatusForDomainError(err error) int {
	var domErr *core.DomainError
	if !errors.As(err, &domErr) || domErr == nil {
		return http.StatusInternalServerError
	}

	switch domErr.Category {
	case core.ErrCatValidation:
		return http.StatusUnprocessableEntity
	case core.ErrCatNotFound:
		return http.StatusNotFound
	case core.ErrCatState:
		return http.StatusConflict
	case core.ErrCatRetryable:
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, err error) {
	respondJSON(w, httpStatusForDomainError(err), errorBody(err.Error()))
}
