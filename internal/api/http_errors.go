package api

import (
	"errors"
	"net/http"

	"github.com/gtmcore/orchestrator/internal/core"
)

// httpStatusForDomainError maps a core.DomainError category onto an
// HTTP status code. The bool reports whether err was a DomainError at
// all; callers fall back to 500 when it isn't.
func httpStatusForDomainError(err error) (int, bool) {
	var domErr *core.DomainError
	if !errors.As(err, &domErr) || domErr == nil {
		return 0, false
	}

	switch domErr.Category {
	case core.ErrCatInput:
		if domErr.Code == "NOT_FOUND" {
			return http.StatusNotFound, true
		}
		return http.StatusUnprocessableEntity, true
	case core.ErrCatMerge:
		return http.StatusConflict, true
	case core.ErrCatProvider:
		return http.StatusBadGateway, true
	case core.ErrCatValidatorBlock:
		return http.StatusConflict, true
	case core.ErrCatStore:
		return http.StatusServiceUnavailable, true
	case core.ErrCatBudget:
		return http.StatusPaymentRequired, true
	case core.ErrCatCancelled:
		return 499, true
	case core.ErrCatInternal:
		return http.StatusInternalServerError, true
	default:
		return http.StatusInternalServerError, true
	}
}

// errorBody is the JSON envelope returned for every failed request.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Category string                 `json:"category,omitempty"`
	Code     string                 `json:"code"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// toErrorBody converts err into the API's error envelope, defaulting
// to an opaque internal error for anything that isn't a DomainError.
func toErrorBody(err error) errorBody {
	var domErr *core.DomainError
	if errors.As(err, &domErr) && domErr != nil {
		return errorBody{Error: errorDetail{
			Category: string(domErr.Category),
			Code:     domErr.Code,
			Message:  domErr.Message,
			Details:  domErr.Details,
		}}
	}
	return errorBody{Error: errorDetail{Code: "INTERNAL", Message: err.Error()}}
}
