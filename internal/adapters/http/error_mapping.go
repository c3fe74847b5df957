package httpadapter

import (
	"net/http"

	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
)

// Error codes returned in the "code" field of error responses.
const (
	codeInvalidInput     = "invalid_input"
	codeNotFound         = "not_found"
	codeUnavailable      = "temporarily_unavailable"
	codeRetrievalFailed  = "retrieval_failed"
	codeGenerationFailed = "generation_failed"
	codeRateLimited      = "rate_limited"
	codeOverloaded       = "overloaded"
	codeInternal         = "internal_error"
)

func mapErrorToHTTPStatus(err error) (int, string) {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, codeInvalidInput
	case domain.IsKind(err, domain.ErrRunNotFound):
		return http.StatusNotFound, codeNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable, codeUnavailable
	case domain.IsKind(err, domain.ErrRetrieval):
		return http.StatusBadGateway, codeRetrievalFailed
	case domain.IsKind(err, domain.ErrGeneration):
		return http.StatusBadGateway, codeGenerationFailed
	default:
		return http.StatusInternalServerError, codeInternal
	}
}
