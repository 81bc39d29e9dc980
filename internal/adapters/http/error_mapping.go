package httpadapter

import (
	"net/http"

	"github.com/agrisense/agrisense-engine/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidQuery):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDatasetNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrIndexUnavailable),
		domain.IsKind(err, domain.ErrStoreUnavailable),
		domain.IsKind(err, domain.ErrGenerationUnavailable),
		domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
