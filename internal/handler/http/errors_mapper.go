package http

import (
	"errors"
	"net/http"

	"github.com/dianalab/diana/internal/account"
	"github.com/dianalab/diana/internal/entitlement"
	"github.com/dianalab/diana/internal/inference"
	"github.com/dianalab/diana/internal/store"
	"github.com/dianalab/diana/internal/vision"
)

var errorStatusMap = map[error]int{
	entitlement.ErrDenied:         http.StatusPaymentRequired,
	inference.ErrModelUnavailable: http.StatusServiceUnavailable,
	inference.ErrModelLoad:        http.StatusInternalServerError,
	inference.ErrInferenceRuntime: http.StatusInternalServerError,
	vision.ErrUnsupportedFormat:   http.StatusBadRequest,
	vision.ErrDecode:              http.StatusBadRequest,
	account.ErrUnauthorized:       http.StatusUnauthorized,
	account.ErrNotSignedIn:        http.StatusUnauthorized,
	store.ErrQuotaFileCorrupted:   http.StatusInternalServerError,
	store.ErrBuildingSQLQuery:     http.StatusInternalServerError,
	store.ErrExecutingQuery:       http.StatusInternalServerError,
	store.ErrScanningRow:          http.StatusInternalServerError,
}

func statusFromError(err error) int {
	var rejection *inference.GateRejection
	if errors.As(err, &rejection) {
		return http.StatusUnprocessableEntity
	}

	for target, status := range errorStatusMap {
		if errors.Is(err, target) {
			return status
		}
	}
	return http.StatusInternalServerError
}
