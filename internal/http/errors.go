package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	domainauth "github.com/lotledger/lotledger/internal/domain/auth"
	"github.com/lotledger/lotledger/internal/domain/model"
	apperrors "github.com/lotledger/lotledger/internal/errors"
	"github.com/lotledger/lotledger/internal/service"
)

// sentinelStatus maps domain sentinels to a status and error kind. Login
// failures stay distinguishable by kind while sharing 401.
var sentinelStatus = []struct {
	err    error
	status int
	kind   string
}{
	{domainauth.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{domainauth.ErrIdentityNotFound, http.StatusUnauthorized, "identity_not_found"},
	{domainauth.ErrCredentialMissing, http.StatusUnauthorized, "credential_missing"},
	{domainauth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{domainauth.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domainauth.ErrGuestDisabled, http.StatusForbidden, "guest_disabled"},
	{model.ErrLotNotFound, http.StatusNotFound, "not_found"},
	{model.ErrItemNotFound, http.StatusNotFound, "not_found"},
	{model.ErrLotLocked, http.StatusBadRequest, "validation"},
}

var codeStatus = map[apperrors.ErrorCode]int{
	apperrors.ErrCodeUnauthenticated: http.StatusUnauthorized,
	apperrors.ErrCodeForbidden:       http.StatusForbidden,
	apperrors.ErrCodeValidation:      http.StatusBadRequest,
	apperrors.ErrCodeNotFound:        http.StatusNotFound,
	apperrors.ErrCodeConflict:        http.StatusConflict,
	apperrors.ErrCodeForeignKey:      http.StatusConflict,
	apperrors.ErrCodeUpstream:        http.StatusBadGateway,
	apperrors.ErrCodeTimeout:         http.StatusGatewayTimeout,
	apperrors.ErrCodeCanceled:        http.StatusServiceUnavailable,
	apperrors.ErrCodeInternal:        http.StatusInternalServerError,
}

// writeServiceError translates a service error into a JSON response. Errors
// that carry no known kind came from a failed store or provider call and are
// reported as upstream failures.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	for _, s := range sentinelStatus {
		if errors.Is(err, s.err) {
			WriteError(w, ErrorParams{Code: s.status, ErrCode: s.kind, Err: s.err})
			return
		}
	}
	if service.IsSSODisabled(err) {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "sso_disabled", Err: err})
		return
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status, ok := codeStatus[appErr.Code]
		if !ok {
			status = http.StatusInternalServerError
		}
		if status >= http.StatusInternalServerError {
			logger.ErrorContext(r.Context(), "request failed", "error", err, "code", appErr.Code)
		}
		// Client-facing messages never include the wrapped cause.
		WriteError(w, ErrorParams{
			Code:    status,
			ErrCode: string(appErr.Code),
			Err:     errors.New(appErr.Message),
			Field:   appErr.Field,
		})
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		logger.WarnContext(r.Context(), "request timed out", "error", err)
		WriteError(w, ErrorParams{Code: http.StatusGatewayTimeout, ErrCode: "timeout", Err: errors.New("request timed out")})
		return
	}

	logger.ErrorContext(r.Context(), "upstream call failed", "error", err, "path", r.URL.Path)
	WriteError(w, ErrorParams{
		Code:    http.StatusBadGateway,
		ErrCode: string(apperrors.ErrCodeUpstream),
		Err:     errors.New("a backing service call failed"),
	})
}
