package errors

import (
	"context"
	goerrors "errors"
	"reflect"
	"strings"

	domainauth "github.com/lotledger/lotledger/internal/domain/auth"
	apperrors "github.com/lotledger/lotledger/internal/errors"
)

var sentinels = []struct {
	err   error
	class string
}{
	{domainauth.ErrIdentityNotFound, "identity_not_found"},
	{domainauth.ErrCredentialMissing, "credential_missing"},
	{domainauth.ErrInvalidCredentials, "invalid_credentials"},
	{domainauth.ErrGuestDisabled, "guest_disabled"},
	{domainauth.ErrUnauthenticated, "unauthenticated"},
	{domainauth.ErrForbidden, "forbidden"},
	{context.DeadlineExceeded, "timeout"},
	{context.Canceled, "canceled"},
}

// Classify returns a short label for tagging metrics. Known sentinels and
// AppError codes come first; anything else is named after the innermost
// concrete error type in snake_case.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	for _, s := range sentinels {
		if goerrors.Is(err, s.err) {
			return s.class
		}
	}
	var appErr *apperrors.AppError
	if goerrors.As(err, &appErr) && appErr.Code != "" {
		return string(appErr.Code)
	}

	for {
		inner := goerrors.Unwrap(err)
		if inner == nil {
			break
		}
		err = inner
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}
	name := strings.ReplaceAll(strings.ToLower(t.String()), ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}
