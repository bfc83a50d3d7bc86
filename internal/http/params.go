package httpx

import (
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/lotledger/lotledger/internal/errors"
)

// pathID parses a positive integer path value. Decimals, exponents, signs
// and out-of-range values are rejected before any store call.
func pathID(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.PathValue(name))
	if raw == "" {
		return 0, apperrors.ValidationField(name, name+" is required")
	}
	if raw[0] == '+' || raw[0] == '-' {
		return 0, apperrors.ValidationField(name, name+" must be a positive integer")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, apperrors.ValidationField(name, name+" must be a positive integer")
	}
	return id, nil
}

// boolQuery reads an optional boolean query parameter.
func boolQuery(r *http.Request, key string, def bool) (bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, apperrors.ValidationField(key, key+" must be a boolean")
	}
	return b, nil
}
