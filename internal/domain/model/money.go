package model

import (
	"math"

	apperrors "github.com/lotledger/lotledger/internal/errors"
)

// maxMoney is the largest value a NUMERIC(12,2) column holds.
const maxMoney = 9_999_999_999.99

// validateMoney accepts finite amounts in whole cents. Zero is allowed only
// when allowZero is set.
func validateMoney(field string, v float64, allowZero bool) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return apperrors.ValidationField(field, field+" must be a finite number")
	}
	switch {
	case v < 0, v == 0 && !allowZero:
		if allowZero {
			return apperrors.ValidationField(field, field+" must be non-negative")
		}
		return apperrors.ValidationField(field, field+" must be greater than 0")
	case v > maxMoney:
		return apperrors.ValidationField(field, field+" is too large")
	}
	cents := v * 100
	if math.Abs(cents-math.Round(cents)) > 1e-6 {
		return apperrors.ValidationField(field, field+" cannot have more than two decimal places")
	}
	return nil
}
