package errors

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// "Key (field)=(value) already exists."
	reKeyField = regexp.MustCompile(`Key \(([^)]+)\)=`)
	// "... is still referenced from table ..."
	reReferencedFrom = regexp.MustCompile(`is still referenced from table "?([^"]+)"?`)
	// "... is not present in table ..."
	reNotPresent = regexp.MustCompile(`is not present in table "?([^"]+)"?`)
)

// tableNames maps tables to the names shown to users.
var tableNames = map[string]string{
	"identities": "Identity",
	"lots":       "Lot",
	"items":      "Item",
	"bids":       "Bid",
}

// MapDBError maps database errors to AppError instances:
//   - pgx.ErrNoRows → NotFound
//   - unique violations → Conflict
//   - foreign key violations → ForeignKey
//   - check and NOT NULL violations → Validation
//   - context deadline/cancel → Timeout/Canceled
//
// Unrecognized errors are returned unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &AppError{Code: ErrCodeTimeout, Message: "Request timed out. Please try again.", Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &AppError{Code: ErrCodeCanceled, Message: "Request was canceled.", Cause: err}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &AppError{Code: ErrCodeNotFound, Message: "Resource not found", Cause: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}
	return err
}

func mapPgError(pgErr *pgconn.PgError) error {
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return &AppError{
			Code:    ErrCodeConflict,
			Message: "This value already exists. Please choose a different one.",
			Field:   uniqueField(pgErr),
			Cause:   pgErr,
		}
	case pgerrcode.ForeignKeyViolation:
		return &AppError{Code: ErrCodeForeignKey, Message: foreignKeyMessage(pgErr), Cause: pgErr}
	case pgerrcode.CheckViolation:
		return validationFromColumn(pgErr, "This field has an invalid value.", "Invalid data. Please check your input.")
	case pgerrcode.NotNullViolation:
		return validationFromColumn(pgErr, "This field is required.", "Required field is missing. Please check your input.")
	default:
		return &AppError{Code: ErrCodeInternal, Message: "A database error occurred. Please try again.", Cause: pgErr}
	}
}

func validationFromColumn(pgErr *pgconn.PgError, withField, generic string) error {
	if pgErr.ColumnName != "" {
		return &AppError{Code: ErrCodeValidation, Message: withField, Field: pgErr.ColumnName, Cause: pgErr}
	}
	return &AppError{Code: ErrCodeValidation, Message: generic, Cause: pgErr}
}

// uniqueField prefers column metadata, then the Detail text, then the
// constraint name ("identities_username_key" → "username").
func uniqueField(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return m[1]
	}
	return inferFieldFromConstraint(pgErr.ConstraintName)
}

func foreignKeyMessage(pgErr *pgconn.PgError) string {
	if m := reReferencedFrom.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return "Cannot delete because this record is in use by " + tableDisplayName(m[1]) + "."
	}
	if m := reNotPresent.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return "Cannot complete operation because the referenced " + tableDisplayName(m[1]) + " does not exist."
	}
	if pgErr.TableName != "" {
		return "Cannot complete operation because this record is in use by " + tableDisplayName(pgErr.TableName) + "."
	}
	return "Cannot complete operation because this record is in use."
}

// inferFieldFromConstraint handles the "table_field_key" shape only.
// Multi-column constraint names are ambiguous and return "".
func inferFieldFromConstraint(constraintName string) string {
	parts := strings.Split(constraintName, "_")
	if len(parts) != 3 {
		return ""
	}
	switch strings.ToLower(parts[1]) {
	case "lower", "upper", "trim":
		return ""
	}
	return parts[1]
}

func tableDisplayName(table string) string {
	table = strings.ToLower(strings.TrimSpace(table))
	if name, ok := tableNames[table]; ok {
		return name
	}
	words := strings.Split(strings.ReplaceAll(table, "_", " "), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
