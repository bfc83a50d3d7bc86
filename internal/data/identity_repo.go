package data

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lotledger/lotledger/internal/data/database"
	domainauth "github.com/lotledger/lotledger/internal/domain/auth"
	"github.com/lotledger/lotledger/internal/domain/model"
	apperrors "github.com/lotledger/lotledger/internal/errors"
)

const identityColumnList = `id, username, display_number, email, role, credential, external_id, created_at`

// IdentityRepo provides database operations for identities.
type IdentityRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewIdentityRepo creates a new IdentityRepo using the system clock.
func NewIdentityRepo(db *sql.DB) *IdentityRepo {
	return &IdentityRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewIdentityRepoWithTimeProvider creates a new IdentityRepo with a custom time provider (useful for tests).
func NewIdentityRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *IdentityRepo {
	return &IdentityRepo{DB: db, timeProvider: tp}
}

// Create inserts a new identity. The credential must already be in its stored form.
func (r *IdentityRepo) Create(ctx context.Context, in domainauth.NewIdentity) (*domainauth.Identity, error) {
	var credential *string
	if in.Credential != "" {
		credential = &in.Credential
	}
	out, err := collectOne[domainauth.Identity](ctx, r.DB, `
		INSERT INTO identities (username, display_number, email, role, credential, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+identityColumnList,
		strings.TrimSpace(in.Username),
		in.DisplayNumber,
		in.Email,
		string(in.Role),
		credential,
		nowFrom(r.timeProvider),
	)
	if err != nil {
		return nil, fmt.Errorf("create identity: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// GetByID retrieves an identity by id.
func (r *IdentityRepo) GetByID(ctx context.Context, id int64) (*domainauth.Identity, error) {
	return r.getBy(ctx, "id", id)
}

// GetByUsername retrieves an identity by its exact username.
func (r *IdentityRepo) GetByUsername(ctx context.Context, username string) (*domainauth.Identity, error) {
	return r.getBy(ctx, "username", username)
}

// GetByExternalID retrieves an identity linked to an external provider subject.
func (r *IdentityRepo) GetByExternalID(ctx context.Context, externalID string) (*domainauth.Identity, error) {
	return r.getBy(ctx, "external_id", externalID)
}

func (r *IdentityRepo) getBy(ctx context.Context, column string, value any) (*domainauth.Identity, error) {
	query, args := database.BuildListQuery(database.NewListQueryOptions("identities",
		database.WithColumns(identityColumns()...),
		database.WithCondition(database.WhereCond(column, database.Equal, value)),
		database.WithLimit(1),
	))
	out, err := collectOne[domainauth.Identity](ctx, r.DB, query, args...)
	if err != nil {
		return nil, mapRowErr(err, domainauth.ErrIdentityNotFound)
	}
	return out, nil
}

// ListPage returns up to q.Limit identities with id greater than q.After, ordered by id.
func (r *IdentityRepo) ListPage(ctx context.Context, q model.PageQuery) ([]domainauth.Identity, error) {
	query, args := database.BuildListQuery(database.NewListQueryOptions("identities",
		database.WithColumns(identityColumns()...),
		database.WithKeyset("id", q.After, pageLimit(q.Limit)),
	))
	rows, err := collectRows[domainauth.Identity](ctx, r.DB, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", apperrors.MapDBError(err))
	}
	return rows, nil
}

// UpdateCredential replaces the stored credential record.
func (r *IdentityRepo) UpdateCredential(ctx context.Context, id int64, credential string) error {
	n, err := execAffected(ctx, r.DB, `UPDATE identities SET credential = $1 WHERE id = $2`, credential, id)
	if err != nil {
		return fmt.Errorf("update credential: %w", apperrors.MapDBError(err))
	}
	if n == 0 {
		return domainauth.ErrIdentityNotFound
	}
	return nil
}

// UpdateMigrated stores the hashed credential and the external id in one
// statement. Identities that already carry an external id are left untouched
// and reported as not found.
func (r *IdentityRepo) UpdateMigrated(ctx context.Context, in domainauth.MigratedCredential) error {
	n, err := execAffected(ctx, r.DB, `
		UPDATE identities
		SET credential = $1, external_id = $2
		WHERE id = $3 AND external_id IS NULL`,
		in.Credential, in.ExternalID, in.IdentityID,
	)
	if err != nil {
		return fmt.Errorf("update migrated identity: %w", apperrors.MapDBError(err))
	}
	if n == 0 {
		return domainauth.ErrIdentityNotFound
	}
	return nil
}

func identityColumns() []string {
	return []string{"id", "username", "display_number", "email", "role", "credential", "external_id", "created_at"}
}
