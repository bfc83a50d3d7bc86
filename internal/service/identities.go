package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lotledger/lotledger/internal/core"
	"github.com/lotledger/lotledger/internal/data/cryptoutil"
	domainauth "github.com/lotledger/lotledger/internal/domain/auth"
)

// IdentityServiceOptions groups dependencies for IdentityService.
type IdentityServiceOptions struct {
	Identities core.IdentityRepository
	// Vault defaults to cryptoutil.Default().
	Vault  cryptoutil.Hasher
	Logger *slog.Logger
}

// IdentityService provisions identities. Passwords are hashed before they
// reach the store.
type IdentityService struct {
	identities core.IdentityRepository
	vault      cryptoutil.Hasher
	logger     *slog.Logger
}

// NewIdentityService constructs a new IdentityService.
func NewIdentityService(opts IdentityServiceOptions) *IdentityService {
	if opts.Identities == nil {
		panic("IdentityRepository is required")
	}
	svc := &IdentityService{identities: opts.Identities, vault: opts.Vault, logger: opts.Logger}
	if svc.vault == nil {
		svc.vault = cryptoutil.Default()
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// Create validates req, hashes its password and stores the identity.
func (s *IdentityService) Create(ctx context.Context, req domainauth.CreateIdentityRequest) (*domainauth.Identity, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	record, err := s.vault.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	ident, err := s.identities.Create(ctx, domainauth.NewIdentity{
		Username:      req.Username,
		DisplayNumber: req.DisplayNumber,
		Email:         req.Email,
		Role:          req.Role,
		Credential:    record,
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "identity created", "identity_id", ident.ID, "role", ident.Role)
	return ident, nil
}
