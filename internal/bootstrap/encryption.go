package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/lotledger/lotledger/config"
	"github.com/lotledger/lotledger/internal/data/cryptoutil"
)

// BuildVault creates the credential vault from the configured scrypt
// parameters. Zero parameters fall back to cryptoutil.DefaultParams.
func BuildVault(cfg config.VaultConfig, logger *slog.Logger) (*cryptoutil.Vault, error) {
	p := cryptoutil.Params{N: cfg.N, R: cfg.R, P: cfg.P, KeyLen: cfg.KeyLen}
	if p == (cryptoutil.Params{}) {
		return cryptoutil.Default(), nil
	}
	v, err := cryptoutil.NewVault(p)
	if err != nil {
		return nil, fmt.Errorf("credential vault: %w", err)
	}
	if p != cryptoutil.DefaultParams && logger != nil {
		logger.Warn("credential vault uses non-default scrypt parameters",
			"n", p.N, "r", p.R, "p", p.P, "key_len", p.KeyLen)
	}
	return v, nil
}
