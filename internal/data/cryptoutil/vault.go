// Package cryptoutil stores and verifies identity credentials.
//
// A stored credential is either a hashed record of the form
//
//	scrypt$v=1$n=32768,r=8,p=1,l=64$<hex salt>$<hex digest>
//
// or, for identities created before hashing was introduced, the plaintext
// itself. Records carry their own cost parameters, so changing the vault's
// parameters never invalidates existing hashes. Unversioned records of the
// form "scrypt$<hex salt>$<hex digest>" verify with the vault's parameters.
package cryptoutil

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// SchemeScrypt is the scheme tag that starts every hashed record.
const SchemeScrypt = "scrypt"

// RecordVersion is the version written by Hash.
const RecordVersion = 1

const (
	schemePrefix = SchemeScrypt + "$"
	saltLength   = 16

	// Upper bounds for parameters read back from a record.
	maxN      = 1 << 20
	maxRP     = 1 << 10
	maxKeyLen = 1024
)

// Params are the scrypt cost parameters.
type Params struct {
	N      int
	R      int
	P      int
	KeyLen int
}

func (p Params) validate() error {
	if p.N <= 1 || p.N&(p.N-1) != 0 {
		return fmt.Errorf("scrypt N must be a power of two > 1, got %d", p.N)
	}
	if p.R < 1 || p.P < 1 || p.KeyLen < 16 {
		return fmt.Errorf("invalid scrypt params r=%d p=%d keylen=%d", p.R, p.P, p.KeyLen)
	}
	return nil
}

func (p Params) encode() string {
	return fmt.Sprintf("n=%d,r=%d,p=%d,l=%d", p.N, p.R, p.P, p.KeyLen)
}

// DefaultParams are the production cost parameters.
var DefaultParams = Params{N: 32768, R: 8, P: 1, KeyLen: 64}

// Hasher hashes and verifies credentials.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, stored string) bool
	// NeedsRehash reports whether stored should be replaced by a fresh Hash.
	NeedsRehash(stored string) bool
}

// Vault implements Hasher using scrypt.
type Vault struct {
	params Params
	rand   io.Reader
}

var _ Hasher = (*Vault)(nil)

// NewVault constructs a Vault with the given parameters.
func NewVault(p Params) (*Vault, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Vault{params: p, rand: rand.Reader}, nil
}

var defaultVault = &Vault{params: DefaultParams, rand: rand.Reader}

// Default returns the vault configured with DefaultParams.
func Default() *Vault { return defaultVault }

// Hash derives a new record for plaintext using a fresh random salt.
func (v *Vault) Hash(plaintext string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(v.rand, salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	digest, err := derive(plaintext, salt, v.params)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%sv=%d$%s$%s$%s", schemePrefix, RecordVersion, v.params.encode(),
		hex.EncodeToString(salt), hex.EncodeToString(digest)), nil
}

// Verify reports whether plaintext matches stored. Malformed hashed records
// and empty stored values never match. Any value without the scheme tag is
// treated as a legacy plaintext credential. Both paths compare in constant
// time.
func (v *Vault) Verify(plaintext, stored string) bool {
	if stored == "" {
		return false
	}
	if !IsHashed(stored) {
		return subtle.ConstantTimeCompare([]byte(plaintext), []byte(stored)) == 1
	}
	rec, err := v.parseRecord(stored)
	if err != nil {
		return false
	}
	got, err := derive(plaintext, rec.salt, rec.params)
	if err != nil || len(got) != len(rec.digest) {
		return false
	}
	return subtle.ConstantTimeCompare(got, rec.digest) == 1
}

// NeedsRehash is true for plaintext credentials, unversioned records and
// records hashed with parameters other than the vault's. Malformed records
// report false; they cannot be rehashed without the plaintext verifying.
func (v *Vault) NeedsRehash(stored string) bool {
	if stored == "" {
		return false
	}
	if !IsHashed(stored) {
		return true
	}
	rec, err := v.parseRecord(stored)
	if err != nil {
		return false
	}
	return rec.version < RecordVersion || rec.params != v.params
}

func derive(plaintext string, salt []byte, p Params) ([]byte, error) {
	key, err := scrypt.Key([]byte(plaintext), salt, p.N, p.R, p.P, p.KeyLen)
	if err != nil {
		return nil, fmt.Errorf("scrypt: %w", err)
	}
	return key, nil
}

var errMalformedRecord = errors.New("malformed credential record")

type record struct {
	version int
	params  Params
	salt    []byte
	digest  []byte
}

func (v *Vault) parseRecord(stored string) (record, error) {
	parts := strings.Split(stored, "$")
	if parts[0] != SchemeScrypt {
		return record{}, errMalformedRecord
	}
	var rec record
	switch len(parts) {
	case 3:
		rec.params = v.params
	case 5:
		version, ok := strings.CutPrefix(parts[1], "v=")
		if !ok || version != strconv.Itoa(RecordVersion) {
			return record{}, errMalformedRecord
		}
		params, err := parseParams(parts[2])
		if err != nil {
			return record{}, err
		}
		rec.version = RecordVersion
		rec.params = params
		parts = []string{parts[0], parts[3], parts[4]}
	default:
		return record{}, errMalformedRecord
	}
	if parts[1] == "" || parts[2] == "" {
		return record{}, errMalformedRecord
	}
	var err error
	if rec.salt, err = hex.DecodeString(parts[1]); err != nil {
		return record{}, errMalformedRecord
	}
	if rec.digest, err = hex.DecodeString(parts[2]); err != nil {
		return record{}, errMalformedRecord
	}
	return rec, nil
}

// parseParams reads "n=..,r=..,p=..,l=.." in that order.
func parseParams(s string) (Params, error) {
	fields := strings.Split(s, ",")
	if len(fields) != 4 {
		return Params{}, errMalformedRecord
	}
	vals := make([]int, len(fields))
	for i, key := range []string{"n", "r", "p", "l"} {
		raw, ok := strings.CutPrefix(fields[i], key+"=")
		if !ok {
			return Params{}, errMalformedRecord
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Params{}, errMalformedRecord
		}
		vals[i] = n
	}
	p := Params{N: vals[0], R: vals[1], P: vals[2], KeyLen: vals[3]}
	if p.validate() != nil || p.N > maxN || p.R > maxRP || p.P > maxRP || p.KeyLen > maxKeyLen {
		return Params{}, errMalformedRecord
	}
	return p, nil
}

// IsHashed classifies stored by its scheme tag only; it does not validate
// the remainder of the record.
func IsHashed(stored string) bool {
	return strings.HasPrefix(stored, schemePrefix)
}

// Hash hashes plaintext with the default vault.
func Hash(plaintext string) (string, error) { return defaultVault.Hash(plaintext) }

// Verify verifies plaintext against stored with the default vault.
func Verify(plaintext, stored string) bool { return defaultVault.Verify(plaintext, stored) }
