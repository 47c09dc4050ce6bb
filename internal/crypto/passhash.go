// Package crypto implements the dual credential hash derivations required
// by the two game client authentication paths.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used for both derivations. The
// stored hashes on live servers were generated at this cost.
const DefaultCost = 12

// Hasher derives the two account credential hashes from one plaintext.
// The two derivations mirror two independently-evolved client verifiers
// and must not be unified: the launcher verifies bcrypt over a SHA-256
// hex digest of username+password, the test client verifies bcrypt over
// the raw password.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher with the given bcrypt cost.
// Costs outside bcrypt's supported range are left for bcrypt to reject.
func NewHasher(cost int) *Hasher { return &Hasher{cost: cost} }

// LauncherHash derives the launcher-compatible hash.
//
// Stage 1: lowercase hex of SHA-256(username + password), username in the
// exact case stored in the account row.
// Stage 2: bcrypt over that 64-char hex string with a fresh random salt.
//
// Two calls with identical input produce different outputs; verify with
// [VerifyLauncher], not equality.
func (h *Hasher) LauncherHash(username, password string) ([]byte, error) {
	sum := sha256.Sum256([]byte(username + password))
	hexDigest := hex.EncodeToString(sum[:])
	return bcrypt.GenerateFromPassword([]byte(hexDigest), h.cost)
}

// ClientHash derives the test-client hash: bcrypt directly over the
// plaintext with a fresh random salt. bcrypt only reads the first 72
// bytes of its input; that truncation is part of the stored-hash contract
// and is deliberately not compensated for.
func (h *Hasher) ClientHash(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), h.cost)
}

// VerifyLauncher checks plaintext credentials against a stored launcher
// hash, replaying the two-stage derivation the launcher performs.
func VerifyLauncher(hash []byte, username, password string) error {
	sum := sha256.Sum256([]byte(username + password))
	hexDigest := hex.EncodeToString(sum[:])
	return bcrypt.CompareHashAndPassword(hash, []byte(hexDigest))
}

// VerifyClient checks a plaintext password against a stored test-client hash.
func VerifyClient(hash []byte, password string) error {
	return bcrypt.CompareHashAndPassword(hash, []byte(password))
}
