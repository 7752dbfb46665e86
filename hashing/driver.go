package hashing

import (
	"fmt"
	"strings"
)

// Algorithm identifies a password-hashing algorithm.
// Using a named string type prevents accidental confusion with plain strings.
type Algorithm string

const (
	// AlgoBcrypt selects the bcrypt driver.
	AlgoBcrypt Algorithm = "bcrypt"
	// AlgoArgon2i selects the Argon2i driver.
	AlgoArgon2i Algorithm = "argon2i"
	// AlgoArgon2id selects the Argon2id driver (recommended for new systems).
	AlgoArgon2id Algorithm = "argon2id"
)

// String implements [fmt.Stringer].
func (a Algorithm) String() string { return string(a) }

// Supported reports whether a is one of the three built-in algorithms.
func (a Algorithm) Supported() bool {
	switch a {
	case AlgoBcrypt, AlgoArgon2i, AlgoArgon2id:
		return true
	default:
		return false
	}
}

// Driver is the capability shared by the three built-in hashing strategies.
//
// The set of drivers is closed: the unexported sealed method keeps types
// outside this package from satisfying the interface, so a [Hasher] can
// switch over them exhaustively.
//
// All implementations are immutable and safe for concurrent use.
type Driver interface {
	// Algorithm returns the algorithm implemented by this driver.
	Algorithm() Algorithm

	// Make hashes a plaintext password and returns the encoded hash string.
	// A fresh cryptographic salt is generated for every call.
	Make(password string) (string, error)

	// Check verifies that password matches a hash produced by this driver's
	// algorithm. Returns (true, nil) on match, (false, nil) on mismatch, or
	// (false, err) if the hash is malformed or belongs to another algorithm.
	Check(password, hash string) (bool, error)

	// NeedsRehash reports whether hash was produced with parameters weaker
	// than the driver's configuration.
	NeedsRehash(hash string) (bool, error)

	// Info extracts metadata from an encoded hash string without verifying it.
	Info(hash string) (HashInfo, error)

	sealed()
}

// HashInfo carries metadata parsed from an encoded hash string.
type HashInfo struct {
	// Algorithm is the hashing algorithm that produced the hash.
	Algorithm Algorithm

	// Params holds algorithm-specific parameters extracted from the hash string.
	//
	// For bcrypt:
	//   "cost" → int
	//
	// For Argon2i and Argon2id:
	//   "version" → int    (Argon2 version number, typically 19)
	//   "memory"  → uint32 (KiB)
	//   "time"    → uint32 (iterations)
	//   "threads" → uint8  (degree of parallelism)
	//   "key_len" → uint32 (output key length in bytes)
	Params map[string]any
}

// DetectAlgorithm inspects a hash string and returns the [Algorithm] that
// produced it. It is a prefix check only and does not validate the rest of
// the hash.
//
// The second return value is false when the hash format is not recognised.
func DetectAlgorithm(hash string) (Algorithm, bool) {
	switch {
	case strings.HasPrefix(hash, "$argon2id$"):
		return AlgoArgon2id, true
	case strings.HasPrefix(hash, "$argon2i$"):
		return AlgoArgon2i, true
	// $2y$ is what PHP's password_hash emits; x/crypto/bcrypt reads it as-is.
	case strings.HasPrefix(hash, "$2a$"),
		strings.HasPrefix(hash, "$2b$"),
		strings.HasPrefix(hash, "$2y$"):
		return AlgoBcrypt, true
	default:
		return "", false
	}
}

// Info parses hash and returns the algorithm and parameters it carries,
// whichever of the three algorithms produced it.
func Info(hash string) (HashInfo, error) {
	algo, ok := DetectAlgorithm(hash)
	if !ok {
		return HashInfo{}, ErrInvalidHash
	}
	switch algo {
	case AlgoBcrypt:
		return bcryptInfo(hash)
	case AlgoArgon2i:
		return argon2iInfo(hash)
	case AlgoArgon2id:
		return argon2idInfo(hash)
	default:
		return HashInfo{}, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algo)
	}
}

// verifyLimits bounds the work a stored hash may demand of a verification.
// Hashes asking for more are treated as invalid rather than computed.
type verifyLimits struct {
	bcryptCost   int
	argon2Memory uint32
	argon2Time   uint32
}

// limitsFor returns the default limits raised to whatever opts itself
// configures, so a Hasher can always verify the hashes it creates.
func limitsFor(opts HashOptions) verifyLimits {
	lim := opts.Argon2().limits()
	lim.bcryptCost = max(VerifyBcryptCostLimit, opts.Cost)
	return lim
}

// checkAny verifies password against hash using whichever algorithm the
// hash prefix names. Parameters come from the hash itself, within lim.
func checkAny(password, hash string, lim verifyLimits) (bool, error) {
	algo, ok := DetectAlgorithm(hash)
	if !ok {
		return false, ErrInvalidHash
	}
	switch algo {
	case AlgoBcrypt:
		return bcryptCheck(password, hash, lim)
	case AlgoArgon2i:
		return argon2iCheck(password, hash, lim)
	case AlgoArgon2id:
		return argon2idCheck(password, hash, lim)
	default:
		return false, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algo)
	}
}

// expectAlgorithm returns ErrAlgorithmMismatch unless hash carries want's prefix.
func expectAlgorithm(hash string, want Algorithm) error {
	got, ok := DetectAlgorithm(hash)
	if !ok {
		return ErrInvalidHash
	}
	if got != want {
		return fmt.Errorf("%w: hash is %s, not %s", ErrAlgorithmMismatch, got, want)
	}
	return nil
}
