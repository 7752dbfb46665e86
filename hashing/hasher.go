package hashing

import "fmt"

// Hasher creates, verifies and audits password hashes using one algorithm
// chosen at construction.
//
// The driver is selected once from [HashOptions].Algo and never changes.
// Hashes produced by any of the three supported algorithms can still be
// verified, which lets a deployment switch algorithms and migrate stored
// hashes lazily:
//
//	if h.Verify(password, stored) {
//	    if h.NeedsRehash(stored) {
//	        upgraded, _ := h.Create(password)
//	        persist(userID, upgraded)
//	    }
//	}
//
// A Hasher holds no mutable state and is safe for concurrent use by multiple
// goroutines. Create and Verify block for as long as the configured cost
// dictates; offload them to a worker if the caller must not block.
type Hasher struct {
	opts   HashOptions
	driver Driver
	limits verifyLimits
}

// NewHasher resolves raw with [ResolveOptions] and builds a Hasher for the
// selected algorithm. A nil map selects bcrypt with cost 10.
//
//	h, err := hashing.NewHasher(map[string]any{
//	    "algo":        "argon2id",
//	    "memory_cost": 65536,
//	    "time_cost":   4,
//	    "threads":     2,
//	})
func NewHasher(raw map[string]any) (*Hasher, error) {
	opts, err := ResolveOptions(raw)
	if err != nil {
		return nil, err
	}
	return NewHasherFromOptions(opts)
}

// NewHasherFromOptions builds a Hasher from an already typed configuration.
// opts is validated the same way [ResolveOptions] validates a raw map.
func NewHasherFromOptions(opts HashOptions) (*Hasher, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	d, err := newDriver(opts)
	if err != nil {
		return nil, err
	}
	return &Hasher{opts: opts, driver: d, limits: limitsFor(opts)}, nil
}

func newDriver(opts HashOptions) (Driver, error) {
	switch opts.Algo {
	case AlgoBcrypt:
		return NewBcryptDriver(opts.Cost)
	case AlgoArgon2i:
		return NewArgon2iDriver(opts.Argon2())
	case AlgoArgon2id:
		return NewArgon2idDriver(opts.Argon2())
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, opts.Algo)
	}
}

// Algorithm returns the algorithm new hashes are created with.
func (h *Hasher) Algorithm() Algorithm { return h.opts.Algo }

// Options returns the resolved configuration.
func (h *Hasher) Options() HashOptions { return h.opts }

// Driver returns the strategy selected at construction.
func (h *Hasher) Driver() Driver { return h.driver }

// Create hashes plaintext with the configured algorithm and a fresh salt.
//
// It returns an error wrapping [ErrHashingResource] when randomness or
// memory for the primitive could not be obtained.
func (h *Hasher) Create(plaintext string) (string, error) {
	return h.driver.Make(plaintext)
}

// Verify reports whether plaintext matches encoded.
//
// The algorithm and its parameters are read from encoded, so hashes made
// by any supported algorithm verify regardless of the Hasher's own
// configuration. The digest comparison is constant-time. Malformed or
// unrecognised hashes return false; Verify never fails open.
//
// Stored parameters are trusted only up to VerifyBcryptCostLimit,
// VerifyArgon2MemoryLimit and VerifyArgon2TimeLimit, or the Hasher's own
// configured costs where those are higher. A hash demanding more work
// does not verify.
func (h *Hasher) Verify(plaintext, encoded string) bool {
	ok, err := checkAny(plaintext, encoded, h.limits)
	return err == nil && ok
}

// NeedsRehash reports whether encoded should be replaced by a fresh hash
// from [Hasher.Create].
//
// It returns true when:
//  1. encoded was produced by a different algorithm than the configured one,
//  2. encoded uses weaker parameters than configured (lower cost, memory,
//     time or threads), or
//  3. encoded cannot be parsed at all.
func (h *Hasher) NeedsRehash(encoded string) bool {
	algo, ok := DetectAlgorithm(encoded)
	if !ok || algo != h.opts.Algo {
		return true
	}
	needs, err := h.driver.NeedsRehash(encoded)
	return err != nil || needs
}

// Info extracts the algorithm and parameters embedded in encoded.
func (h *Hasher) Info(encoded string) (HashInfo, error) {
	return Info(encoded)
}
