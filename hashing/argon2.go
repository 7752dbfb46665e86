package hashing

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/argon2"
)

// ──────────────────────────────────────────────────────────────────────────────
// Parameters
// ──────────────────────────────────────────────────────────────────────────────

const (
	// DefaultArgon2MemoryCost is the default memory cost in KiB (64 MiB),
	// PHP's PASSWORD_ARGON2_DEFAULT_MEMORY_COST.
	DefaultArgon2MemoryCost uint32 = 64 * 1024

	// DefaultArgon2TimeCost is the default number of passes over memory,
	// PHP's PASSWORD_ARGON2_DEFAULT_TIME_COST.
	DefaultArgon2TimeCost uint32 = 4

	// DefaultArgon2Threads is the default degree of parallelism,
	// PHP's PASSWORD_ARGON2_DEFAULT_THREADS.
	DefaultArgon2Threads uint8 = 1

	// MaxArgon2MemoryCost is the largest memory cost (4 GiB) this package
	// will allocate. Create fails with ErrHashingResource above it.
	MaxArgon2MemoryCost uint32 = 4 * 1024 * 1024

	// VerifyArgon2MemoryLimit (1 GiB) and VerifyArgon2TimeLimit cap the
	// parameters a stored hash may carry into Verify, unless the configured
	// parameters are higher.
	VerifyArgon2MemoryLimit uint32 = 1024 * 1024
	VerifyArgon2TimeLimit   uint32 = 16

	argon2KeyLen  uint32 = 32
	argon2SaltLen uint32 = 16

	// argon2Version is the Argon2 specification version encoded in hashes.
	argon2Version = argon2.Version // 0x13 = 19
)

// Argon2Params configures an [Argon2iDriver] or [Argon2idDriver].
//
// All parameters are encoded into the output hash string (PHC format), so
// changing them only affects newly produced hashes; existing hashes remain
// verifiable.
type Argon2Params struct {
	// MemoryCost is the memory cost in KiB. Minimum: 8 × Threads.
	MemoryCost uint32

	// TimeCost is the number of passes over memory. Minimum: 1.
	TimeCost uint32

	// Threads is the degree of parallelism. Minimum: 1.
	Threads uint8
}

// DefaultArgon2Params returns the PHP-compatible defaults.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		MemoryCost: DefaultArgon2MemoryCost,
		TimeCost:   DefaultArgon2TimeCost,
		Threads:    DefaultArgon2Threads,
	}
}

func validateArgon2Params(p Argon2Params) error {
	if p.TimeCost < 1 {
		return fmt.Errorf("%w: argon2 time_cost must be ≥ 1, got %d", ErrInvalidOption, p.TimeCost)
	}
	if p.Threads < 1 {
		return fmt.Errorf("%w: argon2 threads must be ≥ 1, got %d", ErrInvalidOption, p.Threads)
	}
	if p.MemoryCost < 8*uint32(p.Threads) {
		return fmt.Errorf("%w: argon2 memory_cost (%d KiB) must be ≥ 8×threads (%d KiB)",
			ErrInvalidOption, p.MemoryCost, 8*uint32(p.Threads))
	}
	return nil
}

// weakerThan reports whether stored parameters fall short of p.
func (p Argon2Params) weakerThan(stored argon2Encoded) bool {
	return stored.memory < p.MemoryCost ||
		stored.time < p.TimeCost ||
		stored.threads < p.Threads ||
		stored.keyLen != argon2KeyLen
}

// ──────────────────────────────────────────────────────────────────────────────
// PHC string format helpers
// ──────────────────────────────────────────────────────────────────────────────

// argon2Encoded holds parameters and raw values decoded from a PHC hash string.
type argon2Encoded struct {
	variant Algorithm
	version uint32
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
	salt    []byte
	hash    []byte
}

// usable reports whether the primitive can be run with these parameters
// without panicking or exceeding lim.
func (e argon2Encoded) usable(lim verifyLimits) error {
	switch {
	case e.version != argon2Version:
		return fmt.Errorf("%w: unsupported argon2 version %d", ErrInvalidHash, e.version)
	case e.time < 1 || e.threads < 1:
		return fmt.Errorf("%w: argon2 t and p must be ≥ 1", ErrInvalidHash)
	case e.memory > lim.argon2Memory:
		return fmt.Errorf("%w: argon2 memory %d KiB exceeds verify limit %d KiB", ErrInvalidHash, e.memory, lim.argon2Memory)
	case e.time > lim.argon2Time:
		return fmt.Errorf("%w: argon2 time %d exceeds verify limit %d", ErrInvalidHash, e.time, lim.argon2Time)
	case len(e.salt) == 0 || len(e.hash) == 0:
		return fmt.Errorf("%w: empty argon2 salt or key", ErrInvalidHash)
	}
	return nil
}

func (e argon2Encoded) info() HashInfo {
	return HashInfo{
		Algorithm: e.variant,
		Params: map[string]any{
			"version": int(e.version),
			"memory":  e.memory,
			"time":    e.time,
			"threads": e.threads,
			"key_len": e.keyLen,
		},
	}
}

// encodePHC serialises an Argon2 hash in PHC String Format:
//
//	$argon2i$v=19$m=65536,t=4,p=1$<salt_base64>$<hash_base64>
//
// The base64 encoding uses the standard alphabet without padding, the same
// layout PHP's password_hash and libargon2 produce.
func encodePHC(variant Algorithm, memory, time uint32, threads uint8, salt, hash []byte) string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		string(variant),
		argon2Version,
		memory,
		time,
		threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)
}

// decodePHC parses an Argon2 PHC hash string and returns its components.
func decodePHC(encoded string) (argon2Encoded, error) {
	// Split on "$"; the leading "$" produces an empty first element.
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return argon2Encoded{}, fmt.Errorf("%w: expected 5-segment PHC string, got %d segments",
			ErrInvalidHash, len(parts)-1)
	}

	var variant Algorithm
	switch parts[1] {
	case string(AlgoArgon2i):
		variant = AlgoArgon2i
	case string(AlgoArgon2id):
		variant = AlgoArgon2id
	default:
		return argon2Encoded{}, fmt.Errorf("%w: unknown argon2 variant %q", ErrInvalidHash, parts[1])
	}

	version, err := parseKV(parts[2], "v")
	if err != nil {
		return argon2Encoded{}, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}

	kvs, err := parseParams(parts[3])
	if err != nil {
		return argon2Encoded{}, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	memory, ok1 := kvs["m"]
	time, ok2 := kvs["t"]
	threads, ok3 := kvs["p"]
	if !ok1 || !ok2 || !ok3 {
		return argon2Encoded{}, fmt.Errorf("%w: missing m/t/p in parameter segment %q", ErrInvalidHash, parts[3])
	}
	if memory > 1<<32-1 || time > 1<<32-1 || threads > 255 {
		return argon2Encoded{}, fmt.Errorf("%w: parameter out of range in %q", ErrInvalidHash, parts[3])
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return argon2Encoded{}, fmt.Errorf("%w: invalid salt base64: %v", ErrInvalidHash, err)
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return argon2Encoded{}, fmt.Errorf("%w: invalid hash base64: %v", ErrInvalidHash, err)
	}

	return argon2Encoded{
		variant: variant,
		version: uint32(version),
		memory:  uint32(memory),
		time:    uint32(time),
		threads: uint8(threads),
		keyLen:  uint32(len(hash)),
		salt:    salt,
		hash:    hash,
	}, nil
}

// parseKV parses a "key=value" string and returns the uint64 value.
func parseKV(s, key string) (uint64, error) {
	prefix := key + "="
	if !strings.HasPrefix(s, prefix) {
		return 0, fmt.Errorf("expected %q prefix in %q", prefix, s)
	}
	return strconv.ParseUint(s[len(prefix):], 10, 32)
}

// parseParams splits "m=65536,t=4,p=1" into a map.
func parseParams(s string) (map[string]uint64, error) {
	out := make(map[string]uint64)
	for _, kv := range strings.Split(s, ",") {
		eq := strings.IndexByte(kv, '=')
		if eq <= 0 {
			return nil, fmt.Errorf("malformed param %q", kv)
		}
		v, err := strconv.ParseUint(kv[eq+1:], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("non-numeric value in %q: %v", kv, err)
		}
		out[kv[:eq]] = v
	}
	return out, nil
}

// randomSalt returns n cryptographically random bytes.
func randomSalt(n uint32) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("%w: argon2: failed to generate salt: %v", ErrHashingResource, err)
	}
	return b, nil
}

// deriveKey runs an argon2 primitive, turning a panic (allocation failure,
// rejected parameters) into ErrHashingResource.
func deriveKey(fn func() []byte) (key []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			key, err = nil, fmt.Errorf("%w: argon2: %v", ErrHashingResource, r)
		}
	}()
	return fn(), nil
}

// limits returns the verify limits raised to p, capped at MaxArgon2MemoryCost.
func (p Argon2Params) limits() verifyLimits {
	return verifyLimits{
		argon2Memory: min(max(VerifyArgon2MemoryLimit, p.MemoryCost), MaxArgon2MemoryCost),
		argon2Time:   max(VerifyArgon2TimeLimit, p.TimeCost),
	}
}

func checkMemoryCeiling(p Argon2Params) error {
	if p.MemoryCost > MaxArgon2MemoryCost {
		return fmt.Errorf("%w: argon2 memory_cost %d KiB exceeds %d KiB",
			ErrHashingResource, p.MemoryCost, MaxArgon2MemoryCost)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Argon2iDriver
// ──────────────────────────────────────────────────────────────────────────────

// Argon2iDriver hashes passwords using the Argon2i algorithm.
//
// Argon2i uses data-independent memory access. For new systems prefer
// [Argon2idDriver].
//
// Argon2iDriver is immutable after construction and safe for concurrent use.
type Argon2iDriver struct {
	params Argon2Params
}

// NewArgon2iDriver constructs an Argon2iDriver with the given parameters.
func NewArgon2iDriver(p Argon2Params) (*Argon2iDriver, error) {
	if err := validateArgon2Params(p); err != nil {
		return nil, err
	}
	return &Argon2iDriver{params: p}, nil
}

// Algorithm returns [AlgoArgon2i].
func (d *Argon2iDriver) Algorithm() Algorithm { return AlgoArgon2i }

// Params returns the configured Argon2 parameters.
func (d *Argon2iDriver) Params() Argon2Params { return d.params }

func (d *Argon2iDriver) sealed() {}

// Make hashes password with Argon2i and returns a PHC-formatted string.
func (d *Argon2iDriver) Make(password string) (string, error) {
	if err := checkMemoryCeiling(d.params); err != nil {
		return "", err
	}
	salt, err := randomSalt(argon2SaltLen)
	if err != nil {
		return "", err
	}
	p := d.params
	key, err := deriveKey(func() []byte {
		return argon2.Key([]byte(password), salt, p.TimeCost, p.MemoryCost, p.Threads, argon2KeyLen)
	})
	if err != nil {
		return "", err
	}
	return encodePHC(AlgoArgon2i, p.MemoryCost, p.TimeCost, p.Threads, salt, key), nil
}

// Check verifies that password matches the Argon2i PHC hash. The cost
// parameters are read from the hash itself.
func (d *Argon2iDriver) Check(password, hash string) (bool, error) {
	if err := expectAlgorithm(hash, AlgoArgon2i); err != nil {
		return false, err
	}
	return argon2iCheck(password, hash, d.params.limits())
}

// NeedsRehash returns true if the parameters stored in hash are weaker than
// the driver's configuration.
func (d *Argon2iDriver) NeedsRehash(hash string) (bool, error) {
	e, err := decodeVariant(hash, AlgoArgon2i)
	if err != nil {
		return false, err
	}
	return d.params.weakerThan(e), nil
}

// Info parses the PHC string and returns the encoded parameters.
func (d *Argon2iDriver) Info(hash string) (HashInfo, error) {
	return argon2iInfo(hash)
}

func argon2iCheck(password, hash string, lim verifyLimits) (bool, error) {
	e, err := decodeVariant(hash, AlgoArgon2i)
	if err != nil {
		return false, err
	}
	if err := e.usable(lim); err != nil {
		return false, err
	}
	computed, err := deriveKey(func() []byte {
		return argon2.Key([]byte(password), e.salt, e.time, e.memory, e.threads, e.keyLen)
	})
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(computed, e.hash) == 1, nil
}

func argon2iInfo(hash string) (HashInfo, error) {
	e, err := decodeVariant(hash, AlgoArgon2i)
	if err != nil {
		return HashInfo{}, err
	}
	return e.info(), nil
}

func decodeVariant(hash string, want Algorithm) (argon2Encoded, error) {
	if err := expectAlgorithm(hash, want); err != nil {
		return argon2Encoded{}, err
	}
	return decodePHC(hash)
}

// ──────────────────────────────────────────────────────────────────────────────
// Argon2idDriver
// ──────────────────────────────────────────────────────────────────────────────

// Argon2idDriver hashes passwords using the Argon2id algorithm, through
// github.com/alexedwards/argon2id.
//
// Argon2id is the variant recommended by RFC 9106 and OWASP for password
// storage.
//
// Argon2idDriver is immutable after construction and safe for concurrent use.
type Argon2idDriver struct {
	params Argon2Params
}

// NewArgon2idDriver constructs an Argon2idDriver with the given parameters.
func NewArgon2idDriver(p Argon2Params) (*Argon2idDriver, error) {
	if err := validateArgon2Params(p); err != nil {
		return nil, err
	}
	return &Argon2idDriver{params: p}, nil
}

// Algorithm returns [AlgoArgon2id].
func (d *Argon2idDriver) Algorithm() Algorithm { return AlgoArgon2id }

// Params returns the configured Argon2 parameters.
func (d *Argon2idDriver) Params() Argon2Params { return d.params }

func (d *Argon2idDriver) sealed() {}

// Make hashes password with Argon2id and returns a PHC-formatted string.
func (d *Argon2idDriver) Make(password string) (hash string, err error) {
	if err := checkMemoryCeiling(d.params); err != nil {
		return "", err
	}
	defer func() {
		if r := recover(); r != nil {
			hash, err = "", fmt.Errorf("%w: argon2id: %v", ErrHashingResource, r)
		}
	}()
	hash, err = argon2id.CreateHash(password, &argon2id.Params{
		Memory:      d.params.MemoryCost,
		Iterations:  d.params.TimeCost,
		Parallelism: d.params.Threads,
		SaltLength:  argon2SaltLen,
		KeyLength:   argon2KeyLen,
	})
	if err != nil {
		// CreateHash only fails when the salt cannot be read.
		return "", fmt.Errorf("%w: argon2id: %v", ErrHashingResource, err)
	}
	return hash, nil
}

// Check verifies that password matches the Argon2id PHC hash.
func (d *Argon2idDriver) Check(password, hash string) (bool, error) {
	if err := expectAlgorithm(hash, AlgoArgon2id); err != nil {
		return false, err
	}
	return argon2idCheck(password, hash, d.params.limits())
}

// NeedsRehash returns true if the parameters stored in hash are weaker than
// the driver's configuration.
func (d *Argon2idDriver) NeedsRehash(hash string) (bool, error) {
	e, err := decodeArgon2id(hash)
	if err != nil {
		return false, err
	}
	return d.params.weakerThan(e), nil
}

// Info parses the PHC string and returns the encoded parameters.
func (d *Argon2idDriver) Info(hash string) (HashInfo, error) {
	return argon2idInfo(hash)
}

// decodeArgon2id parses hash with argon2id.DecodeHash and maps the result
// onto the package's own representation.
func decodeArgon2id(hash string) (argon2Encoded, error) {
	if err := expectAlgorithm(hash, AlgoArgon2id); err != nil {
		return argon2Encoded{}, err
	}
	p, salt, key, err := argon2id.DecodeHash(hash)
	if err != nil {
		return argon2Encoded{}, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return argon2Encoded{
		variant: AlgoArgon2id,
		version: argon2Version, // DecodeHash rejects any other version
		memory:  p.Memory,
		time:    p.Iterations,
		threads: p.Parallelism,
		keyLen:  p.KeyLength,
		salt:    salt,
		hash:    key,
	}, nil
}

func argon2idCheck(password, hash string, lim verifyLimits) (ok bool, err error) {
	e, err := decodeArgon2id(hash)
	if err != nil {
		return false, err
	}
	if err := e.usable(lim); err != nil {
		return false, err
	}
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("%w: argon2id: %v", ErrHashingResource, r)
		}
	}()
	// ComparePasswordAndHash uses subtle.ConstantTimeCompare.
	ok, err = argon2id.ComparePasswordAndHash(password, hash)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return ok, nil
}

func argon2idInfo(hash string) (HashInfo, error) {
	e, err := decodeArgon2id(hash)
	if err != nil {
		return HashInfo{}, err
	}
	return e.info(), nil
}
