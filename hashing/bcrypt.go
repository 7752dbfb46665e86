package hashing

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultBcryptCost is the work factor applied when the cost option is
	// omitted. It matches PHP's password_hash default of 10.
	DefaultBcryptCost = 10

	// VerifyBcryptCostLimit is the highest stored cost Verify will compute
	// unless the configured cost is higher still.
	VerifyBcryptCostLimit = 16

	// bcryptMaxInput is the number of password bytes bcrypt consumes.
	bcryptMaxInput = 72
)

// BcryptDriver hashes passwords using the bcrypt algorithm.
//
// Bcrypt internally generates and stores a 128-bit random salt, so callers
// never need to manage salts explicitly. Output is Modular Crypt Format
// ("$2a$10$..."); PHP-style "$2y$" hashes are accepted on input.
//
// BcryptDriver is immutable after construction and safe for concurrent use.
type BcryptDriver struct {
	cost int
}

// NewBcryptDriver constructs a BcryptDriver with the given work factor.
// Returns [ErrInvalidOption] if cost is outside [bcrypt.MinCost, bcrypt.MaxCost].
func NewBcryptDriver(cost int) (*BcryptDriver, error) {
	if err := validateBcryptCost(cost); err != nil {
		return nil, err
	}
	return &BcryptDriver{cost: cost}, nil
}

func validateBcryptCost(cost int) error {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return fmt.Errorf("%w: bcrypt cost %d must be in [%d, %d]",
			ErrInvalidOption, cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return nil
}

// Algorithm returns [AlgoBcrypt].
func (d *BcryptDriver) Algorithm() Algorithm { return AlgoBcrypt }

// Cost returns the configured bcrypt work factor.
func (d *BcryptDriver) Cost() int { return d.cost }

func (d *BcryptDriver) sealed() {}

// Make hashes password with bcrypt.
//
// Only the first 72 bytes of password are used, as with PHP's password_hash
// and bcrypt.CompareHashAndPassword.
func (d *BcryptDriver) Make(password string) (string, error) {
	pw := []byte(password)
	if len(pw) > bcryptMaxInput {
		pw = pw[:bcryptMaxInput]
	}
	hash, err := bcrypt.GenerateFromPassword(pw, d.cost)
	if err != nil {
		return "", fmt.Errorf("hashing: bcrypt: failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Check verifies that password matches the bcrypt-encoded hash.
// Returns (false, nil) on mismatch; never returns ErrMismatchedHashAndPassword.
func (d *BcryptDriver) Check(password, hash string) (bool, error) {
	if err := expectAlgorithm(hash, AlgoBcrypt); err != nil {
		return false, err
	}
	return bcryptCheck(password, hash, d.limits())
}

func (d *BcryptDriver) limits() verifyLimits {
	return verifyLimits{bcryptCost: max(VerifyBcryptCostLimit, d.cost)}
}

// NeedsRehash returns true if the work factor encoded in hash is lower than
// the driver's configured cost.
func (d *BcryptDriver) NeedsRehash(hash string) (bool, error) {
	info, err := bcryptInfo(hash)
	if err != nil {
		return false, err
	}
	return info.Params["cost"].(int) < d.cost, nil
}

// Info extracts the work factor from a bcrypt hash string.
func (d *BcryptDriver) Info(hash string) (HashInfo, error) {
	return bcryptInfo(hash)
}

func bcryptCheck(password, hash string, lim verifyLimits) (bool, error) {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	if cost > lim.bcryptCost {
		return false, fmt.Errorf("%w: bcrypt cost %d exceeds verify limit %d", ErrInvalidHash, cost, lim.bcryptCost)
	}
	err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
}

func bcryptInfo(hash string) (HashInfo, error) {
	if err := expectAlgorithm(hash, AlgoBcrypt); err != nil {
		return HashInfo{}, err
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return HashInfo{}, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return HashInfo{
		Algorithm: AlgoBcrypt,
		Params:    map[string]any{"cost": cost},
	}, nil
}
