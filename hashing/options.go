package hashing

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Option keys recognised by [ResolveOptions].
const (
	OptionAlgo       = "algo"
	OptionCost       = "cost"
	OptionMemoryCost = "memory_cost"
	OptionTimeCost   = "time_cost"
	OptionThreads    = "threads"
)

// HashOptions is the validated configuration of a [Hasher].
//
// Cost applies to bcrypt only; MemoryCost, TimeCost and Threads apply to the
// Argon2 variants only. All fields are always populated and validated
// regardless of which algorithm is selected.
type HashOptions struct {
	Algo       Algorithm
	Cost       int
	MemoryCost uint32
	TimeCost   uint32
	Threads    uint8
}

// DefaultHashOptions returns the options used for every key the caller omits.
func DefaultHashOptions() HashOptions {
	return HashOptions{
		Algo:       AlgoBcrypt,
		Cost:       DefaultBcryptCost,
		MemoryCost: DefaultArgon2MemoryCost,
		TimeCost:   DefaultArgon2TimeCost,
		Threads:    DefaultArgon2Threads,
	}
}

// Argon2 returns the Argon2 subset of the options.
func (o HashOptions) Argon2() Argon2Params {
	return Argon2Params{
		MemoryCost: o.MemoryCost,
		TimeCost:   o.TimeCost,
		Threads:    o.Threads,
	}
}

// Validate checks the algorithm and the range of every parameter.
func (o HashOptions) Validate() error {
	if !o.Algo.Supported() {
		return fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, o.Algo)
	}
	if err := validateBcryptCost(o.Cost); err != nil {
		return err
	}
	return validateArgon2Params(o.Argon2())
}

// ResolveOptions validates raw and fills in defaults for missing keys.
//
// Recognised keys are "algo", "cost", "memory_cost", "time_cost" and
// "threads". Unknown keys fail with [ErrUnknownOption]; values of the wrong
// type fail with [ErrInvalidOptionType]; an algo other than bcrypt, argon2i
// or argon2id fails with [ErrUnsupportedAlgorithm]; out-of-range numbers fail
// with [ErrInvalidOption]. A nil map yields [DefaultHashOptions].
//
// Integer options accept any Go integer type, integral float64 values (as
// produced by encoding/json) and json.Number.
func ResolveOptions(raw map[string]any) (HashOptions, error) {
	if unknown := unknownKeys(raw); len(unknown) > 0 {
		return HashOptions{}, fmt.Errorf("%w: %s", ErrUnknownOption, strings.Join(unknown, ", "))
	}

	opts := DefaultHashOptions()

	if v, ok := raw[OptionAlgo]; ok {
		switch algo := v.(type) {
		case string:
			opts.Algo = Algorithm(algo)
		case Algorithm:
			opts.Algo = algo
		default:
			return HashOptions{}, fmt.Errorf("%w: %q must be a string, got %T", ErrInvalidOptionType, OptionAlgo, v)
		}
	}

	if v, ok := raw[OptionCost]; ok {
		n, err := intOption(OptionCost, v, math.MaxInt32)
		if err != nil {
			return HashOptions{}, err
		}
		opts.Cost = int(n)
	}
	if v, ok := raw[OptionMemoryCost]; ok {
		n, err := intOption(OptionMemoryCost, v, math.MaxUint32)
		if err != nil {
			return HashOptions{}, err
		}
		opts.MemoryCost = uint32(n)
	}
	if v, ok := raw[OptionTimeCost]; ok {
		n, err := intOption(OptionTimeCost, v, math.MaxUint32)
		if err != nil {
			return HashOptions{}, err
		}
		opts.TimeCost = uint32(n)
	}
	if v, ok := raw[OptionThreads]; ok {
		n, err := intOption(OptionThreads, v, math.MaxUint8)
		if err != nil {
			return HashOptions{}, err
		}
		opts.Threads = uint8(n)
	}

	if err := opts.Validate(); err != nil {
		return HashOptions{}, err
	}
	return opts, nil
}

func unknownKeys(raw map[string]any) []string {
	var unknown []string
	for k := range raw {
		switch k {
		case OptionAlgo, OptionCost, OptionMemoryCost, OptionTimeCost, OptionThreads:
		default:
			unknown = append(unknown, fmt.Sprintf("%q", k))
		}
	}
	sort.Strings(unknown)
	return unknown
}

// intOption converts v to a non-negative integer no larger than limit.
// Type problems are ErrInvalidOptionType; negative or oversized values are
// ErrInvalidOption.
func intOption(key string, v any, limit uint64) (uint64, error) {
	n, err := toInt64(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %q must be an integer, got %T (%v)", ErrInvalidOptionType, key, v, err)
	}
	if n < 0 || uint64(n) > limit {
		return 0, fmt.Errorf("%w: %q = %d is out of range [0, %d]", ErrInvalidOption, key, n, limit)
	}
	return uint64(n), nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return uintToInt64(uint64(n)), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return uintToInt64(n), nil
	case float32:
		return floatToInt64(float64(n))
	case float64:
		return floatToInt64(n)
	case json.Number:
		return n.Int64()
	default:
		return 0, errors.New("unsupported type")
	}
}

func uintToInt64(n uint64) int64 {
	if n > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(n)
}

func floatToInt64(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, errors.New("not a whole number")
	}
	// Out-of-range values saturate and fail the caller's range check.
	if f >= math.MaxInt64 {
		return math.MaxInt64, nil
	}
	if f < math.MinInt64 {
		return math.MinInt64, nil
	}
	return int64(f), nil
}
