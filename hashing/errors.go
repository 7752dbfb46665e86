package hashing

import "errors"

// Sentinel errors returned by hashing operations.
//
// Use [errors.Is] for comparisons:
//
//	h, err := hashing.NewHasher(map[string]any{"algo": "md5"})
//	if errors.Is(err, hashing.ErrUnsupportedAlgorithm) {
//	    // fix the configuration and try again
//	}
var (
	// ErrUnknownOption is returned when the raw option map contains a key
	// that the resolver does not recognise.
	ErrUnknownOption = errors.New("hashing: unknown option")

	// ErrInvalidOptionType is returned when an option value has the wrong
	// semantic type, e.g. a string cost or a fractional thread count.
	ErrInvalidOptionType = errors.New("hashing: invalid option type")

	// ErrUnsupportedAlgorithm is returned at construction time when the algo
	// option names anything other than bcrypt, argon2i or argon2id.
	ErrUnsupportedAlgorithm = errors.New("hashing: unsupported algorithm")

	// ErrInvalidOption is returned when an option value has the right type
	// but falls outside the allowed range (e.g., a bcrypt cost below 4 or
	// above 31).
	ErrInvalidOption = errors.New("hashing: invalid option value")

	// ErrHashingResource is returned by Create when the primitive could not
	// obtain the randomness or memory it needs.
	ErrHashingResource = errors.New("hashing: insufficient resources to compute hash")

	// ErrInvalidHash is returned when a hash string cannot be parsed because
	// it has an unrecognised format, missing fields, or invalid encoding.
	ErrInvalidHash = errors.New("hashing: invalid or unrecognised hash string")

	// ErrAlgorithmMismatch is returned by a [Driver]'s Check, NeedsRehash or
	// Info method when the hash string was produced by a different algorithm
	// than the one implemented by that driver.
	ErrAlgorithmMismatch = errors.New("hashing: hash was produced by a different algorithm")
)
