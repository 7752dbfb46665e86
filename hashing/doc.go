// Package hashing provides password hashing behind a single [Hasher] that
// hides which algorithm produced a given hash.
//
// # Architecture
//
// [ResolveOptions] turns a loosely typed option map into a validated
// [HashOptions]. [NewHasher] resolves the map and selects exactly one
// [Driver] for the lifetime of the Hasher:
//
//   - [BcryptDriver] — bcrypt via golang.org/x/crypto/bcrypt
//   - [Argon2iDriver] — Argon2i via golang.org/x/crypto/argon2
//   - [Argon2idDriver] — Argon2id via github.com/alexedwards/argon2id
//
// The set of drivers is closed; any other algo is rejected with
// [ErrUnsupportedAlgorithm] before a Hasher exists.
//
// # Quick start
//
//	h, err := hashing.NewHasher(map[string]any{"algo": "argon2id"})
//	if err != nil { log.Fatal(err) }
//
//	hash, _ := h.Create("my-secret-password")
//	ok := h.Verify("my-secret-password", hash) // true
//
// # Options
//
//	key          default   applies to
//	algo         bcrypt    all
//	cost         10        bcrypt
//	memory_cost  65536     argon2i, argon2id (KiB)
//	time_cost    4         argon2i, argon2id
//	threads      1         argon2i, argon2id
//
// The defaults match PHP's password_hash, and the hash strings produced are
// interchangeable with it.
//
// # Migration
//
// Call [Hasher.NeedsRehash] after every successful [Hasher.Verify]. It
// returns true when the stored hash came from another algorithm or from
// weaker parameters than the current configuration.
//
// # Argon2 hash format
//
// Argon2 hashes are stored in the PHC string format:
//
//	$argon2id$v=19$m=65536,t=4,p=1$<base64-salt>$<base64-hash>
//
// All parameters are self-contained in the string, so no external
// configuration is needed to verify a previously produced hash.
package hashing
