package hashing_test

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/thincharm/webskeleton/hashing"
)

// fastOptions returns test-safe raw options for algo.
func fastOptions(algo string) map[string]any {
	return map[string]any{
		"algo":        algo,
		"cost":        bcrypt.MinCost,
		"memory_cost": 16,
		"time_cost":   1,
		"threads":     2,
	}
}

func newTestHasher(tb testing.TB, raw map[string]any) *hashing.Hasher {
	tb.Helper()
	h, err := hashing.NewHasher(raw)
	if err != nil {
		tb.Fatalf("NewHasher(%v): %v", raw, err)
	}
	return h
}

var allAlgorithms = []string{"bcrypt", "argon2i", "argon2id"}

// ──────────────────────────────────────────────────────────────────────────────
// Construction
// ──────────────────────────────────────────────────────────────────────────────

func TestNewHasher_SelectsDriver(t *testing.T) {
	for _, algo := range allAlgorithms {
		h := newTestHasher(t, fastOptions(algo))
		if h.Algorithm() != hashing.Algorithm(algo) {
			t.Errorf("Algorithm() = %q, want %q", h.Algorithm(), algo)
		}
		if h.Driver().Algorithm() != hashing.Algorithm(algo) {
			t.Errorf("Driver().Algorithm() = %q, want %q", h.Driver().Algorithm(), algo)
		}
	}
}

func TestNewHasher_DefaultsToBcrypt(t *testing.T) {
	h := newTestHasher(t, nil)
	d, ok := h.Driver().(*hashing.BcryptDriver)
	if !ok {
		t.Fatalf("driver = %T, want *BcryptDriver", h.Driver())
	}
	if d.Cost() != 10 {
		t.Errorf("cost = %d, want 10", d.Cost())
	}
}

func TestNewHasher_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want error
	}{
		{"md5", map[string]any{"algo": "md5"}, hashing.ErrUnsupportedAlgorithm},
		{"unknown key", map[string]any{"foo": 1}, hashing.ErrUnknownOption},
		{"wrong type", map[string]any{"cost": "high"}, hashing.ErrInvalidOptionType},
		{"out of range", map[string]any{"cost": 2}, hashing.ErrInvalidOption},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := hashing.NewHasher(tt.raw)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if h != nil {
				t.Error("a failed construction must not return a Hasher")
			}
		})
	}
}

func TestNewHasherFromOptions(t *testing.T) {
	opts := hashing.DefaultHashOptions()
	opts.Cost = bcrypt.MinCost
	h, err := hashing.NewHasherFromOptions(opts)
	if err != nil {
		t.Fatalf("NewHasherFromOptions: %v", err)
	}
	if h.Options() != opts {
		t.Errorf("Options() = %+v, want %+v", h.Options(), opts)
	}

	opts.Algo = "argon2d"
	if _, err := hashing.NewHasherFromOptions(opts); !errors.Is(err, hashing.ErrUnsupportedAlgorithm) {
		t.Errorf("expected ErrUnsupportedAlgorithm, got %v", err)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Create / Verify
// ──────────────────────────────────────────────────────────────────────────────

func TestHasher_CreateVerify(t *testing.T) {
	for _, algo := range allAlgorithms {
		t.Run(algo, func(t *testing.T) {
			h := newTestHasher(t, fastOptions(algo))
			hash, err := h.Create("hunter2")
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if got, _ := hashing.DetectAlgorithm(hash); got != hashing.Algorithm(algo) {
				t.Errorf("hash algorithm = %q, want %q", got, algo)
			}
			if !h.Verify("hunter2", hash) {
				t.Error("Verify rejected the correct password")
			}
			for _, wrong := range []string{"", "hunter3", "HUNTER2", "hunter2 "} {
				if h.Verify(wrong, hash) {
					t.Errorf("Verify accepted %q", wrong)
				}
			}
		})
	}
}

func TestHasher_Verify_MalformedReturnsFalse(t *testing.T) {
	h := newTestHasher(t, fastOptions("argon2id"))
	for _, encoded := range []string{
		"not-a-valid-hash-string",
		"",
		"$2y$10$short",
		"$argon2id$v=19$m=16,t=1,p=2$",
		"$argon2id$v=19$m=16,t=1,p=0$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5",
		"$argon2i$v=19$m=16,t=0,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5",
		"$argon2i$v=16$m=16,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5",
	} {
		if h.Verify("password", encoded) {
			t.Errorf("Verify(%q) = true, want false", encoded)
		}
	}
}

func TestHasher_Verify_AcrossAlgorithms(t *testing.T) {
	hashes := make(map[string]string)
	for _, algo := range allAlgorithms {
		hash, err := newTestHasher(t, fastOptions(algo)).Create("legacy")
		if err != nil {
			t.Fatalf("%s Create: %v", algo, err)
		}
		hashes[algo] = hash
	}
	for _, algo := range allAlgorithms {
		h := newTestHasher(t, fastOptions(algo))
		for from, hash := range hashes {
			if !h.Verify("legacy", hash) {
				t.Errorf("%s hasher could not verify %s hash", algo, from)
			}
			if h.Verify("other", hash) {
				t.Errorf("%s hasher accepted wrong password for %s hash", algo, from)
			}
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// NeedsRehash
// ──────────────────────────────────────────────────────────────────────────────

func TestHasher_Verify_OwnCostAboveVerifyLimit(t *testing.T) {
	for _, algo := range []string{"argon2i", "argon2id"} {
		raw := fastOptions(algo)
		raw["time_cost"] = int(hashing.VerifyArgon2TimeLimit) + 1
		h := newTestHasher(t, raw)
		hash, err := h.Create("pw")
		if err != nil {
			t.Fatalf("%s Create: %v", algo, err)
		}
		if !h.Verify("pw", hash) {
			t.Errorf("%s: Verify rejected a hash the Hasher created itself", algo)
		}
		// A Hasher at the default limits refuses the same work.
		if newTestHasher(t, fastOptions(algo)).Verify("pw", hash) {
			t.Errorf("%s: default-limit Verify accepted t=%d", algo, hashing.VerifyArgon2TimeLimit+1)
		}
	}
}

func TestHasher_NeedsRehash_FreshHash(t *testing.T) {
	for _, algo := range allAlgorithms {
		h := newTestHasher(t, fastOptions(algo))
		hash, _ := h.Create("pw")
		if h.NeedsRehash(hash) {
			t.Errorf("%s: fresh hash should not need rehash", algo)
		}
	}
}

func TestHasher_NeedsRehash_StrongerConfig(t *testing.T) {
	tests := []struct {
		name      string
		algo      string
		overrides map[string]any
	}{
		{"cost", "bcrypt", map[string]any{"cost": bcrypt.MinCost + 1}},
		{"memory", "argon2i", map[string]any{"memory_cost": 32}},
		{"time", "argon2i", map[string]any{"time_cost": 2}},
		{"memory", "argon2id", map[string]any{"memory_cost": 32}},
		{"time", "argon2id", map[string]any{"time_cost": 2}},
		{"threads", "argon2id", map[string]any{"threads": 3, "memory_cost": 24}},
	}
	for _, tt := range tests {
		t.Run(tt.algo+"/"+tt.name, func(t *testing.T) {
			old := newTestHasher(t, fastOptions(tt.algo))
			hash, _ := old.Create("pw")

			raw := fastOptions(tt.algo)
			for k, v := range tt.overrides {
				raw[k] = v
			}
			upgraded := newTestHasher(t, raw)
			if !upgraded.NeedsRehash(hash) {
				t.Errorf("raising %v should require a rehash", tt.overrides)
			}
			// The stronger hash does not need rehashing under the old config.
			strong, _ := upgraded.Create("pw")
			if old.NeedsRehash(strong) {
				t.Errorf("hash made with %v flagged by the weaker config", tt.overrides)
			}
		})
	}
}

func TestHasher_NeedsRehash_AlgorithmChange(t *testing.T) {
	bc := newTestHasher(t, fastOptions("bcrypt"))
	id := newTestHasher(t, fastOptions("argon2id"))
	i := newTestHasher(t, fastOptions("argon2i"))

	bcHash, _ := bc.Create("pw")
	idHash, _ := id.Create("pw")
	iHash, _ := i.Create("pw")

	if !id.NeedsRehash(bcHash) {
		t.Error("argon2id hasher should rehash a bcrypt hash")
	}
	if !bc.NeedsRehash(idHash) {
		t.Error("bcrypt hasher should rehash an argon2id hash")
	}
	if !id.NeedsRehash(iHash) {
		t.Error("argon2id hasher should rehash an argon2i hash")
	}
	if !i.NeedsRehash(idHash) {
		t.Error("argon2i hasher should rehash an argon2id hash")
	}
}

func TestHasher_NeedsRehash_Malformed(t *testing.T) {
	h := newTestHasher(t, fastOptions("bcrypt"))
	for _, encoded := range []string{"", "plaintext", "$2a$04$tooshort"} {
		if !h.NeedsRehash(encoded) {
			t.Errorf("NeedsRehash(%q) = false, want true", encoded)
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Scenarios
// ──────────────────────────────────────────────────────────────────────────────

func TestHasher_Argon2idRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("allocates 64 MiB")
	}
	h := newTestHasher(t, map[string]any{
		"algo":        "argon2id",
		"memory_cost": 65536,
		"time_cost":   4,
		"threads":     2,
	})
	hash, err := h.Create("correct horse")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=4,p=2$") {
		t.Errorf("unexpected hash prefix: %q", hash)
	}
	if !h.Verify("correct horse", hash) {
		t.Error("Verify(correct horse) = false")
	}
	if h.Verify("wrong", hash) {
		t.Error("Verify(wrong) = true")
	}
}

// TestHasher_Migration_BcryptToArgon2id simulates a deployment that switches
// its configured algorithm and upgrades hashes on login.
func TestHasher_Migration_BcryptToArgon2id(t *testing.T) {
	legacy := newTestHasher(t, fastOptions("bcrypt"))
	stored, _ := legacy.Create("user-password")

	current := newTestHasher(t, fastOptions("argon2id"))
	if !current.Verify("user-password", stored) {
		t.Fatal("legacy bcrypt hash should still verify")
	}
	if !current.NeedsRehash(stored) {
		t.Fatal("legacy bcrypt hash should need a rehash")
	}
	stored, err := current.Create("user-password")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if current.NeedsRehash(stored) || !current.Verify("user-password", stored) {
		t.Error("upgraded hash should verify and be current")
	}
}

func TestHasher_Info(t *testing.T) {
	h := newTestHasher(t, fastOptions("bcrypt"))
	hash, _ := h.Create("pw")
	info, err := h.Info(hash)
	if err != nil || info.Algorithm != hashing.AlgoBcrypt {
		t.Errorf("Info: info=%+v err=%v", info, err)
	}
	if _, err := h.Info("nope"); !errors.Is(err, hashing.ErrInvalidHash) {
		t.Errorf("expected ErrInvalidHash, got %v", err)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Concurrency
// ──────────────────────────────────────────────────────────────────────────────

func TestHasher_ConcurrentCreateVerify(t *testing.T) {
	for _, algo := range allAlgorithms {
		h := newTestHasher(t, fastOptions(algo))
		var wg sync.WaitGroup
		errs := make(chan string, 32)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				hash, err := h.Create("concurrent")
				if err != nil {
					errs <- err.Error()
					return
				}
				if !h.Verify("concurrent", hash) || h.NeedsRehash(hash) {
					errs <- algo + ": round-trip failed"
				}
			}()
		}
		wg.Wait()
		close(errs)
		for msg := range errs {
			t.Error(msg)
		}
	}
}
