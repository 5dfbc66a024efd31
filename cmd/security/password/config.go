package password

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Argon2idParams is the cost of newly created hashes. MemoryKiB is in KiB.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy bounds accepted passwords, counted in runes.
type Policy struct {
	MinLength int
	MaxLength int
}

// Config hashes, verifies and validates passwords.
type Config struct {
	Params Argon2idParams
	Policy Policy
}

// DefaultConfig hashes with 64 MiB, 3 passes and up to 4 lanes.
func DefaultConfig() Config {
	lanes := min(max(runtime.NumCPU(), 1), 4)
	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(lanes), // #nosec G115 -- clamped to [1..4].
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{MinLength: 8, MaxLength: 256},
	}
}

// FromEnv applies CHAT_PASSWORD_MIN_LEN, CHAT_PASSWORD_MAX_LEN,
// CHAT_ARGON2_MEMORY_KIB, CHAT_ARGON2_ITERATIONS and CHAT_ARGON2_PARALLELISM
// over DefaultConfig.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	knobs := []struct {
		key      string
		min, max uint64
		set      func(uint64)
	}{
		{"CHAT_PASSWORD_MIN_LEN", 1, 1024, func(v uint64) { cfg.Policy.MinLength = int(v) }},
		{"CHAT_PASSWORD_MAX_LEN", 1, 4096, func(v uint64) { cfg.Policy.MaxLength = int(v) }},
		{"CHAT_ARGON2_MEMORY_KIB", 8 * 1024, 1024 * 1024, func(v uint64) { cfg.Params.MemoryKiB = uint32(v) }},
		{"CHAT_ARGON2_ITERATIONS", 1, 20, func(v uint64) { cfg.Params.Iterations = uint32(v) }},
		{"CHAT_ARGON2_PARALLELISM", 1, 64, func(v uint64) { cfg.Params.Parallelism = uint8(v) }},
	}
	for _, k := range knobs {
		raw, ok := os.LookupEnv(k.key)
		if !ok {
			continue
		}
		v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
		if err != nil || v < k.min || v > k.max {
			return Config{}, fmt.Errorf("%s: want an integer in [%d..%d]", k.key, k.min, k.max)
		}
		k.set(v)
	}

	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf("password policy: min length %d exceeds max length %d",
			cfg.Policy.MinLength, cfg.Policy.MaxLength)
	}
	return cfg, nil
}
