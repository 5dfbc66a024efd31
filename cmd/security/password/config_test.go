package password

import (
	"os"
	"testing"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{
		"CHAT_PASSWORD_MIN_LEN",
		"CHAT_PASSWORD_MAX_LEN",
		"CHAT_ARGON2_MEMORY_KIB",
		"CHAT_ARGON2_ITERATIONS",
		"CHAT_ARGON2_PARALLELISM",
	} {
		t.Setenv(k, "") // restores the original value after the test
		_ = os.Unsetenv(k)
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestFromEnv_Override(t *testing.T) {
	t.Setenv("CHAT_PASSWORD_MIN_LEN", "10")
	t.Setenv("CHAT_PASSWORD_MAX_LEN", "200")
	t.Setenv("CHAT_ARGON2_MEMORY_KIB", "32768")
	t.Setenv("CHAT_ARGON2_ITERATIONS", "4")
	t.Setenv("CHAT_ARGON2_PARALLELISM", "2")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}
	if cfg.Policy != (Policy{MinLength: 10, MaxLength: 200}) {
		t.Fatalf("policy override failed: %+v", cfg.Policy)
	}
	if cfg.Params.MemoryKiB != 32768 || cfg.Params.Iterations != 4 || cfg.Params.Parallelism != 2 {
		t.Fatalf("argon2 override failed: %+v", cfg.Params)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"min above max":   {"CHAT_PASSWORD_MIN_LEN", "300"},
		"not a number":    {"CHAT_ARGON2_ITERATIONS", "three"},
		"memory too low":  {"CHAT_ARGON2_MEMORY_KIB", "1024"},
		"parallelism 0":   {"CHAT_ARGON2_PARALLELISM", "0"},
		"negative length": {"CHAT_PASSWORD_MAX_LEN", "-1"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			if _, err := FromEnv(); err == nil {
				t.Fatalf("expected error for %s=%s", kv[0], kv[1])
			}
		})
	}
}
