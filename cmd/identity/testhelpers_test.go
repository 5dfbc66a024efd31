package identity

import "github.com/ProfMYK/chatappapi/cmd/security/password"

// fastHasher keeps argon2id cheap in tests.
func fastHasher() password.Config {
	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}
