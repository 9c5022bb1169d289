package security

import (
	"strings"
	"testing"

	"github.com/kiranalabs/merchant-admin-api/pkg/config"
)

func testPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	cfg := testPasswordConfig()

	hash, err := HashPassword("correct horse battery staple", cfg)
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$") {
		t.Fatalf("unexpected hash format: %s", hash)
	}

	ok, err := VerifyPassword("correct horse battery staple", hash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected matching password to verify")
	}

	ok, err = VerifyPassword("wrong password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error: %v", err)
	}
	if ok {
		t.Fatal("expected mismatched password to fail verification")
	}
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	if _, err := HashPassword("", testPasswordConfig()); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestHashPasswordUniqueSalts(t *testing.T) {
	cfg := testPasswordConfig()
	first, err := HashPassword("same password", cfg)
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	second, err := HashPassword("same password", cfg)
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct hashes for the same password")
	}
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	cases := []string{
		"",
		"not-a-hash",
		"$argon2i$v=19$m=8,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=bad,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8,t=1,p=1$!!!$aGFzaA",
	}
	for _, encoded := range cases {
		if _, err := VerifyPassword("password", encoded); err == nil {
			t.Errorf("expected error for malformed hash %q", encoded)
		}
	}
}

func TestGenerateTokenSecret(t *testing.T) {
	first, err := GenerateTokenSecret()
	if err != nil {
		t.Fatalf("GenerateTokenSecret returned error: %v", err)
	}
	second, err := GenerateTokenSecret()
	if err != nil {
		t.Fatalf("GenerateTokenSecret returned error: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct secrets")
	}
	if len(first) < 40 {
		t.Fatalf("secret unexpectedly short: %d chars", len(first))
	}
}

func TestHashTokenSecretDeterministic(t *testing.T) {
	if HashTokenSecret("abc") != HashTokenSecret("abc") {
		t.Fatal("expected stable hash for identical input")
	}
	if HashTokenSecret("abc") == HashTokenSecret("abd") {
		t.Fatal("expected different hashes for different input")
	}
	if len(HashTokenSecret("abc")) != 64 {
		t.Fatal("expected 64 hex chars")
	}
}
