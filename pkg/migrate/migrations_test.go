package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kiranalabs/merchant-admin-api/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("migration dir invalid: %v", err)
	}
}

func TestRefreshTokensMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_refresh_tokens.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS refresh_tokens",
		"token_hash text NOT NULL",
		"revoked_at timestamptz",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_refresh_tokens_token_hash",
		"FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS refresh_tokens",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestUsersMigrationEnforcesRoleEnum(t *testing.T) {
	content := readMigration(t, "*_create_users.sql")

	checks := []string{
		"CHECK (role IN ('super_admin', 'admin', 'merchant'))",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email",
		"deleted_at    timestamptz",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %q", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
