package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/piersideeats/dispatch-backend/pkg/migrate"
)

func TestPaymentSettingsMigrationSeedsVersionOne(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_payment_settings_versions.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no payment settings migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS payment_settings_versions",
		"INSERT INTO payment_settings_versions",
		"3.50, 0.75, 0.15",
		"70.00, 0.25, 0.20",
		"2.99, 0.50, 0.10",
		"1.35, 25.00, 1.50",
		"DROP TABLE IF EXISTS payment_settings_versions",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationFilenamesAreValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}
