package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/avigneron/cavebox-backend/pkg/migrate"
)

func TestCatalogMigrationContainsStockConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_catalog_tables.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no catalog migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS wines",
		"CONSTRAINT chk_wines_stock_quantity CHECK (stock_quantity >= 0)",
		"low_stock_threshold integer NOT NULL DEFAULT 10",
		"CONSTRAINT chk_wine_ratings_score CHECK (score BETWEEN 1 AND 5)",
		"DROP TABLE IF EXISTS wines",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}
