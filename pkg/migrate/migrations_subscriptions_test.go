package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCoreMigrationContainsSubscriptionConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_core_tables.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no core migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS wine_subscriptions",
		"CREATE UNIQUE INDEX uniq_active_subscription ON wine_subscriptions(member_id, wine_cave_id) WHERE status = 'active'",
		"status subscription_status NOT NULL DEFAULT 'active'",
		"next_shipment_date timestamptz NOT NULL",
		"DROP TABLE IF EXISTS wine_subscriptions",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
