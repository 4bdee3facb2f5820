package migrate_test

import (
	"strings"
	"testing"

	"github.com/griffinshaw/dealbrief-backend/pkg/migrate"
)

func TestOutboxMigrationContainsPartialIndex(t *testing.T) {
	content := readMigration(t, "*_create_outbox.sql")

	checks := []string{
		"CREATE TYPE aggregate_type_enum AS ENUM ('user', 'report', 'bounty')",
		"CREATE TABLE IF NOT EXISTS outbox_events",
		"CREATE INDEX IF NOT EXISTS idx_outbox_events_unpublished ON outbox_events (created_at) WHERE published_at IS NULL",
		"CREATE TABLE IF NOT EXISTS outbox_dlq",
		"DROP TABLE IF EXISTS outbox_events",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir(migrations): %v", err)
	}
}
