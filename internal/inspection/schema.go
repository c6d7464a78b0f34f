package inspection

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// schema is written with placeholders for the few types that differ between
// postgres and sqlite.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS check_definitions (
		id {{serial}},
		tenant_id TEXT NOT NULL,
		code TEXT NOT NULL,
		description TEXT NOT NULL,
		is_critical BOOLEAN NOT NULL DEFAULT FALSE,
		regulation_reference TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_check_definitions_tenant ON check_definitions (tenant_id)`,
	`CREATE TABLE IF NOT EXISTS incoming_articles (
		id {{serial}},
		tenant_id TEXT NOT NULL,
		part_number TEXT NOT NULL,
		ata_code TEXT NOT NULL DEFAULT '',
		zone TEXT NOT NULL DEFAULT '',
		manufacturer TEXT NOT NULL DEFAULT '',
		condition_name TEXT NOT NULL DEFAULT '',
		has_documentation BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL DEFAULT 'INCOMING',
		batch_id TEXT,
		version BIGINT NOT NULL DEFAULT 0,
		updated_at {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_incoming_articles_tenant_status ON incoming_articles (tenant_id, status)`,
	`CREATE TABLE IF NOT EXISTS inspection_records (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		article_id BIGINT NOT NULL,
		operator_id TEXT NOT NULL,
		decision TEXT NOT NULL,
		from_status TEXT NOT NULL,
		to_status TEXT NOT NULL,
		answers TEXT NOT NULL,
		done INTEGER NOT NULL,
		total INTEGER NOT NULL,
		ok_count INTEGER NOT NULL,
		decided_at {{timestamp}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_inspection_records_article ON inspection_records (tenant_id, article_id)`,
	`CREATE TABLE IF NOT EXISTS reception_documents (
		ref TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		template_id TEXT NOT NULL,
		storage_key TEXT NOT NULL,
		purchase_order_code TEXT NOT NULL,
		client TEXT NOT NULL,
		others TEXT,
		inspection_date {{timestamp}} NOT NULL,
		generated_by TEXT NOT NULL,
		created_at {{timestamp}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reception_document_articles (
		ref TEXT NOT NULL,
		article_id BIGINT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (ref, article_id)
	)`,
}

// Migrate creates the inspection tables when they do not exist
func Migrate(ctx context.Context, db *sqlx.DB) error {
	serial, timestamp := "INTEGER PRIMARY KEY AUTOINCREMENT", "TIMESTAMP"
	if db.DriverName() == "postgres" {
		serial, timestamp = "BIGSERIAL PRIMARY KEY", "TIMESTAMPTZ"
	}
	replacer := strings.NewReplacer("{{serial}}", serial, "{{timestamp}}", timestamp)

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, replacer.Replace(stmt)); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
