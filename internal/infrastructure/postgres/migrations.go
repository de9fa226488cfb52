package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// NotifyChannel is the LISTEN/NOTIFY channel carrying transaction row changes.
const NotifyChannel = "transaction_events"

// Migration is one forward-only schema change.
type Migration struct {
	Version     int
	Description string
	Statements  []string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "companies and transactions",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS companies (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				company_code TEXT NOT NULL UNIQUE,
				staff_pin_hash TEXT NOT NULL,
				system_active BOOLEAN NOT NULL DEFAULT TRUE,
				connected_banks TEXT[] NOT NULL DEFAULT '{}',
				mailbox_refresh_token TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE TABLE IF NOT EXISTS transactions (
				id TEXT PRIMARY KEY,
				company_id TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
				amount NUMERIC(14,2) NOT NULL DEFAULT 0 CHECK (amount >= 0),
				sender_name TEXT NOT NULL DEFAULT '',
				bank_source TEXT NOT NULL DEFAULT 'Unknown',
				status TEXT NOT NULL DEFAULT 'new'
					CHECK (status IN ('new', 'processing', 'completed', 'failed')),
				message_id TEXT,
				item_description TEXT,
				raw_content TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CONSTRAINT transactions_completed_amount CHECK (status <> 'completed' OR amount > 0)
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS transactions_message_id_key
				ON transactions (message_id) WHERE message_id IS NOT NULL`,
			`CREATE INDEX IF NOT EXISTS idx_transactions_company_created
				ON transactions (company_id, created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_transactions_status
				ON transactions (status) WHERE status IN ('new', 'processing')`,
		},
	},
	{
		Version:     2,
		Description: "transaction change notifications",
		Statements: []string{
			`CREATE OR REPLACE FUNCTION notify_transaction_event() RETURNS trigger AS $$
			DECLARE
				prev TEXT := NULL;
			BEGIN
				IF TG_OP = 'UPDATE' THEN
					prev := OLD.status;
				END IF;
				PERFORM pg_notify('` + NotifyChannel + `', json_build_object(
					'op', lower(TG_OP),
					'id', NEW.id,
					'company_id', NEW.company_id,
					'status', NEW.status,
					'prev_status', prev
				)::text);
				RETURN NEW;
			END;
			$$ LANGUAGE plpgsql`,
			`DROP TRIGGER IF EXISTS transactions_notify ON transactions`,
			`CREATE TRIGGER transactions_notify
				AFTER INSERT OR UPDATE ON transactions
				FOR EACH ROW EXECUTE FUNCTION notify_transaction_event()`,
		},
	},
}

// LatestVersion is the schema version the application expects.
func LatestVersion() int {
	return migrations[len(migrations)-1].Version
}

// Migrate applies pending migrations, each in its own transaction.
func (db *DB) Migrate(ctx context.Context, log zerolog.Logger) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	current, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := db.apply(ctx, m); err != nil {
			return err
		}
		log.Info().Int("version", m.Version).Str("description", m.Description).Msg("applied migration")
	}
	return nil
}

// SchemaVersion returns the highest applied migration, or 0 for a fresh database.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(version.Int64), nil
}

func (db *DB) apply(ctx context.Context, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
	}

	for _, stmt := range m.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", m.Version, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`,
		m.Version, m.Description,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
	}
	return nil
}
