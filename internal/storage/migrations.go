package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	Up      string
}

// migrations holds all database migrations in order.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up: `
			-- Builds table: one row per (project, build_id)
			CREATE TABLE IF NOT EXISTS builds (
				id TEXT PRIMARY KEY,
				build_id TEXT NOT NULL,
				project TEXT NOT NULL,
				repo_url TEXT,
				branch TEXT NOT NULL,
				commit_hash TEXT,
				status TEXT NOT NULL,
				duration_seconds REAL NOT NULL DEFAULT 0,
				started_at DATETIME NOT NULL,
				finished_at DATETIME NOT NULL,
				number INTEGER NOT NULL DEFAULT 0,
				triggered_by TEXT NOT NULL,
				environment TEXT NOT NULL,
				tests_json TEXT NOT NULL,
				stages_json TEXT NOT NULL,
				log_url TEXT,
				artifacts_json TEXT NOT NULL,
				source TEXT NOT NULL,
				raw_payload BLOB,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				UNIQUE (project, build_id)
			);

			-- Projects table: denormalized latest-status cache
			CREATE TABLE IF NOT EXISTS projects (
				id TEXT PRIMARY KEY,
				name TEXT UNIQUE NOT NULL,
				display_name TEXT,
				repo_url TEXT,
				last_build_id TEXT,
				last_status TEXT,
				last_build_at DATETIME,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);

			-- Metrics table: one row per (project, period, hour bucket)
			CREATE TABLE IF NOT EXISTS metrics (
				id TEXT PRIMARY KEY,
				project TEXT NOT NULL,
				period TEXT NOT NULL,
				bucket DATETIME NOT NULL,
				computed_at DATETIME NOT NULL,
				total_builds INTEGER NOT NULL,
				successful_builds INTEGER NOT NULL,
				failed_builds INTEGER NOT NULL,
				success_rate REAL NOT NULL,
				avg_duration_seconds REAL NOT NULL,
				max_duration_seconds REAL NOT NULL,
				min_duration_seconds REAL NOT NULL,
				build_ids_json TEXT NOT NULL,
				UNIQUE (project, period, bucket)
			);

			-- Alert rules table
			CREATE TABLE IF NOT EXISTS rules (
				id TEXT PRIMARY KEY,
				name TEXT UNIQUE NOT NULL,
				description TEXT,
				condition_json TEXT NOT NULL,
				channels_json TEXT NOT NULL,
				severity TEXT NOT NULL,
				message_template TEXT,
				cooldown_minutes INTEGER NOT NULL DEFAULT 0,
				enabled INTEGER NOT NULL DEFAULT 1,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);

			-- Fired alerts table
			CREATE TABLE IF NOT EXISTS alerts (
				id TEXT PRIMARY KEY,
				rule_id TEXT NOT NULL,
				rule_name TEXT NOT NULL,
				severity TEXT NOT NULL,
				message TEXT NOT NULL,
				project TEXT NOT NULL,
				build_id TEXT NOT NULL,
				build_number INTEGER NOT NULL DEFAULT 0,
				status TEXT NOT NULL DEFAULT 'active',
				fired_at DATETIME NOT NULL,
				acknowledged_at DATETIME,
				acknowledged_by TEXT,
				resolved_at DATETIME,
				resolved_by TEXT,
				resolution TEXT,
				metadata_json TEXT NOT NULL
			);

			-- Indexes
			CREATE INDEX IF NOT EXISTS idx_builds_project_finished ON builds(project, finished_at);
			CREATE INDEX IF NOT EXISTS idx_builds_finished ON builds(finished_at);
			CREATE INDEX IF NOT EXISTS idx_builds_project_branch_number ON builds(project, branch, number);
			CREATE INDEX IF NOT EXISTS idx_metrics_project_period ON metrics(project, period, bucket);
			CREATE INDEX IF NOT EXISTS idx_rules_enabled ON rules(enabled);
			CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts(status);
			CREATE INDEX IF NOT EXISTS idx_alerts_project ON alerts(project, fired_at);
		`,
	},
}

// runMigrations applies all pending migrations.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
		}

		_, err = tx.Exec(m.Up)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d (%s): %w", m.Version, m.Name, err)
		}

		_, err = tx.Exec(
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Name, time.Now(),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
