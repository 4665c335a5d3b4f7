package store

import "fmt"

// currentSchemaVersion is the latest schema version.
const currentSchemaVersion = 1

// Migrate runs forward migrations to bring the database schema up to date.
func (db *DB) Migrate() error {
	// Create the schema_version table if it does not exist.
	if _, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	version := 0
	row := db.conn.QueryRow("SELECT version FROM schema_version LIMIT 1")
	if err := row.Scan(&version); err != nil {
		// No rows means version 0 (fresh database).
		version = 0
	}

	if version < 1 {
		if err := db.migrateV1(); err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}

	return nil
}

// migrateV1 creates all initial tables and indexes.
func (db *DB) migrateV1() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS pattern_sessions (
			id                     INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id             TEXT NOT NULL,
			page_url               TEXT NOT NULL,
			engagement_score       REAL NOT NULL,
			frustration_indicators INTEGER NOT NULL,
			session_duration       REAL NOT NULL,
			analyzed_at            TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS business_sessions (
			id                       INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id               TEXT NOT NULL,
			page_url                 TEXT NOT NULL,
			conversion_probability   REAL NOT NULL,
			estimated_revenue_impact REAL NOT NULL,
			funnel_stage             TEXT NOT NULL,
			session_duration         REAL NOT NULL,
			analyzed_at              TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS experiment_results (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			test_id         TEXT NOT NULL,
			page_url        TEXT NOT NULL,
			winning_variant TEXT NOT NULL,
			confidence      REAL NOT NULL,
			observed_lift   REAL NOT NULL,
			analyzed_at     TEXT NOT NULL
		)`,

		// One row per (page_url, category); the id is derived from that
		// pair so re-analysis updates in place.
		`CREATE TABLE IF NOT EXISTS recommendations (
			recommendation_id TEXT PRIMARY KEY,
			page_url          TEXT NOT NULL,
			category          TEXT NOT NULL,
			severity          TEXT NOT NULL,
			priority_rank     INTEGER NOT NULL,
			confidence        REAL NOT NULL,
			payload           TEXT NOT NULL,
			first_analyzed    TEXT NOT NULL,
			last_updated      TEXT NOT NULL
		)`,

		// Indexes.
		`CREATE INDEX IF NOT EXISTS idx_pattern_analyzed ON pattern_sessions(analyzed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_pattern_page ON pattern_sessions(page_url)`,
		`CREATE INDEX IF NOT EXISTS idx_business_analyzed ON business_sessions(analyzed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_business_page ON business_sessions(page_url)`,
		`CREATE INDEX IF NOT EXISTS idx_experiments_analyzed ON experiment_results(analyzed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_page ON recommendations(page_url)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_rank ON recommendations(priority_rank)`,
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing %q: %w", stmt[:40], err)
		}
	}

	// Set schema version.
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", currentSchemaVersion); err != nil {
		return err
	}

	return tx.Commit()
}
