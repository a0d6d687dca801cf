package storage

import "database/sql"

// migrateV001 creates the initial mirror schema: imported items, their
// revisions, optional revision content, and the audit log. Every statement
// uses IF NOT EXISTS for idempotency.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		// ── Tables ──────────────────────────────────────────────

		`CREATE TABLE IF NOT EXISTS items (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			location     TEXT NOT NULL,
			path         TEXT NOT NULL,
			is_container BOOLEAN NOT NULL DEFAULT 0,
			imported_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(location, path)
		)`,

		`CREATE TABLE IF NOT EXISTS revisions (
			item_id     INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			rev_id      INTEGER NOT NULL,
			ref         TEXT NOT NULL DEFAULT '',
			owner       TEXT NOT NULL DEFAULT '',
			ts          DATETIME NOT NULL,
			comment     TEXT NOT NULL DEFAULT '',
			server_path TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (item_id, rev_id)
		)`,

		`CREATE TABLE IF NOT EXISTS revision_content (
			item_id    INTEGER NOT NULL,
			rev_id     INTEGER NOT NULL,
			body       TEXT NOT NULL,
			byte_size  INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (item_id, rev_id),
			FOREIGN KEY (item_id, rev_id) REFERENCES revisions(item_id, rev_id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS audit_log (
			id     INTEGER PRIMARY KEY AUTOINCREMENT,
			action TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			ts     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// ── Indexes ────────────────────────────────────────────

		`CREATE INDEX IF NOT EXISTS idx_items_imported_at   ON items(imported_at)`,
		`CREATE INDEX IF NOT EXISTS idx_revisions_ts        ON revisions(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_revisions_owner     ON revisions(owner)`,
		`CREATE INDEX IF NOT EXISTS idx_revisions_path      ON revisions(server_path)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_ts        ON audit_log(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_action    ON audit_log(action)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
