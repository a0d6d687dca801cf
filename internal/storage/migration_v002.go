package storage

import "database/sql"

// migrateV002 records each revision's offset from UTC in seconds. ts stays
// in UTC; ts_offset restores the author's local time on read.
func migrateV002(tx *sql.Tx) error {
	_, err := tx.Exec(`ALTER TABLE revisions ADD COLUMN ts_offset INTEGER NOT NULL DEFAULT 0`)
	return err
}
