package store

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for all RRSim tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS simulations (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL DEFAULT '',
		quantum         INTEGER NOT NULL,
		execution_times TEXT NOT NULL DEFAULT '[]',
		state           TEXT NOT NULL DEFAULT 'PENDING',
		iterations      INTEGER NOT NULL DEFAULT 0,
		clock           INTEGER NOT NULL DEFAULT 0,
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL,
		completed_at    TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS iterations (
		simulation_id TEXT NOT NULL,
		iteration     INTEGER NOT NULL,
		time          INTEGER NOT NULL,
		dispatched    TEXT NOT NULL DEFAULT '',
		outcome       TEXT NOT NULL DEFAULT '',
		snapshot      TEXT NOT NULL DEFAULT '{}',
		segments      TEXT NOT NULL DEFAULT '[]',
		created_at    TEXT NOT NULL,
		PRIMARY KEY (simulation_id, iteration)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_simulations_state ON simulations(state)`,
	`CREATE INDEX IF NOT EXISTS idx_simulations_created_at ON simulations(created_at)`,
}

// alterStatements are column additions that need special handling since
// SQLite doesn't support IF NOT EXISTS for ALTER TABLE ADD COLUMN.
var alterStatements = []struct {
	table    string
	column   string
	alterSQL string
	indexSQL string // Optional index to create after column is added
}{
	{
		table:    "simulations",
		column:   "name",
		alterSQL: "ALTER TABLE simulations ADD COLUMN name TEXT NOT NULL DEFAULT ''",
		indexSQL: "CREATE INDEX IF NOT EXISTS idx_simulations_name ON simulations(name)",
	},
}

// migrate executes all schema DDL statements and alter migrations.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	for _, alter := range alterStatements {
		if err := addColumnIfNotExists(ctx, db, alter.table, alter.column, alter.alterSQL); err != nil {
			return err
		}
		if alter.indexSQL != "" {
			if _, err := db.ExecContext(ctx, alter.indexSQL); err != nil {
				return err
			}
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, alterSQL string) error {
	exists, err := hasColumn(ctx, db, table, column)
	if err != nil || exists {
		return err
	}
	_, err = db.ExecContext(ctx, alterSQL)
	return err
}

func hasColumn(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if strings.EqualFold(name, column) {
			return true, nil
		}
	}
	return false, rows.Err()
}
