package entities

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"formstore"
)

// CreateTables creates the entity and meta tables for the whole form graph on
// a SQLite database. Intended for tests and fresh installs; long-lived
// deployments manage their schema on the host side.
func CreateTables(ctx context.Context, db *sqlx.DB) error {
	for _, s := range Schemas() {
		for _, ddl := range []string{createTableSQL(s), createMetaTableSQL(s)} {
			if _, err := db.ExecContext(ctx, ddl); err != nil {
				return fmt.Errorf("entities: creating tables for %s: %w", s.Kind, err)
			}
		}
	}
	return nil
}

func createTableSQL(s *formstore.Schema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %q (\n", s.Table)
	fmt.Fprintf(&b, "\t%q INTEGER PRIMARY KEY AUTOINCREMENT", s.Primary)
	for _, col := range s.Columns {
		fmt.Fprintf(&b, ",\n\t%q %s", col.Name, sqliteType(col.Type))
	}
	b.WriteString("\n)")
	return b.String()
}

func createMetaTableSQL(s *formstore.Schema) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
	"id" INTEGER PRIMARY KEY AUTOINCREMENT,
	"owner_id" INTEGER NOT NULL,
	"meta_key" TEXT NOT NULL,
	"meta_value" TEXT NOT NULL DEFAULT ''
)`, s.MetaTable)
}

func sqliteType(t formstore.ColumnType) string {
	if t == formstore.TypeInt {
		return "INTEGER NOT NULL DEFAULT 0"
	}
	return "TEXT NOT NULL DEFAULT ''"
}
