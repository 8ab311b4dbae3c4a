package store

import (
	"fmt"
	"regexp"
	"strings"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Column describes one column using Postgres-style type names. The dialect
// maps the type when the table is created.
type Column struct {
	Name       string
	DataType   string
	PrimaryKey bool
	Nullable   bool
	Unique     bool
}

// sqliteTypes is checked in order; the first matching prefix wins.
var sqliteTypes = []struct {
	prefix string
	sqlite string
}{
	{"SERIAL", "INTEGER PRIMARY KEY AUTOINCREMENT"},
	{"INTEGER", "INTEGER"},
	{"TEXT", "TEXT"},
	{"VARCHAR", "TEXT"},
	{"TIMESTAMP", "TEXT"},
	{"JSONB", "TEXT"},
	{"BOOLEAN", "INTEGER"},
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

// columnType returns the dialect-specific type for a Postgres-style name.
func columnType(driver, pgType string) string {
	pgType = strings.ToUpper(strings.TrimSpace(pgType))
	if driver != DriverSQLite {
		return pgType
	}
	for _, m := range sqliteTypes {
		if strings.HasPrefix(pgType, m.prefix) {
			return m.sqlite
		}
	}
	return "TEXT"
}

// columnDefinition renders one column of a CREATE TABLE statement.
func columnDefinition(driver string, col Column) string {
	def := columnType(driver, col.DataType)
	if col.PrimaryKey && !strings.Contains(def, "PRIMARY KEY") {
		def += " PRIMARY KEY"
	}
	if !col.Nullable && !col.PrimaryKey {
		def += " NOT NULL"
	}
	if col.Unique {
		def += " UNIQUE"
	}
	return col.Name + " " + def
}

func createTableSQL(driver, table string, columns []Column) (string, error) {
	if err := validIdentifier(table); err != nil {
		return "", err
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("table %s: no columns", table)
	}
	defs := make([]string, 0, len(columns))
	for _, col := range columns {
		if err := validIdentifier(col.Name); err != nil {
			return "", err
		}
		defs = append(defs, columnDefinition(driver, col))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", ")), nil
}
