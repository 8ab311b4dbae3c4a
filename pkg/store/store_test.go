package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func newMockDatabase(t *testing.T, driver string) (*Database, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewDatabase(sqlx.NewDb(db, driver)), mock
}

func TestEnsureSchema_SQLite(t *testing.T) {
	database, mock := newMockDatabase(t, DriverSQLite)

	want := "CREATE TABLE IF NOT EXISTS opensea_collections (" +
		"id INTEGER PRIMARY KEY AUTOINCREMENT, collection TEXT NOT NULL, name TEXT NOT NULL, " +
		"description TEXT, image_url TEXT, owner TEXT, twitter_username TEXT, contracts TEXT, " +
		"created_at TEXT NOT NULL)"
	mock.ExpectExec(regexp.QuoteMeta(want)).WillReturnResult(sqlmock.NewResult(0, 0))

	table, err := database.EnsureSchema(context.Background(), CollectionsTable, CollectionColumns())
	if err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if table.Name() != CollectionsTable {
		t.Errorf("Name() = %q", table.Name())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestEnsureSchema_Postgres(t *testing.T) {
	database, mock := newMockDatabase(t, DriverPostgres)

	want := "CREATE TABLE IF NOT EXISTS opensea_collections (" +
		"id SERIAL PRIMARY KEY, collection VARCHAR(255) NOT NULL, name VARCHAR(255) NOT NULL, " +
		"description TEXT, image_url TEXT, owner VARCHAR(255), twitter_username VARCHAR(255), " +
		"contracts JSONB, created_at TIMESTAMP NOT NULL)"
	mock.ExpectExec(regexp.QuoteMeta(want)).WillReturnResult(sqlmock.NewResult(0, 0))

	if _, err := database.EnsureSchema(context.Background(), CollectionsTable, CollectionColumns()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestEnsureSchema_ExecError(t *testing.T) {
	database, mock := newMockDatabase(t, DriverSQLite)
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("disk I/O error"))

	if _, err := database.EnsureSchema(context.Background(), "t", []Column{{Name: "a", DataType: "TEXT"}}); err == nil {
		t.Fatal("expected error")
	}
}

func TestBulkInsert_CommitsAllRows(t *testing.T) {
	database, mock := newMockDatabase(t, DriverPostgres)
	table := &Table{db: database, name: "items"}

	insert := regexp.QuoteMeta("INSERT INTO items (a, b) VALUES ($1, $2)")
	mock.ExpectBegin()
	mock.ExpectExec(insert).WithArgs(1, "x").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insert).WithArgs(2, "y").WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	err := table.BulkInsert(context.Background(), []map[string]any{
		{"b": "x", "a": 1},
		{"a": 2, "b": "y"},
	})
	if err != nil {
		t.Fatalf("BulkInsert() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestBulkInsert_RollsBackOnFailure(t *testing.T) {
	database, mock := newMockDatabase(t, DriverSQLite)
	table := &Table{db: database, name: "items"}

	insert := regexp.QuoteMeta("INSERT INTO items (a) VALUES (?)")
	mock.ExpectBegin()
	mock.ExpectExec(insert).WithArgs(1).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insert).WithArgs(2).WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	err := table.BulkInsert(context.Background(), []map[string]any{{"a": 1}, {"a": 2}, {"a": 3}})
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestBulkInsert_EmptyIsNoop(t *testing.T) {
	database, mock := newMockDatabase(t, DriverSQLite)
	table := &Table{db: database, name: "items"}

	if err := table.BulkInsert(context.Background(), nil); err != nil {
		t.Fatalf("BulkInsert(nil) error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected database calls: %v", err)
	}
}

func TestBulkInsert_ColumnMismatch(t *testing.T) {
	database, _ := newMockDatabase(t, DriverSQLite)
	table := &Table{db: database, name: "items"}

	tests := []struct {
		name string
		rows []map[string]any
		want error
	}{
		{"missing key", []map[string]any{{"a": 1, "b": 2}, {"a": 1, "c": 2}}, ErrColumnMismatch},
		{"extra key", []map[string]any{{"a": 1}, {"a": 1, "b": 2}}, ErrColumnMismatch},
		{"bad column", []map[string]any{{"a-b": 1}}, ErrInvalidIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := table.BulkInsert(context.Background(), tt.rows); !errors.Is(err, tt.want) {
				t.Errorf("BulkInsert() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestOpen_Validation(t *testing.T) {
	ctx := context.Background()

	if _, err := Open(ctx, Config{Driver: "mysql", DSN: "x"}); err == nil {
		t.Error("expected error for unsupported driver")
	}
	if _, err := Open(ctx, Config{Driver: DriverSQLite}); err == nil {
		t.Error("expected error for empty DSN")
	}
}

func TestSQLite_RoundTrip(t *testing.T) {
	ctx := context.Background()

	database, err := Open(ctx, Config{Driver: DriverSQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer database.Close()

	table, err := database.EnsureSchema(ctx, CollectionsTable, CollectionColumns())
	if err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	// Idempotent.
	if _, err := database.EnsureSchema(ctx, CollectionsTable, CollectionColumns()); err != nil {
		t.Fatalf("second EnsureSchema() error = %v", err)
	}

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	row := func(slug string) map[string]any {
		return map[string]any{
			"collection":       slug,
			"name":             slug,
			"description":      "",
			"image_url":        "",
			"owner":            "0xowner",
			"twitter_username": "",
			"contracts":        `[{"address":"0xabc","chain":"ethereum"}]`,
			"created_at":       now,
		}
	}

	if err := table.BulkInsert(ctx, []map[string]any{row("a"), row("b")}); err != nil {
		t.Fatalf("BulkInsert() error = %v", err)
	}

	// A NOT NULL violation in the second row rolls back the whole batch.
	bad := row("d")
	bad["name"] = nil
	if err := table.BulkInsert(ctx, []map[string]any{row("c"), bad}); err == nil {
		t.Fatal("expected NOT NULL violation")
	}

	n, err := table.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}

	if err := table.Drop(ctx); err != nil {
		t.Fatalf("Drop() error = %v", err)
	}
}
