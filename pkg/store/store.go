// Package store is a thin relational table layer over sqlx. Tables are
// declared with Postgres-style column types and created on either SQLite
// or PostgreSQL; rows are inserted in bulk inside a single transaction.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultMaxOpenConns is the default maximum number of open connections.
	DefaultMaxOpenConns = 10

	// DefaultMaxIdleConns is the default maximum number of idle connections.
	DefaultMaxIdleConns = 2

	// DefaultConnMaxLifetime is the default maximum lifetime of a connection.
	DefaultConnMaxLifetime = 5 * time.Minute

	// DefaultPingTimeout is the default timeout for verifying the connection.
	DefaultPingTimeout = 5 * time.Second
)

var (
	// ErrInvalidIdentifier is returned for table or column names that are
	// not plain SQL identifiers.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrColumnMismatch is returned when rows of a bulk insert do not share
	// the same column set.
	ErrColumnMismatch = errors.New("rows have different columns")
)

var (
	rowsInsertedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_store_rows_inserted_total",
		Help: "Total rows committed by bulk inserts",
	}, []string{"table"})

	bulkInsertDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_store_bulk_insert_duration_seconds",
		Help:    "Duration of bulk insert transactions",
		Buckets: prometheus.DefBuckets,
	}, []string{"table", "result"})
)

// Config holds database connection settings.
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Database owns the connection pool.
type Database struct {
	db     *sqlx.DB
	logger zerolog.Logger
}

// Open connects to the database, configures the pool and verifies the
// connection with a ping.
func Open(ctx context.Context, cfg Config) (*Database, error) {
	switch cfg.Driver {
	case DriverSQLite, DriverPostgres:
	case "":
		cfg.Driver = DriverSQLite
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, errors.New("database DSN is required")
	}

	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = DefaultMaxOpenConns
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = DefaultMaxIdleConns
	}
	if cfg.ConnMaxLifetime <= 0 {
		cfg.ConnMaxLifetime = DefaultConnMaxLifetime
	}
	// SQLite serializes writers, and an in-memory database exists per connection.
	if cfg.Driver == DriverSQLite {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, DefaultPingTimeout)
	defer cancel()
	if pingErr := db.PingContext(pingCtx); pingErr != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", pingErr)
	}

	return NewDatabase(db), nil
}

// NewDatabase wraps an existing connection pool.
func NewDatabase(db *sqlx.DB) *Database {
	return &Database{
		db:     db,
		logger: log.With().Str("component", "store").Str("driver", db.DriverName()).Logger(),
	}
}

// Driver returns the driver name of the underlying pool.
func (d *Database) Driver() string {
	return d.db.DriverName()
}

// Close closes the connection pool.
func (d *Database) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// EnsureSchema creates the table if it does not exist and returns a handle
// to it.
func (d *Database) EnsureSchema(ctx context.Context, name string, columns []Column) (*Table, error) {
	query, err := createTableSQL(d.Driver(), name, columns)
	if err != nil {
		return nil, err
	}
	if _, err := d.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("create table %s: %w", name, err)
	}
	d.logger.Debug().Str("table", name).Int("columns", len(columns)).Msg("Schema ensured")
	return &Table{db: d, name: name, columns: columns}, nil
}

// Table is a handle to a created table.
type Table struct {
	db      *Database
	name    string
	columns []Column
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

// BulkInsert inserts rows in one transaction: either every row is committed
// or none is. All rows must carry the same keys. An empty batch is a no-op.
func (t *Table) BulkInsert(ctx context.Context, rows []map[string]any) (err error) {
	if len(rows) == 0 {
		return nil
	}

	columns, err := rowColumns(rows)
	if err != nil {
		return err
	}

	start := time.Now()
	defer func() {
		result := "committed"
		if err != nil {
			result = "rolled_back"
		}
		bulkInsertDuration.WithLabelValues(t.name, result).Observe(time.Since(start).Seconds())
	}()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	query := t.db.db.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.name, strings.Join(columns, ", "), placeholders))

	tx, err := t.db.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				t.db.logger.Warn().Err(rbErr).Str("table", t.name).Msg("Rollback failed")
			}
		}
	}()

	args := make([]any, len(columns))
	for i, row := range rows {
		for j, col := range columns {
			args[j] = row[col]
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert row %d into %s: %w", i, t.name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit insert into %s: %w", t.name, err)
	}

	rowsInsertedTotal.WithLabelValues(t.name).Add(float64(len(rows)))
	t.db.logger.Debug().Str("table", t.name).Int("rows", len(rows)).Msg("Bulk insert committed")
	return nil
}

// Count returns the number of rows in the table.
func (t *Table) Count(ctx context.Context) (int, error) {
	var n int
	if err := t.db.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+t.name); err != nil {
		return 0, fmt.Errorf("count %s: %w", t.name, err)
	}
	return n, nil
}

// Drop removes the table if it exists.
func (t *Table) Drop(ctx context.Context) error {
	if _, err := t.db.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+t.name); err != nil {
		return fmt.Errorf("drop %s: %w", t.name, err)
	}
	return nil
}

// rowColumns returns the sorted column set shared by every row.
func rowColumns(rows []map[string]any) ([]string, error) {
	columns := make([]string, 0, len(rows[0]))
	for col := range rows[0] {
		if err := validIdentifier(col); err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}
	sort.Strings(columns)

	for i, row := range rows[1:] {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("%w: row %d", ErrColumnMismatch, i+1)
		}
		for _, col := range columns {
			if _, ok := row[col]; !ok {
				return nil, fmt.Errorf("%w: row %d lacks %s", ErrColumnMismatch, i+1, col)
			}
		}
	}
	return columns, nil
}
