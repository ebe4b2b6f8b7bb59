// Package warehouse stores normalized assertion records in ClickHouse and
// publishes the reporting views over them.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"

	"github.com/good-yellow-bee/assguard/internal/normalize"
)

// TableName is the destination table for assertion records.
const TableName = "assertion_data"

// Config holds ClickHouse connection settings.
type Config struct {
	// Addresses are the ClickHouse server addresses (host:port).
	Addresses []string `yaml:"addresses"`

	// Database is the ClickHouse database name.
	Database string `yaml:"database"`

	// Username for authentication.
	Username string `yaml:"username"`

	// Password for authentication.
	Password string `yaml:"password"`

	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int `yaml:"max_idle_conns"`

	// DialTimeout is the connection timeout.
	DialTimeout time.Duration `yaml:"dial_timeout"`

	// Compression enables LZ4 compression.
	Compression bool `yaml:"compression"`
}

// Warehouse owns the ClickHouse connection for the assertion table.
type Warehouse struct {
	config *Config
	db     *sql.DB
}

// New creates a warehouse handle with defaults applied.
func New(config *Config) *Warehouse {
	if config.MaxOpenConns == 0 {
		config.MaxOpenConns = 5
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 5
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = 5 * time.Second
	}

	return &Warehouse{config: config}
}

// Open initializes the ClickHouse connection.
func (w *Warehouse) Open() error {
	opts := &clickhouse.Options{
		Addr: w.config.Addresses,
		Auth: clickhouse.Auth{
			Database: w.config.Database,
			Username: w.config.Username,
			Password: w.config.Password,
		},
		DialTimeout:  w.config.DialTimeout,
		MaxOpenConns: w.config.MaxOpenConns,
		MaxIdleConns: w.config.MaxIdleConns,
	}

	if w.config.Compression {
		opts.Compression = &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		}
	}

	db := clickhouse.OpenDB(opts)

	ctx, cancel := context.WithTimeout(context.Background(), w.config.DialTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping clickhouse: %w", err)
	}

	w.db = db
	return nil
}

// Close closes the database connection.
func (w *Warehouse) Close() error {
	if w.db == nil {
		return nil
	}
	return w.db.Close()
}

// Migrate creates the assertion table if it doesn't exist.
func (w *Warehouse) Migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID DEFAULT generateUUIDv4(),
			Start_Time DateTime64(6, 'UTC'),
			End_Time DateTime64(6, 'UTC'),
			Invocation_Name String,
			Action_Name String,
			Database String,
			Schema String,
			State LowCardinality(String),
			Failure_Reason Nullable(String),
			_date Date DEFAULT toDate(Start_Time)
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(_date)
		ORDER BY (Start_Time, Invocation_Name, Action_Name)
		SETTINGS index_granularity = 8192
	`, TableName)

	if _, err := w.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create %s table: %w", TableName, err)
	}

	return nil
}

// Ping checks the connection health.
func (w *Warehouse) Ping(ctx context.Context) error {
	return w.db.PingContext(ctx)
}

// Append batch-inserts records into the assertion table. Records are
// always appended: re-running the same batch produces duplicate rows,
// dedup is an external concern. An empty FailureReason is stored as NULL.
func (w *Warehouse) Append(ctx context.Context, records []*normalize.AssertionRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return &LoadError{Table: TableName, Records: len(records), Err: fmt.Errorf("begin tx: %w", err)}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (
			id, Start_Time, End_Time, Invocation_Name, Action_Name,
			Database, Schema, State, Failure_Reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, TableName))
	if err != nil {
		return &LoadError{Table: TableName, Records: len(records), Err: fmt.Errorf("prepare: %w", err)}
	}
	defer stmt.Close()

	for _, record := range records {
		var failureReason *string
		if record.FailureReason != "" {
			failureReason = &record.FailureReason
		}

		_, err := stmt.ExecContext(ctx,
			uuid.New().String(),
			record.StartTime,
			record.EndTime,
			record.InvocationName,
			record.ActionName,
			record.Database,
			record.Schema,
			string(record.State),
			failureReason,
		)
		if err != nil {
			return &LoadError{Table: TableName, Records: len(records), Err: fmt.Errorf("exec: %w", err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &LoadError{Table: TableName, Records: len(records), Err: fmt.Errorf("commit: %w", err)}
	}

	return nil
}

// Count returns the number of rows currently in the assertion table.
func (w *Warehouse) Count(ctx context.Context) (int64, error) {
	var count int64
	err := w.db.QueryRowContext(ctx, fmt.Sprintf("SELECT count() FROM %s", TableName)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return count, nil
}
