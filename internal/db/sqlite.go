package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tordrt/catalogmodel/internal/model"
)

// SQLiteClient manages the connection to SQLite
type SQLiteClient struct {
	db *sql.DB
}

// NewSQLiteClient opens the SQLite database file at path, creating it if
// it does not exist
func NewSQLiteClient(ctx context.Context, path string) (*SQLiteClient, error) {
	db, err := openSQL(ctx, "sqlite3", path)
	if err != nil {
		return nil, err
	}
	return &SQLiteClient{db: db}, nil
}

// openSQL opens a database/sql pool and checks that it answers
func openSQL(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Close closes the database connection
func (c *SQLiteClient) Close() error {
	return c.db.Close()
}

// GetDB returns the underlying database connection
func (c *SQLiteClient) GetDB() *sql.DB {
	return c.db
}

// Export creates one SQLite table per catalog table inside a single
// transaction. Tables are named schema:table; with keys, each catalog key
// becomes a unique constraint.
func (c *SQLiteClient) Export(ctx context.Context, m *model.Model, keys bool) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, s := range m.Schemas() {
		for _, t := range s.Tables() {
			if _, err := tx.ExecContext(ctx, t.SQLiteDDL(keys)); err != nil {
				return fmt.Errorf("failed to create table %s: %w", t.SQLiteName(), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit export: %w", err)
	}
	return nil
}

// ExportSQLite writes the tables of a model into the SQLite database at path
func ExportSQLite(ctx context.Context, m *model.Model, path string, keys bool) error {
	client, err := NewSQLiteClient(ctx, path)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	return client.Export(ctx, m, keys)
}
