package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// MySQLClient manages the connection to MySQL
type MySQLClient struct {
	db *sql.DB
}

// NewMySQLClient connects to the MySQL server named by a go-sql-driver DSN
func NewMySQLClient(ctx context.Context, connString string) (*MySQLClient, error) {
	db, err := openSQL(ctx, "mysql", connString)
	if err != nil {
		return nil, err
	}
	return &MySQLClient{db: db}, nil
}

// NewMySQLClientFromDB wraps an already opened connection pool
func NewMySQLClientFromDB(db *sql.DB) *MySQLClient {
	return &MySQLClient{db: db}
}

// Close closes the database connection
func (c *MySQLClient) Close() error {
	return c.db.Close()
}

// GetDB returns the underlying database connection
func (c *MySQLClient) GetDB() *sql.DB {
	return c.db
}

// ParseDatabaseName returns the database named in a MySQL DSN
func ParseDatabaseName(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("failed to parse connection string: %w", err)
	}
	if cfg.DBName == "" {
		return "", fmt.Errorf("connection string names no database")
	}
	return cfg.DBName, nil
}
