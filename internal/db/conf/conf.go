// Package conf
package conf

import (
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Config holds a database connection and metadata
type Config struct {
	Name      string
	DB        *sql.DB
	ConnStr   string
	AdminDB   *sql.DB
	SchemaSQL string
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// FindSchema walks up from the working directory looking for scripts/schema.sql.
func FindSchema() (string, error) {
	path := filepath.Join("scripts", "schema.sql")
	for range 4 {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", fmt.Errorf("scripts/schema.sql not found")
}

// SplitStatements splits a schema file into statements. Hypertable calls are
// dropped when timescale is false.
func SplitStatements(schema string, timescale bool) []string {
	var statements []string
	for stmt := range strings.SplitSeq(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if !timescale && strings.Contains(strings.ToLower(stmt), "create_hypertable") {
			continue
		}
		statements = append(statements, stmt)
	}
	return statements
}

// NewTestConfig creates a database with a random name and applies the schema.
// Connection parameters come from TEST_DB_HOST, TEST_DB_PORT, TEST_DB_USER and
// TEST_DB_PASSWORD. The test is skipped when PostgreSQL is not reachable.
func NewTestConfig(t *testing.T) (*Config, func()) {
	t.Helper()

	host := env("TEST_DB_HOST", "localhost")
	port := env("TEST_DB_PORT", "5432")
	user := env("TEST_DB_USER", "postgres")
	password := env("TEST_DB_PASSWORD", "postgres")

	adminConnStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=postgres sslmode=disable",
		host, port, user, password)

	adminDB, err := sql.Open("postgres", adminConnStr)
	if err != nil {
		t.Fatalf("Failed to connect to postgres: %v", err)
	}

	if err := adminDB.Ping(); err != nil {
		adminDB.Close()
		t.Skipf("Skipping test: PostgreSQL is not running or not accessible: %v", err)
		return nil, func() {}
	}

	dbName := fmt.Sprintf("test_mlsignal_%d", rand.Int31())
	if _, err := adminDB.Exec(fmt.Sprintf("CREATE DATABASE %s", dbName)); err != nil {
		adminDB.Close()
		t.Fatalf("Failed to create test database: %v", err)
	}

	schemaPath, err := FindSchema()
	if err != nil {
		adminDB.Close()
		t.Fatalf("Failed to locate schema: %v", err)
	}
	schemaSQLBytes, err := os.ReadFile(schemaPath)
	if err != nil {
		adminDB.Close()
		t.Fatalf("Failed to read schema.sql: %v", err)
	}
	schema := string(schemaSQLBytes)

	dbConnStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbName)
	db, err := sql.Open("postgres", dbConnStr)
	if err != nil {
		adminDB.Close()
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	var hasTimescaleDB bool
	if err := db.QueryRow("SELECT EXISTS (SELECT 1 FROM pg_available_extensions WHERE name = 'timescaledb')").Scan(&hasTimescaleDB); err != nil {
		t.Logf("Warning: Failed to check for TimescaleDB extension: %v", err)
	}
	if hasTimescaleDB {
		if _, err := db.Exec("CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE;"); err != nil {
			t.Logf("Warning: Failed to create TimescaleDB extension: %v", err)
			hasTimescaleDB = false
		}
	}

	for _, stmt := range SplitStatements(schema, hasTimescaleDB) {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			adminDB.Close()
			t.Fatalf("Failed to apply schema statement: %s\nError: %v", stmt, err)
		}
	}

	cfg := &Config{
		Name:      dbName,
		DB:        db,
		ConnStr:   dbConnStr,
		AdminDB:   adminDB,
		SchemaSQL: schema,
	}

	cleanup := func() {
		db.Close()
		if _, err := adminDB.Exec(fmt.Sprintf("DROP DATABASE %s WITH (FORCE)", dbName)); err != nil {
			t.Logf("Warning: Failed to drop test database %s: %v", dbName, err)
		}
		adminDB.Close()
	}

	return cfg, cleanup
}
