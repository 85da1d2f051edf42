package testdb

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/forgo/atelier/internal/database"
)

// TestDB is an isolated, migrated database
type TestDB struct {
	DB        *database.SurrealDB
	Namespace string
	Database  string
	t         testing.TB
}

var (
	migrationsOnce sync.Once
	migrations     []database.Migration
	migrationsErr  error

	counter atomic.Int64
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func testConfig() database.Config {
	return database.Config{
		Host:     envOr("TEST_DB_HOST", "localhost"),
		Port:     envOr("TEST_DB_PORT", "8000"),
		User:     envOr("TEST_DB_USER", "root"),
		Password: envOr("TEST_DB_PASSWORD", "root"),
	}
}

func loadMigrations() ([]database.Migration, error) {
	migrationsOnce.Do(func() {
		dir, err := database.FindMigrationsDir()
		if err != nil {
			migrationsErr = err
			return
		}
		migrations, migrationsErr = database.LoadMigrations(dir)
	})
	return migrations, migrationsErr
}

// New connects to a fresh namespace and applies every migration. The
// namespace is removed in t.Cleanup.
func New(t testing.TB) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("testdb: skipped in -short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := testConfig()
	cfg.Namespace = fmt.Sprintf("test_%d_%d", time.Now().UnixNano(), counter.Add(1))
	cfg.Database = "test"

	db := database.NewSurrealDB(cfg)
	if err := db.Connect(ctx); err != nil {
		if os.Getenv("TEST_DB_REQUIRED") != "" {
			t.Fatalf("testdb: connect: %v", err)
		}
		t.Skipf("testdb: no database at %s:%s: %v", cfg.Host, cfg.Port, err)
	}

	tdb := &TestDB{DB: db, Namespace: cfg.Namespace, Database: cfg.Database, t: t}
	t.Cleanup(tdb.close)

	migs, err := loadMigrations()
	if err != nil {
		t.Fatalf("testdb: load migrations: %v", err)
	}
	if err := database.ApplyMigrations(ctx, db, migs); err != nil {
		t.Fatalf("testdb: %v", err)
	}

	return tdb
}

func (tdb *TestDB) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = tdb.DB.Execute(ctx, "REMOVE NAMESPACE "+tdb.Namespace, nil)
	_ = tdb.DB.Close()
}

// Ctx returns a context bounded by the test's lifetime
func (tdb *TestDB) Ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	tdb.t.Cleanup(cancel)
	return ctx
}

// MustExec runs a statement and fails the test on error
func (tdb *TestDB) MustExec(query string, vars map[string]interface{}) {
	tdb.t.Helper()
	if err := tdb.DB.Execute(tdb.Ctx(), query, vars); err != nil {
		tdb.t.Fatalf("testdb: exec failed: %v\nQuery: %s", err, query)
	}
}

// MustQuery runs a query and fails the test on error
func (tdb *TestDB) MustQuery(query string, vars map[string]interface{}) []interface{} {
	tdb.t.Helper()
	results, err := tdb.DB.Query(tdb.Ctx(), query, vars)
	if err != nil {
		tdb.t.Fatalf("testdb: query failed: %v\nQuery: %s", err, query)
	}
	return results
}
