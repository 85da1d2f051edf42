package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Migration is one .surql file from the migrations directory
type Migration struct {
	Name string
	SQL  string
}

// LoadMigrations reads every .surql file in dir, sorted by name
func LoadMigrations(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".surql") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	migrations := make([]Migration, 0, len(names))
	for _, name := range names {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		migrations = append(migrations, Migration{Name: name, SQL: string(content)})
	}

	return migrations, nil
}

// ApplyMigrations runs the migrations in order, stopping at the first failure.
// Schema statements use IF NOT EXISTS / OVERWRITE so reapplying is safe.
func ApplyMigrations(ctx context.Context, db Database, migrations []Migration) error {
	for _, m := range migrations {
		if err := db.Execute(ctx, m.SQL, nil); err != nil {
			return fmt.Errorf("migration %s: %w", m.Name, err)
		}
	}
	return nil
}

// FindMigrationsDir looks for a migrations directory from the working
// directory upwards, which lets package tests locate it.
func FindMigrationsDir() (string, error) {
	candidates := []string{
		"migrations",
		"../migrations",
		"../../migrations",
		"../../../migrations",
	}
	if root := os.Getenv("ATELIER_ROOT"); root != "" {
		candidates = append([]string{filepath.Join(root, "migrations")}, candidates...)
	}

	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("could not find migrations directory")
}
