// Package migrations embeds the schema scripts so binaries do not depend on
// the working directory.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"

	"floodguard/pkg/database"
)

//go:embed *.sql
var files embed.FS

const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// Files returns the migration file names for direction in execution order
func Files(direction string) ([]string, error) {
	if direction != DirectionUp && direction != DirectionDown {
		return nil, fmt.Errorf("invalid migration direction %q", direction)
	}

	entries, err := files.ReadDir(".")
	if err != nil {
		return nil, err
	}

	suffix := "." + direction + ".sql"
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), suffix) {
			names = append(names, e.Name())
		}
	}

	sort.Strings(names)
	if direction == DirectionDown {
		sort.Sort(sort.Reverse(sort.StringSlice(names)))
	}
	return names, nil
}

// Statements splits a migration file into individual statements. Each is
// executed separately since not every driver accepts multi-statement Exec.
func Statements(name string) ([]string, error) {
	content, err := files.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
	}

	var (
		stmts   []string
		current strings.Builder
	)
	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSuffix(strings.TrimSpace(current.String()), ";")
			stmts = append(stmts, stmt)
			current.Reset()
		}
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		stmts = append(stmts, rest)
	}
	return stmts, nil
}

// Apply runs every migration for direction inside one transaction and
// returns the names of the files it applied
func Apply(ctx context.Context, db *database.DB, direction string) ([]string, error) {
	names, err := Files(direction)
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, name := range names {
		stmts, err := Statements(name)
		if err != nil {
			return nil, err
		}
		for i, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return nil, fmt.Errorf("migration %s statement %d failed: %w", name, i+1, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit migrations: %w", err)
	}
	return names, nil
}
