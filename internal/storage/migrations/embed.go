package migrations

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed postgres/*.sql
var postgresFS embed.FS

//go:embed clickhouse/*.sql
var clickhouseFS embed.FS

// ErrMigrationOrder is returned when a table is created before a table it references.
var ErrMigrationOrder = errors.New("migration order")

// Schema is the embedded migration set of one backend.
type Schema struct {
	Dir string // directory inside FS, also the backend name
	FS  fs.FS

	// Split applies a file statement by statement (the driver has no multi-statement Exec).
	Split bool

	// References maps a table to the table it holds a foreign key to.
	// The referenced table must be created by an earlier file.
	References map[string]string
}

var (
	// Postgres holds the run metadata and the relational copy of condition_stats.
	Postgres = Schema{
		Dir:        "postgres",
		FS:         postgresFS,
		References: map[string]string{"condition_stats": "evaluation_runs"},
	}

	// Clickhouse holds feature rows and the analytical copy of condition_stats.
	Clickhouse = Schema{
		Dir:   "clickhouse",
		FS:    clickhouseFS,
		Split: true,
	}
)

// Migration is one SQL file ready to apply.
type Migration struct {
	File       string
	Statements []string
	Tables     []string // tables created by the file, in order
}

// Load reads the schema's files in lexical order, prepares their statements
// and checks that referenced tables are created first. Empty files are skipped.
func (s Schema) Load() ([]Migration, error) {
	entries, err := fs.ReadDir(s.FS, s.Dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", s.Dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	var out []Migration
	for _, file := range files {
		data, err := fs.ReadFile(s.FS, s.Dir+"/"+file)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", file, err)
		}
		sql := strings.TrimSpace(string(data))
		if sql == "" {
			continue
		}

		m := Migration{File: file, Tables: createdTables(sql)}
		if s.Split {
			if err := validateNoSemicolonInStrings(sql); err != nil {
				return nil, fmt.Errorf("validate migration %s: %w", file, err)
			}
			m.Statements = splitStatements(sql)
		} else {
			m.Statements = []string{sql}
		}
		out = append(out, m)
	}

	if err := s.checkOrder(out); err != nil {
		return nil, err
	}
	return out, nil
}

// checkOrder verifies every referencing table comes after the table it references.
func (s Schema) checkOrder(migs []Migration) error {
	createdIn := make(map[string]int)
	for i, m := range migs {
		for _, t := range m.Tables {
			if _, ok := createdIn[t]; !ok {
				createdIn[t] = i
			}
		}
	}

	for table, ref := range s.References {
		at, ok := createdIn[table]
		if !ok {
			continue
		}
		refAt, ok := createdIn[ref]
		if !ok {
			return fmt.Errorf("%w: %s references %s, which no %s migration creates", ErrMigrationOrder, table, ref, s.Dir)
		}
		if refAt >= at {
			return fmt.Errorf("%w: %s (%s) must be created after %s (%s)",
				ErrMigrationOrder, table, migs[at].File, ref, migs[refAt].File)
		}
	}
	return nil
}

// apply runs every statement and returns the files applied.
func apply(migs []Migration, exec func(stmt string) error) ([]string, error) {
	applied := make([]string, 0, len(migs))
	for _, m := range migs {
		for _, stmt := range m.Statements {
			if err := exec(stmt); err != nil {
				return applied, fmt.Errorf("apply migration %s: %w", m.File, err)
			}
		}
		applied = append(applied, m.File)
	}
	return applied, nil
}

// createdTables lists the tables named by CREATE TABLE statements in sql.
func createdTables(sql string) []string {
	var tables []string
	for _, line := range strings.Split(sql, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		fields := strings.Fields(line)
		for i := 0; i+2 < len(fields); i++ {
			if !strings.EqualFold(fields[i], "CREATE") || !strings.EqualFold(fields[i+1], "TABLE") {
				continue
			}
			j := i + 2
			if j+2 < len(fields) && strings.EqualFold(fields[j], "IF") &&
				strings.EqualFold(fields[j+1], "NOT") && strings.EqualFold(fields[j+2], "EXISTS") {
				j += 3
			}
			if j < len(fields) {
				if name := strings.TrimRight(fields[j], "(;"); name != "" {
					tables = append(tables, name)
				}
			}
		}
	}
	return tables
}
