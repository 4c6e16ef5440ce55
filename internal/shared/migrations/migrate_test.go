package migrations

import (
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

var indexedColumns = regexp.MustCompile(`(?is)ON\s+(\w+)\s*\(([^)]+)\)`)

// Every raw index statement must name only tables and columns the model
// registry actually defines. A statement referencing a missing column fails
// on a fresh database and takes the whole boot down with it.
func TestConstraintStatementsMatchRegistry(t *testing.T) {
	tables := make(map[string]map[string]bool)
	cache := &sync.Map{}
	namer := schema.NamingStrategy{}

	for _, model := range Registry() {
		parsed, err := schema.Parse(model, cache, namer)
		require.NoError(t, err)

		columns := tables[parsed.Table]
		if columns == nil {
			columns = make(map[string]bool)
			tables[parsed.Table] = columns
		}
		for _, field := range parsed.Fields {
			if field.DBName != "" {
				columns[field.DBName] = true
			}
		}
	}

	for _, stmt := range constraintStatements {
		match := indexedColumns.FindStringSubmatch(stmt)
		require.NotNilf(t, match, "statement has no ON <table> (<columns>) clause: %s", stmt)

		table := match[1]
		columns, ok := tables[table]
		require.Truef(t, ok, "statement indexes unknown table %q", table)

		for _, raw := range strings.Split(match[2], ",") {
			column := strings.TrimSpace(raw)
			require.Truef(t, columns[column], "statement indexes unknown column %s.%s", table, column)
		}
	}
}

func TestConstraintStatementsAreIdempotent(t *testing.T) {
	for _, stmt := range constraintStatements {
		require.Containsf(t, stmt, "IF NOT EXISTS", "statement would fail on a second boot: %s", stmt)
	}
}
