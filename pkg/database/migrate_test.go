package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(Migrations(), "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Fatalf("unexpected file %s", name)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestInitialSchemaKeepsOnlyAdministrativeStatus(t *testing.T) {
	raw, err := fs.ReadFile(Migrations(), "migrations/000001_init_schema.up.sql")
	require.NoError(t, err)
	schema := string(raw)

	assert.Contains(t, schema, "administrative_status TEXT CHECK (administrative_status IN ('cancelled', 'paused'))")
	assert.Contains(t, schema, "UNIQUE (course_id, day_of_week, start_time)")
	assert.Contains(t, schema, "UNIQUE (assignment_id, student_id)")
	assert.NotContains(t, schema, "'upcoming'")
}
