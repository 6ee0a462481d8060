package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats_Text(t *testing.T) {
	plan := writeFile(t, "sum.mal", sumPlan)
	db := filepath.Join(t.TempDir(), "runs.db")

	for i := 0; i < 2; i++ {
		_, err := execute(t, "optimize", "--db", db, "--pipeline", "minimal", plan)
		require.NoError(t, err)
	}

	out, err := execute(t, "stats", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "2 unit(s)\n")
	assert.Contains(t, out, "PASS")
	assert.Contains(t, out, "deadcode")
}

func TestStats_MissingDatabase(t *testing.T) {
	_, err := execute(t, "stats", "--db", filepath.Join(t.TempDir(), "none.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")
}

func TestStats_RequiresDatabaseFlag(t *testing.T) {
	_, err := execute(t, "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "db")
}
