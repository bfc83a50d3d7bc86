package migrate

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPending_SortsAndFilters(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/0002_more.sql": {Data: []byte("SELECT 2")},
		"migrations/0001_init.sql": {Data: []byte("SELECT 1")},
		"migrations/README.md":     {Data: []byte("docs")},
		"migrations/old/0000.sql":  {Data: []byte("SELECT 0")},
	}

	files, err := Pending(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.sql", "0002_more.sql"}, files)
}

func TestPending_EmbeddedSchema(t *testing.T) {
	files, err := Pending(migrationsFS)
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, "0001_init.sql", files[0])

	body, err := migrationsFS.ReadFile("migrations/0001_init.sql")
	require.NoError(t, err)
	for _, table := range []string{"identities", "lots", "items", "bids"} {
		assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS "+table)
	}
	assert.Contains(t, string(body), "checked = (checklist_status = 'checked')")
}

func TestPending_MissingDir(t *testing.T) {
	_, err := Pending(fstest.MapFS{})
	assert.Error(t, err)
}
