package migrations

import (
	"database/sql"
	"testing"
	"testing/fstest"

	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func testSource() fstest.MapFS {
	return fstest.MapFS{
		"sql/000001_create_items.up.sql":   {Data: []byte("CREATE TABLE items (id INTEGER PRIMARY KEY);")},
		"sql/000001_create_items.down.sql": {Data: []byte("DROP TABLE items;")},
		"sql/000002_add_name.up.sql":       {Data: []byte("ALTER TABLE items ADD COLUMN name TEXT;")},
		"sql/000002_add_name.down.sql":     {Data: []byte("ALTER TABLE items DROP COLUMN name;")},
	}
}

func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrator_Up(t *testing.T) {
	db := openMemoryDB(t)

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	require.NoError(t, err)

	m, err := NewWithDatabase(testSource(), "sql", "sqlite", driver, nil)
	require.NoError(t, err)
	defer func() { assert.NoError(t, m.Close()) }()

	require.NoError(t, m.Up())

	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	_, err = db.Exec("INSERT INTO items (id, name) VALUES (1, 'first')")
	assert.NoError(t, err, "migrated schema should accept rows")

	// Applying again is a no-op.
	assert.NoError(t, m.Up())
}

func TestNewWithDatabase_MissingDir(t *testing.T) {
	db := openMemoryDB(t)

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	require.NoError(t, err)

	_, err = NewWithDatabase(testSource(), "nope", "sqlite", driver, nil)
	assert.Error(t, err)
}

func TestMigrator_CloseKeepsCallerDB(t *testing.T) {
	db := openMemoryDB(t)

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	require.NoError(t, err)

	m, err := NewWithDatabase(testSource(), "sql", "sqlite", driver, nil)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	assert.NoError(t, db.Ping(), "caller-owned database must stay open")
}
