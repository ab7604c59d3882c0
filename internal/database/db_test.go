package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_MigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prices.db")
	db, err := New(Config{Path: path, Profile: ProfileCache, Name: "prices"})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, path, db.Path())
	assert.Equal(t, "prices", db.Name())

	require.NoError(t, db.Migrate())
	require.NoError(t, db.Migrate())

	var n int
	err = db.Conn().QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'prices'").Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, db.QuickCheck(context.Background()))
	assert.NoError(t, db.WALCheckpoint(""))
}

func TestMigrate_UnknownNameIsNoop(t *testing.T) {
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "x.db"), Name: "unknown"})
	require.NoError(t, err)
	defer db.Close()
	assert.NoError(t, db.Migrate())
}

func TestWithTransaction(t *testing.T) {
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "tx.db"), Name: "prices"})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())

	count := func() int {
		var n int
		require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM prices").Scan(&n))
		return n
	}

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO prices (ticker, date, close, fetched_at) VALUES ('A', '2020-01-02', 10.5, 0)")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count())

	boom := errors.New("boom")
	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO prices (ticker, date, close, fetched_at) VALUES ('B', '2020-01-02', 1, 0)"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, count(), "failed transaction is rolled back")

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		panic("unexpected")
	})
	assert.ErrorContains(t, err, "panic in transaction")

	assert.Error(t, WithTransaction(nil, func(tx *sql.Tx) error { return nil }))
}
