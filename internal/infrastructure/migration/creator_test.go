package migration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"create fee catalog", "create_fee_catalog"},
		{"Add-Cheque-Index", "add_cheque_index"},
		{"ADD_ERROR_LOGS", "add_error_logs"},
		{"add__receipt__index", "add_receipt_index"},
		{"Backfill 2025", "backfill_2025"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"!!!", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func fixedCreator(dir string) *Creator {
	return &Creator{
		Dir: dir,
		Now: func() time.Time { return time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC) },
	}
}

func TestCreator_Create(t *testing.T) {
	dir := t.TempDir()

	mf, err := fixedCreator(dir).Create("add fee payment notes", "Widen notes column")
	require.NoError(t, err)

	assert.Equal(t, "20250110090000", mf.Version)
	assert.Equal(t, filepath.Join(dir, "20250110090000_add_fee_payment_notes.up.sql"), mf.UpPath)
	assert.Equal(t, filepath.Join(dir, "20250110090000_add_fee_payment_notes.down.sql"), mf.DownPath)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Migration: add_fee_payment_notes")
	assert.Contains(t, string(up), "-- Description: Widen notes column")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "(Rollback)")
}

func TestCreator_CreateRejectsEmptyName(t *testing.T) {
	_, err := fixedCreator(t.TempDir()).Create("???", "")
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestCreator_CreateRefusesToOverwrite(t *testing.T) {
	c := fixedCreator(t.TempDir())
	_, err := c.Create("same", "")
	require.NoError(t, err)
	_, err = c.Create("same", "")
	assert.Error(t, err)
}

func TestCreator_CreatesDirectory(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "nested", "migrations")

	_, err := fixedCreator(nested).Create("init", "")
	require.NoError(t, err)

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("-- test"), 0o644))
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir,
		"20250112140000_create_error_logs.up.sql",
		"20250112140000_create_error_logs.down.sql",
		"20250110090000_create_fee_catalog.up.sql",
		"20250110090000_create_fee_catalog.down.sql",
		"20250110090100_create_fee_ledger.up.sql",
		"README.md",
		"notaversion_x.up.sql",
	)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "20250101000000_dir.up.sql"), 0o755))

	entries, err := List(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "20250110090000_create_fee_catalog", entries[0].BaseName())
	assert.True(t, entries[0].HasDown)
	assert.Equal(t, "create_fee_ledger", entries[1].Name)
	assert.False(t, entries[1].HasDown)
	assert.Equal(t, uint64(20250112140000), entries[2].Version)
}

func TestList_MissingDirectory(t *testing.T) {
	entries, err := List(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPartition(t *testing.T) {
	entries := []Entry{{Version: 1, Name: "a"}, {Version: 2, Name: "b"}, {Version: 3, Name: "c"}}

	applied, pending := Partition(entries, 2)
	assert.Len(t, applied, 2)
	require.Len(t, pending, 1)
	assert.Equal(t, "c", pending[0].Name)

	applied, pending = Partition(entries, 0)
	assert.Empty(t, applied)
	assert.Len(t, pending, 3)
}

func TestRepositoryMigrationsArePaired(t *testing.T) {
	entries, err := List(filepath.Join("..", "..", "..", "migrations"))
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.True(t, e.HasDown, "%s has no down migration", e.BaseName())
	}
}
