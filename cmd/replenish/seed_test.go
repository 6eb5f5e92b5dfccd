package main

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUpsertQuery(t *testing.T) {
	got := buildUpsertQuery("stores", []string{"id", "name", "tier"}, []string{"id"})
	assert.Equal(t, "INSERT INTO stores (id, name, tier) VALUES ($1, $2, $3) ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, tier = EXCLUDED.tier", got)

	got = buildUpsertQuery("holidays", []string{"holiday_date", "name"}, []string{"holiday_date", "name"})
	assert.Equal(t, "INSERT INTO holidays (holiday_date, name) VALUES ($1, $2) ON CONFLICT (holiday_date, name) DO NOTHING", got)
}

func TestSelectColumnsKeepsKnownHeaderColumns(t *testing.T) {
	spec := seedSpecs[0]
	cols, idx, err := selectColumns([]string{"\ufeffID", "notes", "Name", "tier"}, spec)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "tier"}, cols)
	assert.Equal(t, []int{0, 2, 3}, idx)

	_, _, err = selectColumns([]string{"name"}, spec)
	assert.Error(t, err)
}

func TestSeedTableUpsertsRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stores.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,name,tier,district\ns1,Central,premium,\ns2,North,,East\n"), 0o600))

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	query := regexp.QuoteMeta("INSERT INTO stores (id, name, tier, district) VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, tier = EXCLUDED.tier, district = EXCLUDED.district")
	mock.ExpectBegin()
	mock.ExpectExec(query).WithArgs("s1", "Central", "premium", nil).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("s2", "North", nil, "East").WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := db.Begin()
	require.NoError(t, err)
	n, err := seedTable(context.Background(), tx, seedSpecs[0], path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedAllSkipsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "holidays.csv"), []byte("holiday_date,name,tag\n2025-12-25,Christmas,holiday\n"), 0o600))

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO holidays (holiday_date, name, tag)")).
		WithArgs("2025-12-25", "Christmas", "holiday").
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, seedAll(context.Background(), tx, dir))
	require.NoError(t, mock.ExpectationsWereMet())
}
