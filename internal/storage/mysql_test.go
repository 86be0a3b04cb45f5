package storage

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runColumns = []string{
	"id", "total_test_cases", "passed_test_cases", "failed_test_cases", "crashed_test_cases",
	"not_found_test_cases", "executables", "duration", "duration_seconds", "workers", "created_at",
}

var failureColumns = []string{
	"test_name", "executable", "file", "line", "message", "outcome", "duration_ms", "crashed", "resolved",
}

func newMockStorage(t *testing.T) (*MySQLStorage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	for _, stmt := range schema {
		mock.ExpectExec(stmt).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	store, err := NewMySQLStorageWithDB(db)
	require.NoError(t, err)
	return store, mock
}

func TestMySQLStorage_CreateTablesFails(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(schema[0]).WillReturnError(errors.New("access denied"))

	_, err = NewMySQLStorageWithDB(db)
	assert.ErrorContains(t, err, "access denied")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStorage_Save(t *testing.T) {
	store, mock := newMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec(insertRunQuery).
		WithArgs(4, 1, 2, 1, 1, 2, "2s", 2.0, 3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec(insertFailureQuery).
		WithArgs(int64(7), "Math.Subtracts", "/build/unit_tests", "math_test.cc", 20, "expected 1 got 2\n", "failed", int64(4), false, false).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insertFailureQuery).
		WithArgs(int64(7), "Math.Divides", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "failed", sqlmock.AnyArg(), true, false).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec(insertFailureQuery).
		WithArgs(int64(7), "Db.Connects", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "not found", sqlmock.AnyArg(), false, false).
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Save(sampleResults(), 2*time.Second, 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStorage_SaveRollsBack(t *testing.T) {
	store, mock := newMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec(insertRunQuery).WillReturnError(errors.New("table full"))
	mock.ExpectRollback()

	err := store.Save(sampleResults(), time.Second, 1)
	assert.ErrorContains(t, err, "table full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStorage_Load(t *testing.T) {
	store, mock := newMockStorage(t)

	mock.ExpectQuery(latestRunQuery).WillReturnRows(
		sqlmock.NewRows(runColumns).AddRow(9, 4, 1, 2, 1, 1, 2, "2s", 2.0, 3, "2026-10-14T10:00:00Z"))
	mock.ExpectQuery(failuresQuery).WithArgs(int64(9)).WillReturnRows(
		sqlmock.NewRows(failureColumns).
			AddRow("Math.Subtracts", "/build/unit_tests", "math_test.cc", 20, "expected 1 got 2\n", "failed", 4, false, true).
			AddRow("Math.Divides", "/build/unit_tests", "", 0, "crashed", "failed", 0, true, false))

	output, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 4, output.Meta.TotalTestCases)
	assert.Equal(t, "2026-10-14T10:00:00Z", output.Meta.Timestamp)
	require.Len(t, output.Details, 2)
	assert.True(t, output.Details[0].Resolved)
	assert.True(t, output.Details[1].Crashed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStorage_LoadWithoutRuns(t *testing.T) {
	store, mock := newMockStorage(t)

	mock.ExpectQuery(latestRunQuery).WillReturnError(sql.ErrNoRows)

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoRuns)
}

func TestMySQLStorage_SaveOutput(t *testing.T) {
	store, mock := newMockStorage(t)
	output := BuildOutput(sampleResults(), time.Second, 2)
	output.Details = output.Details[:1]
	output.Details[0].Resolved = true

	mock.ExpectBegin()
	mock.ExpectQuery(latestRunQuery).WillReturnRows(
		sqlmock.NewRows(runColumns).AddRow(9, 4, 1, 2, 1, 1, 2, "1s", 1.0, 2, "2026-10-14T10:00:00Z"))
	mock.ExpectExec(updateRunQuery).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(deleteFailuresQuery).WithArgs(int64(9)).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(insertFailureQuery).
		WithArgs(int64(9), "Math.Subtracts", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), false, true).
		WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectCommit()

	require.NoError(t, store.SaveOutput(&output))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSplitDSN(t *testing.T) {
	server, name, err := splitDSN("ci:secret@tcp(db:3306)/gtp_results?parseTime=true")
	require.NoError(t, err)
	assert.Equal(t, "gtp_results", name)
	assert.NotContains(t, server, "gtp_results")
	assert.Contains(t, server, "tcp(db:3306)/")

	_, _, err = splitDSN("ci:secret@tcp(db:3306)/")
	assert.ErrorContains(t, err, "no database name")

	_, _, err = splitDSN("tcp(db:3306")
	assert.Error(t, err)
}

func TestCreateDatabase(t *testing.T) {
	t.Run("exists", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(databaseExistsQuery).WithArgs("gtp").
			WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		require.NoError(t, createDatabase(db, "gtp"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("created", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(databaseExistsQuery).WithArgs("gtp").
			WillReturnRows(sqlmock.NewRows([]string{"1"}))
		mock.ExpectExec("CREATE DATABASE IF NOT EXISTS `gtp`").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, createDatabase(db, "gtp"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("check fails", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(databaseExistsQuery).WithArgs("gtp").WillReturnError(errors.New("denied"))

		assert.ErrorContains(t, createDatabase(db, "gtp"), "denied")
	})
}
