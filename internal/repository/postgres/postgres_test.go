package postgres_test

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zonewatch/internal/model"
	"zonewatch/internal/repository"
	"zonewatch/internal/repository/postgres"
)

var _ repository.RecordSink = (*postgres.RecordRepository)(nil)

func TestInit_CreatesTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS detection_records").WillReturnResult(sqlmock.NewResult(0, 0))

	d := &postgres.Database{DB: db}
	require.NoError(t, d.Init())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendBatch_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ts := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)
	records := []model.LogRecord{
		{Timestamp: ts, Class: "person", Confidence: 0.8, InZone: true, Zone: "Gate", AlertTriggered: true},
		{Timestamp: ts, Class: "car", Confidence: 0.7},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO detection_records")
	prep.ExpectExec().WithArgs(ts, "person", 0.8, true, "Gate", true).WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs(ts, "car", 0.7, false, "", false).WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	repo := postgres.NewRecordRepository(db)
	require.NoError(t, repo.AppendBatch(records))
	assert.Equal(t, "postgres", repo.Name())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendBatch_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO detection_records")
	prep.ExpectExec().WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	repo := postgres.NewRecordRepository(db)
	err = repo.AppendBatch([]model.LogRecord{{Timestamp: time.Now(), Class: "person"}})
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendBatch_EmptyIsNoOp(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, postgres.NewRecordRepository(db).AppendBatch(nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
