package backblast

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLog(t *testing.T) *logrus.Entry {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log.WithField("test", t.Name())
}

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// Three rows sharing every key field with one Q: one event, three
// attendance rows, run succeeds.
const happyCSV = sampleHeader +
	"1,2,,2024-05-01,0530,The Forge,,,10,Q\n" +
	"1,2,,2024-05-01,0530,The Forge,,,11,\n" +
	"1,2,,2024-05-01,0530,The Forge,,,12,\n"

func expectHappyPathWrites(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM orgs")).WillReturnRows(idRows(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM locations")).WillReturnRows(idRows(2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users")).WillReturnRows(idRows(10, 11, 12))
	mock.ExpectBegin()
	mock.ExpectQuery(eventInsertRE).WillReturnRows(idRows(500))
	mock.ExpectQuery(attendanceInsertRE).WillReturnRows(idRows(900))
	mock.ExpectExec(typeInsertRE).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(attendanceInsertRE).WillReturnRows(idRows(901))
	mock.ExpectQuery(attendanceInsertRE).WillReturnRows(idRows(902))
}

func TestRunDryRunRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	dir := t.TempDir()
	expectHappyPathWrites(mock)
	mock.ExpectRollback()

	res, err := Run(context.Background(), db, discardLog(t), Options{
		InputCSV:    writeTempCSV(t, happyCSV),
		Environment: "staging",
		Commit:      false,
		BackoutDir:  dir,
		Now:         fixedClock(time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	assert.False(t, res.Committed)

	assert.Equal(t, 3, res.Summary.RowsProcessed)
	assert.Equal(t, 1, res.Summary.EventsCreated)
	assert.Equal(t, 3, res.Summary.AttendanceCreated)
	assert.Equal(t, 1, res.Summary.QCount)
	assert.Equal(t, 0, res.Summary.CoQCount)

	// IDs provisionally assigned before the rollback are still in the
	// backout file.
	data, readErr := os.ReadFile(res.BackoutPath)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "DELETE FROM event_instances WHERE id IN (500);")
	assert.Contains(t, string(data), "DELETE FROM attendance WHERE id IN (900,901,902);")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunCommits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectHappyPathWrites(mock)
	mock.ExpectCommit()

	res, err := Run(context.Background(), db, discardLog(t), Options{
		InputCSV:    writeTempCSV(t, happyCSV),
		Environment: "staging",
		Commit:      true,
		BackoutDir:  t.TempDir(),
	})
	require.NoError(t, err)
	assert.True(t, res.Committed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunDryRunIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	clock := fixedClock(time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC))
	input := writeTempCSV(t, happyCSV)

	runOnce := func() (Summary, string) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		expectHappyPathWrites(mock)
		mock.ExpectRollback()

		res, err := Run(context.Background(), db, discardLog(t), Options{
			InputCSV:    input,
			Environment: "staging",
			BackoutDir:  dir,
			RunID:       "fixed-run-id",
			Now:         clock,
		})
		require.NoError(t, err)

		data, err := os.ReadFile(res.BackoutPath)
		require.NoError(t, err)
		return res.Summary, string(data)
	}

	firstSummary, firstBackout := runOnce()
	secondSummary, secondBackout := runOnce()
	assert.Equal(t, firstSummary, secondSummary)
	assert.Equal(t, firstBackout, secondBackout)
}

func TestRunFailsOnTwoQs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	csv := sampleHeader +
		"1,2,,2024-05-01,0530,The Forge,,,10,Q\n" +
		"1,2,,2024-05-01,0530,The Forge,,,11,Q\n" +
		"1,2,,2024-05-01,0530,The Forge,,,12,\n"

	res, err := Run(context.Background(), db, discardLog(t), Options{
		InputCSV:    writeTempCSV(t, csv),
		Environment: "staging",
		BackoutDir:  t.TempDir(),
	})
	require.Error(t, err)

	var consErr *ConsistencyError
	require.ErrorAs(t, err, &consErr)
	assert.False(t, res.Committed)

	// Nothing reached the database; the backout artifact still exists.
	require.NoError(t, mock.ExpectationsWereMet())
	data, readErr := os.ReadFile(res.BackoutPath)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "-- Event instances deleted: 0")
}

func TestRunFailsOnMissingReference(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	csv := sampleHeader +
		"9999,2,,2024-05-01,0530,The Forge,,,10,Q\n"

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM orgs")).WillReturnRows(idRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM locations")).WillReturnRows(idRows(2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users")).WillReturnRows(idRows(10))

	res, err := Run(context.Background(), db, discardLog(t), Options{
		InputCSV:    writeTempCSV(t, csv),
		Environment: "staging",
		BackoutDir:  t.TempDir(),
	})
	require.Error(t, err)

	var refErr *ReferenceError
	require.ErrorAs(t, err, &refErr)
	assert.Contains(t, err.Error(), "9999")
	assert.False(t, res.Committed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunAbortsTransactionOnInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM orgs")).WillReturnRows(idRows(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM locations")).WillReturnRows(idRows(2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users")).WillReturnRows(idRows(10, 11, 12))
	mock.ExpectBegin()
	mock.ExpectQuery(eventInsertRE).WillReturnRows(idRows(500))
	mock.ExpectQuery(attendanceInsertRE).WillReturnRows(idRows(900))
	mock.ExpectExec(typeInsertRE).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(attendanceInsertRE).WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectRollback()

	res, err := Run(context.Background(), db, discardLog(t), Options{
		InputCSV:    writeTempCSV(t, happyCSV),
		Environment: "staging",
		Commit:      true,
		BackoutDir:  t.TempDir(),
	})
	require.Error(t, err)
	assert.False(t, res.Committed)

	// The backout covers what was inserted before the failure.
	data, readErr := os.ReadFile(res.BackoutPath)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "DELETE FROM event_instances WHERE id IN (500);")
	require.NoError(t, mock.ExpectationsWereMet())
}
