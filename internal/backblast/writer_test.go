package backblast

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	eventInsertRE      = regexp.QuoteMeta("INSERT INTO event_instances")
	attendanceInsertRE = regexp.QuoteMeta("INSERT INTO attendance (")
	typeInsertRE       = regexp.QuoteMeta("INSERT INTO attendance_x_attendance_types")
)

func TestWriteGroupsCapturesIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	groups := Partition([]Row{
		testRow(1, 10, "Q"),
		testRow(2, 11, "Co-Q"),
		testRow(3, 12, ""),
	})

	mock.ExpectBegin()
	mock.ExpectQuery(eventInsertRE).WillReturnRows(idRows(500))
	mock.ExpectQuery(attendanceInsertRE).WithArgs(int64(500), int64(10), false).WillReturnRows(idRows(900))
	mock.ExpectExec(typeInsertRE).WithArgs(int64(900), 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(attendanceInsertRE).WithArgs(int64(500), int64(11), false).WillReturnRows(idRows(901))
	mock.ExpectExec(typeInsertRE).WithArgs(int64(901), 3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(attendanceInsertRE).WithArgs(int64(500), int64(12), false).WillReturnRows(idRows(902))

	tx, err := db.Begin()
	require.NoError(t, err)

	ids := &Inserted{}
	require.NoError(t, WriteGroups(context.Background(), tx, groups, ids))

	assert.Equal(t, []int64{500}, ids.EventInstanceIDs)
	assert.Equal(t, []int64{900, 901, 902}, ids.AttendanceIDs)
	assert.Equal(t, []int64{900, 901}, ids.AttendanceWithTypes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteGroupsPaxCountAndEventFields(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	groups := Partition([]Row{
		testRow(1, 10, "Q"),
		testRow(2, 11, ""),
	})

	mock.ExpectBegin()
	mock.ExpectQuery(eventInsertRE).
		WithArgs(
			int64(1),            // org_id
			int64(2),            // location_id
			sqlmock.AnyArg(),    // series_id (null)
			true,                // is_active
			false,               // highlight
			"2024-05-01",        // start_date
			sqlmock.AnyArg(),    // start_time
			"The Forge",         // name
			sqlmock.AnyArg(),    // description (null)
			sqlmock.AnyArg(),    // backblast (null)
			2,                   // pax_count
		).
		WillReturnRows(idRows(501))
	mock.ExpectQuery(attendanceInsertRE).WillReturnRows(idRows(910))
	mock.ExpectExec(typeInsertRE).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(attendanceInsertRE).WillReturnRows(idRows(911))

	tx, err := db.Begin()
	require.NoError(t, err)

	require.NoError(t, WriteGroups(context.Background(), tx, groups, &Inserted{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteGroupsStopsOnDatabaseError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	groups := Partition([]Row{
		testRow(1, 10, "Q"),
		testRow(2, 11, ""),
	})

	boom := errors.New("duplicate key value violates unique constraint")

	mock.ExpectBegin()
	mock.ExpectQuery(eventInsertRE).WillReturnRows(idRows(500))
	mock.ExpectQuery(attendanceInsertRE).WillReturnRows(idRows(900))
	mock.ExpectExec(typeInsertRE).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(attendanceInsertRE).WillReturnError(boom)

	tx, err := db.Begin()
	require.NoError(t, err)

	ids := &Inserted{}
	err = WriteGroups(context.Background(), tx, groups, ids)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert attendance")
	assert.Contains(t, err.Error(), "user 11")

	// IDs inserted before the failure stay captured for backout coverage.
	assert.Equal(t, []int64{500}, ids.EventInstanceIDs)
	assert.Equal(t, []int64{900}, ids.AttendanceIDs)
}
