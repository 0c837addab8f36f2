package backblast

import (
	"context"
	"database/sql"
	"fmt"
)

// attendance_x_attendance_types role identifiers from the shared schema.
const (
	attendanceTypeQ   = 2
	attendanceTypeCoQ = 3
)

const insertEventSQL = `
	INSERT INTO event_instances (
		org_id, location_id, series_id, is_active, highlight,
		start_date, start_time, name, description, backblast, pax_count
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING id`

const insertAttendanceSQL = `
	INSERT INTO attendance (event_instance_id, user_id, is_planned)
	VALUES ($1, $2, $3)
	RETURNING id`

const insertAttendanceTypeSQL = `
	INSERT INTO attendance_x_attendance_types (attendance_id, attendance_type_id)
	VALUES ($1, $2)`

// Inserted tracks the primary keys a run has assigned so far. It is filled
// in insertion order, incrementally, so a failure partway still leaves a
// usable record for backout generation.
type Inserted struct {
	EventInstanceIDs    []int64
	AttendanceIDs       []int64
	AttendanceWithTypes []int64 // attendance IDs that received a Q/Co-Q link
}

// WriteGroups inserts one event per group plus its attendance rows and
// Q/Co-Q type links, all on the supplied transaction, reading assigned IDs
// back before the caller decides to commit or roll back. Groups are written
// in the order given, rows in input order.
func WriteGroups(ctx context.Context, tx *sql.Tx, groups []EventGroup, ids *Inserted) error {
	for _, g := range groups {
		eventID, err := insertEvent(ctx, tx, g)
		if err != nil {
			return err
		}
		ids.EventInstanceIDs = append(ids.EventInstanceIDs, eventID)

		for _, row := range g.Rows {
			var attendanceID int64
			err := tx.QueryRowContext(ctx, insertAttendanceSQL, eventID, row.UserID, false).Scan(&attendanceID)
			if err != nil {
				return fmt.Errorf("insert attendance (event %d, user %d): %w", eventID, row.UserID, err)
			}
			ids.AttendanceIDs = append(ids.AttendanceIDs, attendanceID)

			var typeID int
			switch {
			case row.IsQ():
				typeID = attendanceTypeQ
			case row.IsCoQ():
				typeID = attendanceTypeCoQ
			default:
				continue
			}
			if _, err := tx.ExecContext(ctx, insertAttendanceTypeSQL, attendanceID, typeID); err != nil {
				return fmt.Errorf("insert attendance type (attendance %d, type %d): %w", attendanceID, typeID, err)
			}
			ids.AttendanceWithTypes = append(ids.AttendanceWithTypes, attendanceID)
		}
	}
	return nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, g EventGroup) (int64, error) {
	k := g.Key
	var eventID int64
	err := tx.QueryRowContext(ctx, insertEventSQL,
		k.OrgID,
		k.LocationID,
		k.SeriesID,
		true,  // is_active
		false, // highlight
		k.StartDate,
		nullString(k.StartTime),
		k.Name,
		nullString(k.Description),
		nullString(k.Backblast),
		len(g.Rows), // pax_count
	).Scan(&eventID)
	if err != nil {
		return 0, fmt.Errorf("insert event [%s]: %w", k, err)
	}
	return eventID, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
