package backblast

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// RenderBackout produces a SQL script that deletes every row the run
// inserted, in reverse foreign-key order. Running it against a committed
// import restores the database to its pre-run state.
func RenderBackout(sourceCSV, env, runID string, generated time.Time, ids *Inserted) string {
	var b strings.Builder

	fmt.Fprintf(&b, "-- Backout SQL for import from %s\n", sourceCSV)
	fmt.Fprintf(&b, "-- Generated: %s\n", generated.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "-- Environment: %s\n", env)
	fmt.Fprintf(&b, "-- Run ID: %s\n", runID)
	b.WriteString("-- This file will roll back all inserted data\n\n")

	if len(ids.AttendanceWithTypes) > 0 {
		b.WriteString("-- Delete attendance_x_attendance_types records\n")
		fmt.Fprintf(&b, "DELETE FROM attendance_x_attendance_types WHERE attendance_id IN (%s);\n\n",
			joinIDs(ids.AttendanceWithTypes))
	}
	if len(ids.AttendanceIDs) > 0 {
		b.WriteString("-- Delete attendance records\n")
		fmt.Fprintf(&b, "DELETE FROM attendance WHERE id IN (%s);\n\n", joinIDs(ids.AttendanceIDs))
	}
	if len(ids.EventInstanceIDs) > 0 {
		b.WriteString("-- Delete event_instances records\n")
		fmt.Fprintf(&b, "DELETE FROM event_instances WHERE id IN (%s);\n\n", joinIDs(ids.EventInstanceIDs))
	}

	b.WriteString("-- Summary of deleted records\n")
	fmt.Fprintf(&b, "-- Event instances deleted: %d\n", len(ids.EventInstanceIDs))
	fmt.Fprintf(&b, "-- Attendance records deleted: %d\n", len(ids.AttendanceIDs))
	fmt.Fprintf(&b, "-- Attendance type assignments deleted: %d\n", len(ids.AttendanceWithTypes))

	return b.String()
}

// WriteBackout writes the backout script to dir with the deterministic
// name backout_<env>_<YYYYMMDD_HHMMSS>.sql and returns the path.
func WriteBackout(dir, sourceCSV, env, runID string, generated time.Time, ids *Inserted) (string, error) {
	name := fmt.Sprintf("backout_%s_%s.sql", env, generated.UTC().Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(RenderBackout(sourceCSV, env, runID, generated, ids)), 0o644); err != nil {
		return "", fmt.Errorf("write backout file: %w", err)
	}
	return path, nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
