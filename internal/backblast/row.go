package backblast

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultEventName is assigned when the CSV omits an event name. It is
// applied before key construction so it participates in event identity.
const DefaultEventName = "Imported Event"

// Post type values that carry a leadership role. Anything else, including
// an empty value, is plain attendance.
const (
	PostTypeQ   = "Q"
	PostTypeCoQ = "Co-Q"
)

// Row is one validated CSV line. Optional fields are canonicalized at parse
// time: trimmed, with empty string meaning "no value".
type Row struct {
	Line        int // 1-based data row number (header excluded)
	OrgID       int64
	LocationID  int64
	SeriesID    sql.NullInt64
	StartDate   string // YYYY-MM-DD
	StartTime   string // HHMM, or "" when absent
	Name        string
	Description string
	Backblast   string
	UserID      int64
	PostType    string
}

// EventKey is the composite natural key that assigns rows to logical
// events. Two rows with equal keys belong to the same event; any field
// difference produces a distinct event.
type EventKey struct {
	OrgID       int64
	LocationID  int64
	SeriesID    sql.NullInt64
	StartDate   string
	StartTime   string
	Name        string
	Description string
	Backblast   string
}

// Key derives the event key from a row.
func (r Row) Key() EventKey {
	return EventKey{
		OrgID:       r.OrgID,
		LocationID:  r.LocationID,
		SeriesID:    r.SeriesID,
		StartDate:   r.StartDate,
		StartTime:   r.StartTime,
		Name:        r.Name,
		Description: r.Description,
		Backblast:   r.Backblast,
	}
}

// String renders the key for operator-facing error and log messages.
func (k EventKey) String() string {
	series := "none"
	if k.SeriesID.Valid {
		series = strconv.FormatInt(k.SeriesID.Int64, 10)
	}
	tod := k.StartTime
	if tod == "" {
		tod = "n/a"
	}
	return fmt.Sprintf("org=%d location=%d series=%s date=%s time=%s name=%q",
		k.OrgID, k.LocationID, series, k.StartDate, tod, k.Name)
}

// IsQ reports whether the row claims the Q (leader) role.
func (r Row) IsQ() bool { return r.PostType == PostTypeQ }

// IsCoQ reports whether the row claims the Co-Q role.
func (r Row) IsCoQ() bool { return r.PostType == PostTypeCoQ }

// canonical trims a raw CSV value and maps the spreadsheet artifact "#N/A"
// to "no value", so absent columns and empty cells compare equal.
func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v == "#N/A" {
		return ""
	}
	return v
}

func parseID(field, v string) (int64, error) {
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not an integer", field, v)
	}
	return id, nil
}

func parseDate(v string) (string, error) {
	if _, err := time.Parse("2006-01-02", v); err != nil {
		return "", fmt.Errorf("start_date %q is not YYYY-MM-DD", v)
	}
	return v, nil
}

func parseTime(v string) (string, error) {
	if len(v) != 4 {
		return "", fmt.Errorf("start_time %q is not HHMM", v)
	}
	if _, err := time.Parse("1504", v); err != nil {
		return "", fmt.Errorf("start_time %q is not HHMM", v)
	}
	return v, nil
}
