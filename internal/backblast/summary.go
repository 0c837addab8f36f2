package backblast

import (
	"fmt"
	"strings"
	"time"
)

// PhaseTiming records the wall-clock cost of one pipeline phase.
type PhaseTiming struct {
	Phase   string
	Elapsed time.Duration
}

// Summary is the operator-facing account of one run, computed from the
// validated input and the captured insert counts.
type Summary struct {
	RowsProcessed     int
	EventsCreated     int
	AttendanceCreated int
	QCount            int
	CoQCount          int
	UniqueOrgs        int
	UniqueLocations   int
	OldestDate        string
	NewestDate        string
	Timings           []PhaseTiming
}

// BuildSummary derives the summary counts from the partitioned input.
// Dates compare lexicographically because they are canonical YYYY-MM-DD.
func BuildSummary(groups []EventGroup) Summary {
	s := Summary{EventsCreated: len(groups)}

	orgs := map[int64]struct{}{}
	locations := map[int64]struct{}{}

	for _, g := range groups {
		orgs[g.Key.OrgID] = struct{}{}
		locations[g.Key.LocationID] = struct{}{}

		if s.OldestDate == "" || g.Key.StartDate < s.OldestDate {
			s.OldestDate = g.Key.StartDate
		}
		if g.Key.StartDate > s.NewestDate {
			s.NewestDate = g.Key.StartDate
		}

		for _, row := range g.Rows {
			s.RowsProcessed++
			s.AttendanceCreated++
			if row.IsQ() {
				s.QCount++
			}
			if row.IsCoQ() {
				s.CoQCount++
			}
		}
	}

	s.UniqueOrgs = len(orgs)
	s.UniqueLocations = len(locations)
	return s
}

const summaryRule = "================================================================================"

// Render formats the IMPORT SUMMARY block for the log.
func (s Summary) Render() string {
	var b strings.Builder

	b.WriteString(summaryRule + "\n")
	b.WriteString("IMPORT SUMMARY\n")
	b.WriteString(summaryRule + "\n")
	fmt.Fprintf(&b, "Total rows processed: %d\n", s.RowsProcessed)
	fmt.Fprintf(&b, "Unique events created: %d\n", s.EventsCreated)
	fmt.Fprintf(&b, "Attendance records created: %d\n", s.AttendanceCreated)
	fmt.Fprintf(&b, "Q assignments: %d\n", s.QCount)
	fmt.Fprintf(&b, "Co-Q assignments: %d\n", s.CoQCount)
	fmt.Fprintf(&b, "Unique organizations: %d\n", s.UniqueOrgs)
	fmt.Fprintf(&b, "Unique locations: %d\n", s.UniqueLocations)
	fmt.Fprintf(&b, "Oldest event date: %s\n", orNA(s.OldestDate))
	fmt.Fprintf(&b, "Most recent event date: %s\n", orNA(s.NewestDate))

	if len(s.Timings) > 0 {
		b.WriteString("\nPERFORMANCE METRICS\n")
		b.WriteString(strings.Repeat("-", 80) + "\n")
		for _, t := range s.Timings {
			fmt.Fprintf(&b, "%-20s %10.2fs\n", t.Phase+":", t.Elapsed.Seconds())
		}
	}
	b.WriteString(summaryRule)

	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
