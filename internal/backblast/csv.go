package backblast

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Column names are exact and case sensitive.
var requiredColumns = []string{"org_id", "location_id", "start_date", "user_id"}

// LoadCSV reads and validates the whole input file. Row-level problems are
// aggregated into a single InputError so the operator sees every defect at
// once; nothing touches the database before this returns cleanly.
func LoadCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input csv: %w", err)
	}
	defer f.Close()
	return ParseCSV(f)
}

// ParseCSV is the reader-based core of LoadCSV, split out for tests.
func ParseCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(stripBOM(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, &InputError{Problems: []string{"input file is empty"}}
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := map[string]int{}
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	var problems []string
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			problems = append(problems, fmt.Sprintf("missing required column %q", name))
		}
	}
	if len(problems) > 0 {
		return nil, &InputError{Problems: problems}
	}

	field := func(record []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return canonical(record[i])
	}

	var rows []Row
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line++

		row := Row{Line: line}
		rowErr := func(format string, args ...interface{}) {
			problems = append(problems, fmt.Sprintf("row %d: %s", line, fmt.Sprintf(format, args...)))
		}

		for _, name := range requiredColumns {
			if field(record, name) == "" {
				rowErr("missing or invalid required column %q", name)
			}
		}

		if v := field(record, "org_id"); v != "" {
			if row.OrgID, err = parseID("org_id", v); err != nil {
				rowErr("%v", err)
			}
		}
		if v := field(record, "location_id"); v != "" {
			if row.LocationID, err = parseID("location_id", v); err != nil {
				rowErr("%v", err)
			}
		}
		if v := field(record, "series_id"); v != "" {
			id, err := parseID("series_id", v)
			if err != nil {
				rowErr("%v", err)
			} else {
				row.SeriesID.Int64, row.SeriesID.Valid = id, true
			}
		}
		if v := field(record, "user_id"); v != "" {
			if row.UserID, err = parseID("user_id", v); err != nil {
				rowErr("%v", err)
			}
		}
		if v := field(record, "start_date"); v != "" {
			if row.StartDate, err = parseDate(v); err != nil {
				rowErr("%v", err)
			}
		}
		if v := field(record, "start_time"); v != "" {
			if row.StartTime, err = parseTime(v); err != nil {
				rowErr("%v", err)
			}
		}

		row.Name = field(record, "name")
		if row.Name == "" {
			row.Name = DefaultEventName
		}
		row.Description = field(record, "description")
		row.Backblast = field(record, "backblast")
		row.PostType = field(record, "post_type")

		rows = append(rows, row)
	}

	if len(problems) > 0 {
		return nil, &InputError{Problems: problems}
	}
	if len(rows) == 0 {
		return nil, &InputError{Problems: []string{"input file has no data rows"}}
	}
	return rows, nil
}

// stripBOM drops a leading UTF-8 BOM so exported spreadsheets parse cleanly.
func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		return io.MultiReader(strings.NewReader(string(buf[:n])), r)
	}
	if buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
		return r
	}
	return io.MultiReader(strings.NewReader(string(buf[:n])), r)
}
