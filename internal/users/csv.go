package users

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var requiredColumns = []string{"f3_name", "email", "home_region_id"}

// Row is one user to upsert, keyed on email.
type Row struct {
	Line         int
	F3Name       string
	FirstName    string
	LastName     string
	Email        string
	HomeRegionID int64
}

// InputError aggregates every CSV-level problem so the operator can fix the
// file in one pass.
type InputError struct {
	Problems []string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input validation failed with %d error(s):\n  %s",
		len(e.Problems), strings.Join(e.Problems, "\n  "))
}

// LoadCSV reads and validates the user import file.
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
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

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
		return strings.TrimSpace(record[i])
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

		row := Row{
			Line:      line,
			F3Name:    field(record, "f3_name"),
			FirstName: field(record, "first_name"),
			LastName:  field(record, "last_name"),
			Email:     field(record, "email"),
		}

		for _, name := range requiredColumns {
			if field(record, name) == "" {
				problems = append(problems, fmt.Sprintf("row %d: missing or empty required column %q", line, name))
			}
		}
		if v := field(record, "home_region_id"); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				problems = append(problems, fmt.Sprintf("row %d: home_region_id %q is not an integer", line, v))
			} else {
				row.HomeRegionID = id
			}
		}

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
