package users

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// OutputPath derives the output file name from the input:
// users.csv -> users_output.csv.
func OutputPath(inputPath string) string {
	ext := ""
	name := inputPath
	if i := strings.LastIndex(inputPath, "."); i > strings.LastIndex(inputPath, "/") {
		name, ext = inputPath[:i], inputPath[i:]
	}
	return name + "_output" + ext
}

// WriteOutputCSV writes the imported rows with their assigned user IDs
// appended as the final column.
func WriteOutputCSV(path string, imported []ImportedUser) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"f3_name", "first_name", "last_name", "email", "home_region_id", "id"}); err != nil {
		return fmt.Errorf("write output header: %w", err)
	}
	for _, u := range imported {
		record := []string{
			u.F3Name,
			u.FirstName,
			u.LastName,
			u.Email,
			strconv.FormatInt(u.HomeRegionID, 10),
			strconv.FormatInt(u.ID, 10),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write output row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush output csv: %w", err)
	}
	return nil
}
