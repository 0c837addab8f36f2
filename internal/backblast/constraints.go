package backblast

import "fmt"

// CheckConstraints enforces the per-event attendance invariants over the
// entire input before any write:
//
//   - a user may appear at most once per event;
//   - every event has exactly one Q (zero and multiple both fail);
//   - Co-Q rows are unrestricted.
//
// Every violation across every group is collected into one
// ConsistencyError.
func CheckConstraints(groups []EventGroup) error {
	var problems []string

	for _, g := range groups {
		seen := map[int64][]int{}
		var qs []Row
		for _, row := range g.Rows {
			seen[row.UserID] = append(seen[row.UserID], row.Line)
			if row.IsQ() {
				qs = append(qs, row)
			}
		}

		for _, row := range g.Rows {
			lines := seen[row.UserID]
			if len(lines) > 1 && lines[0] == row.Line {
				problems = append(problems, fmt.Sprintf(
					"duplicate attendance for user %d at event [%s]: rows %v",
					row.UserID, g.Key, lines))
			}
		}

		switch len(qs) {
		case 1:
			// exactly one Q, as required
		case 0:
			problems = append(problems, fmt.Sprintf("event [%s] has no Q", g.Key))
		default:
			problems = append(problems, fmt.Sprintf(
				"event [%s] has %d Qs (users %s)", g.Key, len(qs), qUserList(qs)))
		}
	}

	if len(problems) > 0 {
		return &ConsistencyError{Problems: problems}
	}
	return nil
}

func qUserList(qs []Row) string {
	s := ""
	for i, q := range qs {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%d (row %d)", q.UserID, q.Line)
	}
	return s
}
