package backblast

import (
	"fmt"
	"strings"
)

// The run-fatal validation error classes. Each aggregates every violation
// found in its phase so the operator can fix the CSV in one iteration
// instead of replaying the run per defect.

// InputError reports malformed CSV content: missing columns, empty required
// fields, unparseable dates or IDs. Raised before any database access.
type InputError struct {
	Problems []string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input validation failed with %d error(s):\n  %s",
		len(e.Problems), strings.Join(e.Problems, "\n  "))
}

// ReferenceError reports IDs that do not exist in the reference tables.
// Carries the complete missing set across all tables.
type ReferenceError struct {
	Problems []string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("reference validation failed:\n  %s",
		strings.Join(e.Problems, "\n  "))
}

// ConsistencyError reports duplicate attendance and missing/multiple Q
// violations, per offending event group.
type ConsistencyError struct {
	Problems []string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency validation failed with %d error(s):\n  %s",
		len(e.Problems), strings.Join(e.Problems, "\n  "))
}
