package backblast

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/lib/pq"
)

// referenceTables maps each ID column of the input to the table that must
// already contain it. The importer never mutates these tables.
var referenceTables = []struct {
	label string
	table string
	ids   func(Row) (int64, bool)
}{
	{"org_id", "orgs", func(r Row) (int64, bool) { return r.OrgID, true }},
	{"location_id", "locations", func(r Row) (int64, bool) { return r.LocationID, true }},
	{"series_id", "event_series", func(r Row) (int64, bool) { return r.SeriesID.Int64, r.SeriesID.Valid }},
	{"user_id", "users", func(r Row) (int64, bool) { return r.UserID, true }},
}

// ValidateReferences bulk-checks that every org, location, series and user
// ID in the input already exists. The complete missing set across all four
// tables is reported in one ReferenceError; nothing is written beforehand.
func ValidateReferences(ctx context.Context, q Querier, rows []Row) error {
	var problems []string
	for _, ref := range referenceTables {
		distinct := map[int64]struct{}{}
		for _, row := range rows {
			if id, ok := ref.ids(row); ok {
				distinct[id] = struct{}{}
			}
		}
		if len(distinct) == 0 {
			continue
		}

		ids := make([]int64, 0, len(distinct))
		for id := range distinct {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		missing, err := missingIDs(ctx, q, ref.table, ids)
		if err != nil {
			return fmt.Errorf("check %s against %s: %w", ref.label, ref.table, err)
		}
		if len(missing) > 0 {
			problems = append(problems, fmt.Sprintf(
				"missing %s(s) in %s: %v", ref.label, ref.table, missing))
		}
	}

	if len(problems) > 0 {
		return &ReferenceError{Problems: problems}
	}
	return nil
}

// Querier is the read surface shared by *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func missingIDs(ctx context.Context, q Querier, table string, ids []int64) ([]int64, error) {
	query := fmt.Sprintf("SELECT id FROM %s WHERE id = ANY($1)", table)
	rows, err := q.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := map[int64]struct{}{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []int64
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
