// Package merge de-duplicates records that other tables reference, using a
// two-phase API: Plan computes a read-only preview of what a merge would
// touch, Apply performs the remap-and-delete only when the operator has
// confirmed the plan. The confirmation mechanism (CLI flag, prompt, external
// approval) stays outside this package.
package merge

import (
	"context"
	"database/sql"
	"fmt"
)

// Entity selects which record type is being merged.
type Entity string

const (
	EntityUser Entity = "users"
	EntityOrg  Entity = "orgs"
)

// Reference is a foreign-key column that points at the entity table.
type Reference struct {
	Table  string
	Column string
}

// refsFor lists the foreign-key columns that point at the entity table.
func refsFor(entity Entity) []Reference {
	switch entity {
	case EntityUser:
		return []Reference{
			{Table: "attendance", Column: "user_id"},
		}
	case EntityOrg:
		return []Reference{
			{Table: "event_instances", Column: "org_id"},
			{Table: "event_series", Column: "org_id"},
			{Table: "locations", Column: "org_id"},
			{Table: "users", Column: "home_region_id"},
		}
	}
	return nil
}

// ReferenceCount is one referencing table's share of the merge.
type ReferenceCount struct {
	Reference
	Rows int64
}

// Conflict is an event both users attended; remapping would violate the
// one-attendance-per-(event,user) invariant.
type Conflict struct {
	EventInstanceID int64
}

// Plan is the preview of one merge: which rows move, and whether the merge
// can be applied at all.
type Plan struct {
	Entity    Entity
	KeepID    int64
	RemoveID  int64
	Refs      []ReferenceCount
	Conflicts []Conflict
}

// Appliable reports whether Apply would accept the plan.
func (p *Plan) Appliable() bool { return len(p.Conflicts) == 0 }

// Querier is the read surface shared by *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// BuildPlan verifies both records exist and counts the referencing rows per
// table, without mutating anything.
func BuildPlan(ctx context.Context, q Querier, entity Entity, keepID, removeID int64) (*Plan, error) {
	if keepID == removeID {
		return nil, fmt.Errorf("keep and remove IDs are both %d", keepID)
	}

	for _, id := range []int64{keepID, removeID} {
		var exists bool
		query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)", entity)
		if err := q.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check %s %d: %w", entity, id, err)
		}
		if !exists {
			return nil, fmt.Errorf("%s row %d does not exist", entity, id)
		}
	}

	plan := &Plan{Entity: entity, KeepID: keepID, RemoveID: removeID}

	for _, ref := range refsFor(entity) {
		var n int64
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = $1", ref.Table, ref.Column)
		if err := q.QueryRowContext(ctx, query, removeID).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s.%s references: %w", ref.Table, ref.Column, err)
		}
		plan.Refs = append(plan.Refs, ReferenceCount{Reference: ref, Rows: n})
	}

	if entity == EntityUser {
		conflicts, err := sharedEvents(ctx, q, keepID, removeID)
		if err != nil {
			return nil, err
		}
		plan.Conflicts = conflicts
	}

	return plan, nil
}

// sharedEvents lists events both users attended.
func sharedEvents(ctx context.Context, q Querier, keepID, removeID int64) ([]Conflict, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT event_instance_id
		FROM attendance
		WHERE user_id IN ($1, $2)
		GROUP BY event_instance_id
		HAVING COUNT(DISTINCT user_id) > 1
		ORDER BY event_instance_id`, keepID, removeID)
	if err != nil {
		return nil, fmt.Errorf("check shared attendance: %w", err)
	}
	defer rows.Close()

	var conflicts []Conflict
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("check shared attendance: %w", err)
		}
		conflicts = append(conflicts, Conflict{EventInstanceID: id})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("check shared attendance: %w", err)
	}
	return conflicts, nil
}

// ApplyResult reports what Apply changed.
type ApplyResult struct {
	Remapped map[string]int64 // "table.column" -> rows updated
	Deleted  bool
}

// Apply remaps every referencing row from the duplicate to the kept record
// and deletes the duplicate, on the caller's transaction. It refuses
// unconfirmed or conflicted plans; the caller owns commit/rollback.
func Apply(ctx context.Context, tx *sql.Tx, plan *Plan, confirmed bool) (*ApplyResult, error) {
	if !confirmed {
		return nil, fmt.Errorf("merge of %s %d into %d was not confirmed", plan.Entity, plan.RemoveID, plan.KeepID)
	}
	if !plan.Appliable() {
		return nil, fmt.Errorf("merge of %s %d into %d has %d conflicting event(s)",
			plan.Entity, plan.RemoveID, plan.KeepID, len(plan.Conflicts))
	}

	res := &ApplyResult{Remapped: map[string]int64{}}

	for _, ref := range plan.Refs {
		query := fmt.Sprintf("UPDATE %s SET %s = $1 WHERE %s = $2", ref.Table, ref.Column, ref.Column)
		r, err := tx.ExecContext(ctx, query, plan.KeepID, plan.RemoveID)
		if err != nil {
			return nil, fmt.Errorf("remap %s.%s: %w", ref.Table, ref.Column, err)
		}
		n, _ := r.RowsAffected()
		res.Remapped[ref.Table+"."+ref.Column] = n
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", plan.Entity)
	if _, err := tx.ExecContext(ctx, query, plan.RemoveID); err != nil {
		return nil, fmt.Errorf("delete duplicate %s %d: %w", plan.Entity, plan.RemoveID, err)
	}
	res.Deleted = true

	return res, nil
}
