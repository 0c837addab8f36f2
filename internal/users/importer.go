package users

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const upsertUserSQL = `
	INSERT INTO users (f3_name, first_name, last_name, email, home_region_id, status)
	VALUES ($1, $2, $3, $4, $5, 'active')
	ON CONFLICT (email) DO UPDATE SET
		f3_name = COALESCE(EXCLUDED.f3_name, users.f3_name),
		first_name = COALESCE(EXCLUDED.first_name, users.first_name),
		last_name = COALESCE(EXCLUDED.last_name, users.last_name),
		home_region_id = COALESCE(EXCLUDED.home_region_id, users.home_region_id)
	RETURNING id`

// Options configures one user import run.
type Options struct {
	InputCSV    string
	Environment string
	Commit      bool // false = dry run, transaction rolled back
	OutputPath  string
	Now         func() time.Time
}

// Result reports one user import run.
type Result struct {
	Imported   []ImportedUser
	OutputPath string
	Committed  bool
}

// ImportedUser pairs an input row with its assigned (or existing) user ID.
type ImportedUser struct {
	Row
	ID int64
}

// Run upserts every user in the CSV by email, inside one transaction.
// Home regions must already exist in orgs with org_type = 'region'; the
// complete missing set aborts the run before any write. The output CSV
// mirrors the input with the assigned IDs appended.
func Run(ctx context.Context, db *sql.DB, log *logrus.Entry, opts Options) (*Result, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	log.WithField("phase", "ingest").Infof("reading %s", opts.InputCSV)
	rows, err := LoadCSV(opts.InputCSV)
	if err != nil {
		return nil, err
	}
	log.WithField("phase", "ingest").Infof("loaded %d row(s)", len(rows))

	if err := validateHomeRegions(ctx, db, rows); err != nil {
		return nil, err
	}
	log.WithField("phase", "reference").Info("all home_region_ids exist as region orgs")

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	res := &Result{}
	for _, row := range rows {
		var id int64
		err := tx.QueryRowContext(ctx, upsertUserSQL,
			row.F3Name,
			nullString(row.FirstName),
			nullString(row.LastName),
			row.Email,
			row.HomeRegionID,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("upsert user %s (row %d): %w", row.Email, row.Line, err)
		}
		res.Imported = append(res.Imported, ImportedUser{Row: row, ID: id})
		log.WithField("phase", "write").Infof("upserted %s (%s) -> id %d", row.F3Name, row.Email, id)
	}

	if opts.Commit {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}
		committed = true
		res.Committed = true
		log.Infof("SUCCESS: %d user(s) committed to database", len(res.Imported))
	} else {
		if err := tx.Rollback(); err != nil {
			return nil, fmt.Errorf("rollback: %w", err)
		}
		log.Info("DRY RUN: upserts completed successfully (transaction rolled back)")
		log.Info("use the --commit flag to persist these changes")
	}

	out := opts.OutputPath
	if out == "" {
		out = OutputPath(opts.InputCSV)
	}
	if err := WriteOutputCSV(out, res.Imported); err != nil {
		return res, err
	}
	res.OutputPath = out
	log.Infof("output written to %s", out)

	return res, nil
}

// validateHomeRegions bulk-checks home_region_id values against orgs rows
// of type region, reporting the complete missing set.
func validateHomeRegions(ctx context.Context, db *sql.DB, rows []Row) error {
	distinct := map[int64]struct{}{}
	for _, row := range rows {
		distinct[row.HomeRegionID] = struct{}{}
	}
	ids := make([]int64, 0, len(distinct))
	for id := range distinct {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	dbRows, err := db.QueryContext(ctx,
		`SELECT id FROM orgs WHERE id = ANY($1) AND org_type = 'region'`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("check home_region_ids: %w", err)
	}
	defer dbRows.Close()

	found := map[int64]struct{}{}
	for dbRows.Next() {
		var id int64
		if err := dbRows.Scan(&id); err != nil {
			return fmt.Errorf("check home_region_ids: %w", err)
		}
		found[id] = struct{}{}
	}
	if err := dbRows.Err(); err != nil {
		return fmt.Errorf("check home_region_ids: %w", err)
	}

	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, fmt.Sprintf("%d", id))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing home_region_id(s) in orgs (org_type='region'): %s", strings.Join(missing, ", "))
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
