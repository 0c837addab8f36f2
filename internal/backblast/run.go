package backblast

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Options configures one import run.
type Options struct {
	InputCSV    string
	Environment string
	Commit      bool   // false = dry run, transaction rolled back
	BackoutDir  string // "" = current directory
	RunID       string // assigned when empty
	Now         func() time.Time
}

// Result is returned for every run, including failed ones, so the operator
// always has the summary and the backout artifact to act on.
type Result struct {
	RunID       string
	Summary     Summary
	BackoutPath string
	Committed   bool
}

// Run executes the whole pipeline: load, validate, deduplicate, check
// constraints, write inside one transaction, then commit or roll back per
// opts.Commit. The summary and backout file are produced unconditionally,
// covering whatever was inserted before a failure or rollback.
func Run(ctx context.Context, db *sql.DB, log *logrus.Entry, opts Options) (*Result, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	log = log.WithField("run_id", opts.RunID)

	r := &run{db: db, log: log, opts: opts, ids: &Inserted{}}
	runErr := r.execute(ctx)

	res := &Result{RunID: opts.RunID, Committed: r.committed}

	res.Summary = BuildSummary(r.groups)
	res.Summary.Timings = r.timings
	fmt.Fprintln(log.Logger.Out, res.Summary.Render())

	path, err := WriteBackout(orDot(opts.BackoutDir), opts.InputCSV, opts.Environment, opts.RunID, opts.Now(), r.ids)
	if err != nil {
		log.WithError(err).Error("backout file generation failed")
		if runErr == nil {
			runErr = err
		}
	} else {
		res.BackoutPath = path
		log.WithField("phase", "backout").Infof("backout file generated: %s", path)
		log.Infof("to reverse this import, execute: psql -f %s", path)
	}

	return res, runErr
}

type run struct {
	db   *sql.DB
	log  *logrus.Entry
	opts Options

	groups    []EventGroup
	ids       *Inserted
	timings   []PhaseTiming
	committed bool
}

func (r *run) execute(ctx context.Context) error {
	start := r.opts.Now()
	log := r.log

	log.WithField("phase", "ingest").Infof("reading %s", r.opts.InputCSV)
	rows, err := LoadCSV(r.opts.InputCSV)
	if err != nil {
		return err
	}
	log.WithField("phase", "ingest").Infof("loaded %d row(s), all passed input validation", len(rows))

	r.groups = Partition(rows)
	log.WithField("phase", "dedupe").Infof("%d distinct event(s) in input", len(r.groups))

	if err := CheckConstraints(r.groups); err != nil {
		return err
	}
	log.WithField("phase", "constraints").Info("attendance constraints satisfied: unique users per event, exactly one Q")
	r.mark("Ingest & Validate", start)

	refStart := r.opts.Now()
	if err := ValidateReferences(ctx, r.db, rows); err != nil {
		return err
	}
	log.WithField("phase", "reference").Info("all referenced org, location, series and user IDs exist")
	r.mark("Reference Check", refStart)

	writeStart := r.opts.Now()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if !r.committed {
			tx.Rollback()
		}
	}()

	if err := WriteGroups(ctx, tx, r.groups, r.ids); err != nil {
		return err
	}
	log.WithField("phase", "write").Infof("inserted %d event(s), %d attendance row(s), %d role link(s)",
		len(r.ids.EventInstanceIDs), len(r.ids.AttendanceIDs), len(r.ids.AttendanceWithTypes))
	r.mark("Write", writeStart)

	if r.opts.Commit {
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		r.committed = true
		log.Info("SUCCESS: import completed and COMMITTED to database")
	} else {
		if err := tx.Rollback(); err != nil {
			return fmt.Errorf("rollback: %w", err)
		}
		log.Info("DRY RUN: import completed successfully (transaction rolled back)")
		log.Info("use the --commit flag to persist these changes")
	}
	return nil
}

func (r *run) mark(phase string, since time.Time) {
	r.timings = append(r.timings, PhaseTiming{Phase: phase, Elapsed: r.opts.Now().Sub(since)})
}

func orDot(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}
