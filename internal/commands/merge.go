package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/f3-nation/db-tools/internal/merge"
)

func newMergeCmd(use string, entity merge.Entity) *cobra.Command {
	var (
		keepID      int64
		removeID    int64
		environment string
		commit      bool
		logFile     string
		configPath  string
	)

	cmd := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Merge a duplicate %s record into the one to keep", entity),
		Long: fmt.Sprintf(`Remaps every table referencing the duplicate %s row to the kept row, then
deletes the duplicate. Always shows the plan first; without --commit nothing
is mutated.`, entity),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			tool, err := setupTool(ctx, environment, configPath, logFile)
			if err != nil {
				return err
			}
			defer tool.close()

			log := tool.log
			log.Infof("mode: %s", modeLabel(commit))
			log.Infof("merging %s %d into %d", entity, removeID, keepID)

			plan, err := merge.BuildPlan(ctx, tool.db, entity, keepID, removeID)
			if err != nil {
				log.Error(err)
				return err
			}

			for _, ref := range plan.Refs {
				log.Infof("plan: %s.%s: %d row(s) to remap", ref.Table, ref.Column, ref.Rows)
			}
			for _, c := range plan.Conflicts {
				log.Errorf("conflict: both %s attended event_instance %d", entity, c.EventInstanceID)
			}
			if !plan.Appliable() {
				err := fmt.Errorf("merge blocked by %d conflict(s); resolve the shared attendance first", len(plan.Conflicts))
				log.Error(err)
				return err
			}

			if !commit {
				log.Info("DRY RUN: plan shown, nothing mutated")
				log.Info("use the --commit flag to apply the merge")
				return nil
			}

			tx, err := tool.db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("begin transaction: %w", err)
			}
			res, err := merge.Apply(ctx, tx, plan, true)
			if err != nil {
				tx.Rollback()
				log.Error(err)
				return err
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("commit: %w", err)
			}

			for _, ref := range plan.Refs {
				key := ref.Table + "." + ref.Column
				log.Infof("remapped %s: %d row(s)", key, res.Remapped[key])
			}
			log.Infof("SUCCESS: %s %d merged into %d and deleted", entity, removeID, keepID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&keepID, "keep-id", 0, "ID of the record to keep (required)")
	cmd.Flags().Int64Var(&removeID, "remove-id", 0, "ID of the duplicate record to remove (required)")
	cmd.Flags().StringVar(&environment, "environment", "staging", "target environment: staging or prod")
	cmd.Flags().BoolVar(&commit, "commit", false, "apply the merge (default shows the plan only)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "optional path to a log file")
	cmd.Flags().StringVar(&configPath, "config", "", "optional yaml config file")
	cmd.MarkFlagRequired("keep-id")
	cmd.MarkFlagRequired("remove-id")

	return cmd
}
