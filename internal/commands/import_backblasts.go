package commands

import (
	"github.com/spf13/cobra"

	"github.com/f3-nation/db-tools/internal/backblast"
)

func newImportBackblastsCmd() *cobra.Command {
	var (
		inputCSV    string
		environment string
		commit      bool
		logFile     string
		configPath  string
	)

	cmd := &cobra.Command{
		Use:   "import-backblasts",
		Short: "Bulk-import historical backblast and attendance data from CSV",
		Long: `Imports one CSV of historical backblast/attendance rows. Rows sharing the
same org, location, series, date, time, name, description and backblast
become one event. The whole file is validated before any write; the run is
one transaction, rolled back unless --commit is given. A backout SQL file
reversing the run is always generated.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			tool, err := setupTool(ctx, environment, configPath, logFile)
			if err != nil {
				return err
			}
			defer tool.close()

			log := tool.log
			log.Infof("mode: %s", modeLabel(commit))
			log.Infof("input: %s", inputCSV)

			if _, err := backblast.Run(ctx, tool.db, log, backblast.Options{
				InputCSV:    inputCSV,
				Environment: environment,
				Commit:      commit,
				BackoutDir:  tool.cfg.Backout.Dir,
			}); err != nil {
				log.Error(err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&inputCSV, "input-csv", "", "path to the input CSV file (required)")
	cmd.Flags().StringVar(&environment, "environment", "staging", "target environment: staging or prod")
	cmd.Flags().BoolVar(&commit, "commit", false, "commit changes (default is dry run with rollback)")
	cmd.Flags().StringVar(&logFile, "log-file", "import_backblasts.log", "path to the log file")
	cmd.Flags().StringVar(&configPath, "config", "", "optional yaml config file")
	cmd.MarkFlagRequired("input-csv")

	return cmd
}

func modeLabel(commit bool) string {
	if commit {
		return "COMMIT"
	}
	return "DRY RUN (will roll back)"
}
