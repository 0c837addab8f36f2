package commands

import (
	"github.com/spf13/cobra"

	"github.com/f3-nation/db-tools/internal/users"
)

func newImportUsersCmd() *cobra.Command {
	var (
		inputCSV    string
		environment string
		commit      bool
		logFile     string
		configPath  string
	)

	cmd := &cobra.Command{
		Use:   "import-users",
		Short: "Bulk-create or update users from CSV",
		Long: `Upserts users by email from one CSV (f3_name, email and home_region_id
required). Home regions must already exist as region orgs. Writes an output
CSV mirroring the input with the assigned user IDs appended.`,
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

			res, err := users.Run(ctx, tool.db, log, users.Options{
				InputCSV:    inputCSV,
				Environment: environment,
				Commit:      commit,
			})
			if err != nil {
				log.Error(err)
				return err
			}
			log.Infof("processed %d user(s)", len(res.Imported))
			return nil
		},
	}

	cmd.Flags().StringVar(&inputCSV, "input-csv", "", "path to the input CSV file (required)")
	cmd.Flags().StringVar(&environment, "environment", "staging", "target environment: staging or prod")
	cmd.Flags().BoolVar(&commit, "commit", false, "commit changes (default is dry run with rollback)")
	cmd.Flags().StringVar(&logFile, "log-file", "import_users.log", "path to the log file")
	cmd.Flags().StringVar(&configPath, "config", "", "optional yaml config file")
	cmd.MarkFlagRequired("input-csv")

	return cmd
}
