// Package commands wires the f3db CLI: operator-run maintenance tools for
// the shared F3 Nation Postgres database.
package commands

import (
	"context"
	"database/sql"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/f3-nation/db-tools/internal/config"
	"github.com/f3-nation/db-tools/internal/database"
	"github.com/f3-nation/db-tools/internal/pkg/logger"
)

// NewRootCmd builds the f3db command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "f3db",
		Short:         "Operator tools for the F3 Nation database",
		Long:          "Bulk import and record maintenance tools for the shared F3 Nation Postgres schema.\nEvery mutating command defaults to a dry run; pass --commit to persist changes.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newImportBackblastsCmd())
	root.AddCommand(newImportUsersCmd())
	root.AddCommand(newMergeCmd("merge-users", "users"))
	root.AddCommand(newMergeCmd("merge-orgs", "orgs"))

	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		logrus.StandardLogger().Error(err)
		return 1
	}
	return 0
}

// toolEnv is the shared setup every subcommand performs: config for the
// target environment, the teed logger, and the database connection.
type toolEnv struct {
	cfg *config.Config
	db  *sql.DB
	log *logrus.Entry

	logCloser io.Closer
}

func setupTool(ctx context.Context, environment, configPath, logFile string) (*toolEnv, error) {
	cfg, err := config.LoadFromEnv(configPath, environment)
	if err != nil {
		return nil, err
	}

	log, closer, err := logger.New(logFile)
	if err != nil {
		return nil, err
	}

	entry := log.WithField("env", environment)
	entry.Infof("connecting to %s database at %s:%d/%s", environment, cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		closer.Close()
		return nil, err
	}
	entry.Info("database connection established")

	return &toolEnv{cfg: cfg, db: db, log: entry, logCloser: closer}, nil
}

func (t *toolEnv) close() {
	t.db.Close()
	t.logCloser.Close()
}
