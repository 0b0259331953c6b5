package cli

import (
	"github.com/isdelr/bookshare-be/internal/config"
	"github.com/isdelr/bookshare-be/internal/database"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newMigrateCommand(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			db, err := database.New(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			log.Info().Str("path", cfg.DatabasePath).Msg("Database schema is up to date")
			return nil
		},
	}
}
