package main

import (
	"errors"

	"github.com/Shivanand-hulikatti/enrollhub/internal/database"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the PostgreSQL schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Database.Driver != "postgres" {
			return errors.New("migrate requires database.driver=postgres")
		}

		ctx := cmd.Context()
		pool, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := database.Migrate(ctx, pool); err != nil {
			return err
		}
		log.Info().Msg("schema up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
