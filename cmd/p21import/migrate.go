package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/aktin/p21import/internal/db"
	"github.com/aktin/p21import/internal/exitcode"
	"github.com/aktin/p21import/internal/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the i2b2 tables used by the importer",
	Long:  "Creates observation_fact and the mapping tables when they do not exist. Meant for test and local databases.",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	dsn, err := cfg.ResolveDSN()
	if err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool, log); err != nil {
		log.Error().Err(err).Msg("migration failed")
		pool.Close()
		os.Exit(exitcode.UploadError)
	}

	log.Info().Msg("all migrations applied successfully")
	return nil
}
