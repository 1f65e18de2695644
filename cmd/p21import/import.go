package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aktin/p21import/internal/config"
	"github.com/aktin/p21import/internal/db"
	"github.com/aktin/p21import/internal/exitcode"
	"github.com/aktin/p21import/internal/ingest"
	"github.com/aktin/p21import/internal/logging"
	"github.com/aktin/p21import/internal/metrics"
	"github.com/aktin/p21import/internal/model"
	"github.com/aktin/p21import/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a P21 archive into the data warehouse",
	RunE:  runImport,
}

func init() {
	importCmd.Flags().StringVar(&cfg.ArchivePath, "archive", "", "Path to the P21 zip archive (required)")
	_ = importCmd.MarkFlagRequired("archive")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	if err := cfg.ValidateForImport(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	props, err := config.ReadProperties(cfg.PropertiesPath)
	if err != nil {
		log.Error().Err(err).Msg("reading properties failed")
		os.Exit(exitcode.UsageError)
	}

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

	log.Info().
		Str("script_id", cfg.ScriptID).
		Str("script_version", cfg.ScriptVersion).
		Str("run_token", cfg.RunToken).
		Msg("starting import")

	summary, err := ingest.Run(ctx, store.NewPG(pool), log, &cfg, props.Pseudonym(), metrics.New())
	if err != nil {
		var pe *ingest.PipelineError
		if errors.As(err, &pe) {
			log.Error().Err(pe.Err).Str("phase", pe.Phase).Msg("import failed")
			pool.Close()
			os.Exit(phaseExitCode(pe.Phase))
		}
		log.Error().Err(err).Msg("import failed")
		pool.Close()
		os.Exit(exitcode.UploadError)
	}

	printSummary(summary)
	return nil
}

func phaseExitCode(phase string) int {
	switch phase {
	case ingest.PhaseExtract, ingest.PhaseValidate:
		return exitcode.ValidationError
	case ingest.PhaseMatch:
		return exitcode.MatchError
	case ingest.PhaseUpload:
		return exitcode.UploadError
	case ingest.PhaseReport:
		return exitcode.ReportError
	}
	return exitcode.UploadError
}

func printSummary(s *model.ImportSummary) {
	fmt.Println("=== p21import ===")
	fmt.Printf("Archive:            %s\n", s.ArchivePath)
	fmt.Printf("Source:             %s\n", s.SourceTag)
	fmt.Printf("Strategy:           %s\n", s.Strategy)
	fmt.Printf("Encounters total:   %d\n", s.TotalRows)
	fmt.Printf("Encounters valid:   %d\n", s.ValidRows)
	fmt.Printf("Encounters matched: %d\n", s.MatchedRows)
	fmt.Printf("Encounters written: %d (%d new, %d updated)\n", s.Uploaded(), s.NewEncounters, s.UpdatedEncounters)
	for _, kind := range model.AllKinds {
		n, ok := s.FactsByKind[kind]
		if !ok {
			fmt.Printf("  %-9s skipped\n", kind.FileName())
			continue
		}
		fmt.Printf("  %-9s %d facts, %d records dropped\n", kind.FileName(), n, s.DroppedByKind[kind])
	}
	fmt.Printf("Facts uploaded:     %d (%.1fs)\n", s.FactsUploaded, s.DurationTotal.Seconds())
}
