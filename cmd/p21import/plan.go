package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aktin/p21import/internal/exitcode"
	"github.com/aktin/p21import/internal/ingest"
	"github.com/aktin/p21import/internal/logging"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Dry-run validation and conversion (no database)",
	RunE:  runPlan,
}

func init() {
	f := planCmd.Flags()
	f.StringVar(&cfg.ArchivePath, "archive", "", "Path to the P21 zip archive (required)")
	f.StringVar(&cfg.FactsOut, "facts-out", "", "Write the converted facts to this Parquet file")
	_ = planCmd.MarkFlagRequired("archive")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	report, err := ingest.Plan(context.Background(), log, &cfg)
	if err != nil {
		var pe *ingest.PipelineError
		if errors.As(err, &pe) {
			log.Error().Err(pe.Err).Str("phase", pe.Phase).Msg("plan failed")
			os.Exit(phaseExitCode(pe.Phase))
		}
		log.Error().Err(err).Msg("plan failed")
		os.Exit(exitcode.ValidationError)
	}

	fmt.Println("=== p21import plan ===")
	fmt.Printf("Archive:          %s\n", report.ArchivePath)
	fmt.Printf("SHA-256:          %s\n", report.SHA256)
	fmt.Printf("Encounters:       %d\n", report.TotalRows)
	fmt.Printf("Valid encounters: %d\n", report.ValidEncounters)
	fmt.Println()
	for _, f := range report.Files {
		if !f.Present {
			fmt.Printf("  %-9s missing, would be skipped\n", f.Kind.FileName())
			continue
		}
		fmt.Printf("  %-9s %6d records → %d facts (%d dropped)\n", f.Kind.FileName(), f.Rows, f.Facts, f.Dropped)
	}
	if cfg.FactsOut != "" {
		fmt.Printf("\nExported %d facts to %s\n", report.FactsExported, cfg.FactsOut)
	}
	return nil
}
