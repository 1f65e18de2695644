package main

import (
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aktin/p21import/internal/config"
)

var (
	cfg        config.Config
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "p21import",
	Short: "P21 billing export → i2b2 observation_fact importer",
	Long: "Validates a zipped P21 billing export, matches its encounters with consented " +
		"encounters of the AKTIN data warehouse and writes them as i2b2 observation facts.",
	SilenceUsage:      true,
	PersistentPreRunE: prepareConfig,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.PropertiesPath, "properties", os.Getenv("path_aktin_properties"), "Path to aktin.properties (or set path_aktin_properties)")
	pf.StringVar(&cfg.ConnectionURL, "connection-url", os.Getenv("connection-url"), "JDBC URL of the data warehouse (or set connection-url)")
	pf.StringVar(&cfg.Username, "username", os.Getenv("username"), "Database user (or set username)")
	pf.StringVar(&cfg.Password, "password", os.Getenv("password"), "Database password (or set password)")
	pf.StringVar(&cfg.DSN, "dsn", os.Getenv("P21IMPORT_DSN"), "Postgres connection string, overrides --connection-url (or set P21IMPORT_DSN)")
	pf.StringVar(&cfg.ScriptID, "script-id", os.Getenv("script_id"), "Importer id written to the provenance tag (or set script_id)")
	pf.StringVar(&cfg.ScriptVersion, "script-version", os.Getenv("script_version"), "Importer version (or set script_version)")
	pf.StringVar(&cfg.RunToken, "run-token", os.Getenv("uuid"), "Token of this run, generated when empty (or set uuid)")
	pf.IntVar(&cfg.ChunkSize, "chunk-size", envInt("P21IMPORT_CHUNK_SIZE", config.DefaultChunkSize), "CSV records per chunk")
	pf.StringVar(&cfg.LogFormat, "log-format", "text", "Log format: text or json")
	pf.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn or error")
	pf.StringVar(&cfg.WorkDir, "work-dir", "", "Parent directory of the temporary workspace (default: system temp dir)")
	pf.StringVar(&cfg.MetricsTextfile, "metrics-textfile", "", "Write run metrics in Prometheus text format to this file")
	pf.StringVar(&configPath, "config", "", "YAML config file; flags given explicitly take precedence")
}

// prepareConfig merges the YAML config file and fills the run token.
func prepareConfig(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		flagged := cfg
		if err := cfg.LoadFromFile(configPath); err != nil {
			return err
		}
		keep := func(name string, dst *string, v string) {
			if cmd.Flags().Changed(name) {
				*dst = v
			}
		}
		keep("script-id", &cfg.ScriptID, flagged.ScriptID)
		keep("script-version", &cfg.ScriptVersion, flagged.ScriptVersion)
		keep("log-format", &cfg.LogFormat, flagged.LogFormat)
		keep("log-level", &cfg.LogLevel, flagged.LogLevel)
		keep("work-dir", &cfg.WorkDir, flagged.WorkDir)
		keep("metrics-textfile", &cfg.MetricsTextfile, flagged.MetricsTextfile)
		if cmd.Flags().Changed("chunk-size") {
			cfg.ChunkSize = flagged.ChunkSize
		}
	}
	if cfg.RunToken == "" {
		cfg.RunToken = uuid.NewString()
	}
	return nil
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
