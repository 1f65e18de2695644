package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultChunkSize is the number of CSV records processed at once.
const DefaultChunkSize = 10000

// Config holds all runtime configuration for a p21import run.
type Config struct {
	ArchivePath     string
	DSN             string
	ConnectionURL   string // JDBC URL from the DWH, e.g. jdbc:postgresql://host:5432/i2b2?searchPath=i2b2crcdata
	Username        string
	Password        string
	PropertiesPath  string
	ScriptID        string
	ScriptVersion   string
	RunToken        string
	ChunkSize       int
	LogFormat       string // "text" or "json"
	LogLevel        string
	WorkDir         string // parent of the temporary workspace
	MetricsTextfile string
	FactsOut        string // plan only: Parquet export of converted facts
}

// yamlConfig is the on-disk YAML structure.
type yamlConfig struct {
	ScriptID        string `yaml:"script_id"`
	ScriptVersion   string `yaml:"script_version"`
	ChunkSize       int    `yaml:"chunk_size"`
	LogFormat       string `yaml:"log_format"`
	LogLevel        string `yaml:"log_level"`
	WorkDir         string `yaml:"work_dir"`
	MetricsTextfile string `yaml:"metrics_textfile"`
}

// LoadFromFile reads a YAML config file and merges its non-empty values
// into Config. Flags given on the command line are applied afterwards by the
// caller, so they win.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if yc.ChunkSize < 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", yc.ChunkSize)
	}
	merge(&c.ScriptID, yc.ScriptID)
	merge(&c.ScriptVersion, yc.ScriptVersion)
	merge(&c.LogFormat, yc.LogFormat)
	merge(&c.LogLevel, yc.LogLevel)
	merge(&c.WorkDir, yc.WorkDir)
	merge(&c.MetricsTextfile, yc.MetricsTextfile)
	if yc.ChunkSize > 0 {
		c.ChunkSize = yc.ChunkSize
	}
	return nil
}

func merge(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate checks the fields needed to read an archive.
func (c *Config) Validate() error {
	if c.ArchivePath == "" {
		return fmt.Errorf("--archive is required")
	}
	if _, err := os.Stat(c.ArchivePath); err != nil {
		return fmt.Errorf("archive not accessible: %w", err)
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	return nil
}

// ValidateForImport additionally checks what a database import needs.
func (c *Config) ValidateForImport() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ScriptID == "" {
		return fmt.Errorf("--script-id or script_id is required")
	}
	if c.ScriptVersion == "" {
		return fmt.Errorf("--script-version or script_version is required")
	}
	if c.PropertiesPath == "" {
		return fmt.Errorf("--properties or path_aktin_properties is required")
	}
	if _, err := c.ResolveDSN(); err != nil {
		return err
	}
	return nil
}

var jdbcPattern = regexp.MustCompile(`^jdbc:postgresql://([^?]*)(\?searchPath=(.*))?$`)

// ResolveDSN returns the pgx connection string: DSN when set, otherwise one
// built from the JDBC connection URL and credentials. A searchPath parameter
// becomes the session search_path.
func (c *Config) ResolveDSN() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}
	if c.ConnectionURL == "" {
		return "", fmt.Errorf("--dsn or --connection-url (connection-url) is required")
	}
	m := jdbcPattern.FindStringSubmatch(c.ConnectionURL)
	if m == nil {
		return "", fmt.Errorf("unsupported connection url %q", c.ConnectionURL)
	}
	host, db, _ := strings.Cut(m[1], "/")
	u := url.URL{
		Scheme: "postgres",
		Host:   host,
		Path:   "/" + db,
	}
	if c.Username != "" {
		u.User = url.UserPassword(c.Username, c.Password)
	}
	if m[3] != "" {
		q := url.Values{}
		q.Set("search_path", m[3])
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
