// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"ancine-dash/internal/ddl"
)

// Columns maps the logical dataset fields to header names in the master dataset.
type Columns struct {
	Title        string `yaml:"title"`
	Date         string `yaml:"date"`
	Audience     string `yaml:"audience"`
	State        string `yaml:"state"`
	Municipality string `yaml:"municipality"`
}

// TMDBConfig holds movie metadata client settings.
type TMDBConfig struct {
	APIKey   string        // TMDB v3 API key; empty disables enrichment
	Language string        // response language (default "pt-BR")
	BaseURL  string        // API root (default https://api.themoviedb.org/3)
	RPS      float64       // outbound requests per second (default 20)
	Timeout  time.Duration // per-request timeout (default 10s)
}

// Enabled reports whether an API key is configured.
func (t *TMDBConfig) Enabled() bool { return t.APIKey != "" }

// StorageConfig holds object storage credentials used by source sync.
// All fields are optional; a scheme without credentials falls back to the
// provider's default chain where one exists.
type StorageConfig struct {
	S3KeyID    string
	S3Secret   string
	S3Endpoint string
	S3Region   string

	AzureAccountName string
	AzureAccountKey  string
	AzureEndpoint    string

	GCSKeyFile  string
	GCSEndpoint string
}

// Config holds the configuration for ingestion, the dashboard and source sync.
type Config struct {
	DataDir            string // directory holding source files and per-source parquet (default "ancine_data")
	CacheDir           string // TMDB cache artifacts (default "tmdb_cache")
	MasterFile         string // unified dataset file name inside DataDir (default "ancine_all.parquet")
	BatchSize          int    // JSON rows per batch (default 100000)
	JSONKeyPath        string // streamed array location (default "data.item")
	CSVDelimiter       rune   // default ';'
	CSVEncoding        string // "latin1" (default) or "utf-8"
	ParquetCompression string // default "snappy"
	Columns            Columns

	ListenAddr string // HTTP listen address (default ":8080")
	LogLevel   string // log level: debug, info, warn, error (default "info")
	Env        string // environment: "development" (default) or "production"

	TMDB TMDBConfig

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 50)
	RateLimitBurst int     // burst capacity (default 100)

	// CORS
	CORSAllowedOrigins []string // allowed origins for the JSON API (default: ["*"])

	IngestSchedule string // cron spec for re-ingestion in serve mode; empty disables
	SourceURI      string // s3://, az:// or gs:// prefix for `sync`

	Storage StorageConfig

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// MasterPath returns the absolute-or-relative path of the unified dataset.
func (c *Config) MasterPath() string {
	return filepath.Join(c.DataDir, c.MasterFile)
}

// LedgerPath returns the path of the run ledger database.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.DataDir, "ancine_runs.sqlite")
}

// Load reads the optional YAML file named by ANCINE_CONFIG, then overlays
// environment variables and applies defaults. Environment wins over file.
func Load() (*Config, error) {
	cfg := &Config{}
	if path := os.Getenv("ANCINE_CONFIG"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.DataDir, "DATA_DIR")
	setString(&cfg.CacheDir, "CACHE_DIR")
	setString(&cfg.MasterFile, "MASTER_FILE")
	setString(&cfg.JSONKeyPath, "JSON_KEY_PATH")
	setString(&cfg.CSVEncoding, "CSV_ENCODING")
	setString(&cfg.ParquetCompression, "PARQUET_COMPRESSION")
	setString(&cfg.ListenAddr, "LISTEN_ADDR")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.Env, "ENV")
	setString(&cfg.IngestSchedule, "INGEST_SCHEDULE")
	setString(&cfg.SourceURI, "SOURCE_URI")

	setString(&cfg.Columns.Title, "COLUMN_TITLE")
	setString(&cfg.Columns.Date, "COLUMN_DATE")
	setString(&cfg.Columns.Audience, "COLUMN_AUDIENCE")
	setString(&cfg.Columns.State, "COLUMN_STATE")
	setString(&cfg.Columns.Municipality, "COLUMN_MUNICIPALITY")

	setString(&cfg.TMDB.APIKey, "TMDB_API_KEY")
	setString(&cfg.TMDB.Language, "TMDB_LANGUAGE")
	setString(&cfg.TMDB.BaseURL, "TMDB_BASE_URL")

	setString(&cfg.Storage.S3KeyID, "S3_KEY_ID")
	setString(&cfg.Storage.S3Secret, "S3_SECRET")
	setString(&cfg.Storage.S3Endpoint, "S3_ENDPOINT")
	setString(&cfg.Storage.S3Region, "S3_REGION")
	setString(&cfg.Storage.AzureAccountName, "AZURE_ACCOUNT_NAME")
	setString(&cfg.Storage.AzureAccountKey, "AZURE_ACCOUNT_KEY")
	setString(&cfg.Storage.AzureEndpoint, "AZURE_ENDPOINT")
	setString(&cfg.Storage.GCSKeyFile, "GCS_KEY_FILE")
	setString(&cfg.Storage.GCSEndpoint, "GCS_ENDPOINT")

	if v := os.Getenv("CSV_DELIMITER"); v != "" {
		r, size := utf8.DecodeRuneInString(v)
		if size != len(v) || r == utf8.RuneError {
			return fmt.Errorf("CSV_DELIMITER must be a single character, got %q", v)
		}
		cfg.CSVDelimiter = r
	}
	if v := os.Getenv("BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse BATCH_SIZE: %w", err)
		}
		cfg.BatchSize = n
	}
	if v := os.Getenv("TMDB_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.TMDB.RPS = f
		}
	}
	if v := os.Getenv("TMDB_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.TMDB.Timeout = d
		}
	}

	// Rate limiting
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = compactNonEmpty(origins)
	}
	return nil
}

func (cfg *Config) applyDefaults() error {
	if cfg.DataDir == "" {
		cfg.DataDir = "ancine_data"
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = "tmdb_cache"
	}
	if cfg.MasterFile == "" {
		cfg.MasterFile = "ancine_all.parquet"
	}
	if !strings.EqualFold(filepath.Ext(cfg.MasterFile), ".parquet") || filepath.Base(cfg.MasterFile) != cfg.MasterFile {
		return fmt.Errorf("MASTER_FILE must be a bare *.parquet file name, got %q", cfg.MasterFile)
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100_000
	}
	if cfg.BatchSize < 0 {
		return fmt.Errorf("BATCH_SIZE must be positive, got %d", cfg.BatchSize)
	}
	if cfg.JSONKeyPath == "" {
		cfg.JSONKeyPath = "data.item"
	}
	if cfg.CSVDelimiter == 0 {
		cfg.CSVDelimiter = ';'
	}
	if cfg.CSVEncoding == "" {
		cfg.CSVEncoding = "latin1"
	}
	switch strings.ToLower(cfg.CSVEncoding) {
	case "latin1", "latin-1", "iso-8859-1", "utf-8", "utf8":
	default:
		return fmt.Errorf("CSV_ENCODING must be latin1 or utf-8, got %q", cfg.CSVEncoding)
	}
	if cfg.ParquetCompression == "" {
		cfg.ParquetCompression = "snappy"
	}

	if cfg.Columns.Title == "" {
		cfg.Columns.Title = "TITULO_BRASIL"
	}
	if cfg.Columns.Date == "" {
		cfg.Columns.Date = "DT_INICIO_EXIBICAO"
	}
	if cfg.Columns.Audience == "" {
		cfg.Columns.Audience = "PUBLICO"
	}
	if cfg.Columns.State == "" {
		cfg.Columns.State = "UF_SALA_COMPLEXO"
	}
	if cfg.Columns.Municipality == "" {
		cfg.Columns.Municipality = "MUNICIPIO_SALA_COMPLEXO"
	}
	for _, name := range []string{cfg.Columns.Title, cfg.Columns.Date, cfg.Columns.Audience, cfg.Columns.State, cfg.Columns.Municipality} {
		if err := ddl.ValidateColumnName(name); err != nil {
			return fmt.Errorf("column mapping: %w", err)
		}
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.TMDB.Language == "" {
		cfg.TMDB.Language = "pt-BR"
	}
	if cfg.TMDB.BaseURL == "" {
		cfg.TMDB.BaseURL = "https://api.themoviedb.org/3"
	}
	cfg.TMDB.BaseURL = strings.TrimRight(cfg.TMDB.BaseURL, "/")
	if cfg.TMDB.RPS == 0 {
		cfg.TMDB.RPS = 20
	}
	if cfg.TMDB.Timeout == 0 {
		cfg.TMDB.Timeout = 10 * time.Second
	}
	if !cfg.TMDB.Enabled() {
		cfg.Warnings = append(cfg.Warnings, "TMDB_API_KEY not set; movie metadata will show as unavailable")
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 50
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 100
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	if cfg.IsProduction() && len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
		return fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(strings.TrimPrefix(line, "export "), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
