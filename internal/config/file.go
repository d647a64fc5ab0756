package config

import (
	"fmt"
	"os"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML shape of ANCINE_CONFIG. Only the pipeline knobs and
// the column mapping live here; credentials stay in the environment.
type fileConfig struct {
	DataDir            string  `yaml:"data-dir"`
	CacheDir           string  `yaml:"cache-dir"`
	MasterFile         string  `yaml:"master-file"`
	BatchSize          int     `yaml:"batch-size"`
	JSONKeyPath        string  `yaml:"json-key-path"`
	CSVDelimiter       string  `yaml:"csv-delimiter"`
	CSVEncoding        string  `yaml:"csv-encoding"`
	ParquetCompression string  `yaml:"parquet-compression"`
	Columns            Columns `yaml:"columns"`
	IngestSchedule     string  `yaml:"ingest-schedule"`
	SourceURI          string  `yaml:"source-uri"`
	TMDBLanguage       string  `yaml:"tmdb-language"`
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-controlled
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.DataDir = fc.DataDir
	cfg.CacheDir = fc.CacheDir
	cfg.MasterFile = fc.MasterFile
	cfg.BatchSize = fc.BatchSize
	cfg.JSONKeyPath = fc.JSONKeyPath
	cfg.CSVEncoding = fc.CSVEncoding
	cfg.ParquetCompression = fc.ParquetCompression
	cfg.Columns = fc.Columns
	cfg.IngestSchedule = fc.IngestSchedule
	cfg.SourceURI = fc.SourceURI
	cfg.TMDB.Language = fc.TMDBLanguage
	if fc.CSVDelimiter != "" {
		r, size := utf8.DecodeRuneInString(fc.CSVDelimiter)
		if size != len(fc.CSVDelimiter) {
			return fmt.Errorf("parse config %s: csv-delimiter must be a single character", path)
		}
		cfg.CSVDelimiter = r
	}
	return nil
}
