// Package config provides unified configuration for the tabletmeta service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the unified configuration for the tabletmeta service.
type Config struct {
	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Schema configuration
	Schema SchemaConfig `json:"schema" yaml:"schema"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// SchemaConfig holds defaults applied to schemas registered without
// explicit values.
type SchemaConfig struct {
	// DefaultCompression is the compression applied when a descriptor
	// omits one: NO_COMPRESSION, LZ4, SNAPPY, ZSTD
	DefaultCompression string `json:"default_compression" yaml:"default_compression"`

	// NumRowsPerRowBlock is the default row block size hint
	NumRowsPerRowBlock int `json:"num_rows_per_row_block" yaml:"num_rows_per_row_block"`

	// BloomFilterFPP is the default bloom filter false positive rate
	// applied when a descriptor enables bloom filter columns (0 < fpp < 1)
	BloomFilterFPP float64 `json:"bloom_filter_fpp" yaml:"bloom_filter_fpp"`
}

// StorageConfig holds snapshot storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/tabletmeta",
		Schema: SchemaConfig{
			DefaultCompression: "LZ4",
			NumRowsPerRowBlock: 1024,
			BloomFilterFPP:     0.05,
		},
		Storage: StorageConfig{
			Type: "local",
			Path: "",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/tabletmeta"
	}

	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "snapshots")
	}
}

// CatalogPath returns the path to the catalog database.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.DataDir, "catalog.db")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}

	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	if c.Schema.NumRowsPerRowBlock <= 0 {
		return fmt.Errorf("schema.num_rows_per_row_block must be positive, got %d", c.Schema.NumRowsPerRowBlock)
	}

	if c.Schema.BloomFilterFPP <= 0 || c.Schema.BloomFilterFPP >= 1 {
		return fmt.Errorf("schema.bloom_filter_fpp must be between 0 and 1 exclusive, got %g", c.Schema.BloomFilterFPP)
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the TABLETMETA_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("TABLETMETA_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Schema configuration
	if v := os.Getenv("TABLETMETA_SCHEMA_DEFAULT_COMPRESSION"); v != "" {
		cfg.Schema.DefaultCompression = v
	}
	if v := os.Getenv("TABLETMETA_SCHEMA_ROWS_PER_BLOCK"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Schema.NumRowsPerRowBlock)
	}
	if v := os.Getenv("TABLETMETA_SCHEMA_BLOOM_FILTER_FPP"); v != "" {
		fmt.Sscanf(v, "%g", &cfg.Schema.BloomFilterFPP)
	}

	// Storage configuration
	if v := os.Getenv("TABLETMETA_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("TABLETMETA_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("TABLETMETA_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("TABLETMETA_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("TABLETMETA_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.Storage.Path,
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
