// Package config loads CLI configuration from a YAML file with
// SPARSEGO_* environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level CLI configuration.
type Config struct {
	Index   IndexConfig   `yaml:"index"`
	Search  SearchConfig  `yaml:"search"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
	Server  ServerConfig  `yaml:"server"`
}

// IndexConfig controls how indexes are built and loaded.
type IndexConfig struct {
	PageSize       int    `yaml:"pageSize"`
	Compression    string `yaml:"compression"`
	InMemory       bool   `yaml:"inMemory"`
	VerifyChecksum bool   `yaml:"verifyChecksum"`
	BlockCacheSize int64  `yaml:"blockCacheSize"`
	MemoryLimit    int64  `yaml:"memoryLimit"`
	IOLimit        int    `yaml:"ioLimit"`
}

// SearchConfig holds search defaults.
type SearchConfig struct {
	TopK                 int    `yaml:"topK"`
	Algorithm            string `yaml:"algorithm"`
	MaxConcurrentQueries int    `yaml:"maxConcurrentQueries"`
}

// StorageConfig configures remote index locations (s3:// and minio://).
type StorageConfig struct {
	S3    S3Config    `yaml:"s3"`
	MinIO MinIOConfig `yaml:"minio"`
}

// S3Config holds AWS S3 settings. Credentials come from the default AWS
// credential chain.
type S3Config struct {
	Region string `yaml:"region"`
}

// MinIOConfig holds MinIO connection settings.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Secure    bool   `yaml:"secure"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig holds HTTP settings for the serve command.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Index: IndexConfig{
			PageSize:    128,
			Compression: "none",
		},
		Search: SearchConfig{
			TopK:                 10,
			Algorithm:            "maxscore",
			MaxConcurrentQueries: 8,
		},
		Storage: StorageConfig{
			MinIO: MinIOConfig{
				Endpoint: "localhost:9000",
			},
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
	}
}

// Validate rejects settings no command can run with.
func (c *Config) Validate() error {
	if c.Index.PageSize <= 0 {
		return fmt.Errorf("index.pageSize must be positive, got %d", c.Index.PageSize)
	}
	if c.Search.TopK < 0 {
		return fmt.Errorf("search.topK must not be negative, got %d", c.Search.TopK)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// applyEnvOverrides reads SPARSEGO_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SPARSEGO_INDEX_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Index.PageSize = n
		}
	}
	if v := os.Getenv("SPARSEGO_INDEX_COMPRESSION"); v != "" {
		cfg.Index.Compression = v
	}
	if v := os.Getenv("SPARSEGO_INDEX_IN_MEMORY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Index.InMemory = b
		}
	}
	if v := os.Getenv("SPARSEGO_INDEX_VERIFY_CHECKSUM"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Index.VerifyChecksum = b
		}
	}
	if v := os.Getenv("SPARSEGO_INDEX_BLOCK_CACHE_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Index.BlockCacheSize = n
		}
	}
	if v := os.Getenv("SPARSEGO_SEARCH_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.TopK = n
		}
	}
	if v := os.Getenv("SPARSEGO_SEARCH_ALGORITHM"); v != "" {
		cfg.Search.Algorithm = v
	}
	if v := os.Getenv("SPARSEGO_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("SPARSEGO_MINIO_ENDPOINT"); v != "" {
		cfg.Storage.MinIO.Endpoint = v
	}
	if v := os.Getenv("SPARSEGO_MINIO_ACCESS_KEY"); v != "" {
		cfg.Storage.MinIO.AccessKey = v
	}
	if v := os.Getenv("SPARSEGO_MINIO_SECRET_KEY"); v != "" {
		cfg.Storage.MinIO.SecretKey = v
	}
	if v := os.Getenv("SPARSEGO_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SPARSEGO_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SPARSEGO_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}
