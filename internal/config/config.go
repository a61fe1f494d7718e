// Package config loads the artifact manager's YAML configuration file,
// applies environment-variable overrides, and optionally watches the file
// for changes so operators can hot-reload alias word lists and download
// defaults without a restart.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port         string `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig configures the metadata store connection pool.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // "postgres" or "sqlite"
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// ObjectStoreConfig configures the server-wide S3-compatible default.
type ObjectStoreConfig struct {
	Endpoint           string        `yaml:"endpoint"`
	Region             string        `yaml:"region"`
	Bucket             string        `yaml:"bucket"`
	PublicEndpoint     string        `yaml:"public_endpoint"`
	ArtifactsDir       string        `yaml:"artifacts_dir"`
	PresignTTL         time.Duration `yaml:"presign_ttl"`
	DefaultDownloadWeight float64    `yaml:"default_download_weight"`
}

// VectorDBConfig configures the vector collection backend.
type VectorDBConfig struct {
	Enabled          bool             `yaml:"enabled"`
	Backend          string           `yaml:"backend"` // "memory", "postgresql", ...
	EmbeddingService EmbeddingConfig  `yaml:"embedding_service"`
}

// EmbeddingConfig selects the default embedding provider:model pair.
type EmbeddingConfig struct {
	Service   string `yaml:"service"`
	Dimension int    `yaml:"dimension"`
}

// PermissionConfig points at the alias word-list directory.
type PermissionConfig struct {
	WordListDir string `yaml:"word_list_dir"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// PresignRateLimitConfig configures the Redis-backed per-workspace/user
// presign rate limit. Disabled by default: a nil limiter is a valid,
// unbounded configuration.
type PresignRateLimitConfig struct {
	Enabled       bool   `yaml:"enabled"`
	RedisAddr     string `yaml:"redis_addr"`
	Limit         int64  `yaml:"limit"`
	WindowSeconds int    `yaml:"window_seconds"`
}

// CORSConfig configures the HTTP surface's allowed browser origins.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Config is the root configuration document.
type Config struct {
	Server           ServerConfig           `yaml:"server"`
	Database         DatabaseConfig         `yaml:"database"`
	ObjectStore      ObjectStoreConfig      `yaml:"object_store"`
	VectorDB         VectorDBConfig         `yaml:"vector_db"`
	Permission       PermissionConfig       `yaml:"permission"`
	Logging          LoggingConfig          `yaml:"logging"`
	PresignRateLimit PresignRateLimitConfig `yaml:"presign_rate_limit"`
	CORS             CORSConfig             `yaml:"cors"`
}

// Load reads and parses the YAML config at path, applies environment
// overrides, and fills in defaults for unset fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.ObjectStore.ArtifactsDir == "" {
		cfg.ObjectStore.ArtifactsDir = "artifacts"
	}
	if cfg.ObjectStore.PresignTTL == 0 {
		cfg.ObjectStore.PresignTTL = time.Hour
	}
	if cfg.VectorDB.EmbeddingService.Dimension == 0 {
		cfg.VectorDB.EmbeddingService.Dimension = 384
	}
	if cfg.VectorDB.EmbeddingService.Service == "" {
		cfg.VectorDB.EmbeddingService.Service = "local:hash"
	}
	if cfg.PresignRateLimit.WindowSeconds == 0 {
		cfg.PresignRateLimit.WindowSeconds = 60
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = []string{"*"}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ARTIFACTD_SERVER_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("ARTIFACTD_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("ARTIFACTD_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("ARTIFACTD_OBJECT_STORE_BUCKET"); v != "" {
		cfg.ObjectStore.Bucket = v
	}
	if v := os.Getenv("ARTIFACTD_OBJECT_STORE_ENDPOINT"); v != "" {
		cfg.ObjectStore.Endpoint = v
	}
	if v := os.Getenv("ARTIFACTD_OBJECT_STORE_PRESIGN_TTL_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.ObjectStore.PresignTTL = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("ARTIFACTD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Watch reloads path whenever it changes on disk and invokes onChange with
// the result. A failed reload calls onChange(nil, err); callers should keep
// using the last-good config in that case.
func Watch(path string, onChange func(*Config, error)) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch config file: %w", err)
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					cfg, err := Load(path)
					onChange(cfg, err)
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return watcher, nil
}
