// Package config centralizes how PathFinder reads its settings and exposes
// them as strongly typed Go values. Values come from (lowest to highest
// priority) built-in defaults, an optional config file named by
// PATHFINDER_CONFIG, a local .env file, and PATHFINDER_* environment variables.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage backends understood by the document store.
const (
	BackendFilesystem = "fs"
	BackendS3         = "s3"
)

// Config represents runtime configuration shared by the API server, the
// worker and the operator CLI.
type Config struct {
	Address     string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	StorageBackend    string
	UploadDir         string
	S3Endpoint        string
	S3AccessKey       string
	S3SecretKey       string
	S3Region          string
	S3Bucket          string
	S3UseSSL          bool
	MaxFileSize       int64
	AllowedExtensions []string

	SigningSecret []byte
	SignedURLTTL  time.Duration
	SessionTTL    time.Duration
	SecureCookies bool

	WorkerConcurrency int
	SweepInterval     time.Duration
	OrphanGrace       time.Duration

	LogLevel  string
	LogFormat string
}

const (
	defaultAddress           = ":8080"
	defaultStorageBackend    = BackendFilesystem
	defaultUploadDir         = "uploads"
	defaultS3Bucket          = "pathfinder-documents"
	defaultS3Region          = "us-east-1"
	defaultMaxFileSize       = 10 << 20 // 10 MiB
	defaultAllowedExtensions = "pdf,doc,docx"
	defaultSignedTTL         = 5 * time.Minute
	defaultSessionTTL        = 24 * time.Hour
	defaultWorkerCount       = 2
	defaultSweepInterval     = time.Hour
	defaultOrphanGrace       = time.Hour
	defaultLogLevel          = "info"
	defaultLogFormat         = "console"
)

// Load reads configuration falling back to defaults. A missing .env or config
// file is not an error; a config file that exists but cannot be parsed is.
func Load() (*Config, error) {
	// godotenv never overrides variables that are already set, so the real
	// environment keeps priority over the .env file.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PATHFINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path := os.Getenv("PATHFINDER_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Address:           v.GetString("address"),
		DatabaseURL:       v.GetString("database_url"),
		RedisAddr:         v.GetString("redis_addr"),
		RedisPassword:     v.GetString("redis_password"),
		RedisDB:           v.GetInt("redis_db"),
		StorageBackend:    strings.ToLower(strings.TrimSpace(v.GetString("storage_backend"))),
		UploadDir:         v.GetString("upload_dir"),
		S3Endpoint:        v.GetString("s3_endpoint"),
		S3AccessKey:       v.GetString("s3_access_key"),
		S3SecretKey:       v.GetString("s3_secret_key"),
		S3Region:          v.GetString("s3_region"),
		S3Bucket:          v.GetString("s3_bucket"),
		S3UseSSL:          v.GetBool("s3_use_ssl"),
		MaxFileSize:       v.GetInt64("max_file_bytes"),
		AllowedExtensions: parseList(v.GetString("allowed_extensions")),
		SigningSecret:     parseSecret(v.GetString("signing_secret")),
		SignedURLTTL:      v.GetDuration("signed_ttl"),
		SessionTTL:        v.GetDuration("session_ttl"),
		SecureCookies:     v.GetBool("secure_cookies"),
		WorkerConcurrency: v.GetInt("workers"),
		SweepInterval:     v.GetDuration("sweep_interval"),
		OrphanGrace:       v.GetDuration("orphan_grace"),
		LogLevel:          v.GetString("log_level"),
		LogFormat:         v.GetString("log_format"),
	}
	if cfg.SigningSecret == nil {
		// Links signed with a random secret stop validating after a restart,
		// which is acceptable for a single dev process.
		cfg.SigningSecret = randomSecret()
	}
	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = defaultWorkerCount
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = defaultSignedTTL
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.OrphanGrace < 0 {
		cfg.OrphanGrace = defaultOrphanGrace
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = parseList(defaultAllowedExtensions)
	}
	switch cfg.StorageBackend {
	case BackendFilesystem, BackendS3:
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
	if cfg.StorageBackend == BackendS3 && cfg.S3Endpoint == "" {
		return nil, fmt.Errorf("storage backend %q requires PATHFINDER_S3_ENDPOINT", BackendS3)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Every key needs a default (even an empty one) so AutomaticEnv can find
	// the matching PATHFINDER_* variable.
	v.SetDefault("address", defaultAddress)
	v.SetDefault("database_url", "")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("storage_backend", defaultStorageBackend)
	v.SetDefault("upload_dir", defaultUploadDir)
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("s3_access_key", "")
	v.SetDefault("s3_secret_key", "")
	v.SetDefault("s3_region", defaultS3Region)
	v.SetDefault("s3_bucket", defaultS3Bucket)
	v.SetDefault("s3_use_ssl", false)
	v.SetDefault("max_file_bytes", int64(defaultMaxFileSize))
	v.SetDefault("allowed_extensions", defaultAllowedExtensions)
	v.SetDefault("signing_secret", "")
	v.SetDefault("signed_ttl", defaultSignedTTL)
	v.SetDefault("session_ttl", defaultSessionTTL)
	v.SetDefault("secure_cookies", false)
	v.SetDefault("workers", defaultWorkerCount)
	v.SetDefault("sweep_interval", defaultSweepInterval)
	v.SetDefault("orphan_grace", defaultOrphanGrace)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("log_format", defaultLogFormat)
}

// UsesRedis reports whether a Redis server is configured. Sessions and the
// background queue both depend on it.
func (c *Config) UsesRedis() bool {
	return c.RedisAddr != ""
}

// UsesDatabase reports whether PostgreSQL is configured; without it the
// server falls back to the in-memory store.
func (c *Config) UsesDatabase() bool {
	return c.DatabaseURL != ""
}

func parseList(val string) []string {
	out := make([]string, 0, 4)
	for _, item := range strings.Split(val, ",") {
		item = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(item), ".")))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseSecret(v string) []byte {
	if v == "" {
		return nil
	}
	return []byte(v)
}

func randomSecret() []byte {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return []byte(hex.EncodeToString([]byte("fallbacksecret")))
	}
	return buf
}
