// Package config centralizes how FileShelf reads its configuration and
// exposes it as strongly typed Go values. Values come from an optional YAML
// file, then FILESHELF_* environment variables, then built-in defaults.
package config

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents runtime configuration for the service.
type Config struct {
	Address        string        `mapstructure:"address"`
	PublicURL      string        `mapstructure:"public_url"`
	MaxFileSize    int64         `mapstructure:"max_file_size"`
	SigningSecret  string        `mapstructure:"signing_secret"`
	SignedURLTTL   time.Duration `mapstructure:"signed_url_ttl"`
	ProcessingPool int           `mapstructure:"workers"`
	SaveInterval   time.Duration `mapstructure:"save_interval"`

	Log       LogConfig       `mapstructure:"log"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Blob      BlobConfig      `mapstructure:"blob"`
	State     StateConfig     `mapstructure:"state"`
	S3        S3Config        `mapstructure:"s3"`
	AI        AIConfig        `mapstructure:"ai"`
	Recommend RecommendConfig `mapstructure:"recommend"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// QueueConfig selects where classification jobs are queued: "memory" runs an
// in-process channel pool, "redis" uses asynq.
type QueueConfig struct {
	Backend       string `mapstructure:"backend"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// BlobConfig selects where uploaded bytes live: "disk" or "s3".
type BlobConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
}

// StateConfig selects where the keyed-record collections are persisted:
// "file", "postgres" or "s3".
type StateConfig struct {
	Backend     string `mapstructure:"backend"`
	Dir         string `mapstructure:"dir"`
	DatabaseURL string `mapstructure:"database_url"`
}

// S3Config configures MinIO / S3 access.
type S3Config struct {
	Endpoint    string `mapstructure:"endpoint"`
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	Region      string `mapstructure:"region"`
	UseSSL      bool   `mapstructure:"use_ssl"`
	BlobBucket  string `mapstructure:"blob_bucket"`
	StateBucket string `mapstructure:"state_bucket"`
}

// AIConfig configures the optional external classification capability. An
// empty APIKey disables it and every file is classified heuristically.
type AIConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	Model        string        `mapstructure:"model"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RatePerSec   float64       `mapstructure:"rate_per_sec"`
	Burst        int           `mapstructure:"burst"`
	ExcerptBytes int64         `mapstructure:"excerpt_bytes"`
}

// Enabled reports whether the external capability should be wired.
func (c AIConfig) Enabled() bool {
	return c.APIKey != ""
}

// RecommendConfig holds default result sizes.
type RecommendConfig struct {
	Count        int `mapstructure:"count"`
	SimilarCount int `mapstructure:"similar_count"`
}

const (
	defaultAddress      = ":8080"
	defaultMaxFileSize  = 20 << 20 // 20 MiB
	defaultWorkerCount  = 1
	defaultSaveInterval = 5 * time.Minute
	defaultAITimeout    = 15 * time.Second
	defaultExcerptBytes = 64 << 10
	defaultRecommend    = 8
	defaultSimilar      = 2
)

// Load reads configuration from path (may be empty) and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("FILESHELF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize clamps invalid values back to defaults and rejects unknown
// backend names.
func (c *Config) normalize() error {
	if c.ProcessingPool <= 0 {
		c.ProcessingPool = defaultWorkerCount
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = defaultMaxFileSize
	}
	if c.SignedURLTTL < 0 {
		c.SignedURLTTL = 0
	}
	if c.SaveInterval <= 0 {
		c.SaveInterval = defaultSaveInterval
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = defaultAITimeout
	}
	if c.AI.ExcerptBytes <= 0 {
		c.AI.ExcerptBytes = defaultExcerptBytes
	}
	if c.Recommend.Count <= 0 {
		c.Recommend.Count = defaultRecommend
	}
	if c.Recommend.SimilarCount <= 0 {
		c.Recommend.SimilarCount = defaultSimilar
	}
	if c.SigningSecret == "" {
		// No secret supplied: generate one, which means links do not survive a restart.
		c.SigningSecret = randomSecret()
	}
	if err := oneOf("queue.backend", c.Queue.Backend, "memory", "redis"); err != nil {
		return err
	}
	if err := oneOf("blob.backend", c.Blob.Backend, "disk", "s3"); err != nil {
		return err
	}
	if err := oneOf("state.backend", c.State.Backend, "file", "postgres", "s3"); err != nil {
		return err
	}
	if c.State.Backend == "postgres" && c.State.DatabaseURL == "" {
		return fmt.Errorf("state.database_url is required for the postgres backend")
	}
	return nil
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s: unsupported value %q (want one of %s)", key, value, strings.Join(allowed, ", "))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("address", defaultAddress)
	v.SetDefault("public_url", "http://localhost:8080")
	v.SetDefault("max_file_size", defaultMaxFileSize)
	v.SetDefault("signing_secret", "")
	v.SetDefault("signed_url_ttl", time.Duration(0))
	v.SetDefault("workers", defaultWorkerCount)
	v.SetDefault("save_interval", defaultSaveInterval)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("queue.backend", "memory")
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_password", "")
	v.SetDefault("queue.redis_db", 0)

	v.SetDefault("blob.backend", "disk")
	v.SetDefault("blob.dir", "data/blobs")

	v.SetDefault("state.backend", "file")
	v.SetDefault("state.dir", "data")
	v.SetDefault("state.database_url", "")

	v.SetDefault("s3.endpoint", "localhost:9000")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.use_ssl", false)
	v.SetDefault("s3.blob_bucket", "fileshelf-blobs")
	v.SetDefault("s3.state_bucket", "fileshelf-state")

	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.model", "gpt-4o")
	v.SetDefault("ai.timeout", defaultAITimeout)
	v.SetDefault("ai.rate_per_sec", 1.0)
	v.SetDefault("ai.burst", 3)
	v.SetDefault("ai.excerpt_bytes", defaultExcerptBytes)

	v.SetDefault("recommend.count", defaultRecommend)
	v.SetDefault("recommend.similar_count", defaultSimilar)
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "fallbacksecret"
	}
	return fmt.Sprintf("%x", buf)
}
