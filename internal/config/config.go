package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendHTTP = "http"
	BackendS3   = "s3"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Path string
	}
	Remote struct {
		Backend string
		BaseURL string
		Timeout time.Duration
	}
	Storage struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
	Auth struct {
		JWTSecret       string
		TokenTTLMinutes int
	}
	Repository struct {
		FreshTimeout  time.Duration
		Retention     time.Duration
		PurgeInterval time.Duration
	}
	Cache struct {
		MaxEntries    int
		SweepInterval time.Duration
	}
	Executor struct {
		MaxConcurrent int
	}
	HTTP struct {
		WaitTimeout time.Duration
	}
	Log struct {
		Level string
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv(".env")

	v := viper.New()
	v.SetEnvPrefix("PROFILE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("database.path", "data/users.db")
	v.SetDefault("remote.backend", BackendHTTP)
	v.SetDefault("remote.baseurl", "https://api.github.com")
	v.SetDefault("remote.timeout", 10*time.Second)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "users")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.tokenttlminutes", 60)
	v.SetDefault("repository.freshtimeout", 24*time.Hour)
	v.SetDefault("repository.retention", 30*24*time.Hour)
	v.SetDefault("repository.purgeinterval", time.Hour)
	v.SetDefault("cache.maxentries", 10000)
	v.SetDefault("cache.sweepinterval", 5*time.Minute)
	v.SetDefault("executor.maxconcurrent", 4)
	v.SetDefault("http.waittimeout", 15*time.Second)
	v.SetDefault("log.level", "info")
}

// Validate checks the settings the server cannot start without.
func (c Config) Validate() error {
	switch c.Remote.Backend {
	case BackendHTTP:
		if strings.TrimSpace(c.Remote.BaseURL) == "" {
			return fmt.Errorf("remote base url is required for the http backend")
		}
	case BackendS3:
		if strings.TrimSpace(c.Storage.Bucket) == "" {
			return fmt.Errorf("storage bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown remote backend %q", c.Remote.Backend)
	}
	if c.Repository.FreshTimeout <= 0 {
		return fmt.Errorf("repository fresh timeout must be positive")
	}
	if c.Repository.Retention < c.Repository.FreshTimeout {
		return fmt.Errorf("repository retention %s must not be shorter than the fresh timeout %s", c.Repository.Retention, c.Repository.FreshTimeout)
	}
	if c.Repository.PurgeInterval <= 0 {
		return fmt.Errorf("repository purge interval must be positive")
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache max entries must not be negative")
	}
	if c.Cache.SweepInterval <= 0 {
		return fmt.Errorf("cache sweep interval must be positive")
	}
	if c.Executor.MaxConcurrent <= 0 {
		return fmt.Errorf("executor max concurrent must be positive")
	}
	return nil
}

// loadDotEnv copies KEY=VALUE pairs from path into the environment without
// overriding variables that are already set.
func loadDotEnv(path string) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
