package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Store    S3Config `yaml:"store"`
	Archive  Archive  `yaml:"archive"`
	LogLevel string   `yaml:"log_level"`
}

// S3Config represents S3-compatible storage configuration
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
}

// Archive represents archiving-specific configuration
type Archive struct {
	Bucket             string `yaml:"bucket"`
	Tool               string `yaml:"tool"`
	Format             string `yaml:"format"`
	PartSize           int64  `yaml:"part_size"`
	ReuploadOnSizeDiff bool   `yaml:"reupload_on_size_diff"`
	CheckFullKey       bool   `yaml:"check_full_key"`
	CreateBucket       bool   `yaml:"create_bucket"`
	DryRun             bool   `yaml:"dry_run"`
	ShowProgress       bool   `yaml:"show_progress"`
	MetricsAddr        string `yaml:"metrics_addr"`
}

// Load loads configuration from file and command line flags
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	cfg := &Config{
		LogLevel: "info",
		Archive: Archive{
			Tool:         "yt-dlp",
			Format:       "best",
			PartSize:     67108864, // 64MB
			ShowProgress: true,     // Default to true
		},
	}

	// Load from YAML file if provided
	if configFile != "" {
		if err := loadFromFile(cfg, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with command line flags
	if err := loadFromFlags(cfg, flags); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	// Credentials may come from the environment when not set elsewhere
	if cfg.Store.AccessKey == "" {
		cfg.Store.AccessKey = os.Getenv("S3_ACCESS_KEY")
	}
	if cfg.Store.SecretKey == "" {
		cfg.Store.SecretKey = os.Getenv("S3_SECRET_KEY")
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func loadFromFlags(cfg *Config, flags *pflag.FlagSet) error {
	if flags.Changed("endpoint") {
		cfg.Store.Endpoint, _ = flags.GetString("endpoint")
	}
	if flags.Changed("access-key") {
		cfg.Store.AccessKey, _ = flags.GetString("access-key")
	}
	if flags.Changed("secret-key") {
		cfg.Store.SecretKey, _ = flags.GetString("secret-key")
	}
	if flags.Changed("secure") {
		cfg.Store.Secure, _ = flags.GetBool("secure")
	}

	if flags.Changed("bucket") {
		cfg.Archive.Bucket, _ = flags.GetString("bucket")
	}
	if flags.Changed("tool") {
		cfg.Archive.Tool, _ = flags.GetString("tool")
	}
	if flags.Changed("format") {
		cfg.Archive.Format, _ = flags.GetString("format")
	}
	if flags.Changed("part-size") {
		cfg.Archive.PartSize, _ = flags.GetInt64("part-size")
	}
	if flags.Changed("reupload-on-size-diff") {
		cfg.Archive.ReuploadOnSizeDiff, _ = flags.GetBool("reupload-on-size-diff")
	}
	if flags.Changed("check-full-key") {
		cfg.Archive.CheckFullKey, _ = flags.GetBool("check-full-key")
	}
	if flags.Changed("create-bucket") {
		cfg.Archive.CreateBucket, _ = flags.GetBool("create-bucket")
	}
	if flags.Changed("dry-run") {
		cfg.Archive.DryRun, _ = flags.GetBool("dry-run")
	}
	if flags.Changed("show-progress") {
		cfg.Archive.ShowProgress, _ = flags.GetBool("show-progress")
	}
	if flags.Changed("metrics-addr") {
		cfg.Archive.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}

	return nil
}

func (c *Config) validate() error {
	if c.Store.Endpoint == "" {
		return fmt.Errorf("store endpoint is required")
	}
	if c.Store.AccessKey == "" {
		return fmt.Errorf("store access key is required")
	}
	if c.Store.SecretKey == "" {
		return fmt.Errorf("store secret key is required")
	}

	if c.Archive.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}

	if c.Archive.Tool == "" {
		return fmt.Errorf("extraction tool is required")
	}

	if c.Archive.Format == "" {
		return fmt.Errorf("format selector is required")
	}

	if c.Archive.PartSize < 5*1024*1024 { // 5MB minimum for S3
		return fmt.Errorf("part size must be at least 5MB")
	}

	return nil
}
