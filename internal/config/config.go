// Package config loads the runtime configuration of the nresults server from
// defaults, an optional YAML file and NRESULTS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Narodni-repozitar/nr-Nresults/internal/blob"
	"github.com/Narodni-repozitar/nr-Nresults/internal/core"
	"github.com/Narodni-repozitar/nr-Nresults/internal/logging"
	"github.com/Narodni-repozitar/nr-Nresults/internal/taxonomy"
	"github.com/Narodni-repozitar/nr-Nresults/plugins/nresults"
)

// EnvPrefix prefixes every environment override; server.addr becomes
// NRESULTS_SERVER_ADDR.
const EnvPrefix = "NRESULTS"

type ServerConfig struct {
	Addr        string `mapstructure:"addr"`
	Scheme      string `mapstructure:"scheme"`
	Name        string `mapstructure:"name"`
	MetricsPath string `mapstructure:"metrics_path"`
}

type StorageConfig struct {
	Driver      string `mapstructure:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

type SearchConfig struct {
	// Dir holds the bleve indexes; empty keeps them in memory.
	Dir string `mapstructure:"dir"`
}

type TaxonomyConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Prefix   string        `mapstructure:"prefix"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	Seed     string        `mapstructure:"seed"`
}

type ArchiveConfig struct {
	Driver string        `mapstructure:"driver"`
	FSRoot string        `mapstructure:"fs_root"`
	S3     blob.S3Config `mapstructure:"s3"`
}

type SchemasConfig struct {
	Host   string `mapstructure:"host"`
	Strict bool   `mapstructure:"strict"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Search   SearchConfig   `mapstructure:"search"`
	Taxonomy TaxonomyConfig `mapstructure:"taxonomy"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Schemas  SchemasConfig  `mapstructure:"schemas"`
	Log      LogConfig      `mapstructure:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:        ":5000",
			Scheme:      core.DefaultScheme,
			Name:        core.DefaultServerName,
			MetricsPath: "/metrics",
		},
		Storage: StorageConfig{Driver: string(core.StorageSQLite), SQLitePath: "nresults.db"},
		Taxonomy: TaxonomyConfig{
			BaseURL:  taxonomy.DefaultBaseURL,
			Prefix:   taxonomy.DefaultPrefix,
			CacheTTL: 5 * time.Minute,
		},
		Schemas: SchemasConfig{Host: nresults.DefaultSchemasHost},
		Log:     LogConfig{Level: "info", Format: string(logging.FormatJSON)},
	}
}

// SetDefaults registers Defaults on v so every key is known to environment
// lookups during Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	for key, value := range map[string]any{
		"server.addr":                  d.Server.Addr,
		"server.scheme":                d.Server.Scheme,
		"server.name":                  d.Server.Name,
		"server.metrics_path":          d.Server.MetricsPath,
		"storage.driver":               d.Storage.Driver,
		"storage.sqlite_path":          d.Storage.SQLitePath,
		"storage.postgres_dsn":         d.Storage.PostgresDSN,
		"search.dir":                   d.Search.Dir,
		"taxonomy.base_url":            d.Taxonomy.BaseURL,
		"taxonomy.prefix":              d.Taxonomy.Prefix,
		"taxonomy.cache_ttl":           d.Taxonomy.CacheTTL,
		"taxonomy.seed":                d.Taxonomy.Seed,
		"archive.driver":               d.Archive.Driver,
		"archive.fs_root":              d.Archive.FSRoot,
		"archive.s3.bucket":            "",
		"archive.s3.region":            "",
		"archive.s3.endpoint":          "",
		"archive.s3.access_key_id":     "",
		"archive.s3.secret_access_key": "",
		"archive.s3.path_style":        false,
		"schemas.host":                 d.Schemas.Host,
		"schemas.strict":               d.Schemas.Strict,
		"log.level":                    d.Log.Level,
		"log.format":                   d.Log.Format,
		"tracing.enabled":              d.Tracing.Enabled,
	} {
		v.SetDefault(key, value)
	}
}

// Load reads file (optional) and the environment into a validated Config.
func Load(v *viper.Viper, file string) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values that cannot be defaulted.
func (c Config) Validate() error {
	var errs []error
	switch core.StorageDriver(c.Storage.Driver) {
	case core.StorageMemory, core.StorageSQLite, core.StoragePostgres:
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	switch blob.Driver(c.Archive.Driver) {
	case "", blob.DriverMemory, blob.DriverFilesystem:
	case blob.DriverS3:
		if c.Archive.S3.Bucket == "" {
			errs = append(errs, errors.New("archive.s3.bucket: required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("archive.driver: unknown driver %q", c.Archive.Driver))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Server.Name == "" {
		errs = append(errs, errors.New("server.name: required"))
	}
	return errors.Join(errs...)
}

// StorageConfig converts the storage section.
func (c Config) StorageConfig() core.StorageConfig {
	return core.StorageConfig{
		Driver:      core.StorageDriver(c.Storage.Driver),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
	}
}

// BlobConfig converts the archive section.
func (c Config) BlobConfig() blob.Config {
	return blob.Config{Driver: blob.Driver(c.Archive.Driver), FSRoot: c.Archive.FSRoot, S3: c.Archive.S3}
}

// TaxonomyOptions converts the taxonomy section.
func (c Config) TaxonomyOptions() taxonomy.Options {
	return taxonomy.Options{BaseURL: c.Taxonomy.BaseURL, Prefix: c.Taxonomy.Prefix, CacheTTL: c.Taxonomy.CacheTTL}
}

// LoggingConfig converts the log section.
func (c Config) LoggingConfig() logging.Config {
	return logging.Config{Level: c.Log.Level, Format: logging.Format(c.Log.Format)}
}
