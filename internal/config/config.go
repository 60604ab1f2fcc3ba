package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. IMPORTER_SERVER_PORT.
const EnvPrefix = "IMPORTER"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Store    StoreConfig    `mapstructure:"store"`
	BigQuery BigQueryConfig `mapstructure:"bigquery"`
	GCS      GCSConfig      `mapstructure:"gcs"`
	Import   ImportConfig   `mapstructure:"import"`
	AI       AIConfig       `mapstructure:"ai"`
	Notion   NotionConfig   `mapstructure:"notion"`

	ConfigPath string `mapstructure:"-"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

// StoreConfig selects the backend: "sqlite" or "bigquery".
type StoreConfig struct {
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

type BigQueryConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Dataset   string `mapstructure:"dataset"`
}

// GCSConfig enables archiving of uploads when Bucket is set.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
}

type ImportConfig struct {
	DefaultUser string `mapstructure:"default_user"`
	MaxUploadMB int64  `mapstructure:"max_upload_mb"`
}

type AIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`
}

type NotionConfig struct {
	Token      string `mapstructure:"token"`
	DatabaseID string `mapstructure:"database_id"`
}

const (
	DriverSQLite   = "sqlite"
	DriverBigQuery = "bigquery"
)

var defaults = map[string]interface{}{
	"server.port":          "8080",
	"log.level":            "info",
	"log.format":           "console",
	"store.driver":         DriverSQLite,
	"store.sqlite_path":    "data/importer.db",
	"bigquery.project_id":  "",
	"bigquery.dataset":     "finance",
	"gcs.bucket":           "",
	"import.default_user":  "default",
	"import.max_upload_mb": 10,
	"ai.enabled":           false,
	"ai.model":             "gemini-2.5-flash",
	"notion.token":         "",
	"notion.database_id":   "",
}

// NewViper returns a viper instance with defaults and environment overrides
// registered. Command flags can be bound to it before Load.
func NewViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file and decodes the merged settings. An
// empty path looks for config.yaml in the working directory and in
// $HOME/.statement-importer; a missing file is not an error then.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.statement-importer")
	}

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("Load: read config file: %w", err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("Load: config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("Load: decode config: %w", err)
	}
	cfg.ConfigPath = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("config: store.sqlite_path is required for the sqlite driver")
		}
	case DriverBigQuery:
		if c.BigQuery.ProjectID == "" {
			return errors.New("config: bigquery.project_id is required for the bigquery driver")
		}
	default:
		return fmt.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("config: unknown log.format %q", c.Log.Format)
	}
	if c.Import.MaxUploadMB <= 0 {
		return errors.New("config: import.max_upload_mb must be positive")
	}
	return nil
}

// MaxUploadBytes is the multipart size limit derived from MaxUploadMB.
func (c *Config) MaxUploadBytes() int64 {
	return c.Import.MaxUploadMB << 20
}
