package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Warehouse WarehouseConfig `yaml:"warehouse" mapstructure:"warehouse"`
	Notion    NotionConfig    `yaml:"notion" mapstructure:"notion"`
	Data      DataConfig      `yaml:"data" mapstructure:"data"`
	Sources   SourcesConfig   `yaml:"sources" mapstructure:"sources"`
	Forecast  ForecastConfig  `yaml:"forecast" mapstructure:"forecast"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the local staging database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// WarehouseConfig configures the Postgres warehouse used by the publish step.
type WarehouseConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Schema      string `yaml:"schema" mapstructure:"schema"`
}

// NotionConfig holds Notion API credentials and the run-summary database ID.
type NotionConfig struct {
	Token  string `yaml:"token" mapstructure:"token"`
	RunsDB string `yaml:"runs_db" mapstructure:"runs_db"`
}

// DataConfig describes the on-disk data layout.
type DataConfig struct {
	RawDir        string `yaml:"raw_dir" mapstructure:"raw_dir"`
	OutputDir     string `yaml:"output_dir" mapstructure:"output_dir"`
	LookupPath    string `yaml:"lookup_path" mapstructure:"lookup_path"`
	OverridesPath string `yaml:"overrides_path" mapstructure:"overrides_path"`
}

// SourcesConfig names the input files for each dataset. Paths are relative
// to data.raw_dir unless absolute.
type SourcesConfig struct {
	QCEWPath            string `yaml:"qcew_path" mapstructure:"qcew_path"`
	MoodysPath          string `yaml:"moodys_path" mapstructure:"moodys_path"`
	MCDAPath            string `yaml:"mcda_path" mapstructure:"mcda_path"`
	EPTablePath         string `yaml:"ep_table_path" mapstructure:"ep_table_path"`
	EPTableURL          string `yaml:"ep_table_url" mapstructure:"ep_table_url"`
	BEASharesPath       string `yaml:"bea_shares_path" mapstructure:"bea_shares_path"`
	LightcastSharesPath string `yaml:"lightcast_shares_path" mapstructure:"lightcast_shares_path"`
	StaffingDir         string `yaml:"staffing_dir" mapstructure:"staffing_dir"`
}

// ForecastConfig sets the year range and validation tolerance for a run.
type ForecastConfig struct {
	BaseYear     int     `yaml:"base_year" mapstructure:"base_year"`
	HorizonYear  int     `yaml:"horizon_year" mapstructure:"horizon_year"`
	SnapshotYear int     `yaml:"snapshot_year" mapstructure:"snapshot_year"`
	TolerancePct float64 `yaml:"tolerance_pct" mapstructure:"tolerance_pct"`
	Geography    string  `yaml:"geography" mapstructure:"geography"`
}

// FetchConfig configures optional source downloads.
type FetchConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// ServerConfig configures the read-only results API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. path selects an
// explicit config file; when empty, config.yaml is searched for in the
// working directory and ~/.workforce-cli.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".workforce-cli"))
		}
	}

	// Environment
	v.SetEnvPrefix("WORKFORCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.path", "data/workforce.db")
	v.SetDefault("warehouse.schema", "workforce")
	v.SetDefault("data.raw_dir", "data/raw")
	v.SetDefault("data.output_dir", "data/processed")
	v.SetDefault("data.lookup_path", "data/lookups/segment_assignments.csv")
	v.SetDefault("data.overrides_path", "")
	v.SetDefault("sources.qcew_path", "MI-QCEW-38-NAICS-2001-2024.xlsx")
	v.SetDefault("sources.moodys_path", "Moody's Supply Chain Employment and Output 1970-2055.xlsx")
	v.SetDefault("sources.mcda_path", "Staffing Patterns for 10 Categories.xlsx")
	v.SetDefault("sources.ep_table_path", "ep_table_12.xlsx")
	v.SetDefault("sources.ep_table_url", "https://www.bls.gov/emp/ind-occ-matrix/occupation.xlsx")
	v.SetDefault("sources.bea_shares_path", "bea_auto_attribution.csv")
	v.SetDefault("sources.lightcast_shares_path", "lightcast_naics4_shares.csv")
	v.SetDefault("sources.staffing_dir", "us_staffing_patterns")
	v.SetDefault("forecast.base_year", 2024)
	v.SetDefault("forecast.horizon_year", 2034)
	v.SetDefault("forecast.snapshot_year", 2030)
	v.SetDefault("forecast.tolerance_pct", 5.0)
	v.SetDefault("forecast.geography", "Michigan")
	v.SetDefault("fetch.user_agent", "workforce-cli (research@sellsadvisors.com)")
	v.SetDefault("fetch.timeout_secs", 120)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration required for the given mode is
// present. Modes: "pipeline", "publish", "notify", "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	switch mode {
	case "pipeline":
		check(c.Store.Path != "", "store.path is required")
		check(c.Data.LookupPath != "", "data.lookup_path is required")
		check(c.Forecast.BaseYear > 0, "forecast.base_year must be > 0")
		check(c.Forecast.HorizonYear > c.Forecast.BaseYear, "forecast.horizon_year must be after forecast.base_year")
		check(c.Forecast.SnapshotYear >= c.Forecast.BaseYear && c.Forecast.SnapshotYear <= c.Forecast.HorizonYear,
			"forecast.snapshot_year must fall within the forecast range")
		check(c.Forecast.TolerancePct > 0, "forecast.tolerance_pct must be > 0")
	case "publish":
		check(c.Store.Path != "", "store.path is required")
		check(c.Warehouse.DatabaseURL != "", "warehouse.database_url is required")
	case "notify":
		check(c.Notion.Token != "", "notion.token is required")
		check(c.Notion.RunsDB != "", "notion.runs_db is required")
	case "serve":
		check(c.Store.Path != "", "store.path is required")
		check(c.Server.Port > 0, "server.port must be > 0")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
