package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level pagelift configuration.
type Config struct {
	Analysis  Analysis  `mapstructure:"analysis"`
	Warehouse Warehouse `mapstructure:"warehouse"`
	Output    Output    `mapstructure:"output"`
}

// Analysis defines the analysis-window settings.
type Analysis struct {
	// HoursBack is the trailing session window, in hours.
	HoursBack int `mapstructure:"hours_back"`

	// Parallelism bounds the number of pages analyzed concurrently.
	Parallelism int `mapstructure:"parallelism"`
}

// Warehouse defines the ClickHouse mirror settings.
type Warehouse struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Output defines output preferences.
type Output struct {
	Color bool `mapstructure:"color"`
	Width int  `mapstructure:"width"`
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Load reads configuration from the given path (or the default location)
// and returns a Config with all defaults applied.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	// Set defaults.
	v.SetDefault("analysis.hours_back", DefaultAnalysis.HoursBack)
	v.SetDefault("analysis.parallelism", DefaultAnalysis.Parallelism)
	v.SetDefault("warehouse.enabled", DefaultWarehouse.Enabled)
	v.SetDefault("warehouse.addr", DefaultWarehouse.Addr)
	v.SetDefault("warehouse.database", DefaultWarehouse.Database)
	v.SetDefault("warehouse.username", DefaultWarehouse.Username)
	v.SetDefault("output.color", DefaultOutput.Color)
	v.SetDefault("output.width", DefaultOutput.Width)

	// Warehouse credentials usually come from the environment.
	v.SetEnvPrefix("PAGELIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(expandPath(cfgFile))
	} else {
		configDir := expandPath(DefaultConfigDir)
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Read config file if it exists; missing file is not an error.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Only return error for problems other than file not found.
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Analysis.HoursBack < 1 {
		cfg.Analysis.HoursBack = DefaultAnalysis.HoursBack
	}
	if cfg.Analysis.Parallelism < 1 {
		cfg.Analysis.Parallelism = DefaultAnalysis.Parallelism
	}

	return &cfg, nil
}

// DBPath returns the full path to the SQLite database.
func DBPath() string {
	return filepath.Join(expandPath(DefaultConfigDir), DefaultDBName)
}

// ConfigDir returns the expanded configuration directory.
func ConfigDir() string {
	return expandPath(DefaultConfigDir)
}
