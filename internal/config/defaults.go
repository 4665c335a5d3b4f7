// Package config provides configuration loading and defaults for pagelift.
package config

// DefaultConfigDir is the default location for pagelift configuration.
const DefaultConfigDir = "~/.config/pagelift"

// DefaultDBName is the filename for the SQLite database.
const DefaultDBName = "pagelift.db"

// DefaultConfigFile is the filename for the YAML config.
const DefaultConfigFile = "config.yaml"

// DefaultAnalysis holds the default analysis-window settings.
var DefaultAnalysis = Analysis{
	HoursBack:   24,
	Parallelism: 4,
}

// DefaultWarehouse holds the default ClickHouse settings. Publishing stays
// off until an address is configured.
var DefaultWarehouse = Warehouse{
	Enabled:  false,
	Addr:     "localhost:9000",
	Database: "pagelift",
	Username: "default",
}

// DefaultOutput holds the default output preferences.
var DefaultOutput = Output{
	Color: true,
	Width: 80,
}
