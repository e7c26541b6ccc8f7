package models

import "time"

// Config represents the main configuration
type Config struct {
	HTTP   HTTPConfig   `mapstructure:"http"`
	Engine EngineConfig `mapstructure:"engine"`
	Bridge BridgeConfig `mapstructure:"bridge"`
	API    APIConfig    `mapstructure:"api"`
	Store  StoreConfig  `mapstructure:"store"`
	Rules  RulesConfig  `mapstructure:"rules"`
	Log    LogConfig    `mapstructure:"log"`
	Lists  []FilterList `mapstructure:"lists"`
}

// HTTPConfig contains HTTP client settings
type HTTPConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	Retries   int           `mapstructure:"retries"`
	UserAgent string        `mapstructure:"user_agent"`
}

// EngineConfig tunes rule evaluation
type EngineConfig struct {
	TopURLTimeout time.Duration `mapstructure:"top_url_timeout"`
	HideDelay     time.Duration `mapstructure:"hide_delay"`
	ClassifyRPS   float64       `mapstructure:"classify_rps"`
}

// BridgeConfig configures the DevTools interceptor
type BridgeConfig struct {
	DevToolsURL string `mapstructure:"devtools_url"`
	Target      string `mapstructure:"target"`
	Stage       string `mapstructure:"stage"`
	Concurrency int64  `mapstructure:"concurrency"`
}

// APIConfig configures the control server
type APIConfig struct {
	Addr         string   `mapstructure:"addr"`
	Enabled      bool     `mapstructure:"enabled"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// StoreConfig configures the rule-set database
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// RulesConfig points at the rule payload loaded at startup
type RulesConfig struct {
	File  string `mapstructure:"file"`
	Watch bool   `mapstructure:"watch"`
}

// LogConfig configures the logger
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// FilterList represents a single filter list configuration
type FilterList struct {
	Name    string `mapstructure:"name"`
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

// Bridge stages
const (
	StageRequest  = "request"
	StageResponse = "response"
)

// DefaultConfig returns the configuration used when no file is present
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Timeout:   30 * time.Second,
			Retries:   3,
			UserAgent: "webview-content-blocker/1.0",
		},
		Engine: EngineConfig{
			TopURLTimeout: 2 * time.Second,
			HideDelay:     800 * time.Millisecond,
		},
		Bridge: BridgeConfig{
			Stage:       StageRequest,
			Concurrency: 16,
		},
		API: APIConfig{
			Addr:    "127.0.0.1:8741",
			Enabled: true,
		},
		Store: StoreConfig{
			Path: "./data/rules.db",
		},
		Rules: RulesConfig{
			File:  "./configs/rules.json",
			Watch: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Lists: []FilterList{
			{Name: "easylist", URL: "https://easylist.to/easylist/easylist.txt", Enabled: true},
			{Name: "easyprivacy", URL: "https://easylist.to/easylist/easyprivacy.txt", Enabled: true},
			{Name: "peter-lowe", URL: "https://pgl.yoyo.org/adservers/serverlist.php?hostformat=hosts&showintro=1&mimetype=plaintext", Enabled: false},
		},
	}
}

// EnabledLists returns only enabled filter lists
func (c *Config) EnabledLists() []FilterList {
	var enabled []FilterList
	for _, l := range c.Lists {
		if l.Enabled {
			enabled = append(enabled, l)
		}
	}
	return enabled
}
