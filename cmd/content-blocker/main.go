package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bnema/webview-content-blocker/internal/blocker"
	"github.com/bnema/webview-content-blocker/internal/logging"
	"github.com/bnema/webview-content-blocker/internal/models"
)

const defaultConfigPath = "./configs/content_blocker.toml"

var (
	cfgFile string
	cfg     models.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "content-blocker",
	Short: "Rule-based content blocking for embedded web views",
	Long: `A content blocker for embedded web views. It evaluates every request of a
page against an ordered list of WebKit-style rules and blocks it, hides page
elements or upgrades it to https.`,
	SilenceUsage: true,
}

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Compile a rule file and report the first error",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of a rule payload",
	RunE:  runSchema,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	RunE:  runInit,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: "+defaultConfigPath+")")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(checkCmd, validateCmd, schemaCmd, importCmd, storeCmd, serveCmd, initCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("content_blocker")
		viper.SetConfigType("toml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
	}

	defaults := models.DefaultConfig()
	viper.SetDefault("http.timeout", defaults.HTTP.Timeout)
	viper.SetDefault("http.retries", defaults.HTTP.Retries)
	viper.SetDefault("http.user_agent", defaults.HTTP.UserAgent)
	viper.SetDefault("engine.top_url_timeout", defaults.Engine.TopURLTimeout)
	viper.SetDefault("engine.hide_delay", defaults.Engine.HideDelay)
	viper.SetDefault("engine.classify_rps", defaults.Engine.ClassifyRPS)
	viper.SetDefault("bridge.stage", defaults.Bridge.Stage)
	viper.SetDefault("bridge.concurrency", defaults.Bridge.Concurrency)
	viper.SetDefault("bridge.devtools_url", "")
	viper.SetDefault("bridge.target", "")
	viper.SetDefault("api.addr", defaults.API.Addr)
	viper.SetDefault("api.enabled", defaults.API.Enabled)
	viper.SetDefault("api.allow_origins", []string{})
	viper.SetDefault("store.path", defaults.Store.Path)
	viper.SetDefault("rules.file", defaults.Rules.File)
	viper.SetDefault("rules.watch", defaults.Rules.Watch)
	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("log.format", defaults.Log.Format)

	viper.SetEnvPrefix("CONTENT_BLOCKER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing config: %v\n", err)
	}
	if !viper.IsSet("lists") {
		cfg.Lists = defaults.Lists
	}
}

// newLogger builds the process logger from the log section
func newLogger() zerolog.Logger {
	return logging.New(logging.ConfigFrom(cfg.Log.Level, cfg.Log.Format))
}

// engineOptions maps the engine section to handler options
func engineOptions(fetcher blocker.NetworkFetcher) blocker.Options {
	return blocker.Options{
		Fetcher:       fetcher,
		TopURLTimeout: cfg.Engine.TopURLTimeout,
		HideDelay:     cfg.Engine.HideDelay,
		ClassifyRPS:   cfg.Engine.ClassifyRPS,
		ProbeTimeout:  cfg.HTTP.Timeout,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	defs, err := models.LoadRuleFile(args[0])
	if err != nil {
		return err
	}
	rules, err := blocker.CompileRules(defs)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	counts := make(map[models.ActionType]int)
	for _, r := range rules {
		counts[r.Action.Type]++
	}
	fmt.Println(theme.Success.Render(fmt.Sprintf("%s: %d rules OK", args[0], len(rules))))
	for _, t := range []models.ActionType{models.ActionBlock, models.ActionCSSDisplayNone, models.ActionMakeHTTPS} {
		fmt.Printf("  %s %d\n", theme.Label.Render(string(t)), counts[t])
	}
	return nil
}

func runSchema(cmd *cobra.Command, args []string) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(models.RuleSchema())
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := defaultConfigPath
	if cfgFile != "" {
		configPath = cfgFile
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s", configPath)
	}

	defaultConfig := `# Content blocker configuration

# Outbound HTTP: HEAD classification, https upgrades and list downloads
[http]
timeout = "30s"
retries = 3
user_agent = "webview-content-blocker/1.0"

# Rule evaluation
[engine]
top_url_timeout = "2s"
hide_delay = "800ms"
# HEAD probes per second, 0 means unlimited
classify_rps = 0

# Chrome DevTools bridge, disabled while devtools_url is empty
[bridge]
devtools_url = ""
target = ""
# "request" classifies with a HEAD probe, "response" uses the real content type
stage = "request"
concurrency = 16

# Control API
[api]
addr = "127.0.0.1:8741"
enabled = true
# origins allowed to call the API from a page, empty disables CORS
allow_origins = []

# Named rule sets
[store]
path = "./data/rules.db"

# Rule payload loaded at startup when no rule set is active
[rules]
file = "./configs/rules.json"
watch = true

[log]
level = "info"
format = "console"

# Filter lists used by the import command
# Set enabled = false to skip a list

[[lists]]
name = "easylist"
url = "https://easylist.to/easylist/easylist.txt"
enabled = true

[[lists]]
name = "easyprivacy"
url = "https://easylist.to/easylist/easyprivacy.txt"
enabled = true

[[lists]]
name = "ublock-filters"
url = "https://ublockorigin.github.io/uAssets/filters/filters.txt"
enabled = false

[[lists]]
name = "peter-lowe"
url = "https://pgl.yoyo.org/adservers/serverlist.php?hostformat=hosts&showintro=1&mimetype=plaintext"
enabled = false
`

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0644); err != nil {
		return err
	}

	fmt.Printf("Created config file: %s\n", configPath)
	return nil
}

// writeRules writes defs as a JSON payload, creating parent directories
func writeRules(path string, defs []models.RuleDefinition) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return models.EncodeRuleDefinitions(f, defs)
}
