package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// GridConfig controls widget placement.
type GridConfig struct {
	Columns int `yaml:"columns"`
	// Scan is "single" to test one row per free-slot candidate or "full"
	// to test the whole widget height.
	Scan           string `yaml:"scan"`
	PackDuplicates bool   `yaml:"pack_duplicates"`
}

// StoreConfig selects and configures the backing key-value store.
type StoreConfig struct {
	Backend         string `yaml:"backend"`
	Path            string `yaml:"path"`
	MongoURI        string `yaml:"mongo_uri"`
	MongoDatabase   string `yaml:"mongo_database"`
	MongoCollection string `yaml:"mongo_collection"`
	CacheSize       int    `yaml:"cache_size"`
}

// MirrorConfig configures the remote mirror. An empty URL disables it.
type MirrorConfig struct {
	URL             string `yaml:"url"`
	Token           string `yaml:"token"`
	RefreshInterval string `yaml:"refresh_interval"`
	QueueSize       int    `yaml:"queue_size"`
	Timeout         string `yaml:"timeout"`
	// Retries is how many times a failed push is repeated before it is dropped.
	Retries int `yaml:"retries"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// SinkConfig configures the file-backed snapshot endpoint.
type SinkConfig struct {
	Port int    `yaml:"port"`
	File string `yaml:"file"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// ImportConfig controls document import checks.
type ImportConfig struct {
	Strict *bool `yaml:"strict"`
}

// FootprintDef overrides the default size of a widget kind.
type FootprintDef struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// WidgetSeed is one widget of a seed dashboard.
type WidgetSeed struct {
	Type string                 `yaml:"type"`
	Data map[string]interface{} `yaml:"data"`
}

// DashboardConfig is a seed dashboard definition.
type DashboardConfig struct {
	Title           string       `yaml:"title"`
	Icon            string       `yaml:"icon"`
	RefreshInterval string       `yaml:"refresh_interval"`
	Widgets         []WidgetSeed `yaml:"widgets"`
}

// ProfileDef is a named dashboard subset.
type ProfileDef struct {
	Dashboards []string `yaml:"dashboards"`
}

// Config holds the entire YAML configuration.
type Config struct {
	Grid       GridConfig                 `yaml:"grid"`
	Store      StoreConfig                `yaml:"store"`
	Mirror     MirrorConfig               `yaml:"mirror"`
	Server     ServerConfig               `yaml:"server"`
	Sink       SinkConfig                 `yaml:"sink"`
	Log        LogConfig                  `yaml:"log"`
	Import     ImportConfig               `yaml:"import"`
	Kinds      map[string]FootprintDef    `yaml:"kinds"`
	Profiles   map[string]ProfileDef      `yaml:"profiles"`
	Dashboards map[string]DashboardConfig `yaml:"dashboards"`

	dashboardOrder []string
}

// envKeys maps environment variables to override keys.
var envKeys = map[string]string{
	"DASHBOARD_GRID_COLUMNS":    "grid.columns",
	"DASHBOARD_GRID_SCAN":       "grid.scan",
	"DASHBOARD_STORE_BACKEND":   "store.backend",
	"DASHBOARD_STORE_PATH":      "store.path",
	"DASHBOARD_MONGO_URI":       "store.mongo_uri",
	"DASHBOARD_MONGO_DATABASE":  "store.mongo_database",
	"DASHBOARD_MIRROR_URL":      "mirror.url",
	"DASHBOARD_MIRROR_TOKEN":    "mirror.token",
	"DASHBOARD_SERVER_PORT":     "server.port",
	"DASHBOARD_SINK_PORT":       "sink.port",
	"DASHBOARD_SINK_FILE":       "sink.file",
	"DASHBOARD_LOG_LEVEL":       "log.level",
	"DASHBOARD_LOG_DEVELOPMENT": "log.development",
}

// LoadEnvFiles loads .env style files into the process environment. Missing
// files are skipped; variables already set win.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// Load reads a YAML config file, applies DASHBOARD_* environment variables
// and then the given overrides (keys like "store.backend"). An empty path
// starts from the defaults.
func Load(path string, overrides map[string]string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	c, err := loadFromData(data)
	if err != nil {
		return nil, err
	}
	for env, key := range envKeys {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			if err := c.Set(key, v); err != nil {
				return nil, fmt.Errorf("%s: %w", env, err)
			}
		}
	}
	for key, v := range overrides {
		if err := c.Set(key, v); err != nil {
			return nil, err
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFromBytes parses a YAML config from raw bytes (for validation).
func LoadFromBytes(data []byte) (*Config, error) {
	c, err := loadFromData(data)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func loadFromData(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	c.dashboardOrder = parseDashboardKeyOrder(data)
	c.applyDefaults()
	return &c, nil
}

// Default returns a configuration holding only defaults.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Grid.Columns == 0 {
		c.Grid.Columns = 12
	}
	if c.Grid.Scan == "" {
		c.Grid.Scan = "single"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "file"
	}
	if c.Store.Path == "" {
		c.Store.Path = "data"
	}
	if c.Store.MongoDatabase == "" {
		c.Store.MongoDatabase = "dashboard-builder"
	}
	if c.Store.MongoCollection == "" {
		c.Store.MongoCollection = "kv"
	}
	if c.Mirror.RefreshInterval == "" {
		c.Mirror.RefreshInterval = "300"
	}
	if c.Mirror.QueueSize == 0 {
		c.Mirror.QueueSize = 64
	}
	if c.Mirror.Timeout == "" {
		c.Mirror.Timeout = "30s"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Sink.Port == 0 {
		c.Sink.Port = 3001
	}
	if c.Sink.File == "" {
		c.Sink.File = "jsonModel.json"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Set overrides one setting by dotted key.
func (c *Config) Set(key, value string) error {
	atoi := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("%s: %q is not a number", key, value)
		}
		return n, nil
	}
	var err error
	switch key {
	case "grid.columns":
		c.Grid.Columns, err = atoi()
	case "grid.scan":
		c.Grid.Scan = value
	case "store.backend":
		c.Store.Backend = value
	case "store.path":
		c.Store.Path = value
	case "store.mongo_uri":
		c.Store.MongoURI = value
	case "store.mongo_database":
		c.Store.MongoDatabase = value
	case "mirror.url":
		c.Mirror.URL = value
	case "mirror.token":
		c.Mirror.Token = value
	case "server.port":
		c.Server.Port, err = atoi()
	case "sink.port":
		c.Sink.Port, err = atoi()
	case "sink.file":
		c.Sink.File = value
	case "log.level":
		c.Log.Level = value
	case "log.development":
		c.Log.Development, err = strconv.ParseBool(value)
	default:
		return fmt.Errorf("unknown setting '%s'", key)
	}
	return err
}

// Validate rejects settings the application cannot run with.
func (c *Config) Validate() error {
	if c.Grid.Columns <= 0 {
		return fmt.Errorf("grid.columns must be positive, got %d", c.Grid.Columns)
	}
	switch c.Grid.Scan {
	case "single", "full":
	default:
		return fmt.Errorf("grid.scan must be 'single' or 'full', got '%s'", c.Grid.Scan)
	}
	switch c.Store.Backend {
	case "memory", "file":
	case "mongo":
		if c.Store.MongoURI == "" {
			return fmt.Errorf("store.mongo_uri is required for the mongo backend")
		}
	default:
		return fmt.Errorf("unknown store backend '%s'", c.Store.Backend)
	}
	if c.Mirror.Retries < 0 {
		return fmt.Errorf("mirror.retries must not be negative")
	}
	if c.Store.CacheSize < 0 {
		return fmt.Errorf("store.cache_size must not be negative")
	}
	if _, err := c.RefreshEvery(); err != nil {
		return err
	}
	if _, err := c.MirrorTimeout(); err != nil {
		return err
	}
	for kind, fp := range c.Kinds {
		if fp.Width <= 0 || fp.Height <= 0 {
			return fmt.Errorf("kinds.%s: footprint must be positive, got %dx%d", kind, fp.Width, fp.Height)
		}
	}
	for name, p := range c.Profiles {
		for _, d := range p.Dashboards {
			if _, ok := c.Dashboards[d]; !ok {
				return fmt.Errorf("profile '%s' references unknown dashboard '%s'", name, d)
			}
		}
	}
	return nil
}

// FullHeightScan reports whether placement tests the full widget height.
func (c *Config) FullHeightScan() bool {
	return c.Grid.Scan == "full"
}

// StrictImport reports whether imports re-check the layout. Defaults to true.
func (c *Config) StrictImport() bool {
	return c.Import.Strict == nil || *c.Import.Strict
}

// RefreshEvery returns the mirror resync period. refresh_interval is in
// seconds, matching the snapshot's refreshInterval field.
func (c *Config) RefreshEvery() (time.Duration, error) {
	n, err := strconv.Atoi(strings.TrimSpace(c.Mirror.RefreshInterval))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("mirror.refresh_interval must be a number of seconds, got '%s'", c.Mirror.RefreshInterval)
	}
	return time.Duration(n) * time.Second, nil
}

// MirrorTimeout returns the per-request mirror timeout.
func (c *Config) MirrorTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Mirror.Timeout)
	if err != nil {
		return 0, fmt.Errorf("mirror.timeout: %w", err)
	}
	return d, nil
}

// GetDashboards returns seed dashboards, optionally filtered by profile.
func (c *Config) GetDashboards(profile string) (map[string]DashboardConfig, error) {
	if profile == "" {
		return c.Dashboards, nil
	}
	p, ok := c.Profiles[profile]
	if !ok {
		return nil, fmt.Errorf("profile '%s' not defined in config", profile)
	}
	filtered := make(map[string]DashboardConfig)
	nameSet := make(map[string]bool)
	for _, n := range p.Dashboards {
		nameSet[n] = true
	}
	for k, v := range c.Dashboards {
		if nameSet[k] {
			filtered[k] = v
		}
	}
	return filtered, nil
}

// GetDashboardOrder returns seed dashboard keys in the order they appear in a
// profile, or in file order if no profile is specified.
func (c *Config) GetDashboardOrder(profile string) ([]string, error) {
	if profile != "" {
		p, ok := c.Profiles[profile]
		if !ok {
			return nil, fmt.Errorf("profile '%s' not defined in config", profile)
		}
		return p.Dashboards, nil
	}
	if len(c.dashboardOrder) > 0 {
		return c.dashboardOrder, nil
	}
	keys := make([]string, 0, len(c.Dashboards))
	for k := range c.Dashboards {
		keys = append(keys, k)
	}
	return keys, nil
}

// parseDashboardKeyOrder extracts dashboard key ordering from raw YAML.
func parseDashboardKeyOrder(data []byte) []string {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil
	}
	if node.Kind != yaml.DocumentNode || len(node.Content) == 0 {
		return nil
	}
	root := node.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil
	}
	dbNode := findMappingKey(root, "dashboards")
	if dbNode == nil || dbNode.Kind != yaml.MappingNode {
		return nil
	}
	var order []string
	for j := 0; j < len(dbNode.Content)-1; j += 2 {
		order = append(order, dbNode.Content[j].Value)
	}
	return order
}
