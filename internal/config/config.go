package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"timetable/internal/atomicfile"
)

// DefaultDirName is the per-user cache folder that holds every local file.
const DefaultDirName = ".stundenplan_cache"

// PortalConfig describes how the remote calendar is reached.
type PortalConfig struct {
	// Backend selects the fetcher: "http" (form login + goquery) or
	// "browser" (headless Chromium via chromedp).
	Backend string `yaml:"backend" json:"backend"`

	LoginURL    string `yaml:"login_url" json:"login_url"`
	ToolsURL    string `yaml:"tools_url" json:"tools_url"`
	AnchorText  string `yaml:"anchor_text" json:"anchor_text"`
	CalendarURL string `yaml:"calendar_url" json:"calendar_url"`

	UserField string `yaml:"user_field" json:"user_field"`
	PassField string `yaml:"pass_field" json:"pass_field"`

	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// Timeout returns the bound for a whole remote fetch.
func (p PortalConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// ReachabilityConfig lists the hosts probed to decide whether we are online.
type ReachabilityConfig struct {
	// Hosts are host:port pairs tried in order.
	Hosts     []string `yaml:"hosts" json:"hosts"`
	TimeoutMS int      `yaml:"timeout_ms" json:"timeout_ms"`
}

// Timeout returns the per-host dial timeout.
func (r ReachabilityConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutMS) * time.Millisecond
}

// GridConfig overrides the pixel geometry of the week grid.
type GridConfig struct {
	HeaderHeight int `yaml:"header_height" json:"header_height"`
	RowHeight    int `yaml:"row_height" json:"row_height"`
	ColumnWidth  int `yaml:"column_width" json:"column_width"`
	Gutter       int `yaml:"gutter" json:"gutter"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the local API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// DataDir holds the credential file, cached calendars and overrides.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// Listen is the HTTP listen address for the local API.
	Listen string `yaml:"listen" json:"listen"`

	// Secret keys the reversible password copy. Generated on first load.
	Secret string `yaml:"secret" json:"-"`

	// RefreshCron is the cron schedule of the background refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	Portal       PortalConfig       `yaml:"portal" json:"portal"`
	Reachability ReachabilityConfig `yaml:"reachability" json:"reachability"`
	Grid         GridConfig         `yaml:"grid" json:"grid"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultPath returns ~/.stundenplan_cache/config.yaml, or a relative
// fallback when the home directory is unknown.
func DefaultPath() string {
	return filepath.Join(defaultDataDir(), "config.yaml")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return DefaultDirName
	}
	return filepath.Join(home, DefaultDirName)
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.DataDir == "" {
		c.DataDir = defaultDataDir()
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/30 * * * *"
	}

	p := &c.Portal
	switch p.Backend {
	case "http", "browser":
	default:
		p.Backend = "http"
	}
	if p.LoginURL == "" {
		p.LoginURL = "https://www.hspv.nrw.de/anmelden"
	}
	if p.ToolsURL == "" {
		p.ToolsURL = "https://www.hspv.nrw.de/webtools"
	}
	if p.AnchorText == "" {
		p.AnchorText = "Lehrveranstaltungsplan"
	}
	if p.CalendarURL == "" {
		p.CalendarURL = "https://mvc.antrago.hspv.nrw.de/teilnehmerportal/Member/Stundenplan/ExportCalendar/download.ics?quelle=Veranstaltung&dataId=-1"
	}
	if p.UserField == "" {
		p.UserField = "user"
	}
	if p.PassField == "" {
		p.PassField = "pass"
	}
	if p.TimeoutSeconds <= 0 {
		p.TimeoutSeconds = 30
	}

	r := &c.Reachability
	if len(r.Hosts) == 0 {
		r.Hosts = []string{"google.de:80", "amazon.de:80", "apple.com:80", "github.com:80"}
	}
	if r.TimeoutMS <= 0 {
		r.TimeoutMS = 1000
	}

	g := &c.Grid
	if g.HeaderHeight <= 0 {
		g.HeaderHeight = 30
	}
	if g.RowHeight <= 0 {
		g.RowHeight = 55
	}
	if g.ColumnWidth <= 0 {
		g.ColumnWidth = 90
	}
	if g.Gutter <= 0 {
		g.Gutter = 50
	}
}

// ApplyEnv overlays TIMETABLE_* variables looked up through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("TIMETABLE_SECRET"); v != "" {
		c.Secret = v
	}
	if v := getenv("TIMETABLE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := getenv("TIMETABLE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config with a freshly generated
//     secret is written with 0600 perms and returned.
//   - If the file exists it is unmarshalled and normalized; a missing secret
//     is generated and the file is rewritten so the secret stays stable.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if cfg.Secret, err = newSecret(); err != nil {
				return nil, err
			}
			if err := Save(path, cfg); err != nil {
				// Return cfg with the error so the caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	if cfg.Secret == "" {
		if cfg.Secret, err = newSecret(); err != nil {
			return nil, err
		}
		if err := Save(path, &cfg); err != nil {
			return &cfg, err
		}
	}

	return &cfg, nil
}

// Save writes cfg to path atomically with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return atomicfile.WriteFile(path, data, 0o600)
}

func newSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// CredentialsPath is the credential file inside DataDir.
func (c *Config) CredentialsPath() string {
	return filepath.Join(c.DataDir, "credentials.yaml")
}

// OverridesPath is the per-user display override file inside DataDir.
func (c *Config) OverridesPath() string {
	return filepath.Join(c.DataDir, "userconf.yaml")
}
