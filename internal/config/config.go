package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"planningsprite/internal/availability"
	"planningsprite/internal/gemini"
	"planningsprite/internal/grid"
	"planningsprite/internal/ics"
	"planningsprite/internal/store"
)

// Environment variables that override the file.
const (
	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvListen       = "PLANNINGSPRITE_LISTEN"
	EnvLogLevel     = "PLANNINGSPRITE_LOG_LEVEL"
)

// SubscriptionConfig describes a single ICS subscription source.
type SubscriptionConfig struct {
	// ID tags the imported events so a refresh can replace them.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// Subscription converts the entry for the fetcher.
func (s SubscriptionConfig) Subscription() ics.Subscription {
	return ics.Subscription{ID: s.ID, URL: s.URL}
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

type GridConfig struct {
	PixelsPerHour    float64 `yaml:"pixels_per_hour" json:"pixels_per_hour"`
	SnapMinutes      int     `yaml:"snap_minutes" json:"snap_minutes"`
	MinVisibleHeight float64 `yaml:"min_visible_height" json:"min_visible_height"`
}

// AvailabilityConfig is the initial weekly template. Keys are lower-case
// English weekday names; hours are "HH:00-HH:00" ranges.
type AvailabilityConfig struct {
	Hours map[string][]string `yaml:"hours" json:"hours"`
	Caps  map[string]float64  `yaml:"caps" json:"caps"`
}

type GeminiConfig struct {
	APIKey   string `yaml:"api_key" json:"-"`
	Model    string `yaml:"model" json:"model"`
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// TimeoutSeconds bounds one generateContent call.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// ExportConfig controls the periodic ICS snapshot. An empty Path disables it.
type ExportConfig struct {
	Path string `yaml:"path" json:"path"`
	Cron string `yaml:"cron" json:"cron"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used for day boundaries and zone-less
	// planner timestamps (e.g. "Asia/Taipei").
	Timezone string `yaml:"timezone" json:"timezone"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// HorizonDays is how many days ahead the planner may place work.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	Grid         GridConfig             `yaml:"grid" json:"grid"`
	Recurrence   store.RecurrenceCounts `yaml:"recurrence" json:"recurrence"`
	Availability AvailabilityConfig     `yaml:"availability" json:"availability"`
	Gemini       GeminiConfig           `yaml:"gemini" json:"gemini"`

	// RefreshCron is the cron schedule for subscription refresh.
	RefreshCron   string               `yaml:"refresh" json:"refresh"`
	CacheDir      string               `yaml:"cache_dir" json:"cache_dir"`
	Subscriptions []SubscriptionConfig `yaml:"subscriptions" json:"subscriptions"`

	Export ExportConfig `yaml:"export" json:"export"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func defaultAvailability() AvailabilityConfig {
	def := availability.Default()
	out := AvailabilityConfig{Hours: map[string][]string{}, Caps: map[string]float64{}}
	for name, day := range weekdayNames {
		if rs := def.CompressToRanges(day); len(rs) > 0 {
			strs := make([]string, len(rs))
			for i, r := range rs {
				strs[i] = r.String()
			}
			out.Hours[name] = strs
		}
		out.Caps[name] = def.Cap(day)
	}
	return out
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "Local",
		LogLevel:    "info",
		HorizonDays: 7,
		Grid: GridConfig{
			PixelsPerHour:    grid.DefaultPixelsPerHour,
			SnapMinutes:      grid.DefaultSnapMinutes,
			MinVisibleHeight: grid.DefaultMinVisibleHeight,
		},
		Recurrence:    store.DefaultRecurrenceCounts(),
		Availability:  defaultAvailability(),
		Gemini:        GeminiConfig{Model: gemini.DefaultModel, Endpoint: gemini.DefaultEndpoint, TimeoutSeconds: 90},
		RefreshCron:   "*/15 * * * *",
		Subscriptions: []SubscriptionConfig{},
		Export:        ExportConfig{Cron: "0 * * * *"},
	}
}

// Normalize fills in missing/zero values so partially-filled files still
// behave.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = def.HorizonDays
	}
	if c.Grid.PixelsPerHour <= 0 {
		c.Grid.PixelsPerHour = def.Grid.PixelsPerHour
	}
	if c.Grid.SnapMinutes <= 0 {
		c.Grid.SnapMinutes = def.Grid.SnapMinutes
	}
	if c.Grid.MinVisibleHeight <= 0 {
		c.Grid.MinVisibleHeight = def.Grid.MinVisibleHeight
	}
	if c.Recurrence.Daily <= 0 {
		c.Recurrence.Daily = def.Recurrence.Daily
	}
	if c.Recurrence.Weekly <= 0 {
		c.Recurrence.Weekly = def.Recurrence.Weekly
	}
	if c.Recurrence.Monthly <= 0 {
		c.Recurrence.Monthly = def.Recurrence.Monthly
	}
	// A template with no hours and no caps at all is treated as unset.
	if len(c.Availability.Hours) == 0 && len(c.Availability.Caps) == 0 {
		c.Availability = def.Availability
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = def.Gemini.Model
	}
	if c.Gemini.Endpoint == "" {
		c.Gemini.Endpoint = def.Gemini.Endpoint
	}
	if c.Gemini.TimeoutSeconds <= 0 {
		c.Gemini.TimeoutSeconds = def.Gemini.TimeoutSeconds
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.Subscriptions == nil {
		c.Subscriptions = []SubscriptionConfig{}
	}
	if c.Export.Cron == "" {
		c.Export.Cron = def.Export.Cron
	}
}

// Validate checks values Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Constraints(); err != nil {
		return err
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.RefreshCron); err != nil {
		return fmt.Errorf("refresh %q: %w", c.RefreshCron, err)
	}
	if _, err := parser.Parse(c.Export.Cron); err != nil {
		return fmt.Errorf("export.cron %q: %w", c.Export.Cron, err)
	}
	seen := make(map[string]bool, len(c.Subscriptions))
	for i, s := range c.Subscriptions {
		if s.ID == "" || s.URL == "" {
			return fmt.Errorf("subscriptions[%d]: id and url are required", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("subscriptions[%d]: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Constraints turns the availability section into the weekly template.
func (c *Config) Constraints() (availability.Constraints, error) {
	hours := make(map[time.Weekday][]availability.Range)
	for name, strs := range c.Availability.Hours {
		day, ok := weekdayNames[strings.ToLower(name)]
		if !ok {
			return availability.Constraints{}, fmt.Errorf("availability.hours: unknown weekday %q", name)
		}
		for _, s := range strs {
			r, err := availability.ParseRange(s)
			if err != nil {
				return availability.Constraints{}, fmt.Errorf("availability.hours.%s: %w", name, err)
			}
			hours[day] = append(hours[day], r)
		}
	}
	caps := make(map[time.Weekday]float64)
	for name, v := range c.Availability.Caps {
		day, ok := weekdayNames[strings.ToLower(name)]
		if !ok {
			return availability.Constraints{}, fmt.Errorf("availability.caps: unknown weekday %q", name)
		}
		caps[day] = v
	}
	return availability.FromRanges(hours, caps)
}

// GridConfig returns the geometry in the configured zone.
func (c *Config) GridConfig() (grid.Config, error) {
	loc, err := c.Location()
	if err != nil {
		return grid.Config{}, err
	}
	gc := grid.Config{
		PixelsPerHour:    c.Grid.PixelsPerHour,
		SnapMinutes:      c.Grid.SnapMinutes,
		MinVisibleHeight: c.Grid.MinVisibleHeight,
		Location:         loc,
	}
	gc.Normalize()
	return gc, nil
}

// LoadEnv reads .env files (missing files are ignored) and applies the
// environment overrides to c.
func (c *Config) LoadEnv(files ...string) {
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
	if len(files) == 0 {
		_ = godotenv.Load()
	}
	if v := os.Getenv(EnvGeminiAPIKey); v != "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is read and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Return cfg anyway so the caller can run without a file.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
// The API key is never written; it belongs in the environment.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()
	out := *cfg
	out.Gemini.APIKey = ""

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(&out)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".planningsprite-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
