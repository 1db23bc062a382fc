package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
)

//go:embed stations.yaml
var defaultStationsYAML []byte

type Config struct {
	Matcher   MatcherConfig
	Capture   CaptureConfig
	Detection DetectionConfig
	Web       WebConfig
	LogLevel  string
	Stations  []StationConfig
}

type MatcherConfig struct {
	URL        string        // defaults to http://localhost:8000
	EntryPath  string        // defaults to /entry_match
	ExitPath   string        // defaults to /exit_match
	Timeout    time.Duration // per-request timeout
	CaptureDir string        // save raw responses here (optional)
}

type CaptureConfig struct {
	TickInterval time.Duration
	SettleDelay  time.Duration
	AutoStart    bool // default for stations that don't set auto_start
}

type DetectionConfig struct {
	CascadePath string // cascade XML file or directory containing it
	MinFaceSize int    // smallest face edge in pixels
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // extra CORS origins besides localhost
}

// StationConfig is one entry of the stations file.
type StationConfig struct {
	Name      string `yaml:"name"`
	Direction string `yaml:"direction"`
	URL       string `yaml:"url"`
	AutoStart *bool  `yaml:"auto_start,omitempty"`
}

type stationsFile struct {
	Stations []StationConfig `yaml:"stations"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envDuration reads a duration such as "1s" or "500ms". Returns the default
// value if the env var is unset, empty, invalid, or negative.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	return defaultVal
}

// envBool reads a boolean ("1", "true", "yes", ...). Returns the default
// value if the env var is unset, empty, or invalid.
func envBool(key string, defaultVal bool) bool {
	s := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch s {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultVal
	}
}

// envList reads a comma-separated list, dropping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// Load reads configuration from the environment. Stations come from
// STATIONS_FILE when set, otherwise from the embedded defaults.
func Load() (*Config, error) {
	stations, err := loadStations(os.Getenv("STATIONS_FILE"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Matcher: MatcherConfig{
			URL:        envString("MATCHER_URL", constants.DefaultMatcherURL),
			EntryPath:  envString("MATCHER_ENTRY_PATH", constants.DefaultEntryMatchPath),
			ExitPath:   envString("MATCHER_EXIT_PATH", constants.DefaultExitMatchPath),
			Timeout:    envDuration("MATCHER_TIMEOUT", constants.DefaultMatchTimeout),
			CaptureDir: os.Getenv("MATCHER_CAPTURE_DIR"),
		},
		Capture: CaptureConfig{
			TickInterval: envDuration("TICK_INTERVAL", constants.DefaultTickInterval),
			SettleDelay:  envDuration("SETTLE_DELAY", constants.DefaultSettleDelay),
			AutoStart:    envBool("AUTO_START", false),
		},
		Detection: DetectionConfig{
			CascadePath: os.Getenv("CASCADE_PATH"),
			MinFaceSize: envInt("MIN_FACE_SIZE", constants.DefaultMinFaceSize),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", constants.DefaultWebHost),
			Port:           envInt("WEB_PORT", constants.DefaultWebPort),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		LogLevel: envString("LOG_LEVEL", "info"),
		Stations: stations,
	}, nil
}

func loadStations(path string) ([]StationConfig, error) {
	data := defaultStationsYAML
	source := "embedded defaults"
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read stations file: %w", err)
		}
		data = b
		source = path
	}

	var file stationsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse stations from %s: %w", source, err)
	}
	return file.Stations, nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.Matcher.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("MATCHER_URL must be an http(s) URL, got %q", c.Matcher.URL))
	}
	if c.Matcher.Timeout <= 0 {
		errs = append(errs, errors.New("MATCHER_TIMEOUT must be positive"))
	}
	if c.Capture.TickInterval <= 0 {
		errs = append(errs, errors.New("TICK_INTERVAL must be positive"))
	}
	if len(c.Stations) == 0 {
		errs = append(errs, errors.New("at least one station is required"))
	}

	seen := make(map[string]bool, len(c.Stations))
	for i, s := range c.Stations {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("station %d: name is required", i))
			continue
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("station %s: duplicate name", s.Name))
		}
		seen[s.Name] = true
		if _, err := attendance.ParseDirection(s.Direction); err != nil {
			errs = append(errs, fmt.Errorf("station %s: %w", s.Name, err))
		}
		if s.URL == "" {
			errs = append(errs, fmt.Errorf("station %s: url is required", s.Name))
		}
	}

	return errors.Join(errs...)
}

// StationAutoStart returns whether the station's loop starts enabled.
func (c *Config) StationAutoStart(s StationConfig) bool {
	if s.AutoStart != nil {
		return *s.AutoStart
	}
	return c.Capture.AutoStart
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
