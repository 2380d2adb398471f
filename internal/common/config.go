package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Server      ServerConfig   `toml:"server"`
	Target      TargetConfig   `toml:"target"`
	Browser     BrowserConfig  `toml:"browser"`
	Harness     HarnessConfig  `toml:"harness"`
	Suites      SuitesConfig   `toml:"suites"`
	Schedule    ScheduleConfig `toml:"schedule"`
	Storage     StorageConfig  `toml:"storage"`
	Report      ReportConfig   `toml:"report"`
	Logging     LoggingConfig  `toml:"logging"`
	WebSocket   WSConfig       `toml:"websocket"`
}

// ServerConfig configures the results server (serve mode only)
type ServerConfig struct {
	Port int    `toml:"port" validate:"gte=0,lte=65535"`
	Host string `toml:"host" validate:"required"`
}

// TargetConfig identifies the pages under observation
type TargetConfig struct {
	BaseURL string `toml:"base_url" validate:"required"` // base URL the demo pages are served from
}

// BrowserConfig configures the shared Chrome allocator
type BrowserConfig struct {
	Headless       bool   `toml:"headless"`
	DisableGPU     bool   `toml:"disable_gpu"`
	NoSandbox      bool   `toml:"no_sandbox"`
	WindowWidth    int    `toml:"window_width" validate:"gt=0"`
	WindowHeight   int    `toml:"window_height" validate:"gt=0"`
	UserAgent      string `toml:"user_agent"`
	StartupTimeout string `toml:"startup_timeout"` // e.g. "30s" - allocator probe timeout
}

// HarnessConfig holds scenario-level timing defaults. Every wait in the
// harness is bounded by one of these.
type HarnessConfig struct {
	NavigationTimeout string `toml:"navigation_timeout"` // e.g. "20s"
	StepTimeout       string `toml:"step_timeout"`       // default per-step bound, e.g. "10s"
	ScenarioTimeout   string `toml:"scenario_timeout"`   // hard bound for a whole scenario
	SignalGrace       string `toml:"signal_grace"`       // quiet period before concluding no more events arrive
	PollInterval      string `toml:"poll_interval"`      // DOM predicate polling interval
	ActionInterval    string `toml:"action_interval"`    // minimum spacing between dispatched primitives
	DragSteps         int    `toml:"drag_steps" validate:"gt=0"`
}

// SuitesConfig configures expectation file loading
type SuitesConfig struct {
	Dir string `toml:"dir"` // directory containing suite expectation files (TOML/YAML)
}

// ScheduleConfig configures cron re-runs in serve mode
type ScheduleConfig struct {
	Enabled bool   `toml:"enabled"`
	Cron    string `toml:"cron"` // cron expression, e.g. "0 */2 * * *"
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration for the run archive
type BadgerConfig struct {
	Path           string `toml:"path"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

// ReportConfig configures failure report generation
type ReportConfig struct {
	Dir         string `toml:"dir"` // directory report artifacts are written to
	PDF         bool   `toml:"pdf"` // also emit a whole-run PDF report
	KeepLastRun int    `toml:"keep_last_run" validate:"gte=0"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // time format for log lines
}

// WSConfig configures the websocket progress broadcast
type WSConfig struct {
	MinLevel         string `toml:"min_level"`         // minimum log level mirrored to clients
	ThrottleInterval string `toml:"throttle_interval"` // e.g. "500ms" - progress event throttle
}

// NewDefaultConfig returns the built-in defaults. File, env and flag values
// layer on top in that order.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8385,
			Host: "localhost",
		},
		Target: TargetConfig{
			BaseURL: "http://localhost:8090",
		},
		Browser: BrowserConfig{
			Headless:       true,
			DisableGPU:     true,
			NoSandbox:      false,
			WindowWidth:    1920,
			WindowHeight:   1080,
			UserAgent:      "Specto-Harness/1.0",
			StartupTimeout: "30s",
		},
		Harness: HarnessConfig{
			NavigationTimeout: "20s",
			StepTimeout:       "10s",
			ScenarioTimeout:   "2m",
			SignalGrace:       "250ms",
			PollInterval:      "100ms",
			ActionInterval:    "50ms",
			DragSteps:         12,
		},
		Suites: SuitesConfig{
			Dir: "./suites",
		},
		Schedule: ScheduleConfig{
			Enabled: false,
			Cron:    "0 * * * *",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/specto",
				ResetOnStartup: false,
			},
		},
		Report: ReportConfig{
			Dir:         "./results",
			PDF:         false,
			KeepLastRun: 20,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
		WebSocket: WSConfig{
			MinLevel:         "info",
			ThrottleInterval: "500ms",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier ones.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration using go-playground/validator plus the
// duration fields, which toml keeps as strings.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	durations := map[string]string{
		"browser.startup_timeout":    c.Browser.StartupTimeout,
		"harness.navigation_timeout": c.Harness.NavigationTimeout,
		"harness.step_timeout":       c.Harness.StepTimeout,
		"harness.scenario_timeout":   c.Harness.ScenarioTimeout,
		"harness.signal_grace":       c.Harness.SignalGrace,
		"harness.poll_interval":      c.Harness.PollInterval,
		"harness.action_interval":    c.Harness.ActionInterval,
		"websocket.throttle_interval": c.WebSocket.ThrottleInterval,
	}
	for key, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %q", key, value)
		}
	}

	return nil
}

// Duration parses a config duration string, falling back to def when the
// value is empty or malformed. Validate has already rejected malformed values
// in loaded configs; the fallback covers hand-built configs in tests.
func Duration(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SPECTO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("SPECTO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("SPECTO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if baseURL := os.Getenv("SPECTO_TARGET_BASE_URL"); baseURL != "" {
		config.Target.BaseURL = baseURL
	}

	if headless := os.Getenv("SPECTO_BROWSER_HEADLESS"); headless != "" {
		config.Browser.Headless = headless == "true" || headless == "1"
	}

	if badgerPath := os.Getenv("SPECTO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if level := os.Getenv("SPECTO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("SPECTO_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string, baseURL string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
	if baseURL != "" {
		config.Target.BaseURL = baseURL
	}
}
