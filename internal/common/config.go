package common

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Instance    InstanceConfig    `toml:"instance"`
	Credentials CredentialsConfig `toml:"credentials"`
	Paths       PathsConfig       `toml:"paths"`
	Run         RunConfig         `toml:"run"`
	Browser     BrowserConfig     `toml:"browser"`
	Logging     LoggingConfig     `toml:"logging"`

	unresolved []string // {NAME} references with no value, see replacement.go
}

// InstanceConfig identifies the target system
type InstanceConfig struct {
	URL               string `toml:"url" validate:"required,url"`             // INSTANCE_URL
	ContentRecordPath string `toml:"content_record_path" validate:"required"` // CONTENT_RECORD_PATH, e.g. "/Content/12/34"
}

// CredentialsConfig holds the login used by the session establisher.
// Only commands that log in require it, see ValidateForLogin.
type CredentialsConfig struct {
	Username string `toml:"username" validate:"required"` // SYS_ADMIN_USERNAME
	Password string `toml:"password" validate:"required"` // PASSWORD
}

// PathsConfig holds filesystem locations, relative to the working directory
type PathsConfig struct {
	AuthState  string `toml:"auth_state" validate:"required"`  // Session credential artifact (JSON)
	TestFiles  string `toml:"test_files" validate:"required"`  // Directory of files to upload
	ResultsDir string `toml:"results_dir" validate:"required"` // Report output directory
	ReportFile string `toml:"report_file" validate:"required"` // Report file name inside ResultsDir
}

// RunConfig controls the attachment run
type RunConfig struct {
	TimingsPerFile int `toml:"timings_per_file" validate:"min=1"` // Uploads per file
}

// BrowserConfig controls the chromedp allocator
type BrowserConfig struct {
	Headless      bool   `toml:"headless"`
	NoSandbox     bool   `toml:"no_sandbox"`
	ExecPath      string `toml:"exec_path"`      // Optional Chrome binary, chromedp finds one when empty
	ActionTimeout string `toml:"action_timeout"` // e.g. "30s" - bound for every blocking browser action
	WindowWidth   int    `toml:"window_width" validate:"min=0"`
	WindowHeight  int    `toml:"window_height" validate:"min=0"`
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=trace debug info warn error"` // "trace", "debug", "info", "warn", "error"
	Output []string `toml:"output"`                                             // "stdout", "file"
}

// NewDefaultConfig returns the configuration used when no file or environment value is set
func NewDefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			AuthState:  ".auth/sysAdmin.json",
			TestFiles:  "testFiles",
			ResultsDir: "results",
			ReportFile: "timings.csv",
		},
		Run: RunConfig{
			TimingsPerFile: 1,
		},
		Browser: BrowserConfig{
			Headless:      true,
			NoSandbox:     false,
			ActionTimeout: "30s",
			WindowWidth:   1920,
			WindowHeight:  1080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration with priority: default -> .env -> file1 -> file2 -> ... -> env
// Later files override earlier files. {NAME} references are then expanded from the
// environment. CLI flags are applied afterwards by the caller.
func LoadFromFiles(paths ...string) (*Config, error) {
	// Populate the process environment from .env when present, never overriding real variables
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

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

	unresolved, err := ReplaceInStruct(config, os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("failed to expand config references: %w", err)
	}
	config.unresolved = unresolved

	return config, nil
}

// UnresolvedReferences lists the {NAME} references left in the configuration
func (c *Config) UnresolvedReferences() []string {
	return c.unresolved
}

func applyEnvOverrides(config *Config) {
	// Target and credentials (unprefixed names)
	if instanceURL := os.Getenv("INSTANCE_URL"); instanceURL != "" {
		config.Instance.URL = instanceURL
	}
	if recordPath := os.Getenv("CONTENT_RECORD_PATH"); recordPath != "" {
		config.Instance.ContentRecordPath = recordPath
	}
	if username := os.Getenv("SYS_ADMIN_USERNAME"); username != "" {
		config.Credentials.Username = username
	}
	if password := os.Getenv("PASSWORD"); password != "" {
		config.Credentials.Password = password
	}

	// Paths
	if authState := os.Getenv("ATTACHTIMER_AUTH_STATE"); authState != "" {
		config.Paths.AuthState = authState
	}
	if testFiles := os.Getenv("ATTACHTIMER_TEST_FILES"); testFiles != "" {
		config.Paths.TestFiles = testFiles
	}
	if resultsDir := os.Getenv("ATTACHTIMER_RESULTS_DIR"); resultsDir != "" {
		config.Paths.ResultsDir = resultsDir
	}

	// Run
	if timings := os.Getenv("ATTACHTIMER_TIMINGS_PER_FILE"); timings != "" {
		if n, err := strconv.Atoi(timings); err == nil {
			config.Run.TimingsPerFile = n
		}
	}

	// Browser
	if headless := os.Getenv("ATTACHTIMER_HEADLESS"); headless != "" {
		if h, err := strconv.ParseBool(headless); err == nil {
			config.Browser.Headless = h
		}
	}
	if noSandbox := os.Getenv("ATTACHTIMER_NO_SANDBOX"); noSandbox != "" {
		if ns, err := strconv.ParseBool(noSandbox); err == nil {
			config.Browser.NoSandbox = ns
		}
	}
	if timeout := os.Getenv("ATTACHTIMER_ACTION_TIMEOUT"); timeout != "" {
		config.Browser.ActionTimeout = timeout
	}

	// Logging
	if level := os.Getenv("ATTACHTIMER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("ATTACHTIMER_LOG_OUTPUT"); output != "" {
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

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, timingsPerFile int, headless *bool) {
	if timingsPerFile > 0 {
		config.Run.TimingsPerFile = timingsPerFile
	}
	if headless != nil {
		config.Browser.Headless = *headless
	}
}

// Validate checks the configuration with go-playground/validator tags.
// Credentials are not checked here.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.StructExcept(c, "Credentials"); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := c.ActionTimeout(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ValidateForLogin checks the credentials needed to establish a session
func (c *Config) ValidateForLogin() error {
	if err := validator.New().Struct(c.Credentials); err != nil {
		return fmt.Errorf("invalid credentials configuration: %w", err)
	}
	return nil
}

// ActionTimeout parses Browser.ActionTimeout
func (c *Config) ActionTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Browser.ActionTimeout)
	if err != nil {
		return 0, fmt.Errorf("browser.action_timeout %q: %w", c.Browser.ActionTimeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("browser.action_timeout must be positive, got %s", d)
	}
	return d, nil
}

// RecordEditPath is the record-edit route, relative to the instance URL
func (c *Config) RecordEditPath() string {
	return strings.TrimRight(c.Instance.ContentRecordPath, "/") + "/Edit"
}

// SaveAttachmentsPath is the URL fragment identifying attachment uploads
func (c *Config) SaveAttachmentsPath() string {
	return strings.TrimRight(c.Instance.ContentRecordPath, "/") + "/SaveAttachments"
}

// ResolveURL joins a route onto the instance URL the way a browser resolves a relative link
func (c *Config) ResolveURL(route string) (string, error) {
	base, err := url.Parse(c.Instance.URL)
	if err != nil {
		return "", fmt.Errorf("failed to parse instance url: %w", err)
	}
	ref, err := url.Parse(route)
	if err != nil {
		return "", fmt.Errorf("failed to parse route %s: %w", route, err)
	}
	return base.ResolveReference(ref).String(), nil
}
