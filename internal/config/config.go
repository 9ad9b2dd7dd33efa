// Package config provides layered configuration loading.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Transport modes.
const (
	TransportLive    = "live"
	TransportFixture = "fixture"
)

// Config holds the resolved configuration.
type Config struct {
	// Transport settings
	Transport        string        `json:"transport" validate:"oneof=live fixture"`
	RequestTimeout   time.Duration `json:"request_timeout" validate:"gt=0"`
	ResourceTimeout  time.Duration `json:"resource_timeout" validate:"gt=0"`
	FixturesDir      string        `json:"fixtures_dir,omitempty" validate:"required_if=Transport fixture"`
	FixturesManifest string        `json:"fixtures_manifest,omitempty"`
	CircuitBreaker   bool          `json:"circuit_breaker"`
	StateDir         string        `json:"state_dir,omitempty"`
	UserAgent        string        `json:"user_agent,omitempty"`

	// Circuit breaker tuning; zero keeps the breaker's default.
	CircuitFailureThreshold int           `json:"circuit_failure_threshold,omitempty" validate:"gte=0"`
	CircuitSuccessThreshold int           `json:"circuit_success_threshold,omitempty" validate:"gte=0"`
	CircuitOpenTimeout      time.Duration `json:"circuit_open_timeout,omitempty" validate:"gte=0"`
	CircuitHalfOpenRequests int           `json:"circuit_half_open_requests,omitempty" validate:"gte=0"`

	// Credential settings
	KeyringService string   `json:"keyring_service" validate:"required"`
	TokenURL       string   `json:"token_url,omitempty" validate:"omitempty,url"`
	ClientID       string   `json:"client_id,omitempty"`
	ClientSecret   string   `json:"-"`
	Scopes         []string `json:"scopes,omitempty"`

	// Download settings
	DownloadDir string `json:"download_dir,omitempty"`

	// Output settings
	Format  string `json:"format" validate:"oneof=auto json text quiet"`
	Verbose *int   `json:"verbose,omitempty" validate:"omitempty,min=0,max=2"`

	// Sources tracks where each value came from.
	Sources map[string]string `json:"-"`
}

// Source indicates where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceSystem  Source = "system"
	SourceGlobal  Source = "global"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

// FlagOverrides holds command-line flag values. Zero values are ignored.
type FlagOverrides struct {
	Transport       string
	FixturesDir     string
	DownloadDir     string
	Format          string
	RequestTimeout  time.Duration
	ResourceTimeout time.Duration
	CircuitBreaker  *bool
	Verbose         *int
}

// Warnings receives notices about skipped config files and values.
var Warnings io.Writer = os.Stderr

// systemConfigPath is a variable so tests can point it elsewhere.
var systemConfigPath = "/etc/netkit/config.json"

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Transport:       TransportLive,
		RequestTimeout:  10 * time.Second,
		ResourceTimeout: 30 * time.Second,
		KeyringService:  "netkit",
		Format:          "auto",
		Sources:         make(map[string]string),
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence: flags > env > global > system > defaults
func Load(overrides FlagOverrides) (*Config, error) {
	cfg := Default()
	for key := range fileKeys {
		cfg.Sources[key] = string(SourceDefault)
	}

	loadFromFile(cfg, systemConfigPath, SourceSystem)
	loadFromFile(cfg, GlobalConfigPath(), SourceGlobal)
	LoadFromEnv(cfg)
	ApplyOverrides(cfg, overrides)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fileKeys lists every key read from config files.
var fileKeys = map[string]bool{
	"transport": true, "request_timeout": true, "resource_timeout": true,
	"fixtures_dir": true, "fixtures_manifest": true, "circuit_breaker": true,
	"state_dir": true, "keyring_service": true, "token_url": true,
	"client_id": true, "client_secret": true, "scopes": true,
	"download_dir": true, "format": true, "verbose": true,
	"user_agent": true, "circuit_failure_threshold": true,
	"circuit_success_threshold": true, "circuit_open_timeout": true,
	"circuit_half_open_requests": true,
}

// circuitCounts maps the integer circuit keys to their fields.
func (cfg *Config) circuitCounts() map[string]*int {
	return map[string]*int{
		"circuit_failure_threshold":  &cfg.CircuitFailureThreshold,
		"circuit_success_threshold":  &cfg.CircuitSuccessThreshold,
		"circuit_half_open_requests": &cfg.CircuitHalfOpenRequests,
	}
}

func loadFromFile(cfg *Config, path string, source Source) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config locations
	if err != nil {
		return
	}

	var fileCfg map[string]any
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		fmt.Fprintf(Warnings, "warning: skipping malformed config at %s: %v\n", path, err)
		return
	}

	set := func(key string) { cfg.Sources[key] = string(source) }
	setString := func(key string, dst *string) {
		if v, ok := fileCfg[key].(string); ok && v != "" {
			*dst = v
			set(key)
		}
	}

	setString("transport", &cfg.Transport)
	setString("fixtures_dir", &cfg.FixturesDir)
	setString("fixtures_manifest", &cfg.FixturesManifest)
	setString("state_dir", &cfg.StateDir)
	setString("keyring_service", &cfg.KeyringService)
	setString("token_url", &cfg.TokenURL)
	setString("client_id", &cfg.ClientID)
	setString("client_secret", &cfg.ClientSecret)
	setString("download_dir", &cfg.DownloadDir)
	setString("format", &cfg.Format)
	setString("user_agent", &cfg.UserAgent)

	for key, dst := range cfg.circuitCounts() {
		v, ok := fileCfg[key].(float64)
		if !ok {
			continue
		}
		if iv := int(v); iv > 0 && v == float64(iv) {
			*dst = iv
			set(key)
		} else {
			fmt.Fprintf(Warnings, "warning: ignoring %s in %s: want a positive integer\n", key, path)
		}
	}

	for _, key := range []string{"request_timeout", "resource_timeout", "circuit_open_timeout"} {
		v, ok := fileCfg[key]
		if !ok {
			continue
		}
		d, err := parseDuration(v)
		if err != nil {
			fmt.Fprintf(Warnings, "warning: ignoring %s in %s: %v\n", key, path, err)
			continue
		}
		switch key {
		case "request_timeout":
			cfg.RequestTimeout = d
		case "resource_timeout":
			cfg.ResourceTimeout = d
		default:
			cfg.CircuitOpenTimeout = d
		}
		set(key)
	}

	if v, ok := fileCfg["circuit_breaker"].(bool); ok {
		cfg.CircuitBreaker = v
		set("circuit_breaker")
	}
	if v, ok := fileCfg["scopes"]; ok {
		if scopes := parseScopes(v); scopes != nil {
			cfg.Scopes = scopes
			set("scopes")
		}
	}
	if v, ok := fileCfg["verbose"].(float64); ok {
		iv := int(v)
		if iv >= 0 && iv <= 2 && v == float64(iv) {
			cfg.Verbose = &iv
			set("verbose")
		}
	}
}

// parseDuration accepts a Go duration string or a number of seconds.
func parseDuration(v any) (time.Duration, error) {
	switch val := v.(type) {
	case string:
		return time.ParseDuration(val)
	case float64:
		return time.Duration(val * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("expected a duration, got %T", v)
	}
}

// parseScopes accepts a list of strings or one space- or comma-separated
// string.
func parseScopes(v any) []string {
	switch val := v.(type) {
	case string:
		return splitScopes(val)
	case []any:
		var out []string
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func splitScopes(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// LoadFromEnv loads configuration from NETKIT_* environment variables.
func LoadFromEnv(cfg *Config) {
	setString := func(env, key string, dst *string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
			cfg.Sources[key] = string(SourceEnv)
		}
	}

	setString("NETKIT_TRANSPORT", "transport", &cfg.Transport)
	setString("NETKIT_FIXTURES_DIR", "fixtures_dir", &cfg.FixturesDir)
	setString("NETKIT_FIXTURES_MANIFEST", "fixtures_manifest", &cfg.FixturesManifest)
	setString("NETKIT_STATE_DIR", "state_dir", &cfg.StateDir)
	setString("NETKIT_KEYRING_SERVICE", "keyring_service", &cfg.KeyringService)
	setString("NETKIT_TOKEN_URL", "token_url", &cfg.TokenURL)
	setString("NETKIT_CLIENT_ID", "client_id", &cfg.ClientID)
	setString("NETKIT_CLIENT_SECRET", "client_secret", &cfg.ClientSecret)
	setString("NETKIT_DOWNLOAD_DIR", "download_dir", &cfg.DownloadDir)
	setString("NETKIT_FORMAT", "format", &cfg.Format)
	setString("NETKIT_USER_AGENT", "user_agent", &cfg.UserAgent)

	for key, dst := range cfg.circuitCounts() {
		if v := os.Getenv("NETKIT_" + strings.ToUpper(key)); v != "" {
			if iv, err := strconv.Atoi(v); err == nil && iv > 0 {
				*dst = iv
				cfg.Sources[key] = string(SourceEnv)
			}
		}
	}
	if v := os.Getenv("NETKIT_CIRCUIT_OPEN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.CircuitOpenTimeout = d
			cfg.Sources["circuit_open_timeout"] = string(SourceEnv)
		}
	}

	if v := os.Getenv("NETKIT_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RequestTimeout = d
			cfg.Sources["request_timeout"] = string(SourceEnv)
		}
	}
	if v := os.Getenv("NETKIT_RESOURCE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ResourceTimeout = d
			cfg.Sources["resource_timeout"] = string(SourceEnv)
		}
	}
	if v := os.Getenv("NETKIT_CIRCUIT_BREAKER"); v != "" {
		if b, ok := parseEnvBool(v); ok {
			cfg.CircuitBreaker = b
			cfg.Sources["circuit_breaker"] = string(SourceEnv)
		}
	}
	if v := os.Getenv("NETKIT_SCOPES"); v != "" {
		cfg.Scopes = splitScopes(v)
		cfg.Sources["scopes"] = string(SourceEnv)
	}
	if v := os.Getenv("NETKIT_VERBOSE"); v != "" {
		if iv, err := strconv.Atoi(v); err == nil && iv >= 0 && iv <= 2 {
			cfg.Verbose = &iv
			cfg.Sources["verbose"] = string(SourceEnv)
		}
	}
}

// parseEnvBool parses a boolean environment variable strictly.
// Unrecognized values report false in the second result.
func parseEnvBool(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true, true
	case "false", "0", "no", "off":
		return false, true
	default:
		return false, false
	}
}

// ApplyOverrides applies non-zero flag overrides to cfg.
func ApplyOverrides(cfg *Config, o FlagOverrides) {
	if o.Transport != "" {
		cfg.Transport = o.Transport
		cfg.Sources["transport"] = string(SourceFlag)
	}
	if o.FixturesDir != "" {
		cfg.FixturesDir = o.FixturesDir
		cfg.Sources["fixtures_dir"] = string(SourceFlag)
	}
	if o.DownloadDir != "" {
		cfg.DownloadDir = o.DownloadDir
		cfg.Sources["download_dir"] = string(SourceFlag)
	}
	if o.Format != "" {
		cfg.Format = o.Format
		cfg.Sources["format"] = string(SourceFlag)
	}
	if o.RequestTimeout > 0 {
		cfg.RequestTimeout = o.RequestTimeout
		cfg.Sources["request_timeout"] = string(SourceFlag)
	}
	if o.ResourceTimeout > 0 {
		cfg.ResourceTimeout = o.ResourceTimeout
		cfg.Sources["resource_timeout"] = string(SourceFlag)
	}
	if o.CircuitBreaker != nil {
		cfg.CircuitBreaker = *o.CircuitBreaker
		cfg.Sources["circuit_breaker"] = string(SourceFlag)
	}
	if o.Verbose != nil {
		v := *o.Verbose
		cfg.Verbose = &v
		cfg.Sources["verbose"] = string(SourceFlag)
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the resolved values.
func (cfg *Config) Validate() error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// VerboseLevel returns the configured verbosity, or 0.
func (cfg *Config) VerboseLevel() int {
	if cfg.Verbose == nil {
		return 0
	}
	return *cfg.Verbose
}

// GlobalConfigDir returns the global config directory path.
func GlobalConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "netkit")
}

// SystemConfigPath returns the system-wide config file path.
func SystemConfigPath() string {
	return systemConfigPath
}

// GlobalConfigPath returns the global config file path.
func GlobalConfigPath() string {
	return filepath.Join(GlobalConfigDir(), "config.json")
}
