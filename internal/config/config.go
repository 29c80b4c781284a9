package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/beekhof/exchange-sync/internal/domain"

	"gopkg.in/yaml.v3"
)

// Authentication modes.
const (
	AuthNTLM   = "ntlm"
	AuthOAuth2 = "oauth2"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultTimeout          = 60
	DefaultWorkstation      = "exsync"
	DefaultResponseTimezone = "Europe/Moscow"
)

// ClientCredentials represents an OAuth client credentials JSON file as
// downloaded from an identity provider console.
type ClientCredentials struct {
	Installed struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"installed"`
	Web struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"web"`
}

// LoadClientCredentials loads OAuth client credentials from a JSON file.
func LoadClientCredentials(path string) (clientID, clientSecret string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds ClientCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", "", fmt.Errorf("failed to parse credentials file: %w", err)
	}

	// Try "installed" first (for desktop apps), then "web"
	if creds.Installed.ClientID != "" {
		return creds.Installed.ClientID, creds.Installed.ClientSecret, nil
	}
	if creds.Web.ClientID != "" {
		return creds.Web.ClientID, creds.Web.ClientSecret, nil
	}

	return "", "", fmt.Errorf("no client_id found in credentials file (expected 'installed' or 'web' section)")
}

// OAuth holds the settings for the oauth2 authentication mode.
type OAuth struct {
	ClientID        string   `json:"client_id,omitempty" yaml:"client_id,omitempty"`
	ClientSecret    string   `json:"client_secret,omitempty" yaml:"client_secret,omitempty"`
	CredentialsPath string   `json:"credentials_path,omitempty" yaml:"credentials_path,omitempty"` // Alternative to client_id/client_secret
	Tenant          string   `json:"tenant,omitempty" yaml:"tenant,omitempty"`                     // Azure AD tenant, default "common"
	AuthURL         string   `json:"auth_url,omitempty" yaml:"auth_url,omitempty"`
	TokenURL        string   `json:"token_url,omitempty" yaml:"token_url,omitempty"`
	Scopes          []string `json:"scopes,omitempty" yaml:"scopes,omitempty"`
	TokenPath       string   `json:"token_path,omitempty" yaml:"token_path,omitempty"` // Path to the stored OAuth token
}

// Config holds the configuration of the Exchange connector.
type Config struct {
	Endpoint string `json:"endpoint" yaml:"endpoint"`                   // Exchange server base URL, e.g. "https://mail.example.com"
	Timeout  int    `json:"timeout,omitempty" yaml:"timeout,omitempty"` // Connect timeout in seconds (default: 60)
	Login    string `json:"login" yaml:"login"`                         // "user@domain"
	Password string `json:"password" yaml:"password"`                   // NTLM password
	Timezone string `json:"timezone" yaml:"timezone"`                   // IANA zone used for the daily query window
	Auth     string `json:"auth,omitempty" yaml:"auth,omitempty"`       // "ntlm" (default) or "oauth2"

	Workstation      string `json:"workstation,omitempty" yaml:"workstation,omitempty"`             // Workstation name announced during the handshake
	ResponseTimezone string `json:"response_timezone,omitempty" yaml:"response_timezone,omitempty"` // Zone requested via the Prefer header
	LogLevel         string `json:"log_level,omitempty" yaml:"log_level,omitempty"`

	OAuth *OAuth `json:"oauth,omitempty" yaml:"oauth,omitempty"`
}

// ConnectTimeout returns the per-request connect timeout.
func (c *Config) ConnectTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

// Parse decodes a JSON configuration document, applies defaults and
// validates it.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, &domain.ConfigError{Err: fmt.Errorf("failed to parse config: %w", err)}
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadConfigFromFile loads configuration from a JSON or YAML file. The
// format is chosen by extension.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return &config, nil
}

// Overrides holds values given on the command line. Empty fields leave the
// loaded value untouched.
type Overrides struct {
	Endpoint string
	Login    string
	Timezone string
	Auth     string
	Timeout  int
	LogLevel string
}

// LoadConfig loads configuration with the following precedence (highest to lowest):
// 1. Command-line flags
// 2. Environment variables
// 3. Config file
// 4. Defaults
// Returns an error if any required value is missing.
func LoadConfig(configFile string, flags Overrides) (*Config, error) {
	var config Config

	// Step 1: Load from config file if provided
	if configFile != "" {
		fileConfig, err := LoadConfigFromFile(configFile)
		if err != nil {
			return nil, &domain.ConfigError{Err: err}
		}
		config = *fileConfig
	}

	// Step 2: Override with environment variables
	if endpoint := os.Getenv("EXSYNC_ENDPOINT"); endpoint != "" {
		config.Endpoint = endpoint
	}
	if login := os.Getenv("EXSYNC_LOGIN"); login != "" {
		config.Login = login
	}
	// Password is usually kept out of the config file
	if password := os.Getenv("EXSYNC_PASSWORD"); password != "" {
		config.Password = password
	}
	if timezone := os.Getenv("EXSYNC_TIMEZONE"); timezone != "" {
		config.Timezone = timezone
	}
	if timeout := os.Getenv("EXSYNC_TIMEOUT"); timeout != "" {
		seconds, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, &domain.ConfigError{Field: "EXSYNC_TIMEOUT", Err: err}
		}
		config.Timeout = seconds
	}

	// Step 3: Override with command-line flags (highest priority)
	if flags.Endpoint != "" {
		config.Endpoint = flags.Endpoint
	}
	if flags.Login != "" {
		config.Login = flags.Login
	}
	if flags.Timezone != "" {
		config.Timezone = flags.Timezone
	}
	if flags.Auth != "" {
		config.Auth = flags.Auth
	}
	if flags.Timeout != 0 {
		config.Timeout = flags.Timeout
	}
	if flags.LogLevel != "" {
		config.LogLevel = flags.LogLevel
	}

	// Step 4: Apply defaults and validate required fields
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// ApplyDefaults fills unset optional fields.
func (c *Config) ApplyDefaults() {
	c.Endpoint = strings.TrimRight(c.Endpoint, "/")
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Auth == "" {
		c.Auth = AuthNTLM
	}
	if c.Workstation == "" {
		c.Workstation = DefaultWorkstation
	}
	if c.ResponseTimezone == "" {
		c.ResponseTimezone = DefaultResponseTimezone
	}
	if c.Auth == AuthOAuth2 && c.OAuth != nil {
		o := c.OAuth
		if o.Tenant == "" {
			o.Tenant = "common"
		}
		if o.AuthURL == "" {
			o.AuthURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/authorize", o.Tenant)
		}
		if o.TokenURL == "" {
			o.TokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", o.Tenant)
		}
		if len(o.Scopes) == 0 {
			o.Scopes = []string{"https://outlook.office.com/Calendars.Read", "offline_access"}
		}
	}
}

// Validate checks required fields. Errors are *domain.ConfigError.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return &domain.ConfigError{Field: "endpoint", Err: fmt.Errorf("endpoint must be provided via --endpoint flag, EXSYNC_ENDPOINT environment variable, or config file")}
	}
	if c.Timeout < 0 {
		return &domain.ConfigError{Field: "timeout", Err: fmt.Errorf("timeout must be positive, got %d", c.Timeout)}
	}
	if c.Timezone == "" {
		return &domain.ConfigError{Field: "timezone", Err: fmt.Errorf("timezone must be provided via --timezone flag, EXSYNC_TIMEZONE environment variable, or config file")}
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return &domain.ConfigError{Field: "timezone", Err: err}
	}

	switch c.Auth {
	case AuthNTLM:
		if user, _, ok := strings.Cut(c.Login, "@"); !ok || user == "" {
			return &domain.ConfigError{Field: "login", Err: domain.ErrInvalidCredentialsFormat}
		}
	case AuthOAuth2:
		if c.OAuth == nil {
			return &domain.ConfigError{Field: "oauth", Err: fmt.Errorf("oauth section is required when auth is 'oauth2'")}
		}
		if c.OAuth.TokenPath == "" {
			return &domain.ConfigError{Field: "oauth.token_path", Err: fmt.Errorf("token_path must be provided for oauth2 authentication")}
		}
		if c.OAuth.ClientID == "" && c.OAuth.CredentialsPath == "" {
			return &domain.ConfigError{Field: "oauth.client_id", Err: fmt.Errorf("client_id or credentials_path must be provided for oauth2 authentication")}
		}
	default:
		return &domain.ConfigError{Field: "auth", Err: fmt.Errorf("auth must be 'ntlm' or 'oauth2', got '%s'", c.Auth)}
	}

	return nil
}

// ResolveClientCredentials returns the OAuth client id and secret, reading
// the credentials file when they are not set inline.
func (o *OAuth) ResolveClientCredentials() (clientID, clientSecret string, err error) {
	if o.ClientID != "" {
		return o.ClientID, o.ClientSecret, nil
	}
	return LoadClientCredentials(o.CredentialsPath)
}
