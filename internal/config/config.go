package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"camrent/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Backend    BackendConfig    `yaml:"backend"`
	Session    SessionConfig    `yaml:"session"`
	Redis      RedisConfig      `yaml:"redis"`
	Journal    JournalConfig    `yaml:"journal"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	Timezone    string `yaml:"timezone"`
}

type BackendConfig struct {
	BaseURL   string          `yaml:"base_url"`
	Timeout   time.Duration   `yaml:"timeout"`
	CartLabel string          `yaml:"cart_label"`
	Endpoints EndpointsConfig `yaml:"endpoints"`
}

// EndpointsConfig holds path templates; {id} is substituted with the escaped id.
type EndpointsConfig struct {
	Bookings             string `yaml:"bookings"`
	Staffs               string `yaml:"staffs"`
	UpdateStatus         string `yaml:"update_status"`
	Workload             string `yaml:"workload"`
	Assignments          string `yaml:"assignments"`
	ContractBooking      string `yaml:"contract_booking"`
	ContractVerification string `yaml:"contract_verification"`
	ContractPreview      string `yaml:"contract_preview"`
	ContractSign         string `yaml:"contract_sign"`
}

// SessionConfig is the daemon's own credential, used for background store refreshes.
type SessionConfig struct {
	Token string `yaml:"token"`
}

type RedisConfig struct {
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"pool_size"`
	TTL      time.Duration `yaml:"ttl"`
}

type JournalConfig struct {
	Path string `yaml:"path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return errors.New("backend base_url is required")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend base_url %q is not an absolute URL", c.Backend.BaseURL)
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("invalid app timezone %q: %w", c.App.Timezone, err)
	}
	if c.API.Auth.Enabled && len(c.API.Auth.APIKeys) == 0 {
		return errors.New("api auth is enabled but no api_keys are configured")
	}
	return ValidateAPIKeys(c.API.Auth.APIKeys)
}

func ValidateAPIKeys(keys []APIClientKey) error {
	seen := make(map[string]bool)
	for _, k := range keys {
		if strings.TrimSpace(k.Key) == "" {
			return fmt.Errorf("api key '%s' is empty", k.Name)
		}
		if seen[k.Key] {
			return fmt.Errorf("duplicate api key for client '%s'", k.Name)
		}
		seen[k.Key] = true
	}
	return nil
}

// Location returns the configured timezone, falling back to UTC.
func (c AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) ApplyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "camrent-opsd"
	}
	if c.App.Timezone == "" {
		c.App.Timezone = models.DefaultTimezone
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = 15 * time.Second
	}
	if c.Backend.CartLabel == "" {
		c.Backend.CartLabel = models.CartLabel
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = models.DefaultDialogTTL * time.Second
	}

	ep := &c.Backend.Endpoints
	setDefault(&ep.Bookings, "/Bookings")
	setDefault(&ep.Staffs, "/Staffs")
	setDefault(&ep.UpdateStatus, "/Bookings/{id}/update-status")
	setDefault(&ep.Workload, "/Staffs/workload")
	setDefault(&ep.Assignments, "/DeliveryAssignments")
	setDefault(&ep.ContractBooking, "/Contracts/booking/{id}")
	setDefault(&ep.ContractVerification, "/Contracts/verification/{id}")
	setDefault(&ep.ContractPreview, "/Contracts/{id}/preview")
	setDefault(&ep.ContractSign, "/Contracts/{id}/sign")
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// ExpandPath substitutes {id} in an endpoint template with the path-escaped id.
func ExpandPath(template, id string) string {
	return strings.ReplaceAll(template, "{id}", url.PathEscape(id))
}
