package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"slotengine/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Rules      RulesConfig      `yaml:"rules"`
	Services   []models.Service `yaml:"services"`
	Preload    PreloadConfig    `yaml:"preload"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	Timezone    string `yaml:"timezone"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	PoolSize  int    `yaml:"pool_size"`
	KeyPrefix string `yaml:"key_prefix"`
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
	Enabled   bool               `yaml:"enabled"`
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

// RulesConfig holds the business rules. Unset fields fall back to the
// defaults in models; pointers distinguish "unset" from an explicit zero.
type RulesConfig struct {
	BusinessHours            *BusinessHoursConfig `yaml:"business_hours"`
	WorkingDays              []int                `yaml:"working_days"`
	SlotDurationMinutes      *int                 `yaml:"slot_duration_minutes"`
	AdvanceBookingDays       *int                 `yaml:"advance_booking_days"`
	MinLeadTimeMinutes       *int                 `yaml:"min_lead_time_minutes"`
	Cancellation             *CancellationConfig  `yaml:"cancellation"`
	MaxActiveBookingsPerUser *int                 `yaml:"max_active_bookings_per_user"`
}

type BusinessHoursConfig struct {
	Start      *int `yaml:"start"`
	End        *int `yaml:"end"`
	LunchStart *int `yaml:"lunch_start"`
	LunchEnd   *int `yaml:"lunch_end"`
}

type CancellationConfig struct {
	Enabled   *bool `yaml:"enabled"`
	LeadHours *int  `yaml:"lead_hours"`
}

type PreloadConfig struct {
	Enabled     bool          `yaml:"enabled"`
	HorizonDays int           `yaml:"horizon_days"`
	Interval    time.Duration `yaml:"interval"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse expands ${VAR} references in data and decodes it.
func Parse(data []byte) (*Config, error) {
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.App.Timezone != "" {
		if _, err := time.LoadLocation(c.App.Timezone); err != nil {
			return fmt.Errorf("invalid app timezone %q: %w", c.App.Timezone, err)
		}
	}

	if err := c.Rules.Validate(); err != nil {
		return err
	}

	return ValidateServices(c.Services)
}

// Validate checks the configured values; unset fields are not checked.
func (r RulesConfig) Validate() error {
	if h := r.BusinessHours; h != nil {
		for name, v := range map[string]*int{"start": h.Start, "end": h.End, "lunch_start": h.LunchStart, "lunch_end": h.LunchEnd} {
			if v != nil && (*v < 0 || *v > 23) {
				return fmt.Errorf("business_hours.%s must be within 0..23, got %d", name, *v)
			}
		}
		start, end := intOr(h.Start, models.DefaultBusinessStart), intOr(h.End, models.DefaultBusinessEnd)
		if start >= end {
			return fmt.Errorf("business_hours.start (%d) must be before end (%d)", start, end)
		}
		lunchStart, lunchEnd := intOr(h.LunchStart, models.DefaultLunchStart), intOr(h.LunchEnd, models.DefaultLunchEnd)
		if lunchStart > lunchEnd {
			return fmt.Errorf("business_hours.lunch_start (%d) is after lunch_end (%d)", lunchStart, lunchEnd)
		}
		if lunchStart < lunchEnd && (lunchStart < start || lunchEnd > end) {
			return fmt.Errorf("lunch window %d-%d is outside business hours %d-%d", lunchStart, lunchEnd, start, end)
		}
	}

	for _, d := range r.WorkingDays {
		if d < 0 || d > 6 {
			return fmt.Errorf("working day %d is outside 0..6", d)
		}
	}

	if r.SlotDurationMinutes != nil && *r.SlotDurationMinutes <= 0 {
		return fmt.Errorf("slot_duration_minutes must be positive, got %d", *r.SlotDurationMinutes)
	}
	if r.MinLeadTimeMinutes != nil && *r.MinLeadTimeMinutes < 0 {
		return fmt.Errorf("min_lead_time_minutes must not be negative, got %d", *r.MinLeadTimeMinutes)
	}
	if r.Cancellation != nil && r.Cancellation.LeadHours != nil && *r.Cancellation.LeadHours < 0 {
		return fmt.Errorf("cancellation.lead_hours must not be negative, got %d", *r.Cancellation.LeadHours)
	}
	return nil
}

func ValidateServices(services []models.Service) error {
	ids := make(map[string]bool)
	for _, svc := range services {
		if svc.ID == "" {
			return fmt.Errorf("service '%s' has an empty ID", svc.Name)
		}
		if ids[svc.ID] {
			return fmt.Errorf("duplicate service ID found: %s", svc.ID)
		}
		if svc.DurationMinutes < 0 {
			return fmt.Errorf("service %s has negative duration %d", svc.ID, svc.DurationMinutes)
		}
		ids[svc.ID] = true
	}
	return nil
}

// Location returns the configured timezone, or time.Local when unset.
func (c *Config) Location() *time.Location {
	if c.App.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.RateLimit.RPS > 0 && c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = int(c.API.RateLimit.RPS) + 1
	}

	if c.Redis.Address == "" {
		c.Redis.Address = "localhost:6379"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 10
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "slotengine:"
	}

	if c.Preload.HorizonDays == 0 {
		c.Preload.HorizonDays = models.DefaultPreloadHorizonDays
	}
	if c.Preload.Interval == 0 {
		c.Preload.Interval = models.DefaultPreloadInterval * time.Second
	}

	for i := range c.Services {
		if c.Services[i].DurationMinutes == 0 {
			c.Services[i].DurationMinutes = models.DefaultServiceDurationMinutes
		}
	}
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
