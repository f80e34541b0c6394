package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"medbook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	API        APIConfig        `yaml:"api"`
	Redis      RedisConfig      `yaml:"redis"`
	Session    SessionConfig    `yaml:"session"`
	Calendar   CalendarConfig   `yaml:"calendar"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Doctors    []models.Doctor  `yaml:"doctors"`
	Patients   []models.Patient `yaml:"patients"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// SessionConfig describes the per-tab booking state.
type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	RedirectDelay time.Duration `yaml:"redirect_delay"`
	Landing       string        `yaml:"landing"`
	Timezone      string        `yaml:"timezone"`
}

type CalendarConfig struct {
	ProdID    string `yaml:"prodid"`
	UIDDomain string `yaml:"uid_domain"`
}

type CatalogConfig struct {
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

func Load(configPath string) (*Config, error) {
	// .env is optional; a missing file is not an error
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
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

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Session.TTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	if c.Session.RedirectDelay < 0 {
		return errors.New("session redirect_delay must not be negative")
	}
	if strings.TrimSpace(c.Session.Landing) == "" {
		return errors.New("session landing destination is required")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid session timezone %q: %w", c.Session.Timezone, err)
	}
	if strings.TrimSpace(c.Calendar.UIDDomain) == "" {
		return errors.New("calendar uid_domain is required")
	}

	if err := ValidateDoctors(c.Doctors); err != nil {
		return err
	}
	return ValidatePatients(c.Patients)
}

// ValidateDoctors rejects empty and duplicate doctor IDs.
func ValidateDoctors(doctors []models.Doctor) error {
	ids := make(map[string]bool)
	for _, d := range doctors {
		if strings.TrimSpace(d.ID) == "" {
			return fmt.Errorf("doctor '%s' has empty ID", d.Name)
		}
		if ids[d.ID] {
			return fmt.Errorf("duplicate doctor ID found: %s", d.ID)
		}
		ids[d.ID] = true
	}
	return nil
}

// ValidatePatients rejects empty and duplicate patient IDs.
func ValidatePatients(patients []models.Patient) error {
	ids := make(map[string]bool)
	for _, p := range patients {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("patient '%s' has empty ID", p.Name)
		}
		if ids[p.ID] {
			return fmt.Errorf("duplicate patient ID found: %s", p.ID)
		}
		ids[p.ID] = true
	}
	return nil
}

// Location resolves the configured timezone; empty means the process local zone.
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Session.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(tz)
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "medbook"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 10
	}

	if c.Session.TTL == 0 {
		c.Session.TTL = models.DefaultSessionTTL
	}
	if c.Session.RedirectDelay == 0 {
		c.Session.RedirectDelay = models.DefaultRedirectDelay
	}
	if c.Session.Landing == "" {
		c.Session.Landing = "/dashboard"
	}

	if c.Calendar.ProdID == "" {
		c.Calendar.ProdID = "-//Medbook//Appointment//EN"
	}
	if c.Calendar.UIDDomain == "" {
		c.Calendar.UIDDomain = "app.demo"
	}
}
