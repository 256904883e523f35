package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	G2B      G2BConfig      `yaml:"g2b" validate:"required"`
	Notify   NotifyConfig   `yaml:"notify"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Sync     SyncConfig     `yaml:"sync"`
	LogLevel string         `yaml:"log_level"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

// G2BConfig configures the upstream bid-listing API and which agencies matter.
type G2BConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key" validate:"required"`
	TargetAgencyCodes []string      `yaml:"target_agency_codes" validate:"min=1,dive,required"`
	PageSize          int           `yaml:"page_size"`
	WindowDays        int           `yaml:"window_days"`
	Timeout           time.Duration `yaml:"timeout"`
}

type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url" validate:"omitempty,url"`
}

// RabbitMQConfig is optional; an empty URL disables event publishing.
type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

func (r RabbitMQConfig) Enabled() bool {
	return r.URL != ""
}

type SyncConfig struct {
	Interval    time.Duration `yaml:"interval"`
	RunTimeout  time.Duration `yaml:"run_timeout"`
	NotifyDelay time.Duration `yaml:"notify_delay"`
	PageDelay   time.Duration `yaml:"page_delay"`
	DayDelay    time.Duration `yaml:"day_delay"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.G2B.BaseURL == "" {
		c.G2B.BaseURL = "https://apis.data.go.kr/1230000/ad/BidPublicInfoService"
	}
	if c.G2B.PageSize == 0 {
		c.G2B.PageSize = 500
	}
	if c.G2B.WindowDays == 0 {
		c.G2B.WindowDays = 5
	}
	if c.G2B.Timeout == 0 {
		c.G2B.Timeout = 30 * time.Second
	}
	if c.RabbitMQ.Enabled() {
		if c.RabbitMQ.Exchange == "" {
			c.RabbitMQ.Exchange = "g2b_monitor"
		}
		if c.RabbitMQ.RoutingKey == "" {
			c.RabbitMQ.RoutingKey = "bids"
		}
		if c.RabbitMQ.QueueName == "" {
			c.RabbitMQ.QueueName = "new_bids"
		}
	}
	if c.Sync.Interval == 0 {
		c.Sync.Interval = 10 * time.Minute
	}
	if c.Sync.RunTimeout == 0 {
		c.Sync.RunTimeout = 5 * time.Minute
	}
	if c.Sync.NotifyDelay == 0 {
		c.Sync.NotifyDelay = 500 * time.Millisecond
	}
	if c.Sync.PageDelay == 0 {
		c.Sync.PageDelay = 200 * time.Millisecond
	}
	if c.Sync.DayDelay == 0 {
		c.Sync.DayDelay = 100 * time.Millisecond
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
