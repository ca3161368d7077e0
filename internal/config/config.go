package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gitlab.com/timkado/api/wa-property-crm/internal/validator"
)

// Config holds all configuration for the service
type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"logLevel"`
	Server      struct {
		Port         int           `mapstructure:"port" validate:"gt=0"`
		ReadTimeout  time.Duration `mapstructure:"readTimeout"`
		WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	} `mapstructure:"server"`
	Database struct {
		PostgresDSN string `mapstructure:"postgresDSN" validate:"required"`
		AutoMigrate bool   `mapstructure:"autoMigrate"`
	} `mapstructure:"database"`
	WhatsApp WhatsAppConfig `mapstructure:"whatsapp"`
	Business struct {
		Name           string `mapstructure:"name"`
		CurrencySymbol string `mapstructure:"currencySymbol"`
	} `mapstructure:"business"`
	Campaign struct {
		SendsPerSecond    float64       `mapstructure:"sendsPerSecond" validate:"gte=0"`
		Burst             int           `mapstructure:"burst" validate:"gte=1"`
		SchedulerInterval time.Duration `mapstructure:"schedulerInterval"`
	} `mapstructure:"campaign"`
	WorkerPools struct {
		Webhook  WorkerPoolConfig `mapstructure:"webhook"`
		Campaign WorkerPoolConfig `mapstructure:"campaign"`
	} `mapstructure:"workerPools"`
	NATS struct {
		URL           string `mapstructure:"url"`
		Stream        string `mapstructure:"stream"`
		SubjectPrefix string `mapstructure:"subjectPrefix"`
	} `mapstructure:"nats"`
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`
}

// WhatsAppConfig holds the Cloud API credentials and webhook secrets
type WhatsAppConfig struct {
	APIURL        string        `mapstructure:"apiURL" validate:"required,url"`
	PhoneNumberID string        `mapstructure:"phoneNumberID" validate:"required"`
	AccessToken   string        `mapstructure:"accessToken" validate:"required"`
	VerifyToken   string        `mapstructure:"verifyToken" validate:"required"`
	AppSecret     string        `mapstructure:"appSecret"` // optional; enables X-Hub-Signature-256 checks
	Timeout       time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// WorkerPoolConfig holds configuration for an ants worker pool
type WorkerPoolConfig struct {
	PoolSize   int           `mapstructure:"poolSize"`   // Number of workers
	QueueSize  int           `mapstructure:"queueSize"`  // Max submitters waiting for a free worker
	MaxBlock   time.Duration `mapstructure:"maxBlock"`   // Max time Submit waits for a free worker
	ExpiryTime time.Duration `mapstructure:"expiryTime"` // Idle worker expiry time
}

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("environment", "development")
	v.SetDefault("logLevel", "info")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 15*time.Second)
	v.SetDefault("server.writeTimeout", 15*time.Second)
	v.SetDefault("database.autoMigrate", true)
	v.SetDefault("whatsapp.apiURL", "https://graph.facebook.com/v21.0")
	v.SetDefault("whatsapp.timeout", 10*time.Second)
	v.SetDefault("business.name", "our agency")
	v.SetDefault("business.currencySymbol", "₦")
	v.SetDefault("campaign.sendsPerSecond", 1.0)
	v.SetDefault("campaign.burst", 1)
	v.SetDefault("campaign.schedulerInterval", time.Minute)
	v.SetDefault("nats.stream", "CRM_EVENTS")
	v.SetDefault("nats.subjectPrefix", "crm.events")
	v.SetDefault("metrics.enabled", true)

	// WorkerPools Defaults
	v.SetDefault("workerPools.webhook.poolSize", 20)
	v.SetDefault("workerPools.webhook.queueSize", 1000)
	v.SetDefault("workerPools.webhook.maxBlock", time.Second)
	v.SetDefault("workerPools.webhook.expiryTime", time.Minute)
	v.SetDefault("workerPools.campaign.poolSize", 2)
	v.SetDefault("workerPools.campaign.queueSize", 100)
	v.SetDefault("workerPools.campaign.maxBlock", time.Second)
	v.SetDefault("workerPools.campaign.expiryTime", 10*time.Minute)

	// Config file settings
	v.SetConfigName("default")
	v.SetConfigType("yaml")

	// Add lookup paths
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath("$HOME/.wa-property-crm")
	v.AddConfigPath("/etc/wa-property-crm")

	// It's ok if config file is not found, we'll use env vars
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvs(v, Config{})

	// Read directly from ENV for critical values
	envOverrides := map[string]string{
		"POSTGRES_DSN":             "database.postgresDSN",
		"WHATSAPP_API_URL":         "whatsapp.apiURL",
		"WHATSAPP_PHONE_NUMBER_ID": "whatsapp.phoneNumberID",
		"WHATSAPP_ACCESS_TOKEN":    "whatsapp.accessToken",
		"WHATSAPP_VERIFY_TOKEN":    "whatsapp.verifyToken",
		"WHATSAPP_APP_SECRET":      "whatsapp.appSecret",
		"NATS_URL":                 "nats.url",
		"LOG_LEVEL":                "logLevel",
	}
	for env, key := range envOverrides {
		if val := os.Getenv(env); val != "" {
			v.Set(key, val)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &config, nil
}

// Validate checks that every value required to serve traffic is present.
func (c *Config) Validate() error {
	if err := validator.Validate(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// bindEnvs recursively binds environment variables to config struct fields
func bindEnvs(v *viper.Viper, cfg interface{}, parts ...string) {
	ifv := reflect.ValueOf(cfg)
	ift := reflect.TypeOf(cfg)
	for i := 0; i < ift.NumField(); i++ {
		fieldVal := ifv.Field(i)
		fieldType := ift.Field(i)

		tag := fieldType.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		path := append(append([]string{}, parts...), tag)
		key := strings.Join(path, ".")

		if fieldType.Type.Kind() == reflect.Struct {
			bindEnvs(v, fieldVal.Interface(), path...)
			continue
		}

		_ = v.BindEnv(key)
	}
}
