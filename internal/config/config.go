package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"patient-roster/internal/platform/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Port    string `mapstructure:"PORT"`
	AppName string `mapstructure:"APP_NAME"`

	LogLevel         string `mapstructure:"LOG_LEVEL"`
	LogFormat        string `mapstructure:"LOG_FORMAT"`
	LogFile          string `mapstructure:"LOG_FILE"`
	LogFileMaxSizeMB int    `mapstructure:"LOG_FILE_MAX_SIZE_MB"`

	StoreDriver string `mapstructure:"STORE_DRIVER"`
	SQLitePath  string `mapstructure:"SQLITE_PATH"`
	DBDSN       string `mapstructure:"DB_DSN"`

	SessionGrace       time.Duration `mapstructure:"SESSION_GRACE"`
	SessionIdleTimeout time.Duration `mapstructure:"SESSION_IDLE_TIMEOUT"`
}

var keys = []string{
	"PORT", "APP_NAME",
	"LOG_LEVEL", "LOG_FORMAT", "LOG_FILE", "LOG_FILE_MAX_SIZE_MB",
	"STORE_DRIVER", "SQLITE_PATH", "DB_DSN",
	"SESSION_GRACE", "SESSION_IDLE_TIMEOUT",
}

// Load lee variables de entorno y, si existe, el archivo envFile (formato .env).
// Las variables de entorno pisan al archivo.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
	}
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_NAME", "patient-roster")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("LOG_FILE_MAX_SIZE_MB", 100)
	v.SetDefault("STORE_DRIVER", DriverSQLite)
	v.SetDefault("SQLITE_PATH", "patient_roster.db")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("SESSION_GRACE", "5s")
	v.SetDefault("SESSION_IDLE_TIMEOUT", "30m")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// el .env es opcional
	if envFile != "" {
		_ = v.ReadInConfig()
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if strings.TrimSpace(c.DBDSN) == "" {
			return fmt.Errorf("DB_DSN is required when STORE_DRIVER is %q", DriverPostgres)
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q, %q or %q, got %q", DriverSQLite, DriverPostgres, DriverMemory, c.StoreDriver)
	}
	if c.SessionGrace < 0 {
		return fmt.Errorf("SESSION_GRACE must not be negative, got %s", c.SessionGrace)
	}
	if c.SessionIdleTimeout < 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must not be negative, got %s", c.SessionIdleTimeout)
	}
	return nil
}

func (c *Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}

func (c *Config) LoggerOptions() logger.Options {
	return logger.Options{
		Level:         logger.ParseLevel(c.LogLevel),
		Format:        logger.ParseFormat(c.LogFormat),
		App:           c.AppName,
		File:          c.LogFile,
		FileMaxSizeMB: c.LogFileMaxSizeMB,
	}
}
