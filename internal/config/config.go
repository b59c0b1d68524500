package config

import (
	"fmt"
	"os"
	"path"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Public  Public
	Private Private
}

type Public struct {
	HTTPPort        int           `yaml:"http_port"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`

	// Login rate limit: max attempts per window, keyed by client IP.
	LoginRateWindow      time.Duration `yaml:"login_rate_window"`
	LoginRateMaxAttempts int           `yaml:"login_rate_max_attempts"`

	AllowedOrigins []string `yaml:"allowed_origins"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

type Private struct {
	Pg    Pg    `yaml:"pg"`
	Redis Redis `yaml:"redis"`

	// Secrets must differ so a refresh token can never verify through
	// the access key.
	AccessTokenSecret  string `yaml:"access_token_secret"`
	RefreshTokenSecret string `yaml:"refresh_token_secret"`

	// Bootstrap admin credentials, consumed once at startup to create
	// the first admin account.
	AdminEmail    string `yaml:"admin_email"`
	AdminPassword string `yaml:"admin_password"`
}

type Pg struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Dbname   string `yaml:"dbname"`
}

// Redis is optional. When Addr is empty the login rate limiter runs on an
// in-process counter, which is only correct for single-instance deployments.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
}

func mustLoadPath(configPath string, output interface{}) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		panic("can't read config file")
	}

	err = yaml.Unmarshal(configFile, output)
	if err != nil {
		panic("can't unmarshal config file")
	}
}

// MustLoad reads public.yaml and private.yaml from configFolder and panics
// on any missing file or missing signing secret. Secrets are checked here
// so a misconfigured deployment dies at startup instead of failing on the
// first request.
func MustLoad(configFolder string) *Config {
	var public Public
	mustLoadPath(path.Join(configFolder, "public.yaml"), &public)

	var private Private
	mustLoadPath(path.Join(configFolder, "private.yaml"), &private)

	cfg := &Config{public, private}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		panic(err.Error())
	}
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Public.HTTPPort == 0 {
		c.Public.HTTPPort = 8080
	}
	if c.Public.AccessTokenTTL == 0 {
		c.Public.AccessTokenTTL = time.Hour
	}
	if c.Public.RefreshTokenTTL == 0 {
		c.Public.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if c.Public.LoginRateWindow == 0 {
		c.Public.LoginRateWindow = 15 * time.Minute
	}
	if c.Public.LoginRateMaxAttempts == 0 {
		c.Public.LoginRateMaxAttempts = 5
	}
	if c.Public.LogLevel == "" {
		c.Public.LogLevel = "info"
	}
}

func (c *Config) Validate() error {
	if c.Private.AccessTokenSecret == "" {
		return fmt.Errorf("access_token_secret is not configured")
	}
	if c.Private.RefreshTokenSecret == "" {
		return fmt.Errorf("refresh_token_secret is not configured")
	}
	if c.Private.AccessTokenSecret == c.Private.RefreshTokenSecret {
		return fmt.Errorf("access and refresh token secrets must differ")
	}
	if c.Private.Pg.Host == "" {
		return fmt.Errorf("pg.host is not configured")
	}
	return nil
}
