package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Minio     MinioConfig     `yaml:"minio"`
	Clicksign ClicksignConfig `yaml:"clicksign"`
	CRM       CRMConfig       `yaml:"crm"`
	Auth      AuthConfig      `yaml:"auth"`
	Users     []User          `yaml:"users"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type MinioConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	UseSSL     bool   `yaml:"use_ssl"`
	ExpireDays int    `yaml:"expire_days"`
}

type ClicksignConfig struct {
	APIURL        string `yaml:"api_url"`
	AccessToken   string `yaml:"access_token"`
	WebhookSecret string `yaml:"webhook_secret"`
	// AllowUnsigned accepts webhook deliveries without an HMAC signature.
	// Only meaningful when no webhook secret is provisioned; production
	// deployments should leave it off so the handler fails closed.
	AllowUnsigned  bool           `yaml:"allow_unsigned"`
	Locale         string         `yaml:"locale"`
	DeadlineDays   int            `yaml:"deadline_days"`
	Representative Representative `yaml:"representative"`
}

// Representative is the platform-side signer added to every signature list.
type Representative struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
	TaxID string `yaml:"tax_id"`
	Phone string `yaml:"phone"`
}

type CRMConfig struct {
	Enabled  bool   `yaml:"enabled"`
	APIURL   string `yaml:"api_url"`
	APIToken string `yaml:"api_token"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Agency   string `yaml:"agency"`
}

var GlobalConfig *Config

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "salesauth.db"
	}
	if cfg.Minio.ExpireDays == 0 {
		cfg.Minio.ExpireDays = 7
	}
	if cfg.Auth.TokenExpireHours == 0 {
		cfg.Auth.TokenExpireHours = 24
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Clicksign.Locale == "" {
		cfg.Clicksign.Locale = "pt-BR"
	}
	if cfg.Clicksign.DeadlineDays == 0 {
		cfg.Clicksign.DeadlineDays = 90
	}

	GlobalConfig = &cfg
	return &cfg, nil
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}
