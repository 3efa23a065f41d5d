package config

import (
	"errors"
	"strings"
	"time"

	"github.com/nomcebo/bankauth/params"
	"github.com/spf13/viper"
)

const (
	DefaultListenAddr = ":3000"
)

type MySQLConfig struct {
	Dsn             string `mapstructure:"dsn"`
	TablePrefix     string `mapstructure:"tablePrefix"`
	MaxIdleConns    int    `mapstructure:"maxIdleConns"`
	MaxOpenConns    int    `mapstructure:"maxOpenConns"`
	ConnMaxIdleTime int    `mapstructure:"connMaxIdleTime"`
	ConnMaxLifetime int    `mapstructure:"connMaxLifetime"`
}

type RedisConfig struct {
	URL         string `mapstructure:"url"`
	PoolSize    int    `mapstructure:"poolSize"`
	ClusterMode bool   `mapstructure:"clusterMode"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	TLS      bool   `mapstructure:"tls"`
	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
	CAFile   string `mapstructure:"caFile"`
}

type MailConfig struct {
	Backend string     `mapstructure:"backend"`
	From    string     `mapstructure:"from"`
	SMTP    SMTPConfig `mapstructure:"smtp"`
}

type KeycloakConfig struct {
	BaseURL      string `mapstructure:"baseURL"`
	Realm        string `mapstructure:"realm"`
	ClientID     string `mapstructure:"clientID"`
	ClientSecret string `mapstructure:"clientSecret"`
	AdminRealm   string `mapstructure:"adminRealm"`
	AdminID      string `mapstructure:"adminID"`
	AdminSecret  string `mapstructure:"adminSecret"`
}

type AuthConfig struct {
	MaxLoginAttempts int           `mapstructure:"maxLoginAttempts"`
	LockoutDuration  time.Duration `mapstructure:"lockoutDuration"`
	AccessTokenTTL   time.Duration `mapstructure:"accessTokenTTL"`
	RefreshTokenTTL  time.Duration `mapstructure:"refreshTokenTTL"`
	SigningSecret    string        `mapstructure:"signingSecret"`
}

type Config struct {
	Debug        bool           `mapstructure:"debug"`
	SiteName     string         `mapstructure:"siteName"`
	BaseURL      string         `mapstructure:"baseURL"`
	ListenAddr   string         `mapstructure:"listenAddr"`
	AllowOrigins []string       `mapstructure:"allowOrigins"`
	Auth         AuthConfig     `mapstructure:"auth"`
	MySQL        MySQLConfig    `mapstructure:"mysql"`
	Redis        RedisConfig    `mapstructure:"redis"`
	Mail         MailConfig     `mapstructure:"mail"`
	Keycloak     KeycloakConfig `mapstructure:"keycloak"`
}

func (c *Config) Sanitize() error {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.Auth.MaxLoginAttempts == 0 {
		c.Auth.MaxLoginAttempts = params.DefaultMaxLoginAttempts
	}
	if c.Auth.LockoutDuration == 0 {
		c.Auth.LockoutDuration = params.DefaultLockoutDuration
	}
	if c.Auth.AccessTokenTTL == 0 {
		c.Auth.AccessTokenTTL = params.AccessTokenValidity
	}
	if c.Auth.RefreshTokenTTL == 0 {
		c.Auth.RefreshTokenTTL = params.RefreshTokenValidity
	}
	if c.Auth.SigningSecret == "" {
		return errors.New("auth.signingSecret is required")
	}
	if c.Keycloak.AdminRealm == "" {
		c.Keycloak.AdminRealm = "master"
	}
	return nil
}

func LoadConfig(filename string) (*Config, error) {
	viper.SetConfigFile(filename)
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Sanitize(); err != nil {
		return nil, err
	}
	return &config, nil
}
