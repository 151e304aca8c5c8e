package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Providers ProvidersConfig `mapstructure:"providers"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Serial    SerialConfig    `mapstructure:"serial"`
	Auth      AuthConfig      `mapstructure:"auth"`
	MCP       MCPConfig       `mapstructure:"mcp"`
	Log       LogConfig       `mapstructure:"log"`
}

type ProvidersConfig struct {
	CountryCodes     string `mapstructure:"country_codes"`
	ServiceProviders string `mapstructure:"service_providers"`
	LocaleDir        string `mapstructure:"locale_dir"`
	Language         string `mapstructure:"language"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig selects where snapshots are written. An empty driver
// disables snapshots.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type SerialConfig struct {
	ExcludePorts   []string      `mapstructure:"exclude_ports"`
	BaudRate       int           `mapstructure:"baud_rate"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	// ScanInterval enables the background modem watcher when positive.
	ScanInterval time.Duration `mapstructure:"scan_interval"`
}

type AuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

type MCPConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

var AppConfig Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("providers.country_codes", "/usr/share/xml/iso-codes/iso_3166.xml")
	v.SetDefault("providers.service_providers", "/usr/share/mobile-broadband-provider-info/serviceproviders.xml")
	v.SetDefault("providers.locale_dir", "/usr/share/locale")
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("serial.baud_rate", 115200)
	v.SetDefault("serial.command_timeout", "5s")
	v.SetDefault("serial.scan_interval", "0s")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("mcp.enabled", true)
	v.SetDefault("log.level", "info")
}

// flagKeys maps command-line flags to the config keys they override.
var flagKeys = map[string]string{
	"country-codes":     "providers.country_codes",
	"service-providers": "providers.service_providers",
}

// BindFlags lets the path flags in fs override config file and env values.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return fmt.Errorf("bind --%s: %w", flag, err)
		}
	}
	return nil
}

// LoadConfig reads config.yaml from the working directory, or the file at
// path when it is set, and fills AppConfig. Environment variables such as
// SERVER_PORT override file values.
func LoadConfig(path string) error {
	cfg, err := Load(viper.GetViper(), path)
	if err != nil {
		return err
	}
	AppConfig = cfg
	log.Println("Configuration loaded successfully")
	return nil
}

// Load is LoadConfig against an explicit viper instance.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Printf("Warning: Config file not found, using defaults. Error: %v", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.Serial.BaudRate <= 0 {
		cfg.Serial.BaudRate = 115200
	}
	if cfg.Serial.CommandTimeout <= 0 {
		cfg.Serial.CommandTimeout = 5 * time.Second
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}
	return cfg, nil
}
