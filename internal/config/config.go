package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/atlekbai/querykit/internal/sqlfmt"
)

// Config holds the server configuration.
type Config struct {
	Port            string        `mapstructure:"port"`
	DatabaseURL     string        `mapstructure:"database_url"`
	MySQL           MySQLConfig   `mapstructure:"mysql"`
	TimeZone        string        `mapstructure:"time_zone"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Log             LogConfig     `mapstructure:"log"`
	Models          []ModelConfig `mapstructure:"models"`
}

// MySQLConfig describes a database by its parts. It is used when
// DatabaseURL is empty.
type MySQLConfig struct {
	Host     string            `mapstructure:"host"`
	Port     int               `mapstructure:"port"`
	User     string            `mapstructure:"user"`
	Password string            `mapstructure:"password"`
	Database string            `mapstructure:"database"`
	Params   map[string]string `mapstructure:"params"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// ModelConfig declares a named model over a table.
type ModelConfig struct {
	Name       string `mapstructure:"name"`
	Table      string `mapstructure:"table"`
	PrimaryKey string `mapstructure:"primary_key"`
}

// Load reads the configuration from defaults, the optional YAML file at
// path, and the environment, in increasing priority. PORT and DATABASE_URL
// are honoured alongside their QUERYKIT_ prefixed forms.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("QUERYKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range map[string]string{"port": "PORT", "database_url": "DATABASE_URL"} {
		if err := v.BindEnv(key, "QUERYKIT_"+env, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("database_url", "")
	v.SetDefault("mysql.host", "")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.user", "root")
	v.SetDefault("mysql.password", "")
	v.SetDefault("mysql.database", "")
	v.SetDefault("time_zone", sqlfmt.LocalTimeZone)
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}
	if _, err := c.DSN(); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		if m.Name == "" || m.Table == "" {
			return fmt.Errorf("models[%d]: name and table are required", i)
		}
		if seen[m.Name] {
			return fmt.Errorf("models[%d]: duplicate model %q", i, m.Name)
		}
		seen[m.Name] = true
	}
	return nil
}

// DSN returns the MySQL data source name, or "" when no database is
// configured. A DatabaseURL takes precedence over the MySQL parts.
func (c *Config) DSN() (string, error) {
	if c.DatabaseURL != "" {
		parsed, err := mysql.ParseDSN(c.DatabaseURL)
		if err != nil {
			return "", fmt.Errorf("invalid database_url: %w", err)
		}
		return parsed.FormatDSN(), nil
	}
	if c.MySQL.Host == "" {
		return "", nil
	}

	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.MySQL.Host, strconv.Itoa(c.MySQL.Port))
	mc.User = c.MySQL.User
	mc.Passwd = c.MySQL.Password
	mc.DBName = c.MySQL.Database
	if len(c.MySQL.Params) > 0 {
		mc.Params = c.MySQL.Params
	}
	return mc.FormatDSN(), nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%s", c.Port)
}
