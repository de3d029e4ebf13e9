package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Discord  DiscordConfig  `mapstructure:"discord"`
	Game     GameConfig     `mapstructure:"game"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	HealthAddress  string `mapstructure:"health_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"` // none, sqlite, postgres, gorm
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type DiscordConfig struct {
	Token string `mapstructure:"token"`
}

type GameConfig struct {
	Prefix         string        `mapstructure:"prefix"`
	SurfaceTimeout time.Duration `mapstructure:"surface_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":8081")
	v.SetDefault("server.health_address", ":8082")
	v.SetDefault("server.metrics_address", ":9090")
	v.SetDefault("database.driver", "none")
	v.SetDefault("database.sqlite.path", "data/connect4.db")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("discord.token", "")
	v.SetDefault("game.prefix", "]")
	v.SetDefault("game.surface_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
}

// LoadConfig reads config.yaml from path if there is one. Every key can be
// overridden from the environment with the CONNECT4_ prefix, e.g.
// CONNECT4_DATABASE_DRIVER; CONNECT4_TOKEN sets the Discord token.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("connect4")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("discord.token", "CONNECT4_TOKEN", "CONNECT4_DISCORD_TOKEN"); err != nil {
		return nil, err
	}
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
