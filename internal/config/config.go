package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "INVENTORY"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Store    StoreConfig    `mapstructure:"store"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Log      LogConfig      `mapstructure:"log"`
	Reports  ReportsConfig  `mapstructure:"reports"`
}

type ServerConfig struct {
	HTTPPort int `mapstructure:"http_port"`
	GRPCPort int `mapstructure:"grpc_port"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnectTries    int           `mapstructure:"connect_tries"`
	ConnectInterval time.Duration `mapstructure:"connect_interval"`
	Migrate         bool          `mapstructure:"migrate"`
}

type StoreConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type SnapshotConfig struct {
	Backend        string `mapstructure:"backend"`
	Path           string `mapstructure:"path"`
	SaveOnShutdown bool   `mapstructure:"save_on_shutdown"`
}

type RedisConfig struct {
	Addr string `mapstructure:"addr"`
	Key  string `mapstructure:"key"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type TracingConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type ReportsConfig struct {
	LowStockThreshold int `mapstructure:"low_stock_threshold"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.grpc_port", 50051)
	v.SetDefault("database.dsn", "root:root@tcp(localhost:3306)/inventory?parseTime=true")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.connect_tries", 5)
	v.SetDefault("database.connect_interval", 2*time.Second)
	v.SetDefault("database.migrate", true)
	v.SetDefault("store.timeout", 5*time.Second)
	v.SetDefault("snapshot.backend", "file")
	v.SetDefault("snapshot.path", "data/snapshot.json")
	v.SetDefault("snapshot.save_on_shutdown", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.key", "inventory:snapshot")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "inventory.transactions")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("reports.low_stock_threshold", 10)
}

// Load reads the yaml file at path, or ./config/config.yaml when path is empty. A missing
// file is not an error; defaults and INVENTORY_* environment variables still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("./config/")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(path != "" && errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	for _, key := range v.AllKeys() {
		if s, ok := v.Get(key).(string); ok {
			v.Set(key, os.ExpandEnv(s))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Snapshot.Backend {
	case "file", "redis", "none":
	default:
		return fmt.Errorf("snapshot.backend must be file, redis or none, got %q", c.Snapshot.Backend)
	}
	if c.Snapshot.Backend == "file" && c.Snapshot.Path == "" {
		return errors.New("snapshot.path is required for the file backend")
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.Database.ConnectTries < 1 {
		c.Database.ConnectTries = 1
	}
	return nil
}
