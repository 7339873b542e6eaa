package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
	Payment  PaymentConfig  `mapstructure:"payment"`
}

type AppConfig struct {
	Name       string `mapstructure:"name"`
	Port       int    `mapstructure:"port"`
	HealthPort int    `mapstructure:"health_port"`
	Mode       string `mapstructure:"mode"`
	LogLevel   string `mapstructure:"log_level"`
	NodeID     int64  `mapstructure:"node_id"`
}

type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	WorkerCount   int           `mapstructure:"worker_count"`
	BufferSize    int           `mapstructure:"buffer_size"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN PostgreSQL 连接串
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Addr Redis 地址
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type JWTConfig struct {
	SecretKey string `mapstructure:"secret_key"`
}

// StorageConfig 存储驱动：postgres 或 memory
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	// SeedUsers 内存模式下预置的用户（余额为默认值），系统账号总是会被预置
	SeedUsers []int64 `mapstructure:"seed_users"`
}

type ChatConfig struct {
	SystemAccountID int64         `mapstructure:"system_account_id"`
	WelcomeMessage  string        `mapstructure:"welcome_message"`
	StoreTimeout    time.Duration `mapstructure:"store_timeout"`
	PresenceTimeout time.Duration `mapstructure:"presence_timeout"`
	OnlineTTL       time.Duration `mapstructure:"online_ttl"`
	Retry           RetryConfig   `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

// WalletConfig 充值档位：支付金额（分）-> 消息额度
type WalletConfig struct {
	Tiers map[string]TierConfig `mapstructure:"tiers"`
}

type TierConfig struct {
	Amount  int64 `mapstructure:"amount"`
	Credits int64 `mapstructure:"credits"`
}

type PaymentConfig struct {
	Endpoint         string        `mapstructure:"endpoint"`
	APIKey           string        `mapstructure:"api_key"`
	Currency         string        `mapstructure:"currency"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "chat-engine")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.health_port", 8081)
	v.SetDefault("app.mode", "release")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.node_id", 1)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.max_reconnects", 60)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)
	v.SetDefault("nats.worker_count", 32)
	v.SetDefault("nats.buffer_size", 4096)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "chat")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)

	v.SetDefault("jwt.secret_key", "")

	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("storage.seed_users", []int64{})

	v.SetDefault("chat.system_account_id", 0)
	v.SetDefault("chat.welcome_message", "Welcome! Say hi to someone new today.")
	v.SetDefault("chat.store_timeout", 3*time.Second)
	v.SetDefault("chat.presence_timeout", 5*time.Second)
	v.SetDefault("chat.online_ttl", 10*time.Minute)
	v.SetDefault("chat.retry.max_attempts", 3)
	v.SetDefault("chat.retry.initial_interval", 100*time.Millisecond)
	v.SetDefault("chat.retry.max_interval", time.Second)

	v.SetDefault("wallet.tiers", map[string]any{
		"tier1": map[string]any{"amount": 1000, "credits": 20},
		"tier2": map[string]any{"amount": 2000, "credits": 50},
		"tier3": map[string]any{"amount": 5000, "credits": 150},
	})

	v.SetDefault("payment.endpoint", "")
	v.SetDefault("payment.api_key", "")
	v.SetDefault("payment.currency", "usd")
	v.SetDefault("payment.timeout", 10*time.Second)
	v.SetDefault("payment.failure_threshold", 5)
	v.SetDefault("payment.open_timeout", 30*time.Second)
}

// Load 从指定路径加载配置，环境变量（如 CHAT_DATABASE_PASSWORD）覆盖文件中的值
func Load(configPath string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验关键配置
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Chat.SystemAccountID <= 0 {
		return errors.New("config: chat.system_account_id is required")
	}
	if c.Chat.Retry.MaxAttempts < 1 {
		return errors.New("config: chat.retry.max_attempts must be at least 1")
	}
	for name, tier := range c.Wallet.Tiers {
		if tier.Amount <= 0 || tier.Credits <= 0 {
			return fmt.Errorf("config: wallet tier %q needs positive amount and credits", name)
		}
	}
	return nil
}
