// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Storage   StorageConfig   `mapstructure:"storage"`
	ClamAV    ClamAVConfig    `mapstructure:"clamav"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Schema    SchemaConfig    `mapstructure:"schema"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
// Topic 承载上传完成请求，ResultTopic 承载处理结果。
type KafkaConfig struct {
	Brokers     string `mapstructure:"brokers"`
	Topic       string `mapstructure:"topic"`
	ResultTopic string `mapstructure:"result_topic"`
	GroupID     string `mapstructure:"group_id"`
}

// StorageConfig 存储本地文件落盘相关的配置。
// TempRoot 和 DestRoot 必须位于同一个卷上，否则 rename 无法保证原子性。
type StorageConfig struct {
	TempRoot string `mapstructure:"temp_root"`
	DestRoot string `mapstructure:"dest_root"`
}

// ClamAVConfig 控制恶意软件扫描。
type ClamAVConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Binary  string        `mapstructure:"binary"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RetryConfig 控制元数据写入的重试策略。
type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

// SchemaConfig 控制租户 schema 目录的缓存。
type SchemaConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// ReconcileConfig 控制孤儿文件清扫。
type ReconcileConfig struct {
	GracePeriod time.Duration `mapstructure:"grace_period"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8081")
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.mysql.dsn", "")
	v.SetDefault("database.redis.addr", "localhost:6379")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_token_expire_hours", 24)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "")
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "file_processor.file-upload")
	v.SetDefault("kafka.result_topic", "file_processor.file-upload.result")
	v.SetDefault("kafka.group_id", "file-processor")
	v.SetDefault("storage.temp_root", "/data/tmp")
	v.SetDefault("storage.dest_root", "/data/files")
	v.SetDefault("clamav.enabled", false)
	v.SetDefault("clamav.binary", "clamdscan")
	v.SetDefault("clamav.timeout", 2*time.Minute)
	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.initial_interval", 200*time.Millisecond)
	v.SetDefault("retry.max_interval", 5*time.Second)
	v.SetDefault("schema.cache_ttl", 5*time.Minute)
	v.SetDefault("reconcile.grace_period", 24*time.Hour)
}

// Load 从指定路径读取 YAML 配置，环境变量优先（例如 CLAMAV_ENABLED=true）。
func Load(configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if cfg.Retry.MaxAttempts < 1 {
		return Config{}, fmt.Errorf("retry.max_attempts 必须 >= 1, 当前为 %d", cfg.Retry.MaxAttempts)
	}
	return cfg, nil
}

// Init 初始化配置加载，并解析到全局 Conf 变量中。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}
