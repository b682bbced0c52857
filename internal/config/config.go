// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个网关的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Firebird  FirebirdConfig  `mapstructure:"firebird"`
	Storage   StorageConfig   `mapstructure:"storage"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Journal   JournalConfig   `mapstructure:"journal"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ServerConfig 存储 HTTP 服务器相关的配置。
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// FirebirdConfig 是客户数据库连接的固定服务参数，
// 每个请求会把它与调用方提交的连接描述合并成一次性的连接选项。
type FirebirdConfig struct {
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	Role           string        `mapstructure:"role"`
	DefaultPort    int           `mapstructure:"default_port"`
	PageSize       int           `mapstructure:"page_size"`
	Charset        string        `mapstructure:"charset"`
	LowercaseKeys  bool          `mapstructure:"lowercase_keys"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	QueryTimeout   time.Duration `mapstructure:"query_timeout"`
}

// StorageConfig 决定目录模式 (CATALOG) 下文件体从哪里读取。
type StorageConfig struct {
	// CatalogBackend 取值 fs 或 minio
	CatalogBackend string `mapstructure:"catalog_backend"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// GeneratorConfig 存储外部文档生成程序的配置。
type GeneratorConfig struct {
	ExecutablePath string        `mapstructure:"executable_path"`
	WorkDir        string        `mapstructure:"work_dir"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Env            []string      `mapstructure:"env"`
}

// LimitsConfig 限制同时打开的数据库会话和外部进程数量，0 表示不限制。
type LimitsConfig struct {
	MaxSessions   int64 `mapstructure:"max_sessions"`
	MaxGenerators int64 `mapstructure:"max_generators"`
}

// DatabaseConfig 存储网关自身使用的数据库连接配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储访问日志库 (MySQL) 的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// JournalConfig 控制访问日志是否落库。
type JournalConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// RateLimitConfig 配置基于 Redis 的固定窗口限流。
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled"`
	RequestsPerMinute int64 `mapstructure:"requests_per_minute"`
}

// MetricsConfig 配置 Prometheus 指标。
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// SetDefaults 写入所有默认值，未出现在配置文件中的键使用这些值。
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3061")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("firebird.user", "SYSDBA")
	v.SetDefault("firebird.password", "masterkey")
	v.SetDefault("firebird.default_port", 3050)
	v.SetDefault("firebird.page_size", 4096)
	v.SetDefault("firebird.charset", "UTF8")
	v.SetDefault("firebird.lowercase_keys", true)
	v.SetDefault("firebird.connect_timeout", 10*time.Second)
	v.SetDefault("firebird.query_timeout", 60*time.Second)

	v.SetDefault("storage.catalog_backend", "fs")

	v.SetDefault("generator.executable_path", "./bin/docgen")
	v.SetDefault("generator.timeout", 2*time.Minute)

	v.SetDefault("limits.max_sessions", 64)
	v.SetDefault("limits.max_generators", 4)

	v.SetDefault("kafka.topic", "crm-gateway-access")
	v.SetDefault("kafka.group_id", "crm-gateway-journal")

	v.SetDefault("ratelimit.requests_per_minute", 600)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load 从指定路径读取 YAML 配置，环境变量 CRMGW_* 可以覆盖文件中的值。
// 配置文件不存在时只使用默认值。
func Load(configPath string) (Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CRMGW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// SetConfigFile 指定了具体文件时，缺失文件返回的是 *fs.PathError 而不是 ConfigFileNotFoundError
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return cfg, nil
}

// Init 加载配置到全局变量 Conf，失败时直接 panic。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}
