// Package config 加载仓库配置 (.pocket/config.yaml + POCKET_* 环境变量)。
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName 配置文件名，位于 .pocket 目录下
const FileName = "config.yaml"

type Config struct {
	User    UserConfig    `mapstructure:"user"`
	Core    CoreConfig    `mapstructure:"core"`
	Storage StorageConfig `mapstructure:"storage"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Meta    MetaConfig    `mapstructure:"meta"`
	Lock    LockConfig    `mapstructure:"lock"`
	Log     LogConfig     `mapstructure:"log"`
}

type UserConfig struct {
	Name  string `mapstructure:"name"`
	Email string `mapstructure:"email"`
}

type CoreConfig struct {
	DefaultTimeline string   `mapstructure:"default_timeline"`
	IgnorePatterns  []string `mapstructure:"ignore_patterns"`
}

type StorageConfig struct {
	Type string   `mapstructure:"type"` // disk | s3
	S3   S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

type CacheConfig struct {
	RedisURL string `mapstructure:"redis_url"` // 为空时不启用缓存
}

type MetaConfig struct {
	Driver   string `mapstructure:"driver"` // sqlite | postgres
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	Debug    bool   `mapstructure:"debug"`
}

type LockConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Load 读取 dataDir/config.yaml。
// v 可以为 nil；CLI 传入已绑定 flags 的实例以覆盖配置文件。
func Load(dataDir string, v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	// 1. 设置默认值
	SetDefaults(v)

	// 2. 配置文件
	v.SetConfigFile(filepath.Join(dataDir, FileName))
	v.SetConfigType("yaml")

	// 3. 环境变量 (POCKET_USER_NAME 等)
	v.SetEnvPrefix("POCKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. 读取配置文件，不存在时使用默认值
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("fatal error config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// WriteDefault 在 dataDir 下写入默认配置文件，已存在时不覆盖
func WriteDefault(dataDir string) error {
	path := filepath.Join(dataDir, FileName)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func SetDefaults(v *viper.Viper) {
	// 身份
	v.SetDefault("user.name", "Pocket User")
	v.SetDefault("user.email", "")

	// 核心
	v.SetDefault("core.default_timeline", "main")
	v.SetDefault("core.ignore_patterns", []string{".DS_Store", "*.log"})

	// 存储
	v.SetDefault("storage.type", "disk")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.prefix", "")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("cache.redis_url", "")

	// 元数据库
	v.SetDefault("meta.driver", "sqlite")
	v.SetDefault("meta.host", "localhost")
	v.SetDefault("meta.port", 5432)
	v.SetDefault("meta.user", "")
	v.SetDefault("meta.password", "")
	v.SetDefault("meta.dbname", "pocket")
	v.SetDefault("meta.sslmode", "disable")
	v.SetDefault("meta.debug", false)

	// 锁与日志
	v.SetDefault("lock.timeout", "5s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 1)
	v.SetDefault("log.max_backups", 2)
	v.SetDefault("log.max_age_days", 30)
}
