package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Capture  CaptureConfig  `mapstructure:"capture"`
	Stats    StatsConfig    `mapstructure:"stats"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	SSH      SSHConfig      `mapstructure:"ssh"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// CaptureConfig 采集配置
type CaptureConfig struct {
	// Security API 访问方式：none（HTTP）、self（自签名证书）、CA
	Security string `mapstructure:"security"`
	// Workers 同时运行的采集任务数
	Workers int `mapstructure:"workers"`
	// Timeout 单个 API 请求超时
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries 可重试错误的最大重试次数
	MaxRetries int `mapstructure:"max_retries"`
	// OutputDir 采集结果输出目录
	OutputDir string `mapstructure:"output_dir"`
	// MaskIP 输出中遮蔽管理地址（保留最后一段）
	MaskIP bool `mapstructure:"mask_ip"`
	// RecordDir/ReplayDir 调试用的记录与回放目录
	RecordDir string `mapstructure:"record_dir"`
	ReplayDir string `mapstructure:"replay_dir"`
}

// StatsConfig 统计采样配置
type StatsConfig struct {
	// Interval 采样间隔，低于 2.1 秒会被抬高到下限
	Interval time.Duration `mapstructure:"interval"`
	// MaxSamples 最大采样次数
	MaxSamples int `mapstructure:"max_samples"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

// SQLiteConfig SQLite配置
type SQLiteConfig struct {
	Path            string        `mapstructure:"path"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// StorageConfig 采集档案存储配置
type StorageConfig struct {
	// Backend 存储后端：local | minio
	Backend string      `mapstructure:"backend"`
	Local   LocalConfig `mapstructure:"local"`
	Minio   MinioConfig `mapstructure:"minio"`
}

// LocalConfig 本地存储配置
type LocalConfig struct {
	BaseDir        string `mapstructure:"base_dir"`
	MkdirIfMissing bool   `mapstructure:"mkdir_if_missing"`
}

// MinioConfig 对象存储配置
type MinioConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Secure    bool   `mapstructure:"secure"`
}

// SSHConfig SSH配置
type SSHConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	KeepAliveInterval time.Duration `mapstructure:"keep_alive_interval"`
	MaxIdle           int           `mapstructure:"max_idle"`
	MaxActive         int           `mapstructure:"max_active"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

var globalConfig *Config

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	viper.SetConfigType("yaml")

	// 设置默认值
	setDefaults()

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		// 默认配置文件路径
		viper.SetConfigName("config")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("../configs")
		viper.AddConfigPath("../../configs")
	}

	// 设置环境变量前缀
	viper.SetEnvPrefix("SANSCOPE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	globalConfig = &config
	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// 采集默认：自签名证书、单请求 60s 超时、最多 5 次重试
	viper.SetDefault("capture.security", "self")
	viper.SetDefault("capture.workers", 4)
	viper.SetDefault("capture.timeout", 60*time.Second)
	viper.SetDefault("capture.max_retries", 5)
	viper.SetDefault("capture.output_dir", "./data/captures")
	viper.SetDefault("capture.mask_ip", true)

	// 统计采样默认：10s 间隔，无上限由调用方控制
	viper.SetDefault("stats.interval", 10*time.Second)
	viper.SetDefault("stats.max_samples", 100)

	viper.SetDefault("database.sqlite.path", "./data/sanscope.db")
	viper.SetDefault("database.sqlite.max_idle_conns", 2)
	viper.SetDefault("database.sqlite.max_open_conns", 8)
	viper.SetDefault("database.sqlite.conn_max_lifetime", time.Hour)

	viper.SetDefault("storage.backend", "local")
	viper.SetDefault("storage.local.base_dir", "./data/archives")
	viper.SetDefault("storage.local.mkdir_if_missing", true)
	viper.SetDefault("storage.minio.secure", false)
	viper.SetDefault("storage.minio.bucket", "sanscope")

	viper.SetDefault("ssh.timeout", 30*time.Second)
	viper.SetDefault("ssh.keep_alive_interval", 30*time.Second)
	viper.SetDefault("ssh.max_idle", 4)
	viper.SetDefault("ssh.max_active", 16)
	viper.SetDefault("ssh.idle_timeout", 5*time.Minute)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("log.file_path", "./logs/sanscope.log")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 5)
	viper.SetDefault("log.max_age", 30)
}

// Default 不读配置文件，只用默认值与环境变量
// 命令行工具在没有 config.yaml 的环境下使用
func Default() *Config {
	setDefaults()
	viper.SetEnvPrefix("SANSCOPE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		// 默认值解组不会失败，失败说明结构定义坏了
		panic(fmt.Sprintf("unmarshal default config: %v", err))
	}
	globalConfig = &config
	return &config
}

// Get 获取全局配置
func Get() *Config {
	return globalConfig
}

// GetServerAddr 获取服务器地址
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
