// Package config 基于 Viper 加载服务配置：YAML 文件 + GAMEROOM_ 环境变量覆盖 + 默认值。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig HTTP 监听与静态资源
type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	StaticDir string `mapstructure:"static_dir"`
	// AllowedOrigins 为空时允许所有来源（仅限开发环境）
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// GatewayConfig WebSocket 连接参数
type GatewayConfig struct {
	SendBuffer   int           `mapstructure:"send_buffer"`
	ReadLimit    int64         `mapstructure:"read_limit"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PongWait     time.Duration `mapstructure:"pong_wait"`
}

// PingPeriod 必须小于 PongWait
func (g GatewayConfig) PingPeriod() time.Duration {
	return g.PongWait * 9 / 10
}

// BrokerConfig 单线程命令循环
type BrokerConfig struct {
	CommandBuffer   int    `mapstructure:"command_buffer"`
	DefaultActivity string `mapstructure:"default_activity"`
}

// LoggingConfig 日志级别、格式与滚动文件
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// File 为空时输出到 stdout
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Gateway GatewayConfig `mapstructure:"gateway"`
	Broker  BrokerConfig  `mapstructure:"broker"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Validate 收集所有违规项后一次性返回
func (c Config) Validate() error {
	var errs []string
	if c.Server.Addr == "" {
		errs = append(errs, "server.addr must not be empty")
	}
	if c.Gateway.SendBuffer < 1 {
		errs = append(errs, fmt.Sprintf("gateway.send_buffer must be >= 1, got %d", c.Gateway.SendBuffer))
	}
	if c.Gateway.ReadLimit < 1 {
		errs = append(errs, fmt.Sprintf("gateway.read_limit must be >= 1, got %d", c.Gateway.ReadLimit))
	}
	if c.Gateway.WriteTimeout <= 0 {
		errs = append(errs, "gateway.write_timeout must be positive")
	}
	if c.Gateway.PongWait <= 0 {
		errs = append(errs, "gateway.pong_wait must be positive")
	}
	if c.Broker.CommandBuffer < 1 {
		errs = append(errs, fmt.Sprintf("broker.command_buffer must be >= 1, got %d", c.Broker.CommandBuffer))
	}
	if c.Broker.DefaultActivity == "" {
		errs = append(errs, "broker.default_activity must not be empty")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, fmt.Sprintf("logging.level must be one of [debug, info, warn, error], got %q", c.Logging.Level))
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.Logging.Format] {
		errs = append(errs, fmt.Sprintf("logging.format must be one of [json, console], got %q", c.Logging.Format))
	}
	if c.Logging.File != "" && c.Logging.MaxSizeMB < 1 {
		errs = append(errs, fmt.Sprintf("logging.max_size_mb must be >= 1, got %d", c.Logging.MaxSizeMB))
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Load 读取配置文件（path 为空则只用默认值与环境变量），并校验
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GAMEROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}
	return LoadFromViper(v)
}

// LoadFromViper 从已配置好的 Viper 实例构建 Config
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.static_dir", "web")
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("gateway.send_buffer", 64)
	v.SetDefault("gateway.read_limit", 1<<20)
	v.SetDefault("gateway.write_timeout", "5s")
	v.SetDefault("gateway.pong_wait", "60s")

	v.SetDefault("broker.command_buffer", 256)
	v.SetDefault("broker.default_activity", "tic-tac-toe")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 7)
	v.SetDefault("logging.compress", false)
}
