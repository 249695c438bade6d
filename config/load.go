package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env     string        `yaml:"env"`
	Gateway GatewayConfig `yaml:"gateway"`
	Symbols []string      `yaml:"symbols"`
	Display DisplayConfig `yaml:"display"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

type GatewayConfig struct {
	APIKey     string `yaml:"apiKey"`
	APISecret  string `yaml:"apiSecret"`
	BaseURL    string `yaml:"baseURL"`
	WSEndpoint string `yaml:"wsEndpoint"`
	// REST 限流参数
	RestRate  float64 `yaml:"restRate"`
	RestBurst int     `yaml:"restBurst"`
}

// DisplayConfig 控制订单/仓位视图的读时过滤默认值。
type DisplayConfig struct {
	DefaultSymbol string `yaml:"defaultSymbol"` // 空表示全部交易对
	HistoryLimit  int    `yaml:"historyLimit"`  // 历史订单快照与展示的行数上限
	OpenOrdersOnly bool  `yaml:"openOrdersOnly"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // 留空则关闭指标端点
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json 或 console
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	cfg, err := load(path)
	if err != nil {
		return cfg, err
	}
	return cfg, Validate(cfg)
}

// LoadWithEnvOverrides loads config then overrides sensitive fields from env
// vars if present. 凭据允许只放在环境变量里，不写进文件。
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("DASH_GATEWAY_API_KEY"); v != "" {
		cfg.Gateway.APIKey = v
	}
	if v := os.Getenv("DASH_GATEWAY_API_SECRET"); v != "" {
		cfg.Gateway.APISecret = v
	}
	return cfg, Validate(cfg)
}

func load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Gateway.RestRate <= 0 {
		cfg.Gateway.RestRate = 5
	}
	if cfg.Gateway.RestBurst <= 0 {
		cfg.Gateway.RestBurst = 10
	}
	if cfg.Display.HistoryLimit <= 0 {
		cfg.Display.HistoryLimit = 100
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	for i, s := range cfg.Symbols {
		cfg.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}
}

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Gateway.BaseURL == "" || cfg.Gateway.WSEndpoint == "" {
		return errors.New("gateway.baseURL/wsEndpoint is required")
	}
	if cfg.Gateway.APIKey == "" || cfg.Gateway.APISecret == "" {
		return errors.New("gateway.apiKey/apiSecret is required (or env overrides)")
	}
	if len(cfg.Symbols) == 0 {
		return errors.New("symbols config is required")
	}
	for _, s := range cfg.Symbols {
		if s == "" {
			return errors.New("symbols must not contain empty entries")
		}
	}
	if cfg.Display.DefaultSymbol != "" {
		found := false
		for _, s := range cfg.Symbols {
			if strings.EqualFold(s, cfg.Display.DefaultSymbol) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("display.defaultSymbol %s not in symbols", cfg.Display.DefaultSymbol)
		}
	}
	return nil
}
