package container

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"trading-dashboard-go/config"
	"trading-dashboard-go/gateway"
	"trading-dashboard-go/infrastructure/alert"
	"trading-dashboard-go/infrastructure/logger"
	"trading-dashboard-go/internal/engine"
	"trading-dashboard-go/internal/store"
	"trading-dashboard-go/metrics"
	"trading-dashboard-go/precision"
)

// Container 依赖注入容器，管理所有组件的生命周期
type Container struct {
	cfg *config.AppConfig

	logger *logger.Logger
	alerts *alert.Manager

	restClient *gateway.BinanceRESTClient
	userStream *gateway.UserStream

	registry *precision.Registry
	engine   *engine.Engine

	metricsServer *http.Server
	lifecycle     *LifecycleManager
}

// New 创建新的Container实例
func New(configPath string) (*Container, error) {
	cfg, err := config.LoadWithEnvOverrides(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	return &Container{
		cfg:       &cfg,
		lifecycle: NewLifecycleManager(),
	}, nil
}

// Build 构建所有组件
func (c *Container) Build() error {
	log, err := logger.New(logger.Config{
		Level:  c.cfg.Log.Level,
		Format: c.cfg.Log.Format,
	})
	if err != nil {
		return fmt.Errorf("build logger failed: %w", err)
	}
	c.logger = log
	c.alerts = alert.NewManager(
		[]alert.Channel{alert.NewZapChannel("log", log.Logger)},
		time.Minute,
	)

	c.restClient = &gateway.BinanceRESTClient{
		BaseURL:      c.cfg.Gateway.BaseURL,
		APIKey:       c.cfg.Gateway.APIKey,
		Secret:       c.cfg.Gateway.APISecret,
		HTTPClient:   gateway.NewDefaultHTTPClient(),
		RecvWindowMs: 5000,
		Limiter:      gateway.NewTokenBucketLimiter(c.cfg.Gateway.RestRate, c.cfg.Gateway.RestBurst),
	}

	c.registry = precision.NewRegistry(log.Logger)
	c.engine = engine.New(engine.Config{
		Symbols:      c.cfg.Symbols,
		HistoryLimit: c.cfg.Display.HistoryLimit,
	}, c.restClient, c.registry, log.Logger)
	c.engine.SetOrderFilter(store.OrderFilter{
		Symbol:   c.cfg.Display.DefaultSymbol,
		OpenOnly: c.cfg.Display.OpenOrdersOnly,
		Limit:    c.cfg.Display.HistoryLimit,
	})

	lk := &gateway.ListenKeyClient{
		BaseURL:    c.cfg.Gateway.BaseURL,
		APIKey:     c.cfg.Gateway.APIKey,
		HTTPClient: gateway.NewListenKeyHTTPClient(),
	}
	c.userStream = gateway.NewUserStream(c.cfg.Gateway.WSEndpoint, lk, c.engine.HandleStream, log.Logger)
	for _, sym := range c.cfg.Symbols {
		c.userStream.SubscribeMarkPrice(sym)
	}
	c.userStream.OnReconnect = c.engine.OnReconnect
	c.userStream.OnFatalError = func(err error) {
		_ = c.alerts.Send(alert.Alert{
			Level:   "CRITICAL",
			Message: "user stream unrecoverable, dashboard state frozen",
			Fields:  map[string]interface{}{"error": err.Error()},
		})
	}

	c.registerLifecycle()
	return nil
}

func (c *Container) registerLifecycle() {
	c.lifecycle.Register(&funcComponent{
		name:  "engine",
		start: c.engine.Start,
		stop:  c.engine.Stop,
	})
	c.lifecycle.Register(&funcComponent{
		name: "user_stream",
		start: func(context.Context) error {
			return c.userStream.Start()
		},
		stop: func() error {
			c.userStream.Stop()
			return nil
		},
	})
	if c.cfg.Metrics.Addr != "" {
		c.lifecycle.Register(&funcComponent{
			name: "metrics",
			start: func(context.Context) error {
				c.metricsServer = metrics.StartMetricsServer(c.cfg.Metrics.Addr)
				c.logger.Info("metrics listening", zap.String("addr", c.cfg.Metrics.Addr))
				return nil
			},
			stop: func() error {
				if c.metricsServer == nil {
					return nil
				}
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				return c.metricsServer.Shutdown(ctx)
			},
		})
	}
}

// Start 按顺序启动所有组件
func (c *Container) Start(ctx context.Context) error {
	return c.lifecycle.StartAll(ctx)
}

// Stop 逆序停止所有组件并落盘日志
func (c *Container) Stop() error {
	err := c.lifecycle.StopAll()
	if c.logger != nil {
		_ = c.logger.Close()
	}
	return err
}

// Engine 暴露状态引擎给上层（HTTP 展示层等）。
func (c *Container) Engine() *engine.Engine { return c.engine }

// Logger 暴露根日志器。
func (c *Container) Logger() *logger.Logger { return c.logger }

// Config 当前配置。
func (c *Container) Config() *config.AppConfig { return c.cfg }
