package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"trading-dashboard-go/config"
	"trading-dashboard-go/internal/container"
	"trading-dashboard-go/internal/store"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	flag.Parse()

	c, err := container.New(*cfgPath)
	if err != nil {
		log.Fatalf("初始化失败: %v", err)
	}
	if err := c.Build(); err != nil {
		log.Fatalf("构建组件失败: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Start(ctx); err != nil {
		log.Fatalf("启动失败: %v", err)
	}
	logger := c.Logger()
	logger.Info("dashboard state engine started",
		zap.Strings("symbols", c.Config().Symbols),
		zap.String("env", c.Config().Env))

	// systemd 下上报就绪；非 systemd 环境返回 false，忽略即可
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	// 配置热更新：运行期只接受展示过滤条件的变化
	go func() {
		w := config.Watcher{Path: *cfgPath}
		err := w.Start(ctx, func(cfg config.AppConfig) {
			c.Engine().SetOrderFilter(store.OrderFilter{
				Symbol:   cfg.Display.DefaultSymbol,
				OpenOnly: cfg.Display.OpenOrdersOnly,
				Limit:    cfg.Display.HistoryLimit,
			})
			logger.Info("display filter reloaded",
				zap.String("symbol", cfg.Display.DefaultSymbol),
				zap.Bool("open_only", cfg.Display.OpenOrdersOnly))
		})
		if err != nil && err != context.Canceled {
			logger.Warn("config watcher exited", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	cancel()
	if err := c.Stop(); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}
