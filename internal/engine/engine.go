// Package engine 把精度规则、订单/仓位缓存与估值串成仪表盘的市场状态引擎。
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trading-dashboard-go/gateway"
	"trading-dashboard-go/inventory"
	"trading-dashboard-go/internal/store"
	"trading-dashboard-go/metrics"
	"trading-dashboard-go/precision"
)

// SnapshotClient 快照拉取与平仓执行的外部协作方。
// 超时/重试由实现方负责，引擎只消费成功/失败结果。
type SnapshotClient interface {
	ExchangeInfo(symbol string) ([]gateway.SymbolInfo, error)
	OpenOrders(symbol string) ([]gateway.OrderUpdate, error)
	AllOrders(symbol string, limit int) ([]gateway.OrderUpdate, error)
	PositionRisk(symbol string) ([]gateway.PositionUpdate, error)
	CloseMarket(symbol, positionSide string, qty float64, clientID string) error
}

// Config 引擎配置。
type Config struct {
	Symbols      []string // 关注的交易对
	HistoryLimit int      // 历史订单快照的行数上限
}

// Engine 市场状态引擎。
//
// 所有缓存变更都在单一事件循环 goroutine 上执行（协作式单线程模型）；
// 快照拉取在调用方 goroutine 上阻塞，结果以任务形式回注事件循环，
// 拉取期间到达的流事件照常处理。
type Engine struct {
	cfg        Config
	client     SnapshotClient
	registry   *precision.Registry
	normalizer precision.Normalizer
	orders     *store.OrderBook
	positions  *store.PositionBook
	log        *zap.Logger

	// gaugeSymbols 出现过活跃订单的交易对，只在事件循环上读写
	gaugeSymbols map[string]struct{}

	tasks  chan func()
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, client SnapshotClient, registry *precision.Registry, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 100
	}
	return &Engine{
		cfg:          cfg,
		client:       client,
		registry:     registry,
		normalizer:   precision.Normalizer{Registry: registry},
		orders:       store.NewOrderBook(),
		positions:    store.NewPositionBook(),
		log:          log,
		gaugeSymbols: make(map[string]struct{}),
		tasks:        make(chan func(), 256),
		// Start 之前投递的任务（例如初始过滤条件）先排队，事件循环启动后消化
		ctx: context.Background(),
	}
}

// Start 加载精度元数据、拉取初始快照并启动事件循环。
func (e *Engine) Start(ctx context.Context) error {
	info, err := e.client.ExchangeInfo("")
	if err != nil {
		return fmt.Errorf("load exchange metadata: %w", err)
	}
	e.registry.Load(info)

	e.ctx, e.cancel = context.WithCancel(ctx)
	e.wg.Add(1)
	go e.loop()

	if err := e.RefreshAll(); err != nil {
		// 快照失败不致命：缓存保持空态，流事件照常驱动
		e.log.Warn("initial snapshot incomplete", zap.Error(err))
	}
	return nil
}

// Stop 停止事件循环。
func (e *Engine) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	return nil
}

func (e *Engine) loop() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case task := <-e.tasks:
			task()
		}
	}
}

// submit 把一次变更投递到事件循环。引擎停止后静默丢弃。
func (e *Engine) submit(task func()) {
	select {
	case e.tasks <- task:
	case <-e.ctx.Done():
	}
}

// HandleStream 消费一条推送消息（gateway.UserStream 的 handler）。
func (e *Engine) HandleStream(msg gateway.StreamMessage) {
	e.submit(func() { e.apply(msg) })
}

// apply 在事件循环上落地一条消息。未识别类型绝不触碰缓存。
func (e *Engine) apply(msg gateway.StreamMessage) {
	switch msg.Kind {
	case gateway.StreamOrderUpdate:
		u := *msg.Order
		e.orders.ApplyUpdate(u)
		e.log.Debug("order update",
			zap.String("symbol", u.Symbol),
			zap.Int64("order_id", u.OrderID),
			zap.String("status", u.Status))
		e.updateOrderGauges()

	case gateway.StreamAccountUpdate:
		for _, p := range msg.Positions {
			e.positions.ApplyUpdate(p)
		}
		metrics.PositionsGauge.Set(float64(e.positions.Len()))

	case gateway.StreamMarkPrice:
		m := *msg.MarkPrice
		e.positions.Revalue(m.Symbol, m.MarkPrice, inventory.Revalue)

	default:
		// ignored
	}
}

// RefreshAll 依次拉取全部关注交易对的订单与仓位快照。
// 任一失败即返回错误，已成功的部分照常落地。
func (e *Engine) RefreshAll() error {
	var firstErr error
	for _, sym := range e.cfg.Symbols {
		if err := e.RefreshOrders(sym); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := e.RefreshPositions(""); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// RefreshOrders 拉取一个交易对的活跃订单快照 + 历史订单快照。
// 拉取失败时缓存保持上一份已知状态，错误交给调用方（陈旧可见优于清空）。
func (e *Engine) RefreshOrders(symbol string) error {
	open, err := e.client.OpenOrders(symbol)
	if err != nil {
		metrics.SnapshotFailuresTotal.WithLabelValues("open_orders").Inc()
		return fmt.Errorf("refresh open orders %s: %w", symbol, err)
	}
	e.submit(func() {
		e.orders.ApplySnapshot(open, symbol, true)
		e.updateOrderGauges()
	})

	history, err := e.client.AllOrders(symbol, e.cfg.HistoryLimit)
	if err != nil {
		metrics.SnapshotFailuresTotal.WithLabelValues("order_history").Inc()
		return fmt.Errorf("refresh order history %s: %w", symbol, err)
	}
	e.submit(func() {
		e.orders.ApplySnapshot(history, symbol, false)
		e.updateOrderGauges()
	})
	return nil
}

// RefreshPositions 拉取仓位快照，symbol 为空时覆盖全账户。
func (e *Engine) RefreshPositions(symbol string) error {
	positions, err := e.client.PositionRisk(symbol)
	if err != nil {
		metrics.SnapshotFailuresTotal.WithLabelValues("positions").Inc()
		return fmt.Errorf("refresh positions: %w", err)
	}
	e.submit(func() {
		e.positions.ApplySnapshot(positions, symbol)
		metrics.PositionsGauge.Set(float64(e.positions.Len()))
	})
	return nil
}

// OnReconnect 断线重连后的快照重拉（gateway.UserStream 回调）。
func (e *Engine) OnReconnect() {
	if err := e.RefreshAll(); err != nil {
		e.log.Warn("post-reconnect resync incomplete", zap.Error(err))
	}
}

// ClosePosition 以 reduce-only 市价单平掉 (symbol, side) 仓位。
// 数量先按 stepSize 归一化；上游拒单时错误文本原样透传，不自动重试。
// 成功后重拉仓位与订单快照完成对账。
func (e *Engine) ClosePosition(symbol, side string) error {
	symbol = strings.ToUpper(symbol)
	side = strings.ToUpper(side)
	p, ok := e.positions.Get(store.PositionKey{Symbol: symbol, Side: side})
	if !ok {
		return fmt.Errorf("no %s %s position", symbol, side)
	}
	qty := e.normalizer.Quantity(symbol, p.Quantity)
	if qty <= 0 {
		return fmt.Errorf("position size %.8f below step size", p.Quantity)
	}
	clientID := "dash-" + uuid.NewString()[:18]
	if err := e.client.CloseMarket(symbol, side, qty, clientID); err != nil {
		metrics.ClosePositionFailuresTotal.Inc()
		e.log.Warn("close position rejected",
			zap.String("symbol", symbol),
			zap.String("side", side),
			zap.Error(err))
		return err
	}
	e.log.Info("close position accepted",
		zap.String("symbol", symbol),
		zap.String("side", side),
		zap.Float64("qty", qty),
		zap.String("client_id", clientID))
	if err := e.RefreshPositions(""); err != nil {
		e.log.Warn("post-close position refresh failed", zap.Error(err))
	}
	if err := e.RefreshOrders(symbol); err != nil {
		e.log.Warn("post-close order refresh failed", zap.Error(err))
	}
	return nil
}

// SetOrderFilter 更新订单读时过滤条件；只影响之后的投影，不触发重拉。
func (e *Engine) SetOrderFilter(f store.OrderFilter) {
	e.submit(func() { e.orders.SetFilter(f) })
}

// Orders 当前过滤条件下的订单视图。
func (e *Engine) Orders() []store.Order { return e.orders.View() }

// Positions 当前仓位视图。
func (e *Engine) Positions() []store.Position { return e.positions.View() }

// Summary 账户级汇总。
func (e *Engine) Summary() inventory.Summary { return inventory.Summarize(e.positions.View()) }

// Normalizer 暴露给展示层做数值格式化。
func (e *Engine) Normalizer() precision.Normalizer { return e.normalizer }

// OrderBook 暴露订单缓存（订阅通知用）。
func (e *Engine) OrderBook() *store.OrderBook { return e.orders }

// PositionBook 暴露仓位缓存（订阅通知用）。
func (e *Engine) PositionBook() *store.PositionBook { return e.positions }

// updateOrderGauges 只在事件循环上调用。归零的交易对也要显式落到 0，
// 否则仪表停留在最后一个非零值。
func (e *Engine) updateOrderGauges() {
	counts := e.orders.OpenCount()
	for sym := range e.gaugeSymbols {
		if _, ok := counts[sym]; !ok {
			metrics.OpenOrdersGauge.WithLabelValues(sym).Set(0)
		}
	}
	for sym, n := range counts {
		e.gaugeSymbols[sym] = struct{}{}
		metrics.OpenOrdersGauge.WithLabelValues(sym).Set(float64(n))
	}
}
