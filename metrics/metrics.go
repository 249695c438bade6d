// Package metrics provides Prometheus metrics for the dashboard state engine
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WSConnected user stream 连接状态（1=已连接）。
	WSConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_ws_connected",
		Help: "User data stream connection state (1=connected)",
	})

	// StreamEventsTotal 按消息类型统计已处理的推送事件。
	StreamEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_stream_events_total",
		Help: "Stream events processed, by kind",
	}, []string{"kind"})

	// SnapshotFailuresTotal REST 快照拉取失败次数。
	SnapshotFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_snapshot_failures_total",
		Help: "Failed REST snapshot fetches, by source",
	}, []string{"source"})

	// UnknownSymbolFallbackTotal 精度规则缺失、回退默认规则的次数。
	UnknownSymbolFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_unknown_symbol_fallback_total",
		Help: "Precision lookups that fell back to the default rule",
	})

	// OpenOrdersGauge 当前缓存中的非终态订单数。
	OpenOrdersGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dashboard_open_orders",
		Help: "Non-terminal orders currently cached",
	}, []string{"symbol"})

	// PositionsGauge 当前缓存中的仓位数。
	PositionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_positions",
		Help: "Positions currently cached",
	})

	// ClosePositionFailuresTotal 平仓请求被拒的次数。
	ClosePositionFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_close_position_failures_total",
		Help: "Close-position requests rejected upstream",
	})
)

// StartMetricsServer 启动 Prometheus 指标端点。
func StartMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}
