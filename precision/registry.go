// Package precision derives per-symbol rounding rules from exchange metadata
// and applies them to raw prices and quantities.
package precision

import (
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"trading-dashboard-go/gateway"
	"trading-dashboard-go/metrics"
)

// SymbolRule 某交易对的精度规则，加载后不可变。
type SymbolRule struct {
	Symbol            string
	PricePrecision    int
	QuantityPrecision int
	TickSize          string
	StepSize          string

	tick        float64 // 解析失败时为 0，表示跳过对齐
	step        float64
	minNotional float64
}

// DefaultRule 未知交易对的回退规则。
var DefaultRule = SymbolRule{
	Symbol:            "",
	PricePrecision:    4,
	QuantityPrecision: 3,
	TickSize:          "0.0001",
	StepSize:          "0.001",
	tick:              0.0001,
	step:              0.001,
}

// Registry 保存全部交易对的精度规则。Load 整体替换，RuleFor 永不失败。
type Registry struct {
	mu     sync.RWMutex
	rules  map[string]SymbolRule
	warned map[string]bool
	log    *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		rules:  make(map[string]SymbolRule),
		warned: make(map[string]bool),
		log:    log,
	}
}

// Load 从 exchangeInfo 元数据构建规则集并原子替换旧集合。
// 缺少 PRICE_FILTER 或 LOT_SIZE 的交易对跳过，后续查询回退默认规则。
func (r *Registry) Load(infos []gateway.SymbolInfo) {
	rules := make(map[string]SymbolRule, len(infos))
	for _, info := range infos {
		if !info.HasFilters() {
			r.log.Warn("symbol missing price or lot size filter, skipped",
				zap.String("symbol", info.Symbol))
			continue
		}
		rules[info.Symbol] = SymbolRule{
			Symbol:            info.Symbol,
			PricePrecision:    PrecisionFromSize(info.TickSize),
			QuantityPrecision: PrecisionFromSize(info.StepSize),
			TickSize:          info.TickSize,
			StepSize:          info.StepSize,
			tick:              parseSize(info.TickSize),
			step:              parseSize(info.StepSize),
			minNotional:       parseSize(info.MinNotional),
		}
	}
	r.mu.Lock()
	r.rules = rules
	r.warned = make(map[string]bool)
	r.mu.Unlock()
	r.log.Info("precision rules loaded", zap.Int("symbols", len(rules)))
}

// RuleFor 返回交易对的规则；未知交易对回退默认规则并告警一次。
func (r *Registry) RuleFor(symbol string) SymbolRule {
	r.mu.RLock()
	rule, ok := r.rules[symbol]
	r.mu.RUnlock()
	if ok {
		return rule
	}
	r.mu.Lock()
	if !r.warned[symbol] {
		r.warned[symbol] = true
		r.log.Warn("no precision rule for symbol, using default",
			zap.String("symbol", symbol))
	}
	r.mu.Unlock()
	metrics.UnknownSymbolFallbackTotal.Inc()
	return DefaultRule
}

// PrecisionFromSize returns the number of significant fractional digits in a
// decimal size string: "0.01"→2, "0.00100000"→3, "1.00000000"→0, "0"→0.
func PrecisionFromSize(s string) int {
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return 0
	}
	frac := s[dot+1:]
	for i := len(frac) - 1; i >= 0; i-- {
		if frac[i] != '0' {
			return i + 1
		}
	}
	return 0
}

// parseSize 解析 tick/step 字符串；格式非法按 0 处理（跳过对齐，绝不致命）。
func parseSize(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
