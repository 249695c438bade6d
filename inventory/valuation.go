// Package inventory 基于标记价格对持仓做逐仓估值。
package inventory

import "trading-dashboard-go/internal/store"

// Revalue 用最新标记价重算一个仓位的派生展示字段。
// 纯投影：只写 MarkPrice/PnL/PnLPercent，权威字段原样带回；
// 同一 (entry, qty, side, mark) 输入恒得逐位一致的输出。
func Revalue(p store.Position, mark float64) store.Position {
	diff := mark - p.EntryPrice
	pnl := diff * p.Quantity
	if !p.Long() {
		pnl = -pnl
	}
	notional := p.Quantity * p.EntryPrice
	pct := 0.0
	if notional > 0 {
		pct = pnl / notional * 100
	}
	p.MarkPrice = mark
	p.PnL = pnl
	p.PnLPercent = pct
	return p
}
