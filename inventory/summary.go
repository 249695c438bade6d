package inventory

import "trading-dashboard-go/internal/store"

// Summary 账户级汇总，供仪表盘头部栏展示。
type Summary struct {
	Positions     int
	TotalNotional float64
	TotalPnL      float64
	TotalMargin   float64
}

// Summarize 聚合当前仓位视图。派生字段直接取自各仓位，不重新估值。
func Summarize(positions []store.Position) Summary {
	var s Summary
	for _, p := range positions {
		s.Positions++
		s.TotalNotional += p.Quantity * p.EntryPrice
		s.TotalPnL += p.PnL
		s.TotalMargin += p.Margin
	}
	return s
}
