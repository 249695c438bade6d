package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"trading-dashboard-go/internal/store"
)

func TestRevalueLong(t *testing.T) {
	p := store.Position{Symbol: "BTCUSDT", Side: "LONG", Quantity: 2, EntryPrice: 100}

	got := Revalue(p, 110)
	assert.Equal(t, 110.0, got.MarkPrice)
	assert.Equal(t, 20.0, got.PnL)
	assert.Equal(t, 10.0, got.PnLPercent)

	// 反向行情亏损为负
	got = Revalue(p, 95)
	assert.Equal(t, -10.0, got.PnL)
	assert.Equal(t, -5.0, got.PnLPercent)
}

func TestRevalueShort(t *testing.T) {
	p := store.Position{Symbol: "BTCUSDT", Side: "SHORT", Quantity: 2, EntryPrice: 100}

	got := Revalue(p, 90)
	assert.Equal(t, 20.0, got.PnL)
	assert.Equal(t, 10.0, got.PnLPercent)

	got = Revalue(p, 110)
	assert.Equal(t, -20.0, got.PnL)
	assert.Equal(t, -10.0, got.PnLPercent)
}

func TestRevalueZeroNotional(t *testing.T) {
	p := store.Position{Symbol: "NEWUSDT", Side: "LONG", Quantity: 5, EntryPrice: 0}
	got := Revalue(p, 10)
	assert.Equal(t, 50.0, got.PnL)
	assert.Equal(t, 0.0, got.PnLPercent, "名义价值为零时百分比取 0，不产生 Inf")
}

func TestRevalueOnlyWritesDerivedFields(t *testing.T) {
	p := store.Position{
		Symbol: "BTCUSDT", Side: "LONG", Quantity: 0.5, EntryPrice: 50000,
		Margin: 2500, Leverage: 10, StopLoss: 48000, TakeProfit: 55000,
	}
	got := Revalue(p, 51000)

	assert.Equal(t, p.Quantity, got.Quantity)
	assert.Equal(t, p.EntryPrice, got.EntryPrice)
	assert.Equal(t, p.Margin, got.Margin)
	assert.Equal(t, p.Leverage, got.Leverage)
	assert.Equal(t, p.StopLoss, got.StopLoss)
	assert.Equal(t, p.TakeProfit, got.TakeProfit)
}

func TestRevalueDeterministic(t *testing.T) {
	p := store.Position{Symbol: "ETHUSDT", Side: "SHORT", Quantity: 1.234, EntryPrice: 3210.55}
	a := Revalue(p, 3198.42)
	b := Revalue(p, 3198.42)
	assert.Equal(t, a, b)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]store.Position{
		{Symbol: "BTCUSDT", Side: "LONG", Quantity: 0.5, EntryPrice: 50000, Margin: 2500, PnL: 500},
		{Symbol: "ETHUSDT", Side: "SHORT", Quantity: 2, EntryPrice: 3000, Margin: 600, PnL: -120},
	})
	assert.Equal(t, 2, s.Positions)
	assert.Equal(t, 31000.0, s.TotalNotional)
	assert.Equal(t, 380.0, s.TotalPnL)
	assert.Equal(t, 3100.0, s.TotalMargin)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
}
