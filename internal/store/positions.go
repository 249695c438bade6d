package store

import (
	"sort"
	"strings"

	"trading-dashboard-go/gateway"
)

// PositionKey 对冲模式下同一交易对可同时持有 LONG/SHORT，因此按 (symbol, side) 入库。
type PositionKey struct {
	Symbol string
	Side   string
}

// Position 缓存中的仓位实体。
// Quantity/EntryPrice/Margin/Leverage 以快照与流为权威；
// MarkPrice/PnL/PnLPercent 为派生展示字段，每个标记价 tick 重算，绝不反向回写。
type Position struct {
	Symbol     string
	Side       string // LONG/SHORT
	Quantity   float64
	EntryPrice float64
	Margin     float64
	Leverage   float64

	MarkPrice  float64
	PnL        float64
	PnLPercent float64

	StopLoss   float64 // 0 表示未设置
	TakeProfit float64
}

func (p Position) StoreKey() PositionKey {
	return PositionKey{Symbol: p.Symbol, Side: p.Side}
}

// Long 是否多头。
func (p Position) Long() bool { return strings.EqualFold(p.Side, "LONG") }

// PositionBook 仓位缓存。
type PositionBook struct {
	store  *Store[PositionKey, Position]
	symbol string // 读时过滤，空表示全部
}

func NewPositionBook() *PositionBook {
	return &PositionBook{store: New[PositionKey, Position]()}
}

// ApplyUpdate 落地一条 ACCOUNT_UPDATE 仓位记录。
// 数量归零即仓位已平，从缓存删除；单向模式的平仓记录带 BOTH 标记、
// 方向不可知，两侧一起清。否则覆盖权威字段、保留派生字段与
// 推送里不携带的 Leverage/止盈止损设置。
func (b *PositionBook) ApplyUpdate(u gateway.PositionUpdate) {
	key := PositionKey{Symbol: u.Symbol, Side: u.Side}
	if u.Quantity == 0 {
		if u.Side == "" || strings.EqualFold(u.Side, "BOTH") {
			b.store.Remove(PositionKey{Symbol: u.Symbol, Side: "LONG"})
			b.store.Remove(PositionKey{Symbol: u.Symbol, Side: "SHORT"})
			return
		}
		b.store.Remove(key)
		return
	}
	b.store.Apply(key, func(prev Position, ok bool) Position {
		next := Position{
			Symbol:     u.Symbol,
			Side:       u.Side,
			Quantity:   u.Quantity,
			EntryPrice: u.EntryPrice,
			Margin:     u.Margin,
			Leverage:   u.Leverage,
		}
		if ok {
			if next.Leverage == 0 {
				next.Leverage = prev.Leverage
			}
			if next.Margin == 0 {
				next.Margin = prev.Margin
			}
			next.MarkPrice = prev.MarkPrice
			next.PnL = prev.PnL
			next.PnLPercent = prev.PnLPercent
			next.StopLoss = prev.StopLoss
			next.TakeProfit = prev.TakeProfit
		}
		return next
	})
}

// ApplySnapshot 落地一次 positionRisk 快照。覆盖范围是快照请求的交易对
// （symbol 为空时是全账户）；范围内缺席的仓位删除，范围外保持原样。
// 快照不携带派生字段，已有仓位的派生值保留到下一个标记价 tick。
func (b *PositionBook) ApplySnapshot(updates []gateway.PositionUpdate, symbol string) {
	positions := make([]Position, 0, len(updates))
	for _, u := range updates {
		if u.Quantity == 0 {
			continue
		}
		p := Position{
			Symbol:     u.Symbol,
			Side:       u.Side,
			Quantity:   u.Quantity,
			EntryPrice: u.EntryPrice,
			Margin:     u.Margin,
			Leverage:   u.Leverage,
		}
		if prev, ok := b.store.Get(p.StoreKey()); ok {
			p.MarkPrice = prev.MarkPrice
			p.PnL = prev.PnL
			p.PnLPercent = prev.PnLPercent
			p.StopLoss = prev.StopLoss
			p.TakeProfit = prev.TakeProfit
		}
		positions = append(positions, p)
	}
	var inScope func(Position) bool
	if symbol == "" {
		inScope = func(Position) bool { return true }
	} else {
		inScope = func(p Position) bool { return strings.EqualFold(p.Symbol, symbol) }
	}
	b.store.ApplySnapshot(positions, inScope)
}

// Revalue 对指定交易对的全部仓位应用一次派生字段重算。
// project 必须只改派生字段；每个 tick 都基于存量权威字段全量重算，不做增量累加。
func (b *PositionBook) Revalue(symbol string, mark float64, project func(Position, float64) Position) {
	for _, p := range b.store.View(func(p Position) bool {
		return strings.EqualFold(p.Symbol, symbol)
	}, 0) {
		b.store.Apply(p.StoreKey(), func(prev Position, ok bool) Position {
			if !ok {
				return p
			}
			return project(prev, mark)
		})
	}
}

// SetProtection 记录仓位的止损/止盈展示值。仓位不存在时忽略。
func (b *PositionBook) SetProtection(key PositionKey, stopLoss, takeProfit float64) {
	if _, ok := b.store.Get(key); !ok {
		return
	}
	b.store.Apply(key, func(prev Position, _ bool) Position {
		prev.StopLoss = stopLoss
		prev.TakeProfit = takeProfit
		return prev
	})
}

// SetSymbolFilter 更新读时过滤条件，空表示全部交易对。
func (b *PositionBook) SetSymbolFilter(symbol string) { b.symbol = symbol }

// View 按当前过滤条件投影，按交易对+方向稳定排序。
func (b *PositionBook) View() []Position {
	var filter func(Position) bool
	if b.symbol != "" {
		filter = func(p Position) bool { return strings.EqualFold(p.Symbol, b.symbol) }
	}
	out := b.store.View(filter, 0)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Side < out[j].Side
	})
	return out
}

// Get 按 (symbol, side) 读取。
func (b *PositionBook) Get(key PositionKey) (Position, bool) { return b.store.Get(key) }

// Len 当前仓位数。
func (b *PositionBook) Len() int { return b.store.Len() }

// Subscribe 注册唯一监听者。
func (b *PositionBook) Subscribe(fn func(Change[PositionKey, Position])) error {
	return b.store.Subscribe(fn)
}

// Unsubscribe 退订。
func (b *PositionBook) Unsubscribe() { b.store.Unsubscribe() }
