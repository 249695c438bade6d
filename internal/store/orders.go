package store

import (
	"sort"
	"strings"

	"trading-dashboard-go/gateway"
)

// 订单状态集合。终态订单保留在缓存中，靠读时过滤退出展示，不做删除。
const (
	StatusNew             = "NEW"
	StatusPartiallyFilled = "PARTIALLY_FILLED"
	StatusFilled          = "FILLED"
	StatusCanceled        = "CANCELED"
	StatusExpired         = "EXPIRED"
	StatusRejected        = "REJECTED"
)

// IsTerminalStatus 返回订单是否已进入终态。
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusFilled, StatusCanceled, StatusExpired, StatusRejected:
		return true
	}
	return false
}

// Order 缓存中的订单实体。
type Order struct {
	OrderID        int64
	Symbol         string
	Side           string
	Type           string
	Status         string
	Price          float64
	AvgPrice       float64
	OrigQty        float64
	ExecutedQty    float64
	ReduceOnly     bool
	ClosePosition  bool
	RealizedProfit float64
	UpdateTime     int64
}

func (o Order) StoreKey() int64 { return o.OrderID }

// Open 非终态即活跃。
func (o Order) Open() bool { return !IsTerminalStatus(o.Status) }

// OrderFilter 读时过滤条件。修改条件不触发重拉，只影响之后的投影。
type OrderFilter struct {
	Symbol   string
	OpenOnly bool
	Limit    int
}

func (f OrderFilter) Match(o Order) bool {
	if f.Symbol != "" && !strings.EqualFold(o.Symbol, f.Symbol) {
		return false
	}
	if f.OpenOnly && !o.Open() {
		return false
	}
	return true
}

// OrderBook 订单缓存，key 为交易所 orderId。
type OrderBook struct {
	store  *Store[int64, Order]
	filter OrderFilter
}

func NewOrderBook() *OrderBook {
	return &OrderBook{store: New[int64, Order]()}
}

func orderFromUpdate(u gateway.OrderUpdate) Order {
	return Order{
		OrderID:        u.OrderID,
		Symbol:         u.Symbol,
		Side:           u.Side,
		Type:           u.OrderType,
		Status:         u.Status,
		Price:          u.Price,
		AvgPrice:       u.AvgPrice,
		OrigQty:        u.OrigQty,
		ExecutedQty:    u.ExecutedQty,
		ReduceOnly:     u.ReduceOnly,
		ClosePosition:  u.ClosePosition,
		RealizedProfit: u.RealizedProfit,
		UpdateTime:     u.UpdateTime,
	}
}

// ApplyUpdate 落地一条流事件：未知 orderId 新建，已知做字段覆盖合并。
// 覆盖以到达顺序为准，事件携带的 UpdateTime 只作展示，不做去重依据。
func (b *OrderBook) ApplyUpdate(u gateway.OrderUpdate) {
	if u.OrderID == 0 {
		return
	}
	b.store.Apply(u.OrderID, func(prev Order, ok bool) Order {
		next := orderFromUpdate(u)
		if ok {
			// 流事件不带已实现盈亏归零语义：空值沿用旧值
			if next.RealizedProfit == 0 {
				next.RealizedProfit = prev.RealizedProfit
			}
		}
		return next
	})
}

// ApplySnapshot 落地一次 REST 快照。
// openOnly 快照的覆盖范围是「该交易对的活跃订单」：范围内缺席的本地订单
// 在断线期间已经成交或撤销，随替换删除；历史快照（openOnly=false）纯 upsert，
// 终态订单永不因快照丢失。
func (b *OrderBook) ApplySnapshot(updates []gateway.OrderUpdate, symbol string, openOnly bool) {
	orders := make([]Order, 0, len(updates))
	for _, u := range updates {
		if u.OrderID == 0 {
			continue
		}
		orders = append(orders, orderFromUpdate(u))
	}
	var inScope func(Order) bool
	if openOnly {
		inScope = func(o Order) bool {
			if symbol != "" && !strings.EqualFold(o.Symbol, symbol) {
				return false
			}
			return o.Open()
		}
	}
	b.store.ApplySnapshot(orders, inScope)
}

// SetFilter 更新读时过滤条件。
func (b *OrderBook) SetFilter(f OrderFilter) { b.filter = f }

// Filter 当前过滤条件。
func (b *OrderBook) Filter() OrderFilter { return b.filter }

// View 按当前过滤条件投影，新单在前。
func (b *OrderBook) View() []Order {
	out := b.store.View(b.filter.Match, 0)
	sort.Slice(out, func(i, j int) bool { return out[i].UpdateTime > out[j].UpdateTime })
	if b.filter.Limit > 0 && len(out) > b.filter.Limit {
		out = out[:b.filter.Limit]
	}
	return out
}

// Get 按 orderId 读取。
func (b *OrderBook) Get(orderID int64) (Order, bool) { return b.store.Get(orderID) }

// OpenCount 按交易对统计活跃订单数（指标用）。
func (b *OrderBook) OpenCount() map[string]int {
	counts := make(map[string]int)
	for _, o := range b.store.View(Order.Open, 0) {
		counts[o.Symbol]++
	}
	return counts
}

// Subscribe 注册唯一监听者。
func (b *OrderBook) Subscribe(fn func(Change[int64, Order])) error { return b.store.Subscribe(fn) }

// Unsubscribe 退订。
func (b *OrderBook) Unsubscribe() { b.store.Unsubscribe() }
