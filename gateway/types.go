package gateway

// SymbolInfo 保存从 /fapi/v1/exchangeInfo 提取的交易对过滤器原始字段。
// TickSize/StepSize 保留交易所返回的十进制字符串，精度推导在 precision 包内完成。
type SymbolInfo struct {
	Symbol            string
	Status            string
	PricePrecision    int
	QuantityPrecision int
	TickSize          string // PRICE_FILTER.tickSize，缺失时为空
	StepSize          string // LOT_SIZE.stepSize，缺失时为空
	MinNotional       string
}

// HasFilters 返回该交易对是否同时带有价格与数量过滤器。
func (s SymbolInfo) HasFilters() bool {
	return s.TickSize != "" && s.StepSize != ""
}

// OrderUpdate 统一 REST 快照与 ORDER_TRADE_UPDATE 推送的订单视图。
type OrderUpdate struct {
	Symbol         string
	OrderID        int64
	ClientOrderID  string
	Side           string // BUY/SELL
	OrderType      string // LIMIT/MARKET/...
	Status         string // NEW/PARTIALLY_FILLED/FILLED/CANCELED/EXPIRED/REJECTED
	Price          float64
	AvgPrice       float64
	OrigQty        float64
	ExecutedQty    float64
	ReduceOnly     bool
	ClosePosition  bool
	RealizedProfit float64
	UpdateTime     int64
}

// PositionUpdate 统一 REST positionRisk 与 ACCOUNT_UPDATE 推送的仓位视图。
// 对冲模式下同一交易对可能同时存在 LONG/SHORT 两条。
type PositionUpdate struct {
	Symbol     string
	Side       string // LONG/SHORT
	Quantity   float64
	EntryPrice float64
	Margin     float64
	Leverage   float64
}

// MarkPriceUpdate 标记价格推送（markPriceUpdate 流）。
type MarkPriceUpdate struct {
	Symbol      string
	MarkPrice   float64
	FundingRate float64
	EventTime   int64
}
