package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const BinanceFuturesRESTEndpoint = "https://fapi.binance.com"

// BinanceRESTClient 一个可签名的简化客户端；默认不发起真实网络调用，HTTPClient 可注入 httptest。
type BinanceRESTClient struct {
	BaseURL      string
	APIKey       string
	Secret       string
	HTTPClient   *http.Client
	RecvWindowMs int64
	Limiter      RateLimiter

	modeMu   sync.Mutex
	dualSide *bool // 账户持仓模式缓存，运行期不会变
}

// NewDefaultHTTPClient 提供一个带超时的 http.Client。
func NewDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

func (c *BinanceRESTClient) do(method, endpoint string) ([]byte, error) {
	if c == nil || c.HTTPClient == nil {
		return nil, fmt.Errorf("http client not set")
	}
	if c.Limiter != nil {
		c.Limiter.Wait()
	}
	req, err := http.NewRequest(method, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.APIKey)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s status %d: %s", method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func (c *BinanceRESTClient) doSigned(method, path string, params map[string]string) ([]byte, error) {
	endpoint := signedEndpoint(c.BaseURL, path, params, c.Secret, c.RecvWindowMs)
	return c.do(method, endpoint)
}

type rawFilter struct {
	FilterType string `json:"filterType"`
	TickSize   string `json:"tickSize"`
	StepSize   string `json:"stepSize"`
	Notional   string `json:"notional"`
}

type rawSymbol struct {
	Symbol            string      `json:"symbol"`
	Status            string      `json:"status"`
	PricePrecision    int         `json:"pricePrecision"`
	QuantityPrecision int         `json:"quantityPrecision"`
	Filters           []rawFilter `json:"filters"`
}

// ExchangeInfo 拉取 /fapi/v1/exchangeInfo 并展开 PRICE_FILTER/LOT_SIZE。
// symbol 为空时返回全部交易对。
func (c *BinanceRESTClient) ExchangeInfo(symbol string) ([]SymbolInfo, error) {
	endpoint := c.BaseURL + "/fapi/v1/exchangeInfo"
	if symbol != "" {
		endpoint += "?symbol=" + url.QueryEscape(strings.ToUpper(symbol))
	}
	body, err := c.do(http.MethodGet, endpoint)
	if err != nil {
		return nil, fmt.Errorf("exchange info: %w", err)
	}
	var payload struct {
		Symbols []rawSymbol `json:"symbols"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("exchange info decode: %w", err)
	}
	infos := make([]SymbolInfo, 0, len(payload.Symbols))
	for _, s := range payload.Symbols {
		info := SymbolInfo{
			Symbol:            s.Symbol,
			Status:            s.Status,
			PricePrecision:    s.PricePrecision,
			QuantityPrecision: s.QuantityPrecision,
		}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "PRICE_FILTER":
				info.TickSize = f.TickSize
			case "LOT_SIZE":
				info.StepSize = f.StepSize
			case "MIN_NOTIONAL":
				info.MinNotional = f.Notional
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}

type rawOrder struct {
	Symbol        string `json:"symbol"`
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	Price         string `json:"price"`
	AvgPrice      string `json:"avgPrice"`
	OrigQty       string `json:"origQty"`
	ExecutedQty   string `json:"executedQty"`
	ReduceOnly    bool   `json:"reduceOnly"`
	ClosePosition bool   `json:"closePosition"`
	UpdateTime    int64  `json:"updateTime"`
}

func (r rawOrder) toUpdate() OrderUpdate {
	return OrderUpdate{
		Symbol:        r.Symbol,
		OrderID:       r.OrderID,
		ClientOrderID: r.ClientOrderID,
		Side:          r.Side,
		OrderType:     r.Type,
		Status:        r.Status,
		Price:         parseFloat(r.Price),
		AvgPrice:      parseFloat(r.AvgPrice),
		OrigQty:       parseFloat(r.OrigQty),
		ExecutedQty:   parseFloat(r.ExecutedQty),
		ReduceOnly:    r.ReduceOnly,
		ClosePosition: r.ClosePosition,
		UpdateTime:    r.UpdateTime,
	}
}

// OpenOrders 查询当前活跃订单。symbol 为空时返回全部交易对的活跃订单。
func (c *BinanceRESTClient) OpenOrders(symbol string) ([]OrderUpdate, error) {
	params := map[string]string{}
	if symbol != "" {
		params["symbol"] = strings.ToUpper(symbol)
	}
	body, err := c.doSigned(http.MethodGet, "/fapi/v1/openOrders", params)
	if err != nil {
		return nil, fmt.Errorf("open orders: %w", err)
	}
	var raws []rawOrder
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("open orders decode: %w", err)
	}
	orders := make([]OrderUpdate, 0, len(raws))
	for _, r := range raws {
		orders = append(orders, r.toUpdate())
	}
	return orders, nil
}

// AllOrders 查询历史订单（含终态），limit<=0 时交由交易所默认值。
func (c *BinanceRESTClient) AllOrders(symbol string, limit int) ([]OrderUpdate, error) {
	if symbol == "" {
		return nil, fmt.Errorf("all orders: symbol required")
	}
	params := map[string]string{"symbol": strings.ToUpper(symbol)}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	body, err := c.doSigned(http.MethodGet, "/fapi/v1/allOrders", params)
	if err != nil {
		return nil, fmt.Errorf("all orders: %w", err)
	}
	var raws []rawOrder
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("all orders decode: %w", err)
	}
	orders := make([]OrderUpdate, 0, len(raws))
	for _, r := range raws {
		orders = append(orders, r.toUpdate())
	}
	return orders, nil
}

// PositionRisk 查询当前仓位（/fapi/v2/positionRisk）。
// 对冲模式下返回 LONG/SHORT 两条记录；数量为 0 的记录由调用方过滤。
func (c *BinanceRESTClient) PositionRisk(symbol string) ([]PositionUpdate, error) {
	params := map[string]string{}
	if symbol != "" {
		params["symbol"] = strings.ToUpper(symbol)
	}
	body, err := c.doSigned(http.MethodGet, "/fapi/v2/positionRisk", params)
	if err != nil {
		return nil, fmt.Errorf("position risk: %w", err)
	}
	var raws []struct {
		Symbol         string `json:"symbol"`
		PositionAmt    string `json:"positionAmt"`
		EntryPrice     string `json:"entryPrice"`
		IsolatedMargin string `json:"isolatedMargin"`
		Leverage       string `json:"leverage"`
		PositionSide   string `json:"positionSide"`
	}
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("position risk decode: %w", err)
	}
	positions := make([]PositionUpdate, 0, len(raws))
	for _, r := range raws {
		qty := parseFloat(r.PositionAmt)
		side := r.PositionSide
		// 单向模式下 positionSide=BOTH，按持仓方向归一化为 LONG/SHORT。
		if side == "" || side == "BOTH" {
			if qty >= 0 {
				side = "LONG"
			} else {
				side = "SHORT"
			}
		}
		if qty < 0 {
			qty = -qty
		}
		positions = append(positions, PositionUpdate{
			Symbol:     r.Symbol,
			Side:       side,
			Quantity:   qty,
			EntryPrice: parseFloat(r.EntryPrice),
			Margin:     parseFloat(r.IsolatedMargin),
			Leverage:   parseFloat(r.Leverage),
		})
	}
	return positions, nil
}

// PositionMode 查询账户持仓模式（true=对冲模式），首次结果缓存。
func (c *BinanceRESTClient) PositionMode() (bool, error) {
	c.modeMu.Lock()
	if c.dualSide != nil {
		dual := *c.dualSide
		c.modeMu.Unlock()
		return dual, nil
	}
	c.modeMu.Unlock()

	body, err := c.doSigned(http.MethodGet, "/fapi/v1/positionSide/dual", map[string]string{})
	if err != nil {
		return false, fmt.Errorf("position mode: %w", err)
	}
	var payload struct {
		DualSidePosition bool `json:"dualSidePosition"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false, fmt.Errorf("position mode decode: %w", err)
	}
	c.modeMu.Lock()
	c.dualSide = &payload.DualSidePosition
	c.modeMu.Unlock()
	return payload.DualSidePosition, nil
}

// CloseMarket 以市价单平掉指定方向仓位，positionSide 是被平的方向（LONG/SHORT）。
// 按账户持仓模式映射请求参数：对冲模式下 positionSide 指向被平方向即隐含减仓；
// 单向模式下交易所拒绝显式 LONG/SHORT（-4061），改发 positionSide=BOTH + reduceOnly。
func (c *BinanceRESTClient) CloseMarket(symbol, positionSide string, qty float64, clientID string) error {
	dual, err := c.PositionMode()
	if err != nil {
		return fmt.Errorf("close %s %s: %w", symbol, positionSide, err)
	}
	side := "SELL"
	if strings.ToUpper(positionSide) == "SHORT" {
		side = "BUY"
	}
	params := map[string]string{
		"symbol":   strings.ToUpper(symbol),
		"side":     side,
		"type":     "MARKET",
		"quantity": strconv.FormatFloat(qty, 'f', -1, 64),
	}
	if dual {
		params["positionSide"] = strings.ToUpper(positionSide)
	} else {
		params["positionSide"] = "BOTH"
		params["reduceOnly"] = "true"
	}
	if clientID != "" {
		params["newClientOrderId"] = clientID
	}
	if _, err := c.doSigned(http.MethodPost, "/fapi/v1/order", params); err != nil {
		return fmt.Errorf("close %s %s: %w", symbol, positionSide, err)
	}
	return nil
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
