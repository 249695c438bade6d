package gateway

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.HandlerFunc) (*BinanceRESTClient, *httptest.Server) {
	srv := httptest.NewServer(handler)
	client := &BinanceRESTClient{
		BaseURL:      srv.URL,
		APIKey:       "test-key",
		Secret:       "test-secret",
		HTTPClient:   srv.Client(),
		RecvWindowMs: 5000,
	}
	return client, srv
}

func TestExchangeInfoExpandsFilters(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/exchangeInfo", r.URL.Path)
		w.Write([]byte(`{"symbols":[
			{"symbol":"BTCUSDT","status":"TRADING","pricePrecision":2,"quantityPrecision":3,"filters":[
				{"filterType":"PRICE_FILTER","tickSize":"0.10"},
				{"filterType":"LOT_SIZE","stepSize":"0.001"},
				{"filterType":"MIN_NOTIONAL","notional":"100"}
			]},
			{"symbol":"ODDUSDT","status":"TRADING","filters":[]}
		]}`))
	})
	defer srv.Close()

	infos, err := client.ExchangeInfo("")
	require.NoError(t, err)
	require.Len(t, infos, 2)

	assert.Equal(t, "BTCUSDT", infos[0].Symbol)
	assert.Equal(t, "0.10", infos[0].TickSize)
	assert.Equal(t, "0.001", infos[0].StepSize)
	assert.Equal(t, "100", infos[0].MinNotional)
	assert.True(t, infos[0].HasFilters())

	// 过滤器缺失的交易对照常返回，由精度层决定跳过
	assert.False(t, infos[1].HasFilters())
}

func TestOpenOrdersSignedRequest(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/openOrders", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-MBX-APIKEY"))
		q := r.URL.Query()
		assert.Equal(t, "BTCUSDT", q.Get("symbol"))
		assert.NotEmpty(t, q.Get("timestamp"))
		assert.NotEmpty(t, q.Get("signature"))
		w.Write([]byte(`[
			{"symbol":"BTCUSDT","orderId":42,"side":"BUY","type":"LIMIT","status":"NEW",
			 "price":"50000.0","origQty":"0.500","executedQty":"0.100","updateTime":1700000000000}
		]`))
	})
	defer srv.Close()

	orders, err := client.OpenOrders("btcusdt")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(42), orders[0].OrderID)
	assert.Equal(t, "LIMIT", orders[0].OrderType)
	assert.Equal(t, 50000.0, orders[0].Price)
	assert.Equal(t, 0.1, orders[0].ExecutedQty)
}

func TestAllOrdersRequiresSymbol(t *testing.T) {
	client := &BinanceRESTClient{HTTPClient: http.DefaultClient}
	_, err := client.AllOrders("", 100)
	assert.Error(t, err)
}

func TestPositionRiskNormalizesBoth(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v2/positionRisk", r.URL.Path)
		w.Write([]byte(`[
			{"symbol":"BTCUSDT","positionAmt":"0.500","entryPrice":"50000.0","isolatedMargin":"2500.0","leverage":"10","positionSide":"LONG"},
			{"symbol":"ETHUSDT","positionAmt":"-2.000","entryPrice":"3000.0","isolatedMargin":"600.0","leverage":"5","positionSide":"BOTH"}
		]`))
	})
	defer srv.Close()

	positions, err := client.PositionRisk("")
	require.NoError(t, err)
	require.Len(t, positions, 2)

	assert.Equal(t, "LONG", positions[0].Side)
	assert.Equal(t, 10.0, positions[0].Leverage)

	assert.Equal(t, "SHORT", positions[1].Side)
	assert.Equal(t, 2.0, positions[1].Quantity)
}

func TestCloseMarketHedgeMode(t *testing.T) {
	var got url.Values
	modeCalls := 0
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fapi/v1/positionSide/dual":
			modeCalls++
			w.Write([]byte(`{"dualSidePosition":true}`))
		case "/fapi/v1/order":
			assert.Equal(t, http.MethodPost, r.Method)
			got = r.URL.Query()
			w.Write([]byte(`{"orderId":99}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	defer srv.Close()

	// 平 SHORT 发 BUY，positionSide 指向被平方向即隐含减仓
	require.NoError(t, client.CloseMarket("ethusdt", "short", 2, "dash-xyz"))
	assert.Equal(t, "BUY", got.Get("side"))
	assert.Equal(t, "SHORT", got.Get("positionSide"))
	assert.Equal(t, "MARKET", got.Get("type"))
	assert.Equal(t, "2", got.Get("quantity"))
	assert.Equal(t, "dash-xyz", got.Get("newClientOrderId"))
	assert.Empty(t, got.Get("reduceOnly"), "对冲模式不接受 reduceOnly 参数")

	// 平 LONG 发 SELL；持仓模式只查一次
	require.NoError(t, client.CloseMarket("BTCUSDT", "LONG", 0.5, ""))
	assert.Equal(t, "SELL", got.Get("side"))
	assert.Equal(t, 1, modeCalls)
}

func TestCloseMarketOneWayMode(t *testing.T) {
	var got url.Values
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fapi/v1/positionSide/dual":
			w.Write([]byte(`{"dualSidePosition":false}`))
		case "/fapi/v1/order":
			got = r.URL.Query()
			w.Write([]byte(`{"orderId":100}`))
		}
	})
	defer srv.Close()

	// 单向模式拒绝显式 LONG/SHORT（-4061）：发 BOTH + reduceOnly
	require.NoError(t, client.CloseMarket("ETHUSDT", "SHORT", 2, ""))
	assert.Equal(t, "BUY", got.Get("side"))
	assert.Equal(t, "BOTH", got.Get("positionSide"))
	assert.Equal(t, "true", got.Get("reduceOnly"))
}

func TestRESTErrorIncludesExchangeBody(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fapi/v1/positionSide/dual" {
			w.Write([]byte(`{"dualSidePosition":true}`))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-2022,"msg":"ReduceOnly Order is rejected."}`))
	})
	defer srv.Close()

	err := client.CloseMarket("BTCUSDT", "LONG", 0.5, "")
	require.Error(t, err)
	// 交易所拒单文本原样带回，便于直接展示
	assert.Contains(t, err.Error(), "ReduceOnly Order is rejected.")
	assert.Contains(t, err.Error(), "-2022")
}
