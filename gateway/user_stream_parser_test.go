package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const orderTradeUpdateFrame = `{
  "e": "ORDER_TRADE_UPDATE",
  "E": 1700000000123,
  "o": {
    "s": "BTCUSDT",
    "c": "dash-abc123",
    "S": "SELL",
    "o": "MARKET",
    "q": "0.500",
    "p": "0",
    "ap": "50123.40",
    "X": "FILLED",
    "i": 8886774,
    "z": "0.500",
    "T": 1700000000120,
    "R": true,
    "cp": false,
    "rp": "12.34"
  }
}`

func TestParseOrderTradeUpdate(t *testing.T) {
	msg, err := ParseStreamMessage([]byte(orderTradeUpdateFrame))
	require.NoError(t, err)
	require.Equal(t, StreamOrderUpdate, msg.Kind)
	require.NotNil(t, msg.Order)

	o := msg.Order
	assert.Equal(t, "BTCUSDT", o.Symbol)
	assert.Equal(t, int64(8886774), o.OrderID)
	assert.Equal(t, "dash-abc123", o.ClientOrderID)
	assert.Equal(t, "SELL", o.Side)
	assert.Equal(t, "MARKET", o.OrderType)
	assert.Equal(t, "FILLED", o.Status)
	assert.Equal(t, 0.5, o.OrigQty)
	assert.Equal(t, 0.5, o.ExecutedQty)
	assert.Equal(t, 50123.40, o.AvgPrice)
	assert.Equal(t, 12.34, o.RealizedProfit)
	assert.True(t, o.ReduceOnly)
	assert.Equal(t, int64(1700000000120), o.UpdateTime)
}

func TestParseCombinedStreamWrapper(t *testing.T) {
	frame := `{"stream":"btcusdt@markPrice@1s","data":{"e":"markPriceUpdate","E":1700000000500,"s":"BTCUSDT","p":"50100.10","r":"0.00010000"}}`
	msg, err := ParseStreamMessage([]byte(frame))
	require.NoError(t, err)
	require.Equal(t, StreamMarkPrice, msg.Kind)
	require.NotNil(t, msg.MarkPrice)
	assert.Equal(t, "BTCUSDT", msg.MarkPrice.Symbol)
	assert.Equal(t, 50100.10, msg.MarkPrice.MarkPrice)
	assert.Equal(t, 0.0001, msg.MarkPrice.FundingRate)
	assert.Equal(t, int64(1700000000500), msg.MarkPrice.EventTime)
}

func TestParseAccountUpdateNormalizesSides(t *testing.T) {
	frame := `{
	  "e": "ACCOUNT_UPDATE",
	  "E": 1700000000300,
	  "a": {
	    "m": "ORDER",
	    "P": [
	      {"s": "BTCUSDT", "pa": "0.500", "ep": "50000.0", "ps": "LONG", "iw": "2500.0"},
	      {"s": "ETHUSDT", "pa": "-2.000", "ep": "3000.0", "ps": "BOTH", "iw": "600.0"}
	    ]
	  }
	}`
	msg, err := ParseStreamMessage([]byte(frame))
	require.NoError(t, err)
	require.Equal(t, StreamAccountUpdate, msg.Kind)
	assert.Equal(t, "ORDER", msg.Reason)
	require.Len(t, msg.Positions, 2)

	assert.Equal(t, "LONG", msg.Positions[0].Side)
	assert.Equal(t, 0.5, msg.Positions[0].Quantity)
	assert.Equal(t, 2500.0, msg.Positions[0].Margin)

	// 单向模式 BOTH 按持仓符号归一化，数量取绝对值
	assert.Equal(t, "SHORT", msg.Positions[1].Side)
	assert.Equal(t, 2.0, msg.Positions[1].Quantity)
}

func TestParseAccountUpdateOneWayCloseKeepsBothMarker(t *testing.T) {
	frame := `{
	  "e": "ACCOUNT_UPDATE",
	  "E": 1700000000400,
	  "a": {
	    "m": "ORDER",
	    "P": [{"s": "ETHUSDT", "pa": "0", "ep": "0.0", "ps": "BOTH", "iw": "0"}]
	  }
	}`
	msg, err := ParseStreamMessage([]byte(frame))
	require.NoError(t, err)
	require.Len(t, msg.Positions, 1)
	// 数量为零时方向不可知，保留 BOTH 交由缓存清两侧
	assert.Equal(t, "BOTH", msg.Positions[0].Side)
	assert.Equal(t, 0.0, msg.Positions[0].Quantity)
}

func TestParseListenKeyExpired(t *testing.T) {
	msg, err := ParseStreamMessage([]byte(`{"e":"listenKeyExpired","E":1700000000000}`))
	require.NoError(t, err)
	assert.Equal(t, StreamListenKeyExpired, msg.Kind)
}

func TestParseUnknownEventIgnored(t *testing.T) {
	msg, err := ParseStreamMessage([]byte(`{"e":"MARGIN_CALL","E":1700000000000}`))
	require.NoError(t, err)
	assert.Equal(t, StreamIgnored, msg.Kind)
	assert.Nil(t, msg.Order)
	assert.Nil(t, msg.MarkPrice)
}

func TestParseNonStreamFrames(t *testing.T) {
	for _, raw := range []string{"ping", "", `"pong"`, `{"result":null,"id":1}`} {
		_, err := ParseStreamMessage([]byte(raw))
		assert.ErrorIs(t, err, ErrNonStreamData, "frame %q", raw)
	}
}

func TestStreamKindString(t *testing.T) {
	assert.Equal(t, "order_update", StreamOrderUpdate.String())
	assert.Equal(t, "account_update", StreamAccountUpdate.String())
	assert.Equal(t, "mark_price", StreamMarkPrice.String())
	assert.Equal(t, "listen_key_expired", StreamListenKeyExpired.String())
	assert.Equal(t, "ignored", StreamIgnored.String())
}
