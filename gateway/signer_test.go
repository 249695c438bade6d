package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignParams(t *testing.T) {
	query, sig := SignParams(map[string]string{
		"symbol": "BTCUSDT",
		"side":   "SELL",
		"type":   "MARKET",
	}, "test-secret", 5000)

	vals, err := url.ParseQuery(query)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", vals.Get("symbol"))
	assert.Equal(t, "5000", vals.Get("recvWindow"))
	assert.NotEmpty(t, vals.Get("timestamp"))

	// query 按 key 升序拼接，签名可复算
	keys := make([]string, 0, len(vals))
	for _, kv := range strings.Split(query, "&") {
		keys = append(keys, strings.SplitN(kv, "=", 2)[0])
	}
	for i := 1; i < len(keys); i++ {
		assert.LessOrEqual(t, keys[i-1], keys[i])
	}

	mac := hmac.New(sha256.New, []byte("test-secret"))
	mac.Write([]byte(query))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), sig)
}

func TestSignParamsOmitsRecvWindowWhenZero(t *testing.T) {
	query, _ := SignParams(map[string]string{"symbol": "BTCUSDT"}, "s", 0)
	vals, err := url.ParseQuery(query)
	require.NoError(t, err)
	assert.Empty(t, vals.Get("recvWindow"))
}

func TestSignedEndpointShape(t *testing.T) {
	endpoint := signedEndpoint("https://example.test", "/fapi/v1/openOrders",
		map[string]string{"symbol": "BTCUSDT"}, "s", 0)
	u, err := url.Parse(endpoint)
	require.NoError(t, err)
	assert.Equal(t, "/fapi/v1/openOrders", u.Path)
	assert.NotEmpty(t, u.Query().Get("signature"))
	assert.Equal(t, "BTCUSDT", u.Query().Get("symbol"))
}
