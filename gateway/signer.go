package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"
)

// SignParams 按 key 排序拼接 query 并返回 HMAC-SHA256 签名。
// 自动追加 timestamp（毫秒）与 recvWindow（>0 时）。
func SignParams(params map[string]string, secret string, recvWindowMs int64) (query, signature string) {
	p := make(map[string]string, len(params)+2)
	for k, v := range params {
		p[k] = v
	}
	p["timestamp"] = strconv.FormatInt(time.Now().UnixMilli(), 10)
	if recvWindowMs > 0 {
		p["recvWindow"] = strconv.FormatInt(recvWindowMs, 10)
	}

	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	vals := url.Values{}
	for _, k := range keys {
		vals.Set(k, p[k])
	}
	query = vals.Encode()

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(query))
	signature = hex.EncodeToString(mac.Sum(nil))
	return query, signature
}

// signedEndpoint 拼出带签名的完整 URL。
func signedEndpoint(baseURL, path string, params map[string]string, secret string, recvWindowMs int64) string {
	query, sig := SignParams(params, secret, recvWindowMs)
	return fmt.Sprintf("%s%s?%s&signature=%s", baseURL, path, query, url.QueryEscape(sig))
}
