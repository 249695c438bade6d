package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ListenKeyClient 管理 user data stream 的 listenKey 生命周期。
// listenKey 接口只需 API Key，不需要签名。
type ListenKeyClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewListenKeyHTTPClient() *http.Client {
	return &http.Client{Timeout: 5 * time.Second}
}

func (c *ListenKeyClient) request(method string) ([]byte, error) {
	if c == nil || c.HTTPClient == nil {
		return nil, fmt.Errorf("http client not set")
	}
	req, err := http.NewRequest(method, c.BaseURL+"/fapi/v1/listenKey", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.APIKey)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("listenKey status %d", resp.StatusCode)
	}
	var body struct {
		ListenKey string `json:"listenKey"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil && method == http.MethodPost {
		return nil, err
	}
	return []byte(body.ListenKey), nil
}

// NewListenKey 创建新的 listenKey。
func (c *ListenKeyClient) NewListenKey() (string, error) {
	key, err := c.request(http.MethodPost)
	if err != nil {
		return "", err
	}
	if len(key) == 0 {
		return "", fmt.Errorf("empty listenKey")
	}
	return string(key), nil
}

// KeepAlive 续期 listenKey（有效期 60 分钟，建议每 25 分钟续一次）。
func (c *ListenKeyClient) KeepAlive(key string) error {
	_, err := c.request(http.MethodPut)
	return err
}
