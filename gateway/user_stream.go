package gateway

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"trading-dashboard-go/metrics"
)

const BinanceFuturesWSEndpoint = "wss://fstream.binance.com"

// MessageHandler 接收解析后的推送消息。由调用方保证串行消费。
type MessageHandler func(StreamMessage)

// UserStream 管理 user data + markPrice 的 combined WebSocket，
// 含 listenKey keepalive 与自动重连。断线重连后通过 OnReconnect 触发快照重拉。
type UserStream struct {
	WSEndpoint   string
	lkClient     *ListenKeyClient
	markSymbols  []string
	handler      MessageHandler
	log          *zap.Logger
	listenKey    string
	conn         *websocket.Conn
	mu           sync.Mutex
	ctx          context.Context
	cancel       context.CancelFunc
	OnReconnect  func()
	OnFatalError func(error)
	maxRetries   int
	retryBackoff time.Duration
}

func NewUserStream(wsEndpoint string, lk *ListenKeyClient, handler MessageHandler, log *zap.Logger) *UserStream {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserStream{
		WSEndpoint:   wsEndpoint,
		lkClient:     lk,
		handler:      handler,
		log:          log,
		maxRetries:   5,
		retryBackoff: 3 * time.Second,
	}
}

// SubscribeMarkPrice 追加一个 markPrice@1s 流（需在 Start 前调用）。
func (u *UserStream) SubscribeMarkPrice(symbol string) {
	u.markSymbols = append(u.markSymbols, strings.ToLower(symbol)+"@markPrice@1s")
}

// Start 创建 listenKey 并启动后台 goroutine。
func (u *UserStream) Start() error {
	key, err := u.lkClient.NewListenKey()
	if err != nil {
		return fmt.Errorf("new listenKey: %w", err)
	}
	u.setListenKey(key)
	u.log.Info("user stream listenKey created")

	ctx, cancel := context.WithCancel(context.Background())
	u.ctx = ctx
	u.cancel = cancel

	go u.runKeepalive()
	go u.runWS()
	return nil
}

// Stop 停止 WebSocket 连接。
func (u *UserStream) Stop() {
	if u.cancel != nil {
		u.cancel()
	}
	u.mu.Lock()
	if u.conn != nil {
		_ = u.conn.Close()
		u.conn = nil
	}
	u.mu.Unlock()
}

func (u *UserStream) setListenKey(key string) {
	u.mu.Lock()
	u.listenKey = key
	u.mu.Unlock()
}

func (u *UserStream) getListenKey() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.listenKey
}

// runKeepalive 每 25 分钟 PUT keepalive。
func (u *UserStream) runKeepalive() {
	ticker := time.NewTicker(25 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-u.ctx.Done():
			return
		case <-ticker.C:
			if err := u.lkClient.KeepAlive(u.getListenKey()); err != nil {
				u.log.Warn("listenKey keepalive failed", zap.Error(err))
			}
		}
	}
}

func (u *UserStream) streamURL() string {
	streams := make([]string, 0, len(u.markSymbols)+1)
	streams = append(streams, u.getListenKey())
	streams = append(streams, u.markSymbols...)
	wsURL, err := url.Parse(u.WSEndpoint)
	if err != nil || wsURL.Host == "" {
		wsURL = &url.URL{Scheme: "wss", Host: u.WSEndpoint}
	}
	if wsURL.Path == "" {
		wsURL.Path = "/stream"
	}
	q := wsURL.Query()
	q.Set("streams", strings.Join(streams, "/"))
	wsURL.RawQuery = q.Encode()
	return wsURL.String()
}

// runWS 启动 WS 连接，自动重连。
func (u *UserStream) runWS() {
	retries := 0
	reconnected := false
	for {
		select {
		case <-u.ctx.Done():
			return
		default:
		}
		if reconnected {
			// 旧 listenKey 可能已失效（60 分钟有效期），重连前重建
			if key, err := u.lkClient.NewListenKey(); err != nil {
				u.log.Warn("listenKey recreate failed", zap.Error(err))
			} else {
				u.setListenKey(key)
			}
		}
		conn, _, err := websocket.DefaultDialer.Dial(u.streamURL(), nil)
		if err != nil {
			if retries >= u.maxRetries {
				fatalErr := fmt.Errorf("websocket reconnection failed after %d retries: %w", u.maxRetries, err)
				u.log.Error("user stream gave up", zap.Error(fatalErr))
				if u.OnFatalError != nil {
					u.OnFatalError(fatalErr)
				}
				return
			}
			retries++
			backoff := time.Duration(retries) * u.retryBackoff
			u.log.Warn("ws dial failed",
				zap.Int("attempt", retries),
				zap.Int("max", u.maxRetries),
				zap.Duration("backoff", backoff),
				zap.Error(err))
			time.Sleep(backoff)
			continue
		}
		u.mu.Lock()
		u.conn = conn
		u.mu.Unlock()

		metrics.WSConnected.Set(1)
		u.log.Info("user stream connected")

		// 断线期间丢失的成交/撤销事件靠快照重拉补齐
		if reconnected && u.OnReconnect != nil {
			u.OnReconnect()
		}
		reconnected = true
		retries = 0

		u.readLoop(conn)

		u.mu.Lock()
		u.conn = nil
		u.mu.Unlock()
		metrics.WSConnected.Set(0)
		u.log.Warn("user stream disconnected, reconnecting")
		time.Sleep(u.retryBackoff)
	}
}

// readLoop 读取 WS 消息并分发事件。
func (u *UserStream) readLoop(conn *websocket.Conn) {
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	})
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			u.log.Warn("ws read err", zap.Error(err))
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		u.dispatch(msg)
	}
}

func (u *UserStream) dispatch(raw []byte) {
	msg, err := ParseStreamMessage(raw)
	if err != nil {
		if err != ErrNonStreamData {
			u.log.Warn("parse stream message", zap.Error(err))
		}
		return
	}
	metrics.StreamEventsTotal.WithLabelValues(msg.Kind.String()).Inc()
	if msg.Kind == StreamListenKeyExpired {
		// 主动断开，重连路径会重建 listenKey
		u.log.Warn("listenKey expired, forcing reconnect")
		u.mu.Lock()
		if u.conn != nil {
			_ = u.conn.Close()
		}
		u.mu.Unlock()
		return
	}
	if u.handler != nil {
		u.handler(msg)
	}
}
