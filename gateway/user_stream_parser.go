package gateway

import (
	"encoding/json"
	"errors"
)

// ErrNonStreamData 表示消息不是可识别的 JSON 事件帧（例如 ping 文本）。
var ErrNonStreamData = errors.New("not a stream data frame")

// StreamKind 标记推送消息的类型。
type StreamKind int

const (
	// StreamIgnored 其他消息类型，一律不触碰本地状态。
	StreamIgnored StreamKind = iota
	StreamOrderUpdate
	StreamAccountUpdate
	StreamMarkPrice
	// StreamListenKeyExpired listenKey 已失效，连接层需重建并重连。
	StreamListenKeyExpired
)

func (k StreamKind) String() string {
	switch k {
	case StreamOrderUpdate:
		return "order_update"
	case StreamAccountUpdate:
		return "account_update"
	case StreamMarkPrice:
		return "mark_price"
	case StreamListenKeyExpired:
		return "listen_key_expired"
	default:
		return "ignored"
	}
}

// StreamMessage 推送消息的 tagged union：每个 Kind 只填对应的字段。
type StreamMessage struct {
	Kind      StreamKind
	Order     *OrderUpdate
	Positions []PositionUpdate
	Reason    string // ACCOUNT_UPDATE 的 m 字段（ORDER/FUNDING_FEE/...）
	MarkPrice *MarkPriceUpdate
}

// combinedFrame 对应 binance combined stream 包装。
type combinedFrame struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type rawOrderEvent struct {
	Symbol         string      `json:"s"`
	ClientOrderID  string      `json:"c"`
	Side           string      `json:"S"`
	OrderType      string      `json:"o"`
	OrigQty        json.Number `json:"q"`
	Price          json.Number `json:"p"`
	AvgPrice       json.Number `json:"ap"`
	Status         string      `json:"X"`
	OrderID        int64       `json:"i"`
	AccumulatedQty json.Number `json:"z"`
	UpdateTime     int64       `json:"T"`
	ReduceOnly     bool        `json:"R"`
	ClosePosition  bool        `json:"cp"`
	RealizedProfit json.Number `json:"rp"`
}

type rawAccountEvent struct {
	Reason    string `json:"m"`
	Positions []struct {
		Symbol       string      `json:"s"`
		PositionAmt  json.Number `json:"pa"`
		EntryPrice   json.Number `json:"ep"`
		PositionSide string      `json:"ps"`
		Margin       json.Number `json:"iw"`
	} `json:"P"`
}

// ParseStreamMessage 解析一帧推送消息，外层是 combined stream 时先剥包装。
// 无法识别的事件类型返回 Kind=StreamIgnored，不算错误。
func ParseStreamMessage(raw []byte) (StreamMessage, error) {
	var frame combinedFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return StreamMessage{}, ErrNonStreamData
	}
	data := raw
	if len(frame.Data) > 0 {
		data = frame.Data
	}

	var head struct {
		EventType string `json:"e"`
		EventTime int64  `json:"E"`
	}
	if err := json.Unmarshal(data, &head); err != nil || head.EventType == "" {
		return StreamMessage{}, ErrNonStreamData
	}

	switch head.EventType {
	case "ORDER_TRADE_UPDATE":
		var payload struct {
			Order rawOrderEvent `json:"o"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return StreamMessage{}, err
		}
		o := payload.Order
		return StreamMessage{
			Kind: StreamOrderUpdate,
			Order: &OrderUpdate{
				Symbol:         o.Symbol,
				OrderID:        o.OrderID,
				ClientOrderID:  o.ClientOrderID,
				Side:           o.Side,
				OrderType:      o.OrderType,
				Status:         o.Status,
				Price:          numFloat(o.Price),
				AvgPrice:       numFloat(o.AvgPrice),
				OrigQty:        numFloat(o.OrigQty),
				ExecutedQty:    numFloat(o.AccumulatedQty),
				ReduceOnly:     o.ReduceOnly,
				ClosePosition:  o.ClosePosition,
				RealizedProfit: numFloat(o.RealizedProfit),
				UpdateTime:     o.UpdateTime,
			},
		}, nil

	case "ACCOUNT_UPDATE":
		var payload struct {
			Account rawAccountEvent `json:"a"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return StreamMessage{}, err
		}
		msg := StreamMessage{Kind: StreamAccountUpdate, Reason: payload.Account.Reason}
		for _, p := range payload.Account.Positions {
			qty := numFloat(p.PositionAmt)
			side := p.PositionSide
			if side == "" || side == "BOTH" {
				// 单向模式按持仓符号归一化；数量为零的平仓记录方向不可知，
				// 保留 BOTH 标记交由仓位缓存清理两侧
				switch {
				case qty > 0:
					side = "LONG"
				case qty < 0:
					side = "SHORT"
				default:
					side = "BOTH"
				}
			}
			if qty < 0 {
				qty = -qty
			}
			msg.Positions = append(msg.Positions, PositionUpdate{
				Symbol:     p.Symbol,
				Side:       side,
				Quantity:   qty,
				EntryPrice: numFloat(p.EntryPrice),
				Margin:     numFloat(p.Margin),
			})
		}
		return msg, nil

	case "markPriceUpdate":
		var payload struct {
			Symbol      string      `json:"s"`
			MarkPrice   json.Number `json:"p"`
			FundingRate json.Number `json:"r"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return StreamMessage{}, err
		}
		return StreamMessage{
			Kind: StreamMarkPrice,
			MarkPrice: &MarkPriceUpdate{
				Symbol:      payload.Symbol,
				MarkPrice:   numFloat(payload.MarkPrice),
				FundingRate: numFloat(payload.FundingRate),
				EventTime:   head.EventTime,
			},
		}, nil

	case "listenKeyExpired":
		return StreamMessage{Kind: StreamListenKeyExpired}, nil
	}

	return StreamMessage{Kind: StreamIgnored}, nil
}

func numFloat(n json.Number) float64 {
	v, _ := n.Float64()
	return v
}
