package alert

import (
	"go.uber.org/zap"
)

// ZapChannel 把告警写入结构化日志，作为默认兜底通道。
type ZapChannel struct {
	log  *zap.Logger
	name string
}

func NewZapChannel(name string, log *zap.Logger) *ZapChannel {
	if log == nil {
		log = zap.NewNop()
	}
	return &ZapChannel{log: log, name: name}
}

func (c *ZapChannel) Send(a Alert) error {
	fields := make([]zap.Field, 0, len(a.Fields)+2)
	fields = append(fields, zap.String("level", a.Level), zap.Time("alert_ts", a.Timestamp))
	for k, v := range a.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	switch a.Level {
	case "CRITICAL", "ERROR":
		c.log.Error(a.Message, fields...)
	case "WARNING":
		c.log.Warn(a.Message, fields...)
	default:
		c.log.Info(a.Message, fields...)
	}
	return nil
}

func (c *ZapChannel) Name() string { return c.name }
