package tele

import (
	"context"

	"github.com/lumistat/ledsec/log2"
	tele_config "github.com/lumistat/ledsec/tele/config"
)

// Transport contract:
//   - Init fails only with invalid config, ignores network errors
//   - Send delivers with broker ack (QoS 1) or returns false for retry
//   - inbound payloads arrive one at a time via the callback; a false return
//     means the message could not be accepted and may be redelivered
//   - assume worst network quality: loss, reorder, duplicates, corruption
type Transporter interface {
	Init(ctx context.Context, log *log2.Log, config tele_config.Config, onMessage MessageCallback) error
	Send(topic string, payload []byte) bool
	Close()
}

type MessageCallback func(topic string, payload []byte) bool
