package adapter

import (
	"context"
	"time"

	"github.com/pithecene-io/ferry/log"
	"github.com/pithecene-io/ferry/metrics"
	"github.com/pithecene-io/ferry/types"
)

// DefaultPublishTimeout bounds one Publish call made by a Bridge.
const DefaultPublishTimeout = 30 * time.Second

// Bridge publishes every pushed message through an Adapter.
// Its Handle method has the transport push handler signature.
type Bridge struct {
	adapter   Adapter
	ctx       context.Context
	timeout   time.Duration
	collector *metrics.Collector
	logger    *log.Logger
}

// NewBridge creates a bridge. ctx bounds every publish.
func NewBridge(ctx context.Context, a Adapter, collector *metrics.Collector, logger *log.Logger) *Bridge {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Bridge{
		adapter:   a,
		ctx:       ctx,
		timeout:   DefaultPublishTimeout,
		collector: collector,
		logger:    logger,
	}
}

// Handle publishes resp's message. Receive errors are logged and skipped.
func (b *Bridge) Handle(resp *types.Response, err error) {
	if err != nil {
		b.logger.Warn("push receive error", map[string]any{"error": err.Error()})
		return
	}
	if resp == nil || resp.Msg == nil {
		return
	}

	event := FromWxMsg(resp.Msg)
	ctx, cancel := context.WithTimeout(b.ctx, b.timeout)
	defer cancel()

	if err := b.adapter.Publish(ctx, event); err != nil {
		b.collector.IncPublishFailure()
		b.logger.Error("publish failed", map[string]any{
			"msg_id": event.ID,
			"error":  err.Error(),
		})
		return
	}
	b.collector.IncPublishSuccess()
}
