package transport

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/pithecene-io/ferry/ipc"
	"github.com/pithecene-io/ferry/types"
)

// PushHandler receives every push frame. Exactly one of resp and err is set.
//
// A decode failure affects one frame and the loop continues. A stream
// failure (EOF, partial frame, read error) is reported as *TransportError
// before the push connection is redialed.
//
// Handlers run on the receive goroutine; a slow handler delays later frames.
type PushHandler func(resp *types.Response, err error)

// Listen dials the push endpoint and starts the background receive loop.
//
// Calling Listen while a loop is running is a no-op. The loop ends when ctx
// is canceled or Close is called.
func (c *Client) Listen(ctx context.Context, handler PushHandler) error {
	if handler == nil {
		return errors.New("transport: nil push handler")
	}

	c.listenMu.Lock()
	defer c.listenMu.Unlock()

	c.stateMu.Lock()
	closed := c.closed
	c.stateMu.Unlock()
	if closed {
		return ErrClosed
	}
	if c.listening {
		return nil
	}

	addr := c.cfg.PushAddr()
	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &TransportError{Op: "dial", Addr: addr, Err: err}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.listening = true
	c.cancel = cancel
	c.done = make(chan struct{})

	c.logger.Info("push channel connected", map[string]any{"addr": addr})
	go c.receiveLoop(loopCtx, conn, handler, c.done)
	return nil
}

// Listening reports whether the push loop is running.
func (c *Client) Listening() bool {
	c.listenMu.Lock()
	defer c.listenMu.Unlock()
	return c.listening
}

func (c *Client) stopListening() {
	c.listenMu.Lock()
	cancel, done := c.cancel, c.done
	c.listenMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Client) receiveLoop(ctx context.Context, conn net.Conn, handler PushHandler, done chan struct{}) {
	defer func() {
		c.listenMu.Lock()
		c.listening = false
		c.cancel = nil
		c.listenMu.Unlock()
		close(done)
	}()

	addr := c.cfg.PushAddr()
	for {
		if conn != nil {
			c.readPush(ctx, conn, handler)
			_ = conn.Close()
			conn = nil
		}
		if ctx.Err() != nil {
			return
		}

		if !sleep(ctx, c.cfg.ReconnectDelay) {
			return
		}

		next, err := c.dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("push redial failed", map[string]any{
				"addr":  addr,
				"error": err.Error(),
			})
			handler(nil, &TransportError{Op: "dial", Addr: addr, Err: err})
			continue
		}
		c.collector.IncPushReconnect()
		c.logger.Info("push channel reconnected", map[string]any{"addr": addr})
		conn = next
	}
}

// readPush reads frames from conn until the stream fails or ctx ends.
func (c *Client) readPush(ctx context.Context, conn net.Conn, handler PushHandler) {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	decoder := ipc.NewFrameDecoder(conn)
	for {
		payload, err := decoder.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("push stream ended", map[string]any{
				"addr":  c.cfg.PushAddr(),
				"error": err.Error(),
			})
			handler(nil, &TransportError{Op: "read", Addr: c.cfg.PushAddr(), Err: err})
			return
		}

		resp, err := ipc.DecodeResponse(payload)
		if err != nil {
			c.collector.IncPushDecodeError()
			if c.errLog.Allow() {
				c.logger.Error("push frame decode error", map[string]any{
					"error": err.Error(),
					"size":  len(payload),
				})
			}
			handler(nil, err)
			continue
		}

		c.collector.IncPushReceived()
		handler(resp, nil)
	}
}

// sleep waits for d or until ctx ends. It reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
