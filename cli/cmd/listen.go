package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ferry/adapter"
	"github.com/pithecene-io/ferry/engine"
	"github.com/pithecene-io/ferry/iox"
	"github.com/pithecene-io/ferry/log"
	"github.com/pithecene-io/ferry/transport"
	"github.com/pithecene-io/ferry/types"
)

// disableTimeout bounds the DisableRecv call made on shutdown.
const disableTimeout = 5 * time.Second

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// ListenCommand returns the listen command.
func ListenCommand() *cli.Command {
	return &cli.Command{
		Name:  "listen",
		Usage: "Receive pushed messages until interrupted",
		Description: "Enables message push on the engine and logs every message. " +
			"With an adapter configured, each message is also published through it.",
		Flags: append(EngineFlags(),
			&cli.BoolFlag{
				Name:  "include-feed",
				Usage: "Also receive feed (moments) updates",
			},
		),
		Action: listenAction,
	}
}

func listenAction(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	includeFeed := s.cfg.Listen.IncludeFeed
	if c.IsSet("include-feed") {
		includeFeed = c.Bool("include-feed")
	}

	a, err := openAdapter(s.cfg.Adapter)
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}
	defer iox.DiscardClose(a)

	ctx, cancel := signalContext(c.Context)
	defer cancel()

	return listen(ctx, s.engine, s.transport, includeFeed, messageHandler(ctx, s, a))
}

// listen enables push on the engine, runs handler for every pushed message
// until ctx is done, then disables push.
func listen(ctx context.Context, eng *engine.Client, tr *transport.Client, includeFeed bool, handler transport.PushHandler) error {
	status, err := eng.EnableRecv(ctx, includeFeed)
	if err != nil {
		return err
	}
	if err := engine.StatusError(types.FuncEnableRecvTxt, status); err != nil {
		return err
	}

	if err := tr.Listen(ctx, handler); err != nil {
		return cli.Exit(err.Error(), exitEngineUnavailable)
	}
	<-ctx.Done()

	// The parent context is gone; give the engine a short window to stop pushing.
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), disableTimeout)
	defer cancel()
	_, _ = eng.DisableRecv(dctx)
	return nil
}

// messageHandler logs every pushed message and, with an adapter, bridges it.
func messageHandler(ctx context.Context, s *session, a adapter.Adapter) transport.PushHandler {
	logger := s.logger.With("listen")
	var bridge *adapter.Bridge
	if a != nil {
		bridge = adapter.NewBridge(ctx, a, s.collector, s.logger.With("adapter"))
	}

	return func(resp *types.Response, err error) {
		if err == nil && resp != nil && resp.Msg != nil {
			logMessage(logger, resp.Msg)
		}
		if bridge != nil {
			bridge.Handle(resp, err)
		}
	}
}

func logMessage(logger *log.Logger, msg *types.WxMsg) {
	logger.Info("message received", map[string]any{
		"msg_id":   msg.ID,
		"type":     msg.Type,
		"sender":   msg.Sender,
		"room_id":  msg.RoomID,
		"is_self":  msg.IsSelf,
		"is_group": msg.IsGroup,
	})
}
