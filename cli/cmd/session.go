package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ferry/adapter"
	"github.com/pithecene-io/ferry/adapter/redis"
	"github.com/pithecene-io/ferry/adapter/webhook"
	"github.com/pithecene-io/ferry/cli/config"
	"github.com/pithecene-io/ferry/engine"
	"github.com/pithecene-io/ferry/forge"
	"github.com/pithecene-io/ferry/log"
	"github.com/pithecene-io/ferry/metrics"
	"github.com/pithecene-io/ferry/query"
	"github.com/pithecene-io/ferry/room"
	"github.com/pithecene-io/ferry/snapshot"
	"github.com/pithecene-io/ferry/transport"
)

// session is one connected engine client with its collaborators.
type session struct {
	cfg       *config.Config
	logger    *log.Logger
	collector *metrics.Collector
	transport *transport.Client
	engine    *engine.Client
	query     *query.Executor
}

// loadConfig reads --config (or the defaults) and applies flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, cli.Exit(err.Error(), exitFailure)
		}
		cfg = loaded
	}

	if c.IsSet("host") {
		cfg.Engine.Host = c.String("host")
	}
	if c.IsSet("port") {
		cfg.Engine.Port = c.Int("port")
	}
	if c.IsSet("push-port") {
		cfg.Engine.PushPort = c.Int("push-port")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}

	if err := cfg.Validate(); err != nil {
		return nil, cli.Exit(err.Error(), exitFailure)
	}
	return cfg, nil
}

// openSession loads config and connects the command channel.
// Callers must Close the session.
func openSession(c *cli.Context) (*session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	tcfg := cfg.TransportConfig()
	endpoint := tcfg.CommandAddr()
	sess := log.NewSession(endpoint)
	logger := log.NewLoggerLevel(sess, cfg.LogLevel)
	collector := metrics.NewCollector(endpoint, sess.ID)

	tr := transport.New(tcfg, logger.With("transport"), transport.WithCollector(collector))
	if err := tr.Connect(c.Context); err != nil {
		_ = tr.Close()
		return nil, cli.Exit(fmt.Sprintf("cannot reach engine at %s: %v", endpoint, err), exitEngineUnavailable)
	}

	eng := engine.New(tr, engine.WithCollector(collector), engine.WithLogger(logger.With("engine")))
	return &session{
		cfg:       cfg,
		logger:    logger,
		collector: collector,
		transport: tr,
		engine:    eng,
		query:     query.New(eng, query.WithCollector(collector), query.WithLogger(logger.With("query"))),
	}, nil
}

// Close closes both channels and flushes the logger.
func (s *session) Close() error {
	err := s.transport.Close()
	_ = s.logger.Sync()
	return err
}

// resolver returns a room resolver using the configured retry policy.
func (s *session) resolver() *room.Resolver {
	return &room.Resolver{
		Query:     s.query,
		Policy:    s.cfg.RetryPolicy(),
		Collector: s.collector,
		Logger:    s.logger.With("room"),
	}
}

// pipeline returns a forgery pipeline with the configured snapshot store.
func (s *session) pipeline(ctx context.Context) (*forge.Pipeline, error) {
	opts := []forge.Option{
		forge.WithConfig(s.cfg.ForgeConfig()),
		forge.WithCollector(s.collector),
		forge.WithLogger(s.logger.With("forge")),
	}

	store, err := openSnapshots(ctx, s.cfg.Snapshot)
	if err != nil {
		return nil, err
	}
	if store != nil {
		opts = append(opts, forge.WithSnapshots(store))
	}
	return forge.NewPipeline(s.query, s.engine, opts...), nil
}

// openSnapshots builds the snapshot store for cfg. An empty backend
// returns a nil store.
func openSnapshots(ctx context.Context, cfg config.SnapshotConfig) (snapshot.Store, error) {
	dataset := cfg.Dataset
	if dataset == "" {
		dataset = snapshot.DefaultDataset
	}

	switch cfg.Backend {
	case "":
		return nil, nil
	case "fs":
		store, err := snapshot.NewFS(dataset, cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "s3":
		bucket, prefix := snapshot.ParseS3Path(cfg.Path)
		store, err := snapshot.NewS3(ctx, dataset, snapshot.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.S3PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.Backend)
	}
}

// openAdapter builds the push bridge adapter for cfg. An empty type
// returns a nil adapter.
func openAdapter(cfg config.AdapterConfig) (adapter.Adapter, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "webhook":
		wcfg := webhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
			Retries: webhook.DefaultRetries,
		}
		if cfg.Retries != nil {
			wcfg.Retries = *cfg.Retries
		}
		a, err := webhook.New(wcfg)
		if err != nil {
			return nil, err
		}
		return a, nil
	case "redis":
		rcfg := redis.Config{
			URL:        cfg.URL,
			Channel:    cfg.Channel,
			Timeout:    cfg.Timeout.Duration,
			Retries:    redis.DefaultRetries,
			SplitRooms: cfg.SplitRooms,
		}
		if cfg.Retries != nil {
			rcfg.Retries = *cfg.Retries
		}
		a, err := redis.New(rcfg)
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown adapter type %q", cfg.Type)
	}
}
