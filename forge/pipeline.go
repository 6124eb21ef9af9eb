package forge

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pithecene-io/ferry/engine"
	"github.com/pithecene-io/ferry/log"
	"github.com/pithecene-io/ferry/metrics"
	"github.com/pithecene-io/ferry/query"
	"github.com/pithecene-io/ferry/snapshot"
	"github.com/pithecene-io/ferry/types"
)

// Defaults for Config.
const (
	DefaultDatabase = "MSG0.db"
	DefaultSlot     = 55
	DefaultSettle   = time.Second
)

const (
	slotSQL    = "SELECT MsgSvrID, CompressContent, BytesExtra FROM MSG WHERE localId = ?"
	forgeSQL   = "UPDATE MSG SET MsgSvrID = %d, CompressContent = x'%s' WHERE localId = %d"
	restoreSQL = "UPDATE MSG SET MsgSvrID = ?, CompressContent = ?, BytesExtra = ? WHERE localId = ?"
)

// ErrSlotMissing is returned when the slot row does not exist.
var ErrSlotMissing = errors.New("forge slot row not found")

// Config selects the row the pipeline rewrites.
type Config struct {
	// Database holds the MSG table.
	Database string
	// Slot is the localId of the row reused by every forgery.
	Slot int64
	// Settle is the pause between the row write and the forward.
	Settle time.Duration
}

// DefaultConfig returns the MSG0.db slot 55 configuration with a 1s settle.
func DefaultConfig() Config {
	return Config{Database: DefaultDatabase, Slot: DefaultSlot, Settle: DefaultSettle}
}

func (c Config) withDefaults() Config {
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.Slot == 0 {
		c.Slot = DefaultSlot
	}
	if c.Settle < 0 {
		c.Settle = 0
	}
	return c
}

// Querier runs statements against the engine's databases.
type Querier interface {
	Execute(ctx context.Context, db, sql string) ([]query.Row, error)
	ExecuteArgs(ctx context.Context, db, sql string, args ...any) ([]query.Row, error)
}

// Forwarder forwards a stored message by id.
type Forwarder interface {
	Forward(ctx context.Context, id uint64, receiver string) (int32, error)
}

// Pipeline forges messages through one shared row slot. All forgeries and
// recoveries are serialized; the slot stays locked until the forward of
// the previous job has completed.
type Pipeline struct {
	query     Querier
	engine    Forwarder
	snapshots snapshot.Store
	minter    *IDMinter
	config    Config
	collector *metrics.Collector
	logger    *log.Logger

	mu sync.Mutex
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConfig sets the row slot and settle delay.
func WithConfig(cfg Config) Option {
	return func(p *Pipeline) { p.config = cfg.withDefaults() }
}

// WithSnapshots saves the slot row before every forgery.
func WithSnapshots(s snapshot.Store) Option {
	return func(p *Pipeline) { p.snapshots = s }
}

// WithMinter replaces the wall-clock id minter.
func WithMinter(m *IDMinter) Option {
	return func(p *Pipeline) { p.minter = m }
}

// WithCollector records forgery counters on c.
func WithCollector(c *metrics.Collector) Option {
	return func(p *Pipeline) { p.collector = c }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a pipeline over q and f.
func NewPipeline(q Querier, f Forwarder, opts ...Option) *Pipeline {
	p := &Pipeline{
		query:  q,
		engine: f,
		minter: NewIDMinter(),
		config: DefaultConfig(),
		logger: log.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config {
	return p.config
}

// Send forges content into the slot row under a freshly minted id and
// schedules its forward to receiver after the settle delay.
//
// Validation, compression, snapshot and row-write failures are returned
// directly. The forward's outcome is reported through the returned Job.
func (p *Pipeline) Send(ctx context.Context, receiver, content string) (*Job, error) {
	if strings.TrimSpace(receiver) == "" {
		return nil, fmt.Errorf("%w: receiver is required", engine.ErrInvalidRequest)
	}
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", engine.ErrInvalidRequest)
	}

	block, err := Compress([]byte(content))
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.collector.IncForgeryStarted()

	job, err := p.forge(ctx, receiver, block)
	if err != nil {
		p.collector.IncForgeryFailed()
		p.mu.Unlock()
		return nil, err
	}
	go p.forward(ctx, job)
	return job, nil
}

func (p *Pipeline) forge(ctx context.Context, receiver string, block []byte) (*Job, error) {
	cfg := p.config

	prev, err := p.readSlot(ctx)
	if err != nil {
		return nil, err
	}
	if p.snapshots != nil {
		prev.Database, prev.Slot = cfg.Database, cfg.Slot
		if err := p.snapshots.Save(ctx, *prev); err != nil {
			return nil, fmt.Errorf("snapshot slot %d: %w", cfg.Slot, err)
		}
	}

	id := p.minter.Next()
	stmt := fmt.Sprintf(forgeSQL, id, hex.EncodeToString(block), cfg.Slot)
	if _, err := p.query.Execute(ctx, cfg.Database, stmt); err != nil {
		return nil, fmt.Errorf("forge slot %d: %w", cfg.Slot, err)
	}

	p.logger.Info("message forged", map[string]any{
		"msg_id":   id,
		"receiver": receiver,
		"db":       cfg.Database,
		"slot":     cfg.Slot,
		"bytes":    len(block),
	})
	return newJob(id, receiver), nil
}

// Recover writes the latest snapshot of the slot row back and forwards
// forwardID to receiver after the settle delay. A zero forwardID forwards
// the restored row itself.
//
// Every forgery snapshots the row it overwrites, so after two forgeries the
// latest snapshot holds the first forgery, not the original message.
// Recover then replays the earlier forgery rather than undoing both.
func (p *Pipeline) Recover(ctx context.Context, forwardID uint64, receiver string) (*Job, error) {
	if strings.TrimSpace(receiver) == "" {
		return nil, fmt.Errorf("%w: receiver is required", engine.ErrInvalidRequest)
	}
	if p.snapshots == nil {
		return nil, errors.New("recover: no snapshot store configured")
	}

	p.mu.Lock()
	cfg := p.config

	rec, err := p.snapshots.Latest(ctx, cfg.Database, cfg.Slot)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	if _, err := p.query.ExecuteArgs(ctx, cfg.Database, restoreSQL,
		rec.MsgSvrID, blobArg(rec.CompressContent), blobArg(rec.BytesExtra), cfg.Slot); err != nil {
		p.mu.Unlock()
		return nil, fmt.Errorf("restore slot %d: %w", cfg.Slot, err)
	}
	p.collector.IncRecovery()

	id := forwardID
	if id == 0 {
		id = rec.MsgSvrID
	}
	p.logger.Info("slot restored", map[string]any{
		"msg_id":   id,
		"receiver": receiver,
		"taken_at": rec.TakenAt,
	})

	job := newJob(id, receiver)
	go p.forward(ctx, job)
	return job, nil
}

// forward waits out the settle delay, forwards the job's message and
// releases the slot.
func (p *Pipeline) forward(ctx context.Context, job *Job) {
	defer p.mu.Unlock()

	err := sleep(ctx, p.config.Settle)
	if err == nil {
		var status int32
		status, err = p.engine.Forward(ctx, job.ID, job.Receiver)
		if err == nil {
			err = engine.StatusError(types.FuncForwardMsg, status)
		}
	}

	if err != nil {
		p.collector.IncForgeryFailed()
		p.logger.Error("forward failed", map[string]any{
			"msg_id":   job.ID,
			"receiver": job.Receiver,
			"error":    err.Error(),
		})
	} else {
		p.collector.IncForgeryForwarded()
	}
	job.finish(err)
}

func (p *Pipeline) readSlot(ctx context.Context) (*snapshot.Record, error) {
	cfg := p.config
	rows, err := p.query.ExecuteArgs(ctx, cfg.Database, slotSQL, cfg.Slot)
	if err != nil {
		return nil, fmt.Errorf("read slot %d: %w", cfg.Slot, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s localId %d", ErrSlotMissing, cfg.Database, cfg.Slot)
	}

	row := rows[0]
	rec := &snapshot.Record{}
	if !row.IsNull("MsgSvrID") {
		if rec.MsgSvrID, err = row.Uint64("MsgSvrID"); err != nil {
			return nil, err
		}
	}
	if rec.CompressContent, err = row.Bytes("CompressContent"); err != nil {
		return nil, err
	}
	if rec.BytesExtra, err = row.Bytes("BytesExtra"); err != nil {
		return nil, err
	}
	return rec, nil
}

// blobArg binds an empty blob as NULL.
func blobArg(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
