// Package query executes SQL against the engine's local databases and
// decodes the tagged field values it returns into Go values.
package query

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/pithecene-io/ferry/log"
	"github.com/pithecene-io/ferry/metrics"
	"github.com/pithecene-io/ferry/types"
)

// wideIntegerDigits is the length of the largest integer a double represents
// exactly (9007199254740991). Integer text this long or longer decodes to
// *big.Int.
const wideIntegerDigits = 16

// ErrQuery matches every *QueryError.
var ErrQuery = errors.New("query failed")

// QueryError reports a rejected statement or an undecodable result.
//
//nolint:revive // query.QueryError reads naturally at call sites
type QueryError struct {
	DB     string
	SQL    string
	Column string
	Status int32
	Err    error
}

func (e *QueryError) Error() string {
	msg := fmt.Sprintf("query %s %q", e.DB, e.SQL)
	if e.Column != "" {
		msg += fmt.Sprintf(" column %s", e.Column)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return fmt.Sprintf("%s: engine returned status %d", msg, e.Status)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Is reports ErrQuery.
func (e *QueryError) Is(target error) bool {
	return target == ErrQuery
}

// Engine is the subset of the engine client the query subsystem needs.
type Engine interface {
	ExecQuery(ctx context.Context, db, sql string) ([]types.DBRow, int32, error)
	DBNames(ctx context.Context) ([]string, error)
	DBTables(ctx context.Context, db string) ([]types.DBTable, error)
}

// Option configures an Executor.
type Option func(*Executor)

// WithCollector records query counters on c.
func WithCollector(c *metrics.Collector) Option {
	return func(e *Executor) { e.collector = c }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// Executor runs statements and decodes their rows.
type Executor struct {
	engine    Engine
	collector *metrics.Collector
	logger    *log.Logger
}

// New creates an Executor over engine.
func New(engine Engine, opts ...Option) *Executor {
	e := &Executor{engine: engine, logger: log.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs sql against db and decodes every row.
//
// The statement is sent verbatim. Use ExecuteArgs to bind untrusted values.
// Transport errors propagate unwrapped; a non-success status or a field
// that fails to parse is a *QueryError.
func (e *Executor) Execute(ctx context.Context, db, sql string) ([]Row, error) {
	e.collector.IncQuery()

	raw, status, err := e.engine.ExecQuery(ctx, db, sql)
	if err != nil {
		e.collector.IncQueryError()
		return nil, err
	}
	if status != types.StatusOK {
		e.collector.IncQueryError()
		return nil, &QueryError{DB: db, SQL: sql, Status: status}
	}

	rows := make([]Row, 0, len(raw))
	for _, r := range raw {
		row, err := DecodeRow(r)
		if err != nil {
			e.collector.IncQueryError()
			var qe *QueryError
			if errors.As(err, &qe) {
				qe.DB, qe.SQL = db, sql
			}
			return nil, err
		}
		rows = append(rows, row)
	}

	e.logger.Debug("query executed", map[string]any{
		"db":   db,
		"rows": len(rows),
	})
	return rows, nil
}

// ExecuteArgs binds args into the ? placeholders of sql and executes it.
func (e *Executor) ExecuteArgs(ctx context.Context, db, sql string, args ...any) ([]Row, error) {
	bound, err := Bind(sql, args...)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, db, bound)
}

// ListDatabases returns the names of the queryable databases.
func (e *Executor) ListDatabases(ctx context.Context) ([]string, error) {
	return e.engine.DBNames(ctx)
}

// ListTables returns the tables of db.
func (e *Executor) ListTables(ctx context.Context, db string) ([]types.DBTable, error) {
	return e.engine.DBTables(ctx, db)
}

// DecodeRow decodes every field of r by its type tag.
func DecodeRow(r types.DBRow) (Row, error) {
	row := Row{
		Columns: make([]string, 0, len(r.Fields)),
		Values:  make(map[string]any, len(r.Fields)),
	}
	for _, f := range r.Fields {
		v, err := DecodeField(f)
		if err != nil {
			return Row{}, err
		}
		row.Columns = append(row.Columns, f.Column)
		row.Values[f.Column] = v
	}
	return row, nil
}

// DecodeField decodes one field. Decoding is total over the tag space:
// unknown tags decode as text.
func DecodeField(f types.DBField) (any, error) {
	switch f.Type {
	case types.FieldInteger:
		text := string(f.Content)
		if len(text) >= wideIntegerDigits {
			n, ok := new(big.Int).SetString(text, 10)
			if !ok {
				return nil, &QueryError{Column: f.Column, Err: fmt.Errorf("invalid integer %q", text)}
			}
			return n, nil
		}
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, &QueryError{Column: f.Column, Err: err}
		}
		return n, nil
	case types.FieldFloat:
		n, err := strconv.ParseFloat(string(f.Content), 64)
		if err != nil {
			return nil, &QueryError{Column: f.Column, Err: err}
		}
		return n, nil
	case types.FieldBlob:
		return append([]byte{}, f.Content...), nil
	case types.FieldNull:
		return nil, nil
	default:
		return string(f.Content), nil
	}
}
