// Package metrics provides per-client counters.
//
// The Collector accumulates counters for one client session. It is a leaf
// package with no internal dependencies; function codes are recorded under
// their string names.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Command channel
	Calls              int64
	CallFailures       int64
	FunctionMismatches int64
	CallsByFunc        map[string]int64

	// Push channel
	PushReceived     int64
	PushDecodeErrors int64
	PushReconnects   int64

	// Query subsystem
	Queries       int64
	QueryErrors   int64
	RetryAttempts int64

	// Forgery
	ForgeriesStarted   int64
	ForgeriesForwarded int64
	ForgeriesFailed    int64
	Recoveries         int64

	// Adapter
	PublishSuccess int64
	PublishFailure int64

	// Dimensions (informational, set at construction)
	Endpoint  string
	SessionID string
}

// Collector accumulates counters for one client session.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	calls              int64
	callFailures       int64
	functionMismatches int64
	callsByFunc        map[string]int64

	pushReceived     int64
	pushDecodeErrors int64
	pushReconnects   int64

	queries       int64
	queryErrors   int64
	retryAttempts int64

	forgeriesStarted   int64
	forgeriesForwarded int64
	forgeriesFailed    int64
	recoveries         int64

	publishSuccess int64
	publishFailure int64

	endpoint  string
	sessionID string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(endpoint, sessionID string) *Collector {
	return &Collector{
		callsByFunc: make(map[string]int64),
		endpoint:    endpoint,
		sessionID:   sessionID,
	}
}

func (c *Collector) inc(field *int64) {
	c.mu.Lock()
	*field++
	c.mu.Unlock()
}

// --- Command channel ---

// IncCall records one command issued under the named function.
func (c *Collector) IncCall(fn string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.calls++
	c.callsByFunc[fn]++
	c.mu.Unlock()
}

// IncCallFailure records a command that failed in transport or decoding.
func (c *Collector) IncCallFailure() {
	if c == nil {
		return
	}
	c.inc(&c.callFailures)
}

// IncFunctionMismatch records a reply whose function code differed from the request.
func (c *Collector) IncFunctionMismatch() {
	if c == nil {
		return
	}
	c.inc(&c.functionMismatches)
}

// --- Push channel ---

// IncPushReceived records a decoded push frame.
func (c *Collector) IncPushReceived() {
	if c == nil {
		return
	}
	c.inc(&c.pushReceived)
}

// IncPushDecodeError records a push frame that failed to decode.
func (c *Collector) IncPushDecodeError() {
	if c == nil {
		return
	}
	c.inc(&c.pushDecodeErrors)
}

// IncPushReconnect records a redial of the push endpoint.
func (c *Collector) IncPushReconnect() {
	if c == nil {
		return
	}
	c.inc(&c.pushReconnects)
}

// --- Query subsystem ---

// IncQuery records an executed query.
func (c *Collector) IncQuery() {
	if c == nil {
		return
	}
	c.inc(&c.queries)
}

// IncQueryError records a rejected or undecodable query.
func (c *Collector) IncQueryError() {
	if c == nil {
		return
	}
	c.inc(&c.queryErrors)
}

// IncRetryAttempt records a repeated read after an empty result.
func (c *Collector) IncRetryAttempt() {
	if c == nil {
		return
	}
	c.inc(&c.retryAttempts)
}

// --- Forgery ---

// IncForgeryStarted records a forgery whose row write succeeded.
func (c *Collector) IncForgeryStarted() {
	if c == nil {
		return
	}
	c.inc(&c.forgeriesStarted)
}

// IncForgeryForwarded records a forgery whose delayed forward succeeded.
func (c *Collector) IncForgeryForwarded() {
	if c == nil {
		return
	}
	c.inc(&c.forgeriesForwarded)
}

// IncForgeryFailed records a forgery that failed at any step.
func (c *Collector) IncForgeryFailed() {
	if c == nil {
		return
	}
	c.inc(&c.forgeriesFailed)
}

// IncRecovery records a recovery-mode forward.
func (c *Collector) IncRecovery() {
	if c == nil {
		return
	}
	c.inc(&c.recoveries)
}

// --- Adapter ---

// IncPublishSuccess records a message published downstream.
func (c *Collector) IncPublishSuccess() {
	if c == nil {
		return
	}
	c.inc(&c.publishSuccess)
}

// IncPublishFailure records a publish that exhausted its retries.
func (c *Collector) IncPublishFailure() {
	if c == nil {
		return
	}
	c.inc(&c.publishFailure)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byFunc := make(map[string]int64, len(c.callsByFunc))
	for k, v := range c.callsByFunc {
		byFunc[k] = v
	}

	return Snapshot{
		Calls:              c.calls,
		CallFailures:       c.callFailures,
		FunctionMismatches: c.functionMismatches,
		CallsByFunc:        byFunc,

		PushReceived:     c.pushReceived,
		PushDecodeErrors: c.pushDecodeErrors,
		PushReconnects:   c.pushReconnects,

		Queries:       c.queries,
		QueryErrors:   c.queryErrors,
		RetryAttempts: c.retryAttempts,

		ForgeriesStarted:   c.forgeriesStarted,
		ForgeriesForwarded: c.forgeriesForwarded,
		ForgeriesFailed:    c.forgeriesFailed,
		Recoveries:         c.recoveries,

		PublishSuccess: c.publishSuccess,
		PublishFailure: c.publishFailure,

		Endpoint:  c.endpoint,
		SessionID: c.sessionID,
	}
}
