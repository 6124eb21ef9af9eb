package metrics

import (
	"sync"
	"testing"
)

func TestCollector_IncrementMethods(t *testing.T) {
	c := NewCollector("127.0.0.1:10086", "sess-1")

	c.IncCall("exec_db_query")
	c.IncCall("exec_db_query")
	c.IncCall("forward_msg")
	c.IncCallFailure()
	c.IncFunctionMismatch()
	c.IncPushReceived()
	c.IncPushReceived()
	c.IncPushDecodeError()
	c.IncPushReconnect()
	c.IncQuery()
	c.IncQueryError()
	c.IncRetryAttempt()
	c.IncRetryAttempt()
	c.IncRetryAttempt()
	c.IncForgeryStarted()
	c.IncForgeryForwarded()
	c.IncForgeryFailed()
	c.IncRecovery()
	c.IncPublishSuccess()
	c.IncPublishFailure()

	s := c.Snapshot()

	checks := []struct {
		name string
		got  int64
		want int64
	}{
		{"Calls", s.Calls, 3},
		{"CallFailures", s.CallFailures, 1},
		{"FunctionMismatches", s.FunctionMismatches, 1},
		{"PushReceived", s.PushReceived, 2},
		{"PushDecodeErrors", s.PushDecodeErrors, 1},
		{"PushReconnects", s.PushReconnects, 1},
		{"Queries", s.Queries, 1},
		{"QueryErrors", s.QueryErrors, 1},
		{"RetryAttempts", s.RetryAttempts, 3},
		{"ForgeriesStarted", s.ForgeriesStarted, 1},
		{"ForgeriesForwarded", s.ForgeriesForwarded, 1},
		{"ForgeriesFailed", s.ForgeriesFailed, 1},
		{"Recoveries", s.Recoveries, 1},
		{"PublishSuccess", s.PublishSuccess, 1},
		{"PublishFailure", s.PublishFailure, 1},
	}
	for _, ch := range checks {
		if ch.got != ch.want {
			t.Errorf("%s = %d, want %d", ch.name, ch.got, ch.want)
		}
	}

	if s.CallsByFunc["exec_db_query"] != 2 {
		t.Errorf("CallsByFunc[exec_db_query] = %d, want 2", s.CallsByFunc["exec_db_query"])
	}
	if s.CallsByFunc["forward_msg"] != 1 {
		t.Errorf("CallsByFunc[forward_msg] = %d, want 1", s.CallsByFunc["forward_msg"])
	}
}

func TestCollector_Dimensions(t *testing.T) {
	c := NewCollector("10.0.0.2:10086", "sess-42")
	s := c.Snapshot()

	if s.Endpoint != "10.0.0.2:10086" {
		t.Errorf("Endpoint = %q, want %q", s.Endpoint, "10.0.0.2:10086")
	}
	if s.SessionID != "sess-42" {
		t.Errorf("SessionID = %q, want %q", s.SessionID, "sess-42")
	}
}

func TestCollector_SnapshotImmutability(t *testing.T) {
	c := NewCollector("e", "s")
	c.IncCall("is_login")

	s1 := c.Snapshot()

	c.IncCall("is_login")
	c.IncQuery()

	if s1.Calls != 1 {
		t.Errorf("s1.Calls = %d, want 1 (snapshot should be frozen)", s1.Calls)
	}
	if s1.Queries != 0 {
		t.Errorf("s1.Queries = %d, want 0 (snapshot should be frozen)", s1.Queries)
	}

	s2 := c.Snapshot()
	if s2.Calls != 2 {
		t.Errorf("s2.Calls = %d, want 2", s2.Calls)
	}
}

func TestCollector_SnapshotCallsByFuncIsolation(t *testing.T) {
	c := NewCollector("e", "s")
	c.IncCall("is_login")

	s := c.Snapshot()
	s.CallsByFunc["is_login"] = 999
	s.CallsByFunc["injected"] = 1

	s2 := c.Snapshot()
	if s2.CallsByFunc["is_login"] != 1 {
		t.Errorf("CallsByFunc[is_login] = %d, want 1 (collector should be isolated from snapshot mutation)", s2.CallsByFunc["is_login"])
	}
	if _, exists := s2.CallsByFunc["injected"]; exists {
		t.Error("CallsByFunc should not contain injected key from snapshot mutation")
	}
}

func TestCollector_NilReceiverSafety(t *testing.T) {
	var c *Collector

	// None of these should panic
	c.IncCall("x")
	c.IncCallFailure()
	c.IncFunctionMismatch()
	c.IncPushReceived()
	c.IncPushDecodeError()
	c.IncPushReconnect()
	c.IncQuery()
	c.IncQueryError()
	c.IncRetryAttempt()
	c.IncForgeryStarted()
	c.IncForgeryForwarded()
	c.IncForgeryFailed()
	c.IncRecovery()
	c.IncPublishSuccess()
	c.IncPublishFailure()

	s := c.Snapshot()
	if s.Calls != 0 {
		t.Errorf("nil collector snapshot Calls = %d, want 0", s.Calls)
	}
	if s.CallsByFunc != nil {
		t.Errorf("nil collector snapshot CallsByFunc should be nil, got %v", s.CallsByFunc)
	}
}

func TestCollector_ConcurrentAccess(t *testing.T) {
	c := NewCollector("e", "s")
	const goroutines = 10
	const iterations = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for range goroutines {
		go func() {
			defer wg.Done()
			for range iterations {
				c.IncCall("exec_db_query")
				c.IncPushReceived()
				c.IncRetryAttempt()
			}
		}()
	}

	wg.Wait()

	s := c.Snapshot()
	want := int64(goroutines * iterations)

	if s.Calls != want {
		t.Errorf("Calls = %d, want %d", s.Calls, want)
	}
	if s.CallsByFunc["exec_db_query"] != want {
		t.Errorf("CallsByFunc[exec_db_query] = %d, want %d", s.CallsByFunc["exec_db_query"], want)
	}
	if s.PushReceived != want {
		t.Errorf("PushReceived = %d, want %d", s.PushReceived, want)
	}
	if s.RetryAttempts != want {
		t.Errorf("RetryAttempts = %d, want %d", s.RetryAttempts, want)
	}
}

func TestCollector_ZeroValueSnapshot(t *testing.T) {
	c := NewCollector("e", "s")
	s := c.Snapshot()

	if s.Calls != 0 || s.CallFailures != 0 || s.FunctionMismatches != 0 {
		t.Error("fresh collector should have zero command counters")
	}
	if s.PushReceived != 0 || s.PushDecodeErrors != 0 || s.PushReconnects != 0 {
		t.Error("fresh collector should have zero push counters")
	}
	if s.ForgeriesStarted != 0 || s.ForgeriesForwarded != 0 || s.ForgeriesFailed != 0 || s.Recoveries != 0 {
		t.Error("fresh collector should have zero forgery counters")
	}
	if len(s.CallsByFunc) != 0 {
		t.Errorf("fresh collector CallsByFunc should be empty, got %v", s.CallsByFunc)
	}
}
