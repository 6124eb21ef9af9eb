package transport_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pithecene-io/ferry/enginetest"
	"github.com/pithecene-io/ferry/ipc"
	"github.com/pithecene-io/ferry/iox"
	"github.com/pithecene-io/ferry/log"
	"github.com/pithecene-io/ferry/metrics"
	"github.com/pithecene-io/ferry/transport"
	"github.com/pithecene-io/ferry/types"
)

func startServer(t *testing.T, dbs ...string) *enginetest.Server {
	t.Helper()
	srv, err := enginetest.New(dbs...)
	if err != nil {
		t.Fatalf("enginetest.New failed: %v", err)
	}
	t.Cleanup(iox.CloseFunc(srv))
	return srv
}

func call(t *testing.T, c *transport.Client, req *types.Request) *types.Response {
	t.Helper()
	payload, err := ipc.EncodeRequest(req)
	if err != nil {
		t.Fatalf("EncodeRequest failed: %v", err)
	}
	reply, err := c.Call(t.Context(), payload)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	resp, err := ipc.DecodeResponse(reply)
	if err != nil {
		t.Fatalf("DecodeResponse failed: %v", err)
	}
	return resp
}

func TestClient_CallBeforeConnect(t *testing.T) {
	c := transport.New(transport.DefaultConfig(), log.NewNop())
	t.Cleanup(iox.CloseFunc(c))

	_, err := c.Call(t.Context(), []byte{0x80})
	if !errors.Is(err, transport.ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestClient_ConnectFailureLeavesDisconnected(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	cfg := transport.DefaultConfig()
	cfg.Port = port
	cfg.DialTimeout = time.Second
	c := transport.New(cfg, log.NewNop())
	t.Cleanup(iox.CloseFunc(c))

	err = c.Connect(t.Context())
	var tErr *transport.TransportError
	if !errors.As(err, &tErr) || tErr.Op != "dial" {
		t.Fatalf("expected dial TransportError, got %v", err)
	}
	if _, err := c.Call(t.Context(), []byte{0x80}); !errors.Is(err, transport.ErrNotConnected) {
		t.Errorf("expected ErrNotConnected after failed connect, got %v", err)
	}
}

func TestClient_ConnectIdempotent(t *testing.T) {
	srv := startServer(t)
	c := transport.New(srv.Config(), log.NewNop())
	t.Cleanup(iox.CloseFunc(c))

	for range 3 {
		if err := c.Connect(t.Context()); err != nil {
			t.Fatalf("Connect failed: %v", err)
		}
	}
	resp := call(t, c, &types.Request{Func: types.FuncGetSelfWxid})
	if resp.Str != "wxid_self" {
		t.Errorf("Str = %q, want wxid_self", resp.Str)
	}
}

func TestClient_ConcurrentCallsReceiveOwnReplies(t *testing.T) {
	srv := startServer(t, "MSG0.db")
	c := transport.New(srv.Config(), log.NewNop())
	t.Cleanup(iox.CloseFunc(c))
	if err := c.Connect(t.Context()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	const callers = 16
	const perCaller = 20

	var wg sync.WaitGroup
	errs := make(chan error, callers*perCaller)
	for g := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perCaller {
				want := fmt.Sprintf("%d", g*1000+i)
				payload, err := ipc.EncodeRequest(&types.Request{
					Func:  types.FuncExecDBQuery,
					Query: &types.DBQuery{DB: "MSG0.db", SQL: "SELECT " + want},
				})
				if err != nil {
					errs <- err
					return
				}
				reply, err := c.Call(context.Background(), payload)
				if err != nil {
					errs <- err
					return
				}
				resp, err := ipc.DecodeResponse(reply)
				if err != nil {
					errs <- err
					return
				}
				if len(resp.Rows) != 1 || string(resp.Rows[0].Fields[0].Content) != want {
					errs <- fmt.Errorf("caller %d got %+v, want %s", g, resp.Rows, want)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestClient_CancelAfterReplyKeepsConnection(t *testing.T) {
	srv := startServer(t)
	c := transport.New(srv.Config(), log.NewNop())
	t.Cleanup(iox.CloseFunc(c))
	if err := c.Connect(t.Context()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	payload, _ := ipc.EncodeRequest(&types.Request{Func: types.FuncIsLogin})
	for i := range 200 {
		ctx, cancel := context.WithCancel(t.Context())
		_, err := c.Call(ctx, payload)
		cancel()
		if err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
	}
	if !c.Connected() {
		t.Error("connection dropped after late cancellations")
	}
}

func TestClient_CallFailureDropsConnection(t *testing.T) {
	srv := startServer(t)
	srv.Handle(types.FuncIsLogin, func(*types.Request) *types.Response { return nil })

	collector := metrics.NewCollector("test", "s")
	c := transport.New(srv.Config(), log.NewNop(), transport.WithCollector(collector))
	t.Cleanup(iox.CloseFunc(c))
	if err := c.Connect(t.Context()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	payload, _ := ipc.EncodeRequest(&types.Request{Func: types.FuncIsLogin})
	_, err := c.Call(t.Context(), payload)
	var tErr *transport.TransportError
	if !errors.As(err, &tErr) || tErr.Op != "read" {
		t.Fatalf("expected read TransportError, got %v", err)
	}
	if c.Connected() {
		t.Error("connection should be dropped after a read failure")
	}
	if _, err := c.Call(t.Context(), payload); !errors.Is(err, transport.ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}

	// Reconnecting restores service.
	if err := c.Connect(t.Context()); err != nil {
		t.Fatalf("reconnect failed: %v", err)
	}
	resp := call(t, c, &types.Request{Func: types.FuncGetSelfWxid})
	if resp.Str != "wxid_self" {
		t.Errorf("Str = %q after reconnect", resp.Str)
	}
}

func TestClient_CallTimeout(t *testing.T) {
	srv := startServer(t)
	release := make(chan struct{})
	srv.Handle(types.FuncIsLogin, func(*types.Request) *types.Response {
		<-release
		return &types.Response{Func: types.FuncIsLogin, Status: 1}
	})
	t.Cleanup(func() { close(release) })

	cfg := srv.Config()
	cfg.CallTimeout = 50 * time.Millisecond
	c := transport.New(cfg, log.NewNop())
	t.Cleanup(iox.CloseFunc(c))
	if err := c.Connect(t.Context()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	payload, _ := ipc.EncodeRequest(&types.Request{Func: types.FuncIsLogin})
	start := time.Now()
	_, err := c.Call(t.Context(), payload)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Errorf("expected a timeout net.Error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("call took %v, deadline not applied", elapsed)
	}
}

func TestClient_CallContextCanceled(t *testing.T) {
	srv := startServer(t)
	release := make(chan struct{})
	srv.Handle(types.FuncIsLogin, func(*types.Request) *types.Response {
		<-release
		return &types.Response{Func: types.FuncIsLogin, Status: 1}
	})
	t.Cleanup(func() { close(release) })

	c := transport.New(srv.Config(), log.NewNop())
	t.Cleanup(iox.CloseFunc(c))
	if err := c.Connect(t.Context()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	time.AfterFunc(50*time.Millisecond, cancel)

	payload, _ := ipc.EncodeRequest(&types.Request{Func: types.FuncIsLogin})
	_, err := c.Call(ctx, payload)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	srv := startServer(t)
	c := transport.New(srv.Config(), log.NewNop())
	if err := c.Connect(t.Context()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if err := c.Connect(t.Context()); !errors.Is(err, transport.ErrClosed) {
		t.Errorf("Connect after Close = %v, want ErrClosed", err)
	}
}

func TestConfig_Addresses(t *testing.T) {
	cfg := transport.Config{Host: "10.0.0.5", Port: 20000}
	if got := cfg.CommandAddr(); got != "10.0.0.5:20000" {
		t.Errorf("CommandAddr = %q", got)
	}
	if got := cfg.PushAddr(); got != "10.0.0.5:20001" {
		t.Errorf("PushAddr = %q, want port+1", got)
	}

	def := transport.Config{}
	if got := def.CommandAddr(); got != "127.0.0.1:10086" {
		t.Errorf("default CommandAddr = %q", got)
	}
	if got := def.PushAddr(); got != "127.0.0.1:10087" {
		t.Errorf("default PushAddr = %q", got)
	}
}
