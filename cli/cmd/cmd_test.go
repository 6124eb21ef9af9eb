package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ferry/cli/config"
	"github.com/pithecene-io/ferry/cli/tui"
	"github.com/pithecene-io/ferry/engine"
	"github.com/pithecene-io/ferry/enginetest"
	"github.com/pithecene-io/ferry/forge"
	"github.com/pithecene-io/ferry/iox"
	"github.com/pithecene-io/ferry/log"
	"github.com/pithecene-io/ferry/room"
	"github.com/pithecene-io/ferry/transport"
	"github.com/pithecene-io/ferry/types"
)

const originalMsgSvrID = "8864946020601626971"

func TestReadOnlyFlags_IncludesTUI(t *testing.T) {
	hasTUI := false
	for _, f := range ReadOnlyFlags() {
		if f.Names()[0] == "tui" {
			hasTUI = true
			break
		}
	}
	if !hasTUI {
		t.Error("ReadOnlyFlags should include --tui flag for explicit error handling")
	}
}

func TestApp_EngineCommandsAcceptEngineFlags(t *testing.T) {
	for _, c := range App("test").Commands {
		if c.Name == "version" {
			continue
		}
		names := make(map[string]bool)
		for _, f := range c.Flags {
			names[f.Names()[0]] = true
		}
		for _, want := range []string{"config", "host", "port", "push-port", "log-level"} {
			if !names[want] {
				t.Errorf("%s is missing --%s", c.Name, want)
			}
		}
	}
}

func TestIsStderrTTY(_ *testing.T) {
	// Actual TTY behavior depends on runtime environment.
	_ = isStderrTTY()
}

// fakeEngine starts a fake engine holding the forgery slot and a room.
func fakeEngine(t *testing.T) *enginetest.Server {
	t.Helper()
	srv, err := enginetest.New(forge.DefaultDatabase, room.ContactDB)
	if err != nil {
		t.Fatalf("enginetest.New failed: %v", err)
	}
	t.Cleanup(iox.CloseFunc(srv))

	seed := map[string][]string{
		forge.DefaultDatabase: {
			"CREATE TABLE MSG (localId INTEGER PRIMARY KEY, MsgSvrID INTEGER, Type INTEGER, CompressContent BLOB, BytesExtra BLOB)",
			"INSERT INTO MSG VALUES (55, " + originalMsgSvrID + ", 49, x'c0ffee', x'0102')",
			"INSERT INTO MSG VALUES (56, 1, 1, NULL, NULL)",
		},
		room.ContactDB: {
			"CREATE TABLE ChatRoom (ChatRoomName TEXT PRIMARY KEY, RoomData BLOB)",
			"CREATE TABLE Contact (UserName TEXT PRIMARY KEY, Alias TEXT, NickName TEXT)",
			"INSERT INTO Contact VALUES ('wxid_b', 'bee', 'Bea')",
		},
	}
	for db, stmts := range seed {
		for _, stmt := range stmts {
			if err := srv.Exec(db, stmt); err != nil {
				t.Fatalf("seed %s: %v", db, err)
			}
		}
	}
	blob := room.EncodeRoomData([]room.Member{{Wxid: "wxid_b", DisplayName: "B"}, {Wxid: "wxid_a"}})
	if err := srv.Exec(room.ContactDB, "INSERT INTO ChatRoom VALUES (?, ?)", "1@chatroom", blob); err != nil {
		t.Fatalf("seed room: %v", err)
	}

	srv.Contacts = []types.Contact{
		{Wxid: "wxid_a", Name: "Alice"},
		{Wxid: "wxid_b", Name: "Bea", Remark: "neighbour"},
	}
	return srv
}

// engineArgs returns the flags pointing a command at srv.
func engineArgs(srv *enginetest.Server) []string {
	cfg := srv.Config()
	return []string{
		"--host", cfg.Host,
		"--port", strconv.Itoa(cfg.Port),
		"--push-port", strconv.Itoa(cfg.PushPort),
		"--log-level", "error",
	}
}

// run executes the app with args and returns what it rendered.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := App("test")
	app.Writer = &out
	app.ErrWriter = &bytes.Buffer{}
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.RunContext(t.Context(), append([]string{"ferry"}, args...))
	return out.String(), err
}

// command builds "ferry <name> <engine flags> <rest...>".
func command(srv *enginetest.Server, name string, rest ...string) []string {
	args := append([]string{name}, engineArgs(srv)...)
	return append(args, rest...)
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var ec cli.ExitCoder
	if !errors.As(err, &ec) {
		t.Fatalf("expected cli.ExitCoder, got %v", err)
	}
	return ec.ExitCode()
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	return v
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version", "-f", "json")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	got := decode[VersionResponse](t, out)
	if got.Version != types.Version || got.Commit != "test" || got.WireVersion != types.WireVersion {
		t.Errorf("version = %+v", got)
	}
}

func TestVersion_RejectsTUI(t *testing.T) {
	_, err := run(t, "version", "--tui")
	if code := exitCode(t, err); code != exitFailure {
		t.Errorf("exit code = %d, want %d", code, exitFailure)
	}
}

func TestStatus(t *testing.T) {
	srv := fakeEngine(t)
	out, err := run(t, command(srv, "status", "-f", "json")...)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	got := decode[tui.StatusView](t, out)
	if !got.LoggedIn || got.Wxid != "wxid_self" || got.Contacts != 2 || got.DBs != 2 {
		t.Errorf("status = %+v", got)
	}
}

func TestStatus_LoggedOut(t *testing.T) {
	srv := fakeEngine(t)
	srv.LoggedIn = false
	out, err := run(t, command(srv, "status", "-f", "json")...)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	got := decode[tui.StatusView](t, out)
	if got.LoggedIn || got.Wxid != "" {
		t.Errorf("status = %+v, want logged out without account", got)
	}
	if n := len(srv.RequestsFor(types.FuncGetUserInfo)); n != 0 {
		t.Errorf("user info requests = %d, want 0", n)
	}
}

func TestEngineUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	_, err = run(t, "dbs", "--port", strconv.Itoa(port), "--log-level", "error")
	if code := exitCode(t, err); code != exitEngineUnavailable {
		t.Errorf("exit code = %d, want %d", code, exitEngineUnavailable)
	}
}

func TestContacts_Search(t *testing.T) {
	srv := fakeEngine(t)
	out, err := run(t, command(srv, "contacts", "-f", "json", "--search", "NEIGH")...)
	if err != nil {
		t.Fatalf("contacts failed: %v", err)
	}
	got := decode[[]types.Contact](t, out)
	if len(got) != 1 || got[0].Wxid != "wxid_b" {
		t.Errorf("contacts = %+v, want only wxid_b", got)
	}
}

func TestContacts_RejectsTUI(t *testing.T) {
	srv := fakeEngine(t)
	_, err := run(t, command(srv, "contacts", "--tui")...)
	if code := exitCode(t, err); code != exitFailure {
		t.Errorf("exit code = %d, want %d", code, exitFailure)
	}
	if n := len(srv.Requests()); n != 0 {
		t.Errorf("engine saw %d requests, want 0", n)
	}
}

func TestDBsAndTables(t *testing.T) {
	srv := fakeEngine(t)

	out, err := run(t, command(srv, "dbs", "-f", "json")...)
	if err != nil {
		t.Fatalf("dbs failed: %v", err)
	}
	dbs := decode[[]string](t, out)
	if len(dbs) != 2 {
		t.Errorf("dbs = %v, want 2 databases", dbs)
	}

	out, err = run(t, command(srv, "tables", "-f", "json", room.ContactDB)...)
	if err != nil {
		t.Fatalf("tables failed: %v", err)
	}
	if !strings.Contains(out, "ChatRoom") || !strings.Contains(out, "Contact") {
		t.Errorf("tables output missing tables: %s", out)
	}
}

func TestTables_Usage(t *testing.T) {
	_, err := run(t, "tables")
	if code := exitCode(t, err); code != exitFailure {
		t.Errorf("exit code = %d, want %d", code, exitFailure)
	}
}

func TestQuery_BindsArgs(t *testing.T) {
	srv := fakeEngine(t)
	out, err := run(t, command(srv, "query", "-f", "json",
		forge.DefaultDatabase, "SELECT localId, CompressContent FROM MSG WHERE localId = ?", "55")...)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	rows := decode[[]map[string]any](t, out)
	if len(rows) != 1 {
		t.Fatalf("rows = %v, want 1", rows)
	}
	if rows[0]["CompressContent"] != "c0ffee" {
		t.Errorf("CompressContent = %v, want hex c0ffee", rows[0]["CompressContent"])
	}
	reqs := srv.RequestsFor(types.FuncExecDBQuery)
	if sql := reqs[len(reqs)-1].Query.SQL; !strings.HasSuffix(sql, "localId = 55") {
		t.Errorf("bound SQL = %q", sql)
	}
}

func TestQuery_Failure(t *testing.T) {
	srv := fakeEngine(t)
	if _, err := run(t, command(srv, "query", forge.DefaultDatabase, "SELECT * FROM nope")...); err == nil {
		t.Error("expected error for a failing statement")
	}
}

func TestParseArgs(t *testing.T) {
	got := parseArgs([]string{"55", "-3", "wxid_a", "1.5", "99999999999999999999"})
	want := []any{int64(55), int64(-3), "wxid_a", "1.5", "99999999999999999999"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("arg %d = %#v, want %#v", i, got[i], want[i])
		}
	}
}

func TestMembers(t *testing.T) {
	srv := fakeEngine(t)
	out, err := run(t, command(srv, "members", "-f", "json", "1@chatroom")...)
	if err != nil {
		t.Fatalf("members failed: %v", err)
	}
	got := decode[[]tui.MemberRow](t, out)
	want := []tui.MemberRow{
		{Wxid: "wxid_a"},
		{Wxid: "wxid_b", NickName: "Bea", Alias: "bee", DisplayName: "B"},
	}
	if len(got) != len(want) {
		t.Fatalf("members = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("member %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

// forgeConfig writes a ferry.yaml pointing at srv with a short settle
// delay and a filesystem snapshot store.
func forgeConfig(t *testing.T, srv *enginetest.Server) string {
	t.Helper()
	cfg := srv.Config()
	dir := t.TempDir()
	body := "engine:\n" +
		"  host: " + cfg.Host + "\n" +
		"  port: " + strconv.Itoa(cfg.Port) + "\n" +
		"  push_port: " + strconv.Itoa(cfg.PushPort) + "\n" +
		"forge:\n  settle: 10ms\n" +
		"snapshot:\n  backend: fs\n  path: " + filepath.Join(dir, "snapshots") + "\n" +
		"log_level: error\n"
	path := filepath.Join(dir, "ferry.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func slotID(t *testing.T, srv *enginetest.Server) string {
	t.Helper()
	var id string
	if err := srv.QueryRow(forge.DefaultDatabase, "SELECT CAST(MsgSvrID AS TEXT) FROM MSG WHERE localId = 55").Scan(&id); err != nil {
		t.Fatalf("read slot: %v", err)
	}
	return id
}

func TestSendRichThenRecover(t *testing.T) {
	srv := fakeEngine(t)
	cfgPath := forgeConfig(t, srv)
	content := filepath.Join(t.TempDir(), "card.xml")
	if err := os.WriteFile(content, []byte("<msg><appmsg>hi</appmsg></msg>"), 0o600); err != nil {
		t.Fatalf("write content: %v", err)
	}

	out, err := run(t, "send-rich", "--config", cfgPath, "-f", "json", "filehelper", content)
	if err != nil {
		t.Fatalf("send-rich failed: %v", err)
	}
	sent := decode[ForgeResult](t, out)
	if sent.Status != "forwarded" || sent.Receiver != "filehelper" {
		t.Errorf("send-rich = %+v", sent)
	}
	if !regexp.MustCompile(`^10\d{13}$`).MatchString(sent.MsgID) {
		t.Errorf("msg id %q is not a synthetic id", sent.MsgID)
	}
	if got := slotID(t, srv); got != sent.MsgID {
		t.Errorf("slot MsgSvrID = %s, want %s", got, sent.MsgID)
	}

	out, err = run(t, "recover", "--config", cfgPath, "-f", "json", "filehelper")
	if err != nil {
		t.Fatalf("recover failed: %v", err)
	}
	recovered := decode[ForgeResult](t, out)
	if recovered.MsgID != originalMsgSvrID || recovered.Status != "forwarded" {
		t.Errorf("recover = %+v", recovered)
	}
	if got := slotID(t, srv); got != originalMsgSvrID {
		t.Errorf("slot MsgSvrID after recover = %s, want %s", got, originalMsgSvrID)
	}
	if n := len(srv.RequestsFor(types.FuncForwardMsg)); n != 2 {
		t.Errorf("forward requests = %d, want 2", n)
	}
}

func TestSendRich_ForwardFailureExitCode(t *testing.T) {
	srv := fakeEngine(t)
	srv.Handle(types.FuncForwardMsg, func(req *types.Request) *types.Response {
		return &types.Response{Func: req.Func, Status: -1}
	})

	app := App("test")
	var out bytes.Buffer
	app.Writer = &out
	app.ExitErrHandler = func(*cli.Context, error) {}
	app.Reader = strings.NewReader("<msg>stdin</msg>")
	err := app.RunContext(t.Context(), []string{"ferry", "send-rich", "--config", forgeConfig(t, srv), "-f", "json", "filehelper", "-"})

	if code := exitCode(t, err); code != exitForwardFailed {
		t.Errorf("exit code = %d, want %d", code, exitForwardFailed)
	}
	got := decode[ForgeResult](t, out.String())
	if got.Status != "failed" || got.Error == "" {
		t.Errorf("result = %+v, want failed with error", got)
	}
}

func TestRecover_InvalidID(t *testing.T) {
	_, err := run(t, "recover", "--id", "abc", "filehelper")
	if code := exitCode(t, err); code != exitFailure {
		t.Errorf("exit code = %d, want %d", code, exitFailure)
	}
}

func TestRecover_WithoutSnapshotStore(t *testing.T) {
	srv := fakeEngine(t)
	if _, err := run(t, command(srv, "recover", "filehelper")...); err == nil {
		t.Error("expected error without a snapshot store")
	}
}

func TestReadContent(t *testing.T) {
	got, err := readContent("-", strings.NewReader("<msg/>"))
	if err != nil || got != "<msg/>" {
		t.Errorf("readContent(-) = %q, %v", got, err)
	}
	if _, err := readContent("-", strings.NewReader("")); err == nil {
		t.Error("expected error for empty content")
	}
	if _, err := readContent(filepath.Join(t.TempDir(), "missing.xml"), nil); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestConfigFlagsOverrideFile(t *testing.T) {
	srv := fakeEngine(t)
	path := filepath.Join(t.TempDir(), "ferry.yaml")
	if err := os.WriteFile(path, []byte("engine:\n  host: 127.0.0.1\n  port: 1\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	args := append([]string{"dbs", "--config", path, "-f", "json"}, engineArgs(srv)...)
	if _, err := run(t, args...); err != nil {
		t.Fatalf("flags should override the config port: %v", err)
	}
}

func TestOpenSnapshotsAndAdapter(t *testing.T) {
	store, err := openSnapshots(t.Context(), config.SnapshotConfig{})
	if err != nil || store != nil {
		t.Errorf("empty backend = %v, %v; want nil store", store, err)
	}
	if _, err := openSnapshots(t.Context(), config.SnapshotConfig{Backend: "fs", Path: t.TempDir()}); err != nil {
		t.Errorf("fs backend: %v", err)
	}

	a, err := openAdapter(config.AdapterConfig{})
	if err != nil || a != nil {
		t.Errorf("empty adapter = %v, %v; want nil adapter", a, err)
	}
	zero := 0
	a, err = openAdapter(config.AdapterConfig{Type: "webhook", URL: "http://127.0.0.1:1/hook", Retries: &zero})
	if err != nil {
		t.Fatalf("webhook adapter: %v", err)
	}
	_ = a.Close()
	a, err = openAdapter(config.AdapterConfig{Type: "redis", URL: "redis://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("redis adapter: %v", err)
	}
	_ = a.Close()
	if _, err := openAdapter(config.AdapterConfig{Type: "kafka", URL: "x"}); err == nil {
		t.Error("expected error for unknown adapter")
	}
}

func TestListen_DeliversAndDisables(t *testing.T) {
	srv := fakeEngine(t)
	tr := transport.New(srv.Config(), log.NewNop())
	t.Cleanup(iox.CloseFunc(tr))
	if err := tr.Connect(t.Context()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	eng := engine.New(tr)

	var (
		mu  sync.Mutex
		got []*types.WxMsg
	)
	handler := func(resp *types.Response, err error) {
		if err != nil || resp == nil || resp.Msg == nil {
			return
		}
		mu.Lock()
		got = append(got, resp.Msg)
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- listen(ctx, eng, tr, true, handler) }()

	select {
	case <-srv.PushReady():
	case <-time.After(5 * time.Second):
		t.Fatal("push channel never connected")
	}
	if err := srv.Push(&types.WxMsg{ID: 7, Type: 1, Sender: "wxid_a", Content: "hi"}); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("message was not delivered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("listen returned %v", err)
	}

	enable := srv.RequestsFor(types.FuncEnableRecvTxt)
	if len(enable) != 1 || !enable[0].Flag {
		t.Errorf("enable requests = %+v, want one with include_feed", enable)
	}
	if n := len(srv.RequestsFor(types.FuncDisableRecvTxt)); n != 1 {
		t.Errorf("disable requests = %d, want 1", n)
	}
}
