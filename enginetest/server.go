// Package enginetest provides an in-process fake automation engine.
//
// Server listens on two loopback TCP ports speaking the ferry wire format:
// a command port answering one response per request and a push port that
// broadcasts messages to every connected listener. Database queries run
// against in-memory SQLite databases, one per database name.
package enginetest

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/pithecene-io/ferry/iox"
	"github.com/pithecene-io/ferry/ipc"
	"github.com/pithecene-io/ferry/transport"
	"github.com/pithecene-io/ferry/types"
)

// Handler answers one request. Returning nil closes the command connection
// without a reply.
type Handler func(req *types.Request) *types.Response

// Server is a fake engine. Its exported fields seed the static replies and
// may be set before the first request.
type Server struct {
	SelfWxid string
	UserInfo types.UserInfo
	Contacts []types.Contact
	MsgTypes types.MsgTypes
	LoggedIn bool

	cmdLn  net.Listener
	pushLn net.Listener

	mu        sync.Mutex
	dbs       map[string]*sql.DB
	handlers  map[types.Func]Handler
	requests  []*types.Request
	pushConns map[net.Conn]struct{}
	cmdConns  map[net.Conn]struct{}
	pushReady chan struct{}

	wg     sync.WaitGroup
	closed bool
}

// New starts a server on two ephemeral loopback ports. Databases named in
// dbNames are created empty; Exec seeds them.
func New(dbNames ...string) (*Server, error) {
	cmdLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen command: %w", err)
	}
	pushLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		_ = cmdLn.Close()
		return nil, fmt.Errorf("listen push: %w", err)
	}

	s := &Server{
		SelfWxid:  "wxid_self",
		UserInfo:  types.UserInfo{Wxid: "wxid_self", Name: "self"},
		MsgTypes:  types.MsgTypes{1: "text", 3: "image", 49: "app"},
		LoggedIn:  true,
		cmdLn:     cmdLn,
		pushLn:    pushLn,
		dbs:       make(map[string]*sql.DB),
		handlers:  make(map[types.Func]Handler),
		pushConns: make(map[net.Conn]struct{}),
		cmdConns:  make(map[net.Conn]struct{}),
		pushReady: make(chan struct{}, 16),
	}
	for _, name := range dbNames {
		if _, err := s.db(name); err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	s.wg.Add(2)
	go s.acceptCommands()
	go s.acceptPush()
	return s, nil
}

// Config returns a transport configuration pointing at the server.
func (s *Server) Config() transport.Config {
	cfg := transport.DefaultConfig()
	cfg.Port = s.cmdLn.Addr().(*net.TCPAddr).Port
	cfg.PushPort = s.pushLn.Addr().(*net.TCPAddr).Port
	return cfg
}

// Handle overrides the reply for fn.
func (s *Server) Handle(fn types.Func, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[fn] = h
}

// Exec runs statements against the named database, creating it on first use.
func (s *Server) Exec(dbName, stmt string, args ...any) error {
	db, err := s.db(dbName)
	if err != nil {
		return err
	}
	_, err = db.Exec(stmt, args...)
	return err
}

// QueryRow runs a single-row query against the named database.
func (s *Server) QueryRow(dbName, query string, args ...any) *sql.Row {
	db, _ := s.db(dbName)
	return db.QueryRow(query, args...)
}

// Requests returns every decoded request in arrival order.
func (s *Server) Requests() []*types.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestsFor returns the recorded requests for fn.
func (s *Server) RequestsFor(fn types.Func) []*types.Request {
	var out []*types.Request
	for _, r := range s.Requests() {
		if r.Func == fn {
			out = append(out, r)
		}
	}
	return out
}

// PushReady yields once per accepted push connection.
func (s *Server) PushReady() <-chan struct{} {
	return s.pushReady
}

// Push broadcasts msg to every connected push listener.
func (s *Server) Push(msg *types.WxMsg) error {
	payload, err := ipc.EncodeResponse(&types.Response{Func: types.FuncPushMessage, Msg: msg})
	if err != nil {
		return err
	}
	return s.PushRaw(payload)
}

// PushRaw broadcasts an arbitrary payload as one frame.
func (s *Server) PushRaw(payload []byte) error {
	frame := ipc.AppendFrame(nil, payload)
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pushConns) == 0 {
		return errors.New("enginetest: no push listeners")
	}
	for conn := range s.pushConns {
		if _, err := conn.Write(frame); err != nil {
			return err
		}
	}
	return nil
}

// DropPush closes every push connection, as an engine restart would.
func (s *Server) DropPush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.pushConns {
		_ = conn.Close()
		delete(s.pushConns, conn)
	}
}

// DropCommands closes every command connection.
func (s *Server) DropCommands() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.cmdConns {
		_ = conn.Close()
		delete(s.cmdConns, conn)
	}
}

// Close stops both listeners, closes every connection and database.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	_ = s.cmdLn.Close()
	_ = s.pushLn.Close()
	s.DropPush()
	s.DropCommands()
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	closers := make([]io.Closer, 0, len(s.dbs))
	for _, db := range s.dbs {
		closers = append(closers, db)
	}
	return iox.CloseAll(closers...)
}

func (s *Server) db(name string) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if db, ok := s.dbs[name]; ok {
		return db, nil
	}
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	// One connection keeps the in-memory database alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	s.dbs[name] = db
	return db, nil
}

func (s *Server) dbNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.dbs))
	for name := range s.dbs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Server) acceptCommands() {
	defer s.wg.Done()
	for {
		conn, err := s.cmdLn.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.cmdConns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serveCommands(conn)
	}
}

func (s *Server) acceptPush() {
	defer s.wg.Done()
	for {
		conn, err := s.pushLn.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.pushConns[conn] = struct{}{}
		s.mu.Unlock()
		select {
		case s.pushReady <- struct{}{}:
		default:
		}
	}
}

func (s *Server) serveCommands(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.cmdConns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	decoder := ipc.NewFrameDecoder(conn)
	encoder := ipc.NewFrameEncoder(conn)
	for {
		payload, err := decoder.ReadFrame()
		if err != nil {
			return
		}
		req, err := ipc.DecodeRequest(payload)
		if err != nil {
			return
		}

		s.mu.Lock()
		s.requests = append(s.requests, req)
		h := s.handlers[req.Func]
		s.mu.Unlock()

		var resp *types.Response
		if h != nil {
			resp = h(req)
		} else {
			resp = s.dispatch(req)
		}
		if resp == nil {
			return
		}

		out, err := ipc.EncodeResponse(resp)
		if err != nil {
			return
		}
		if err := encoder.WriteFrame(out); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(req *types.Request) *types.Response {
	resp := &types.Response{Func: req.Func, Status: types.SuccessStatus(req.Func)}
	switch req.Func {
	case types.FuncIsLogin:
		if !s.LoggedIn {
			resp.Status = 0
		}
	case types.FuncGetSelfWxid:
		resp.Str = s.SelfWxid
	case types.FuncGetUserInfo:
		ui := s.UserInfo
		resp.UserInfo = &ui
	case types.FuncGetMsgTypes:
		resp.Types = s.MsgTypes
	case types.FuncGetContacts:
		resp.Contacts = s.Contacts
	case types.FuncGetDBNames:
		resp.DBs = s.dbNames()
	case types.FuncGetDBTables:
		tables, err := s.tables(req.Str)
		if err != nil {
			resp.Status = -1
			break
		}
		resp.Tables = tables
	case types.FuncExecDBQuery:
		if req.Query == nil {
			resp.Status = -1
			break
		}
		rows, err := s.query(req.Query.DB, req.Query.SQL)
		if err != nil {
			resp.Status = -1
			break
		}
		resp.Rows = rows
	case types.FuncForwardMsg:
		if req.Forward == nil || req.Forward.ID == 0 {
			resp.Status = -1
		}
	}
	return resp
}

func (s *Server) tables(dbName string) ([]types.DBTable, error) {
	s.mu.Lock()
	db, ok := s.dbs[dbName]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown database %s", dbName)
	}
	rows, err := db.Query("SELECT name, sql FROM sqlite_master WHERE type = 'table' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tables []types.DBTable
	for rows.Next() {
		var t types.DBTable
		if err := rows.Scan(&t.Name, &t.SQL); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// query runs stmt and renders every value the way the engine does:
// a storage class tag plus the value's text or raw bytes.
func (s *Server) query(dbName, stmt string) ([]types.DBRow, error) {
	s.mu.Lock()
	db, ok := s.dbs[dbName]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown database %s", dbName)
	}

	if !returnsRows(stmt) {
		_, err := db.Exec(stmt)
		return nil, err
	}

	rows, err := db.Query(stmt)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []types.DBRow
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := types.DBRow{Fields: make([]types.DBField, len(cols))}
		for i, v := range values {
			row.Fields[i] = renderField(cols[i], v)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func renderField(column string, v any) types.DBField {
	f := types.DBField{Column: column}
	switch val := v.(type) {
	case nil:
		f.Type = types.FieldNull
	case int64:
		f.Type = types.FieldInteger
		f.Content = []byte(fmt.Sprintf("%d", val))
	case float64:
		f.Type = types.FieldFloat
		f.Content = []byte(fmt.Sprintf("%v", val))
	case []byte:
		f.Type = types.FieldBlob
		f.Content = append([]byte(nil), val...)
	case string:
		f.Type = types.FieldText
		f.Content = []byte(val)
	default:
		f.Type = types.FieldText
		f.Content = []byte(fmt.Sprint(val))
	}
	return f
}

func returnsRows(stmt string) bool {
	head := strings.ToUpper(strings.TrimSpace(stmt))
	for _, kw := range []string{"SELECT", "PRAGMA", "WITH", "VALUES", "EXPLAIN"} {
		if strings.HasPrefix(head, kw) {
			return true
		}
	}
	return false
}
