package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/pithecene-io/ferry/ipc"
	"github.com/pithecene-io/ferry/log"
	"github.com/pithecene-io/ferry/metrics"
	"github.com/pithecene-io/ferry/types"
)

// ErrFunctionMismatch matches every *FunctionMismatchError.
var ErrFunctionMismatch = errors.New("function mismatch")

// FunctionMismatchError reports a reply whose function code differs from
// the request it answers.
type FunctionMismatchError struct {
	Want types.Func
	Got  types.Func
}

func (e *FunctionMismatchError) Error() string {
	return fmt.Sprintf("function mismatch: sent %v, reply carries %v", e.Want, e.Got)
}

// Is reports ErrFunctionMismatch.
func (e *FunctionMismatchError) Is(target error) bool {
	return target == ErrFunctionMismatch
}

// StatusFailure reports a non-success status from a status-only function.
type StatusFailure struct {
	Func   types.Func
	Status int32
}

func (e *StatusFailure) Error() string {
	return fmt.Sprintf("%v: engine returned status %d", e.Func, e.Status)
}

// StatusError converts a status returned by a status-only operation into an
// error. It returns nil when status is the success value for fn.
func StatusError(fn types.Func, status int32) error {
	if status == types.SuccessStatus(fn) {
		return nil
	}
	return &StatusFailure{Func: fn, Status: status}
}

// Caller performs one framed command exchange.
type Caller interface {
	Call(ctx context.Context, payload []byte) ([]byte, error)
}

// Option configures a Client.
type Option func(*Client)

// WithCollector records call counters on c.
func WithCollector(c *metrics.Collector) Option {
	return func(cl *Client) { cl.collector = c }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// Client performs typed engine operations over a Caller.
type Client struct {
	caller    Caller
	collector *metrics.Collector
	logger    *log.Logger
}

// New creates a Client over caller.
func New(caller Caller, opts ...Option) *Client {
	c := &Client{caller: caller, logger: log.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends req and returns the decoded reply after checking that it
// answers the same function code.
func (c *Client) Do(ctx context.Context, req *types.Request) (*types.Response, error) {
	c.collector.IncCall(req.Func.String())

	payload, err := ipc.EncodeRequest(req)
	if err != nil {
		c.collector.IncCallFailure()
		return nil, err
	}

	reply, err := c.caller.Call(ctx, payload)
	if err != nil {
		c.collector.IncCallFailure()
		c.logger.Debug("call failed", map[string]any{
			"func":  req.Func.String(),
			"error": err.Error(),
		})
		return nil, fmt.Errorf("%v: %w", req.Func, err)
	}

	resp, err := ipc.DecodeResponse(reply)
	if err != nil {
		c.collector.IncCallFailure()
		return nil, fmt.Errorf("%v: %w", req.Func, err)
	}
	if resp.Func != req.Func {
		c.collector.IncFunctionMismatch()
		return nil, &FunctionMismatchError{Want: req.Func, Got: resp.Func}
	}
	return resp, nil
}

func (c *Client) status(ctx context.Context, req *types.Request, err error) (int32, error) {
	if err != nil {
		return 0, err
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return 0, err
	}
	return resp.Status, nil
}

// IsLogin reports whether the engine's account is logged in.
func (c *Client) IsLogin(ctx context.Context) (bool, error) {
	resp, err := c.Do(ctx, NewIsLoginRequest())
	if err != nil {
		return false, err
	}
	return resp.Status == types.StatusLoggedIn, nil
}

// SelfWxid returns the logged-in account's wxid.
func (c *Client) SelfWxid(ctx context.Context) (string, error) {
	resp, err := c.Do(ctx, NewSelfWxidRequest())
	if err != nil {
		return "", err
	}
	return resp.Str, nil
}

// UserInfo returns the logged-in account's profile.
func (c *Client) UserInfo(ctx context.Context) (types.UserInfo, error) {
	resp, err := c.Do(ctx, NewUserInfoRequest())
	if err != nil {
		return types.UserInfo{}, err
	}
	if resp.UserInfo == nil {
		return types.UserInfo{}, nil
	}
	return *resp.UserInfo, nil
}

// MsgTypes returns the message type code table.
func (c *Client) MsgTypes(ctx context.Context) (types.MsgTypes, error) {
	resp, err := c.Do(ctx, NewMsgTypesRequest())
	if err != nil {
		return nil, err
	}
	return resp.Types, nil
}

// Contacts returns the contact list.
func (c *Client) Contacts(ctx context.Context) ([]types.Contact, error) {
	resp, err := c.Do(ctx, NewContactsRequest())
	if err != nil {
		return nil, err
	}
	return resp.Contacts, nil
}

// DBNames returns the names of the queryable databases.
func (c *Client) DBNames(ctx context.Context) ([]string, error) {
	resp, err := c.Do(ctx, NewDBNamesRequest())
	if err != nil {
		return nil, err
	}
	return resp.DBs, nil
}

// DBTables returns the tables of db.
func (c *Client) DBTables(ctx context.Context, db string) ([]types.DBTable, error) {
	req, err := NewDBTablesRequest(db)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Tables, nil
}

// ExecQuery runs sql against db and returns the undecoded rows along with
// the reply status.
func (c *Client) ExecQuery(ctx context.Context, db, sql string) ([]types.DBRow, int32, error) {
	req, err := NewQueryRequest(db, sql)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, 0, err
	}
	return resp.Rows, resp.Status, nil
}

// SendText sends a text message, mentioning aters in a room.
func (c *Client) SendText(ctx context.Context, msg, receiver string, aters ...string) (int32, error) {
	req, err := NewSendTextRequest(msg, receiver, aters...)
	return c.status(ctx, req, err)
}

// SendImage sends the image at path, a path on the engine's host.
func (c *Client) SendImage(ctx context.Context, path, receiver string) (int32, error) {
	req, err := NewSendImageRequest(path, receiver)
	return c.status(ctx, req, err)
}

// SendFile sends the file at path, a path on the engine's host.
func (c *Client) SendFile(ctx context.Context, path, receiver string) (int32, error) {
	req, err := NewSendFileRequest(path, receiver)
	return c.status(ctx, req, err)
}

// SendXML sends a raw XML message.
func (c *Client) SendXML(ctx context.Context, msg types.XMLMsg) (int32, error) {
	req, err := NewSendXMLRequest(msg)
	return c.status(ctx, req, err)
}

// SendRichText sends a link card.
func (c *Client) SendRichText(ctx context.Context, msg types.RichTextMsg) (int32, error) {
	req, err := NewSendRichTextRequest(msg)
	return c.status(ctx, req, err)
}

// Forward forwards the stored message id to receiver.
func (c *Client) Forward(ctx context.Context, id uint64, receiver string) (int32, error) {
	req, err := NewForwardRequest(id, receiver)
	return c.status(ctx, req, err)
}

// Revoke recalls a sent message.
func (c *Client) Revoke(ctx context.Context, id uint64) (int32, error) {
	req, err := NewRevokeRequest(id)
	return c.status(ctx, req, err)
}

// RefreshFeed refreshes the social feed starting at id (0 for latest).
func (c *Client) RefreshFeed(ctx context.Context, id uint64) (int32, error) {
	return c.status(ctx, NewRefreshFeedRequest(id), nil)
}

// EnableRecv turns on push delivery, optionally including social feed updates.
func (c *Client) EnableRecv(ctx context.Context, includeFeed bool) (int32, error) {
	return c.status(ctx, NewEnableRecvRequest(includeFeed), nil)
}

// DisableRecv turns off push delivery.
func (c *Client) DisableRecv(ctx context.Context) (int32, error) {
	return c.status(ctx, NewDisableRecvRequest(), nil)
}

// AddRoomMembers adds wxids to a room.
func (c *Client) AddRoomMembers(ctx context.Context, roomID string, wxids ...string) (int32, error) {
	req, err := NewRoomMembersRequest(types.FuncAddRoomMembers, roomID, wxids...)
	return c.status(ctx, req, err)
}

// DelRoomMembers removes wxids from a room.
func (c *Client) DelRoomMembers(ctx context.Context, roomID string, wxids ...string) (int32, error) {
	req, err := NewRoomMembersRequest(types.FuncDelRoomMembers, roomID, wxids...)
	return c.status(ctx, req, err)
}

// InviteRoomMembers invites wxids to a room.
func (c *Client) InviteRoomMembers(ctx context.Context, roomID string, wxids ...string) (int32, error) {
	req, err := NewRoomMembersRequest(types.FuncInvRoomMembers, roomID, wxids...)
	return c.status(ctx, req, err)
}
