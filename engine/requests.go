// Package engine is the typed protocol layer over a command channel: it
// builds validated requests, performs one round trip per operation and
// projects the one payload each function code answers with.
package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pithecene-io/ferry/types"
)

// ErrInvalidRequest is wrapped by every request constructor validation failure.
var ErrInvalidRequest = errors.New("invalid request")

func invalid(fn types.Func, format string, args ...any) error {
	return fmt.Errorf("%w: %v: %s", ErrInvalidRequest, fn, fmt.Sprintf(format, args...))
}

// NewIsLoginRequest builds an is_login request.
func NewIsLoginRequest() *types.Request {
	return &types.Request{Func: types.FuncIsLogin}
}

// NewSelfWxidRequest builds a get_self_wxid request.
func NewSelfWxidRequest() *types.Request {
	return &types.Request{Func: types.FuncGetSelfWxid}
}

// NewUserInfoRequest builds a get_user_info request.
func NewUserInfoRequest() *types.Request {
	return &types.Request{Func: types.FuncGetUserInfo}
}

// NewMsgTypesRequest builds a get_msg_types request.
func NewMsgTypesRequest() *types.Request {
	return &types.Request{Func: types.FuncGetMsgTypes}
}

// NewContactsRequest builds a get_contacts request.
func NewContactsRequest() *types.Request {
	return &types.Request{Func: types.FuncGetContacts}
}

// NewDBNamesRequest builds a get_db_names request.
func NewDBNamesRequest() *types.Request {
	return &types.Request{Func: types.FuncGetDBNames}
}

// NewDBTablesRequest builds a get_db_tables request for db.
func NewDBTablesRequest(db string) (*types.Request, error) {
	if db == "" {
		return nil, invalid(types.FuncGetDBTables, "empty database name")
	}
	return &types.Request{Func: types.FuncGetDBTables, Str: db}, nil
}

// NewQueryRequest builds an exec_db_query request. The statement is sent
// verbatim; no validation beyond non-emptiness is performed.
func NewQueryRequest(db, sql string) (*types.Request, error) {
	if db == "" {
		return nil, invalid(types.FuncExecDBQuery, "empty database name")
	}
	if strings.TrimSpace(sql) == "" {
		return nil, invalid(types.FuncExecDBQuery, "empty statement")
	}
	return &types.Request{Func: types.FuncExecDBQuery, Query: &types.DBQuery{DB: db, SQL: sql}}, nil
}

// NewSendTextRequest builds a send_text request. aters lists wxids to
// mention; they are joined with commas.
func NewSendTextRequest(msg, receiver string, aters ...string) (*types.Request, error) {
	if receiver == "" {
		return nil, invalid(types.FuncSendText, "empty receiver")
	}
	if msg == "" {
		return nil, invalid(types.FuncSendText, "empty message")
	}
	return &types.Request{Func: types.FuncSendText, Text: &types.TextMsg{
		Msg:      msg,
		Receiver: receiver,
		Aters:    strings.Join(aters, ","),
	}}, nil
}

// NewSendImageRequest builds a send_image request.
func NewSendImageRequest(path, receiver string) (*types.Request, error) {
	return newPathRequest(types.FuncSendImage, path, receiver)
}

// NewSendFileRequest builds a send_file request.
func NewSendFileRequest(path, receiver string) (*types.Request, error) {
	return newPathRequest(types.FuncSendFile, path, receiver)
}

func newPathRequest(fn types.Func, path, receiver string) (*types.Request, error) {
	if receiver == "" {
		return nil, invalid(fn, "empty receiver")
	}
	if path == "" {
		return nil, invalid(fn, "empty path")
	}
	return &types.Request{Func: fn, File: &types.PathMsg{Path: path, Receiver: receiver}}, nil
}

// NewSendXMLRequest builds a send_xml request.
func NewSendXMLRequest(msg types.XMLMsg) (*types.Request, error) {
	if msg.Receiver == "" {
		return nil, invalid(types.FuncSendXML, "empty receiver")
	}
	if msg.Content == "" {
		return nil, invalid(types.FuncSendXML, "empty content")
	}
	return &types.Request{Func: types.FuncSendXML, XML: &msg}, nil
}

// NewSendRichTextRequest builds a send_rich_text request.
func NewSendRichTextRequest(msg types.RichTextMsg) (*types.Request, error) {
	if msg.Receiver == "" {
		return nil, invalid(types.FuncSendRichText, "empty receiver")
	}
	if msg.Title == "" && msg.URL == "" {
		return nil, invalid(types.FuncSendRichText, "title or url required")
	}
	return &types.Request{Func: types.FuncSendRichText, RichText: &msg}, nil
}

// NewForwardRequest builds a forward_msg request.
func NewForwardRequest(id uint64, receiver string) (*types.Request, error) {
	if id == 0 {
		return nil, invalid(types.FuncForwardMsg, "zero message id")
	}
	if receiver == "" {
		return nil, invalid(types.FuncForwardMsg, "empty receiver")
	}
	return &types.Request{Func: types.FuncForwardMsg, Forward: &types.ForwardMsg{ID: id, Receiver: receiver}}, nil
}

// NewRevokeRequest builds a revoke_msg request.
func NewRevokeRequest(id uint64) (*types.Request, error) {
	if id == 0 {
		return nil, invalid(types.FuncRevokeMsg, "zero message id")
	}
	return &types.Request{Func: types.FuncRevokeMsg, ID: id}, nil
}

// NewRefreshFeedRequest builds a refresh_pyq request. id 0 means the latest page.
func NewRefreshFeedRequest(id uint64) *types.Request {
	return &types.Request{Func: types.FuncRefreshPyq, ID: id}
}

// NewEnableRecvRequest builds an enable_recv_txt request.
func NewEnableRecvRequest(includeFeed bool) *types.Request {
	return &types.Request{Func: types.FuncEnableRecvTxt, Flag: includeFeed}
}

// NewDisableRecvRequest builds a disable_recv_txt request.
func NewDisableRecvRequest() *types.Request {
	return &types.Request{Func: types.FuncDisableRecvTxt}
}

// NewRoomMembersRequest builds an add, delete or invite request for room
// membership. fn must be one of the three room member function codes.
func NewRoomMembersRequest(fn types.Func, roomID string, wxids ...string) (*types.Request, error) {
	switch fn {
	case types.FuncAddRoomMembers, types.FuncDelRoomMembers, types.FuncInvRoomMembers:
	default:
		return nil, invalid(fn, "not a room membership function")
	}
	if roomID == "" {
		return nil, invalid(fn, "empty room id")
	}
	ids := make([]string, 0, len(wxids))
	for _, id := range wxids {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, invalid(fn, "no member wxids")
	}
	return &types.Request{Func: fn, Member: &types.MemberMgmt{RoomID: roomID, Wxids: strings.Join(ids, ",")}}, nil
}
