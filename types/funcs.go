// Package types defines the wire-level domain types shared by every ferry package:
// function codes, the Request and Response tagged unions, and the payload records.
//
//nolint:revive // types is a common Go package naming convention
package types

import "fmt"

// Func is the function code discriminating a Request/Response pair.
// The code space is closed; Valid reports membership.
type Func uint8

// Function codes understood by the automation engine.
const (
	FuncReserved       Func = 0x00
	FuncIsLogin        Func = 0x01
	FuncGetSelfWxid    Func = 0x10
	FuncGetMsgTypes    Func = 0x11
	FuncGetContacts    Func = 0x12
	FuncGetDBNames     Func = 0x13
	FuncGetDBTables    Func = 0x14
	FuncGetUserInfo    Func = 0x15
	FuncSendText       Func = 0x20
	FuncSendImage      Func = 0x21
	FuncSendFile       Func = 0x22
	FuncSendXML        Func = 0x23
	FuncSendRichText   Func = 0x25
	FuncForwardMsg     Func = 0x27
	FuncEnableRecvTxt  Func = 0x30
	FuncDisableRecvTxt Func = 0x40
	FuncExecDBQuery    Func = 0x50
	FuncRefreshPyq     Func = 0x53
	FuncRevokeMsg      Func = 0x56
	FuncAddRoomMembers Func = 0x70
	FuncDelRoomMembers Func = 0x71
	FuncInvRoomMembers Func = 0x72
)

// FuncPushMessage is the tag carried by frames on the push channel.
// The engine stamps pushed messages with the code that enabled delivery.
const FuncPushMessage = FuncEnableRecvTxt

var funcNames = map[Func]string{
	FuncIsLogin:        "is_login",
	FuncGetSelfWxid:    "get_self_wxid",
	FuncGetMsgTypes:    "get_msg_types",
	FuncGetContacts:    "get_contacts",
	FuncGetDBNames:     "get_db_names",
	FuncGetDBTables:    "get_db_tables",
	FuncGetUserInfo:    "get_user_info",
	FuncSendText:       "send_text",
	FuncSendImage:      "send_image",
	FuncSendFile:       "send_file",
	FuncSendXML:        "send_xml",
	FuncSendRichText:   "send_rich_text",
	FuncForwardMsg:     "forward_msg",
	FuncEnableRecvTxt:  "enable_recv_txt",
	FuncDisableRecvTxt: "disable_recv_txt",
	FuncExecDBQuery:    "exec_db_query",
	FuncRefreshPyq:     "refresh_pyq",
	FuncRevokeMsg:      "revoke_msg",
	FuncAddRoomMembers: "add_room_members",
	FuncDelRoomMembers: "del_room_members",
	FuncInvRoomMembers: "inv_room_members",
}

// String returns the stable snake_case name of the function code.
func (f Func) String() string {
	if name, ok := funcNames[f]; ok {
		return name
	}
	return fmt.Sprintf("func(0x%02x)", uint8(f))
}

// Valid reports whether f belongs to the closed function code set.
func (f Func) Valid() bool {
	_, ok := funcNames[f]
	return ok
}

// AllFuncs returns every valid function code in ascending order.
func AllFuncs() []Func {
	return []Func{
		FuncIsLogin,
		FuncGetSelfWxid,
		FuncGetMsgTypes,
		FuncGetContacts,
		FuncGetDBNames,
		FuncGetDBTables,
		FuncGetUserInfo,
		FuncSendText,
		FuncSendImage,
		FuncSendFile,
		FuncSendXML,
		FuncSendRichText,
		FuncForwardMsg,
		FuncEnableRecvTxt,
		FuncDisableRecvTxt,
		FuncExecDBQuery,
		FuncRefreshPyq,
		FuncRevokeMsg,
		FuncAddRoomMembers,
		FuncDelRoomMembers,
		FuncInvRoomMembers,
	}
}

// PayloadKind identifies which Response field a function populates.
type PayloadKind int

const (
	// PayloadStatus means only Response.Status carries the result.
	PayloadStatus PayloadKind = iota
	// PayloadString means Response.Str carries the result.
	PayloadString
	// PayloadMsgTypes means Response.Types carries the result.
	PayloadMsgTypes
	// PayloadContacts means Response.Contacts carries the result.
	PayloadContacts
	// PayloadDBNames means Response.DBs carries the result.
	PayloadDBNames
	// PayloadDBTables means Response.Tables carries the result.
	PayloadDBTables
	// PayloadRows means Response.Rows carries the result.
	PayloadRows
	// PayloadUserInfo means Response.UserInfo carries the result.
	PayloadUserInfo
	// PayloadMessage means Response.Msg carries a pushed message.
	PayloadMessage
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadStatus:
		return "status"
	case PayloadString:
		return "str"
	case PayloadMsgTypes:
		return "types"
	case PayloadContacts:
		return "contacts"
	case PayloadDBNames:
		return "dbs"
	case PayloadDBTables:
		return "tables"
	case PayloadRows:
		return "rows"
	case PayloadUserInfo:
		return "ui"
	case PayloadMessage:
		return "wxmsg"
	default:
		return fmt.Sprintf("payload(%d)", int(k))
	}
}

// PayloadFor returns the payload kind a command-channel response to f carries.
// Every valid function code has exactly one rule.
func PayloadFor(f Func) (PayloadKind, bool) {
	switch f {
	case FuncIsLogin,
		FuncSendText,
		FuncSendImage,
		FuncSendFile,
		FuncSendXML,
		FuncSendRichText,
		FuncForwardMsg,
		FuncEnableRecvTxt,
		FuncDisableRecvTxt,
		FuncRefreshPyq,
		FuncRevokeMsg,
		FuncAddRoomMembers,
		FuncDelRoomMembers,
		FuncInvRoomMembers:
		return PayloadStatus, true
	case FuncGetSelfWxid:
		return PayloadString, true
	case FuncGetMsgTypes:
		return PayloadMsgTypes, true
	case FuncGetContacts:
		return PayloadContacts, true
	case FuncGetDBNames:
		return PayloadDBNames, true
	case FuncGetDBTables:
		return PayloadDBTables, true
	case FuncExecDBQuery:
		return PayloadRows, true
	case FuncGetUserInfo:
		return PayloadUserInfo, true
	default:
		return 0, false
	}
}

// SuccessStatus returns the status value the engine reports on success for f.
// Forwarding, revocation, feed refresh and room membership changes report 1;
// is_login reports 1 when logged in; everything else reports 0.
func SuccessStatus(f Func) int32 {
	switch f {
	case FuncIsLogin,
		FuncForwardMsg,
		FuncRevokeMsg,
		FuncRefreshPyq,
		FuncAddRoomMembers,
		FuncDelRoomMembers,
		FuncInvRoomMembers:
		return 1
	default:
		return StatusOK
	}
}
