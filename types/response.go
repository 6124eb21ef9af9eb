package types

// Response is the response union for both channels.
// Command replies carry the Func of the request they answer; push frames
// carry FuncPushMessage. Exactly one payload field is populated, selected
// by PayloadFor (or PayloadMessage for push frames).
type Response struct {
	Func   Func  `msgpack:"func"`
	Status int32 `msgpack:"status"`

	Str      string    `msgpack:"str,omitempty"`
	Types    MsgTypes  `msgpack:"types,omitempty"`
	Contacts []Contact `msgpack:"contacts,omitempty"`
	DBs      []string  `msgpack:"dbs,omitempty"`
	Tables   []DBTable `msgpack:"tables,omitempty"`
	Rows     []DBRow   `msgpack:"rows,omitempty"`
	UserInfo *UserInfo `msgpack:"ui,omitempty"`
	Msg      *WxMsg    `msgpack:"wxmsg,omitempty"`
}

// Populated returns the payload kinds whose fields are set on r.
// Status is always considered populated and is not reported.
func (r *Response) Populated() []PayloadKind {
	var kinds []PayloadKind
	if r.Str != "" {
		kinds = append(kinds, PayloadString)
	}
	if r.Types != nil {
		kinds = append(kinds, PayloadMsgTypes)
	}
	if r.Contacts != nil {
		kinds = append(kinds, PayloadContacts)
	}
	if r.DBs != nil {
		kinds = append(kinds, PayloadDBNames)
	}
	if r.Tables != nil {
		kinds = append(kinds, PayloadDBTables)
	}
	if r.Rows != nil {
		kinds = append(kinds, PayloadRows)
	}
	if r.UserInfo != nil {
		kinds = append(kinds, PayloadUserInfo)
	}
	if r.Msg != nil {
		kinds = append(kinds, PayloadMessage)
	}
	return kinds
}

// StatusOK is the success status for status-only functions.
const StatusOK int32 = 0

// StatusLoggedIn is the is_login status when the client is logged in.
const StatusLoggedIn int32 = 1
