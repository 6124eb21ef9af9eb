package types

// Request is the command-channel request union.
// Func selects the variant; only the fields that variant needs are set.
// All fields use msgpack tags matching the engine wire format.
type Request struct {
	// Func is the function code discriminator.
	Func Func `msgpack:"func"`
	// Flag is the boolean argument (enable_recv_txt: include social feed).
	Flag bool `msgpack:"flag,omitempty"`
	// Str is the single string argument (get_db_tables: database name).
	Str string `msgpack:"str,omitempty"`
	// ID is the numeric argument (forward/revoke message id, feed id).
	ID uint64 `msgpack:"ui64,omitempty"`

	Text     *TextMsg     `msgpack:"txt,omitempty"`
	File     *PathMsg     `msgpack:"file,omitempty"`
	XML      *XMLMsg      `msgpack:"xml,omitempty"`
	RichText *RichTextMsg `msgpack:"rt,omitempty"`
	Forward  *ForwardMsg  `msgpack:"fm,omitempty"`
	Query    *DBQuery     `msgpack:"query,omitempty"`
	Member   *MemberMgmt  `msgpack:"m,omitempty"`
}

// TextMsg is the send_text argument.
type TextMsg struct {
	Msg      string `msgpack:"msg"`
	Receiver string `msgpack:"receiver"`
	// Aters is a comma separated list of wxids to mention in a room.
	Aters string `msgpack:"aters,omitempty"`
}

// PathMsg is the send_image / send_file argument.
type PathMsg struct {
	Path     string `msgpack:"path"`
	Receiver string `msgpack:"receiver"`
}

// XMLMsg is the send_xml argument.
type XMLMsg struct {
	Receiver string `msgpack:"receiver"`
	Content  string `msgpack:"content"`
	Path     string `msgpack:"path,omitempty"`
	Type     int32  `msgpack:"type"`
}

// RichTextMsg is the send_rich_text (link card) argument.
type RichTextMsg struct {
	Name     string `msgpack:"name"`
	Account  string `msgpack:"account"`
	Title    string `msgpack:"title"`
	Digest   string `msgpack:"digest"`
	URL      string `msgpack:"url"`
	ThumbURL string `msgpack:"thumburl"`
	Receiver string `msgpack:"receiver"`
}

// ForwardMsg is the forward_msg argument.
type ForwardMsg struct {
	ID       uint64 `msgpack:"id"`
	Receiver string `msgpack:"receiver"`
}

// DBQuery is the exec_db_query argument.
type DBQuery struct {
	DB  string `msgpack:"db"`
	SQL string `msgpack:"sql"`
}

// MemberMgmt is the room member add/delete/invite argument.
type MemberMgmt struct {
	RoomID string `msgpack:"roomid"`
	// Wxids is a comma separated list of member wxids.
	Wxids string `msgpack:"wxids"`
}
