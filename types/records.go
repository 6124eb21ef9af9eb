package types

// UserInfo describes the logged-in account.
type UserInfo struct {
	Wxid   string `msgpack:"wxid" json:"wxid"`
	Name   string `msgpack:"name" json:"name"`
	Mobile string `msgpack:"mobile" json:"mobile"`
	Home   string `msgpack:"home" json:"home"`
}

// Contact is one entry of the contact list.
type Contact struct {
	Wxid     string `msgpack:"wxid" json:"wxid"`
	Code     string `msgpack:"code" json:"code"`
	Remark   string `msgpack:"remark" json:"remark"`
	Name     string `msgpack:"name" json:"name"`
	Country  string `msgpack:"country" json:"country"`
	Province string `msgpack:"province" json:"province"`
	City     string `msgpack:"city" json:"city"`
	Gender   int32  `msgpack:"gender" json:"gender"`
}

// DBTable is a table name and its creation statement.
type DBTable struct {
	Name string `msgpack:"name" json:"name"`
	SQL  string `msgpack:"sql" json:"sql"`
}

// FieldType is the storage class tag of a query result field.
type FieldType int32

// Field type tags. The numbering is fixed by the engine.
const (
	FieldInteger FieldType = 1
	FieldFloat   FieldType = 2
	FieldText    FieldType = 3
	FieldBlob    FieldType = 4
	FieldNull    FieldType = 5
)

func (t FieldType) String() string {
	switch t {
	case FieldInteger:
		return "INTEGER"
	case FieldFloat:
		return "FLOAT"
	case FieldText:
		return "TEXT"
	case FieldBlob:
		return "BLOB"
	case FieldNull:
		return "NULL"
	default:
		return "UNKNOWN"
	}
}

// DBField is one undecoded column value: a type tag plus raw bytes.
type DBField struct {
	Type    FieldType `msgpack:"type"`
	Column  string    `msgpack:"column"`
	Content []byte    `msgpack:"content"`
}

// DBRow is one result row in column order.
type DBRow struct {
	Fields []DBField `msgpack:"fields"`
}

// MsgTypes maps message type codes to their names.
type MsgTypes map[int32]string

// MinSyntheticMsgID is the smallest value a locally minted message id may take.
// Ids at or above it never collide with the small ids the engine treats as legacy.
const MinSyntheticMsgID uint64 = 100_000_000_000_000

// WxMsg is an incoming message delivered on the push channel.
type WxMsg struct {
	IsSelf  bool   `msgpack:"is_self" json:"is_self"`
	IsGroup bool   `msgpack:"is_group" json:"is_group"`
	ID      uint64 `msgpack:"id" json:"id"`
	Type    uint32 `msgpack:"type" json:"type"`
	Ts      uint32 `msgpack:"ts" json:"ts"`
	RoomID  string `msgpack:"roomid" json:"roomid"`
	Content string `msgpack:"content" json:"content"`
	Sender  string `msgpack:"sender" json:"sender"`
	Sign    string `msgpack:"sign" json:"sign"`
	Thumb   string `msgpack:"thumb" json:"thumb"`
	Extra   string `msgpack:"extra" json:"extra"`
	XML     string `msgpack:"xml" json:"xml"`
}
