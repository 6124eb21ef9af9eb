package room

import (
	"context"
	"fmt"

	"github.com/pithecene-io/ferry/log"
	"github.com/pithecene-io/ferry/metrics"
	"github.com/pithecene-io/ferry/query"
	"github.com/pithecene-io/ferry/retry"
)

// ContactDB is the database holding the ChatRoom and Contact tables.
const ContactDB = "MicroMsg.db"

const (
	roomDataSQL = "SELECT RoomData FROM ChatRoom WHERE ChatRoomName = ?"
	contactSQL  = "SELECT UserName, Alias, NickName FROM Contact WHERE UserName IN "
)

// MemberInfo is the contact-table view of one room member.
type MemberInfo struct {
	Alias       string `json:"alias,omitempty" yaml:"alias,omitempty"`
	NickName    string `json:"nickname,omitempty" yaml:"nickname,omitempty"`
	DisplayName string `json:"display_name,omitempty" yaml:"display_name,omitempty"`
}

// Querier runs parameterized statements.
type Querier interface {
	ExecuteArgs(ctx context.Context, db, sql string, args ...any) ([]query.Row, error)
}

// Resolver joins a room's RoomData blob with the contact table.
type Resolver struct {
	Query     Querier
	Policy    retry.Policy
	Collector *metrics.Collector
	Logger    *log.Logger
}

// NewResolver returns a Resolver using retry.DefaultPolicy.
func NewResolver(q Querier) *Resolver {
	return &Resolver{Query: q, Policy: retry.DefaultPolicy}
}

// Members returns the room's members keyed by wxid.
//
// The RoomData read is retried while it comes back empty, since it often
// follows a membership change the store has not yet recorded. A room that
// never appears yields an empty map and no error. Members missing from the
// contact table map to a MemberInfo with only their in-room display name.
func (r *Resolver) Members(ctx context.Context, roomID string) (map[string]MemberInfo, error) {
	blob, err := retry.Read(ctx, r.Policy, func(ctx context.Context) ([]byte, error) {
		rows, err := r.Query.ExecuteArgs(ctx, ContactDB, roomDataSQL, roomID)
		if err != nil || len(rows) == 0 {
			return nil, err
		}
		return rows[0].Bytes("RoomData")
	}, retry.EmptySlice[byte], func(int) { r.Collector.IncRetryAttempt() })
	if err != nil {
		return nil, fmt.Errorf("room %s: %w", roomID, err)
	}

	out := make(map[string]MemberInfo)
	if len(blob) == 0 {
		r.logger().Debug("room data not found", map[string]any{"room_id": roomID})
		return out, nil
	}

	members, err := DecodeRoomData(blob)
	if err != nil {
		return nil, fmt.Errorf("room %s: %w", roomID, err)
	}
	if len(members) == 0 {
		return out, nil
	}

	wxids := make([]string, len(members))
	for i, m := range members {
		wxids[i] = m.Wxid
		out[m.Wxid] = MemberInfo{DisplayName: m.DisplayName}
	}

	list, err := query.InList(wxids)
	if err != nil {
		return nil, err
	}
	rows, err := r.Query.ExecuteArgs(ctx, ContactDB, contactSQL+list)
	if err != nil {
		return nil, fmt.Errorf("room %s contacts: %w", roomID, err)
	}

	for _, row := range rows {
		wxid, err := row.String("UserName")
		if err != nil {
			continue
		}
		info, ok := out[wxid]
		if !ok {
			continue
		}
		info.Alias = optionalString(row, "Alias")
		info.NickName = optionalString(row, "NickName")
		out[wxid] = info
	}
	return out, nil
}

func (r *Resolver) logger() *log.Logger {
	if r.Logger == nil {
		return log.NewNop()
	}
	return r.Logger
}

func optionalString(row query.Row, column string) string {
	s, err := row.String(column)
	if err != nil {
		return ""
	}
	return s
}
