// Package room resolves chat-room membership from the engine's local store.
package room

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// RoomData field numbers.
const (
	fieldMember      protowire.Number = 1
	fieldMemberWxid  protowire.Number = 1
	fieldMemberName  protowire.Number = 2
	fieldMemberState protowire.Number = 3
)

// Member is one entry of a RoomData blob.
type Member struct {
	Wxid string
	// DisplayName is the in-room display name, empty when the member never set one.
	DisplayName string
	State       uint64
}

// DecodeRoomData decodes the ChatRoom.RoomData blob: a protobuf message
// whose repeated field 1 holds one member message per participant.
// Unknown fields are skipped. Members without a wxid are dropped.
func DecodeRoomData(blob []byte) ([]Member, error) {
	var members []Member
	for len(blob) > 0 {
		num, typ, n := protowire.ConsumeTag(blob)
		if n < 0 {
			return nil, fmt.Errorf("room data: %w", protowire.ParseError(n))
		}
		blob = blob[n:]

		if num == fieldMember && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(blob)
			if n < 0 {
				return nil, fmt.Errorf("room data member: %w", protowire.ParseError(n))
			}
			m, err := decodeMember(v)
			if err != nil {
				return nil, err
			}
			if m.Wxid != "" {
				members = append(members, m)
			}
			blob = blob[n:]
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, blob)
		if n < 0 {
			return nil, fmt.Errorf("room data field %d: %w", num, protowire.ParseError(n))
		}
		blob = blob[n:]
	}
	return members, nil
}

func decodeMember(b []byte) (Member, error) {
	var m Member
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Member{}, fmt.Errorf("room member: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldMemberWxid && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Member{}, fmt.Errorf("room member wxid: %w", protowire.ParseError(n))
			}
			m.Wxid = v
			b = b[n:]
		case num == fieldMemberName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Member{}, fmt.Errorf("room member name: %w", protowire.ParseError(n))
			}
			m.DisplayName = v
			b = b[n:]
		case num == fieldMemberState && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Member{}, fmt.Errorf("room member state: %w", protowire.ParseError(n))
			}
			m.State = v
			b = b[n:]
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Member{}, fmt.Errorf("room member field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return m, nil
}

// EncodeRoomData builds a RoomData blob for members.
func EncodeRoomData(members []Member) []byte {
	var out []byte
	for _, m := range members {
		var inner []byte
		inner = protowire.AppendTag(inner, fieldMemberWxid, protowire.BytesType)
		inner = protowire.AppendString(inner, m.Wxid)
		if m.DisplayName != "" {
			inner = protowire.AppendTag(inner, fieldMemberName, protowire.BytesType)
			inner = protowire.AppendString(inner, m.DisplayName)
		}
		if m.State != 0 {
			inner = protowire.AppendTag(inner, fieldMemberState, protowire.VarintType)
			inner = protowire.AppendVarint(inner, m.State)
		}
		out = protowire.AppendTag(out, fieldMember, protowire.BytesType)
		out = protowire.AppendBytes(out, inner)
	}
	return out
}
