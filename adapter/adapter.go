// Package adapter bridges incoming push messages to downstream systems.
package adapter

import (
	"context"
	"strconv"
	"time"

	"github.com/pithecene-io/ferry/types"
)

// EventTypeMessage is the event_type of every MessageEvent.
const EventTypeMessage = "message"

// MessageEvent is the payload published for each incoming message.
type MessageEvent struct {
	EventType string `json:"event_type"`
	// ID is the server message id as a decimal string; it exceeds the
	// precision of JSON numbers.
	ID        string `json:"id"`
	Type      uint32 `json:"type"`
	IsSelf    bool   `json:"is_self"`
	IsGroup   bool   `json:"is_group"`
	Sender    string `json:"sender"`
	RoomID    string `json:"room_id,omitempty"`
	Content   string `json:"content"`
	XML       string `json:"xml,omitempty"`
	Thumb     string `json:"thumb,omitempty"`
	Extra     string `json:"extra,omitempty"`
	Timestamp string `json:"timestamp"` // RFC 3339
}

// FromWxMsg converts a pushed message into its published form.
func FromWxMsg(msg *types.WxMsg) *MessageEvent {
	return &MessageEvent{
		EventType: EventTypeMessage,
		ID:        strconv.FormatUint(msg.ID, 10),
		Type:      msg.Type,
		IsSelf:    msg.IsSelf,
		IsGroup:   msg.IsGroup,
		Sender:    msg.Sender,
		RoomID:    msg.RoomID,
		Content:   msg.Content,
		XML:       msg.XML,
		Thumb:     msg.Thumb,
		Extra:     msg.Extra,
		Timestamp: time.Unix(int64(msg.Ts), 0).UTC().Format(time.RFC3339),
	}
}

// Adapter publishes message events to a downstream system.
type Adapter interface {
	// Publish sends one event. Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *MessageEvent) error

	// Close releases adapter resources.
	Close() error
}
