package forge

import (
	"sync"
	"time"
)

// MinSyntheticMsgID is the smallest minted id: "10" followed by 13 digits.
// Server-assigned ids are far larger, so the ranges never meet.
const MinSyntheticMsgID uint64 = 100_000_000_000_000

const maxSyntheticMsgID uint64 = 110_000_000_000_000

// IDMinter mints synthetic message ids of the form "10" + unix millis.
// Ids are strictly increasing within one minter.
type IDMinter struct {
	// Now is the clock; nil means time.Now.
	Now func() time.Time

	mu   sync.Mutex
	last uint64
}

// NewIDMinter returns a minter on the wall clock.
func NewIDMinter() *IDMinter {
	return &IDMinter{}
}

// Next returns a new id. When the clock has not advanced past the
// previous id, the previous id plus one is returned instead.
func (m *IDMinter) Next() uint64 {
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := MinSyntheticMsgID + uint64(now().UnixMilli())
	if id <= m.last {
		id = m.last + 1
	}
	m.last = id
	return id
}

// IsSynthetic reports whether id lies in the minted range.
func IsSynthetic(id uint64) bool {
	return id >= MinSyntheticMsgID && id < maxSyntheticMsgID
}
