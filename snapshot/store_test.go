package snapshot

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/justapithecus/lode/lode"
)

// sharedFactory returns a StoreFactory that always returns the given store.
func sharedFactory(store lode.Store) lode.StoreFactory {
	return func() (lode.Store, error) { return store, nil }
}

func newMemoryStore(t *testing.T) *LodeStore {
	t.Helper()
	s, err := NewWithFactory("ferry-test", sharedFactory(lode.NewMemory()))
	if err != nil {
		t.Fatalf("NewWithFactory failed: %v", err)
	}
	return s
}

func TestLodeStore_SaveAndLatest(t *testing.T) {
	s := newMemoryStore(t)
	takenAt := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	rec := Record{
		Database:        "MSG0.db",
		Slot:            55,
		MsgSvrID:        8864946020601626971, // beyond float64 precision
		CompressContent: []byte{0xf0, 0x01, 0x3c, 0x6d},
		BytesExtra:      []byte("extra"),
		TakenAt:         takenAt,
	}
	if err := s.Save(t.Context(), rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Latest(t.Context(), "MSG0.db", 55)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if got.MsgSvrID != rec.MsgSvrID {
		t.Errorf("MsgSvrID = %d, want %d", got.MsgSvrID, rec.MsgSvrID)
	}
	if !bytes.Equal(got.CompressContent, rec.CompressContent) {
		t.Errorf("CompressContent = %x, want %x", got.CompressContent, rec.CompressContent)
	}
	if !bytes.Equal(got.BytesExtra, rec.BytesExtra) {
		t.Errorf("BytesExtra = %q, want %q", got.BytesExtra, rec.BytesExtra)
	}
	if got.Database != "MSG0.db" || got.Slot != 55 {
		t.Errorf("row = %s/%d, want MSG0.db/55", got.Database, got.Slot)
	}
	if !got.TakenAt.Equal(takenAt) {
		t.Errorf("TakenAt = %v, want %v", got.TakenAt, takenAt)
	}
}

func TestLodeStore_LatestWins(t *testing.T) {
	s := newMemoryStore(t)
	for _, id := range []uint64{1, 2, 3} {
		if err := s.Save(t.Context(), Record{Database: "MSG0.db", Slot: 55, MsgSvrID: id}); err != nil {
			t.Fatalf("Save(%d) failed: %v", id, err)
		}
	}

	got, err := s.Latest(t.Context(), "MSG0.db", 55)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if got.MsgSvrID != 3 {
		t.Errorf("MsgSvrID = %d, want 3 (latest)", got.MsgSvrID)
	}
}

func TestLodeStore_LatestByTakenAt(t *testing.T) {
	s := newMemoryStore(t)
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	// Saved out of order: the record with the newest TakenAt is written first.
	for _, rec := range []Record{
		{Database: "MSG0.db", Slot: 55, MsgSvrID: 2, TakenAt: base.Add(time.Minute)},
		{Database: "MSG0.db", Slot: 55, MsgSvrID: 1, TakenAt: base},
	} {
		if err := s.Save(t.Context(), rec); err != nil {
			t.Fatalf("Save(%d) failed: %v", rec.MsgSvrID, err)
		}
	}

	got, err := s.Latest(t.Context(), "MSG0.db", 55)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if got.MsgSvrID != 2 {
		t.Errorf("MsgSvrID = %d, want 2 (newest taken_at)", got.MsgSvrID)
	}
}

func TestLodeStore_FiltersBySlot(t *testing.T) {
	s := newMemoryStore(t)
	if err := s.Save(t.Context(), Record{Database: "MSG0.db", Slot: 5, MsgSvrID: 5}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Save(t.Context(), Record{Database: "MSG0.db", Slot: 55, MsgSvrID: 55}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Save(t.Context(), Record{Database: "MSG1.db", Slot: 5, MsgSvrID: 15}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Latest(t.Context(), "MSG0.db", 5)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if got.MsgSvrID != 5 {
		t.Errorf("MsgSvrID = %d, want 5", got.MsgSvrID)
	}
}

func TestLodeStore_EmptyBlobsRestoreAsNil(t *testing.T) {
	s := newMemoryStore(t)
	if err := s.Save(t.Context(), Record{Database: "MSG0.db", Slot: 55, MsgSvrID: 9}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := s.Latest(t.Context(), "MSG0.db", 55)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if got.CompressContent != nil || got.BytesExtra != nil {
		t.Errorf("blobs = %v / %v, want nil", got.CompressContent, got.BytesExtra)
	}
	if got.TakenAt.IsZero() {
		t.Error("TakenAt should default to the save time")
	}
}

func TestLodeStore_LatestNotFound(t *testing.T) {
	s := newMemoryStore(t)
	_, err := s.Latest(t.Context(), "MSG0.db", 55)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLodeStore_SaveRequiresDatabase(t *testing.T) {
	s := newMemoryStore(t)
	if err := s.Save(t.Context(), Record{Slot: 55}); err == nil {
		t.Error("expected error for missing database")
	}
}

func TestLodeStore_FS(t *testing.T) {
	s, err := NewFS("ferry-fs", t.TempDir())
	if err != nil {
		t.Fatalf("NewFS failed: %v", err)
	}
	if err := s.Save(t.Context(), Record{Database: "MSG0.db", Slot: 55, MsgSvrID: 42}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := s.Latest(t.Context(), "MSG0.db", 55)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if got.MsgSvrID != 42 {
		t.Errorf("MsgSvrID = %d, want 42", got.MsgSvrID)
	}
}

func TestLodeStore_FSCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "snapshots", "nested")
	s, err := NewFS("ferry-fs", root)
	if err != nil {
		t.Fatalf("NewFS failed: %v", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		t.Fatalf("root not created: %v", err)
	}
	if err := s.Save(t.Context(), Record{Database: "MSG0.db", Slot: 55, MsgSvrID: 7}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := s.Latest(t.Context(), "MSG0.db", 55)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if got.MsgSvrID != 7 {
		t.Errorf("MsgSvrID = %d, want 7", got.MsgSvrID)
	}
}

func TestParseS3Path(t *testing.T) {
	tests := []struct {
		path, bucket, prefix string
	}{
		{"bucket", "bucket", ""},
		{"bucket/prefix", "bucket", "prefix"},
		{"bucket/a/b", "bucket", "a/b"},
	}
	for _, tt := range tests {
		bucket, prefix := ParseS3Path(tt.path)
		if bucket != tt.bucket || prefix != tt.prefix {
			t.Errorf("ParseS3Path(%q) = %q, %q; want %q, %q", tt.path, bucket, prefix, tt.bucket, tt.prefix)
		}
	}
}

func TestS3Config_Validate(t *testing.T) {
	if err := (&S3Config{}).Validate(); err == nil {
		t.Error("expected error for missing bucket")
	}
	if err := (&S3Config{Bucket: "b"}).Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
	if _, err := NewS3(t.Context(), "d", S3Config{}); err == nil {
		t.Error("NewS3 should reject a missing bucket")
	}
}
