// Package snapshot persists the contents of a message row before it is
// overwritten, so a forgery can be undone or replayed later.
package snapshot

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/justapithecus/lode/lode"
)

// DefaultDataset is the dataset name used when none is configured.
const DefaultDataset = "ferry-snapshots"

// RecordKind is the discriminator stored with every snapshot record.
const RecordKind = "row_snapshot"

// Record is the saved state of one message row.
type Record struct {
	Database        string
	Slot            int64
	MsgSvrID        uint64
	CompressContent []byte
	BytesExtra      []byte
	TakenAt         time.Time
}

// Store saves and loads row snapshots.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Latest(ctx context.Context, db string, slot int64) (*Record, error)
}

// LodeStore is a Store backed by a Lode dataset.
// Records are partitioned by database/slot with Hive layout.
type LodeStore struct {
	dataset lode.Dataset
	name    string
}

// NewFS creates a snapshot store rooted at a filesystem directory,
// creating the directory if needed.
func NewFS(dataset, root string) (*LodeStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, WrapInitError(err, dataset)
	}
	return NewWithFactory(dataset, lode.NewFSFactory(root))
}

// NewWithFactory creates a snapshot store with a custom store factory.
// Tests pass a factory returning a shared lode.NewMemory() store.
func NewWithFactory(dataset string, factory lode.StoreFactory) (*LodeStore, error) {
	if dataset == "" {
		dataset = DefaultDataset
	}
	ds, err := lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout("database", "slot"),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
	if err != nil {
		return nil, WrapInitError(err, dataset)
	}
	return &LodeStore{dataset: ds, name: dataset}, nil
}

// Save writes rec as a new snapshot. A zero TakenAt is set to now.
func (s *LodeStore) Save(ctx context.Context, rec Record) error {
	if rec.Database == "" {
		return fmt.Errorf("snapshot: database is required")
	}
	if rec.TakenAt.IsZero() {
		rec.TakenAt = time.Now().UTC()
	}
	if _, err := s.dataset.Write(ctx, []any{toRecordMap(rec)}, lode.Metadata{}); err != nil {
		return WrapWriteError(err, s.partitionPath(rec.Database, rec.Slot))
	}
	return nil
}

// Latest returns the most recent snapshot for the (db, slot) row.
// Returns a StorageError matching ErrNotFound when none exists.
func (s *LodeStore) Latest(ctx context.Context, db string, slot int64) (*Record, error) {
	path := s.partitionPath(db, slot)
	snapshots, err := s.dataset.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, path)
	}

	slotValue := strconv.FormatInt(slot, 10)
	// The newest taken_at wins across every matching snapshot.
	var best *Record
	for _, snap := range snapshots {
		if !snapshotMatches(snap, "database", db) || !snapshotMatches(snap, "slot", slotValue) {
			continue
		}

		data, err := s.dataset.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", s.name, snap.ID))
		}
		for _, item := range data {
			m, ok := item.(map[string]any)
			if !ok || m["record_kind"] != RecordKind {
				continue
			}
			if toString(m["database"]) != db || toString(m["slot"]) != slotValue {
				continue
			}
			rec, err := fromRecordMap(m)
			if err != nil {
				return nil, WrapReadError(err, path)
			}
			if best == nil || !rec.TakenAt.Before(best.TakenAt) {
				best = rec
			}
		}
	}
	if best != nil {
		return best, nil
	}
	return nil, NewStorageError(ErrNotFound, "read", path, fmt.Errorf("no snapshot for %s slot %d", db, slot))
}

func (s *LodeStore) partitionPath(db string, slot int64) string {
	return fmt.Sprintf("%s/database=%s/slot=%d", s.name, db, slot)
}

// toRecordMap builds the stored form. Ids and blobs are strings so they
// survive JSON number and byte handling unchanged.
func toRecordMap(rec Record) map[string]any {
	return map[string]any{
		"record_kind":      RecordKind,
		"database":         rec.Database,
		"slot":             strconv.FormatInt(rec.Slot, 10),
		"msg_svr_id":       strconv.FormatUint(rec.MsgSvrID, 10),
		"compress_content": hex.EncodeToString(rec.CompressContent),
		"bytes_extra":      hex.EncodeToString(rec.BytesExtra),
		"taken_at":         rec.TakenAt.UTC().Format(time.RFC3339Nano),
	}
}

func fromRecordMap(m map[string]any) (*Record, error) {
	slot, err := strconv.ParseInt(toString(m["slot"]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("slot: %w", err)
	}
	id, err := strconv.ParseUint(toString(m["msg_svr_id"]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("msg_svr_id: %w", err)
	}
	content, err := decodeBlob(m["compress_content"])
	if err != nil {
		return nil, fmt.Errorf("compress_content: %w", err)
	}
	extra, err := decodeBlob(m["bytes_extra"])
	if err != nil {
		return nil, fmt.Errorf("bytes_extra: %w", err)
	}
	takenAt, err := time.Parse(time.RFC3339Nano, toString(m["taken_at"]))
	if err != nil {
		return nil, fmt.Errorf("taken_at: %w", err)
	}
	return &Record{
		Database:        toString(m["database"]),
		Slot:            slot,
		MsgSvrID:        id,
		CompressContent: content,
		BytesExtra:      extra,
		TakenAt:         takenAt,
	}, nil
}

// decodeBlob returns nil for an empty stored blob.
func decodeBlob(v any) ([]byte, error) {
	s := toString(v)
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}

// snapshotMatches reports whether any file of snap lies in the key=value
// partition. Matching is per path segment so slot=5 never matches slot=55.
func snapshotMatches(snap *lode.DatasetSnapshot, key, value string) bool {
	segment := key + "=" + value
	for _, f := range snap.Manifest.Files {
		for _, part := range strings.Split(f.Path, "/") {
			if part == segment {
				return true
			}
		}
	}
	return false
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

var _ Store = (*LodeStore)(nil)
