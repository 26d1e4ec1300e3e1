package manifest

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/dittoraid/internal/logger"
	"github.com/marmos91/dittoraid/pkg/raid"
)

// ============================================================================
// Key Namespace
// ============================================================================
//
// Data Type   Prefix   Key Format                 Value Type
// ==========================================================
// Manifest    "m:"     m:array                    Manifest (JSON)
// Events      "e:"     e:<unix nanos><seq> (BE)   Event (JSON)
//
// Event keys are big-endian timestamps so a prefix scan returns them in
// chronological order.

const (
	prefixManifest = "m:"
	prefixEvent    = "e:"
)

func keyManifest() []byte {
	return []byte(prefixManifest + "array")
}

func keyEvent(t time.Time, seq uint64) []byte {
	key := make([]byte, len(prefixEvent)+16)
	copy(key, prefixEvent)
	binary.BigEndian.PutUint64(key[len(prefixEvent):], uint64(t.UnixNano()))
	binary.BigEndian.PutUint64(key[len(prefixEvent)+8:], seq)
	return key
}

// ============================================================================
// Store
// ============================================================================

// Store persists a manifest and its event history in BadgerDB.
type Store struct {
	db  *badgerdb.DB
	now func() time.Time
	seq atomic.Uint64
}

// Open opens (or creates) the manifest database in dir.
func Open(dir string) (*Store, error) {
	opts := badgerdb.DefaultOptions(dir).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest at %s: %w", dir, err)
	}
	logger.Debug("Manifest opened", logger.Manifest(dir))
	return &Store{db: db, now: time.Now}, nil
}

// OpenInMemory opens a manifest store that lives only as long as the process.
func OpenInMemory() (*Store, error) {
	db, err := badgerdb.Open(badgerdb.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory manifest: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the recorded manifest or ErrNotFound.
func (s *Store) Load(ctx context.Context) (*Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var m Manifest
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyManifest())
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &m)
		})
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	return &m, nil
}

// Save writes m, replacing any previous manifest.
func (s *Store) Save(ctx context.Context, m *Manifest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		if err := txn.Set(keyManifest(), data); err != nil {
			return fmt.Errorf("failed to store manifest: %w", err)
		}
		return nil
	})
}

// Reconcile checks layout against the recorded manifest, recording a new
// one on first use. Device paths are refreshed on every successful call.
// A mismatch returns ErrManifestMismatch and leaves the store untouched.
func (s *Store) Reconcile(ctx context.Context, layout raid.Layout, devices []string) (*Manifest, error) {
	now := s.now()

	m, err := s.Load(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		m = New(layout, devices, now)
		if err := s.Save(ctx, m); err != nil {
			return nil, err
		}
		if err := s.Record(ctx, Event{Kind: EventCreated, Slot: -1, Detail: layout.Level.String()}); err != nil {
			return nil, err
		}
		logger.Info("Manifest created", logger.ArrayID(m.ID.String()), logger.RaidLevel(layout.Level.String()),
			logger.BlockSize(layout.BlockSize), logger.Devices(layout.Devices))
		return m, nil
	case err != nil:
		return nil, err
	}

	if err := m.Match(layout); err != nil {
		return nil, err
	}

	m.Devices = append(m.Devices[:0], devices...)
	m.UpdatedAt = now
	if err := s.Save(ctx, m); err != nil {
		return nil, err
	}
	return m, s.Record(ctx, Event{Kind: EventAssembled, Slot: -1})
}

// MarkInitialized records a completed zero-fill.
func (s *Store) MarkInitialized(ctx context.Context) error {
	return s.update(ctx, func(m *Manifest, now time.Time) Event {
		m.InitializedAt = now
		return Event{Kind: EventInitialized, Slot: -1}
	})
}

// MarkRebuilt records a completed rebuild of slot.
func (s *Store) MarkRebuilt(ctx context.Context, slot int) error {
	return s.update(ctx, func(m *Manifest, now time.Time) Event {
		m.RebuiltAt = now
		m.RebuiltSlot = slot
		return Event{Kind: EventRebuilt, Slot: slot}
	})
}

// update applies fn to the stored manifest and appends the returned event in
// one transaction.
func (s *Store) update(ctx context.Context, fn func(*Manifest, time.Time) Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := s.now()
	return s.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyManifest())
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var m Manifest
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &m) }); err != nil {
			return fmt.Errorf("failed to decode manifest: %w", err)
		}

		ev := fn(&m, now)
		ev.Time = now
		m.UpdatedAt = now

		data, err := json.Marshal(&m)
		if err != nil {
			return err
		}
		if err := txn.Set(keyManifest(), data); err != nil {
			return err
		}
		return s.setEvent(txn, ev)
	})
}

// Record appends an event to the history.
func (s *Store) Record(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.Time.IsZero() {
		ev.Time = s.now()
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return s.setEvent(txn, ev)
	})
}

func (s *Store) setEvent(txn *badgerdb.Txn, ev Event) error {
	data, err := json.Marshal(&ev)
	if err != nil {
		return err
	}
	if err := txn.Set(keyEvent(ev.Time, s.seq.Add(1)), data); err != nil {
		return fmt.Errorf("failed to store event: %w", err)
	}
	return nil
}

// Events returns the recorded history, oldest first.
func (s *Store) Events(ctx context.Context) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var events []Event
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefixEvent)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var ev Event
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &ev) }); err != nil {
				return err
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}
