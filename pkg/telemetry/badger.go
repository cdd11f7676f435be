package telemetry

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/warpdrive/fstrace/pkg/iotrace"
)

var (
	recordPrefix = []byte("rec:")
	seqKey       = []byte("meta:seq")
)

// BadgerEmitter persists trace records in a badger store so they can be
// replayed after the traced process exits. Keys order records by
// completion timestamp, then by arrival.
type BadgerEmitter struct {
	db *badger.DB

	mu  sync.Mutex
	seq uint64
}

// OpenBadgerEmitter opens (or creates) the store at path. An empty path
// opens an in-memory store.
func OpenBadgerEmitter(path string) (*BadgerEmitter, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("telemetry.OpenBadgerEmitter: open %q: %w", path, err)
	}

	e := &BadgerEmitter{db: db}
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(seqKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 8 {
				e.seq = binary.BigEndian.Uint64(val)
			}
			return nil
		})
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("telemetry.OpenBadgerEmitter: read sequence: %w", err)
	}

	slog.Info("Trace store opened", "component", "telemetry", "path", path, "seq", e.seq)
	return e, nil
}

func recordKey(ts, seq uint64) []byte {
	key := make([]byte, len(recordPrefix)+16)
	n := copy(key, recordPrefix)
	binary.BigEndian.PutUint64(key[n:], ts)
	binary.BigEndian.PutUint64(key[n+8:], seq)
	return key
}

// Emit writes records in one batch.
func (e *BadgerEmitter) Emit(records []iotrace.Record) error {
	if len(records) == 0 {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	wb := e.db.NewWriteBatch()
	defer wb.Cancel()

	seq := e.seq
	for _, rec := range records {
		val, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("telemetry.BadgerEmitter: marshal: %w", err)
		}
		seq++
		if err := wb.Set(recordKey(rec.Timestamp, seq), val); err != nil {
			return fmt.Errorf("telemetry.BadgerEmitter: set: %w", err)
		}
	}
	var seqVal [8]byte
	binary.BigEndian.PutUint64(seqVal[:], seq)
	if err := wb.Set(seqKey, seqVal[:]); err != nil {
		return fmt.Errorf("telemetry.BadgerEmitter: set sequence: %w", err)
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("telemetry.BadgerEmitter: flush: %w", err)
	}
	e.seq = seq
	return nil
}

// Scan calls fn for every stored record whose timestamp lies in
// [from, to), in key order. to == 0 means no upper bound. Corrupt entries
// are skipped.
func (e *BadgerEmitter) Scan(from, to uint64, fn func(iotrace.Record) error) error {
	return e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = recordPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(recordKey(from, 0)); it.Valid(); it.Next() {
			item := it.Item()
			ts := binary.BigEndian.Uint64(item.Key()[len(recordPrefix):])
			if to != 0 && ts >= to {
				return nil
			}
			var rec iotrace.Record
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				continue // skip corrupt entries
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// Records returns every stored record in key order.
func (e *BadgerEmitter) Records() ([]iotrace.Record, error) {
	var out []iotrace.Record
	err := e.Scan(0, 0, func(rec iotrace.Record) error {
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry.BadgerEmitter: scan: %w", err)
	}
	return out, nil
}

// HealthCheck fails once the store is closed.
func (e *BadgerEmitter) HealthCheck() error {
	if e.db.IsClosed() {
		return errors.New("trace store closed")
	}
	return nil
}

// Close closes the store.
func (e *BadgerEmitter) Close() error {
	return e.db.Close()
}
