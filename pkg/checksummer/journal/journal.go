package journal

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// ErrEntryNotFound is returned when no entry has the requested ID.
var ErrEntryNotFound = errors.New("journal entry not found")

// Key layout:
//
//	e/<8-byte big-endian unix nanos><id> -> JSON entry
//	i/<id>                               -> entry key
var (
	entryPrefix = []byte("e/")
	indexPrefix = []byte("i/")
)

// DefaultPath returns the default journal directory.
func DefaultPath() string {
	return filepath.Join(xdg.DataHome, "checksummer", "journal")
}

// Journal is a badger-backed log of runs.
type Journal struct {
	db *badger.DB
	mu sync.Mutex
}

// Open opens or creates the journal in dir.
func Open(dir string) (*Journal, error) {
	if dir == "" {
		return nil, errors.New("journal directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the journal.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record assigns an ID and timestamp to entry when unset and persists it.
func (j *Journal) Record(entry *Entry) error {
	if entry == nil {
		return errors.New("journal entry cannot be nil")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.ID == "" {
		entry.ID = generateID(entry.Operation, entry.Timestamp)
	}

	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding journal entry: %w", err)
	}
	key := entryKey(entry.Timestamp, entry.ID)

	return j.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, value); err != nil {
			return err
		}
		return txn.Set(indexKey(entry.ID), key)
	})
}

// List returns entries newest first. A non-positive limit returns all.
func (j *Journal) List(limit int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries := []Entry{}
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts at the last key not greater than the seek key.
		seek := append(append([]byte{}, entryPrefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(entryPrefix); it.Next() {
			var entry Entry
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &entry)
			}); err != nil {
				continue
			}
			entries = append(entries, entry)
			if limit > 0 && len(entries) == limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing journal: %w", err)
	}
	return entries, nil
}

// Get returns the entry with the given ID.
func (j *Journal) Get(id string) (*Entry, error) {
	if id == "" {
		return nil, errors.New("entry ID cannot be empty")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	var entry Entry
	err := j.db.View(func(txn *badger.Txn) error {
		idx, err := txn.Get(indexKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
		}
		if err != nil {
			return err
		}
		key, err := idx.ValueCopy(nil)
		if err != nil {
			return err
		}

		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &entry)
		})
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Cleanup removes entries older than retentionDays and returns how many
// were removed. A non-positive retention keeps everything.
func (j *Journal) Cleanup(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	return j.removeBefore(time.Now().AddDate(0, 0, -retentionDays))
}

func (j *Journal) removeBefore(cutoff time.Time) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var stale [][]byte
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		end := entryKey(cutoff, "")
		for it.Seek(entryPrefix); it.ValidForPrefix(entryPrefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			if bytes.Compare(key, end) >= 0 {
				break
			}
			stale = append(stale, key)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scanning journal: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	wb := j.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return 0, err
		}
		if err := wb.Delete(indexKey(idFromKey(key))); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("removing journal entries: %w", err)
	}
	return len(stale), nil
}

func entryKey(ts time.Time, id string) []byte {
	key := make([]byte, 0, len(entryPrefix)+8+len(id))
	key = append(key, entryPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(ts.UnixNano()))
	return append(key, id...)
}

func indexKey(id string) []byte {
	return append(append([]byte{}, indexPrefix...), id...)
}

func idFromKey(key []byte) string {
	return string(key[len(entryPrefix)+8:])
}

// generateID creates an ID like "verify-2024-06-15T10-30-00-1b4e28ba".
func generateID(op Operation, ts time.Time) string {
	return fmt.Sprintf("%s-%s-%s", op, ts.UTC().Format("2006-01-02T15-04-05"), uuid.NewString()[:8])
}
