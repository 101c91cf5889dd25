package tierstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/kvdb"
)

var (
	// seedsBucket is the top-level bucket of a tier file. Every seed is a
	// nested bucket below it, keyed by the seed hash, that maps attribute
	// names to attribute values.
	seedsBucket = []byte("seeds")
)

// Store is a persistent, ordered map from seed hash to the seed's attribute
// map. One store backs each tier of the seed registry.
type Store interface {
	// Get returns the attributes stored for id. ErrRecordNotFound is
	// returned if id is not part of the store.
	Get(id string) (map[string]string, error)

	// Put inserts or replaces the attributes stored for id.
	Put(id string, attrs map[string]string) error

	// Delete removes id from the store. Deleting an absent id is not an
	// error.
	Delete(id string) error

	// Size returns the number of seeds in the store.
	Size() int

	// Sum returns the running sum of the numeric attribute field over all
	// seeds in the store. Only the fields the store was configured to
	// accumulate are tracked, all others yield zero.
	Sum(field string) int64

	// NextKey returns the first key strictly after the given key, walking
	// the keys ascending or descending. An empty after key starts at the
	// first (or last) key. ErrEndOfTier is returned once the walk is
	// exhausted.
	NextKey(after string, ascending bool) (string, error)

	// Keys returns a snapshot of every key in ascending order.
	Keys() ([]string, error)

	// SortedKeys returns a snapshot of every key ordered by the value of
	// field. Numeric values compare as numbers, other values compare
	// lexically and seeds missing the field sort first. Ties are broken by
	// key.
	SortedKeys(field string, ascending bool) ([]string, error)

	// Close releases the store.
	Close() error

	// Destroy closes the store and removes its backing file.
	Destroy() error
}

// Config holds the parameters of a bolt backed tier store.
type Config struct {
	// Path is the file the tier is stored in.
	Path string

	// DBTimeout is the time to wait for the file lock when opening.
	DBTimeout time.Duration

	// NoFreelistSync skips syncing the bolt freelist to disk.
	NoFreelistSync bool

	// SortFields are the attributes SortedKeys accepts.
	SortFields []string

	// AccFields are the numeric attributes running sums are kept for.
	AccFields []string
}

// BoltStore is a Store backed by a bolt database file reached through kvdb.
type BoltStore struct {
	cfg Config
	db  kvdb.Backend

	mu    sync.RWMutex
	count int
	sums  map[string]int64
}

// A compile-time check to ensure BoltStore implements the Store interface.
var _ Store = (*BoltStore)(nil)

// Open opens the tier store at cfg.Path, creating it if it doesn't exist yet.
// If an existing file can't be opened it is deleted and a fresh, empty store
// is created in its place.
func Open(cfg Config) (*BoltStore, error) {
	if cfg.DBTimeout == 0 {
		cfg.DBTimeout = kvdb.DefaultDBTimeout
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
		return nil, fmt.Errorf("unable to create tier directory: %w",
			err)
	}

	s, err := open(cfg)
	if err == nil {
		return s, nil
	}

	// The broken file is discarded and the tier starts over empty.
	log.Warnf("Unable to open tier %v, recreating it: %v", cfg.Path, err)

	if rmErr := os.Remove(cfg.Path); rmErr != nil &&
		!errors.Is(rmErr, os.ErrNotExist) {

		return nil, fmt.Errorf("unable to remove broken tier %v: %w",
			cfg.Path, rmErr)
	}

	return open(cfg)
}

// open opens or creates the bolt file and loads the in-memory aggregates.
func open(cfg Config) (*BoltStore, error) {
	db, err := kvdb.Create(
		kvdb.BoltBackendName, cfg.Path, cfg.NoFreelistSync,
		cfg.DBTimeout, false,
	)
	if err != nil {
		return nil, corrupt("open", err)
	}

	s := &BoltStore{
		cfg: cfg,
		db:  db,
	}

	err = kvdb.Update(db, func(tx kvdb.RwTx) error {
		seeds, err := tx.CreateTopLevelBucket(seedsBucket)
		if err != nil {
			return err
		}

		return seeds.ForEach(func(k, _ []byte) error {
			record := seeds.NestedReadBucket(k)
			if record == nil {
				return fmt.Errorf("seed %x is not a bucket", k)
			}

			attrs, err := readAttrs(record)
			if err != nil {
				return err
			}

			s.count++
			s.accumulate(attrs, 1)

			return nil
		})
	}, func() {
		s.count = 0
		s.sums = make(map[string]int64, len(cfg.AccFields))
	})
	if err != nil {
		_ = db.Close()
		return nil, corrupt("load", err)
	}

	log.Debugf("Opened tier %v with %d seeds", cfg.Path, s.count)

	return s, nil
}

// Path returns the file backing the store.
func (s *BoltStore) Path() string {
	return s.cfg.Path
}

// Get returns the attributes stored for id.
//
// NOTE: Part of the Store interface.
func (s *BoltStore) Get(id string) (map[string]string, error) {
	var attrs map[string]string
	err := kvdb.View(s.db, func(tx kvdb.RTx) error {
		seeds, err := seedBucket(tx)
		if err != nil {
			return err
		}

		record := seeds.NestedReadBucket([]byte(id))
		if record == nil {
			if seeds.Get([]byte(id)) != nil {
				return fmt.Errorf("seed %v is not a bucket", id)
			}

			return ErrRecordNotFound
		}

		attrs, err = readAttrs(record)

		return err
	}, func() {
		attrs = nil
	})
	switch {
	case errors.Is(err, ErrRecordNotFound):
		return nil, err

	case err != nil:
		return nil, corrupt("get", err)
	}

	return attrs, nil
}

// Put inserts or replaces the attributes stored for id.
//
// NOTE: Part of the Store interface.
func (s *BoltStore) Put(id string, attrs map[string]string) error {
	if id == "" {
		return fmt.Errorf("%w: empty seed id", ErrCorrupt)
	}

	var (
		old     map[string]string
		existed bool
	)
	err := kvdb.Update(s.db, func(tx kvdb.RwTx) error {
		seeds := tx.ReadWriteBucket(seedsBucket)
		if seeds == nil {
			return kvdb.ErrBucketNotFound
		}

		key := []byte(id)
		if record := seeds.NestedReadBucket(key); record != nil {
			var err error
			old, err = readAttrs(record)
			if err != nil {
				return err
			}
			existed = true

			if err := seeds.DeleteNestedBucket(key); err != nil {
				return err
			}
		}

		record, err := seeds.CreateBucket(key)
		if err != nil {
			return err
		}
		for k, v := range attrs {
			// Bolt refuses empty keys.
			if k == "" {
				continue
			}
			if err := record.Put([]byte(k), []byte(v)); err != nil {
				return err
			}
		}

		return nil
	}, func() {
		old = nil
		existed = false
	})
	if err != nil {
		return corrupt("put", err)
	}

	s.mu.Lock()
	if existed {
		s.accumulate(old, -1)
	} else {
		s.count++
	}
	s.accumulate(attrs, 1)
	s.mu.Unlock()

	return nil
}

// Delete removes id from the store.
//
// NOTE: Part of the Store interface.
func (s *BoltStore) Delete(id string) error {
	var (
		old     map[string]string
		existed bool
	)
	err := kvdb.Update(s.db, func(tx kvdb.RwTx) error {
		seeds := tx.ReadWriteBucket(seedsBucket)
		if seeds == nil {
			return kvdb.ErrBucketNotFound
		}

		key := []byte(id)
		record := seeds.NestedReadBucket(key)
		if record == nil {
			return nil
		}

		var err error
		old, err = readAttrs(record)
		if err != nil {
			return err
		}
		existed = true

		return seeds.DeleteNestedBucket(key)
	}, func() {
		old = nil
		existed = false
	})
	if err != nil {
		return corrupt("delete", err)
	}

	if existed {
		s.mu.Lock()
		s.count--
		s.accumulate(old, -1)
		s.mu.Unlock()
	}

	return nil
}

// Size returns the number of seeds in the store.
//
// NOTE: Part of the Store interface.
func (s *BoltStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.count
}

// Sum returns the running sum of field.
//
// NOTE: Part of the Store interface.
func (s *BoltStore) Sum(field string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sums[field]
}

// NextKey returns the key following after.
//
// NOTE: Part of the Store interface.
func (s *BoltStore) NextKey(after string, ascending bool) (string, error) {
	var next []byte
	err := kvdb.View(s.db, func(tx kvdb.RTx) error {
		seeds, err := seedBucket(tx)
		if err != nil {
			return err
		}

		c := seeds.ReadCursor()
		var k []byte
		switch {
		case after == "" && ascending:
			k, _ = c.First()

		case after == "":
			k, _ = c.Last()

		case ascending:
			k, _ = c.Seek([]byte(after))
			if k != nil && string(k) == after {
				k, _ = c.Next()
			}

		default:
			// Seek lands on the first key >= after, so the key
			// before it is the first one strictly smaller.
			k, _ = c.Seek([]byte(after))
			if k == nil {
				k, _ = c.Last()
			} else {
				k, _ = c.Prev()
			}
		}

		if k == nil {
			return ErrEndOfTier
		}
		next = append([]byte(nil), k...)

		return nil
	}, func() {
		next = nil
	})
	switch {
	case errors.Is(err, ErrEndOfTier):
		return "", err

	case err != nil:
		return "", corrupt("cursor", err)
	}

	return string(next), nil
}

// Keys returns every key in ascending order.
//
// NOTE: Part of the Store interface.
func (s *BoltStore) Keys() ([]string, error) {
	var keys []string
	err := kvdb.View(s.db, func(tx kvdb.RTx) error {
		seeds, err := seedBucket(tx)
		if err != nil {
			return err
		}

		return seeds.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	}, func() {
		keys = nil
	})
	if err != nil {
		return nil, corrupt("keys", err)
	}

	return keys, nil
}

// sortEntry pairs a key with the value it is sorted by.
type sortEntry struct {
	key     string
	value   string
	num     float64
	numeric bool
	present bool
}

// less orders two entries ascending.
func (e sortEntry) less(o sortEntry) bool {
	switch {
	case e.present != o.present:
		return !e.present

	case e.numeric && o.numeric && e.num != o.num:
		return e.num < o.num

	case !(e.numeric && o.numeric) && e.value != o.value:
		return e.value < o.value
	}

	return e.key < o.key
}

// SortedKeys returns every key ordered by field.
//
// NOTE: Part of the Store interface.
func (s *BoltStore) SortedKeys(field string, ascending bool) ([]string,
	error) {

	if !contains(s.cfg.SortFields, field) {
		return nil, fmt.Errorf("%w: %v", ErrUnknownField, field)
	}

	var entries []sortEntry
	err := kvdb.View(s.db, func(tx kvdb.RTx) error {
		seeds, err := seedBucket(tx)
		if err != nil {
			return err
		}

		return seeds.ForEach(func(k, _ []byte) error {
			record := seeds.NestedReadBucket(k)
			if record == nil {
				return fmt.Errorf("seed %x is not a bucket", k)
			}

			entry := sortEntry{key: string(k)}
			if v := record.Get([]byte(field)); v != nil {
				entry.present = true
				entry.value = string(v)
				num, err := strconv.ParseFloat(
					strings.TrimSpace(entry.value), 64,
				)
				if err == nil {
					entry.num, entry.numeric = num, true
				}
			}
			entries = append(entries, entry)

			return nil
		})
	}, func() {
		entries = nil
	})
	if err != nil {
		return nil, corrupt("sort", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		if ascending {
			return entries[i].less(entries[j])
		}

		return entries[j].less(entries[i])
	})

	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.key
	}

	return keys, nil
}

// Close releases the store.
//
// NOTE: Part of the Store interface.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Destroy closes the store and removes its backing file.
//
// NOTE: Part of the Store interface.
func (s *BoltStore) Destroy() error {
	if err := s.db.Close(); err != nil {
		log.Debugf("Closing tier %v before removal failed: %v",
			s.cfg.Path, err)
	}

	err := os.Remove(s.cfg.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}

// accumulate adds (sign=1) or subtracts (sign=-1) the tracked numeric fields
// of attrs to the running sums.
//
// NOTE: s.mu must be held, or s must not be shared yet.
func (s *BoltStore) accumulate(attrs map[string]string, sign int64) {
	if s.sums == nil {
		s.sums = make(map[string]int64, len(s.cfg.AccFields))
	}

	for _, field := range s.cfg.AccFields {
		v, err := strconv.ParseInt(
			strings.TrimSpace(attrs[field]), 10, 64,
		)
		if err != nil {
			continue
		}
		s.sums[field] += sign * v
	}
}

// seedBucket fetches the top-level seeds bucket.
func seedBucket(tx kvdb.RTx) (kvdb.RBucket, error) {
	seeds := tx.ReadBucket(seedsBucket)
	if seeds == nil {
		return nil, kvdb.ErrBucketNotFound
	}

	return seeds, nil
}

// readAttrs reads every attribute stored in a seed bucket.
func readAttrs(record kvdb.RBucket) (map[string]string, error) {
	if record == nil {
		return nil, errors.New("seed bucket missing")
	}

	attrs := make(map[string]string)
	err := record.ForEach(func(k, v []byte) error {
		if record.NestedReadBucket(k) != nil {
			return fmt.Errorf("attribute %q is a bucket", k)
		}
		attrs[string(k)] = string(v)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return attrs, nil
}

// contains reports whether s holds v.
func contains(s []string, v string) bool {
	for _, e := range s {
		if e == v {
			return true
		}
	}

	return false
}
