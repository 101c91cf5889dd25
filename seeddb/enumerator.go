package seeddb

import (
	"errors"
	"iter"

	"github.com/overlaynet/seeddb/seed"
	"github.com/overlaynet/seeddb/tierstore"
)

// Enumerator is a forward only cursor over the seeds of one tier. It either
// walks the tier in key order, optionally resuming after a given key and
// rotating around to the first key, or walks a snapshot of the keys sorted by
// an attribute.
//
// Every step takes the read lock of the registry on its own. When the tier is
// reset underneath, the enumerator stops and Err returns ErrStaleHandle. A
// storage fault resets the tier and stops the enumerator as well. An
// enumerator is not safe for concurrent use.
type Enumerator struct {
	db *DB
	h  *tierHandle

	// Key order mode.
	ascending bool
	rotate    bool
	resume    string
	cursor    string
	wrapped   bool

	// Sorted mode.
	sorted bool
	keys   []string
	pos    int

	done bool
	err  error
}

// SeedsConnected enumerates the connected tier in key order. See Seeds.
func (d *DB) SeedsConnected(up, rotate bool, resume string) *Enumerator {
	return d.Seeds(TierConnected, up, rotate, resume)
}

// SeedsDisconnected enumerates the disconnected tier in key order. See Seeds.
func (d *DB) SeedsDisconnected(up, rotate bool, resume string) *Enumerator {
	return d.Seeds(TierDisconnected, up, rotate, resume)
}

// SeedsPotential enumerates the potential tier in key order. See Seeds.
func (d *DB) SeedsPotential(up, rotate bool, resume string) *Enumerator {
	return d.Seeds(TierPotential, up, rotate, resume)
}

// Seeds enumerates the tier in ascending or descending key order, starting
// after resume. The resume key doesn't need to be stored. With rotate set the
// enumerator wraps around once the end of the tier is reached and stops after
// the resume key, so every seed is visited exactly once.
func (d *DB) Seeds(tier Tier, up, rotate bool, resume string) *Enumerator {
	d.mu.RLock()
	h := d.tiers[tier].load()
	d.mu.RUnlock()

	return &Enumerator{
		db:        d,
		h:         h,
		ascending: up,
		rotate:    rotate && resume != "",
		resume:    resume,
		cursor:    resume,
	}
}

// SeedsSortedConnected enumerates the connected tier sorted by field. See
// SeedsSorted.
func (d *DB) SeedsSortedConnected(up bool, field string) *Enumerator {
	return d.SeedsSorted(TierConnected, up, field)
}

// SeedsSortedDisconnected enumerates the disconnected tier sorted by field.
// See SeedsSorted.
func (d *DB) SeedsSortedDisconnected(up bool, field string) *Enumerator {
	return d.SeedsSorted(TierDisconnected, up, field)
}

// SeedsSortedPotential enumerates the potential tier sorted by field. See
// SeedsSorted.
func (d *DB) SeedsSortedPotential(up bool, field string) *Enumerator {
	return d.SeedsSorted(TierPotential, up, field)
}

// SeedsSorted enumerates the tier ordered by the value of field, which has to
// be one of seed.SortFields. The order is fixed when the enumerator is
// created, seeds removed afterwards are skipped.
func (d *DB) SeedsSorted(tier Tier, up bool, field string) *Enumerator {
	d.mu.RLock()
	h := d.tiers[tier].load()
	keys, err := h.store.SortedKeys(field, up)
	d.mu.RUnlock()

	e := &Enumerator{
		db:     d,
		h:      h,
		sorted: true,
		keys:   keys,
	}

	switch classify(err) {
	case outcomeRecovered:
		e.fail("sorted keys", err)

	case outcomeAbsent, outcomePropagate:
		log.Debugf("Unable to sort %v tier by %s: %v", tier, field, err)
		e.finish(err)
	}

	return e
}

// Next returns the next seed. False is returned once the enumerator is
// exhausted or was stopped by a reset.
func (e *Enumerator) Next() (*seed.Seed, bool) {
	for !e.done {
		key, ok := e.nextKey()
		if !ok {
			return nil, false
		}

		s, ok := e.load(key)
		if ok {
			return s, true
		}
	}

	return nil, false
}

// All returns the remaining seeds as a sequence for use with range.
func (e *Enumerator) All() iter.Seq[*seed.Seed] {
	return func(yield func(*seed.Seed) bool) {
		for {
			s, ok := e.Next()
			if !ok || !yield(s) {
				return
			}
		}
	}
}

// Err returns nil if the enumerator ran to the end or is still running. It
// returns ErrStaleHandle if the tier was reset by someone else during the
// iteration and a *RecoveredFault if the enumerator itself hit a storage
// fault.
func (e *Enumerator) Err() error {
	return e.err
}

// nextKey advances the cursor. The second return value is false once the
// enumerator is done.
func (e *Enumerator) nextKey() (string, bool) {
	if e.sorted {
		if e.pos >= len(e.keys) {
			e.finish(nil)
			return "", false
		}

		key := e.keys[e.pos]
		e.pos++

		return key, true
	}

	for {
		key, err := e.step()
		switch {
		case errors.Is(err, ErrStaleHandle):
			e.finish(err)
			return "", false

		case errors.Is(err, tierstore.ErrEndOfTier):
			if e.rotate && !e.wrapped {
				e.wrapped = true
				e.cursor = ""

				continue
			}

			e.finish(nil)
			return "", false

		case err != nil:
			e.fail("next key", err)
			return "", false
		}

		if e.wrapped && e.beyondResume(key) {
			e.finish(nil)
			return "", false
		}

		e.cursor = key

		return key, true
	}
}

// beyondResume reports whether the key lies past the resume key after the
// enumerator has wrapped around.
func (e *Enumerator) beyondResume(key string) bool {
	if e.ascending {
		return key > e.resume
	}

	return key < e.resume
}

// step returns the key following the cursor.
func (e *Enumerator) step() (string, error) {
	e.db.mu.RLock()
	defer e.db.mu.RUnlock()

	if !e.db.tiers[e.h.tier].isCurrent(e.h) {
		return "", ErrStaleHandle
	}

	return e.h.store.NextKey(e.cursor, e.ascending)
}

// load reads the seed stored under key. False is returned if the seed is gone
// or the enumerator was stopped.
func (e *Enumerator) load(key string) (*seed.Seed, bool) {
	e.db.mu.RLock()
	if !e.db.tiers[e.h.tier].isCurrent(e.h) {
		e.db.mu.RUnlock()
		e.finish(ErrStaleHandle)

		return nil, false
	}
	attrs, err := e.h.store.Get(key)
	e.db.mu.RUnlock()

	switch classify(err) {
	case outcomeOK:
		return seed.New(key, attrs), true

	case outcomeRecovered:
		e.fail("get", err)
	}

	return nil, false
}

// fail stops the enumerator after a storage fault and asks the registry to
// reset the tier.
func (e *Enumerator) fail(op string, err error) {
	e.db.requestReset(e.h, op, err)
	e.finish(&RecoveredFault{Tier: e.h.tier, Op: op, Err: err})
}

// finish stops the enumerator, recording why.
func (e *Enumerator) finish(err error) {
	e.done = true
	e.err = err
	e.keys = nil
}
