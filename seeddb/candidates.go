package seeddb

import (
	"math/rand/v2"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/overlaynet/seeddb/seed"
)

// AnySeed draws a random seed of the connected tier. Seeds are drawn without
// replacement from a pool holding every connected seed, once the pool is
// empty it is filled again. None is returned if the connected tier is empty.
func (d *DB) AnySeed() fn.Option[*seed.Seed] {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.candidates) == 0 {
		d.candidates = d.collectCandidatesLocked()
	}

	n := len(d.candidates)
	if n == 0 {
		return fn.None[*seed.Seed]()
	}

	s := d.candidates[n-1]
	d.candidates[n-1] = nil
	d.candidates = d.candidates[:n-1]

	return fn.Some(s)
}

// DrainCycle starts a fresh candidate cycle and draws all of it at once: every
// connected seed is returned exactly once, in random order. Seeds left in the
// pool by earlier AnySeed calls are discarded, and the pool is empty
// afterwards, so the next AnySeed call starts a new cycle.
func (d *DB) DrainCycle() []*seed.Seed {
	d.mu.Lock()
	defer d.mu.Unlock()

	pool := d.collectCandidatesLocked()
	d.candidates = nil

	return pool
}

// AnySeedType draws random seeds of the connected tier until one of the given
// peer type is found. At most as many seeds as the tier holds are drawn.
func (d *DB) AnySeedType(peerType seed.PeerType) fn.Option[*seed.Seed] {
	for range d.Size(TierConnected) {
		next := d.AnySeed()
		if next.IsNone() {
			break
		}

		s := next.UnsafeFromSome()
		if s.PeerType() == peerType {
			return fn.Some(s)
		}
	}

	return fn.None[*seed.Seed]()
}

// collectCandidatesLocked reads every seed of the connected tier in random
// order. A stored copy of the local seed is deleted instead. A fault resets the
// tier and yields an empty pool. The caller must hold the write lock.
func (d *DB) collectCandidatesLocked() []*seed.Seed {
	h := d.tiers[TierConnected].load()
	if h.store.Size() == 0 {
		return nil
	}

	keys, err := h.store.Keys()
	if d.recoverLocked(h, "keys", err) != outcomeOK {
		return nil
	}

	pool := make([]*seed.Seed, 0, len(keys))
	for _, key := range keys {
		if d.isSelf(key) {
			err := h.store.Delete(key)
			if d.recoverLocked(h, "delete", err) != outcomeOK {
				return nil
			}

			log.Infof("Removed local seed %s from connected tier", key)

			continue
		}

		attrs, err := h.store.Get(key)
		switch d.recoverLocked(h, "get", err) {
		case outcomeOK:
			pool = append(pool, seed.New(key, attrs))

		case outcomeAbsent, outcomePropagate:
			continue

		case outcomeRecovered:
			return nil
		}
	}

	rand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	log.Debugf("Refilled candidate pool with %d seeds", len(pool))

	return pool
}
