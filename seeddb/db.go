package seeddb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/lightninglabs/neutrino/cache/lru"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/overlaynet/seeddb/seed"
	"github.com/overlaynet/seeddb/tierstore"
)

const (
	// DefaultNameCacheSize is the number of names kept in the name cache
	// when no size is configured.
	DefaultNameCacheSize = 1000
)

// Config holds the collaborators of a DB.
type Config struct {
	// LocalSeed is the identity of the local node. It is never stored in
	// any tier.
	LocalSeed *seed.Seed

	// OpenTier opens the store of a tier.
	OpenTier TierOpener

	// Clock is used to score seeds by age. Defaults to the wall clock.
	Clock clock.Clock

	// NameCacheSize bounds the number of entries of the name cache.
	NameCacheSize uint64
}

// cachedSeed is the value type of the name cache. Every entry counts as one
// unit of the cache capacity.
type cachedSeed struct {
	seed *seed.Seed
}

// Size returns the capacity used by the entry.
func (c *cachedSeed) Size() (uint64, error) {
	return 1, nil
}

// DB is the registry of all known remote seeds, classified into the
// connected, disconnected and potential tiers. A seed is stored in at most one
// tier, and the local seed is stored in none of them.
//
// Every mutation, tier reset and candidate pool refill is serialized by a
// single lock. Reads share that lock, so they never see a tier while it is
// being reset.
type DB struct {
	cfg Config

	mySeed *seed.Seed

	mu    sync.RWMutex
	tiers [numTiers]tierSlot

	// nameCache maps lower-cased names to seeds of the connected tier.
	nameCache *lru.Cache[string, *cachedSeed]

	// candidates is the pool AnySeed draws from. Guarded by mu.
	candidates []*seed.Seed
}

// New opens all tiers and returns the registry. Any copy of the local seed
// still found in a tier is removed.
func New(cfg Config) (*DB, error) {
	if cfg.LocalSeed == nil {
		return nil, ErrNoLocalSeed
	}
	if cfg.OpenTier == nil {
		return nil, ErrNoTierOpener
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}
	if cfg.NameCacheSize == 0 {
		cfg.NameCacheSize = DefaultNameCacheSize
	}

	d := &DB{
		cfg:    cfg,
		mySeed: cfg.LocalSeed,
		nameCache: lru.NewCache[string, *cachedSeed](
			cfg.NameCacheSize,
		),
	}

	for _, tier := range Tiers {
		store, err := cfg.OpenTier(tier)
		if err != nil {
			for _, opened := range Tiers[:tier] {
				_ = d.tiers[opened].load().store.Close()
			}

			return nil, fmt.Errorf("unable to open %v tier: %w",
				tier, err)
		}

		d.tiers[tier].cur.Store(&tierHandle{tier: tier, store: store})

		log.Debugf("Opened %v tier with %d seeds", tier, store.Size())
	}

	d.RemoveSelf()

	log.Infof("Seed registry opened: connected=%d, disconnected=%d, "+
		"potential=%d", d.Size(TierConnected),
		d.Size(TierDisconnected), d.Size(TierPotential))

	return d, nil
}

// LocalSeed returns the identity of the local node.
func (d *DB) LocalSeed() *seed.Seed {
	return d.mySeed
}

// isSelf reports whether the hash belongs to the local seed.
func (d *DB) isSelf(hash string) bool {
	return hash == d.mySeed.Hash
}

// InsertConnected stores the seed in the connected tier and removes it from
// the other tiers. Seeds that aren't proper are ignored.
func (d *DB) InsertConnected(s *seed.Seed) {
	if s == nil || d.isSelf(s.Hash) {
		return
	}
	if err := s.Validate(); err != nil {
		log.Tracef("Ignoring connected seed %s: %v", s.Hash, err)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.moveLocked(TierConnected, s) {
		return
	}

	if name := s.LowerName(); name != "" {
		_, _ = d.nameCache.Put(name, &cachedSeed{seed: s.Copy()})
	}
}

// InsertDisconnected stores the seed in the disconnected tier and removes it
// from the other tiers. Seeds don't have to be proper to be disconnected.
func (d *DB) InsertDisconnected(s *seed.Seed) {
	if s == nil || d.isSelf(s.Hash) {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.evictNameLocked(s)
	d.moveLocked(TierDisconnected, s)
}

// InsertPotential stores the seed in the potential tier and removes it from
// the other tiers. Seeds that aren't proper are ignored.
func (d *DB) InsertPotential(s *seed.Seed) {
	if s == nil || d.isSelf(s.Hash) {
		return
	}
	if err := s.Validate(); err != nil {
		log.Tracef("Ignoring potential seed %s: %v", s.Hash, err)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.evictNameLocked(s)
	d.moveLocked(TierPotential, s)
}

// moveLocked removes the seed from every tier but target and then writes it
// to target. The name the seed is stored under in the connected tier is
// evicted from the name cache first, a fault while reading it resets the
// connected tier and abandons the move. Later faults reset the failing tier
// and the move carries on with the remaining tiers. It reports whether the
// seed was stored in target. The caller must hold the write lock.
func (d *DB) moveLocked(target Tier, s *seed.Seed) bool {
	if !d.evictStoredNameLocked(s.Hash) {
		return false
	}

	for _, tier := range Tiers {
		if tier == target {
			continue
		}

		h := d.tiers[tier].load()
		d.recoverLocked(h, "delete", h.store.Delete(s.Hash))
	}

	h := d.tiers[target].load()
	if d.recoverLocked(h, "put", h.store.Put(s.Hash, s.Attrs)) != outcomeOK {
		return false
	}

	log.Tracef("Stored seed %s in %v tier", s.Hash, target)

	return true
}

// evictStoredNameLocked drops the cached name of the seed stored under hash in
// the connected tier. False is returned if reading the stored seed hit a
// storage fault. The caller must hold the write lock.
func (d *DB) evictStoredNameLocked(hash string) bool {
	h := d.tiers[TierConnected].load()
	attrs, err := h.store.Get(hash)
	switch d.recoverLocked(h, "get", err) {
	case outcomeOK:
		d.evictNameLocked(seed.New(hash, attrs))

	case outcomeRecovered:
		return false
	}

	return true
}

// evictNameLocked drops the name of the seed from the name cache, but only if
// the cache entry refers to the same seed.
func (d *DB) evictNameLocked(s *seed.Seed) {
	name := s.LowerName()
	if name == "" {
		return
	}

	cached, err := d.nameCache.Get(name)
	if err != nil || cached.seed.Hash != s.Hash {
		return
	}

	d.nameCache.Delete(name)
}

// Contains reports whether the tier holds a seed with the given hash.
func (d *DB) Contains(tier Tier, hash string) bool {
	return d.fetch(tier, hash).IsSome()
}

// GetFrom returns the seed with the given hash from the tier. The local seed
// is returned for its own hash.
func (d *DB) GetFrom(tier Tier, hash string) fn.Option[*seed.Seed] {
	if hash != "" && d.isSelf(hash) {
		return fn.Some(d.mySeed)
	}

	return d.fetch(tier, hash)
}

// fetch reads the seed from the store of the tier.
func (d *DB) fetch(tier Tier, hash string) fn.Option[*seed.Seed] {
	if hash == "" {
		return fn.None[*seed.Seed]()
	}

	d.mu.RLock()
	h := d.tiers[tier].load()
	attrs, err := h.store.Get(hash)
	d.mu.RUnlock()

	switch classify(err) {
	case outcomeOK:
		return fn.Some(seed.New(hash, attrs))

	case outcomeRecovered:
		d.requestReset(h, "get", err)
	}

	return fn.None[*seed.Seed]()
}

// Get looks the hash up in the connected, disconnected and potential tier, in
// that order.
func (d *DB) Get(hash string) fn.Option[*seed.Seed] {
	for _, tier := range Tiers {
		if s := d.GetFrom(tier, hash); s.IsSome() {
			return s
		}
	}

	return fn.None[*seed.Seed]()
}

// LookupByName finds a seed by its name, ignoring case. The name
// seed.LocalPeerName always resolves to the local seed. Lookups consult the
// name cache first and fall back to scanning the connected tier.
func (d *DB) LookupByName(name string) fn.Option[*seed.Seed] {
	if name == seed.LocalPeerName {
		return fn.Some(d.mySeed)
	}

	name = strings.ToLower(name)
	if name == "" {
		return fn.None[*seed.Seed]()
	}

	names := d.names()
	if cached, err := names.Get(name); err == nil {
		return fn.Some(cached.seed)
	}

	for s := range d.SeedsConnected(true, false, "").All() {
		sname := s.LowerName()
		if sname == "" {
			continue
		}
		if s.IsProper() {
			_, _ = names.Put(sname, &cachedSeed{seed: s})
		}
		if sname == name {
			return fn.Some(s)
		}
	}

	if d.mySeed.LowerName() == name {
		if d.mySeed.IsProper() {
			_, _ = names.Put(name, &cachedSeed{seed: d.mySeed})
		}

		return fn.Some(d.mySeed)
	}

	return fn.None[*seed.Seed]()
}

// names returns the current name cache. A reset of the connected tier
// replaces it.
func (d *DB) names() *lru.Cache[string, *cachedSeed] {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.nameCache
}

// Size returns the number of seeds in the tier.
func (d *DB) Size(tier Tier) int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.tiers[tier].load().store.Size()
}

// Sum returns the sum of a numeric attribute over all seeds of the tier. Only
// the fields in seed.AccFields are accumulated, all others sum to zero.
func (d *DB) Sum(tier Tier, field string) int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.tiers[tier].load().store.Sum(field)
}

// CountURLs returns the number of URLs indexed by the seeds of the tier.
func (d *DB) CountURLs(tier Tier) int64 {
	return d.Sum(tier, seed.KeyLCount)
}

// CountRWIs returns the number of reverse word index entries announced by the
// seeds of the tier.
func (d *DB) CountRWIs(tier Tier) int64 {
	return d.Sum(tier, seed.KeyICount)
}

// CountPPM returns the summed indexing speed, in pages per minute, of the
// seeds of the tier.
func (d *DB) CountPPM(tier Tier) int64 {
	return d.Sum(tier, seed.KeyISpeed)
}

// Resets returns how many times the tier has been reset.
func (d *DB) Resets(tier Tier) uint64 {
	return d.tiers[tier].resets()
}

// ResetTier discards every seed of the tier and starts over with an empty
// store.
func (d *DB) ResetTier(tier Tier) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.resetLocked(tier)
}

// RemoveSelf deletes any copy of the local seed from all tiers.
func (d *DB) RemoveSelf() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, tier := range Tiers {
		h := d.tiers[tier].load()
		d.recoverLocked(h, "delete", h.store.Delete(d.mySeed.Hash))
	}
}

// Close closes the stores of all tiers.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for _, tier := range Tiers {
		err := d.tiers[tier].load().store.Close()
		if err != nil {
			errs = append(errs, fmt.Errorf("%v tier: %w", tier, err))
		}
	}

	return errors.Join(errs...)
}

// requestReset resets the tier of h unless it was already replaced since h was
// obtained. It is used by readers, which can't reset while holding the read
// lock.
func (d *DB) requestReset(h *tierHandle, op string, cause error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.recoverLocked(h, op, cause)
}

// recoverLocked classifies the result of a store call made through h. Faults
// reset the tier if h is still its current handle. The caller must hold the
// write lock.
func (d *DB) recoverLocked(h *tierHandle, op string, err error) storeOutcome {
	outcome := classify(err)
	if outcome != outcomeRecovered {
		return outcome
	}

	log.WarnS(context.Background(), "Tier store fault", err,
		slog.String("tier", h.tier.String()), slog.String("op", op))

	if d.tiers[h.tier].isCurrent(h) {
		d.resetLocked(h.tier)
	}

	return outcome
}

// resetLocked destroys the store of the tier and installs a fresh one under a
// new handle. If the new store can't be opened, the tier is backed by a store
// that fails until the next reset succeeds. The caller must hold the write
// lock.
func (d *DB) resetLocked(tier Tier) {
	slot := &d.tiers[tier]
	old := slot.load()

	if err := old.store.Destroy(); err != nil {
		log.ErrorS(context.Background(), "Unable to destroy tier store",
			err, slog.String("tier", tier.String()))
	}

	store, err := d.cfg.OpenTier(tier)
	if err != nil {
		log.ErrorS(context.Background(), "Unable to reopen tier store",
			err, slog.String("tier", tier.String()))

		store = tierstore.NewUnavailable(err)
	}

	slot.cur.Store(&tierHandle{tier: tier, gen: old.gen + 1, store: store})

	if tier == TierConnected {
		d.candidates = nil
		d.nameCache = lru.NewCache[string, *cachedSeed](
			d.cfg.NameCacheSize,
		)
	}

	log.InfoS(context.Background(), "Tier reset",
		slog.String("tier", tier.String()),
		slog.Uint64("generation", old.gen+1))
}
