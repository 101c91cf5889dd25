package seeddb

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/overlaynet/seeddb/seed"
	"github.com/overlaynet/seeddb/tierstore"
)

// Tier classifies the liveness of the seeds it holds. A seed is a member of
// at most one tier at a time.
type Tier uint8

const (
	// TierConnected holds seeds believed to be reachable.
	TierConnected Tier = iota

	// TierDisconnected holds seeds that are known but currently can't be
	// reached.
	TierDisconnected

	// TierPotential holds seeds only known by reference that were never
	// contacted successfully.
	TierPotential

	numTiers
)

// Tiers lists every tier in lookup order.
var Tiers = [...]Tier{TierConnected, TierDisconnected, TierPotential}

// String returns the name of the tier.
func (t Tier) String() string {
	switch t {
	case TierConnected:
		return "connected"
	case TierDisconnected:
		return "disconnected"
	case TierPotential:
		return "potential"
	default:
		return fmt.Sprintf("tier(%d)", uint8(t))
	}
}

// FileName returns the name of the file the tier is persisted in.
func (t Tier) FileName() string {
	switch t {
	case TierConnected:
		return "seed.active.db"
	case TierDisconnected:
		return "seed.passive.db"
	case TierPotential:
		return "seed.potential.db"
	default:
		return fmt.Sprintf("seed.%d.db", uint8(t))
	}
}

// ParseTier maps a tier name back to the tier.
func ParseTier(name string) (Tier, error) {
	for _, t := range Tiers {
		if t.String() == name {
			return t, nil
		}
	}

	return 0, fmt.Errorf("unknown tier %q", name)
}

// TierOpener opens the store backing a tier. It is called once per tier when
// the registry is created and again every time a tier is reset, after the old
// store was destroyed.
type TierOpener func(tier Tier) (tierstore.Store, error)

// BoltTierOpener returns a TierOpener that keeps every tier in its own bolt
// file inside dir.
func BoltTierOpener(dir string, timeout time.Duration,
	noFreelistSync bool) TierOpener {

	return func(tier Tier) (tierstore.Store, error) {
		return tierstore.Open(tierstore.Config{
			Path:           filepath.Join(dir, tier.FileName()),
			DBTimeout:      timeout,
			NoFreelistSync: noFreelistSync,
			SortFields:     seed.SortFields,
			AccFields:      seed.AccFields,
		})
	}
}

// tierHandle is one incarnation of a tier store. A reset replaces the handle
// of a tier, holders of the old handle detect this by comparing it to the
// current handle of the slot.
type tierHandle struct {
	tier  Tier
	gen   uint64
	store tierstore.Store
}

// tierSlot holds the current handle of a tier.
type tierSlot struct {
	cur atomic.Pointer[tierHandle]
}

// load returns the current handle.
func (s *tierSlot) load() *tierHandle {
	return s.cur.Load()
}

// isCurrent reports whether h is still the handle of the slot.
func (s *tierSlot) isCurrent(h *tierHandle) bool {
	return s.cur.Load() == h
}

// resets returns the number of times the slot was reset.
func (s *tierSlot) resets() uint64 {
	return s.cur.Load().gen
}
