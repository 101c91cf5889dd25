package seeddb

import (
	"testing"

	"github.com/overlaynet/seeddb/seed"
	"github.com/stretchr/testify/require"
)

// drain draws n seeds and returns the hashes in draw order.
func drain(t *testing.T, db *testDB, n int) []string {
	t.Helper()

	out := make([]string, 0, n)
	for range n {
		next := db.AnySeed()
		require.True(t, next.IsSome())
		out = append(out, next.UnsafeFromSome().Hash)
	}

	return out
}

// TestAnySeedEmpty expects no candidate from an empty connected tier.
func TestAnySeedEmpty(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	db.InsertDisconnected(testSeed(1))

	require.True(t, db.AnySeed().IsNone())
	require.True(t, db.AnySeedType(seed.PeerTypeSenior).IsNone())
}

// TestAnySeedCycle checks that every refill of the pool hands out each
// connected seed once.
func TestAnySeedCycle(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	keys := populate(db, 20)

	first := drain(t, db, len(keys))
	require.ElementsMatch(t, keys, first)

	second := drain(t, db, len(keys))
	require.ElementsMatch(t, keys, second)
}

// TestAnySeedSkipsSelf plants the local seed in the connected tier. The refill
// deletes it instead of handing it out.
func TestAnySeedSkipsSelf(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	keys := populate(db, 3)

	h := db.tiers[TierConnected].load()
	require.NoError(t, h.store.Put(localHash, localSeed().Attrs))
	require.True(t, db.Contains(TierConnected, localHash))

	require.ElementsMatch(t, keys, drain(t, db, 3))
	require.False(t, db.Contains(TierConnected, localHash))
}

// TestAnySeedResetClearsPool makes sure a reset of the connected tier drops
// candidates drawn from the old store.
func TestAnySeedResetClearsPool(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	populate(db, 5)

	drain(t, db, 1)
	db.ResetTier(TierConnected)
	require.True(t, db.AnySeed().IsNone())

	db.InsertConnected(testSeed(9))
	require.Equal(t, []string{testSeed(9).Hash}, drain(t, db, 1))
}

// TestAnySeedType draws until a seed of the wanted type turns up.
func TestAnySeedType(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	populate(db, 5)

	principal := testSeed(6)
	principal.Put(seed.KeyPeerType, string(seed.PeerTypePrincipal))
	db.InsertConnected(principal)

	got := db.AnySeedType(seed.PeerTypePrincipal)
	require.True(t, got.IsSome())
	require.Equal(t, principal.Hash, got.UnsafeFromSome().Hash)

	require.True(t, db.AnySeedType(seed.PeerTypeJunior).IsNone())
}

// TestDrainCycle checks that a partially drawn pool is replaced by a complete
// cycle and that the pool starts over afterwards.
func TestDrainCycle(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	keys := populate(db, 6)

	drain(t, db, 2)

	var cycle []string
	for _, s := range db.DrainCycle() {
		cycle = append(cycle, s.Hash)
	}
	require.ElementsMatch(t, keys, cycle)
	require.Empty(t, db.candidates)

	// The next draws start a fresh cycle rather than finishing the old
	// one.
	next := drain(t, db, len(keys))
	require.ElementsMatch(t, keys, next)

	require.Empty(t, newTestDB(t).DrainCycle())
}
