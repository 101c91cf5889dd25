package seeddb

import (
	"testing"

	"github.com/overlaynet/seeddb/seed"
	"github.com/stretchr/testify/require"
)

// hashes collects the hashes the enumerator yields.
func hashes(e *Enumerator) []string {
	var out []string
	for s := range e.All() {
		out = append(out, s.Hash)
	}

	return out
}

// populate stores testSeed(1..n) in the connected tier and returns their
// hashes in key order.
func populate(db *testDB, n int) []string {
	keys := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		s := testSeed(i)
		db.InsertConnected(s)
		keys = append(keys, s.Hash)
	}

	return keys
}

// TestEnumeratorKeyOrder walks the tier in both directions, with and without a
// resume key.
func TestEnumeratorKeyOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	k := populate(db, 4)

	require.Equal(t, k, hashes(db.SeedsConnected(true, false, "")))
	require.Equal(t, []string{k[3], k[2], k[1], k[0]},
		hashes(db.SeedsConnected(false, false, "")))

	require.Equal(t, []string{k[2], k[3]},
		hashes(db.SeedsConnected(true, false, k[1])))
	require.Equal(t, []string{k[0]},
		hashes(db.SeedsConnected(false, false, k[1])))

	require.Empty(t, hashes(db.SeedsDisconnected(true, false, "")))
	require.Empty(t, hashes(db.SeedsPotential(true, true, k[1])))
}

// TestEnumeratorRotate checks that a rotating enumerator visits every seed
// exactly once, ending with the resume key.
func TestEnumeratorRotate(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	k := populate(db, 4)

	require.Equal(t, []string{k[2], k[3], k[0], k[1]},
		hashes(db.SeedsConnected(true, true, k[1])))
	require.Equal(t, []string{k[1], k[0], k[3], k[2]},
		hashes(db.SeedsConnected(false, true, k[2])))

	// Resume keys that aren't stored are just positions.
	between := k[1] + "x"
	require.Equal(t, []string{k[2], k[3], k[0], k[1]},
		hashes(db.SeedsConnected(true, true, between)))

	// Rotation without a resume key is a single pass.
	require.Equal(t, k, hashes(db.SeedsConnected(true, true, "")))
}

// TestEnumeratorSorted walks the tier ordered by an attribute.
func TestEnumeratorSorted(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)

	counts := []string{"300", "20", "1000", "20"}
	for i, count := range counts {
		s := testSeed(i + 1)
		s.Put(seed.KeyLCount, count)
		db.InsertConnected(s)
	}

	h := func(i int) string {
		return testSeed(i).Hash
	}

	require.Equal(t, []string{h(2), h(4), h(1), h(3)},
		hashes(db.SeedsSortedConnected(true, seed.KeyLCount)))
	require.Equal(t, []string{h(3), h(1), h(4), h(2)},
		hashes(db.SeedsSortedConnected(false, seed.KeyLCount)))

	// Seeds leaving the tier after the snapshot are skipped.
	e := db.SeedsSortedConnected(true, seed.KeyLCount)
	db.InsertDisconnected(testSeed(4))
	require.Equal(t, []string{h(2), h(1), h(3)}, hashes(e))
	require.NoError(t, e.Err())

	// Unsupported fields yield nothing.
	e = db.SeedsSortedConnected(true, seed.KeyName)
	require.Empty(t, hashes(e))
	require.Error(t, e.Err())

	require.Equal(t, []string{h(4)},
		hashes(db.SeedsSortedDisconnected(true, seed.KeyLCount)))
	require.Empty(t, hashes(db.SeedsSortedPotential(true, seed.KeyLCount)))
}

// TestEnumeratorStaleHandle resets the tier during an iteration.
func TestEnumeratorStaleHandle(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	populate(db, 3)

	e := db.SeedsConnected(true, false, "")
	_, ok := e.Next()
	require.True(t, ok)

	db.ResetTier(TierConnected)
	db.InsertConnected(testSeed(1))

	_, ok = e.Next()
	require.False(t, ok)
	require.ErrorIs(t, e.Err(), ErrStaleHandle)

	// The same applies to sorted enumerators.
	e = db.SeedsSortedConnected(true, seed.KeyLCount)
	db.ResetTier(TierConnected)
	_, ok = e.Next()
	require.False(t, ok)
	require.ErrorIs(t, e.Err(), ErrStaleHandle)

	// Only the resets requested explicitly happened.
	require.EqualValues(t, 2, db.Resets(TierConnected))
}

// TestEnumeratorStopsEarly breaks out of a range loop.
func TestEnumeratorStopsEarly(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	k := populate(db, 3)

	e := db.SeedsConnected(true, false, "")
	for s := range e.All() {
		require.Equal(t, k[0], s.Hash)
		break
	}

	// The enumerator continues where the loop left off.
	require.Equal(t, k[1:], hashes(e))
}
