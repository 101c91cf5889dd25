package seeddb

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/overlaynet/seeddb/seed"
	"github.com/overlaynet/seeddb/tierstore"
	"github.com/stretchr/testify/require"
)

const localHash = "localSeed000"

var testTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// faultyStore wraps a store and fails every call that can report an error
// once fail is set.
type faultyStore struct {
	tierstore.Store

	fail atomic.Bool
}

func (f *faultyStore) fault(op string) error {
	return fmt.Errorf("%w: injected %s failure", tierstore.ErrCorrupt, op)
}

func (f *faultyStore) Get(id string) (map[string]string, error) {
	if f.fail.Load() {
		return nil, f.fault("get")
	}

	return f.Store.Get(id)
}

func (f *faultyStore) Put(id string, attrs map[string]string) error {
	if f.fail.Load() {
		return f.fault("put")
	}

	return f.Store.Put(id, attrs)
}

func (f *faultyStore) Delete(id string) error {
	if f.fail.Load() {
		return f.fault("delete")
	}

	return f.Store.Delete(id)
}

func (f *faultyStore) NextKey(after string, ascending bool) (string, error) {
	if f.fail.Load() {
		return "", f.fault("next key")
	}

	return f.Store.NextKey(after, ascending)
}

func (f *faultyStore) Keys() ([]string, error) {
	if f.fail.Load() {
		return nil, f.fault("keys")
	}

	return f.Store.Keys()
}

func (f *faultyStore) SortedKeys(field string, up bool) ([]string, error) {
	if f.fail.Load() {
		return nil, f.fault("sorted keys")
	}

	return f.Store.SortedKeys(field, up)
}

// faultyOpener opens bolt backed tiers in dir wrapped in a faultyStore.
func faultyOpener(dir string) TierOpener {
	open := BoltTierOpener(dir, time.Second, true)

	return func(tier Tier) (tierstore.Store, error) {
		store, err := open(tier)
		if err != nil {
			return nil, err
		}

		return &faultyStore{Store: store}, nil
	}
}

// localSeed returns a proper local identity.
func localSeed() *seed.Seed {
	return seed.New(localHash, map[string]string{
		seed.KeyName:     "Self",
		seed.KeyIP:       "192.168.1.1",
		seed.KeyPort:     "8090",
		seed.KeyPeerType: string(seed.PeerTypeSenior),
	})
}

// testSeed returns a proper senior seed with a hash derived from i.
func testSeed(i int) *seed.Seed {
	return seed.New(fmt.Sprintf("peer%08d", i), map[string]string{
		seed.KeyName:     fmt.Sprintf("Peer%d", i),
		seed.KeyIP:       fmt.Sprintf("10.0.0.%d", i%250+1),
		seed.KeyPort:     "8080",
		seed.KeyPeerType: string(seed.PeerTypeSenior),
		seed.KeyLCount:   fmt.Sprintf("%d", i*10),
	})
}

type testDB struct {
	*DB

	dir   string
	clock *clock.TestClock
}

// newTestDB opens a registry in a temporary directory.
func newTestDB(t *testing.T) *testDB {
	t.Helper()

	dir := t.TempDir()
	return openTestDB(t, dir)
}

// openTestDB opens a registry on the tier files in dir.
func openTestDB(t *testing.T, dir string) *testDB {
	t.Helper()

	testClock := clock.NewTestClock(testTime)
	db, err := New(Config{
		LocalSeed: localSeed(),
		OpenTier:  faultyOpener(dir),
		Clock:     testClock,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	return &testDB{DB: db, dir: dir, clock: testClock}
}

// faulty returns the store currently backing the tier.
func (d *testDB) faulty(tier Tier) *faultyStore {
	return d.tiers[tier].load().store.(*faultyStore)
}

// tierOf returns every tier that holds hash.
func (d *testDB) tierOf(hash string) []Tier {
	var tiers []Tier
	for _, tier := range Tiers {
		if d.Contains(tier, hash) {
			tiers = append(tiers, tier)
		}
	}

	return tiers
}
