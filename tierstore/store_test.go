package tierstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	testSortFields = []string{"LCount", "LastSeen"}
	testAccFields  = []string{"LCount", "ICount"}
)

func testConfig(t *testing.T) Config {
	return Config{
		Path:           filepath.Join(t.TempDir(), "seed.active.db"),
		DBTimeout:      time.Second,
		NoFreelistSync: true,
		SortFields:     testSortFields,
		AccFields:      testAccFields,
	}
}

func openTestStore(t *testing.T, cfg Config) *BoltStore {
	s, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}

// TestPutGetDelete exercises the point operations of the store.
func TestPutGetDelete(t *testing.T) {
	t.Parallel()

	s := openTestStore(t, testConfig(t))

	_, err := s.Get("aaaaaaaaaaaa")
	require.ErrorIs(t, err, ErrRecordNotFound)
	require.False(t, IsFault(err))

	attrs := map[string]string{"Name": "alpha", "IP": "", "LCount": "3"}
	require.NoError(t, s.Put("aaaaaaaaaaaa", attrs))

	got, err := s.Get("aaaaaaaaaaaa")
	require.NoError(t, err)
	require.Equal(t, attrs, got)
	require.Equal(t, 1, s.Size())

	// Replacing a record drops attributes that are no longer present.
	require.NoError(t, s.Put("aaaaaaaaaaaa", map[string]string{
		"Name": "alpha2",
	}))
	got, err = s.Get("aaaaaaaaaaaa")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"Name": "alpha2"}, got)
	require.Equal(t, 1, s.Size())

	require.NoError(t, s.Delete("aaaaaaaaaaaa"))
	require.NoError(t, s.Delete("aaaaaaaaaaaa"))
	require.Zero(t, s.Size())
}

// TestRunningSums asserts that sums follow inserts, replacements, deletes and
// survive a reopen of the store.
func TestRunningSums(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	s, err := Open(cfg)
	require.NoError(t, err)

	require.NoError(t, s.Put("a", map[string]string{
		"LCount": "10", "ICount": "1",
	}))
	require.NoError(t, s.Put("b", map[string]string{
		"LCount": "5", "ICount": "junk",
	}))
	require.EqualValues(t, 15, s.Sum("LCount"))
	require.EqualValues(t, 1, s.Sum("ICount"))

	require.NoError(t, s.Put("a", map[string]string{"LCount": "2"}))
	require.EqualValues(t, 7, s.Sum("LCount"))
	require.EqualValues(t, 0, s.Sum("ICount"))

	require.NoError(t, s.Delete("b"))
	require.EqualValues(t, 2, s.Sum("LCount"))

	// Fields that aren't accumulated are always zero.
	require.Zero(t, s.Sum("Uptime"))

	require.NoError(t, s.Close())

	s = openTestStore(t, cfg)
	require.Equal(t, 1, s.Size())
	require.EqualValues(t, 2, s.Sum("LCount"))
}

// TestNextKey walks the store with the cursor step in both directions.
func TestNextKey(t *testing.T) {
	t.Parallel()

	s := openTestStore(t, testConfig(t))

	_, err := s.NextKey("", true)
	require.ErrorIs(t, err, ErrEndOfTier)

	for _, k := range []string{"b", "d", "a", "c"} {
		require.NoError(t, s.Put(k, map[string]string{"x": k}))
	}

	walk := func(after string, ascending bool) []string {
		var keys []string
		for {
			k, err := s.NextKey(after, ascending)
			if err != nil {
				require.ErrorIs(t, err, ErrEndOfTier)
				return keys
			}
			keys = append(keys, k)
			after = k
		}
	}

	require.Equal(t, []string{"a", "b", "c", "d"}, walk("", true))
	require.Equal(t, []string{"d", "c", "b", "a"}, walk("", false))
	require.Equal(t, []string{"c", "d"}, walk("b", true))
	require.Equal(t, []string{"a"}, walk("b", false))

	// Resume keys that aren't stored still position the cursor.
	require.Equal(t, []string{"c", "d"}, walk("bb", true))
	require.Equal(t, []string{"b", "a"}, walk("bb", false))
	require.Equal(t, []string{"d", "c", "b", "a"}, walk("zz", false))

	keys, err := s.Keys()
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c", "d"}, keys)
}

// TestSortedKeys checks numeric, lexical and missing-value ordering.
func TestSortedKeys(t *testing.T) {
	t.Parallel()

	s := openTestStore(t, testConfig(t))

	require.NoError(t, s.Put("a", map[string]string{"LCount": "100"}))
	require.NoError(t, s.Put("b", map[string]string{"LCount": "9"}))
	require.NoError(t, s.Put("c", map[string]string{}))
	require.NoError(t, s.Put("d", map[string]string{"LCount": "9"}))

	keys, err := s.SortedKeys("LCount", true)
	require.NoError(t, err)
	require.Equal(t, []string{"c", "b", "d", "a"}, keys)

	keys, err = s.SortedKeys("LCount", false)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "d", "b", "c"}, keys)

	_, err = s.SortedKeys("Name", true)
	require.ErrorIs(t, err, ErrUnknownField)
	require.False(t, IsFault(err))
}

// TestOpenRecoversBrokenFile makes sure an unreadable tier file is replaced
// by an empty store.
func TestOpenRecoversBrokenFile(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	garbage := make([]byte, 8192)
	for i := range garbage {
		garbage[i] = 0xa5
	}
	require.NoError(t, os.WriteFile(cfg.Path, garbage, 0600))

	s := openTestStore(t, cfg)
	require.Zero(t, s.Size())
	require.NoError(t, s.Put("a", map[string]string{"x": "y"}))
}

// TestClosedStoreIsFault checks that operations on a closed store are
// reported as storage faults.
func TestClosedStoreIsFault(t *testing.T) {
	t.Parallel()

	s, err := Open(testConfig(t))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Get("a")
	require.True(t, IsFault(err))
	require.ErrorIs(t, err, ErrCorrupt)

	err = s.Put("a", map[string]string{"x": "y"})
	require.True(t, IsFault(err))

	_, err = s.Keys()
	require.True(t, IsFault(err))
}

// TestDestroy ensures the backing file is removed.
func TestDestroy(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	s, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Put("a", map[string]string{"x": "y"}))

	require.NoError(t, s.Destroy())
	_, err = os.Stat(cfg.Path)
	require.ErrorIs(t, err, os.ErrNotExist)
}
