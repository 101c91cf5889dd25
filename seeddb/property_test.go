package seeddb

import (
	"os"
	"testing"
	"time"

	"github.com/overlaynet/seeddb/seed"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestTierExclusivity checks for random sequences of inserts and resets that
// no hash is ever stored in more than one tier and that the local seed is
// never stored at all.
func TestTierExclusivity(t *testing.T) {
	t.Parallel()

	base := t.TempDir()

	rapid.Check(t, func(rt *rapid.T) {
		dir, err := os.MkdirTemp(base, "prop")
		require.NoError(rt, err)

		db, err := New(Config{
			LocalSeed: localSeed(),
			OpenTier:  BoltTierOpener(dir, time.Second, true),
		})
		require.NoError(rt, err)
		defer db.Close()

		pool := []*seed.Seed{
			testSeed(1), testSeed(2), testSeed(3), localSeed(),
		}
		improper := testSeed(4)
		improper.Put(seed.KeyIP, "")
		pool = append(pool, improper)

		ops := rapid.IntRange(1, 30).Draw(rt, "ops")
		for range ops {
			s := rapid.SampledFrom(pool).Draw(rt, "seed")

			switch rapid.IntRange(0, 4).Draw(rt, "op") {
			case 0:
				db.InsertConnected(s)
			case 1:
				db.InsertDisconnected(s)
			case 2:
				db.InsertPotential(s)
			case 3:
				db.AnySeed()
			case 4:
				tier := rapid.SampledFrom(Tiers[:]).Draw(rt, "tier")
				db.ResetTier(tier)
			}

			for _, p := range pool {
				var count int
				for _, tier := range Tiers {
					if db.Contains(tier, p.Hash) {
						count++
					}
				}

				if p.Hash == localHash {
					require.Zero(rt, count)
				} else {
					require.LessOrEqual(rt, count, 1)
				}
			}
		}
	})
}

// TestCandidateCycleCoverage checks for random tier contents that draining
// the candidate pool yields every connected seed exactly once.
func TestCandidateCycleCoverage(t *testing.T) {
	t.Parallel()

	base := t.TempDir()

	rapid.Check(t, func(rt *rapid.T) {
		dir, err := os.MkdirTemp(base, "prop")
		require.NoError(rt, err)

		db, err := New(Config{
			LocalSeed: localSeed(),
			OpenTier:  BoltTierOpener(dir, time.Second, true),
		})
		require.NoError(rt, err)
		defer db.Close()

		ids := rapid.SliceOfDistinct(
			rapid.IntRange(0, 500), rapid.ID[int],
		).Draw(rt, "ids")

		want := make([]string, 0, len(ids))
		for _, id := range ids {
			s := testSeed(id)
			db.InsertConnected(s)
			want = append(want, s.Hash)
		}

		size := db.Size(TierConnected)
		require.Equal(rt, len(want), size)

		got := make([]string, 0, size)
		for range size {
			next := db.AnySeed()
			require.True(rt, next.IsSome())
			got = append(got, next.UnsafeFromSome().Hash)
		}

		require.ElementsMatch(rt, want, got)
	})
}
