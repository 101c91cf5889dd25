package seeddb

import (
	"cmp"
	"slices"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/overlaynet/seeddb/seed"
)

const (
	// maxAgeScan is the number of connected seeds SeedsByAge looks at. On
	// larger tiers the result is only an approximation.
	maxAgeScan = 1000
)

// ageScore is the distance, in milliseconds, between the last sighting of a
// seed and now.
type ageScore struct {
	hash  string
	score int64
}

// SeedsByAge returns up to n connected seeds ordered by how long ago they
// were last seen, most recently seen first if up is set. Only the first
// seeds of the tier in key order are considered. None is returned if the
// scan hit a storage fault.
func (d *DB) SeedsByAge(up bool, n int) fn.Option[[]*seed.Seed] {
	size := d.Size(TierConnected)
	n = min(n, size)
	if n <= 0 {
		return fn.Some([]*seed.Seed{})
	}

	now := d.cfg.Clock.Now()

	scores := make([]ageScore, 0, min(size, maxAgeScan))
	e := d.SeedsConnected(true, false, "")
	for range min(size, maxAgeScan) {
		s, ok := e.Next()
		if !ok {
			break
		}

		seen, ok := s.LastSeen()
		if !ok {
			continue
		}

		age := now.Sub(seen)
		if age < 0 {
			age = -age
		}

		scores = append(scores, ageScore{
			hash:  s.Hash,
			score: age.Milliseconds(),
		})
	}

	if err := e.Err(); err != nil {
		log.Warnf("Age ranking aborted: %v", err)
		return fn.None[[]*seed.Seed]()
	}

	slices.SortFunc(scores, func(a, b ageScore) int {
		return cmp.Or(
			cmp.Compare(a.score, b.score),
			cmp.Compare(a.hash, b.hash),
		)
	})
	if !up {
		slices.Reverse(scores)
	}

	result := make([]*seed.Seed, 0, n)
	for _, sc := range scores[:min(n, len(scores))] {
		d.GetFrom(TierConnected, sc.hash).WhenSome(func(s *seed.Seed) {
			result = append(result, s)
		})
	}

	return fn.Some(result)
}
