// Package wave turns wave compositions into spawn sequences and tracks their
// dispatch.
package wave

import "github.com/signalsfoundry/td-engine/catalog"

// BuildSpawnQueue interleaves the groups of one wave into a single spawn
// sequence. At every position the group with the largest fraction of its
// count still remaining is chosen; ties go to the group declared first.
// Groups with a non-positive count contribute nothing.
func BuildSpawnQueue(groups []catalog.Group) []catalog.EnemyKind {
	type pending struct {
		kind      catalog.EnemyKind
		count     int
		remaining int
	}

	total := 0
	state := make([]pending, 0, len(groups))
	for _, g := range groups {
		if g.Count <= 0 {
			continue
		}
		state = append(state, pending{kind: g.Kind, count: g.Count, remaining: g.Count})
		total += g.Count
	}

	queue := make([]catalog.EnemyKind, 0, total)
	for range total {
		best := -1
		bestRatio := -1.0
		for i := range state {
			if state[i].remaining == 0 {
				continue
			}
			ratio := float64(state[i].remaining) / float64(state[i].count)
			if ratio > bestRatio {
				best, bestRatio = i, ratio
			}
		}
		queue = append(queue, state[best].kind)
		state[best].remaining--
	}
	return queue
}

// SpawnQueue builds the sequence for a 1-based wave number of cat. Unknown
// wave numbers yield an empty queue.
func SpawnQueue(cat *catalog.Catalog, waveNumber int) []catalog.EnemyKind {
	groups, err := cat.Wave(waveNumber)
	if err != nil {
		return nil
	}
	return BuildSpawnQueue(groups)
}
