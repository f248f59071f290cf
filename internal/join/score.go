package join

import (
	"sort"
	"time"

	"github.com/openplates/audit-cli/internal/model"
)

// plateIndex buckets network entries by normalized plate query so each
// surrogate entry only scans rows that could possibly match it.
type plateIndex map[string][]model.NetworkAuditEntry

func indexByPlate(network []model.NetworkAuditEntry) plateIndex {
	idx := make(plateIndex, len(network))
	for _, n := range network {
		idx[n.PlateQuery] = append(idx[n.PlateQuery], n)
	}
	return idx
}

// candidate is one identity with its evidence score for a surrogate.
type candidate struct {
	Identity model.Identity
	Score    int
}

// score counts, per identity, how many of the surrogate's entries that
// identity corroborates: an entry is corroborated when the identity has
// at least one network row with the identical plate inside the
// tolerance window. Each entry contributes at most one point per
// identity regardless of how many rows match, which keeps scores
// monotonic under added evidence and bounded by the entry count.
//
// Candidates are returned in total order: score descending, then
// organization, then officer.
func (e *Engine) score(entries []model.SearchAuditEntry, agencyShareGroup string, index plateIndex) []candidate {
	scores := make(map[model.Identity]int)

	for _, entry := range entries {
		matched := make(map[model.Identity]bool)
		for _, n := range index[entry.PlateQuery] {
			if !shareGroupCompatible(agencyShareGroup, n.ShareGroup) {
				continue
			}
			if !withinTolerance(entry, n, e.opts.Tolerance) {
				continue
			}
			matched[n.Identity()] = true
		}
		for id := range matched {
			scores[id]++
		}
	}

	candidates := make([]candidate, 0, len(scores))
	for id, score := range scores {
		candidates = append(candidates, candidate{Identity: id, Score: score})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].Identity.Organization != candidates[j].Identity.Organization {
			return candidates[i].Identity.Organization < candidates[j].Identity.Organization
		}
		return candidates[i].Identity.Officer < candidates[j].Identity.Officer
	})
	return candidates
}

// shareGroupCompatible restricts the candidate pool to the agency's
// share group. The restriction only binds when both sides are known;
// portal exports never carry the group and network exports sometimes
// omit it.
func shareGroupCompatible(agencyGroup, networkGroup string) bool {
	if agencyGroup == "" || networkGroup == "" {
		return true
	}
	return agencyGroup == networkGroup
}

func withinTolerance(entry model.SearchAuditEntry, n model.NetworkAuditEntry, tolerance time.Duration) bool {
	d := entry.SearchTime.Sub(n.SearchTime)
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}

// confidence normalizes the winning score by the surrogate's entry
// count and penalizes near-ties: a runner-up at or above the minority
// threshold scales confidence down by the runner-up's share of the
// winning score.
func (e *Engine) confidence(best, runnerUp, entryCount int) float64 {
	if entryCount == 0 {
		return 0
	}
	conf := float64(best) / float64(entryCount)
	if runnerUp > 0 && float64(runnerUp) >= e.opts.MinorityThreshold*float64(best) {
		conf *= 1 - float64(runnerUp)/float64(best)
	}
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return conf
}
