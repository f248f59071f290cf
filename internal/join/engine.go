// Package join implements the re-identification engine: for every
// surrogate identifier in the schema store it finds the most probable
// identity in the network audit set via plate/timestamp correlation,
// with confidence scoring and explicit ambiguity handling.
package join

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openplates/audit-cli/internal/model"
)

// Options configure the join. Tolerance and MinEvidence bound the
// false-positive risk of re-identification and are always supplied from
// configuration, never hard-coded.
type Options struct {
	// Tolerance is the maximum distance between a portal timestamp and
	// a network timestamp for the two rows to count as the same search.
	Tolerance time.Duration
	// MinEvidence is the minimum score required to emit a mapping.
	MinEvidence int
	// MinorityThreshold is the fraction of the best score at which a
	// runner-up starts penalizing confidence.
	MinorityThreshold float64
	// Workers bounds per-surrogate parallelism. <=1 means serial.
	Workers int
}

// Engine computes surrogate-to-identity mappings. It reads both input
// sets and mutates neither.
type Engine struct {
	opts Options
}

// New creates a join engine.
func New(opts Options) *Engine {
	return &Engine{opts: opts}
}

// surrogate identifies one (agency, surrogate_id) resolution unit.
// Surrogate tokens are scoped to an agency's logs; two agencies may
// reuse the same literal token for different people.
type surrogate struct {
	AgencyID    string
	SurrogateID string
}

// Result is the outcome of one join run.
type Result struct {
	Mappings []model.MappingRecord
	Summary  model.JoinSummary
	// AmbiguousSurrogates lists the surrogates excluded by score ties,
	// sorted, for the run report.
	AmbiguousSurrogates []string
}

// outcome is one surrogate's resolution, assembled before any output
// is exposed.
type outcome struct {
	mapping   *model.MappingRecord
	ambiguous bool
	// insufficient covers both zero-candidate and below-threshold
	// resolutions; noCandidates distinguishes them for the summary.
	insufficient bool
	noCandidates bool
}

// Run resolves every surrogate present in entries against the network
// set. agencies supplies share-group scoping; entries flagged partial
// are ignored. Given identical inputs the result is identical: all
// iteration is over sorted keys and candidate ordering is total.
func (e *Engine) Run(ctx context.Context, entries []model.SearchAuditEntry, network []model.NetworkAuditEntry, agencies []model.AgencyPortal) (*Result, error) {
	groups := groupBySurrogate(entries)
	keys := sortedKeys(groups)

	shareGroups := make(map[string]string, len(agencies))
	for _, a := range agencies {
		shareGroups[a.AgencyID] = a.ShareGroup
	}

	index := indexByPlate(network)

	log := zap.L().With(zap.String("component", "join"))
	log.Info("join run starting",
		zap.Int("surrogates", len(keys)),
		zap.Int("network_entries", len(network)),
		zap.Duration("tolerance", e.opts.Tolerance),
	)

	// Each surrogate's resolution is independent; outcomes land in a
	// preallocated slot so no ordering is lost to goroutine scheduling.
	outcomes := make([]outcome, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	workers := e.opts.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)
	for i, key := range keys {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = e.resolve(groups[key], shareGroups[key.AgencyID], index)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// The mapping set is assembled only after every resolution has
	// completed; no partial mapping is ever exposed.
	res := &Result{Summary: model.JoinSummary{
		RunID:           uuid.New().String(),
		SurrogatesTotal: len(keys),
	}}
	for i, o := range outcomes {
		switch {
		case o.mapping != nil:
			res.Mappings = append(res.Mappings, *o.mapping)
			res.Summary.Resolved++
		case o.ambiguous:
			res.AmbiguousSurrogates = append(res.AmbiguousSurrogates, keys[i].AgencyID+"/"+keys[i].SurrogateID)
			res.Summary.Ambiguous++
		case o.noCandidates:
			res.Summary.NoCandidates++
		case o.insufficient:
			res.Summary.InsufficientEvidence++
		}
	}

	log.Info("join run complete",
		zap.String("run_id", res.Summary.RunID),
		zap.Int("resolved", res.Summary.Resolved),
		zap.Int("ambiguous", res.Summary.Ambiguous),
		zap.Int("insufficient_evidence", res.Summary.InsufficientEvidence),
		zap.Int("no_candidates", res.Summary.NoCandidates),
	)
	return res, nil
}

// resolve scores the candidate pool for one surrogate and classifies
// the result.
func (e *Engine) resolve(entries []model.SearchAuditEntry, agencyShareGroup string, index plateIndex) outcome {
	candidates := e.score(entries, agencyShareGroup, index)
	if len(candidates) == 0 {
		return outcome{insufficient: true, noCandidates: true}
	}

	best := candidates[0]
	if len(candidates) > 1 && candidates[1].Score == best.Score {
		// Never guess between tied candidates.
		return outcome{ambiguous: true}
	}
	if best.Score < e.opts.MinEvidence {
		return outcome{insufficient: true}
	}

	runnerUp := 0
	if len(candidates) > 1 {
		runnerUp = candidates[1].Score
	}

	return outcome{mapping: &model.MappingRecord{
		AgencyID:             entries[0].AgencyID,
		SurrogateID:          entries[0].SurrogateID,
		OfficerName:          best.Identity.Officer,
		OrganizationName:     best.Identity.Organization,
		Confidence:           e.confidence(best.Score, runnerUp, len(entries)),
		SupportingMatchCount: best.Score,
	}}
}

func groupBySurrogate(entries []model.SearchAuditEntry) map[surrogate][]model.SearchAuditEntry {
	groups := make(map[surrogate][]model.SearchAuditEntry)
	for _, e := range entries {
		if e.Partial {
			continue
		}
		key := surrogate{AgencyID: e.AgencyID, SurrogateID: e.SurrogateID}
		groups[key] = append(groups[key], e)
	}
	return groups
}

func sortedKeys(groups map[surrogate][]model.SearchAuditEntry) []surrogate {
	keys := make([]surrogate, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].AgencyID != keys[j].AgencyID {
			return keys[i].AgencyID < keys[j].AgencyID
		}
		return keys[i].SurrogateID < keys[j].SurrogateID
	})
	return keys
}
