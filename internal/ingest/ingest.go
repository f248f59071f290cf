// Package ingest orchestrates one ingestion pass: raw store artifacts
// are normalized in parallel and merged into the schema store through
// its idempotent upsert, so re-running over the same scrape is a no-op.
package ingest

import (
	"context"
	"os"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openplates/audit-cli/internal/model"
	"github.com/openplates/audit-cli/internal/normalizer"
	"github.com/openplates/audit-cli/internal/rawstore"
	"github.com/openplates/audit-cli/internal/store"
)

// Runner executes ingestion passes against a store.
type Runner struct {
	Store   store.Store
	Workers int
}

// Run ingests every artifact under root. File parses run in parallel;
// the store serializes writes, and the upsert discipline makes ordering
// between parallel ingesters immaterial. Skip decisions are counted in
// the summary, never silent.
func (r *Runner) Run(ctx context.Context, root string) (*model.IngestSummary, error) {
	artifacts, err := rawstore.Walk(root)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("component", "ingest"))

	// Agencies are established up front, with display names from the
	// directory layout, so the per-entry referential-gap path only
	// fires for agencies that never appeared in the walk.
	var summary model.IngestSummary
	seen := make(map[string]bool)
	for _, a := range artifacts {
		if seen[a.Context.AgencyID] {
			continue
		}
		seen[a.Context.AgencyID] = true
		created, err := r.Store.EnsureAgency(ctx, model.AgencyPortal{
			AgencyID:     a.Context.AgencyID,
			Jurisdiction: a.Context.Jurisdiction,
			DisplayName:  a.Context.DisplayName,
		})
		if err != nil {
			return nil, err
		}
		if created {
			summary.AgenciesCreated++
		}
	}

	var mu sync.Mutex
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, artifact := range artifacts {
		if artifact.Kind == rawstore.ArtifactOther {
			continue
		}
		g.Go(func() error {
			fileSummary, err := r.ingestArtifact(gctx, artifact)
			if err != nil {
				return err
			}
			mu.Lock()
			summary.Add(*fileSummary)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info("ingest complete",
		zap.Int("files_seen", summary.FilesSeen),
		zap.Int("files_unrecognized", summary.FilesUnrecognized),
		zap.Int("entries_inserted", summary.EntriesInserted),
		zap.Int("entries_duplicate", summary.EntriesDuplicate),
		zap.Int("rows_failed", summary.RowsFailed),
		zap.Int("rows_partial", summary.RowsPartial),
	)
	return &summary, nil
}

func (r *Runner) ingestArtifact(ctx context.Context, a rawstore.Artifact) (*model.IngestSummary, error) {
	log := zap.L().With(
		zap.String("component", "ingest"),
		zap.String("path", a.Path),
		zap.String("agency_id", a.Context.AgencyID),
	)

	summary := &model.IngestSummary{}
	switch a.Kind {
	case rawstore.ArtifactPageCapture:
		f, err := os.Open(a.Path)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: open page capture %s", a.Path)
		}
		defer f.Close()

		stats, err := rawstore.ParsePageStats(f, a.Context)
		if err != nil {
			// A mangled capture is a skip, not a run failure.
			log.Warn("unparseable page capture", zap.Error(err))
			return summary, nil
		}
		if err := r.Store.UpsertScrapeStats(ctx, stats); err != nil {
			return nil, err
		}
		summary.PageCaptures++
		return summary, nil

	case rawstore.ArtifactAuditExport:
		summary.FilesSeen++
		res, err := normalizer.NormalizeFile(a.Path, a.Context)
		if eris.Is(err, normalizer.ErrUnrecognizedFormat) {
			summary.FilesUnrecognized++
			log.Warn("unrecognized export format", zap.Error(err))
			return summary, nil
		}
		if err != nil {
			// Unreadable file: skip it like an unrecognized one, the
			// rest of the run proceeds.
			summary.FilesUnrecognized++
			log.Warn("unreadable export", zap.Error(err))
			return summary, nil
		}

		summary.RowsParsed = len(res.Entries)
		summary.RowsFailed = len(res.RowErrors)
		summary.RowsPartial = res.Partial
		for _, re := range res.RowErrors {
			log.Debug("row skipped",
				zap.Int("line", re.Line),
				zap.String("reason", re.Reason),
				zap.Strings("raw", re.Raw),
			)
		}

		result, err := r.Store.UpsertEntries(ctx, res.Entries)
		if err != nil {
			return nil, err
		}
		summary.EntriesInserted = result.Inserted
		summary.EntriesDuplicate = result.Duplicate
		summary.AgenciesCreated = result.AgenciesCreated
		return summary, nil
	}

	return summary, nil
}
