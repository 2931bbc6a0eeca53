package harvest

import (
	"context"
	"time"

	errs "rfharvest/pkg/errors"
	"rfharvest/pkg/logger"
	"rfharvest/pkg/ratelimit"
)

// Config tunes a harvest run
type Config struct {
	// DownloadsEnabled is false when no API credential is configured;
	// downloads are then skipped wholesale and projects persist as
	// undownloaded
	DownloadsEnabled bool

	// TermDelay is the pause between search terms
	TermDelay time.Duration
}

// Summary aggregates counts across all terms of a run
type Summary struct {
	Found      int
	Saved      int
	Downloaded int
}

// Coordinator ties crawling, persistence, and downloads together. One
// term at a time, one item at a time; a failure anywhere inside a term
// never leaks into the next one.
type Coordinator struct {
	crawler Crawler
	records RecordStore
	fetcher Fetcher
	pacing  ratelimit.Limiter
	cfg     Config
	log     logger.Logger
}

// NewCoordinator creates a harvest coordinator. pacing may be nil to
// disable inter-download pacing (tests).
func NewCoordinator(crawler Crawler, records RecordStore, fetcher Fetcher, pacing ratelimit.Limiter, cfg Config, log logger.Logger) *Coordinator {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Coordinator{
		crawler: crawler,
		records: records,
		fetcher: fetcher,
		pacing:  pacing,
		cfg:     cfg,
		log:     log,
	}
}

// Run harvests every term in order, then sweeps records that are
// persisted but still undownloaded. Only context cancellation aborts
// the run; everything else is logged and isolated.
func (c *Coordinator) Run(ctx context.Context, terms []string) (*Summary, error) {
	summary := &Summary{}

	if !c.cfg.DownloadsEnabled {
		c.log.Warn("No API credential configured, dataset downloads will be skipped")
	}

	for i, term := range terms {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if err := c.harvestTerm(ctx, term, summary); err != nil {
			return summary, err
		}

		if i < len(terms)-1 {
			if err := sleep(ctx, c.cfg.TermDelay); err != nil {
				return summary, err
			}
		}
	}

	if err := c.recoverySweep(ctx, summary); err != nil {
		return summary, err
	}

	c.log.InfoWithFields("Harvest complete", map[string]interface{}{
		"found":      summary.Found,
		"saved":      summary.Saved,
		"downloaded": summary.Downloaded,
	})

	return summary, nil
}

// harvestTerm crawls one term and pushes its projects through the dedup
// gate. Returns an error only on context cancellation.
func (c *Coordinator) harvestTerm(ctx context.Context, term string, summary *Summary) error {
	log := c.log.WithField("term", term)
	log.Info("Harvesting search term")

	projects, err := c.crawler.Crawl(ctx, term)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.WithError(err).Warn("Crawl failed, continuing with next term")
		return nil
	}

	summary.Found += len(projects)

	for _, project := range projects {
		if err := ctx.Err(); err != nil {
			return err
		}

		exists, err := c.records.Exists(project.SourceURL)
		if err != nil {
			log.WithError(err).WithField("url", project.SourceURL).Error("Existence check failed, skipping project")
			continue
		}
		if exists {
			log.WithField("url", project.SourceURL).Debug("Project already recorded")
			continue
		}

		record, err := c.records.Add(project)
		if err != nil {
			if errs.IsConflict(err) {
				// Raced with another writer; the project is present
				log.WithField("url", project.SourceURL).Info("Project recorded concurrently, skipping")
			} else {
				log.WithError(err).WithField("url", project.SourceURL).Error("Failed to persist project")
			}
			continue
		}
		summary.Saved++

		if !c.cfg.DownloadsEnabled {
			continue
		}

		if c.download(ctx, record.SourceURL, record.WorkspaceID, record.ProjectID, log) {
			summary.Downloaded++
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	log.InfoWithFields("Term harvested", map[string]interface{}{
		"found": len(projects),
	})

	return nil
}

// recoverySweep retries anything persisted but not downloaded, picking
// up items that failed mid-run or in an earlier crashed run
func (c *Coordinator) recoverySweep(ctx context.Context, summary *Summary) error {
	if !c.cfg.DownloadsEnabled {
		return nil
	}

	pending, err := c.records.ListUndownloaded()
	if err != nil {
		c.log.WithError(err).Error("Failed to list undownloaded projects, skipping recovery sweep")
		return nil
	}
	if len(pending) == 0 {
		return nil
	}

	c.log.WithField("count", len(pending)).Info("Running recovery sweep")

	for _, record := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.download(ctx, record.SourceURL, record.WorkspaceID, record.ProjectID, c.log) {
			summary.Downloaded++
		}
	}

	return nil
}

// download fetches one dataset and marks it downloaded. Failures leave
// the record eligible for the recovery sweep.
func (c *Coordinator) download(ctx context.Context, sourceURL, workspaceID, projectID string, log logger.Logger) bool {
	if c.pacing != nil {
		if err := c.pacing.Wait(ctx); err != nil {
			return false
		}
	}

	path, err := c.fetcher.Fetch(ctx, workspaceID, projectID)
	if err != nil {
		log.WithError(err).WithFields(map[string]interface{}{
			"workspace": workspaceID,
			"project":   projectID,
		}).Warn("Download failed, project left undownloaded")
		return false
	}

	ok, err := c.records.MarkDownloaded(sourceURL, path)
	if err != nil {
		log.WithError(err).WithField("url", sourceURL).Error("Failed to record download status")
		return false
	}
	if !ok {
		log.WithField("url", sourceURL).Warn("Downloaded project vanished from store")
		return false
	}

	return true
}

// sleep pauses for d unless the context is cancelled first
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
