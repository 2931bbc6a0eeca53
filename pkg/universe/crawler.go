package universe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rfharvest/pkg/browse"
	"rfharvest/pkg/logger"
)

// Next-page controls, restricted to enabled ones. Disabled buttons mean
// the last page has been reached.
const selectorNextEnabled = `button[aria-label="Go to next page"]:not([disabled]), ` +
	`a[aria-label="Go to next page"]:not([disabled]), ` +
	`.pagination .next:not([disabled])`

// PageOpener hands out fresh pages; satisfied by browse.Engine
type PageOpener interface {
	NewPage(ctx context.Context) (browse.Page, error)
}

// EventRecorder receives the audit event raised at the end of a crawl
type EventRecorder interface {
	RecordSearchEvent(term string, resultCount int)
}

// CrawlerConfig bounds a single term's crawl
type CrawlerConfig struct {
	// BaseURL is the root of the search site
	BaseURL string

	// MaxPages caps the number of result pages visited per term
	MaxPages int

	// NavigationTimeout bounds the initial page load
	NavigationTimeout time.Duration

	// SelectorTimeout bounds the wait for the first project card
	SelectorTimeout time.Duration

	// SettleDelay is the pause after navigation and pagination clicks,
	// giving the client-side renderer time to fill the page
	SettleDelay time.Duration
}

// Crawler drives pagination for one search term at a time, calling the
// extractor on each page. It owns the page handle for the duration of a
// crawl; crawls are strictly sequential.
type Crawler struct {
	pages     PageOpener
	extractor *Extractor
	events    EventRecorder
	cfg       CrawlerConfig
	log       logger.Logger
}

// NewCrawler creates a search crawler
func NewCrawler(pages PageOpener, extractor *Extractor, events EventRecorder, cfg CrawlerConfig, log logger.Logger) *Crawler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Crawler{
		pages:     pages,
		extractor: extractor,
		events:    events,
		cfg:       cfg,
		log:       log,
	}
}

// Crawl collects all projects for a search term across result pages.
//
// A term whose results never render (selector timeout) yields an empty
// slice and a nil error; the failure is logged and no search event is
// recorded. Context cancellation is returned as an error.
func (c *Crawler) Crawl(ctx context.Context, term string) ([]Project, error) {
	log := c.log.WithField("term", term)

	page, err := c.pages.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open search page: %w", err)
	}
	defer page.Close()

	searchURL := c.searchURL(term)
	log.WithField("url", searchURL).Info("Navigating to search page")

	navCtx, cancel := context.WithTimeout(ctx, c.cfg.NavigationTimeout)
	err = page.Navigate(navCtx, searchURL)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to load search page: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.NavigationTimeout)
	if err := page.WaitLoad(waitCtx); err != nil {
		log.WithError(err).Warn("Page load wait did not complete")
	}
	cancel()

	// The results grid renders client-side after the load event
	selCtx, cancel := context.WithTimeout(ctx, c.cfg.SelectorTimeout)
	_, err = page.Element(selCtx, selectorCard)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.WithError(err).Warn("No results appeared for term")
		return []Project{}, nil
	}

	if err := sleep(ctx, c.cfg.SettleDelay); err != nil {
		return nil, err
	}

	var all []Project
	for p := 0; p < c.cfg.MaxPages; p++ {
		log.WithField("page", p+1).Info("Extracting results page")

		projects, err := c.extractor.ExtractPage(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.WithError(err).Warn("Extraction failed, stopping pagination")
			break
		}

		if len(projects) == 0 {
			log.Info("No more projects found")
			break
		}

		all = append(all, projects...)
		log.InfoWithFields("Extracted projects from page", map[string]interface{}{
			"page":  p + 1,
			"count": len(projects),
		})

		if !c.nextPage(ctx, page, log) {
			break
		}
		if err := sleep(ctx, c.cfg.SettleDelay); err != nil {
			return nil, err
		}
	}

	c.events.RecordSearchEvent(term, len(all))
	log.WithField("total", len(all)).Info("Crawl complete")

	return all, nil
}

// nextPage clicks the next-page control if one is present and enabled.
// Returns false when pagination is exhausted.
func (c *Crawler) nextPage(ctx context.Context, page browse.Page, log logger.Logger) bool {
	has, err := page.Has(ctx, selectorNextEnabled)
	if err != nil || !has {
		return false
	}

	selCtx, cancel := context.WithTimeout(ctx, c.cfg.SelectorTimeout)
	defer cancel()

	button, err := page.Element(selCtx, selectorNextEnabled)
	if err != nil {
		return false
	}
	if err := button.Click(ctx); err != nil {
		log.WithError(err).Warn("Failed to click next page control")
		return false
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.NavigationTimeout)
	defer cancel()
	if err := page.WaitLoad(waitCtx); err != nil {
		log.WithError(err).Warn("Next page load wait did not complete")
	}

	return true
}

// searchURL builds the search endpoint for a term, escaping spaces
func (c *Crawler) searchURL(term string) string {
	query := strings.ReplaceAll(term, " ", "%20")
	return fmt.Sprintf("%s/search?q=%s", strings.TrimRight(c.cfg.BaseURL, "/"), query)
}

// sleep pauses for d unless the context is cancelled first
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
