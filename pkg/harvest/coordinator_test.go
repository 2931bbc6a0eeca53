package harvest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "rfharvest/pkg/errors"
	"rfharvest/pkg/store"
	"rfharvest/pkg/universe"
)

type fakeCrawler struct {
	results map[string][]universe.Project
	errs    map[string]error
	crawled []string
}

func (f *fakeCrawler) Crawl(ctx context.Context, term string) ([]universe.Project, error) {
	f.crawled = append(f.crawled, term)
	if err := f.errs[term]; err != nil {
		return nil, err
	}
	return f.results[term], nil
}

type fakeStore struct {
	records  map[string]*store.StoredRecord
	addErrs  map[string]error
	addCalls []string
	nextID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]*store.StoredRecord{}, addErrs: map[string]error{}}
}

func (f *fakeStore) Exists(sourceURL string) (bool, error) {
	_, ok := f.records[sourceURL]
	return ok, nil
}

func (f *fakeStore) Add(p universe.Project) (*store.StoredRecord, error) {
	f.addCalls = append(f.addCalls, p.SourceURL)
	if err := f.addErrs[p.SourceURL]; err != nil {
		return nil, err
	}
	f.nextID++
	record := &store.StoredRecord{ID: f.nextID, Project: p}
	f.records[p.SourceURL] = record
	return record, nil
}

func (f *fakeStore) MarkDownloaded(sourceURL, downloadPath string) (bool, error) {
	record, ok := f.records[sourceURL]
	if !ok {
		return false, nil
	}
	record.Downloaded = true
	record.DownloadPath = downloadPath
	return true, nil
}

func (f *fakeStore) ListUndownloaded() ([]store.StoredRecord, error) {
	var pending []store.StoredRecord
	for _, record := range f.records {
		if !record.Downloaded {
			pending = append(pending, *record)
		}
	}
	return pending, nil
}

type fakeFetcher struct {
	errs  map[string]error
	calls []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, workspaceID, projectID string) (string, error) {
	key := workspaceID + "/" + projectID
	f.calls = append(f.calls, key)
	if err := f.errs[key]; err != nil {
		return "", err
	}
	return "/results/" + workspaceID + "_" + projectID, nil
}

func proj(ws, id string) universe.Project {
	return universe.Project{
		SourceURL:   "https://universe.roboflow.com/" + ws + "/" + id,
		WorkspaceID: ws,
		ProjectID:   id,
		Title:       id,
	}
}

func newCoordinator(crawler Crawler, records RecordStore, fetcher Fetcher, downloads bool) *Coordinator {
	return NewCoordinator(crawler, records, fetcher, nil, Config{DownloadsEnabled: downloads}, nil)
}

func TestRunHappyPath(t *testing.T) {
	crawler := &fakeCrawler{results: map[string][]universe.Project{
		"bottle": {proj("acme", "one"), proj("acme", "two")},
	}}
	records := newFakeStore()
	fetcher := &fakeFetcher{}

	c := newCoordinator(crawler, records, fetcher, true)
	summary, err := c.Run(context.Background(), []string{"bottle"})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Found)
	assert.Equal(t, 2, summary.Saved)
	assert.Equal(t, 2, summary.Downloaded)

	for _, record := range records.records {
		assert.True(t, record.Downloaded)
		assert.NotEmpty(t, record.DownloadPath)
	}
}

func TestRunSkipsExistingRecords(t *testing.T) {
	existing := proj("acme", "seen")
	crawler := &fakeCrawler{results: map[string][]universe.Project{
		"bottle": {existing, proj("acme", "new")},
	}}
	records := newFakeStore()
	fetcher := &fakeFetcher{}

	_, err := records.Add(existing)
	require.NoError(t, err)
	records.records[existing.SourceURL].Downloaded = true
	records.addCalls = nil

	c := newCoordinator(crawler, records, fetcher, true)
	summary, err := c.Run(context.Background(), []string{"bottle"})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Found)
	assert.Equal(t, 1, summary.Saved)
	assert.Equal(t, []string{"https://universe.roboflow.com/acme/new"}, records.addCalls)
	assert.Equal(t, []string{"acme/new"}, fetcher.calls)
}

func TestRunNoCredentialSkipsDownloads(t *testing.T) {
	crawler := &fakeCrawler{results: map[string][]universe.Project{
		"bottle": {proj("acme", "one"), proj("acme", "two")},
	}}
	records := newFakeStore()
	fetcher := &fakeFetcher{}

	c := newCoordinator(crawler, records, fetcher, false)
	summary, err := c.Run(context.Background(), []string{"bottle"})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Saved)
	assert.Zero(t, summary.Downloaded)
	assert.Empty(t, fetcher.calls)
	for _, record := range records.records {
		assert.False(t, record.Downloaded)
	}
}

func TestRunTermIsolation(t *testing.T) {
	crawler := &fakeCrawler{
		results: map[string][]universe.Project{"second": {proj("acme", "ok")}},
		errs:    map[string]error{"first": errs.New(errs.ErrorTypeNetwork, "render died")},
	}
	records := newFakeStore()
	fetcher := &fakeFetcher{}

	c := newCoordinator(crawler, records, fetcher, true)
	summary, err := c.Run(context.Background(), []string{"first", "second"})
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, crawler.crawled)
	assert.Equal(t, 1, summary.Saved)
}

func TestRunConflictTreatedAsPresent(t *testing.T) {
	racy := proj("acme", "racy")
	crawler := &fakeCrawler{results: map[string][]universe.Project{
		"bottle": {racy},
	}}
	records := newFakeStore()
	records.addErrs[racy.SourceURL] = errs.New(errs.ErrorTypeConflict, "already recorded")
	fetcher := &fakeFetcher{}

	c := newCoordinator(crawler, records, fetcher, true)
	summary, err := c.Run(context.Background(), []string{"bottle"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Found)
	assert.Zero(t, summary.Saved)
	assert.Empty(t, fetcher.calls)
}

func TestRunRecoverySweep(t *testing.T) {
	// A record left undownloaded by an earlier run gets retried
	leftover := proj("acme", "leftover")
	records := newFakeStore()
	_, err := records.Add(leftover)
	require.NoError(t, err)

	crawler := &fakeCrawler{}
	fetcher := &fakeFetcher{}

	c := newCoordinator(crawler, records, fetcher, true)
	summary, err := c.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Downloaded)
	assert.Equal(t, []string{"acme/leftover"}, fetcher.calls)
	assert.True(t, records.records[leftover.SourceURL].Downloaded)
}

func TestRunFailedDownloadStaysEligible(t *testing.T) {
	item := proj("acme", "flaky")
	crawler := &fakeCrawler{results: map[string][]universe.Project{
		"bottle": {item},
	}}
	records := newFakeStore()
	fetcher := &fakeFetcher{errs: map[string]error{
		"acme/flaky": errs.New(errs.ErrorTypeNetwork, "connection reset"),
	}}

	c := newCoordinator(crawler, records, fetcher, true)
	summary, err := c.Run(context.Background(), []string{"bottle"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Saved)
	assert.Zero(t, summary.Downloaded)
	// One in-term attempt plus one recovery sweep attempt
	assert.Equal(t, []string{"acme/flaky", "acme/flaky"}, fetcher.calls)
	assert.False(t, records.records[item.SourceURL].Downloaded)
}

func TestRunCancelledBetweenTerms(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	crawler := &fakeCrawler{results: map[string][]universe.Project{}}
	crawler.results["first"] = nil
	records := newFakeStore()
	fetcher := &fakeFetcher{}

	cancel()
	c := newCoordinator(crawler, records, fetcher, true)
	_, err := c.Run(ctx, []string{"first", "second"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, crawler.crawled)
}

// blockingLimiter never grants a token; Wait only returns on cancellation
type blockingLimiter struct{}

func (b *blockingLimiter) Allow() bool { return false }

func (b *blockingLimiter) Wait(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (b *blockingLimiter) Reset() {}

func TestRunCancelledDuringPacing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	crawler := &fakeCrawler{results: map[string][]universe.Project{
		"bottle": {proj("acme", "one")},
	}}
	records := newFakeStore()
	fetcher := &fakeFetcher{}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	c := NewCoordinator(crawler, records, fetcher, &blockingLimiter{}, Config{DownloadsEnabled: true}, nil)
	_, err := c.Run(ctx, []string{"bottle"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fetcher.calls)
	require.Contains(t, records.records, proj("acme", "one").SourceURL)
	assert.False(t, records.records[proj("acme", "one").SourceURL].Downloaded)
}
