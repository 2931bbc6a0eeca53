package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "rfharvest/pkg/errors"
	"rfharvest/pkg/universe"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleProject(sourceURL string) universe.Project {
	return universe.Project{
		SourceURL:   sourceURL,
		WorkspaceID: "acme",
		ProjectID:   "bottle-detect",
		Title:       "Bottle Detection",
		Author:      "Acme Labs",
		ImageCount:  1024,
		ModelCount:  2,
		Tags:        []string{"bottle", "cap"},
	}
}

func TestAddAndExists(t *testing.T) {
	s := openTestStore(t)
	url := "https://universe.roboflow.com/acme/bottle-detect"

	exists, err := s.Exists(url)
	require.NoError(t, err)
	assert.False(t, exists)

	record, err := s.Add(sampleProject(url))
	require.NoError(t, err)
	assert.NotZero(t, record.ID)
	assert.False(t, record.Downloaded)

	exists, err = s.Exists(url)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestAddDuplicateConflicts(t *testing.T) {
	s := openTestStore(t)
	url := "https://universe.roboflow.com/acme/bottle-detect"

	_, err := s.Add(sampleProject(url))
	require.NoError(t, err)

	_, err = s.Add(sampleProject(url))
	require.Error(t, err)
	assert.True(t, errs.IsConflict(err))

	// Still exactly one row
	records, err := s.ListUndownloaded()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestMarkDownloaded(t *testing.T) {
	s := openTestStore(t)
	url := "https://universe.roboflow.com/acme/bottle-detect"

	_, err := s.Add(sampleProject(url))
	require.NoError(t, err)

	ok, err := s.MarkDownloaded(url, "/data/results/acme_bottle-detect/bottle-detect_coco.zip")
	require.NoError(t, err)
	assert.True(t, ok)

	records, err := s.ListUndownloaded()
	require.NoError(t, err)
	assert.Empty(t, records)

	stats, err := s.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Projects)
	assert.Equal(t, 1, stats.Downloaded)
}

func TestMarkDownloadedMissingRow(t *testing.T) {
	s := openTestStore(t)

	ok, err := s.MarkDownloaded("https://universe.roboflow.com/no/such", "/tmp/x.zip")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListUndownloadedOrderAndFields(t *testing.T) {
	s := openTestStore(t)

	first := sampleProject("https://universe.roboflow.com/acme/first")
	second := sampleProject("https://universe.roboflow.com/acme/second")
	second.Tags = nil

	_, err := s.Add(first)
	require.NoError(t, err)
	_, err = s.Add(second)
	require.NoError(t, err)

	records, err := s.ListUndownloaded()
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, first.SourceURL, records[0].SourceURL)
	assert.Equal(t, second.SourceURL, records[1].SourceURL)
	assert.Equal(t, []string{"bottle", "cap"}, records[0].Tags)
	assert.Empty(t, records[1].Tags)
	assert.Equal(t, 1024, records[0].ImageCount)
	assert.False(t, records[0].CreatedAt.IsZero())
}

func TestRecordSearchEvent(t *testing.T) {
	s := openTestStore(t)

	s.RecordSearchEvent("bottle", 5)
	s.RecordSearchEvent("object detection", 0)

	events, err := s.ListSearchEvents(10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Newest first
	assert.Equal(t, "object detection", events[0].Term)
	assert.Equal(t, 0, events[0].ResultCount)
	assert.Equal(t, "bottle", events[1].Term)
	assert.Equal(t, 5, events[1].ResultCount)
}

func TestMigrationsIdempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.migrate())

	stats, err := s.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Projects)
}
