// Package harvest runs the full pipeline: crawl search terms, gate new
// projects through the record store, and trigger downloads.
package harvest

import (
	"context"

	"rfharvest/pkg/store"
	"rfharvest/pkg/universe"
)

// Crawler produces the projects discovered for one search term
type Crawler interface {
	Crawl(ctx context.Context, term string) ([]universe.Project, error)
}

// RecordStore is the persistence gate over discovered projects
type RecordStore interface {
	Exists(sourceURL string) (bool, error)
	Add(p universe.Project) (*store.StoredRecord, error)
	MarkDownloaded(sourceURL, downloadPath string) (bool, error)
	ListUndownloaded() ([]store.StoredRecord, error)
}

// Fetcher downloads and unpacks one dataset
type Fetcher interface {
	Fetch(ctx context.Context, workspaceID, projectID string) (string, error)
}
