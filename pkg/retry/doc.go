// Package retry provides backoff and retry logic for transient failures on
// catalog API calls.
//
// Only catalog metadata requests are retried; a failed archive download is
// deliberately left for the harvest recovery sweep instead.
//
// Basic usage:
//
//	err := retry.Do(func() error {
//		return client.Ping(ctx)
//	}, nil)
//
//	info, err := retry.DoWithResult(func() (*catalog.Project, error) {
//		return client.GetProject(ctx, workspaceID, projectID)
//	}, cfg)
package retry
