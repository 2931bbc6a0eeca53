// Package universe scrapes dataset listings from the Roboflow Universe
// search interface: extraction of project cards from a rendered results
// page and pagination across result pages.
package universe

// Project is one dataset listing discovered on a search results page.
// SourceURL is the identity; everything else is display metadata.
type Project struct {
	SourceURL   string
	WorkspaceID string
	ProjectID   string
	Title       string
	Author      string
	ImageCount  int
	ModelCount  int
	Tags        []string
}
