// Package catalog talks to the Roboflow REST API: project metadata
// lookups and dataset archive downloads.
package catalog

// Version is one export version of a catalog project
type Version struct {
	ID int `json:"id"`
}

// Project is the catalog's read-only descriptor of a dataset project.
// It is used transiently during download resolution and never persisted.
type Project struct {
	Type     string    `json:"type"`
	Versions []Version `json:"versions"`
}

// LatestVersion returns the version with the highest numeric id.
// Ids are monotonic but not necessarily contiguous.
func (p *Project) LatestVersion() (Version, bool) {
	if len(p.Versions) == 0 {
		return Version{}, false
	}
	latest := p.Versions[0]
	for _, v := range p.Versions[1:] {
		if v.ID > latest.ID {
			latest = v
		}
	}
	return latest, true
}
