package universe

import (
	"context"
	"net/url"
	"strings"

	"rfharvest/pkg/browse"
	errs "rfharvest/pkg/errors"
	"rfharvest/pkg/logger"
)

// Selectors for the Universe search results page
const (
	selectorCard     = ".projectCard"
	selectorCardLink = `a.secondaryLink[href*="/"]`
	selectorTitle    = "h3.title-star a"
	selectorAuthor   = ".author a"
	selectorDetails  = ".details .flex"
	selectorTagChip  = ".classChip"
)

// Extractor turns a rendered search results page into project records.
// It only reads from the page; it never navigates or clicks.
type Extractor struct {
	baseURL string
	log     logger.Logger
}

// NewExtractor creates an extractor that resolves card links against baseURL
func NewExtractor(baseURL string, log logger.Logger) *Extractor {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Extractor{baseURL: baseURL, log: log}
}

// ExtractPage returns the projects found on the current page in card DOM
// order. A page with no cards yields an empty slice, not an error. A card
// that fails extraction is skipped; its siblings are unaffected.
func (e *Extractor) ExtractPage(ctx context.Context, page browse.Page) ([]Project, error) {
	cards, err := page.Elements(ctx, selectorCard)
	if err != nil {
		return nil, err
	}

	projects := make([]Project, 0, len(cards))
	for _, card := range cards {
		project, err := e.extractCard(ctx, card)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.log.WithError(err).Warn("Skipping project card")
			continue
		}
		projects = append(projects, *project)
	}

	return projects, nil
}

// extractCard pulls one project out of a single card element
func (e *Extractor) extractCard(ctx context.Context, card browse.Element) (*Project, error) {
	link, err := card.Element(ctx, selectorCardLink)
	if err != nil {
		return nil, err
	}

	href, err := link.Attribute(ctx, "href")
	if err != nil {
		return nil, err
	}
	if href == "" {
		return nil, errs.New(errs.ErrorTypeParsing, "project link has no href")
	}

	// Workspace and project ids are the last two path segments
	parts := strings.Split(strings.Trim(href, "/"), "/")
	if len(parts) < 2 {
		return nil, errs.New(errs.ErrorTypeParsing, "malformed project link: "+href)
	}

	project := &Project{
		SourceURL:   e.resolveURL(href),
		WorkspaceID: parts[len(parts)-2],
		ProjectID:   parts[len(parts)-1],
		Title:       e.childText(ctx, card, selectorTitle),
		Author:      strings.TrimPrefix(e.childText(ctx, card, selectorAuthor), "by "),
	}

	if details, err := card.Element(ctx, selectorDetails); err == nil {
		text, err := details.Text(ctx)
		if err == nil {
			project.ImageCount, _ = parseCount(imageCountPattern, text)
			project.ModelCount, _ = parseCount(modelCountPattern, text)
		}
	}

	chips, err := card.Elements(ctx, selectorTagChip)
	if err == nil {
		for _, chip := range chips {
			text, err := chip.Text(ctx)
			if err != nil {
				continue
			}
			if tag := strings.TrimSpace(text); tag != "" {
				project.Tags = append(project.Tags, tag)
			}
		}
	}

	e.log.DebugWithFields("Extracted project", map[string]interface{}{
		"title":  project.Title,
		"author": project.Author,
	})

	return project, nil
}

// childText returns the trimmed text of the first descendant matching the
// selector, or "Unknown" when the descendant is missing
func (e *Extractor) childText(ctx context.Context, card browse.Element, selector string) string {
	el, err := card.Element(ctx, selector)
	if err != nil {
		return "Unknown"
	}
	text, err := el.Text(ctx)
	if err != nil {
		return "Unknown"
	}
	return strings.TrimSpace(text)
}

// resolveURL joins a card href against the site base URL
func (e *Extractor) resolveURL(href string) string {
	base, err := url.Parse(e.baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
