package universe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfharvest/pkg/browse"
)

// fakeCard builds a card element the way the results page lays one out
func fakeCard(href, title, author, details string, tags ...string) *browse.FakeElement {
	card := &browse.FakeElement{Children: map[string][]*browse.FakeElement{}}

	if href != "" {
		card.Children[selectorCardLink] = []*browse.FakeElement{
			{Attrs: map[string]string{"href": href}},
		}
	}
	if title != "" {
		card.Children[selectorTitle] = []*browse.FakeElement{{TextContent: title}}
	}
	if author != "" {
		card.Children[selectorAuthor] = []*browse.FakeElement{{TextContent: author}}
	}
	if details != "" {
		card.Children[selectorDetails] = []*browse.FakeElement{{TextContent: details}}
	}
	for _, tag := range tags {
		card.Children[selectorTagChip] = append(card.Children[selectorTagChip],
			&browse.FakeElement{TextContent: tag})
	}

	return card
}

func pageWithCards(cards ...*browse.FakeElement) *browse.FakePage {
	return &browse.FakePage{Doc: map[string][]*browse.FakeElement{
		selectorCard: cards,
	}}
}

func TestExtractPageEmpty(t *testing.T) {
	extractor := NewExtractor("https://universe.roboflow.com", nil)
	page := &browse.FakePage{Doc: map[string][]*browse.FakeElement{}}

	projects, err := extractor.ExtractPage(context.Background(), page)
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestExtractPageFullCard(t *testing.T) {
	extractor := NewExtractor("https://universe.roboflow.com", nil)
	page := pageWithCards(fakeCard(
		"/acme/bottle-detect",
		"Bottle Detection",
		"by Acme Labs",
		"1024 images  ·  3 models",
		"bottle", "  cap  ", "",
	))

	projects, err := extractor.ExtractPage(context.Background(), page)
	require.NoError(t, err)
	require.Len(t, projects, 1)

	p := projects[0]
	assert.Equal(t, "https://universe.roboflow.com/acme/bottle-detect", p.SourceURL)
	assert.Equal(t, "acme", p.WorkspaceID)
	assert.Equal(t, "bottle-detect", p.ProjectID)
	assert.Equal(t, "Bottle Detection", p.Title)
	assert.Equal(t, "Acme Labs", p.Author)
	assert.Equal(t, 1024, p.ImageCount)
	assert.Equal(t, 3, p.ModelCount)
	assert.Equal(t, []string{"bottle", "cap"}, p.Tags)
}

func TestExtractPageSkipsMalformedCards(t *testing.T) {
	extractor := NewExtractor("https://universe.roboflow.com", nil)
	page := pageWithCards(
		fakeCard("", "No Link", "", ""),          // missing link element
		fakeCard("/single", "Short Path", "", ""), // fewer than two segments
		fakeCard("/acme/good", "Good", "by Acme", "5 images"),
	)

	projects, err := extractor.ExtractPage(context.Background(), page)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "Good", projects[0].Title)
}

func TestExtractPageDefaults(t *testing.T) {
	extractor := NewExtractor("https://universe.roboflow.com", nil)
	page := pageWithCards(fakeCard("/ws/proj", "", "", "no numbers here"))

	projects, err := extractor.ExtractPage(context.Background(), page)
	require.NoError(t, err)
	require.Len(t, projects, 1)

	p := projects[0]
	assert.Equal(t, "Unknown", p.Title)
	assert.Equal(t, "Unknown", p.Author)
	assert.Equal(t, 0, p.ImageCount)
	assert.Equal(t, 0, p.ModelCount)
	assert.Empty(t, p.Tags)
}

func TestExtractPageAbsoluteHref(t *testing.T) {
	extractor := NewExtractor("https://universe.roboflow.com", nil)
	page := pageWithCards(fakeCard("https://universe.roboflow.com/ws/proj", "T", "", ""))

	projects, err := extractor.ExtractPage(context.Background(), page)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "https://universe.roboflow.com/ws/proj", projects[0].SourceURL)
	assert.Equal(t, "ws", projects[0].WorkspaceID)
	assert.Equal(t, "proj", projects[0].ProjectID)
}

func TestParseCount(t *testing.T) {
	n, found := parseCount(imageCountPattern, "1024 images")
	assert.True(t, found)
	assert.Equal(t, 1024, n)

	n, found = parseCount(imageCountPattern, "1 image")
	assert.True(t, found)
	assert.Equal(t, 1, n)

	n, found = parseCount(modelCountPattern, "no counts at all")
	assert.False(t, found)
	assert.Equal(t, 0, n)
}
