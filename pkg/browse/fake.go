package browse

import "context"

// FakeElement is an in-memory Element for tests.
type FakeElement struct {
	// TextContent is returned by Text
	TextContent string

	// Attrs holds attribute values returned by Attribute
	Attrs map[string]string

	// Children maps a CSS selector to the descendants it matches
	Children map[string][]*FakeElement

	// OnClick runs when the element is clicked, before ClickErr is checked
	OnClick func()

	// ClickErr is returned by Click
	ClickErr error

	// Clicks counts Click calls
	Clicks int
}

func (e *FakeElement) Text(ctx context.Context) (string, error) {
	return e.TextContent, nil
}

func (e *FakeElement) Attribute(ctx context.Context, name string) (string, error) {
	return e.Attrs[name], nil
}

func (e *FakeElement) Element(ctx context.Context, selector string) (Element, error) {
	matches := e.Children[selector]
	if len(matches) == 0 {
		return nil, NotFound(selector)
	}
	return matches[0], nil
}

func (e *FakeElement) Elements(ctx context.Context, selector string) ([]Element, error) {
	matches := e.Children[selector]
	out := make([]Element, 0, len(matches))
	for _, m := range matches {
		out = append(out, m)
	}
	return out, nil
}

func (e *FakeElement) Has(ctx context.Context, selector string) (bool, error) {
	return len(e.Children[selector]) > 0, nil
}

func (e *FakeElement) Click(ctx context.Context) error {
	e.Clicks++
	if e.OnClick != nil {
		e.OnClick()
	}
	return e.ClickErr
}

// FakePage is an in-memory Page for tests. Doc maps a CSS selector to the
// elements it matches in the current document; DocsByURL swaps Doc on
// Navigate so pagination can be simulated with OnClick hooks.
type FakePage struct {
	Doc       map[string][]*FakeElement
	DocsByURL map[string]map[string][]*FakeElement

	NavigateErr error
	WaitLoadErr error

	Navigations []string
	CurrentURL  string
	Closed      bool
}

func (p *FakePage) Navigate(ctx context.Context, url string) error {
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	p.Navigations = append(p.Navigations, url)
	p.CurrentURL = url
	if doc, ok := p.DocsByURL[url]; ok {
		p.Doc = doc
	}
	return nil
}

func (p *FakePage) WaitLoad(ctx context.Context) error {
	return p.WaitLoadErr
}

func (p *FakePage) Element(ctx context.Context, selector string) (Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matches := p.Doc[selector]
	if len(matches) == 0 {
		return nil, NotFound(selector)
	}
	return matches[0], nil
}

func (p *FakePage) Elements(ctx context.Context, selector string) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matches := p.Doc[selector]
	out := make([]Element, 0, len(matches))
	for _, m := range matches {
		out = append(out, m)
	}
	return out, nil
}

func (p *FakePage) Has(ctx context.Context, selector string) (bool, error) {
	return len(p.Doc[selector]) > 0, nil
}

func (p *FakePage) Close() error {
	p.Closed = true
	return nil
}
