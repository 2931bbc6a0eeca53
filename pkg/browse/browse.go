// Package browse abstracts the headless browser behind small Page and
// Element interfaces so page extraction and crawling logic can be tested
// against an in-memory DOM instead of a live Chrome instance.
package browse

import (
	"context"

	errs "rfharvest/pkg/errors"
)

// Page is a rendered document that can be navigated and queried.
type Page interface {
	// Navigate loads the given URL and returns once navigation has started.
	Navigate(ctx context.Context, url string) error

	// WaitLoad blocks until the page's load event fires.
	WaitLoad(ctx context.Context) error

	// Element returns the first element matching the CSS selector.
	// Returns a not_found error if no element matches.
	Element(ctx context.Context, selector string) (Element, error)

	// Elements returns all elements matching the CSS selector.
	// A selector with no matches returns an empty slice, not an error.
	Elements(ctx context.Context, selector string) ([]Element, error)

	// Has reports whether at least one element matches the CSS selector.
	Has(ctx context.Context, selector string) (bool, error)

	// Close releases the page and its browser tab.
	Close() error
}

// Element is a node within a page that can be queried and interacted with.
type Element interface {
	// Text returns the visible text content of the element.
	Text(ctx context.Context) (string, error)

	// Attribute returns the value of the named attribute, or an empty
	// string if the attribute is absent.
	Attribute(ctx context.Context, name string) (string, error)

	// Element returns the first descendant matching the CSS selector.
	// Returns a not_found error if no descendant matches.
	Element(ctx context.Context, selector string) (Element, error)

	// Elements returns all descendants matching the CSS selector.
	Elements(ctx context.Context, selector string) ([]Element, error)

	// Has reports whether at least one descendant matches the CSS selector.
	Has(ctx context.Context, selector string) (bool, error)

	// Click dispatches a left-button click on the element.
	Click(ctx context.Context) error
}

// NotFound builds the error returned when a required selector matches nothing.
func NotFound(selector string) error {
	return errs.New(errs.ErrorTypeNotFound, "no element matches selector "+selector)
}
