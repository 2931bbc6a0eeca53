package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	errs "rfharvest/pkg/errors"
	"rfharvest/pkg/logger"
	"rfharvest/pkg/retry"
)

// Client is an authenticated Roboflow API client. The zero API key is
// allowed; callers decide whether to attempt requests without one.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	apiKey          string
	timeout         time.Duration
	downloadTimeout time.Duration
	maxRetries      int
	backoff         retry.BackoffStrategy
	log             logger.Logger
}

// Options configures a catalog client
type Options struct {
	BaseURL         string
	APIKey          string
	Timeout         time.Duration
	DownloadTimeout time.Duration
	MaxRetries      int
}

// NewClient creates a catalog API client
func NewClient(opts Options, log logger.Logger) *Client {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = 5 * time.Minute
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}

	return &Client{
		// Per-request deadlines come from contexts, metadata and
		// archive transfers need different bounds
		httpClient:      &http.Client{},
		baseURL:         opts.BaseURL,
		apiKey:          opts.APIKey,
		timeout:         opts.Timeout,
		downloadTimeout: opts.DownloadTimeout,
		maxRetries:      opts.MaxRetries,
		log:             log,
	}
}

// HasKey reports whether a credential is configured
func (c *Client) HasKey() bool {
	return c.apiKey != ""
}

// GetProject fetches catalog metadata for a project. Transient failures
// (network, 5xx, 429) are retried with backoff; 401 and 404 are not.
func (c *Client) GetProject(ctx context.Context, workspaceID, projectID string) (*Project, error) {
	op := func() (*Project, error) {
		return c.getProject(ctx, workspaceID, projectID)
	}

	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = c.maxRetries
	cfg.Context = ctx
	cfg.Logger = c.log
	if c.backoff != nil {
		cfg.Backoff = c.backoff
	}

	return retry.DoWithResult(op, cfg)
}

func (c *Client) getProject(ctx context.Context, workspaceID, projectID string) (*Project, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, url.PathEscape(workspaceID), url.PathEscape(projectID))
	resp, err := c.get(reqCtx, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkResponseStatus(resp.StatusCode, workspaceID+"/"+projectID); err != nil {
		return nil, err
	}

	var project Project
	if err := json.NewDecoder(resp.Body).Decode(&project); err != nil {
		return nil, errs.New(errs.ErrorTypeParsing, fmt.Sprintf("failed to decode project metadata: %v", err))
	}

	return &project, nil
}

// DownloadVersion streams a dataset archive into w and returns the
// number of bytes written. The transfer is not retried; a failed item
// stays eligible for the recovery sweep.
func (c *Client) DownloadVersion(ctx context.Context, workspaceID, projectID string, versionID int, format string, w io.Writer) (int64, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.downloadTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/%s/%s/%d/%s",
		c.baseURL, url.PathEscape(workspaceID), url.PathEscape(projectID), versionID, format)

	resp, err := c.get(reqCtx, endpoint)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := checkResponseStatus(resp.StatusCode, workspaceID+"/"+projectID); err != nil {
		return 0, err
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, errs.New(errs.ErrorTypeNetwork, fmt.Sprintf("archive transfer interrupted: %v", err))
	}

	return n, nil
}

// CheckKey probes the API with the configured credential. A 404 on the
// probe endpoint still proves the key is accepted.
func (c *Client) CheckKey(ctx context.Context) bool {
	if !c.HasKey() {
		return false
	}

	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := c.get(reqCtx, c.baseURL+"/")
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNotFound
}

// get issues an authenticated GET; the credential travels as the `key`
// query parameter, matching the catalog API contract
func (c *Client) get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeUnknown, fmt.Sprintf("failed to build request: %v", err))
	}

	if c.apiKey != "" {
		q := req.URL.Query()
		q.Set("key", c.apiKey)
		req.URL.RawQuery = q.Encode()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeNetwork, fmt.Sprintf("request failed: %v", err))
	}

	return resp, nil
}

// checkResponseStatus maps catalog API status codes onto the error taxonomy
func checkResponseStatus(statusCode int, item string) error {
	switch {
	case statusCode == http.StatusOK:
		return nil
	case statusCode == http.StatusUnauthorized:
		return errs.NewWithCode(errs.ErrorTypeAuth, "invalid API key or unauthorized access", statusCode)
	case statusCode == http.StatusNotFound:
		return errs.NewWithCode(errs.ErrorTypeNotFound, "not found in catalog: "+item, statusCode)
	case statusCode == http.StatusTooManyRequests:
		return errs.NewWithCode(errs.ErrorTypeRateLimit, "catalog API rate limit hit", statusCode)
	case statusCode >= 500:
		return errs.NewWithCode(errs.ErrorTypeServerError, fmt.Sprintf("catalog API server error: HTTP %d", statusCode), statusCode)
	default:
		return errs.NewWithCode(errs.ErrorTypeUnknown, fmt.Sprintf("unexpected catalog API status: HTTP %d", statusCode), statusCode)
	}
}
