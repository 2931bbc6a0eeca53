package catalog

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "rfharvest/pkg/errors"
	"rfharvest/pkg/retry"
)

func newTestClient(serverURL string) *Client {
	c := NewClient(Options{
		BaseURL:    serverURL,
		APIKey:     "test-key",
		Timeout:    2 * time.Second,
		MaxRetries: 3,
	}, nil)
	c.backoff = &retry.ConstantBackoff{Delay: time.Millisecond}
	return c
}

func TestGetProject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/acme/bottle-detect", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Write([]byte(`{"type":"object-detection","versions":[{"id":1},{"id":3},{"id":2}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	project, err := client.GetProject(context.Background(), "acme", "bottle-detect")
	require.NoError(t, err)

	assert.Equal(t, TaskObjectDetection, project.Type)
	require.Len(t, project.Versions, 3)

	latest, ok := project.LatestVersion()
	assert.True(t, ok)
	assert.Equal(t, 3, latest.ID)
}

func TestGetProjectNotFoundNoRetry(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GetProject(context.Background(), "acme", "gone")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestGetProjectRetriesServerError(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"type":"classification","versions":[{"id":1}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	project, err := client.GetProject(context.Background(), "acme", "flaky")
	require.NoError(t, err)
	assert.Equal(t, TaskClassification, project.Type)
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))
}

func TestGetProjectUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GetProject(context.Background(), "acme", "secret")
	require.Error(t, err)
	assert.True(t, errs.IsAuth(err))
}

func TestDownloadVersion(t *testing.T) {
	payload := []byte("fake archive bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/acme/bottle-detect/3/yolov8", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Write(payload)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	var buf bytes.Buffer
	n, err := client.DownloadVersion(context.Background(), "acme", "bottle-detect", 3, "yolov8", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, payload, buf.Bytes())
}

func TestDownloadVersionUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	var buf bytes.Buffer
	_, err := client.DownloadVersion(context.Background(), "acme", "p", 1, "coco", &buf)
	require.Error(t, err)
	assert.True(t, errs.IsAuth(err))
	assert.Zero(t, buf.Len())
}

func TestCheckKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The probe endpoint does not exist; a 404 still proves the key works
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	assert.True(t, client.CheckKey(context.Background()))

	noKey := NewClient(Options{BaseURL: server.URL}, nil)
	assert.False(t, noKey.CheckKey(context.Background()))
}

func TestLatestVersionEmpty(t *testing.T) {
	p := &Project{}
	_, ok := p.LatestVersion()
	assert.False(t, ok)
}

func TestFormatsFor(t *testing.T) {
	assert.Equal(t, "yolov8", PrimaryFormat(TaskObjectDetection))
	assert.Equal(t, "folder", PrimaryFormat(TaskClassification))
	assert.Equal(t, defaultFormats, FormatsFor("something-new"))
}
