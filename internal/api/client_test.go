package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/tada/internal/devserver"
	"github.com/Makepad-fr/tada/internal/model"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// recorder keeps the raw body of every request before handing it on.
type recorder struct {
	mu     sync.Mutex
	next   http.Handler
	bodies []string
	heads  []http.Header
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	b, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	r.bodies = append(r.bodies, string(b))
	r.heads = append(r.heads, req.Header.Clone())
	r.mu.Unlock()
	req.Body = io.NopCloser(bytes.NewReader(b))
	r.next.ServeHTTP(w, req)
}

func newBackend(t *testing.T) (*devserver.Server, *recorder, *Client) {
	t.Helper()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ds := devserver.New(devserver.WithClock(func() time.Time { return t0 }), devserver.WithLogger(quiet))
	rec := &recorder{next: ds.Handler()}
	ts := httptest.NewServer(rec)
	t.Cleanup(ts.Close)

	c, err := New(ts.URL, WithLogger(quiet))
	require.NoError(t, err)
	return ds, rec, c
}

func TestNewValidatesBaseURL(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)
	require.Equal(t, DefaultBaseURL, c.BaseURL())
	require.Equal(t, DefaultTimeout, c.hc.Timeout)

	_, err = New("localhost:3001")
	require.Error(t, err)
	_, err = New("ftp://example.com")
	require.Error(t, err)
}

func TestCRUDRoundTrip(t *testing.T) {
	ds, rec, c := newBackend(t)
	ctx := context.Background()

	items, err := c.List(ctx)
	require.NoError(t, err)
	require.NotNil(t, items)
	require.Empty(t, items)

	created, err := c.Create(ctx, model.CreateRequest{Title: "Buy milk"})
	require.NoError(t, err)
	require.Equal(t, int64(1), created.ID)
	require.Equal(t, "2024-01-01T00:00:00Z", created.CreatedAt)

	updated, err := c.Update(ctx, created.ID, model.Toggle(created))
	require.NoError(t, err)
	require.True(t, updated.Completed)
	require.Equal(t, "Buy milk", updated.Title)

	require.NoError(t, c.Delete(ctx, created.ID))
	require.Empty(t, ds.Items())

	for _, h := range rec.heads {
		require.Equal(t, "application/json", h.Get("Content-Type"))
		require.NotEmpty(t, h.Get("X-Request-ID"))
	}
}

func TestUpdateTransmitsOnlySuppliedFields(t *testing.T) {
	ds, rec, c := newBackend(t)
	ds.Seed(model.Item{ID: 3, Title: "a"})

	_, err := c.Update(context.Background(), 3, model.Rename("b"))
	require.NoError(t, err)
	require.Len(t, rec.bodies, 1)

	var sent map[string]any
	require.NoError(t, json.Unmarshal([]byte(rec.bodies[0]), &sent))
	require.Equal(t, map[string]any{"title": "b"}, sent)
}

func TestServerErrorIsResponseError(t *testing.T) {
	_, _, c := newBackend(t)

	err := c.Delete(context.Background(), 42)
	require.Error(t, err)
	var re *ResponseError
	require.True(t, errors.As(err, &re))
	require.Equal(t, http.StatusNotFound, re.StatusCode)
	require.Contains(t, re.Body, "not found")
	require.True(t, IsNotFound(err))
	require.Equal(t, "server", Kind(err))
}

func TestNoResponseIsNetworkError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c, err := New(url, WithLogger(quiet))
	require.NoError(t, err)
	_, err = c.List(context.Background())
	var ne *NetworkError
	require.True(t, errors.As(err, &ne))
	require.Equal(t, "network", Kind(err))
}

func TestTimeoutIsNetworkError(t *testing.T) {
	block := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(ts.Close)
	t.Cleanup(func() { close(block) })

	c, err := New(ts.URL, WithLogger(quiet), WithTimeout(50*time.Millisecond))
	require.NoError(t, err)
	_, err = c.List(context.Background())
	var ne *NetworkError
	require.True(t, errors.As(err, &ne))
}

func TestUndecodableBodyIsRequestError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":`))
	}))
	t.Cleanup(ts.Close)

	c, err := New(ts.URL, WithLogger(quiet))
	require.NoError(t, err)
	_, err = c.Create(context.Background(), model.CreateRequest{Title: "x"})
	require.ErrorIs(t, err, ErrRequest)
	require.Equal(t, "other", Kind(err))
}

func TestListKeepsServerOrder(t *testing.T) {
	ds, _, c := newBackend(t)
	ds.Seed(model.Item{ID: 9, Title: "z"}, model.Item{ID: 2, Title: "a"}, model.Item{ID: 5, Title: "m"})

	items, err := c.List(context.Background())
	require.NoError(t, err)
	ids := []int64{}
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	require.Equal(t, []int64{9, 2, 5}, ids)
}
