package netcache

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecinapp/feed-backend-go/internal/client/cachestore"
)

// fakeBase is a programmable RoundTripper: offline simulates a dead network,
// otherwise every request gets status/body back.
type fakeBase struct {
	mu      sync.Mutex
	calls   int
	offline bool
	status  int
	body    string
}

func (f *fakeBase) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.offline {
		return nil, errors.New("dial tcp: network is unreachable")
	}
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader([]byte(f.body))),
		Request:    req,
	}, nil
}

func (f *fakeBase) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeBase) setOffline(offline bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = offline
}

func newTransport(t *testing.T, base *fakeBase) *Transport {
	t.Helper()
	store, err := cachestore.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	tr, err := New(store, base, []string{"/api/"}, "", slog.Default())
	require.NoError(t, err)
	return tr
}

func get(t *testing.T, tr *Transport, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestNetworkFirst_ServesLiveAndCaches(t *testing.T) {
	base := &fakeBase{body: `[{"type":"news","count":1}]`}
	tr := newTransport(t, base)

	resp := get(t, tr, "http://server/api/v1/notifications/new-content?since=x")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `[{"type":"news","count":1}]`, readBody(t, resp))

	// Network dies; the cached copy takes over for the same request key
	base.setOffline(true)
	resp = get(t, tr, "http://server/api/v1/notifications/new-content?since=x")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `[{"type":"news","count":1}]`, readBody(t, resp))
}

func TestNetworkFirst_OfflineWithoutCacheSynthesizes503(t *testing.T) {
	base := &fakeBase{}
	base.setOffline(true)
	tr := newTransport(t, base)

	resp := get(t, tr, "http://server/api/v1/feed/news")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body OfflineBody
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &body))
	assert.Equal(t, "offline", body.Error)
	assert.NotEmpty(t, body.Message)
}

func TestNetworkFirst_DistinctKeysDoNotShareCache(t *testing.T) {
	base := &fakeBase{body: "payload"}
	tr := newTransport(t, base)

	resp := get(t, tr, "http://server/api/v1/feed/news")
	readBody(t, resp)

	base.setOffline(true)
	resp = get(t, tr, "http://server/api/v1/feed/alert")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	readBody(t, resp)
}

func TestNetworkFirst_ErrorStatusNotCached(t *testing.T) {
	base := &fakeBase{status: http.StatusNotFound, body: "nope"}
	tr := newTransport(t, base)

	resp := get(t, tr, "http://server/api/v1/feed/news")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	readBody(t, resp)

	base.setOffline(true)
	resp = get(t, tr, "http://server/api/v1/feed/news")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	readBody(t, resp)
}

func TestCacheFirst_SecondHitServedFromCacheWithOneRevalidation(t *testing.T) {
	base := &fakeBase{body: "app-shell"}
	tr := newTransport(t, base)

	// Cold cache: exactly one network fetch
	resp := get(t, tr, "http://server/index.html")
	assert.Equal(t, "app-shell", readBody(t, resp))
	assert.Equal(t, 1, base.callCount())

	// Warm cache: served without waiting on the network, plus exactly one
	// background revalidation fetch
	resp = get(t, tr, "http://server/index.html")
	assert.Equal(t, "app-shell", readBody(t, resp))
	tr.Wait()
	assert.Equal(t, 2, base.callCount())
}

func TestCacheFirst_RevalidationFailureKeepsCachedEntry(t *testing.T) {
	base := &fakeBase{body: "app-shell"}
	tr := newTransport(t, base)

	readBody(t, get(t, tr, "http://server/index.html"))

	base.setOffline(true)
	resp := get(t, tr, "http://server/index.html")
	assert.Equal(t, "app-shell", readBody(t, resp))
	tr.Wait()

	// Still served from cache afterwards
	resp = get(t, tr, "http://server/index.html")
	assert.Equal(t, "app-shell", readBody(t, resp))
	tr.Wait()
}

func TestCacheFirst_NonSuccessNotCached(t *testing.T) {
	base := &fakeBase{status: http.StatusMovedPermanently, body: "redirect"}
	tr := newTransport(t, base)

	resp := get(t, tr, "http://server/old-path")
	assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	readBody(t, resp)
	assert.Equal(t, 1, base.callCount())

	// The redirect was not cached, so the next request goes to the network
	// again instead of replaying a broken state
	resp = get(t, tr, "http://server/old-path")
	readBody(t, resp)
	assert.Equal(t, 2, base.callCount())
}

func TestNonGetBypassesStaticCache(t *testing.T) {
	base := &fakeBase{body: "ok"}
	tr := newTransport(t, base)

	req, err := http.NewRequest(http.MethodPost, "http://server/upload", bytes.NewReader([]byte("data")))
	require.NoError(t, err)
	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, 1, base.callCount())
}

func TestNonGetAPIOfflineSynthesizes503(t *testing.T) {
	base := &fakeBase{}
	base.setOffline(true)
	tr := newTransport(t, base)

	req, err := http.NewRequest(http.MethodPost, "http://server/api/v1/notifications/read-all", nil)
	require.NoError(t, err)
	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	readBody(t, resp)
}
