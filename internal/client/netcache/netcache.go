// Package netcache sits between the agent and the network as an
// http.RoundTripper, applying a per-route caching strategy: network-first
// with cached fallback for API routes, cache-first with background
// revalidation for static routes. When both the network and the cache come
// up empty on an API route it synthesizes a structured offline response
// instead of surfacing a raw transport error.
package netcache

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/vecinapp/feed-backend-go/internal/client/cachestore"
)

const (
	apiNamespace    = "api-responses"
	staticNamespace = "static@v1"

	defaultOfflineMessage = "Sin conexión. Mostrando el último contenido disponible."
)

// Namespaces returns the cache namespaces this transport owns, in the shape
// CleanupObsolete expects as an allow-list.
func Namespaces() []string {
	return []string{apiNamespace, staticNamespace}
}

// OfflineBody is the synthesized offline fallback payload. Status 503 plus
// this body means "temporarily degraded", never "resource missing".
type OfflineBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type logger interface {
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

// Transport implements http.RoundTripper over a base transport and a local
// snapshot store.
type Transport struct {
	base           http.RoundTripper
	api            *cachestore.Handle
	static         *cachestore.Handle
	apiPrefixes    []string
	offlineMessage string
	log            logger

	wg sync.WaitGroup

	// One in-flight revalidation per request key; a newer request for the
	// same key cancels the older fetch.
	mu       sync.Mutex
	inflight map[string]*revalidation
}

type revalidation struct {
	cancel context.CancelFunc
}

// New creates a caching transport. apiPrefixes classifies routes: paths
// under any prefix are API routes, everything else is static. base may be
// nil, in which case http.DefaultTransport is used.
func New(store *cachestore.Store, base http.RoundTripper, apiPrefixes []string, offlineMessage string, log logger) (*Transport, error) {
	api, err := store.Namespace(apiNamespace)
	if err != nil {
		return nil, err
	}
	static, err := store.Namespace(staticNamespace)
	if err != nil {
		return nil, err
	}
	if base == nil {
		base = http.DefaultTransport
	}
	if offlineMessage == "" {
		offlineMessage = defaultOfflineMessage
	}

	return &Transport{
		base:           base,
		api:            api,
		static:         static,
		apiPrefixes:    apiPrefixes,
		offlineMessage: offlineMessage,
		log:            log,
		inflight:       make(map[string]*revalidation),
	}, nil
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.isAPIRoute(req.URL.Path) {
		return t.networkFirst(req)
	}
	return t.cacheFirst(req)
}

// Wait blocks until pending background revalidations finish. Used in tests
// and on shutdown.
func (t *Transport) Wait() {
	t.wg.Wait()
}

func (t *Transport) isAPIRoute(path string) bool {
	for _, prefix := range t.apiPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func requestKey(req *http.Request) string {
	return req.Method + " " + req.URL.Path + "?" + req.URL.RawQuery
}

// networkFirst tries the live network, writes successful responses through
// to the api-responses namespace, and degrades to the last cached entry or a
// synthesized offline response when the network is unreachable.
func (t *Transport) networkFirst(req *http.Request) (*http.Response, error) {
	key := requestKey(req)

	resp, err := t.base.RoundTrip(req)
	if err == nil {
		if req.Method == http.MethodGet && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			t.writeThrough(t.api, key, resp)
		}
		return resp, nil
	}

	if req.Method == http.MethodGet {
		if snap, ok := t.api.Match(key); ok {
			t.log.Debug("serving cached response", "key", key)
			return restore(req, snap), nil
		}
	}
	return t.offline(req), nil
}

// cacheFirst serves a cached entry immediately when present and refreshes it
// in the background; on a miss it fetches from the network and caches only
// success responses.
func (t *Transport) cacheFirst(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return t.base.RoundTrip(req)
	}

	key := requestKey(req)
	if snap, ok := t.static.Match(key); ok {
		t.revalidate(req, key)
		return restore(req, snap), nil
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		t.writeThrough(t.static, key, resp)
	}
	return resp, nil
}

// revalidate refreshes one static entry off the request path. A newer
// revalidation for the same key supersedes an in-flight one.
func (t *Transport) revalidate(req *http.Request, key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	rev := &revalidation{cancel: cancel}

	t.mu.Lock()
	if prev, ok := t.inflight[key]; ok {
		prev.cancel()
	}
	t.inflight[key] = rev
	t.mu.Unlock()

	clone := req.Clone(ctx)
	clone.Body = nil

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			t.mu.Lock()
			if t.inflight[key] == rev {
				delete(t.inflight, key)
			}
			t.mu.Unlock()
			cancel()
		}()

		resp, err := t.base.RoundTrip(clone)
		if err != nil {
			t.log.Debug("background revalidation failed", "key", key, "error", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return
		}
		t.put(t.static, key, &cachestore.Snapshot{
			Status: resp.StatusCode,
			Header: resp.Header.Clone(),
			Body:   body,
		})
	}()
}

// writeThrough snapshots resp into the namespace and restores resp.Body so
// the caller still reads the full payload. Cache failures never surface.
func (t *Transport) writeThrough(ns *cachestore.Handle, key string, resp *http.Response) {
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		resp.Body = io.NopCloser(bytes.NewReader(nil))
		return
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	t.put(ns, key, &cachestore.Snapshot{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   body,
	})
}

func (t *Transport) put(ns *cachestore.Handle, key string, snap *cachestore.Snapshot) {
	if err := ns.Put(key, snap); err != nil {
		// Caching is an optimization, never a correctness dependency
		t.log.Warn("cache write failed", "namespace", ns.Name(), "key", key, "error", err)
	}
}

func restore(req *http.Request, snap *cachestore.Snapshot) *http.Response {
	header := snap.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode:    snap.Status,
		Status:        http.StatusText(snap.Status),
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(snap.Body)),
		ContentLength: int64(len(snap.Body)),
		Request:       req,
	}
}

func (t *Transport) offline(req *http.Request) *http.Response {
	body, _ := json.Marshal(OfflineBody{Error: "offline", Message: t.offlineMessage})
	return &http.Response{
		StatusCode:    http.StatusServiceUnavailable,
		Status:        http.StatusText(http.StatusServiceUnavailable),
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": []string{"application/json"}},
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
