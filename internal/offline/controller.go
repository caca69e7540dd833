// Package offline keeps the app shell usable when the static origin is down.
// The Controller sits in front of the origin: navigations are network-first
// with a cached root document as fallback, other GETs are served
// stale-while-revalidate from the current cache generation.
package offline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kiranshivaraju/mealtrack/internal/config"
	"github.com/kiranshivaraju/mealtrack/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// rootKey is the cache key of the root document served for every navigation.
const rootKey = "/"

// SourceHeader tells the client where a response came from.
const SourceHeader = "X-Offline-Source"

const defaultMaxBodyBytes = 32 << 20

var (
	ErrNotInstalled = errors.New("offline cache not installed")
	ErrNotCacheable = errors.New("response is not cacheable")
	ErrBodyTooLarge = errors.New("response body too large")
)

// Controller is an http.Handler. It passes every request through to the
// origin until Install and Activate have both succeeded.
type Controller struct {
	origin       *url.URL
	generation   string
	manifest     []string
	client       *http.Client
	fetchTimeout time.Duration
	maxBody      int64
	storage      Storage
	proxy        *httputil.ReverseProxy
	now          func() time.Time

	installed atomic.Bool
	active    atomic.Bool
	refresh   singleflight.Group
	inflight  sync.WaitGroup
}

// New builds a Controller for cfg.OriginURL. A nil client uses http.DefaultClient.
func New(cfg config.OfflineConfig, storage Storage, client *http.Client) (*Controller, error) {
	origin, err := url.Parse(cfg.OriginURL)
	if err != nil || origin.Host == "" {
		return nil, fmt.Errorf("invalid origin url %q", cfg.OriginURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxBody := int64(cfg.MaxBodyBytes)
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	c := &Controller{
		origin:       origin,
		generation:   cfg.Generation,
		manifest:     slices.Clone(cfg.Manifest),
		client:       client,
		fetchTimeout: timeout,
		maxBody:      maxBody,
		storage:      storage,
		now:          time.Now,
	}
	c.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(origin)
		},
		Transport: client.Transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			metrics.OfflineResponses.WithLabelValues("passthrough", "error").Inc()
			slog.Warn("offline passthrough failed", "method", r.Method, "path", r.URL.Path, "error", err)
			w.WriteHeader(http.StatusBadGateway)
		},
	}
	return c, nil
}

func (c *Controller) Generation() string { return c.generation }

// Active reports whether requests are being intercepted.
func (c *Controller) Active() bool { return c.active.Load() }

// Install opens the current generation and stores every manifest resource.
// Any fetch or storage failure aborts the install.
func (c *Controller) Install(ctx context.Context) error {
	if err := c.storage.Open(ctx, c.generation); err != nil {
		return fmt.Errorf("open generation %s: %w", c.generation, err)
	}
	for _, path := range c.manifest {
		resp, cacheable, err := c.fetch(ctx, path, true)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", path, err)
		}
		if !cacheable {
			return fmt.Errorf("fetch %s: status %d: %w", path, resp.Status, ErrNotCacheable)
		}
		if err := c.storage.Put(ctx, c.generation, path, resp); err != nil {
			return fmt.Errorf("store %s: %w", path, err)
		}
	}
	c.installed.Store(true)
	slog.Info("offline cache installed", "generation", c.generation, "resources", len(c.manifest))
	return nil
}

// Activate deletes every generation other than the current one and starts
// intercepting requests.
func (c *Controller) Activate(ctx context.Context) error {
	if !c.installed.Load() {
		return ErrNotInstalled
	}
	gens, err := c.storage.Generations(ctx)
	if err != nil {
		return fmt.Errorf("list generations: %w", err)
	}
	for _, g := range gens {
		if g == c.generation {
			continue
		}
		if err := c.storage.Delete(ctx, g); err != nil {
			return fmt.Errorf("delete generation %s: %w", g, err)
		}
		slog.Info("offline cache generation deleted", "generation", g)
	}
	c.active.Store(true)
	slog.Info("offline cache active", "generation", c.generation)
	return nil
}

// Wait blocks until background refreshes have finished.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

func (c *Controller) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !c.active.Load() || r.Method != http.MethodGet || isCrossOrigin(r) {
		c.passthrough(w, r, "passthrough")
		return
	}
	if isNavigation(r) {
		c.serveNavigation(w, r)
		return
	}
	c.serveAsset(w, r)
}

// serveNavigation is network-first for the root document.
func (c *Controller) serveNavigation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp, cacheable, err := c.fetch(ctx, rootKey, true)
	if err == nil {
		if cacheable {
			c.put(ctx, rootKey, resp)
		}
		c.respond(w, "network_first", "network", resp)
		return
	}
	if errors.Is(err, ErrBodyTooLarge) {
		c.passthrough(w, r, "network_first")
		return
	}
	slog.Debug("navigation fetch failed", "path", r.URL.Path, "error", err)

	if cached, ok := c.lookup(ctx, rootKey); ok {
		c.respond(w, "network_first", "cache", cached)
		return
	}
	c.offline(w, "network_first")
}

// serveAsset is stale-while-revalidate.
func (c *Controller) serveAsset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := r.URL.RequestURI()

	if cached, ok := c.lookup(ctx, key); ok {
		c.revalidate(key)
		c.respond(w, "stale_while_revalidate", "cache", cached)
		return
	}

	resp, cacheable, err := c.fetch(ctx, key, false)
	if errors.Is(err, ErrBodyTooLarge) {
		c.passthrough(w, r, "stale_while_revalidate")
		return
	}
	if err != nil {
		slog.Debug("asset fetch failed", "key", key, "error", err)
		c.offline(w, "stale_while_revalidate")
		return
	}
	if cacheable {
		c.put(ctx, key, resp)
	}
	c.respond(w, "stale_while_revalidate", "network", resp)
}

// revalidate refreshes key in the background. Concurrent refreshes of the
// same key share one fetch; failures are only counted.
func (c *Controller) revalidate(key string) {
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		_, _, _ = c.refresh.Do(key, func() (any, error) {
			ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
			defer cancel()

			resp, cacheable, err := c.fetch(ctx, key, false)
			switch {
			case err != nil:
				metrics.OfflineRevalidations.WithLabelValues("failed").Inc()
			case !cacheable:
				metrics.OfflineRevalidations.WithLabelValues("skipped").Inc()
			default:
				c.put(ctx, key, resp)
				metrics.OfflineRevalidations.WithLabelValues("stored").Inc()
			}
			return nil, nil
		})
	}()
}

// fetch requests key from the origin. The response is cacheable when it is
// 2xx, was not redirected and ended on the origin. Bodies over the size limit
// fail with ErrBodyTooLarge.
func (c *Controller) fetch(ctx context.Context, key string, noStore bool) (*CachedResponse, bool, error) {
	ref, err := url.Parse(key)
	if err != nil {
		return nil, false, fmt.Errorf("parse key %q: %w", key, err)
	}
	target := c.origin.ResolveReference(ref)

	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, false, err
	}
	if noStore {
		req.Header.Set("Cache-Control", "no-store")
		req.Header.Set("Pragma", "no-cache")
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, c.maxBody+1))
	if err != nil {
		return nil, false, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, false, fmt.Errorf("%s exceeds %d bytes: %w", key, c.maxBody, ErrBodyTooLarge)
	}

	final := target
	if res.Request != nil && res.Request.URL != nil {
		final = res.Request.URL
	}
	resp := &CachedResponse{
		Status:   res.StatusCode,
		Header:   res.Header.Clone(),
		Body:     body,
		URL:      final.String(),
		StoredAt: c.now().UTC(),
	}
	redirected := final.String() != target.String()
	sameOrigin := final.Scheme == c.origin.Scheme && final.Host == c.origin.Host
	ok := res.StatusCode >= 200 && res.StatusCode < 300
	return resp, ok && !redirected && sameOrigin, nil
}

func (c *Controller) lookup(ctx context.Context, key string) (*CachedResponse, bool) {
	resp, ok, err := c.storage.Get(ctx, c.generation, key)
	if err != nil {
		slog.Warn("offline cache read failed", "key", key, "error", err)
		return nil, false
	}
	return resp, ok
}

func (c *Controller) put(ctx context.Context, key string, resp *CachedResponse) {
	if err := c.storage.Put(ctx, c.generation, key, resp); err != nil {
		slog.Warn("offline cache write failed", "key", key, "error", err)
	}
}

// Hop-by-hop and length headers are not replayed from stored responses.
var skipHeaders = map[string]bool{
	"Connection":        true,
	"Keep-Alive":        true,
	"Transfer-Encoding": true,
	"Upgrade":           true,
	"Trailer":           true,
	"Content-Length":    true,
}

func (c *Controller) respond(w http.ResponseWriter, strategy, source string, resp *CachedResponse) {
	metrics.OfflineResponses.WithLabelValues(strategy, source).Inc()
	h := w.Header()
	for k, vs := range resp.Header {
		if skipHeaders[k] {
			continue
		}
		h[k] = slices.Clone(vs)
	}
	h.Set(SourceHeader, source)
	h.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

func (c *Controller) offline(w http.ResponseWriter, strategy string) {
	metrics.OfflineResponses.WithLabelValues(strategy, "placeholder").Inc()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set(SourceHeader, "placeholder")
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = io.WriteString(w, "Offline")
}

// passthrough streams the origin's response without caching it.
func (c *Controller) passthrough(w http.ResponseWriter, r *http.Request, strategy string) {
	metrics.OfflineResponses.WithLabelValues(strategy, "network").Inc()
	c.proxy.ServeHTTP(w, r)
}

func isNavigation(r *http.Request) bool {
	if mode := r.Header.Get("Sec-Fetch-Mode"); mode != "" {
		return mode == "navigate"
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// isCrossOrigin treats anything the browser does not label same-origin (or
// user-initiated) as foreign, including same-site subdomains.
func isCrossOrigin(r *http.Request) bool {
	switch r.Header.Get("Sec-Fetch-Site") {
	case "", "same-origin", "none":
	default:
		return true
	}
	if r.URL.IsAbs() && r.URL.Host != r.Host {
		return true
	}
	if o := r.Header.Get("Origin"); o != "" {
		u, err := url.Parse(o)
		if err != nil || u.Host != r.Host {
			return true
		}
	}
	return false
}
