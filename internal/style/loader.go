package style

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/mohammed-shakir/indoor-levels/internal/cache/redisstore"
	"github.com/mohammed-shakir/indoor-levels/internal/core/model"
	"github.com/mohammed-shakir/indoor-levels/internal/core/observability"
)

var ErrFetch = errors.New("fetch style")

const maxStyleBytes = 8 << 20

// Cache is the shared second tier in front of the style server.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type Loader struct {
	url    string
	client *http.Client
	cache  Cache
	ttl    time.Duration
	local  *lru.Cache[string, []model.Layer]
	group  singleflight.Group
	logger *slog.Logger
}

type Option func(*Loader)

func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) {
		if c != nil {
			l.client = c
		}
	}
}

// WithCache shares fetched styles through c for ttl.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(l *Loader) {
		l.cache = c
		l.ttl = ttl
	}
}

func WithLogger(lg *slog.Logger) Option {
	return func(l *Loader) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// NewLoader fetches layers from url; an empty url serves the embedded
// default style.
func NewLoader(url string, lruSize int, opts ...Option) (*Loader, error) {
	if lruSize < 1 {
		lruSize = 1
	}
	local, err := lru.New[string, []model.Layer](lruSize)
	if err != nil {
		return nil, fmt.Errorf("style lru: %w", err)
	}
	l := &Loader{
		url:    url,
		client: http.DefaultClient,
		local:  local,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

// Key is the cache key of a style URL.
func Key(url string) string {
	return "style:" + strconv.FormatUint(xxhash.Sum64String(url), 16)
}

// Layers returns a private copy of the style's layers.
func (l *Loader) Layers(ctx context.Context) ([]model.Layer, error) {
	if l.url == "" {
		observability.IncStyleResult("default")
		return DefaultLayers()
	}
	key := Key(l.url)
	if layers, ok := l.local.Get(key); ok {
		observability.IncStyleResult("lru")
		return cloneLayers(layers), nil
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		return l.load(ctx, key)
	})
	if err != nil {
		observability.IncStyleResult("error")
		return nil, err
	}
	return cloneLayers(v.([]model.Layer)), nil
}

func (l *Loader) load(ctx context.Context, key string) ([]model.Layer, error) {
	if l.cache != nil {
		raw, err := l.cache.Get(ctx, key)
		switch {
		case err == nil:
			layers, perr := Parse(raw)
			if perr == nil {
				observability.IncStyleResult("redis")
				l.local.Add(key, layers)
				return layers, nil
			}
			l.logger.WarnContext(ctx, "discarding cached style", "key", key, "err", perr)
		case !errors.Is(err, redisstore.ErrMiss):
			l.logger.WarnContext(ctx, "style cache unavailable", "key", key, "err", err)
		}
	}

	raw, err := l.fetch(ctx)
	if err != nil {
		return nil, err
	}
	layers, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	observability.IncStyleResult("fetch")
	l.local.Add(key, layers)

	if l.cache != nil {
		if err := l.cache.Set(ctx, key, raw, l.ttl); err != nil {
			l.logger.WarnContext(ctx, "style cache write failed", "key", key, "err", err)
		}
	}
	l.logger.InfoContext(ctx, "style fetched", "url", l.url, "layers", len(layers))
	return layers, nil
}

func (l *Loader) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", ErrFetch, l.url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStyleBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrFetch, err)
	}
	return body, nil
}

// Invalidate drops the cached style from both tiers so the next Layers call
// refetches it. Maps already active keep the layers they were loaded with.
func (l *Loader) Invalidate(ctx context.Context) error {
	if l.url == "" {
		return nil
	}
	key := Key(l.url)
	l.local.Remove(key)
	l.group.Forget(key)
	if l.cache == nil {
		return nil
	}
	if err := l.cache.Del(ctx, key); err != nil {
		return fmt.Errorf("invalidate style: %w", err)
	}
	l.logger.InfoContext(ctx, "style cache invalidated", "url", l.url)
	return nil
}
