// Package gateway is the single point of contact with the extraction
// backend. It owns the outbound client identity, bounds every call with a
// timeout, and translates backend failures into the core's classified
// taxonomy. It never retries and never caches; retry policy belongs to the
// resolver's fallback chains.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/freetube/tubecore"
)

// Sentinel errors a Backend can wrap to steer classification. Anything else
// non-network falls back to Transient.
var (
	ErrNotFound    = errors.New("resource not found")
	ErrRateLimited = errors.New("rate limited by backend")
	ErrUnavailable = errors.New("resource unavailable") // geo/age/private
	ErrMalformed   = errors.New("malformed backend response")
)

// StatusError is an HTTP-level failure from a Backend's own transport.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d", e.Code)
}

// Config for a Gateway instance. Timeout bounds every backend call
// (connect + total).
type Config struct {
	Client  Client
	Timeout time.Duration
}

// Client is the process-scoped identity presented to the remote platform. It
// replaces mutable global initialization with explicit configuration.
type Client struct {
	UserAgent string
	Locale    string // BCP-47, e.g. "en"
	Region    string // ISO 3166-1 alpha-2, e.g. "US"
}

var DefaultConfig = Config{
	Client: Client{
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64; rv:102.0) Gecko/20100101 Firefox/102.0",
		Locale:    "en",
		Region:    "US",
	},
	Timeout: 15 * time.Second,
}

// A Backend is the opaque extraction capability: given a canonical resource
// id or query, return a typed raw result or fail. Implementations own all
// platform-specific parsing; they should wrap the sentinel errors above where
// they can tell the failure class apart.
type Backend interface {
	Configure(client Client) error

	Trending(ctx context.Context, cursor string) (RawPage, error)
	Search(ctx context.Context, query string, filters tubecore.SearchFilters, cursor string) (RawPage, error)
	Video(ctx context.Context, id string) (RawVideo, error)
	Streams(ctx context.Context, id string) (RawStreams, error)
	Channel(ctx context.Context, id string) (RawChannel, error)
	ChannelVideos(ctx context.Context, id string, cursor string) (RawPage, error)
	Comments(ctx context.Context, id string, cursor string) (RawCommentPage, error)
	Playlist(ctx context.Context, id string) (RawPlaylist, error)
	SubscriptionFeed(ctx context.Context, sessionToken string, cursor string) (RawPage, error)
	Suggestions(ctx context.Context, query string) ([]string, error)
	RelatedVideos(ctx context.Context, id string) (RawPage, error)
}

type Gateway struct {
	config  Config
	backend Backend
	log     *zap.SugaredLogger

	initOnce sync.Once
	initErr  error
}

func New(config Config, backend Backend) *Gateway {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig.Timeout
	}
	return &Gateway{
		config:  config,
		backend: backend,
		log:     zap.S().Named("gateway"),
	}
}

// EnsureInit configures the backend with the gateway's client identity,
// exactly once no matter how many callers race into it.
func (g *Gateway) EnsureInit() error {
	g.initOnce.Do(func() {
		g.initErr = g.backend.Configure(g.config.Client)
	})
	return g.initErr
}

func (g *Gateway) Trending(ctx context.Context, cursor string) (RawPage, error) {
	return call(g, ctx, "trending", func(ctx context.Context) (RawPage, error) {
		return g.backend.Trending(ctx, cursor)
	})
}

func (g *Gateway) Search(ctx context.Context, query string, filters tubecore.SearchFilters, cursor string) (RawPage, error) {
	return call(g, ctx, "search", func(ctx context.Context) (RawPage, error) {
		return g.backend.Search(ctx, query, filters, cursor)
	})
}

func (g *Gateway) Video(ctx context.Context, id string) (RawVideo, error) {
	return call(g, ctx, "video", func(ctx context.Context) (RawVideo, error) {
		return g.backend.Video(ctx, id)
	})
}

func (g *Gateway) Streams(ctx context.Context, id string) (RawStreams, error) {
	return call(g, ctx, "streams", func(ctx context.Context) (RawStreams, error) {
		return g.backend.Streams(ctx, id)
	})
}

func (g *Gateway) Channel(ctx context.Context, id string) (RawChannel, error) {
	return call(g, ctx, "channel", func(ctx context.Context) (RawChannel, error) {
		return g.backend.Channel(ctx, id)
	})
}

func (g *Gateway) ChannelVideos(ctx context.Context, id string, cursor string) (RawPage, error) {
	return call(g, ctx, "channel_videos", func(ctx context.Context) (RawPage, error) {
		return g.backend.ChannelVideos(ctx, id, cursor)
	})
}

func (g *Gateway) Comments(ctx context.Context, id string, cursor string) (RawCommentPage, error) {
	return call(g, ctx, "comments", func(ctx context.Context) (RawCommentPage, error) {
		return g.backend.Comments(ctx, id, cursor)
	})
}

func (g *Gateway) Playlist(ctx context.Context, id string) (RawPlaylist, error) {
	return call(g, ctx, "playlist", func(ctx context.Context) (RawPlaylist, error) {
		return g.backend.Playlist(ctx, id)
	})
}

func (g *Gateway) SubscriptionFeed(ctx context.Context, sessionToken string, cursor string) (RawPage, error) {
	return call(g, ctx, "subscription_feed", func(ctx context.Context) (RawPage, error) {
		return g.backend.SubscriptionFeed(ctx, sessionToken, cursor)
	})
}

func (g *Gateway) Suggestions(ctx context.Context, query string) ([]string, error) {
	return call(g, ctx, "suggestions", func(ctx context.Context) ([]string, error) {
		return g.backend.Suggestions(ctx, query)
	})
}

func (g *Gateway) RelatedVideos(ctx context.Context, id string) (RawPage, error) {
	return call(g, ctx, "related_videos", func(ctx context.Context) (RawPage, error) {
		return g.backend.RelatedVideos(ctx, id)
	})
}

// call wraps one backend invocation with init, timeout and classification.
func call[T any](g *Gateway, ctx context.Context, op string, f func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := g.EnsureInit(); err != nil {
		return zero, tubecore.NewError(tubecore.KindTransient, op, err)
	}
	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()
	result, err := f(ctx)
	if err != nil {
		classified := classify(op, err)
		g.log.Debugw("backend call failed", "op", op, "kind", tubecore.KindOf(classified), "err", err)
		return zero, classified
	}
	return result, nil
}

// classify maps a backend failure onto the extraction taxonomy. Classified
// errors pass through untouched.
func classify(op string, err error) error {
	var ce *tubecore.Error
	if errors.As(err, &ce) {
		return err
	}
	kind := tubecore.KindTransient
	var statusErr *StatusError
	var netErr net.Error
	switch {
	case errors.Is(err, ErrNotFound):
		kind = tubecore.KindNotFound
	case errors.Is(err, ErrRateLimited):
		kind = tubecore.KindRateLimited
	case errors.Is(err, ErrUnavailable):
		kind = tubecore.KindUnavailable
	case errors.Is(err, ErrMalformed):
		kind = tubecore.KindMalformed
	case errors.As(err, &statusErr):
		kind = classifyStatus(statusErr.Code)
	case errors.Is(err, context.DeadlineExceeded):
		kind = tubecore.KindTransient
	case errors.As(err, &netErr):
		kind = tubecore.KindTransient
	}
	return tubecore.NewError(kind, op, err)
}

func classifyStatus(code int) tubecore.ErrorKind {
	switch {
	case code == 404 || code == 410:
		return tubecore.KindNotFound
	case code == 429:
		return tubecore.KindRateLimited
	case code == 401 || code == 403 || code == 451:
		return tubecore.KindUnavailable
	case code >= 500:
		return tubecore.KindTransient
	default:
		return tubecore.KindMalformed
	}
}
