// Package resolver turns user-facing requests into domain results. Every
// resolution is an ordered chain of strategies against the extraction
// gateway; classified failures from earlier strategies are absorbed while a
// later strategy can still succeed, and the surfaced failure is always the
// last strategy's.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/freetube/tubecore"
	"github.com/freetube/tubecore/gateway"
)

type Config struct {
	Gateway *gateway.Gateway
	// SessionToken is the opaque credential enabling personalized
	// resolution. Empty degrades to non-personalized equivalents.
	SessionToken string
	// MaxFallbackItems caps pages produced by a non-primary strategy, since
	// the search fallback is an open-ended source.
	MaxFallbackItems int
}

var DefaultConfig = Config{
	MaxFallbackItems: 25,
}

type Resolver struct {
	config Config
	gw     *gateway.Gateway
	log    *zap.SugaredLogger
}

func New(config Config) (*Resolver, error) {
	if config.Gateway == nil {
		return nil, errors.New("resolver requires a gateway")
	}
	if config.MaxFallbackItems <= 0 {
		config.MaxFallbackItems = DefaultConfig.MaxFallbackItems
	}
	return &Resolver{
		config: config,
		gw:     config.Gateway,
		log:    zap.S().Named("resolver"),
	}, nil
}

// A strategy is one attempt in a fallback chain.
type strategy struct {
	name string
	run  func(ctx context.Context) (gateway.RawPage, error)
}

// runChain tries each strategy in order until one yields a non-empty,
// non-error page. An empty result from any strategy except the last is not
// trusted and falls through. If the final strategy fails, its classified
// failure is surfaced carrying the whole chain's errors.
func (r *Resolver) runChain(ctx context.Context, op string, strategies []strategy) (gateway.RawPage, error) {
	var chainErr error
	var lastErr error
	for i, s := range strategies {
		page, err := s.run(ctx)
		if err != nil {
			chainErr = multierror.Append(chainErr, multierror.Prefix(err, fmt.Sprintf("[%s]", s.name)))
			lastErr = err
			r.log.Debugw("strategy failed", "op", op, "strategy", s.name, "err", err)
			continue
		}
		if len(page.Items) == 0 && i < len(strategies)-1 {
			r.log.Debugw("strategy returned no items, falling through", "op", op, "strategy", s.name)
			continue
		}
		if i > 0 {
			// Fallback output: cap the items and drop the continuation, since
			// the cursor would not belong to the primary operation.
			if len(page.Items) > r.config.MaxFallbackItems {
				page.Items = page.Items[:r.config.MaxFallbackItems]
			}
			page.NextCursor = ""
		}
		return page, nil
	}
	if lastErr == nil {
		return gateway.RawPage{}, nil
	}
	return gateway.RawPage{}, tubecore.NewError(tubecore.KindOf(lastErr), op, chainErr)
}

const (
	opTrending      = "trending"
	opSearch        = "search"
	opChannelVideos = "channel_videos"
	opComments      = "comments"
	opSubscriptions = "subscription_feed"
)

// Trending resolves the platform's curated trending feed, falling back to an
// equivalent empty-query search when the kiosk source fails or comes back
// empty.
func (r *Resolver) Trending(ctx context.Context, pageCursor string) (tubecore.Page[tubecore.VideoInfo], error) {
	token := decodeCursor(opTrending, "", pageCursor)
	page, err := r.runChain(ctx, opTrending, []strategy{
		{name: "kiosk", run: func(ctx context.Context) (gateway.RawPage, error) {
			return r.gw.Trending(ctx, token)
		}},
		{name: "search", run: func(ctx context.Context) (gateway.RawPage, error) {
			return r.gw.Search(ctx, "", tubecore.SearchFilters{Kind: tubecore.SearchResultVideo}, "")
		}},
	})
	if err != nil {
		return tubecore.Page[tubecore.VideoInfo]{}, err
	}
	return videoPage(page, opTrending, ""), nil
}

// Search resolves a query into a tagged union of video/channel/playlist
// results. No fallback: a search failure is surfaced directly.
func (r *Resolver) Search(ctx context.Context, query string, filters tubecore.SearchFilters, pageCursor string) (tubecore.Page[tubecore.SearchResult], error) {
	key := query + "|" + string(filters.Kind)
	token := decodeCursor(opSearch, key, pageCursor)
	raw, err := r.gw.Search(ctx, query, filters, token)
	if err != nil {
		return tubecore.Page[tubecore.SearchResult]{}, err
	}
	page := tubecore.Page[tubecore.SearchResult]{
		NextCursor: encodeCursor(opSearch, key, raw.NextCursor),
	}
	for _, item := range raw.Items {
		if result, ok := mapSearchItem(item); ok {
			page.Items = append(page.Items, result)
		}
	}
	return page, nil
}

func (r *Resolver) Video(ctx context.Context, ref tubecore.ResourceRef) (tubecore.VideoInfo, error) {
	raw, err := r.gw.Video(ctx, ref.ID)
	if err != nil {
		return tubecore.VideoInfo{}, err
	}
	return mapVideo(raw), nil
}

// Streams resolves the playable representations for a video. An empty bundle
// is a resolution failure, not a valid success.
func (r *Resolver) Streams(ctx context.Context, ref tubecore.ResourceRef) (tubecore.StreamBundle, error) {
	raw, err := r.gw.Streams(ctx, ref.ID)
	if err != nil {
		return tubecore.StreamBundle{}, err
	}
	bundle := mapStreams(raw)
	if bundle.IsEmpty() {
		return tubecore.StreamBundle{}, tubecore.NewError(tubecore.KindUnavailable, "streams",
			fmt.Errorf("no playable streams for %s", ref))
	}
	return bundle, nil
}

func (r *Resolver) Channel(ctx context.Context, ref tubecore.ResourceRef) (tubecore.ChannelInfo, error) {
	raw, err := r.gw.Channel(ctx, ref.ID)
	if err != nil {
		return tubecore.ChannelInfo{}, err
	}
	return mapChannel(raw), nil
}

func (r *Resolver) ChannelVideos(ctx context.Context, ref tubecore.ResourceRef, pageCursor string) (tubecore.Page[tubecore.VideoInfo], error) {
	token := decodeCursor(opChannelVideos, ref.ID, pageCursor)
	raw, err := r.gw.ChannelVideos(ctx, ref.ID, token)
	if err != nil {
		return tubecore.Page[tubecore.VideoInfo]{}, err
	}
	return videoPage(raw, opChannelVideos, ref.ID), nil
}

func (r *Resolver) Comments(ctx context.Context, ref tubecore.ResourceRef, pageCursor string) (tubecore.Page[tubecore.CommentInfo], error) {
	token := decodeCursor(opComments, ref.ID, pageCursor)
	raw, err := r.gw.Comments(ctx, ref.ID, token)
	if err != nil {
		return tubecore.Page[tubecore.CommentInfo]{}, err
	}
	page := tubecore.Page[tubecore.CommentInfo]{
		NextCursor: encodeCursor(opComments, ref.ID, raw.NextCursor),
	}
	for _, comment := range raw.Comments {
		page.Items = append(page.Items, mapComment(comment))
	}
	return page, nil
}

func (r *Resolver) Playlist(ctx context.Context, ref tubecore.ResourceRef) (tubecore.PlaylistInfo, error) {
	raw, err := r.gw.Playlist(ctx, ref.ID)
	if err != nil {
		return tubecore.PlaylistInfo{}, err
	}
	return mapPlaylist(raw), nil
}

// SubscriptionFeed resolves the personalized feed. Without a credential it
// degrades to Trending rather than erroring. An empty authenticated result
// is itself cause to fall through to the "recommended" search, since the
// primary source is unreliable when personalization signals are thin.
func (r *Resolver) SubscriptionFeed(ctx context.Context, pageCursor string) (tubecore.Page[tubecore.VideoInfo], error) {
	if r.config.SessionToken == "" {
		return r.Trending(ctx, pageCursor)
	}
	token := decodeCursor(opSubscriptions, "", pageCursor)
	page, err := r.runChain(ctx, opSubscriptions, []strategy{
		{name: "feed", run: func(ctx context.Context) (gateway.RawPage, error) {
			return r.gw.SubscriptionFeed(ctx, r.config.SessionToken, token)
		}},
		{name: "search", run: func(ctx context.Context) (gateway.RawPage, error) {
			return r.gw.Search(ctx, "recommended", tubecore.SearchFilters{Kind: tubecore.SearchResultVideo}, "")
		}},
	})
	if err != nil {
		return tubecore.Page[tubecore.VideoInfo]{}, err
	}
	return videoPage(page, opSubscriptions, ""), nil
}

// Suggestions returns search completions for a partial query.
func (r *Resolver) Suggestions(ctx context.Context, query string) ([]string, error) {
	return r.gw.Suggestions(ctx, query)
}

// RelatedVideos resolves the videos the platform recommends alongside ref.
func (r *Resolver) RelatedVideos(ctx context.Context, ref tubecore.ResourceRef) ([]tubecore.VideoInfo, error) {
	raw, err := r.gw.RelatedVideos(ctx, ref.ID)
	if err != nil {
		return nil, err
	}
	videos := make([]tubecore.VideoInfo, 0, len(raw.Items))
	for _, item := range raw.Items {
		if item.Kind != "video" {
			continue
		}
		videos = append(videos, mapVideoItem(item))
	}
	return videos, nil
}

func videoPage(raw gateway.RawPage, op, key string) tubecore.Page[tubecore.VideoInfo] {
	page := tubecore.Page[tubecore.VideoInfo]{
		NextCursor: encodeCursor(op, key, raw.NextCursor),
	}
	for _, item := range raw.Items {
		if item.Kind != "video" {
			continue
		}
		page.Items = append(page.Items, mapVideoItem(item))
	}
	return page
}
