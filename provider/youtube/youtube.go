// Package youtube implements the gateway.Backend capability against the
// public YouTube web surface: player metadata and stream formats via
// github.com/kkdai/youtube, listings via the innertube web API.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	kkdai "github.com/kkdai/youtube/v2"

	"github.com/freetube/tubecore"
	"github.com/freetube/tubecore/gateway"
)

type Backend struct {
	client    Client
	web       *innertubeClient
	video     *kkdai.Client
	userAgent string
}

// Client re-exports the identity fields the backend needs so callers can
// construct one without importing gateway.
type Client = gateway.Client

var _ gateway.Backend = (*Backend)(nil)

func New() *Backend {
	return &Backend{}
}

// Configure applies the gateway's client identity. Safe to call once;
// the gateway guards against repeats.
func (b *Backend) Configure(client Client) error {
	if client.Locale == "" || client.Region == "" {
		return fmt.Errorf("locale and region are required")
	}
	b.client = client
	b.userAgent = client.UserAgent
	httpClient := &http.Client{
		Transport: &identityTransport{userAgent: client.UserAgent},
		Timeout:   30 * time.Second,
	}
	b.web = &innertubeClient{
		http:      httpClient,
		userAgent: client.UserAgent,
		locale:    client.Locale,
		region:    client.Region,
	}
	b.video = &kkdai.Client{HTTPClient: httpClient}
	return nil
}

// identityTransport stamps every outbound request with the configured user
// agent unless the caller already set one.
type identityTransport struct {
	userAgent string
}

func (t *identityTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	return http.DefaultTransport.RoundTrip(req)
}

func (b *Backend) Trending(ctx context.Context, cursor string) (gateway.RawPage, error) {
	decoded, err := b.web.browse(ctx, browseRequest{BrowseID: browseTrending, Continuation: cursor})
	if err != nil {
		return gateway.RawPage{}, err
	}
	return collectItems(decoded), nil
}

func (b *Backend) Search(ctx context.Context, query string, filters tubecore.SearchFilters, cursor string) (gateway.RawPage, error) {
	decoded, err := b.web.search(ctx, query, cursor)
	if err != nil {
		return gateway.RawPage{}, err
	}
	page := collectItems(decoded)
	if filters.Kind != "" {
		filtered := page.Items[:0]
		for _, item := range page.Items {
			if item.Kind == string(filters.Kind) {
				filtered = append(filtered, item)
			}
		}
		page.Items = filtered
	}
	return page, nil
}

func (b *Backend) Video(ctx context.Context, id string) (gateway.RawVideo, error) {
	v, err := b.video.GetVideoContext(ctx, id)
	if err != nil {
		return gateway.RawVideo{}, translatePlayerError(err)
	}
	raw := gateway.RawVideo{
		ID:              v.ID,
		Title:           v.Title,
		Description:     v.Description,
		ChannelID:       v.ChannelID,
		ChannelName:     v.Author,
		DurationSeconds: int64(v.Duration / time.Second),
		ViewCount:       int64(v.Views),
		LikeCount:       -1,
		IsLive:          v.Duration == 0 && v.HLSManifestURL != "",
	}
	if !v.PublishDate.IsZero() {
		raw.UploadDate = v.PublishDate.Format("2006-01-02")
	}
	if n := len(v.Thumbnails); n > 0 {
		raw.ThumbnailURL = v.Thumbnails[n-1].URL
	}
	return raw, nil
}

func (b *Backend) Streams(ctx context.Context, id string) (gateway.RawStreams, error) {
	v, err := b.video.GetVideoContext(ctx, id)
	if err != nil {
		return gateway.RawStreams{}, translatePlayerError(err)
	}
	raw := gateway.RawStreams{
		HLSManifestURL:  v.HLSManifestURL,
		DashManifestURL: v.DASHManifestURL,
		DurationSeconds: int64(v.Duration / time.Second),
		IsLive:          v.Duration == 0 && v.HLSManifestURL != "",
	}
	for _, f := range v.Formats {
		if f.URL == "" {
			continue
		}
		raw.Streams = append(raw.Streams, gateway.RawStream{
			URL:           f.URL,
			MimeType:      f.MimeType,
			QualityLabel:  f.QualityLabel,
			Bitrate:       f.Bitrate,
			AudioChannels: f.AudioChannels,
			SizeBytes:     f.ContentLength,
		})
	}
	return raw, nil
}

func (b *Backend) Channel(ctx context.Context, id string) (gateway.RawChannel, error) {
	browseID, err := b.web.resolveBrowseID(ctx, id)
	if err != nil {
		return gateway.RawChannel{}, err
	}
	decoded, err := b.web.browse(ctx, browseRequest{BrowseID: browseID})
	if err != nil {
		return gateway.RawChannel{}, err
	}
	header := dig(decoded, "header", "c4TabbedHeaderRenderer")
	name := firstTextAny(header, "title")
	if name == "" {
		return gateway.RawChannel{}, fmt.Errorf("%w: channel %q", gateway.ErrNotFound, id)
	}
	return gateway.RawChannel{
		ID:              browseID,
		Name:            name,
		Description:     text(dig(decoded, "metadata", "channelMetadataRenderer", "description")),
		AvatarURL:       text(dig(header, "avatar", "thumbnails", 0, "url")),
		BannerURL:       text(dig(header, "banner", "thumbnails", 0, "url")),
		SubscriberCount: parseCount(firstTextAny(header, "subscriberCountText")),
		VideoCount:      -1,
		IsVerified:      dig(header, "badges", 0, "metadataBadgeRenderer") != nil,
	}, nil
}

func (b *Backend) ChannelVideos(ctx context.Context, id string, cursor string) (gateway.RawPage, error) {
	req := browseRequest{Continuation: cursor}
	if cursor == "" {
		browseID, err := b.web.resolveBrowseID(ctx, id)
		if err != nil {
			return gateway.RawPage{}, err
		}
		req.BrowseID = browseID
		req.Params = channelVideosParams
	}
	decoded, err := b.web.browse(ctx, req)
	if err != nil {
		return gateway.RawPage{}, err
	}
	return collectItems(decoded), nil
}

func (b *Backend) Comments(ctx context.Context, id string, cursor string) (gateway.RawCommentPage, error) {
	if cursor == "" {
		// The first comments page is only reachable through the watch page's
		// continuation token.
		watch, err := b.web.next(ctx, id, "")
		if err != nil {
			return gateway.RawCommentPage{}, err
		}
		cursor = collectItems(watch).NextCursor
		if cursor == "" {
			// Comments disabled or none at all; an empty page, not an error.
			return gateway.RawCommentPage{}, nil
		}
	}
	decoded, err := b.web.next(ctx, "", cursor)
	if err != nil {
		return gateway.RawCommentPage{}, err
	}
	return collectComments(decoded), nil
}

func (b *Backend) Playlist(ctx context.Context, id string) (gateway.RawPlaylist, error) {
	p, err := b.video.GetPlaylistContext(ctx, id)
	if err != nil {
		return gateway.RawPlaylist{}, translatePlayerError(err)
	}
	raw := gateway.RawPlaylist{
		ID:          p.ID,
		Title:       p.Title,
		ChannelName: p.Author,
		VideoCount:  int64(len(p.Videos)),
	}
	for _, entry := range p.Videos {
		item := gateway.RawItem{
			Kind:            "video",
			ID:              entry.ID,
			URL:             "https://www.youtube.com/watch?v=" + entry.ID,
			Title:           entry.Title,
			ChannelName:     entry.Author,
			DurationSeconds: int64(entry.Duration / time.Second),
			ViewCount:       -1,
			LikeCount:       -1,
		}
		if n := len(entry.Thumbnails); n > 0 {
			item.ThumbnailURL = entry.Thumbnails[n-1].URL
		}
		if raw.ThumbnailURL == "" {
			raw.ThumbnailURL = item.ThumbnailURL
		}
		raw.Items = append(raw.Items, item)
	}
	return raw, nil
}

func (b *Backend) SubscriptionFeed(ctx context.Context, sessionToken string, cursor string) (gateway.RawPage, error) {
	decoded, err := b.web.browse(ctx, browseRequest{
		BrowseID:     browseSubscribed,
		Continuation: cursor,
		SessionToken: sessionToken,
	})
	if err != nil {
		return gateway.RawPage{}, err
	}
	return collectItems(decoded), nil
}

func (b *Backend) Suggestions(ctx context.Context, query string) ([]string, error) {
	return b.web.suggestions(ctx, query)
}

func (b *Backend) RelatedVideos(ctx context.Context, id string) (gateway.RawPage, error) {
	decoded, err := b.web.next(ctx, id, "")
	if err != nil {
		return gateway.RawPage{}, err
	}
	page := collectItems(decoded)
	// The watch page's continuation belongs to comments, not related videos.
	page.NextCursor = ""
	return page, nil
}

// translatePlayerError maps the player library's failures onto the gateway's
// classification sentinels.
func translatePlayerError(err error) error {
	var playability kkdai.ErrPlayabiltyStatus
	if errors.As(err, &playability) {
		return fmt.Errorf("%w: %s", gateway.ErrUnavailable, playability.Reason)
	}
	var playabilityPtr *kkdai.ErrPlayabiltyStatus
	if errors.As(err, &playabilityPtr) {
		return fmt.Errorf("%w: %s", gateway.ErrUnavailable, playabilityPtr.Reason)
	}
	var status kkdai.ErrUnexpectedStatusCode
	if errors.As(err, &status) {
		return &gateway.StatusError{Code: int(status)}
	}
	if strings.Contains(err.Error(), "video id") {
		return fmt.Errorf("%w: %v", gateway.ErrNotFound, err)
	}
	return err
}

// firstTextAny is firstText over a possibly-nil renderer node.
func firstTextAny(v any, key string) string {
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	return firstText(m, key)
}
