package tubecore

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	ErrNoMatch = errors.New("no resource matched the input")
)

// ResourceKind discriminates what a ResourceRef points at.
type ResourceKind string

const (
	KindVideo    ResourceKind = "video"
	KindChannel  ResourceKind = "channel"
	KindPlaylist ResourceKind = "playlist"
)

// A ResourceRef is the canonical identity of a video, channel or playlist,
// independent of whichever URL shape it was derived from. Two inputs naming
// the same logical resource always normalize to the same ResourceRef.
type ResourceRef struct {
	Kind ResourceKind
	ID   string
}

func VideoRef(id string) ResourceRef    { return ResourceRef{Kind: KindVideo, ID: id} }
func ChannelRefID(id string) ResourceRef { return ResourceRef{Kind: KindChannel, ID: id} }
func PlaylistRef(id string) ResourceRef { return ResourceRef{Kind: KindPlaylist, ID: id} }

func (r ResourceRef) IsZero() bool { return r.ID == "" }

func (r ResourceRef) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

// CanonicalURL returns the canonical web URL for the resource. ParseRef on
// the result yields the same ResourceRef back.
func (r ResourceRef) CanonicalURL() string {
	switch r.Kind {
	case KindVideo:
		return "https://www.youtube.com/watch?v=" + r.ID
	case KindChannel:
		return "https://www.youtube.com/channel/" + r.ID
	case KindPlaylist:
		return "https://www.youtube.com/playlist?list=" + r.ID
	default:
		return ""
	}
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ParseVideoRef normalizes any accepted video input shape to a ResourceRef.
//
// Accepted shapes:
//	http(s?)://(www|m).youtube.com/watch?v={ID}
//	http(s?)://(www|m).youtube.com/(embed|v|shorts|live)/{ID}
//	http(s?)://youtu.be/{ID}
//	{ID}  (bare 11-character video id)
func ParseVideoRef(s string) (ResourceRef, error) {
	s = strings.TrimSpace(s)
	if videoIDPattern.MatchString(s) {
		return VideoRef(s), nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return ResourceRef{}, fmt.Errorf("%w: %v", ErrNoMatch, err)
	}
	var id string
	switch stripWWW(u.Hostname()) {
	case "youtube.com", "m.youtube.com":
		switch {
		case u.Path == "/watch" || u.Path == "/details":
			id = u.Query().Get("v")
		case hasPathPrefix(u.Path, "/embed", "/v", "/shorts", "/live"):
			id = pathSegment(u.Path, 1)
		}
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	}
	if !videoIDPattern.MatchString(id) {
		return ResourceRef{}, fmt.Errorf("%w: not a video URL: %q", ErrNoMatch, s)
	}
	return VideoRef(id), nil
}

// ParseChannelRef accepts /channel/{ID} and /@handle URLs, plus bare channel
// ids ("UC..." prefixed) and bare @handles.
func ParseChannelRef(s string) (ResourceRef, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "UC") && len(s) == 24 {
		return ChannelRefID(s), nil
	}
	if strings.HasPrefix(s, "@") && len(s) > 1 {
		return ChannelRefID(s), nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return ResourceRef{}, fmt.Errorf("%w: %v", ErrNoMatch, err)
	}
	switch stripWWW(u.Hostname()) {
	case "youtube.com", "m.youtube.com":
		if hasPathPrefix(u.Path, "/channel", "/c", "/user") {
			if id := pathSegment(u.Path, 1); id != "" {
				return ChannelRefID(id), nil
			}
		}
		if seg := pathSegment(u.Path, 0); strings.HasPrefix(seg, "@") {
			return ChannelRefID(seg), nil
		}
	}
	return ResourceRef{}, fmt.Errorf("%w: not a channel URL: %q", ErrNoMatch, s)
}

// ParsePlaylistRef accepts playlist/watch URLs carrying a list= parameter and
// bare playlist ids.
func ParsePlaylistRef(s string) (ResourceRef, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "PL") || strings.HasPrefix(s, "RD") || strings.HasPrefix(s, "UU") {
		if !strings.ContainsAny(s, "/?&=") {
			return PlaylistRef(s), nil
		}
	}
	u, err := url.Parse(s)
	if err != nil {
		return ResourceRef{}, fmt.Errorf("%w: %v", ErrNoMatch, err)
	}
	switch stripWWW(u.Hostname()) {
	case "youtube.com", "m.youtube.com":
		if id := u.Query().Get("list"); id != "" {
			return PlaylistRef(id), nil
		}
	}
	return ResourceRef{}, fmt.Errorf("%w: not a playlist URL: %q", ErrNoMatch, s)
}

// ParseRef tries video, then playlist, then channel normalization.
func ParseRef(s string) (ResourceRef, error) {
	if ref, err := ParseVideoRef(s); err == nil {
		return ref, nil
	}
	if ref, err := ParsePlaylistRef(s); err == nil {
		return ref, nil
	}
	if ref, err := ParseChannelRef(s); err == nil {
		return ref, nil
	}
	return ResourceRef{}, fmt.Errorf("%w: %q", ErrNoMatch, s)
}

// ExtractID pulls an id out of a backend-provided URL by convention: the
// value of the named query parameter if present, else the trailing path
// segment. Pure and idempotent: feeding a bare id back in returns it as-is.
func ExtractID(rawURL string, queryParam string) string {
	if rawURL == "" {
		return ""
	}
	if !strings.ContainsAny(rawURL, "/?") {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if queryParam != "" {
		if v := u.Query().Get(queryParam); v != "" {
			return v
		}
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return ""
	}
	segments := strings.Split(path, "/")
	return segments[len(segments)-1]
}

func stripWWW(host string) string {
	return strings.TrimPrefix(host, "www.")
}

func hasPathPrefix(path string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func pathSegment(path string, n int) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if n >= len(segments) {
		return ""
	}
	return segments[n]
}
