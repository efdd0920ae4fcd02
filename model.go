package tubecore

// CountUnknown is used for view/like/subscriber counts the backend could not
// determine. Absent counts must never surface as negative values other than this.
const CountUnknown int64 = -1

// VideoInfo is an immutable snapshot of a single video's metadata. Instances
// are never mutated after construction; "absent" optional fields hold their
// zero value (or CountUnknown for counts).
type VideoInfo struct {
	ID           string
	Title        string
	Description  string
	ThumbnailURL string
	Channel      ChannelRef
	// Duration in seconds; 0 for live streams and unknown durations.
	Duration   int64
	ViewCount  int64
	LikeCount  int64
	UploadDate string
	IsLive     bool
	IsShort    bool
	Tags       []string
}

// ChannelRef is the minimal channel attribution carried on other items.
type ChannelRef struct {
	ID        string
	Name      string
	AvatarURL string
}

type ChannelInfo struct {
	ID              string
	Name            string
	Description     string
	AvatarURL       string
	BannerURL       string
	SubscriberCount int64
	VideoCount      int64
	IsVerified      bool
}

type PlaylistInfo struct {
	ID           string
	Title        string
	Description  string
	ThumbnailURL string
	Channel      ChannelRef
	VideoCount   int64
	Videos       []VideoInfo
}

type CommentInfo struct {
	ID            string
	Text          string
	AuthorName    string
	AuthorAvatar  string
	AuthorChannel string
	LikeCount     int64
	PublishedTime string
	IsHearted     bool
	IsPinned      bool
	ReplyCount    int
}

// SearchResultKind discriminates the SearchResult sum type.
type SearchResultKind string

const (
	SearchResultVideo    SearchResultKind = "video"
	SearchResultChannel  SearchResultKind = "channel"
	SearchResultPlaylist SearchResultKind = "playlist"
)

// SearchResult is a closed union over {Video, Channel, Playlist}. Exactly one
// payload accessor returns non-nil, matching Kind.
type SearchResult struct {
	kind     SearchResultKind
	video    *VideoInfo
	channel  *ChannelInfo
	playlist *PlaylistInfo
}

func NewVideoResult(v VideoInfo) SearchResult {
	return SearchResult{kind: SearchResultVideo, video: &v}
}

func NewChannelResult(c ChannelInfo) SearchResult {
	return SearchResult{kind: SearchResultChannel, channel: &c}
}

func NewPlaylistResult(p PlaylistInfo) SearchResult {
	return SearchResult{kind: SearchResultPlaylist, playlist: &p}
}

func (r SearchResult) Kind() SearchResultKind { return r.kind }
func (r SearchResult) Video() *VideoInfo      { return r.video }
func (r SearchResult) Channel() *ChannelInfo  { return r.channel }
func (r SearchResult) Playlist() *PlaylistInfo {
	return r.playlist
}

// Page is one page of a paginated result. NextCursor is an opaque
// continuation token; empty means this is the terminal page. A cursor is only
// valid against the operation and parameters that produced it.
type Page[T any] struct {
	Items      []T
	NextCursor string
}

// SearchFilters narrows search results. Zero value means "no filtering".
type SearchFilters struct {
	Kind SearchResultKind // restrict to one result kind; empty = all
}
