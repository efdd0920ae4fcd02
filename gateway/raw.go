package gateway

// Raw result shapes returned by a Backend. They mirror whatever the concrete
// extraction library exposes, flattened to plain fields; mapping them into
// domain types is the resolver's job, not the backend's.

// RawItem is one entry in a listing (feed, search, channel uploads). Kind is
// one of "video", "channel", "playlist"; consumers must skip kinds they do
// not recognize rather than fail.
type RawItem struct {
	Kind         string
	ID           string
	URL          string
	Title        string
	Description  string
	ThumbnailURL string

	ChannelID        string
	ChannelName      string
	ChannelAvatarURL string

	DurationSeconds int64
	ViewCount       int64
	LikeCount       int64
	SubscriberCount int64
	ItemCount       int64
	UploadDate      string
	IsLive          bool
	IsShort         bool
	IsVerified      bool
}

// RawPage is one page of RawItems with the backend's native continuation
// token (empty when there are no further pages).
type RawPage struct {
	Items      []RawItem
	NextCursor string
}

type RawVideo struct {
	ID               string
	Title            string
	Description      string
	ThumbnailURL     string
	ChannelID        string
	ChannelName      string
	ChannelAvatarURL string
	DurationSeconds  int64
	ViewCount        int64
	LikeCount        int64
	UploadDate       string
	IsLive           bool
	Tags             []string
}

type RawStream struct {
	URL           string
	MimeType      string
	QualityLabel  string
	Bitrate       int
	AudioChannels int
	SizeBytes     int64
}

type RawStreams struct {
	Streams         []RawStream
	HLSManifestURL  string
	DashManifestURL string
	DurationSeconds int64
	IsLive          bool
}

type RawChannel struct {
	ID              string
	Name            string
	Description     string
	AvatarURL       string
	BannerURL       string
	SubscriberCount int64
	VideoCount      int64
	IsVerified      bool
}

type RawPlaylist struct {
	ID           string
	Title        string
	Description  string
	ThumbnailURL string
	ChannelID    string
	ChannelName  string
	VideoCount   int64
	Items        []RawItem
}

type RawComment struct {
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

type RawCommentPage struct {
	Comments   []RawComment
	NextCursor string
}
