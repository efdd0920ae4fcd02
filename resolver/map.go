package resolver

import (
	"github.com/freetube/tubecore"
	"github.com/freetube/tubecore/gateway"
)

// Mapping from backend-native raw items to domain types. Absent optional
// fields degrade to zero values; nothing here touches the network.

func mapVideoItem(item gateway.RawItem) tubecore.VideoInfo {
	return tubecore.VideoInfo{
		ID:           tubecore.ExtractID(item.ID, "v"),
		Title:        item.Title,
		Description:  item.Description,
		ThumbnailURL: item.ThumbnailURL,
		Channel: tubecore.ChannelRef{
			ID:        tubecore.ExtractID(item.ChannelID, ""),
			Name:      item.ChannelName,
			AvatarURL: item.ChannelAvatarURL,
		},
		Duration:   nonNegative(item.DurationSeconds),
		ViewCount:  countOrUnknown(item.ViewCount),
		LikeCount:  countOrUnknown(item.LikeCount),
		UploadDate: item.UploadDate,
		IsLive:     item.IsLive,
		IsShort:    item.IsShort,
	}
}

func mapChannelItem(item gateway.RawItem) tubecore.ChannelInfo {
	return tubecore.ChannelInfo{
		ID:              tubecore.ExtractID(item.ID, ""),
		Name:            item.Title,
		Description:     item.Description,
		AvatarURL:       item.ThumbnailURL,
		SubscriberCount: countOrUnknown(item.SubscriberCount),
		VideoCount:      countOrUnknown(item.ItemCount),
		IsVerified:      item.IsVerified,
	}
}

func mapPlaylistItem(item gateway.RawItem) tubecore.PlaylistInfo {
	return tubecore.PlaylistInfo{
		ID:           tubecore.ExtractID(item.ID, "list"),
		Title:        item.Title,
		Description:  item.Description,
		ThumbnailURL: item.ThumbnailURL,
		Channel: tubecore.ChannelRef{
			ID:   tubecore.ExtractID(item.ChannelID, ""),
			Name: item.ChannelName,
		},
		VideoCount: countOrUnknown(item.ItemCount),
	}
}

func mapSearchItem(item gateway.RawItem) (tubecore.SearchResult, bool) {
	switch item.Kind {
	case "video":
		return tubecore.NewVideoResult(mapVideoItem(item)), true
	case "channel":
		return tubecore.NewChannelResult(mapChannelItem(item)), true
	case "playlist":
		return tubecore.NewPlaylistResult(mapPlaylistItem(item)), true
	default:
		// Unknown kinds are skipped, never surfaced as errors.
		return tubecore.SearchResult{}, false
	}
}

func mapVideo(raw gateway.RawVideo) tubecore.VideoInfo {
	return tubecore.VideoInfo{
		ID:           raw.ID,
		Title:        raw.Title,
		Description:  raw.Description,
		ThumbnailURL: raw.ThumbnailURL,
		Channel: tubecore.ChannelRef{
			ID:        tubecore.ExtractID(raw.ChannelID, ""),
			Name:      raw.ChannelName,
			AvatarURL: raw.ChannelAvatarURL,
		},
		Duration:   nonNegative(raw.DurationSeconds),
		ViewCount:  countOrUnknown(raw.ViewCount),
		LikeCount:  countOrUnknown(raw.LikeCount),
		UploadDate: raw.UploadDate,
		IsLive:     raw.IsLive,
		IsShort:    raw.DurationSeconds > 0 && raw.DurationSeconds < 60,
		Tags:       raw.Tags,
	}
}

func mapChannel(raw gateway.RawChannel) tubecore.ChannelInfo {
	return tubecore.ChannelInfo{
		ID:              raw.ID,
		Name:            raw.Name,
		Description:     raw.Description,
		AvatarURL:       raw.AvatarURL,
		BannerURL:       raw.BannerURL,
		SubscriberCount: countOrUnknown(raw.SubscriberCount),
		VideoCount:      countOrUnknown(raw.VideoCount),
		IsVerified:      raw.IsVerified,
	}
}

func mapPlaylist(raw gateway.RawPlaylist) tubecore.PlaylistInfo {
	info := tubecore.PlaylistInfo{
		ID:           raw.ID,
		Title:        raw.Title,
		Description:  raw.Description,
		ThumbnailURL: raw.ThumbnailURL,
		Channel: tubecore.ChannelRef{
			ID:   tubecore.ExtractID(raw.ChannelID, ""),
			Name: raw.ChannelName,
		},
		VideoCount: countOrUnknown(raw.VideoCount),
	}
	for _, item := range raw.Items {
		info.Videos = append(info.Videos, mapVideoItem(item))
	}
	return info
}

func mapComment(raw gateway.RawComment) tubecore.CommentInfo {
	return tubecore.CommentInfo{
		ID:            raw.ID,
		Text:          raw.Text,
		AuthorName:    raw.AuthorName,
		AuthorAvatar:  raw.AuthorAvatar,
		AuthorChannel: tubecore.ExtractID(raw.AuthorChannel, ""),
		LikeCount:     countOrUnknown(raw.LikeCount),
		PublishedTime: raw.PublishedTime,
		IsHearted:     raw.IsHearted,
		IsPinned:      raw.IsPinned,
		ReplyCount:    raw.ReplyCount,
	}
}

func mapStreams(raw gateway.RawStreams) tubecore.StreamBundle {
	bundle := tubecore.StreamBundle{
		HLSManifestURL:  raw.HLSManifestURL,
		DashManifestURL: raw.DashManifestURL,
	}
	for _, s := range raw.Streams {
		stream := tubecore.Stream{
			URL:       s.URL,
			MimeType:  s.MimeType,
			Quality:   s.QualityLabel,
			Bitrate:   s.Bitrate,
			SizeBytes: nonNegative(s.SizeBytes),
		}
		switch {
		case isAudioMime(s.MimeType):
			stream.AudioOnly = true
			bundle.AudioOnly = append(bundle.AudioOnly, stream)
		case s.AudioChannels == 0:
			stream.VideoOnly = true
			bundle.VideoOnly = append(bundle.VideoOnly, stream)
		default:
			bundle.Progressive = append(bundle.Progressive, stream)
		}
	}
	return bundle
}

func isAudioMime(mime string) bool {
	return len(mime) >= 6 && mime[:6] == "audio/"
}

func countOrUnknown(n int64) int64 {
	if n < 0 {
		return tubecore.CountUnknown
	}
	return n
}

func nonNegative(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
