package tubecore

import "strings"

// Stream is one playable representation of a video.
type Stream struct {
	URL        string
	MimeType   string
	Quality    string // resolution label, e.g. "720p"; bitrate label for audio
	Bitrate    int
	AudioOnly  bool
	VideoOnly  bool
	SizeBytes  int64 // 0 when the backend does not declare a length
}

// StreamBundle holds every playable representation resolved for one video.
// An empty bundle is a resolution failure, never a valid success.
type StreamBundle struct {
	Progressive []Stream // combined video+audio
	VideoOnly   []Stream
	AudioOnly   []Stream
	// Adaptive manifests; either may be empty. Required for true live content.
	HLSManifestURL  string
	DashManifestURL string
}

// IsEmpty reports whether the bundle contains no playable representation.
func (b StreamBundle) IsEmpty() bool {
	return len(b.Progressive) == 0 && len(b.VideoOnly) == 0 && len(b.AudioOnly) == 0 &&
		b.HLSManifestURL == "" && b.DashManifestURL == ""
}

// QualityPref is a requested resolution label like "720p". Matching is a
// case-insensitive substring test against each stream's quality label.
type QualityPref string

// SelectPlaybackURL chooses the URL to hand to a player:
//
//	1. an adaptive manifest, if any (HLS preferred over DASH);
//	2. the progressive stream matching pref;
//	3. the highest-bitrate progressive stream.
//
// Returns ("", false) only when the bundle has no manifest and no progressive
// streams at all, which callers must treat as playback-unavailable.
func SelectPlaybackURL(b StreamBundle, pref QualityPref) (string, bool) {
	if b.HLSManifestURL != "" {
		return b.HLSManifestURL, true
	}
	if b.DashManifestURL != "" {
		return b.DashManifestURL, true
	}
	if s, ok := matchQuality(b.Progressive, pref); ok {
		return s.URL, true
	}
	if s, ok := highestBitrate(b.Progressive); ok {
		return s.URL, true
	}
	return "", false
}

// SelectAudioURL chooses the highest-bitrate audio-only stream, for
// background or audio-only playback.
func SelectAudioURL(b StreamBundle) (string, bool) {
	if s, ok := highestBitrate(b.AudioOnly); ok {
		return s.URL, true
	}
	return "", false
}

// IsLive reports whether the resolved content is a live stream: either the
// metadata says so, or the bundle is manifest-only with no resolvable
// duration. Seek-relative controls are meaningless when this is true; it is
// the caller's job to disable them.
func IsLive(v VideoInfo, b StreamBundle) bool {
	if v.IsLive {
		return true
	}
	manifestOnly := (b.HLSManifestURL != "" || b.DashManifestURL != "") &&
		len(b.Progressive) == 0 && len(b.VideoOnly) == 0
	return manifestOnly && v.Duration <= 0
}

func matchQuality(streams []Stream, pref QualityPref) (Stream, bool) {
	if pref == "" {
		return Stream{}, false
	}
	want := strings.ToLower(string(pref))
	for _, s := range streams {
		if strings.Contains(strings.ToLower(s.Quality), want) {
			return s, true
		}
	}
	return Stream{}, false
}

func highestBitrate(streams []Stream) (Stream, bool) {
	if len(streams) == 0 {
		return Stream{}, false
	}
	best := streams[0]
	for _, s := range streams[1:] {
		if s.Bitrate > best.Bitrate {
			best = s
		}
	}
	return best, true
}
