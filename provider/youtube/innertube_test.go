package youtube

import (
	"encoding/json"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	require_ "github.com/stretchr/testify/require"
)

func TestParseCount(t *testing.T) {
	assert := assert_.New(t)

	for input, want := range map[string]int64{
		"1,234,567 views":   1_234_567,
		"123 views":         123,
		"1.2K subscribers":  1_200,
		"1.2M subscribers":  1_200_000,
		"3.5B views":        3_500_000_000,
		"42":                42,
		"No views":          -1,
		"":                  -1,
		"   ":               -1,
	} {
		assert.Equal(want, parseCount(input), input)
	}
}

func TestParseTimestamp(t *testing.T) {
	assert := assert_.New(t)

	for input, want := range map[string]int64{
		"0:42":     42,
		"3:32":     212,
		"1:00:00":  3600,
		"1:02:03":  3723,
		"12:34:56": 45296,
		"":         0,
		"LIVE":     0,
	} {
		assert.Equal(want, parseTimestamp(input), input)
	}
}

func TestDig(t *testing.T) {
	assert := assert_.New(t)

	tree := map[string]any{
		"a": map[string]any{
			"b": []any{
				map[string]any{"c": "found"},
			},
		},
	}
	assert.Equal("found", dig(tree, "a", "b", 0, "c"))
	assert.Nil(dig(tree, "a", "missing"))
	assert.Nil(dig(tree, "a", "b", 5, "c"))
	assert.Nil(dig(nil, "a"))
}

func TestFirstText(t *testing.T) {
	assert := assert_.New(t)

	r := map[string]any{
		"simple": map[string]any{"simpleText": "plain"},
		"runs": map[string]any{
			"runs": []any{map[string]any{"text": "from runs"}},
		},
	}
	assert.Equal("plain", firstText(r, "simple"))
	assert.Equal("from runs", firstText(r, "runs"))
	assert.Equal("", firstText(r, "absent"))
}

// searchResponse is a trimmed-down rendition of an innertube search result
// payload: one video, one channel, one playlist, one continuation.
const searchResponse = `{
	"contents": {
		"sectionListRenderer": {
			"contents": [
				{
					"itemSectionRenderer": {
						"contents": [
							{
								"videoRenderer": {
									"videoId": "dQw4w9WgXcQ",
									"title": {"runs": [{"text": "a video"}]},
									"ownerText": {"runs": [{
										"text": "a channel",
										"navigationEndpoint": {"browseEndpoint": {"browseId": "UC0123456789abcdefghijkl"}}
									}]},
									"lengthText": {"simpleText": "3:32"},
									"viewCountText": {"simpleText": "1,000 views"},
									"publishedTimeText": {"simpleText": "2 years ago"},
									"thumbnail": {"thumbnails": [
										{"url": "https://i.ytimg.com/low.jpg"},
										{"url": "https://i.ytimg.com/high.jpg"}
									]}
								}
							},
							{
								"channelRenderer": {
									"channelId": "UC0123456789abcdefghijkl",
									"title": {"simpleText": "a channel"},
									"subscriberCountText": {"simpleText": "1.2M subscribers"}
								}
							},
							{
								"playlistRenderer": {
									"playlistId": "PL0123456789abcdefghij",
									"title": {"simpleText": "a playlist"},
									"videoCount": "25",
									"shortBylineText": {"runs": [{"text": "a channel"}]}
								}
							},
							{
								"somethingUnrecognized": {"videoIdsAreElsewhere": true}
							}
						]
					}
				},
				{
					"continuationItemRenderer": {
						"continuationEndpoint": {
							"continuationCommand": {"token": "CONTINUE123"}
						}
					}
				}
			]
		}
	}
}`

func TestCollectItems(t *testing.T) {
	assert := assert_.New(t)

	var decoded map[string]any
	require_.NoError(t, json.Unmarshal([]byte(searchResponse), &decoded))

	page := collectItems(decoded)
	require_.Len(t, page.Items, 3)
	assert.Equal("CONTINUE123", page.NextCursor)

	video := page.Items[0]
	assert.Equal("video", video.Kind)
	assert.Equal("dQw4w9WgXcQ", video.ID)
	assert.Equal("a video", video.Title)
	assert.Equal("a channel", video.ChannelName)
	assert.Equal("UC0123456789abcdefghijkl", video.ChannelID)
	assert.Equal(int64(212), video.DurationSeconds)
	assert.Equal(int64(1000), video.ViewCount)
	assert.Equal("https://i.ytimg.com/high.jpg", video.ThumbnailURL)
	assert.False(video.IsLive)
	assert.False(video.IsShort)

	channel := page.Items[1]
	assert.Equal("channel", channel.Kind)
	assert.Equal(int64(1_200_000), channel.SubscriberCount)

	playlist := page.Items[2]
	assert.Equal("playlist", playlist.Kind)
	assert.Equal(int64(25), playlist.ItemCount)
}

func TestCollectItemsLiveAndShorts(t *testing.T) {
	assert := assert_.New(t)

	decoded := map[string]any{
		"items": []any{
			map[string]any{
				"videoRenderer": map[string]any{
					"videoId": "live0000000",
					"title":   map[string]any{"runs": []any{map[string]any{"text": "live now"}}},
					"badges": []any{
						map[string]any{"metadataBadgeRenderer": map[string]any{"style": "BADGE_STYLE_TYPE_LIVE_NOW"}},
					},
				},
			},
			map[string]any{
				"videoRenderer": map[string]any{
					"videoId":    "short000000",
					"title":      map[string]any{"runs": []any{map[string]any{"text": "a short"}}},
					"lengthText": map[string]any{"simpleText": "0:35"},
				},
			},
		},
	}
	page := collectItems(decoded)
	require_.Len(t, page.Items, 2)

	byID := map[string]bool{}
	for _, item := range page.Items {
		switch item.ID {
		case "live0000000":
			assert.True(item.IsLive)
			byID[item.ID] = true
		case "short000000":
			assert.True(item.IsShort)
			assert.Equal(int64(35), item.DurationSeconds)
			byID[item.ID] = true
		}
	}
	assert.Len(byID, 2)
}

func TestCollectComments(t *testing.T) {
	assert := assert_.New(t)

	decoded := map[string]any{
		"comments": []any{
			map[string]any{
				"commentRenderer": map[string]any{
					"commentId":   "comment1",
					"contentText": map[string]any{"runs": []any{
						map[string]any{"text": "nice "},
						map[string]any{"text": "video"},
					}},
					"authorText": map[string]any{"simpleText": "someone"},
					"voteCount":  map[string]any{"simpleText": "1.2K"},
					"replyCount": float64(3),
				},
			},
			map[string]any{
				"continuationItemRenderer": map[string]any{
					"continuationEndpoint": map[string]any{
						"continuationCommand": map[string]any{"token": "MORECOMMENTS"},
					},
				},
			},
		},
	}
	page := collectComments(decoded)
	require_.Len(t, page.Comments, 1)
	assert.Equal("comment1", page.Comments[0].ID)
	assert.Equal("nice video", page.Comments[0].Text)
	assert.Equal("someone", page.Comments[0].AuthorName)
	assert.Equal(int64(1200), page.Comments[0].LikeCount)
	assert.Equal(3, page.Comments[0].ReplyCount)
	assert.Equal("MORECOMMENTS", page.NextCursor)
}

func TestVideoItemMissingIDSkipped(t *testing.T) {
	assert := assert_.New(t)

	_, ok := videoItem(map[string]any{"title": map[string]any{"simpleText": "no id"}})
	assert.False(ok)
}
