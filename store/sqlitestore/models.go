package sqlitestore

import "time"

// Subscription is a channel the user is subscribed to.
type Subscription struct {
	ChannelID    string `gorm:"primaryKey"`
	Name         string
	AvatarURL    string
	SubscribedAt time.Time
}

func (Subscription) TableName() string { return "subscription" }

// WatchHistoryRecord remembers that a video was watched, and how far.
type WatchHistoryRecord struct {
	VideoID         string `gorm:"primaryKey"`
	Title           string
	ChannelID       string
	ChannelName     string
	ThumbnailURL    string
	DurationSeconds int64
	PositionSeconds int64
	WatchedAt       time.Time `gorm:"index"`
}

func (WatchHistoryRecord) TableName() string { return "watch_history" }

// WatchLaterRecord is a video queued for later viewing.
type WatchLaterRecord struct {
	VideoID         string `gorm:"primaryKey"`
	Title           string
	ChannelName     string
	ThumbnailURL    string
	DurationSeconds int64
	AddedAt         time.Time `gorm:"index"`
}

func (WatchLaterRecord) TableName() string { return "watch_later" }

// SearchHistoryRecord is a previously executed search query. Queries are
// unique; repeating a search only bumps its timestamp.
type SearchHistoryRecord struct {
	ID         string    `gorm:"primaryKey"`
	Query      string    `gorm:"uniqueIndex"`
	SearchedAt time.Time `gorm:"index"`
}

func (SearchHistoryRecord) TableName() string { return "search_history" }
