// Package sqlitestore persists the user's library in a SQLite database:
// subscriptions, watch history, the watch later queue and search history.
package sqlitestore

import (
	"embed"
	"errors"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"moul.io/zapgorm2"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

type Store struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(path string) (*Store, error) {
	gormLogger := zapgorm2.New(zap.L().Named("gorm"))
	gormLogger.SetAsDefault()
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, err
	}
	return &Store{
		db:  db,
		log: zap.S().Named("sqlitestore"),
	}, nil
}

// Migrate brings the database schema up to date.
func (s *Store) Migrate() error {
	s.log.Debug("running database migrations")
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	fs, err := iofs.New(embedMigrations, "migrations")
	if err != nil {
		return err
	}
	driver, err := sqlite3.WithInstance(sqlDB, &sqlite3.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", fs, "sqlite3", driver)
	if err != nil {
		return err
	}
	err = m.Up()
	switch err {
	case nil:
		s.log.Debug("database migration complete")
	case migrate.ErrNoChange:
		s.log.Debug("no database migration required")
	default:
		return err
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Subscribe adds or refreshes a channel subscription.
func (s *Store) Subscribe(sub Subscription) error {
	if sub.SubscribedAt.IsZero() {
		sub.SubscribedAt = time.Now()
	}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&sub).Error
}

func (s *Store) Unsubscribe(channelID string) error {
	return s.db.Delete(&Subscription{ChannelID: channelID}).Error
}

func (s *Store) IsSubscribed(channelID string) (bool, error) {
	var count int64
	err := s.db.Model(&Subscription{}).Where("channel_id = ?", channelID).Count(&count).Error
	return count > 0, err
}

// ListSubscriptions returns all subscriptions ordered by channel name.
func (s *Store) ListSubscriptions() ([]Subscription, error) {
	var subs []Subscription
	err := s.db.Order("name").Find(&subs).Error
	return subs, err
}

// RecordWatch adds or updates a watch history entry; an existing entry for
// the same video keeps its identity but gets the new position and timestamp.
func (s *Store) RecordWatch(rec WatchHistoryRecord) error {
	if rec.WatchedAt.IsZero() {
		rec.WatchedAt = time.Now()
	}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
}

// GetWatch returns (nil, nil) if the video has no watch history entry.
func (s *Store) GetWatch(videoID string) (*WatchHistoryRecord, error) {
	var rec WatchHistoryRecord
	err := s.db.First(&rec, "video_id = ?", videoID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListWatchHistory returns the most recently watched videos first, up to
// limit entries (no limit if <= 0).
func (s *Store) ListWatchHistory(limit int) ([]WatchHistoryRecord, error) {
	var records []WatchHistoryRecord
	q := s.db.Order("watched_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&records).Error
	return records, err
}

func (s *Store) RemoveWatch(videoID string) error {
	return s.db.Delete(&WatchHistoryRecord{VideoID: videoID}).Error
}

func (s *Store) ClearWatchHistory() error {
	return s.db.Where("1 = 1").Delete(&WatchHistoryRecord{}).Error
}

// AddWatchLater queues a video; re-adding an already queued video is a no-op
// that keeps the original queue position.
func (s *Store) AddWatchLater(rec WatchLaterRecord) error {
	if rec.AddedAt.IsZero() {
		rec.AddedAt = time.Now()
	}
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error
}

func (s *Store) RemoveWatchLater(videoID string) error {
	return s.db.Delete(&WatchLaterRecord{VideoID: videoID}).Error
}

func (s *Store) InWatchLater(videoID string) (bool, error) {
	var count int64
	err := s.db.Model(&WatchLaterRecord{}).Where("video_id = ?", videoID).Count(&count).Error
	return count > 0, err
}

// ListWatchLater returns the queue in the order videos were added.
func (s *Store) ListWatchLater() ([]WatchLaterRecord, error) {
	var records []WatchLaterRecord
	err := s.db.Order("added_at").Find(&records).Error
	return records, err
}

// RecordSearch remembers a search query; repeating a query bumps its
// timestamp instead of creating a duplicate row.
func (s *Store) RecordSearch(query string) error {
	if query == "" {
		return nil
	}
	rec := SearchHistoryRecord{
		ID:         uuid.NewString(),
		Query:      query,
		SearchedAt: time.Now(),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "query"}},
		DoUpdates: clause.AssignmentColumns([]string{"searched_at"}),
	}).Create(&rec).Error
}

// ListRecentSearches returns the most recent queries first, up to limit
// entries (no limit if <= 0).
func (s *Store) ListRecentSearches(limit int) ([]string, error) {
	var records []SearchHistoryRecord
	q := s.db.Order("searched_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	queries := make([]string, 0, len(records))
	for _, rec := range records {
		queries = append(queries, rec.Query)
	}
	return queries, nil
}

func (s *Store) RemoveSearch(query string) error {
	return s.db.Where("query = ?", query).Delete(&SearchHistoryRecord{}).Error
}

func (s *Store) ClearSearchHistory() error {
	return s.db.Where("1 = 1").Delete(&SearchHistoryRecord{}).Error
}
