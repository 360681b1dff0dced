// Package store persists users and cached tweets in a local sqlite file.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps the gorm handle with the repository operations the bot needs.
type Store struct {
	db *gorm.DB
}

// Open connects to the sqlite file at path and migrates the schema.
func Open(path string) (*Store, error) {
	logrus.Debugf("Opening database at %s", path)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("error opening database %s: %w", path, err)
	}

	if err := db.AutoMigrate(&User{}, &Tweet{}); err != nil {
		return nil, fmt.Errorf("error migrating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// CreateUser inserts a new user row.
func (s *Store) CreateUser(user *User) error {
	if err := s.db.Create(user).Error; err != nil {
		return fmt.Errorf("error creating user %s: %w", user.Username, err)
	}
	return nil
}

// UserByUsername returns the user or nil when unknown.
func (s *Store) UserByUsername(username string) (*User, error) {
	var user User
	err := s.db.Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading user %s: %w", username, err)
	}
	return &user, nil
}

// UserByTelegramID returns the user bound to a Telegram id, or nil.
func (s *Store) UserByTelegramID(telegramID int64) (*User, error) {
	var user User
	err := s.db.Where("telegram_id = ?", telegramID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading user by telegram id %d: %w", telegramID, err)
	}
	return &user, nil
}

// Users returns all registered users.
func (s *Store) Users() ([]User, error) {
	var users []User
	if err := s.db.Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	return users, nil
}

// DeleteUser removes a user by username.
func (s *Store) DeleteUser(username string) error {
	res := s.db.Where("username = ?", username).Delete(&User{})
	if res.Error != nil {
		return fmt.Errorf("error deleting user %s: %w", username, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %s not found", username)
	}
	return nil
}

// SaveCookies persists a refreshed cookie blob onto the user row.
func (s *Store) SaveCookies(user *User, cookies string) error {
	user.Cookies = cookies
	if err := s.db.Model(user).Update("cookies", cookies).Error; err != nil {
		return fmt.Errorf("error saving cookies for %s: %w", user.Username, err)
	}
	return nil
}

// TweetByTweetID returns the cached tweet or nil when the provider id is
// unknown.
func (s *Store) TweetByTweetID(tweetID int64) (*Tweet, error) {
	var tweet Tweet
	err := s.db.Where("tweet_id = ?", tweetID).First(&tweet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading tweet %d: %w", tweetID, err)
	}
	return &tweet, nil
}

// SaveTweet inserts a newly resolved tweet.
func (s *Store) SaveTweet(tweet *Tweet) error {
	if err := s.db.Create(tweet).Error; err != nil {
		return fmt.Errorf("error saving tweet %d: %w", tweet.TweetID, err)
	}
	return nil
}

// InsertTimeline stores every tweet whose provider id is not yet known,
// inside one transaction so two concurrent resolutions cannot race the same
// id into a duplicate row. Known ids are replaced with their cached rows;
// the input order is preserved.
func (s *Store) InsertTimeline(tweets []*Tweet) ([]*Tweet, error) {
	out := make([]*Tweet, 0, len(tweets))
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, tweet := range tweets {
			var existing Tweet
			err := tx.Where("tweet_id = ?", tweet.TweetID).First(&existing).Error
			if err == nil {
				out = append(out, &existing)
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if err := tx.Create(tweet).Error; err != nil {
				return err
			}
			out = append(out, tweet)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error inserting timeline batch: %w", err)
	}
	return out, nil
}

// UpdateMedia persists the media descriptor list, used to cache Telegram
// file ids after a first send.
func (s *Store) UpdateMedia(tweet *Tweet) error {
	if err := s.db.Model(tweet).Update("media", tweet.Media).Error; err != nil {
		return fmt.Errorf("error updating media for tweet %d: %w", tweet.TweetID, err)
	}
	return nil
}

// SetProcessed flips the processed flag and stamps the time.
func (s *Store) SetProcessed(tweet *Tweet, processed bool) error {
	updates := map[string]any{"processed": processed, "processed_at": nil}
	if processed {
		now := time.Now().UTC()
		updates["processed_at"] = &now
		tweet.ProcessedAt = &now
	} else {
		tweet.ProcessedAt = nil
	}
	tweet.Processed = processed
	if err := s.db.Model(tweet).Updates(updates).Error; err != nil {
		return fmt.Errorf("error marking tweet %d processed=%v: %w", tweet.TweetID, processed, err)
	}
	return nil
}

// ResetProcessed clears the processed flag on every cached tweet.
func (s *Store) ResetProcessed() error {
	err := s.db.Model(&Tweet{}).Where("processed = ?", true).
		Updates(map[string]any{"processed": false, "processed_at": nil}).Error
	if err != nil {
		return fmt.Errorf("error resetting processed flags: %w", err)
	}
	return nil
}

// LatestUnprocessed returns the most recent unprocessed tweet, or nil.
func (s *Store) LatestUnprocessed() (*Tweet, error) {
	var tweet Tweet
	err := s.db.Where("processed = ?", false).
		Order("posted_at DESC").First(&tweet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading latest unprocessed tweet: %w", err)
	}
	return &tweet, nil
}

// UnprocessedBefore returns the unprocessed tweet with the nearest strictly
// earlier posting time, or nil.
func (s *Store) UnprocessedBefore(t time.Time) (*Tweet, error) {
	var tweet Tweet
	err := s.db.Where("processed = ? AND posted_at < ?", false, t).
		Order("posted_at DESC").First(&tweet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading unprocessed tweet before %s: %w", t, err)
	}
	return &tweet, nil
}

// UnprocessedAfter returns the unprocessed tweet with the nearest strictly
// later posting time, or nil.
func (s *Store) UnprocessedAfter(t time.Time) (*Tweet, error) {
	var tweet Tweet
	err := s.db.Where("processed = ? AND posted_at > ?", false, t).
		Order("posted_at ASC").First(&tweet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading unprocessed tweet after %s: %w", t, err)
	}
	return &tweet, nil
}
