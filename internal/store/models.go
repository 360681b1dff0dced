package store

import (
	"time"

	"gorm.io/datatypes"
)

// MediaKind tags a normalized attachment.
type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
	MediaGIF   MediaKind = "gif"
)

// Media is the canonical attachment descriptor, independent of the
// provider-specific shape. It lives as a JSON column on its owning Tweet.
type Media struct {
	Kind         MediaKind `json:"kind"`
	URL          string    `json:"url"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	// Duration in seconds, videos only.
	Duration int `json:"duration,omitempty"`
	// Size in bytes, 0 when the probe failed.
	Size int64 `json:"size,omitempty"`
	// TelegramFileID is filled after the first successful send so repeat
	// sends reuse the already-uploaded asset.
	TelegramFileID string `json:"telegram_file_id,omitempty"`
}

// Tweet is the cached provider record. TweetID is the provider's numeric id
// and is unique: resolving a known id returns the stored row, never a
// duplicate.
type Tweet struct {
	ID           uint  `gorm:"primaryKey"`
	TweetID      int64 `gorm:"uniqueIndex;not null"`
	Text         string
	PostedAt     time.Time `gorm:"index"`
	AuthorID     int64
	AuthorName   string
	AuthorHandle string

	Media datatypes.JSONSlice[Media]

	Processed   bool `gorm:"index;default:false"`
	ProcessedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// User is a registered bot user. A provider login requires either the full
// twitter credential triple or a stored cookie blob.
type User struct {
	ID         uint   `gorm:"primaryKey"`
	Username   string `gorm:"uniqueIndex;not null"`
	TelegramID int64  `gorm:"uniqueIndex"`

	TwitterUsername string
	TwitterEmail    string
	TwitterPassword string
	// Cookies holds the JSON-serialized provider session cookies, refreshed
	// on every credential login.
	Cookies string `gorm:"size:4096"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasCredentials reports whether the full credential triple is present.
func (u *User) HasCredentials() bool {
	return u.TwitterUsername != "" && u.TwitterEmail != "" && u.TwitterPassword != ""
}

// HasCookies reports whether a serialized session is stored.
func (u *User) HasCookies() bool {
	return u.Cookies != ""
}
