package twitter

import "time"

// Raw attachment kinds as the provider tags them.
const (
	RawKindPhoto = "photo"
	RawKindVideo = "video"
	RawKindGIF   = "animated_gif"
)

// RawSize is one entry of the provider's size-variant table.
type RawSize struct {
	Width  int
	Height int
}

// RawVariant is one playable rendition of a video or animated gif. The
// provider lists variants in ascending bitrate order.
type RawVariant struct {
	Bitrate     int
	ContentType string
	URL         string
}

// RawVideoInfo carries the video-only provider metadata.
type RawVideoInfo struct {
	DurationMillis int
	Variants       []RawVariant
}

// RawMedia is a provider attachment record before normalization.
type RawMedia struct {
	Kind     string
	MediaURL string
	Sizes    map[string]RawSize
	Original RawSize
	Preview  string
	Video    *RawVideoInfo
}

// StatusData is a fetched tweet as the provider reports it.
type StatusData struct {
	ID           int64
	Text         string
	PostedAt     time.Time
	AuthorID     int64
	AuthorName   string
	AuthorHandle string
	Media        []RawMedia
}
