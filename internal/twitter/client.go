// Package twitter binds the provider scraping client and owns the per-user
// session lifecycle.
package twitter

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	twitterscraper "github.com/imperatrona/twitter-scraper"
	"github.com/sirupsen/logrus"
)

var (
	// ErrTweetNotAvailable signals a tweet the provider reports as deleted,
	// protected or otherwise gone. Callers treat it as a definitive null,
	// not a retryable failure.
	ErrTweetNotAvailable = errors.New("tweet not available")

	// ErrMissingCredentials signals a user with neither a stored cookie
	// blob nor the full credential triple.
	ErrMissingCredentials = errors.New("missing twitter credentials")
)

// Client is the capability set the pipeline needs from the provider:
// authenticate, fetch-by-id, fetch-timeline. Any binding satisfying it works.
type Client interface {
	Login(username, email, password string) error
	IsLoggedIn() bool
	Cookies() []*http.Cookie
	SetCookies(cookies []*http.Cookie)
	Tweet(id string) (*StatusData, error)
	HomeTimeline(count int) ([]*StatusData, error)
}

// scraperClient binds Client to the twitter-scraper library.
type scraperClient struct {
	scraper *twitterscraper.Scraper
}

func newScraperClient() Client {
	return &scraperClient{scraper: twitterscraper.New()}
}

func (c *scraperClient) Login(username, email, password string) error {
	var err error
	if email != "" {
		err = c.scraper.Login(username, password, email)
	} else {
		err = c.scraper.Login(username, password)
	}
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	return nil
}

func (c *scraperClient) IsLoggedIn() bool {
	return c.scraper.IsLoggedIn()
}

func (c *scraperClient) Cookies() []*http.Cookie {
	return c.scraper.GetCookies()
}

func (c *scraperClient) SetCookies(cookies []*http.Cookie) {
	c.scraper.SetCookies(cookies)
}

func (c *scraperClient) Tweet(id string) (*StatusData, error) {
	tweet, err := c.scraper.GetTweet(id)
	if err != nil {
		if isNotAvailable(err) {
			return nil, ErrTweetNotAvailable
		}
		return nil, fmt.Errorf("error fetching tweet %s: %w", id, err)
	}
	if tweet == nil {
		return nil, ErrTweetNotAvailable
	}
	return convertTweet(tweet), nil
}

func (c *scraperClient) HomeTimeline(count int) ([]*StatusData, error) {
	tweets, _, err := c.scraper.FetchHomeTweets(count, "")
	if err != nil {
		return nil, fmt.Errorf("error fetching home timeline: %w", err)
	}
	statuses := make([]*StatusData, 0, len(tweets))
	for _, tweet := range tweets {
		statuses = append(statuses, convertTweet(tweet))
	}
	return statuses, nil
}

// isNotAvailable matches the scraper's unavailable/deleted/protected tweet
// failures, which come back as plain error strings.
func isNotAvailable(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"not found", "tombstone", "unavailable", "deleted", "suspended", "protected"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func convertTweet(tweet *twitterscraper.Tweet) *StatusData {
	id, err := strconv.ParseInt(tweet.ID, 10, 64)
	if err != nil {
		logrus.Warnf("failed to convert tweet ID to int64: %s", tweet.ID)
		id = 0
	}
	authorID, err := strconv.ParseInt(tweet.UserID, 10, 64)
	if err != nil {
		logrus.Warnf("failed to convert user ID to int64: %s", tweet.UserID)
		authorID = 0
	}

	status := &StatusData{
		ID:           id,
		Text:         tweet.Text,
		PostedAt:     tweet.TimeParsed,
		AuthorID:     authorID,
		AuthorName:   tweet.Name,
		AuthorHandle: tweet.Username,
	}

	for _, photo := range tweet.Photos {
		status.Media = append(status.Media, RawMedia{
			Kind:     RawKindPhoto,
			MediaURL: photo.URL,
			Sizes:    map[string]RawSize{"medium": {}},
		})
	}
	for _, video := range tweet.Videos {
		status.Media = append(status.Media, RawMedia{
			Kind:    RawKindVideo,
			Preview: video.Preview,
			Video:   &RawVideoInfo{Variants: []RawVariant{{ContentType: "video/mp4", URL: video.URL}}},
		})
	}
	for _, gif := range tweet.GIFs {
		status.Media = append(status.Media, RawMedia{
			Kind:    RawKindGIF,
			Preview: gif.Preview,
			Video:   &RawVideoInfo{Variants: []RawVariant{{ContentType: "video/mp4", URL: gif.URL}}},
		})
	}
	return status
}
