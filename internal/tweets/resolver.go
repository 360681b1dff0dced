// Package tweets implements the cache-or-fetch resolver and the timeline
// paginator over the local tweet store.
package tweets

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"github.com/sklad-bot/sklad/internal/media"
	"github.com/sklad-bot/sklad/internal/store"
	"github.com/sklad-bot/sklad/internal/twitter"
)

// timelinePageSize is how many entries one timeline refresh pulls.
const timelinePageSize = 20

// Resolver looks tweets up in the local cache and fetches misses from the
// provider. The cache is authoritative: a hit is returned as stored, never
// refreshed in place.
type Resolver struct {
	store      *store.Store
	normalizer *media.Normalizer
}

// NewResolver builds a Resolver over the given store and normalizer.
func NewResolver(st *store.Store, normalizer *media.Normalizer) *Resolver {
	return &Resolver{store: st, normalizer: normalizer}
}

// ParseStatusRef extracts a provider id from a bare numeric string or a URL
// whose path carries a numeric status segment. Numbers beyond the int64
// bound are rejected here, before any storage access.
func ParseStatusRef(token string) (int64, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, false
	}
	if isDigits(token) {
		return parseID(token)
	}

	u, err := url.Parse(token)
	if err != nil {
		return 0, false
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, segment := range segments {
		if segment != "status" && segment != "statuses" {
			continue
		}
		if i+1 < len(segments) && isDigits(segments[i+1]) {
			return parseID(segments[i+1])
		}
	}
	return 0, false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Overflow: cannot be a valid provider id.
		return 0, false
	}
	return id, true
}

// ResolveByID returns the cached tweet for id, fetching, normalizing and
// persisting it on a cache miss. A tweet the provider reports unavailable
// resolves to (nil, nil).
func (r *Resolver) ResolveByID(ctx context.Context, session *twitter.Session, id int64) (*store.Tweet, error) {
	cached, err := r.store.TweetByTweetID(id)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	status, err := session.Client.Tweet(strconv.FormatInt(id, 10))
	if errors.Is(err, twitter.ErrTweetNotAvailable) {
		logrus.Debugf("Tweet %d is not available", id)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	tweet, err := r.tweetFromStatus(ctx, status)
	if err != nil {
		return nil, err
	}
	if err := r.store.SaveTweet(tweet); err != nil {
		return nil, err
	}
	return tweet, nil
}

// ResolveToken parses a raw token and resolves it. An unparseable token or
// an unavailable tweet both yield (nil, nil).
func (r *Resolver) ResolveToken(ctx context.Context, session *twitter.Session, token string) (*store.Tweet, error) {
	id, ok := ParseStatusRef(token)
	if !ok {
		return nil, nil
	}
	return r.ResolveByID(ctx, session, id)
}

// BatchResult aggregates a multi-token resolution so the caller can compose
// one precise summary instead of one error per failure.
type BatchResult struct {
	// Resolved holds tweets in completion order.
	Resolved []*store.Tweet
	// Unresolved lists the tokens that produced nothing.
	Unresolved []string
}

// AllResolved reports a fully successful batch.
func (b *BatchResult) AllResolved() bool {
	return len(b.Resolved) > 0 && len(b.Unresolved) == 0
}

// NoneResolved reports a batch where nothing resolved.
func (b *BatchResult) NoneResolved() bool {
	return len(b.Resolved) == 0
}

// ResolveBatch deduplicates the tokens and resolves them concurrently.
// Unexpected storage or transport failures abort the batch; per-token
// misses land in Unresolved.
func (r *Resolver) ResolveBatch(ctx context.Context, session *twitter.Session, tokens []string) (*BatchResult, error) {
	deduped := make([]string, 0, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" || slices.Contains(deduped, token) {
			continue
		}
		deduped = append(deduped, token)
	}

	result := &BatchResult{}
	var mu sync.Mutex
	group, ctx := errgroup.WithContext(ctx)
	for _, token := range deduped {
		group.Go(func() error {
			tweet, err := r.ResolveToken(ctx, session, token)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if tweet == nil {
				result.Unresolved = append(result.Unresolved, token)
			} else {
				result.Resolved = append(result.Resolved, tweet)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// ResolveTimeline fetches the latest home timeline page and caches every
// unknown entry. Re-fetching a known id is a no-op beyond returning the
// cached row; provider order is preserved.
func (r *Resolver) ResolveTimeline(ctx context.Context, session *twitter.Session) ([]*store.Tweet, error) {
	statuses, err := session.Client.HomeTimeline(timelinePageSize)
	if err != nil {
		return nil, err
	}

	rows := make([]*store.Tweet, 0, len(statuses))
	for _, status := range statuses {
		cached, err := r.store.TweetByTweetID(status.ID)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			rows = append(rows, cached)
			continue
		}
		tweet, err := r.tweetFromStatus(ctx, status)
		if err != nil {
			return nil, err
		}
		rows = append(rows, tweet)
	}

	// The check-then-insert transaction guards two concurrent resolutions
	// racing the same id.
	return r.store.InsertTimeline(rows)
}

func (r *Resolver) tweetFromStatus(ctx context.Context, status *twitter.StatusData) (*store.Tweet, error) {
	normalized, err := r.normalizer.NormalizeAll(ctx, status.Media)
	if err != nil {
		return nil, err
	}
	return &store.Tweet{
		TweetID:      status.ID,
		Text:         status.Text,
		PostedAt:     status.PostedAt,
		AuthorID:     status.AuthorID,
		AuthorName:   status.AuthorName,
		AuthorHandle: status.AuthorHandle,
		Media:        normalized,
	}, nil
}
