package tweets

import (
	"github.com/sklad-bot/sklad/internal/store"
)

// Paginator walks the ordered set of unprocessed cached tweets, newest
// first. Every transition returns the tweet to display next; nil means the
// terminal "no more tweets" state.
type Paginator struct {
	store *store.Store
}

// NewPaginator builds a Paginator over the store.
func NewPaginator(st *store.Store) *Paginator {
	return &Paginator{store: st}
}

// ToLatest jumps to the most recent unprocessed tweet.
func (p *Paginator) ToLatest() (*store.Tweet, error) {
	return p.store.LatestUnprocessed()
}

// Next moves backward through history: the unprocessed tweet with the
// nearest strictly earlier posting time.
func (p *Paginator) Next(current *store.Tweet) (*store.Tweet, error) {
	return p.store.UnprocessedBefore(current.PostedAt)
}

// Previous moves forward again: the unprocessed tweet with the nearest
// strictly later posting time.
func (p *Paginator) Previous(current *store.Tweet) (*store.Tweet, error) {
	return p.store.UnprocessedAfter(current.PostedAt)
}

// MarkProcessed flips the current tweet's processed flag and advances like
// Next.
func (p *Paginator) MarkProcessed(current *store.Tweet) (*store.Tweet, error) {
	if err := p.store.SetProcessed(current, true); err != nil {
		return nil, err
	}
	return p.Next(current)
}

// ResetProgress clears the processed flag on all tweets and redisplays the
// current one.
func (p *Paginator) ResetProgress(current *store.Tweet) (*store.Tweet, error) {
	if err := p.store.ResetProcessed(); err != nil {
		return nil, err
	}
	return p.store.TweetByTweetID(current.TweetID)
}
