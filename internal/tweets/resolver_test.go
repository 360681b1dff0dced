package tweets_test

import (
	"context"
	"net/http"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sklad-bot/sklad/internal/media"
	"github.com/sklad-bot/sklad/internal/store"
	"github.com/sklad-bot/sklad/internal/tweets"
	"github.com/sklad-bot/sklad/internal/twitter"
)

// fakeClient serves canned statuses and counts fetches, so tests can assert
// which lookups hit the provider.
type fakeClient struct {
	mu       sync.Mutex
	statuses map[string]*twitter.StatusData
	timeline []*twitter.StatusData
	fetches  int
}

func (f *fakeClient) Login(string, string, string) error { return nil }

func (f *fakeClient) IsLoggedIn() bool { return true }

func (f *fakeClient) Cookies() []*http.Cookie { return nil }

func (f *fakeClient) SetCookies([]*http.Cookie) {}

func (f *fakeClient) Tweet(id string) (*twitter.StatusData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if status, ok := f.statuses[id]; ok {
		return status, nil
	}
	return nil, twitter.ErrTweetNotAvailable
}

func (f *fakeClient) HomeTimeline(int) ([]*twitter.StatusData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timeline, nil
}

func (f *fakeClient) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func status(id int64, postedAt time.Time) *twitter.StatusData {
	return &twitter.StatusData{
		ID:           id,
		Text:         "status",
		PostedAt:     postedAt,
		AuthorID:     9,
		AuthorName:   "Author",
		AuthorHandle: "author",
	}
}

var _ = Describe("ParseStatusRef", func() {
	It("accepts bare numeric ids", func() {
		id, ok := tweets.ParseStatusRef("1234567890")
		Expect(ok).To(BeTrue())
		Expect(id).To(Equal(int64(1234567890)))
	})

	It("accepts status URLs carrying the same number", func() {
		for _, ref := range []string{
			"https://twitter.com/someone/status/1234567890",
			"https://x.com/someone/status/1234567890?s=20",
			"https://twitter.com/i/web/status/1234567890",
		} {
			id, ok := tweets.ParseStatusRef(ref)
			Expect(ok).To(BeTrue(), "ref %s", ref)
			Expect(id).To(Equal(int64(1234567890)))
		}
	})

	It("rejects garbage", func() {
		for _, ref := range []string{"", "abc", "12a3", "https://twitter.com/someone", "https://twitter.com/someone/status/abc"} {
			_, ok := tweets.ParseStatusRef(ref)
			Expect(ok).To(BeFalse(), "ref %s", ref)
		}
	})

	It("rejects numbers beyond the int64 bound", func() {
		_, ok := tweets.ParseStatusRef("99999999999999999999")
		Expect(ok).To(BeFalse())
		_, ok = tweets.ParseStatusRef("https://twitter.com/a/status/99999999999999999999")
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Resolver", func() {
	var (
		st       *store.Store
		client   *fakeClient
		session  *twitter.Session
		resolver *tweets.Resolver
		ctx      context.Context
	)

	BeforeEach(func() {
		var err error
		st, err = store.Open(":memory:")
		Expect(err).NotTo(HaveOccurred())
		client = &fakeClient{statuses: map[string]*twitter.StatusData{}}
		session = &twitter.Session{Client: client}
		resolver = tweets.NewResolver(st, media.New())
		ctx = context.Background()
	})

	It("caches on first resolution and returns the stored row afterwards", func() {
		client.statuses["100"] = status(100, time.Now().UTC())

		first, err := resolver.ResolveByID(ctx, session, 100)
		Expect(err).NotTo(HaveOccurred())
		Expect(first).NotTo(BeNil())
		Expect(client.fetchCount()).To(Equal(1))

		second, err := resolver.ResolveByID(ctx, session, 100)
		Expect(err).NotTo(HaveOccurred())
		Expect(second.ID).To(Equal(first.ID))
		// Cache hit: no second network call.
		Expect(client.fetchCount()).To(Equal(1))
	})

	It("treats an unavailable tweet as null, not an error", func() {
		tweet, err := resolver.ResolveByID(ctx, session, 404)
		Expect(err).NotTo(HaveOccurred())
		Expect(tweet).To(BeNil())
	})

	Context("batches", func() {
		It("distinguishes resolved from unresolved tokens", func() {
			cached := status(1, time.Now().UTC())
			client.statuses["1"] = cached
			_, err := resolver.ResolveByID(ctx, session, 1)
			Expect(err).NotTo(HaveOccurred())

			client.statuses["2"] = status(2, time.Now().UTC())

			result, err := resolver.ResolveBatch(ctx, session, []string{"1", "2", "not-a-tweet"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Resolved).To(HaveLen(2))
			Expect(result.Unresolved).To(ConsistOf("not-a-tweet"))
			Expect(result.AllResolved()).To(BeFalse())
			Expect(result.NoneResolved()).To(BeFalse())
		})

		It("reports a fully failed batch", func() {
			result, err := resolver.ResolveBatch(ctx, session, []string{"junk", "more junk"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.NoneResolved()).To(BeTrue())
		})

		It("deduplicates tokens before resolving", func() {
			client.statuses["5"] = status(5, time.Now().UTC())
			result, err := resolver.ResolveBatch(ctx, session, []string{"5", "5", " 5 "})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Resolved).To(HaveLen(1))
			Expect(result.AllResolved()).To(BeTrue())
		})

		It("never touches the provider for oversize ids", func() {
			result, err := resolver.ResolveBatch(ctx, session, []string{"99999999999999999999"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.NoneResolved()).To(BeTrue())
			Expect(client.fetchCount()).To(BeZero())
		})
	})

	Context("timelines", func() {
		It("caches new entries and is idempotent for known ids", func() {
			base := time.Now().UTC()
			client.timeline = []*twitter.StatusData{
				status(10, base),
				status(11, base.Add(-time.Minute)),
			}

			rows, err := resolver.ResolveTimeline(ctx, session)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(2))
			Expect(rows[0].TweetID).To(Equal(int64(10)))
			Expect(rows[1].TweetID).To(Equal(int64(11)))

			again, err := resolver.ResolveTimeline(ctx, session)
			Expect(err).NotTo(HaveOccurred())
			Expect(again).To(HaveLen(2))
			Expect(again[0].ID).To(Equal(rows[0].ID))
		})
	})
})
