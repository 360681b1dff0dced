package tweets_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sklad-bot/sklad/internal/store"
	"github.com/sklad-bot/sklad/internal/tweets"
)

var _ = Describe("Paginator", func() {
	var (
		st         *store.Store
		paginator  *tweets.Paginator
		t1, t2, t3 *store.Tweet
	)

	BeforeEach(func() {
		var err error
		st, err = store.Open(":memory:")
		Expect(err).NotTo(HaveOccurred())
		paginator = tweets.NewPaginator(st)

		base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		t1 = &store.Tweet{TweetID: 1, PostedAt: base}
		t2 = &store.Tweet{TweetID: 2, PostedAt: base.Add(-time.Hour)}
		t3 = &store.Tweet{TweetID: 3, PostedAt: base.Add(-2 * time.Hour)}
		for _, tw := range []*store.Tweet{t1, t2, t3} {
			Expect(st.SaveTweet(tw)).To(Succeed())
		}
	})

	It("walks forward through history and back", func() {
		current, err := paginator.ToLatest()
		Expect(err).NotTo(HaveOccurred())
		Expect(current.TweetID).To(Equal(int64(1)))

		current, err = paginator.Next(current)
		Expect(err).NotTo(HaveOccurred())
		Expect(current.TweetID).To(Equal(int64(2)))

		current, err = paginator.Next(current)
		Expect(err).NotTo(HaveOccurred())
		Expect(current.TweetID).To(Equal(int64(3)))

		// Past the oldest unprocessed tweet lies the terminal state.
		terminal, err := paginator.Next(current)
		Expect(err).NotTo(HaveOccurred())
		Expect(terminal).To(BeNil())

		// Previous reverses the walk exactly.
		current, err = paginator.Previous(current)
		Expect(err).NotTo(HaveOccurred())
		Expect(current.TweetID).To(Equal(int64(2)))

		current, err = paginator.Previous(current)
		Expect(err).NotTo(HaveOccurred())
		Expect(current.TweetID).To(Equal(int64(1)))

		terminal, err = paginator.Previous(current)
		Expect(err).NotTo(HaveOccurred())
		Expect(terminal).To(BeNil())
	})

	It("skips processed tweets when advancing", func() {
		Expect(st.SetProcessed(t2, true)).To(Succeed())

		current, err := paginator.ToLatest()
		Expect(err).NotTo(HaveOccurred())
		Expect(current.TweetID).To(Equal(int64(1)))

		current, err = paginator.Next(current)
		Expect(err).NotTo(HaveOccurred())
		Expect(current.TweetID).To(Equal(int64(3)))
	})

	It("marks the current tweet processed and advances", func() {
		current, err := paginator.ToLatest()
		Expect(err).NotTo(HaveOccurred())

		next, err := paginator.MarkProcessed(current)
		Expect(err).NotTo(HaveOccurred())
		Expect(next.TweetID).To(Equal(int64(2)))

		reloaded, err := st.TweetByTweetID(1)
		Expect(err).NotTo(HaveOccurred())
		Expect(reloaded.Processed).To(BeTrue())
		Expect(reloaded.ProcessedAt).NotTo(BeNil())
	})

	It("resets every processed flag and redisplays the current tweet", func() {
		Expect(st.SetProcessed(t1, true)).To(Succeed())
		Expect(st.SetProcessed(t3, true)).To(Succeed())

		current, err := paginator.ResetProgress(t2)
		Expect(err).NotTo(HaveOccurred())
		Expect(current.TweetID).To(Equal(int64(2)))

		latest, err := paginator.ToLatest()
		Expect(err).NotTo(HaveOccurred())
		Expect(latest.TweetID).To(Equal(int64(1)))
		Expect(latest.Processed).To(BeFalse())
	})

	It("reports the terminal state when nothing is unprocessed", func() {
		for _, tw := range []*store.Tweet{t1, t2, t3} {
			Expect(st.SetProcessed(tw, true)).To(Succeed())
		}
		current, err := paginator.ToLatest()
		Expect(err).NotTo(HaveOccurred())
		Expect(current).To(BeNil())
	})
})
