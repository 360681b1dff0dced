package media_test

import (
	"context"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sklad-bot/sklad/internal/media"
	"github.com/sklad-bot/sklad/internal/store"
	"github.com/sklad-bot/sklad/internal/twitter"
)

// staticTransport answers every probe with a fixed byte length, keeping the
// suite off the network.
type staticTransport struct {
	size int64
}

func (t staticTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode:    http.StatusOK,
		ContentLength: t.size,
		Body:          http.NoBody,
		Header:        http.Header{},
	}, nil
}

var _ = Describe("Normalizer", func() {
	var normalizer *media.Normalizer

	BeforeEach(func() {
		normalizer = media.NewWithClient(&http.Client{Transport: staticTransport{size: 4096}})
	})

	Context("photos", func() {
		It("forces jpg output and mirrors the URL into the thumbnail", func() {
			raw := twitter.RawMedia{
				Kind:     twitter.RawKindPhoto,
				MediaURL: "https://pbs.twimg.com/media/abcdef.png",
				Sizes:    map[string]twitter.RawSize{"medium": {Width: 1200, Height: 675}},
			}
			m := normalizer.Normalize(context.Background(), raw)
			Expect(m).NotTo(BeNil())
			Expect(m.Kind).To(Equal(store.MediaPhoto))
			Expect(m.URL).To(Equal("https://pbs.twimg.com/media/abcdef?format=jpg&name=medium"))
			Expect(m.ThumbnailURL).To(Equal(m.URL))
			Expect(m.Width).To(Equal(1200))
			Expect(m.Height).To(Equal(675))
			Expect(m.Size).To(Equal(int64(4096)))
		})
	})

	Context("videos", func() {
		It("picks the last variant and parses dimensions from its URL", func() {
			raw := twitter.RawMedia{
				Kind:    twitter.RawKindVideo,
				Preview: "https://pbs.twimg.com/ext_tw_video_thumb/1/pu/img/thumb.jpg",
				Video: &twitter.RawVideoInfo{
					DurationMillis: 9500,
					Variants: []twitter.RawVariant{
						{Bitrate: 256000, URL: "https://video.twimg.com/ext_tw_video/1/pu/vid/320x180/low.mp4"},
						{Bitrate: 2176000, URL: "https://video.twimg.com/ext_tw_video/1/pu/vid/1280x720/high.mp4"},
					},
				},
			}
			m := normalizer.Normalize(context.Background(), raw)
			Expect(m).NotTo(BeNil())
			Expect(m.Kind).To(Equal(store.MediaVideo))
			Expect(m.URL).To(ContainSubstring("1280x720"))
			Expect(m.Width).To(Equal(1280))
			Expect(m.Height).To(Equal(720))
			Expect(m.Duration).To(Equal(9))
			Expect(m.ThumbnailURL).To(Equal(raw.Preview))
		})

		It("skips a video without variants", func() {
			raw := twitter.RawMedia{Kind: twitter.RawKindVideo, Video: &twitter.RawVideoInfo{}}
			Expect(normalizer.Normalize(context.Background(), raw)).To(BeNil())
		})
	})

	Context("gifs", func() {
		It("carries neither thumbnail nor duration", func() {
			raw := twitter.RawMedia{
				Kind:     twitter.RawKindGIF,
				Original: twitter.RawSize{Width: 480, Height: 270},
				Video: &twitter.RawVideoInfo{
					Variants: []twitter.RawVariant{
						{URL: "https://video.twimg.com/tweet_video/gif.mp4"},
					},
				},
			}
			m := normalizer.Normalize(context.Background(), raw)
			Expect(m).NotTo(BeNil())
			Expect(m.Kind).To(Equal(store.MediaGIF))
			Expect(m.URL).To(Equal("https://video.twimg.com/tweet_video/gif.mp4"))
			Expect(m.ThumbnailURL).To(BeEmpty())
			Expect(m.Duration).To(BeZero())
			Expect(m.Width).To(Equal(480))
			Expect(m.Height).To(Equal(270))
		})
	})

	Context("unknown kinds", func() {
		It("yields nil without failing", func() {
			raw := twitter.RawMedia{Kind: "hologram"}
			Expect(normalizer.Normalize(context.Background(), raw)).To(BeNil())
		})
	})

	Context("batches", func() {
		It("drops unknown kinds and preserves input order", func() {
			raws := []twitter.RawMedia{
				{Kind: twitter.RawKindPhoto, MediaURL: "https://pbs.twimg.com/media/a.jpg", Sizes: map[string]twitter.RawSize{"medium": {}}},
				{Kind: "hologram"},
				{Kind: twitter.RawKindPhoto, MediaURL: "https://pbs.twimg.com/media/b.jpg", Sizes: map[string]twitter.RawSize{"medium": {}}},
			}
			out, err := normalizer.NormalizeAll(context.Background(), raws)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(HaveLen(2))
			Expect(out[0].URL).To(ContainSubstring("/a?"))
			Expect(out[1].URL).To(ContainSubstring("/b?"))
		})
	})
})

var _ = Describe("ParseDimensions", func() {
	It("reads the WxH path segment", func() {
		w, h := media.ParseDimensions("https://video.twimg.com/ext_tw_video/1/pu/vid/640x360/clip.mp4")
		Expect(w).To(Equal(640))
		Expect(h).To(Equal(360))
	})

	It("yields zeroes for unknown layouts", func() {
		w, h := media.ParseDimensions("https://video.twimg.com/clip.mp4")
		Expect(w).To(BeZero())
		Expect(h).To(BeZero())
	})
})
