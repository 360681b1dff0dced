// Package media converts provider attachment records into the canonical
// descriptor the renderer and storage layer share.
package media

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sklad-bot/sklad/internal/store"
	"github.com/sklad-bot/sklad/internal/twitter"
)

const probeAttempts = 3

// dimensionRe matches the WxH segment video variant URLs carry in their
// path, e.g. /vid/1280x720/.
var dimensionRe = regexp.MustCompile(`/(\d+)x(\d+)/`)

// Normalizer shapes raw provider attachments into store.Media values.
type Normalizer struct {
	client *http.Client
}

// New returns a Normalizer probing sizes over the default transport.
func New() *Normalizer {
	return &Normalizer{client: http.DefaultClient}
}

// NewWithClient returns a Normalizer using a custom HTTP client.
func NewWithClient(client *http.Client) *Normalizer {
	return &Normalizer{client: client}
}

// NormalizeAll normalizes one tweet's attachment batch. Size probes run
// concurrently; unknown kinds are dropped and the input order is preserved.
func (n *Normalizer) NormalizeAll(ctx context.Context, raws []twitter.RawMedia) ([]store.Media, error) {
	results := make([]*store.Media, len(raws))
	group, ctx := errgroup.WithContext(ctx)
	for i := range raws {
		group.Go(func() error {
			results[i] = n.Normalize(ctx, raws[i])
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	media := make([]store.Media, 0, len(raws))
	for _, m := range results {
		if m != nil {
			media = append(media, *m)
		}
	}
	return media, nil
}

// Normalize converts a single raw attachment. Unrecognized kinds yield nil,
// never an error.
func (n *Normalizer) Normalize(ctx context.Context, raw twitter.RawMedia) *store.Media {
	switch raw.Kind {
	case twitter.RawKindPhoto:
		return n.normalizePhoto(ctx, raw)
	case twitter.RawKindVideo:
		return n.normalizeVideo(ctx, raw)
	case twitter.RawKindGIF:
		return normalizeGIF(raw)
	default:
		logrus.Warnf("Skipping attachment of unknown kind %q", raw.Kind)
		return nil
	}
}

// normalizePhoto picks the medium size variant and forces jpg output. The
// thumbnail is the image itself.
func (n *Normalizer) normalizePhoto(ctx context.Context, raw twitter.RawMedia) *store.Media {
	url := PhotoURL(raw.MediaURL)
	size := raw.Sizes["medium"]
	return &store.Media{
		Kind:         store.MediaPhoto,
		URL:          url,
		Width:        size.Width,
		Height:       size.Height,
		ThumbnailURL: url,
		Size:         n.probeSize(ctx, url),
	}
}

// normalizeVideo selects the last listed variant, which the provider orders
// by ascending bitrate.
func (n *Normalizer) normalizeVideo(ctx context.Context, raw twitter.RawMedia) *store.Media {
	if raw.Video == nil || len(raw.Video.Variants) == 0 {
		logrus.Warnf("Skipping video attachment without variants (%s)", raw.MediaURL)
		return nil
	}
	variant := raw.Video.Variants[len(raw.Video.Variants)-1]
	width, height := ParseDimensions(variant.URL)
	return &store.Media{
		Kind:         store.MediaVideo,
		URL:          variant.URL,
		Width:        width,
		Height:       height,
		ThumbnailURL: raw.Preview,
		Duration:     raw.Video.DurationMillis / 1000,
		Size:         n.probeSize(ctx, variant.URL),
	}
}

// normalizeGIF selects the last variant and takes dimensions from the
// provider's original metadata. GIFs carry no thumbnail and no duration.
func normalizeGIF(raw twitter.RawMedia) *store.Media {
	if raw.Video == nil || len(raw.Video.Variants) == 0 {
		logrus.Warnf("Skipping gif attachment without variants (%s)", raw.MediaURL)
		return nil
	}
	variant := raw.Video.Variants[len(raw.Video.Variants)-1]
	return &store.Media{
		Kind:   store.MediaGIF,
		URL:    variant.URL,
		Width:  raw.Original.Width,
		Height: raw.Original.Height,
	}
}

// PhotoURL rewrites a provider image URL to the jpg-forced medium variant.
func PhotoURL(mediaURL string) string {
	base := mediaURL
	if idx := strings.LastIndex(base, "."); idx > strings.LastIndex(base, "/") {
		base = base[:idx]
	}
	return base + "?format=jpg&name=medium"
}

// ParseDimensions extracts width and height from the WxH path segment of a
// variant URL. Unknown layouts yield zeroes.
func ParseDimensions(url string) (int, int) {
	match := dimensionRe.FindStringSubmatch(url)
	if match == nil {
		return 0, 0
	}
	var width, height int
	fmt.Sscanf(match[1], "%d", &width)
	fmt.Sscanf(match[2], "%d", &height)
	return width, height
}

// probeSize fetches the byte length of a remote asset via a HEAD request.
// A failed probe logs and reports zero; rendering works without the size.
func (n *Normalizer) probeSize(ctx context.Context, url string) int64 {
	var size int64
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := n.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d probing %s", resp.StatusCode, url)
		}
		size = resp.ContentLength
		return nil
	}
	strategy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), probeAttempts)
	if err := backoff.Retry(op, strategy); err != nil {
		logrus.WithError(err).Warnf("Size probe failed for %s", url)
		return 0
	}
	if size < 0 {
		return 0
	}
	return size
}
