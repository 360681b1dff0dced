package bot

import (
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/sklad-bot/sklad/internal/store"
)

// largeUploadBytes is the point past which streaming a video by URL exceeds
// normal upload limits; such videos are pre-fetched into memory first.
const largeUploadBytes = 50 * 1024 * 1024

// ErrNothingToRender signals a tweet with no attachments and a suppressed
// caption.
var ErrNothingToRender = errors.New("nothing to render")

// mentionRe matches @handles on word boundaries; the first group keeps the
// preceding character, the second captures the handle.
var mentionRe = regexp.MustCompile(`(^|[^\w@])@(\w+)`)

// buildCaption renders the tweet text plus footer links as Telegram HTML.
// Mentions become clickable profile links.
func buildCaption(tweet *store.Tweet) string {
	text := html.EscapeString(tweet.Text)
	text = mentionRe.ReplaceAllString(text, `$1<a href="https://twitter.com/$2">@$2</a>`)
	return fmt.Sprintf(
		"%s\n\n<a href=%q>Source</a> | <a href=%q>%s</a>",
		text,
		fmt.Sprintf("https://twitter.com/%s/status/%d", tweet.AuthorHandle, tweet.TweetID),
		fmt.Sprintf("https://twitter.com/%s", tweet.AuthorHandle),
		html.EscapeString(tweet.AuthorName),
	)
}

// Render sends a tweet into a chat as one or more messages and returns the
// sent messages. Zero attachments yield a text message, one a typed media
// message, several a grouped-media message. The keyboard, when given, is
// attached to the message that can carry it.
func (b *Bot) Render(tweet *store.Tweet, chatID int64, suppressCaption bool, keyboard *tgbotapi.InlineKeyboardMarkup) ([]tgbotapi.Message, error) {
	caption := ""
	if !suppressCaption {
		caption = buildCaption(tweet)
	}

	switch len(tweet.Media) {
	case 0:
		if suppressCaption {
			return nil, ErrNothingToRender
		}
		msg := tgbotapi.NewMessage(chatID, caption)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		if keyboard != nil {
			msg.ReplyMarkup = keyboard
		}
		sent, err := b.api.Send(msg)
		if err != nil {
			return nil, fmt.Errorf("error sending text message: %w", err)
		}
		return []tgbotapi.Message{sent}, nil

	case 1:
		sent, err := b.sendSingle(tweet, chatID, caption, keyboard)
		if err != nil {
			return nil, err
		}
		b.cacheFileIDs(tweet, []tgbotapi.Message{sent}, []int{0})
		return []tgbotapi.Message{sent}, nil

	default:
		return b.sendGroup(tweet, chatID, caption, keyboard)
	}
}

func (b *Bot) sendSingle(tweet *store.Tweet, chatID int64, caption string, keyboard *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	media := tweet.Media[0]
	file, err := b.fileFor(chatID, media)
	if err != nil {
		return tgbotapi.Message{}, err
	}

	var chattable tgbotapi.Chattable
	switch media.Kind {
	case store.MediaPhoto:
		cfg := tgbotapi.NewPhoto(chatID, file)
		cfg.Caption = caption
		cfg.ParseMode = tgbotapi.ModeHTML
		if keyboard != nil {
			cfg.ReplyMarkup = keyboard
		}
		chattable = cfg
	case store.MediaVideo:
		cfg := tgbotapi.NewVideo(chatID, file)
		cfg.Caption = caption
		cfg.ParseMode = tgbotapi.ModeHTML
		cfg.Duration = media.Duration
		cfg.SupportsStreaming = true
		if media.ThumbnailURL != "" {
			cfg.Thumb = tgbotapi.FileURL(media.ThumbnailURL)
		}
		if keyboard != nil {
			cfg.ReplyMarkup = keyboard
		}
		chattable = cfg
	case store.MediaGIF:
		cfg := tgbotapi.NewAnimation(chatID, file)
		cfg.Caption = caption
		cfg.ParseMode = tgbotapi.ModeHTML
		if keyboard != nil {
			cfg.ReplyMarkup = keyboard
		}
		chattable = cfg
	default:
		return tgbotapi.Message{}, fmt.Errorf("cannot send media of kind %q", media.Kind)
	}

	sent, err := b.api.Send(chattable)
	if err != nil {
		return tgbotapi.Message{}, fmt.Errorf("error sending %s message: %w", media.Kind, err)
	}
	return sent, nil
}

// sendGroup emits one grouped-media message. Unknown kinds inside the group
// are skipped, not fatal. Media groups cannot carry reply markup, so a
// keyboard goes on a trailing control message.
func (b *Bot) sendGroup(tweet *store.Tweet, chatID int64, caption string, keyboard *tgbotapi.InlineKeyboardMarkup) ([]tgbotapi.Message, error) {
	var items []interface{}
	var indexes []int
	for i, media := range tweet.Media {
		file, err := b.fileFor(chatID, media)
		if err != nil {
			return nil, err
		}
		switch media.Kind {
		case store.MediaPhoto:
			item := tgbotapi.NewInputMediaPhoto(file)
			if len(items) == 0 && caption != "" {
				item.Caption = caption
				item.ParseMode = tgbotapi.ModeHTML
			}
			items = append(items, item)
		case store.MediaVideo, store.MediaGIF:
			// Telegram media groups have no animation slot; gifs ride as
			// videos.
			item := tgbotapi.NewInputMediaVideo(file)
			if len(items) == 0 && caption != "" {
				item.Caption = caption
				item.ParseMode = tgbotapi.ModeHTML
			}
			items = append(items, item)
		default:
			logrus.Warnf("Skipping media of unknown kind %q in group for tweet %d", media.Kind, tweet.TweetID)
			continue
		}
		indexes = append(indexes, i)
	}

	if len(items) == 0 {
		if caption == "" {
			return nil, ErrNothingToRender
		}
		msg := tgbotapi.NewMessage(chatID, caption)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		sent, err := b.api.Send(msg)
		if err != nil {
			return nil, fmt.Errorf("error sending text message: %w", err)
		}
		return []tgbotapi.Message{sent}, nil
	}

	group := tgbotapi.NewMediaGroup(chatID, items)
	sent, err := b.api.SendMediaGroup(group)
	if err != nil {
		return nil, fmt.Errorf("error sending media group: %w", err)
	}
	b.cacheFileIDs(tweet, sent, indexes)

	if keyboard != nil {
		controls := tgbotapi.NewMessage(chatID, "Choose an action:")
		controls.ReplyMarkup = keyboard
		controlsMsg, err := b.api.Send(controls)
		if err != nil {
			return nil, fmt.Errorf("error sending controls message: %w", err)
		}
		sent = append(sent, controlsMsg)
	}
	return sent, nil
}

// fileFor picks the upload source for a media descriptor: the cached
// Telegram file id when present, an in-memory buffer for large videos, a
// plain URL otherwise.
func (b *Bot) fileFor(chatID int64, media store.Media) (tgbotapi.RequestFileData, error) {
	if media.TelegramFileID != "" {
		return tgbotapi.FileID(media.TelegramFileID), nil
	}
	if media.Kind == store.MediaVideo && media.Size > largeUploadBytes && !b.cfg.LocalMode {
		warning := tgbotapi.NewMessage(chatID,
			fmt.Sprintf("Video is %d MB, downloading it first. This can take a while.", media.Size/1024/1024))
		if _, err := b.api.Send(warning); err != nil {
			logrus.WithError(err).Warn("Failed to send size warning")
		}
		return b.download(media.URL)
	}
	return tgbotapi.FileURL(media.URL), nil
}

func (b *Bot) download(url string) (tgbotapi.RequestFileData, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("error downloading %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d downloading %s", resp.StatusCode, url)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", url, err)
	}
	return tgbotapi.FileBytes{Name: "video.mp4", Bytes: data}, nil
}

// cacheFileIDs stores the platform-native upload references back onto the
// tweet so repeat sends skip the re-upload. indexes maps each sent message
// to its media descriptor position.
func (b *Bot) cacheFileIDs(tweet *store.Tweet, sent []tgbotapi.Message, indexes []int) {
	changed := false
	for pos, msg := range sent {
		if pos >= len(indexes) {
			break
		}
		i := indexes[pos]
		if i >= len(tweet.Media) || tweet.Media[i].TelegramFileID != "" {
			continue
		}
		var fileID string
		switch {
		case msg.Animation != nil:
			fileID = msg.Animation.FileID
		case msg.Video != nil:
			fileID = msg.Video.FileID
		case len(msg.Photo) > 0:
			fileID = msg.Photo[len(msg.Photo)-1].FileID
		}
		if fileID == "" {
			continue
		}
		tweet.Media[i].TelegramFileID = fileID
		changed = true
	}
	if !changed {
		return
	}
	if err := b.store.UpdateMedia(tweet); err != nil {
		logrus.WithError(err).Warnf("Failed to cache file ids for tweet %d", tweet.TweetID)
	}
}
