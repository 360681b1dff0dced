package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/sklad-bot/sklad/internal/store"
)

// handleCallback runs one pagination transition. The button payload holds a
// registry token; a missing or malformed cursor acknowledges the press,
// removes the stale message and stops there.
func (b *Bot) handleCallback(cq *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		logrus.WithError(err).Warn("Failed to answer callback query")
	}
	if cq.Message == nil {
		return
	}

	cursor, ok := b.cursors.Get(cq.Data)
	if !ok || !cursor.Valid() {
		logrus.Warnf("Dropping callback with unknown or malformed payload %q", cq.Data)
		b.deleteMessages(cq.Message.Chat.ID, []int{cq.Message.MessageID})
		return
	}

	current, err := b.store.TweetByTweetID(cursor.TweetID)
	if err != nil {
		logrus.WithError(err).Errorf("Cursor tweet %d lookup failed", cursor.TweetID)
		return
	}

	var next *store.Tweet
	if current != nil {
		next, err = b.transitions[cursor.Action](current)
		if err != nil {
			logrus.WithError(err).Errorf("Transition %s failed", cursor.Action)
			return
		}
	}

	b.deleteMessages(cursor.ChatID, cursor.MessageIDs)
	// The page is gone; retire its whole button set, not just this token.
	b.cursors.Drop(cq.Data)

	if next == nil {
		b.reply(cursor.ChatID, "No more tweets found.")
		return
	}
	b.displayPage(cursor.ChatID, cursor.UserID, next)
}

// displayPage renders one tweet with pagination controls and records the
// resulting message ids on every issued cursor.
func (b *Bot) displayPage(chatID int64, userID uint, tweet *store.Tweet) {
	base := Cursor{TweetID: tweet.TweetID, ChatID: chatID, UserID: userID}

	tokens := make(map[Action]string, len(b.transitions))
	button := func(label string, action Action) tgbotapi.InlineKeyboardButton {
		cursor := base
		cursor.Action = action
		token := b.cursors.Put(cursor)
		tokens[action] = token
		return tgbotapi.NewInlineKeyboardButtonData(label, token)
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			button("⬅ Previous", ActionPrevious),
			button("Next ➡", ActionNext),
		),
		tgbotapi.NewInlineKeyboardRow(
			button("📤 Send", ActionSend),
			button("⏮ Latest", ActionLatest),
			button("♻ Reset", ActionReset),
		),
	)

	sent, err := b.Render(tweet, chatID, false, &keyboard)
	if err != nil {
		logrus.WithError(err).Errorf("Failed to display tweet %d", tweet.TweetID)
		b.reply(chatID, "Could not display the tweet.")
		return
	}

	messageIDs := make([]int, 0, len(sent))
	for _, msg := range sent {
		messageIDs = append(messageIDs, msg.MessageID)
	}
	issued := make([]string, 0, len(tokens))
	for _, token := range tokens {
		issued = append(issued, token)
	}
	b.cursors.Link(issued)
	for _, token := range issued {
		b.cursors.SetMessages(token, messageIDs)
	}
}

func (b *Bot) deleteMessages(chatID int64, messageIDs []int) {
	for _, id := range messageIDs {
		if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, id)); err != nil {
			logrus.WithError(err).Debugf("Failed to delete message %d", id)
		}
	}
}
