// Package bot wires Telegram commands and button callbacks to the tweet
// pipeline.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/sklad-bot/sklad/internal/config"
	"github.com/sklad-bot/sklad/internal/store"
	"github.com/sklad-bot/sklad/internal/tweets"
	"github.com/sklad-bot/sklad/internal/twitter"
)

// Bot is the Telegram front end. One instance per process; all collaborator
// state (sessions, cursors) is owned here, not global.
type Bot struct {
	api       *tgbotapi.BotAPI
	cfg       *config.Config
	store     *store.Store
	sessions  *twitter.Manager
	resolver  *tweets.Resolver
	paginator *tweets.Paginator
	cursors   *Registry

	transitions map[Action]func(*store.Tweet) (*store.Tweet, error)
}

// New connects to the Telegram API and assembles the bot.
func New(cfg *config.Config, st *store.Store, sessions *twitter.Manager, resolver *tweets.Resolver, paginator *tweets.Paginator) (*Bot, error) {
	var api *tgbotapi.BotAPI
	var err error
	if cfg.APIEndpoint != "" {
		api, err = tgbotapi.NewBotAPIWithAPIEndpoint(cfg.Token, cfg.APIEndpoint)
	} else {
		api, err = tgbotapi.NewBotAPI(cfg.Token)
	}
	if err != nil {
		return nil, fmt.Errorf("error connecting to telegram: %w", err)
	}

	b := &Bot{
		api:       api,
		cfg:       cfg,
		store:     st,
		sessions:  sessions,
		resolver:  resolver,
		paginator: paginator,
		cursors:   NewRegistry(0, 0),
	}
	b.transitions = map[Action]func(*store.Tweet) (*store.Tweet, error){
		ActionLatest:   func(*store.Tweet) (*store.Tweet, error) { return b.paginator.ToLatest() },
		ActionNext:     b.paginator.Next,
		ActionPrevious: b.paginator.Previous,
		ActionSend:     b.paginator.MarkProcessed,
		ActionReset:    b.paginator.ResetProgress,
	}
	return b, nil
}

// Run processes inbound updates until the context is canceled, then
// persists the cursor registry and exits cleanly.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.cursors.Load(b.cfg.CursorFile); err != nil {
		logrus.WithError(err).Warn("Could not restore cursor registry")
	}

	// Eager logins so timeline commands do not pay login latency.
	go b.sessions.AutoLogin()

	b.setCommands()

	var updates tgbotapi.UpdatesChannel
	var stop func()
	if b.cfg.WebhookURL != "" {
		var err error
		updates, stop, err = b.startWebhook()
		if err != nil {
			return err
		}
	} else {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates = b.api.GetUpdatesChan(u)
		stop = b.api.StopReceivingUpdates
	}

	logrus.Infof("Sklad started as @%s", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			stop()
			if err := b.cursors.Save(b.cfg.CursorFile); err != nil {
				logrus.WithError(err).Warn("Could not persist cursor registry")
			}
			logrus.Info("Sklad stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				logrus.Info("Update channel closed")
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) setCommands() {
	commands := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "login", Description: "Login into twitter"},
		tgbotapi.BotCommand{Command: "tweet", Description: "Send a tweet by id or URL"},
		tgbotapi.BotCommand{Command: "timeline", Description: "Browse the latest timeline"},
	)
	if _, err := b.api.Request(commands); err != nil {
		logrus.WithError(err).Warn("Failed to register bot commands")
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallback(update.CallbackQuery)
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	// Only admins in private chats are served.
	if !msg.Chat.IsPrivate() || !b.cfg.IsAdmin(msg.From.ID) {
		return
	}

	switch {
	case msg.IsCommand():
		switch msg.Command() {
		case "start":
			logrus.Infof("User %s started the conversation", msg.From.FirstName)
			b.reply(msg.Chat.ID, "I'm a bot, please talk to me!")
		case "login":
			b.handleLogin(msg)
		case "tweet":
			b.handleTweet(ctx, msg, msg.CommandArguments())
		case "timeline":
			b.handleTimeline(ctx, msg)
		default:
			b.reply(msg.Chat.ID, "Unknown command.")
		}
	case msg.Text != "":
		b.handleTweet(ctx, msg, msg.Text)
	}
}

// requireSession resolves the registered user for a message and logs them
// in. Both failure modes are user input errors and answered in chat.
func (b *Bot) requireSession(msg *tgbotapi.Message) (*store.User, *twitter.Session, bool) {
	user, err := b.store.UserByTelegramID(msg.From.ID)
	if err != nil {
		logrus.WithError(err).Error("User lookup failed")
		b.reply(msg.Chat.ID, "Something went wrong.")
		return nil, nil, false
	}
	if user == nil {
		b.reply(msg.Chat.ID, "You are not registered.")
		return nil, nil, false
	}

	session, err := b.sessions.EnsureLoggedIn(user)
	if errors.Is(err, twitter.ErrMissingCredentials) {
		b.reply(msg.Chat.ID, "No twitter credentials or cookies stored for you.")
		return nil, nil, false
	}
	if err != nil {
		logrus.WithError(err).Warnf("Login failed for %s", user.Username)
		b.reply(msg.Chat.ID, "Twitter login failed.")
		return nil, nil, false
	}
	return user, session, true
}

func (b *Bot) handleLogin(msg *tgbotapi.Message) {
	logrus.Infof("User %s started the login process", msg.From.FirstName)
	user, _, ok := b.requireSession(msg)
	if !ok {
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("Logged in as @%s.", user.TwitterUsername))
}

// handleTweet resolves a batch of ids/URLs, renders every hit and answers
// with one summary distinguishing partial from total failure.
func (b *Bot) handleTweet(ctx context.Context, msg *tgbotapi.Message, args string) {
	tokens := strings.Fields(args)
	if len(tokens) == 0 {
		b.reply(msg.Chat.ID, "Send me a tweet id or URL.")
		return
	}

	_, session, ok := b.requireSession(msg)
	if !ok {
		return
	}

	batch, err := b.resolver.ResolveBatch(ctx, session, tokens)
	if err != nil {
		logrus.WithError(err).Error("Batch resolution failed")
		b.reply(msg.Chat.ID, "Something went wrong.")
		return
	}

	for _, tweet := range batch.Resolved {
		if _, err := b.Render(tweet, msg.Chat.ID, false, nil); err != nil {
			logrus.WithError(err).Warnf("Failed to render tweet %d", tweet.TweetID)
		}
	}

	switch {
	case batch.NoneResolved():
		b.reply(msg.Chat.ID, "No tweets found.")
	case !batch.AllResolved():
		b.reply(msg.Chat.ID, "Not found: "+strings.Join(batch.Unresolved, ", "))
	}
}

func (b *Bot) handleTimeline(ctx context.Context, msg *tgbotapi.Message) {
	user, session, ok := b.requireSession(msg)
	if !ok {
		return
	}

	if _, err := b.resolver.ResolveTimeline(ctx, session); err != nil {
		logrus.WithError(err).Error("Timeline refresh failed")
		b.reply(msg.Chat.ID, "Could not fetch the timeline.")
		return
	}

	tweet, err := b.paginator.ToLatest()
	if err != nil {
		logrus.WithError(err).Error("Paginator lookup failed")
		b.reply(msg.Chat.ID, "Something went wrong.")
		return
	}
	if tweet == nil {
		b.reply(msg.Chat.ID, "No more tweets found.")
		return
	}
	b.displayPage(msg.Chat.ID, user.ID, tweet)
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		logrus.WithError(err).Warn("Failed to send reply")
	}
}
