package bot

import (
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo-contrib/pprof"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// webhookParams builds the setWebhook request. The v5 client's
// WebhookConfig predates the secret_token parameter, so the request is
// assembled by hand; an empty secret is simply not sent.
func webhookParams(url, secret string) tgbotapi.Params {
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)
	return params
}

// startWebhook registers the webhook with Telegram and serves it on an echo
// server. Updates flow into the returned channel; the stop function shuts
// the server down.
func (b *Bot) startWebhook() (tgbotapi.UpdatesChannel, func(), error) {
	path := b.cfg.WebhookPath
	if path == "" {
		path = "/webhook"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	url := strings.TrimRight(b.cfg.WebhookURL, "/") + path
	if _, err := b.api.MakeRequest("setWebhook", webhookParams(url, b.cfg.WebhookSecret)); err != nil {
		return nil, nil, err
	}

	updates := make(chan tgbotapi.Update, 100)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	if b.cfg.ProfilingEnabled {
		pprof.Register(e)
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	e.POST(path, func(c echo.Context) error {
		if b.cfg.WebhookSecret != "" && c.Request().Header.Get(secretTokenHeader) != b.cfg.WebhookSecret {
			return c.NoContent(http.StatusUnauthorized)
		}
		var update tgbotapi.Update
		if err := c.Bind(&update); err != nil {
			logrus.WithError(err).Warn("Dropping undecodable webhook update")
			return c.NoContent(http.StatusBadRequest)
		}
		updates <- update
		return c.NoContent(http.StatusOK)
	})

	go func() {
		if err := e.Start(b.cfg.ListenAddress); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("Webhook server stopped")
		}
	}()

	stop := func() {
		if err := e.Close(); err != nil {
			logrus.WithError(err).Warn("Webhook server shutdown failed")
		}
	}
	return updates, stop, nil
}
