// internal/infra/telegram/client.go
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"reminder_relay/internal/domain/push"

	"gopkg.in/telebot.v3"
)

var _ push.Notifier = (*TelebotNotifier)(nil)

// TelebotNotifier implements push.Notifier using the gopkg.in/telebot.v3 library.
// Reminders go to a single chat.
type TelebotNotifier struct {
	bot  *telebot.Bot
	chat telebot.ChatID
}

// NewTelebotNotifier creates an offline bot, so no request is made until the
// first delivery. An empty apiURL selects the public Bot API.
func NewTelebotNotifier(token string, chatID int64, apiURL string, timeout time.Duration) (*TelebotNotifier, error) {
	bot, err := telebot.NewBot(telebot.Settings{
		URL:     apiURL,
		Token:   token,
		Offline: true,
		Client:  &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("could not create Telegram bot: %w", err)
	}
	return &TelebotNotifier{bot: bot, chat: telebot.ChatID(chatID)}, nil
}

// Deliver sends the title and body as one plain-text message.
// telebot has no context support; the HTTP client timeout bounds the call.
func (n *TelebotNotifier) Deliver(_ context.Context, title, body string) error {
	text := title
	if body = strings.TrimSpace(body); body != "" {
		text = title + "\n\n" + body
	}
	if _, err := n.bot.Send(n.chat, text, &telebot.SendOptions{DisableWebPagePreview: true}); err != nil {
		return fmt.Errorf("%w: telegram: %v", push.ErrDeliveryFailed, err)
	}
	return nil
}
