package telegram

import (
	"context"
	"fmt"
	"strings"

	"study_reminder_bot/internal/domain/channel"
	"study_reminder_bot/internal/domain/recipient"

	"gopkg.in/telebot.v3"
)

// TelebotChannel implements channel.Channel using gopkg.in/telebot.v3. It is
// the engine's in-app notification transport: the recipient's Telegram chat
// stands in for websocket/push delivery.
type TelebotChannel struct {
	bot        *telebot.Bot
	recipients recipient.Repository
}

func NewTelebotChannel(bot *telebot.Bot, recipients recipient.Repository) *TelebotChannel {
	return &TelebotChannel{bot: bot, recipients: recipients}
}

// Deliver resolves the recipient's chat and sends the notification as a
// single text message. Errors are returned, never panicked, so the dispatch
// boundary can record them.
func (c *TelebotChannel) Deliver(ctx context.Context, recipientID int64, n channel.Notification) error {
	rec, err := c.recipients.GetByID(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("resolve recipient %d: %w", recipientID, err)
	}

	var b strings.Builder
	if n.Title != "" {
		b.WriteString("*")
		b.WriteString(n.Title)
		b.WriteString("*\n\n")
	}
	b.WriteString(n.Message)

	_, err = c.bot.Send(&telebot.User{ID: rec.TelegramID}, b.String(), &telebot.SendOptions{
		ParseMode: telebot.ModeMarkdown,
	})
	if err != nil {
		return fmt.Errorf("telegram send to %d: %w", rec.TelegramID, err)
	}
	return nil
}
