// Package notify delivers tracking notifications outside the API process.
package notify

import (
	"context"
	"errors"
	"fmt"

	"backend-triptracker/internal/tracking"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends each notification as a chat message.
type Telegram struct {
	bot    sender
	chatID int64
}

var newBotFn = func(token string) (sender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return bot, nil
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	if token == "" || chatID == 0 {
		return nil, errors.New("telegram token and chat id required")
	}
	bot, err := newBotFn(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

func (t *Telegram) Notify(_ context.Context, n tracking.Notification) error {
	msg := tgbotapi.NewMessage(t.chatID, n.Message)
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send %s: %w", n.Kind, err)
	}
	return nil
}
