// Package telegram connects the bot dispatcher to the Telegram Bot API via
// long polling.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/wolfman30/clinic-booking-bot/internal/bot"
	"github.com/wolfman30/clinic-booking-bot/pkg/logging"
)

// BotAPI is the subset of *tgbotapi.BotAPI the channel uses.
type BotAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Sender delivers dispatcher replies as Telegram messages.
type Sender struct {
	api    BotAPI
	logger *logging.Logger
}

// NewSender wraps api.
func NewSender(api BotAPI, logger *logging.Logger) *Sender {
	if logger == nil {
		logger = logging.Default()
	}
	return &Sender{api: api, logger: logger}
}

// SendText sends text with an optional reply keyboard.
func (s *Sender) SendText(_ context.Context, chatID int64, text string, kb *bot.Keyboard) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup := replyMarkup(kb); markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := s.api.Send(msg); err != nil {
		s.logger.Error("telegram: failed to send message", "chat_id", chatID, "error", err)
		return fmt.Errorf("telegram: send message: %w", err)
	}
	return nil
}

// SendDocument uploads the file at path as a document attachment.
func (s *Sender) SendDocument(_ context.Context, chatID int64, path, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = caption
	if _, err := s.api.Send(doc); err != nil {
		s.logger.Error("telegram: failed to send document", "chat_id", chatID, "path", path, "error", err)
		return fmt.Errorf("telegram: send document: %w", err)
	}
	return nil
}

func replyMarkup(kb *bot.Keyboard) any {
	if kb == nil {
		return nil
	}
	if kb.Remove {
		return tgbotapi.NewRemoveKeyboard(true)
	}
	rows := make([][]tgbotapi.KeyboardButton, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, b := range row {
			switch {
			case b.RequestContact:
				buttons = append(buttons, tgbotapi.NewKeyboardButtonContact(b.Text))
			case b.RequestLocation:
				buttons = append(buttons, tgbotapi.NewKeyboardButtonLocation(b.Text))
			default:
				buttons = append(buttons, tgbotapi.NewKeyboardButton(b.Text))
			}
		}
		rows = append(rows, buttons)
	}
	markup := tgbotapi.NewReplyKeyboard(rows...)
	markup.ResizeKeyboard = kb.Resize
	return markup
}
