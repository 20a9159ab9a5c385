package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/shohjahonshahriyev-cloud/pulchi/internal/model"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/telegram"
)

// RateLimitError сообщает, что Telegram просит приостановить отправку.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %v", e.RetryAfter)
}

// MessageSender покрывает метод Send клиента Telegram.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender отправляет уведомления сообщениями Telegram.
type TelegramSender struct {
	api MessageSender
}

// NewTelegramSender создаёт TelegramSender.
func NewTelegramSender(api MessageSender) *TelegramSender {
	return &TelegramSender{api: api}
}

// Send отправляет уведомление. Ошибки 400 и 403 (бот заблокирован, чат не найден) считаются постоянными.
func (s *TelegramSender) Send(ctx context.Context, n model.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := chattable(n)
	if err != nil {
		return err
	}

	if _, err := s.api.Send(msg); err != nil {
		if d, ok := telegram.RetryAfter(err); ok {
			return &RateLimitError{RetryAfter: d}
		}
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == http.StatusForbidden || apiErr.Code == http.StatusBadRequest) {
			return fmt.Errorf("%w: %s", ErrPermanent, apiErr.Message)
		}
		return fmt.Errorf("send message to %d: %w", n.ChatID, err)
	}

	return nil
}

func chattable(n model.Notification) (tgbotapi.Chattable, error) {
	var markup interface{}
	if len(n.Buttons) > 0 {
		markup = InlineKeyboard(n.Buttons)
	}

	if n.Media == nil {
		msg := tgbotapi.NewMessage(n.ChatID, n.Text)
		msg.ReplyMarkup = markup
		return msg, nil
	}

	file := tgbotapi.FileID(n.Media.FileID)
	switch n.Media.Kind {
	case model.MediaPhoto:
		photo := tgbotapi.NewPhoto(n.ChatID, file)
		photo.Caption = n.Text
		photo.ReplyMarkup = markup
		return photo, nil
	case model.MediaVideo:
		video := tgbotapi.NewVideo(n.ChatID, file)
		video.Caption = n.Text
		video.ReplyMarkup = markup
		return video, nil
	case model.MediaSticker:
		sticker := tgbotapi.NewSticker(n.ChatID, file)
		sticker.ReplyMarkup = markup
		return sticker, nil
	default:
		return nil, fmt.Errorf("%w: unknown media kind %q", ErrPermanent, n.Media.Kind)
	}
}

// InlineKeyboard собирает inline-клавиатуру из кнопок, по одной строке на кнопку.
func InlineKeyboard(buttons []model.Button) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
