// Package telegram создаёт клиент Telegram Bot API с ограничением времени на запрос.
package telegram

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// PollTimeout задаёт время ожидания long polling в секундах.
const PollTimeout = 60

// DefaultRequestTimeout ограничивает обычные запросы к Bot API.
const DefaultRequestTimeout = 5 * time.Second

// NewHTTPClient создаёт HTTP-клиент для Bot API. К таймауту добавляется время long polling,
// иначе getUpdates обрывался бы раньше ответа сервера.
func NewHTTPClient(requestTimeout time.Duration) *http.Client {
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	return &http.Client{
		Timeout: requestTimeout + PollTimeout*time.Second,
	}
}

// NewAPI подключается к Bot API и проверяет токен вызовом getMe.
func NewAPI(token string, requestTimeout time.Duration) (*tgbotapi.BotAPI, error) {
	return NewAPIWithEndpoint(token, tgbotapi.APIEndpoint, requestTimeout)
}

// NewAPIWithEndpoint подключается к Bot API по указанному адресу.
// Адрес задаётся в формате tgbotapi.APIEndpoint.
func NewAPIWithEndpoint(token, endpoint string, requestTimeout time.Duration) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram client not configured")
	}

	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, NewHTTPClient(requestTimeout))
	if err != nil {
		return nil, fmt.Errorf("connect to bot api: %w", err)
	}
	return api, nil
}

// RetryAfter извлекает из ошибки Bot API паузу, которую сервер просит выдержать перед повтором.
func RetryAfter(err error) (time.Duration, bool) {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusTooManyRequests {
		return 0, false
	}
	return time.Duration(apiErr.RetryAfter) * time.Second, true
}
