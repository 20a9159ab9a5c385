package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shohjahonshahriyev-cloud/pulchi/internal/model"
)

type stubMessageSender struct {
	got []tgbotapi.Chattable
	err error
}

func (s *stubMessageSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.got = append(s.got, c)
	return tgbotapi.Message{}, s.err
}

func TestTelegramSender_Send(t *testing.T) {
	api := &stubMessageSender{}
	s := NewTelegramSender(api)

	err := s.Send(context.Background(), model.Notification{
		ChatID:  10,
		Text:    "new withdrawal",
		Buttons: []model.Button{{Text: "Approve", Data: "approve_withdrawal:1"}, {Text: "Reject", Data: "reject_withdrawal:1"}},
	})
	require.NoError(t, err)
	require.Len(t, api.got, 1)

	msg, ok := api.got[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(10), msg.ChatID)
	assert.Equal(t, "new withdrawal", msg.Text)

	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 2)
	require.NotNil(t, markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "approve_withdrawal:1", *markup.InlineKeyboard[0][0].CallbackData)
}

func TestTelegramSender_Errors(t *testing.T) {
	blocked := NewTelegramSender(&stubMessageSender{err: &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}})
	err := blocked.Send(context.Background(), model.Notification{ChatID: 1, Text: "x"})
	require.ErrorIs(t, err, ErrPermanent)

	flaky := NewTelegramSender(&stubMessageSender{err: errors.New("connection reset by peer")})
	err = flaky.Send(context.Background(), model.Notification{ChatID: 1, Text: "x"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrPermanent))
}

func TestTelegramSender_RateLimited(t *testing.T) {
	s := NewTelegramSender(&stubMessageSender{err: &tgbotapi.Error{
		Code:               429,
		Message:            "Too Many Requests: retry after 3",
		ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 3},
	}})

	err := s.Send(context.Background(), model.Notification{ChatID: 1, Text: "x"})

	var limited *RateLimitError
	require.ErrorAs(t, err, &limited)
	assert.Equal(t, 3*time.Second, limited.RetryAfter)
	assert.False(t, errors.Is(err, ErrPermanent))
}

func TestTelegramSender_Media(t *testing.T) {
	api := &stubMessageSender{}
	s := NewTelegramSender(api)
	ctx := context.Background()

	require.NoError(t, s.Send(ctx, model.Notification{
		ChatID: 5, Text: "caption", Media: &model.Media{Kind: model.MediaPhoto, FileID: "photo-id"},
	}))
	require.NoError(t, s.Send(ctx, model.Notification{
		ChatID: 5, Text: "clip", Media: &model.Media{Kind: model.MediaVideo, FileID: "video-id"},
	}))
	require.NoError(t, s.Send(ctx, model.Notification{
		ChatID: 5, Text: "ignored", Media: &model.Media{Kind: model.MediaSticker, FileID: "sticker-id"},
	}))
	require.Len(t, api.got, 3)

	photo, ok := api.got[0].(tgbotapi.PhotoConfig)
	require.True(t, ok)
	assert.Equal(t, tgbotapi.FileID("photo-id"), photo.File)
	assert.Equal(t, "caption", photo.Caption)

	video, ok := api.got[1].(tgbotapi.VideoConfig)
	require.True(t, ok)
	assert.Equal(t, tgbotapi.FileID("video-id"), video.File)
	assert.Equal(t, "clip", video.Caption)

	sticker, ok := api.got[2].(tgbotapi.StickerConfig)
	require.True(t, ok)
	assert.Equal(t, int64(5), sticker.ChatID)

	err := s.Send(ctx, model.Notification{ChatID: 5, Media: &model.Media{Kind: "audio", FileID: "x"}})
	require.ErrorIs(t, err, ErrPermanent)
	assert.Len(t, api.got, 3)
}
