// Package bot связывает Telegram Bot API с сервисом: принимает обновления long polling,
// разбирает команды и отображает меню.
package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/shohjahonshahriyev-cloud/pulchi/internal/config"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/model"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/service"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/telegram"
)

// API покрывает используемые методы клиента Telegram.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Service описывает операции сервиса, доступные из чата.
type Service interface {
	Settings() *config.Settings
	IsAdmin(userID int64) bool
	Verified(ctx context.Context, userID int64) bool

	RegisterUser(ctx context.Context, fc service.FirstContact) (*service.Registration, error)
	ProcessReferral(ctx context.Context, referrerID, referredID int64) (service.ReferralOutcome, error)
	GetUser(ctx context.Context, userID int64) (*model.User, error)
	ListReferrals(ctx context.Context, userID int64) ([]model.Referral, error)

	SubmitWithdrawal(ctx context.Context, userID, amount int64, card string) (*model.Withdrawal, int64, error)
	ApproveWithdrawal(ctx context.Context, actorID, id int64) (*model.Withdrawal, error)
	RejectWithdrawal(ctx context.Context, actorID, id int64) (*model.Withdrawal, error)
	AdjustBalance(ctx context.Context, actorID, userID, delta int64) (*model.BalanceChange, error)

	Stats(ctx context.Context) (*model.Stats, error)
	ListUsers(ctx context.Context, limit int) ([]model.User, error)
	ListPendingWithdrawals(ctx context.Context, limit int) ([]model.Withdrawal, error)
	SweepSubscriptions(ctx context.Context) (*service.SweepReport, error)
	Broadcast(ctx context.Context, actorID int64, text string) (int, error)
	BroadcastMedia(ctx context.Context, actorID int64, media model.Media, caption string) (int, error)

	AddChannel(actorID int64, channel string) (bool, error)
	RemoveChannel(actorID int64, channel string) (bool, error)
	ClearChannels(actorID int64) error
	SetReferralReward(actorID, reward int64) error
	SetMinimumWithdrawal(actorID, minimum int64) error
}

// Bot обрабатывает обновления Telegram.
type Bot struct {
	api      API
	svc      Service
	username string
	logger   *zap.Logger

	wg sync.WaitGroup
}

// New создаёт бота. username нужен для построения реферальных ссылок.
func New(api API, svc Service, username string, logger *zap.Logger) *Bot {
	return &Bot{
		api:      api,
		svc:      svc,
		username: username,
		logger:   logger,
	}
}

// ReferralLink возвращает реферальную ссылку пользователя.
func ReferralLink(botUsername string, userID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%d", botUsername, userID)
}

// Run получает обновления до отмены контекста. Каждое обновление обрабатывается в отдельной горутине.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = telegram.PollTimeout

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("bot polling started", zap.String("username", b.username))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			b.logger.Info("bot polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return nil
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.HandleUpdate(ctx, update)
			}()
		}
	}
}

// HandleUpdate обрабатывает одно обновление. Паника в обработчике не останавливает бота.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("update handler panic",
				zap.Int("update_id", update.UpdateID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.logger.Warn("send message", zap.Error(err))
	}
}

func (b *Bot) reply(chatID int64, text string, markup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	b.send(msg)
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.logger.Warn("answer callback", zap.Error(err))
	}
}
