package bot

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/shohjahonshahriyev-cloud/pulchi/internal/command"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/model"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/repository"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/service"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil {
		return
	}

	switch c := command.ParseCallback(cb.Data).(type) {
	case command.Approve:
		b.handleDecision(ctx, cb, c.WithdrawalID, b.svc.ApproveWithdrawal, "To'lov tasdiqlandi!")
	case command.Reject:
		b.handleDecision(ctx, cb, c.WithdrawalID, b.svc.RejectWithdrawal, "To'lov rad etildi!")
	case command.CheckSubscription:
		b.handleCheckSubscription(ctx, cb)
	case command.CopyLink:
		b.reply(cb.From.ID, "🔗 Havola nusxalandi:\n"+ReferralLink(b.username, cb.From.ID), nil)
		b.answer(cb.ID, "Havola nusxalandi!")
	default:
		b.answer(cb.ID, "")
	}
}

type decisionFunc func(ctx context.Context, actorID, id int64) (*model.Withdrawal, error)

func (b *Bot) handleDecision(ctx context.Context, cb *tgbotapi.CallbackQuery, id int64, decide decisionFunc, done string) {
	w, err := decide(ctx, cb.From.ID, id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotAdmin):
			b.answer(cb.ID, notAdminText)
		case errors.Is(err, repository.ErrAlreadyProcessed):
			b.answer(cb.ID, alreadyHandledText)
		case errors.Is(err, repository.ErrWithdrawalNotFound):
			b.answer(cb.ID, notFoundText)
		default:
			b.logger.Error("withdrawal decision", zap.Int64("withdrawal_id", id), zap.Error(err))
			b.answer(cb.ID, failureText)
		}
		return
	}

	if cb.Message != nil && cb.Message.Chat != nil {
		b.send(tgbotapi.NewEditMessageText(cb.Message.Chat.ID, cb.Message.MessageID, decisionText(w)))
	}
	b.answer(cb.ID, done)
}

func (b *Bot) handleCheckSubscription(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	userID := cb.From.ID

	if !b.svc.Verified(ctx, userID) {
		if cb.Message != nil && cb.Message.Chat != nil {
			edit := tgbotapi.NewEditMessageTextAndMarkup(cb.Message.Chat.ID, cb.Message.MessageID,
				subscriptionFailedText, subscriptionKeyboard(b.svc.Settings().SponsorChannels()))
			b.send(edit)
		}
		b.answer(cb.ID, "Obuna tekshirildi!")
		return
	}

	if cb.Message != nil && cb.Message.Chat != nil {
		if _, err := b.api.Request(tgbotapi.NewDeleteMessage(cb.Message.Chat.ID, cb.Message.MessageID)); err != nil {
			b.logger.Debug("delete subscription prompt", zap.Error(err))
		}
	}

	b.reply(userID, subscribedText, mainKeyboard())
	b.answer(cb.ID, "Obuna tekshirildi!")

	// Начисление, отложенное до подтверждения подписки приглашённого.
	u, err := b.svc.GetUser(ctx, userID)
	if err != nil || u.ReferredBy == nil {
		return
	}
	outcome, err := b.svc.ProcessReferral(ctx, *u.ReferredBy, userID)
	if err != nil {
		b.logger.Error("process referral", zap.Int64("referred_id", userID), zap.Error(err))
		return
	}
	b.logger.Info("referral processed after subscription check",
		zap.Int64("referrer_id", *u.ReferredBy),
		zap.Int64("referred_id", userID),
		zap.Stringer("outcome", outcome),
	)
}
