package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/shohjahonshahriyev-cloud/pulchi/internal/command"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/model"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/validation"
)

// SubmitWithdrawal проверяет заявку, списывает сумму с баланса и уведомляет администратора.
// Возвращает созданную заявку и баланс после списания.
func (s *Service) SubmitWithdrawal(ctx context.Context, userID, amount int64, card string) (*model.Withdrawal, int64, error) {
	if amount <= 0 {
		return nil, 0, ErrInvalidAmount
	}

	card = validation.NormalizeCardNumber(card)
	if !validation.IsValidCardNumber(card) {
		return nil, 0, ErrInvalidCardNumber
	}

	if minimum := s.settings.MinimumWithdrawal(); amount < minimum {
		return nil, 0, fmt.Errorf("%w: minimum is %d", ErrBelowMinimum, minimum)
	}

	if !s.gate.Verified(ctx, userID) {
		return nil, 0, ErrNotSubscribed
	}

	w, balance, err := s.repo.CreateWithdrawal(ctx, model.NewWithdrawal{
		UserID:     userID,
		Amount:     amount,
		CardNumber: card,
	})
	if err != nil {
		return nil, 0, err
	}

	s.logger.Info("withdrawal submitted",
		zap.Int64("withdrawal_id", w.ID),
		zap.Int64("user_id", userID),
		zap.Int64("amount", amount),
	)

	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		s.logger.Warn("load user for admin notice", zap.Int64("user_id", userID), zap.Error(err))
		u = &model.User{ID: userID}
	}

	s.notify(ctx, model.Notification{
		ChatID: s.settings.AdminID(),
		Text:   newWithdrawalAdminText(u, w),
		Buttons: []model.Button{
			{Text: "✅ Tasdiqlash", Data: command.ApproveCallback(w.ID)},
			{Text: "❌ Rad etish", Data: command.RejectCallback(w.ID)},
		},
	})

	return w, balance, nil
}

// ApproveWithdrawal подтверждает заявку. Баланс не меняется, сумма была списана при подаче.
func (s *Service) ApproveWithdrawal(ctx context.Context, actorID, id int64) (*model.Withdrawal, error) {
	if err := s.requireAdmin(actorID); err != nil {
		return nil, err
	}

	w, err := s.repo.ResolveWithdrawal(ctx, id, model.WithdrawalApproved)
	if err != nil {
		return nil, err
	}

	s.logger.Info("withdrawal approved", zap.Int64("withdrawal_id", id), zap.Int64("user_id", w.UserID))
	s.notify(ctx, model.Notification{ChatID: w.UserID, Text: withdrawalApprovedText(w)})

	return w, nil
}

// RejectWithdrawal отклоняет заявку и возвращает сумму на баланс пользователя.
func (s *Service) RejectWithdrawal(ctx context.Context, actorID, id int64) (*model.Withdrawal, error) {
	if err := s.requireAdmin(actorID); err != nil {
		return nil, err
	}

	w, err := s.repo.ResolveWithdrawal(ctx, id, model.WithdrawalRejected)
	if err != nil {
		return nil, err
	}

	s.logger.Info("withdrawal rejected", zap.Int64("withdrawal_id", id), zap.Int64("user_id", w.UserID))
	s.notify(ctx, model.Notification{ChatID: w.UserID, Text: withdrawalRejectedText(w)})

	return w, nil
}

// CancelWithdrawal отменяет заявку пользователя, покинувшего спонсорский канал, с возвратом суммы.
func (s *Service) CancelWithdrawal(ctx context.Context, id int64) (*model.Withdrawal, error) {
	w, err := s.repo.ResolveWithdrawal(ctx, id, model.WithdrawalCancelled)
	if err != nil {
		return nil, err
	}

	s.logger.Info("withdrawal cancelled", zap.Int64("withdrawal_id", id), zap.Int64("user_id", w.UserID))
	s.notify(ctx, model.Notification{
		ChatID: w.UserID,
		Text:   withdrawalsCancelledText(s.settings.SponsorChannels(), 1, w.Amount),
	})

	return w, nil
}

// ListPendingWithdrawals возвращает заявки, ожидающие решения.
func (s *Service) ListPendingWithdrawals(ctx context.Context, limit int) ([]model.Withdrawal, error) {
	return s.repo.ListPendingWithdrawals(ctx, limit)
}
