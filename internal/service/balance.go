package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/shohjahonshahriyev-cloud/pulchi/internal/model"
)

// AdjustBalance изменяет баланс пользователя по команде администратора.
func (s *Service) AdjustBalance(ctx context.Context, actorID, userID, delta int64) (*model.BalanceChange, error) {
	if err := s.requireAdmin(actorID); err != nil {
		return nil, err
	}
	if delta == 0 {
		return nil, ErrInvalidAmount
	}

	change, err := s.repo.AdjustBalance(ctx, userID, delta)
	if err != nil {
		return nil, err
	}

	s.logger.Info("balance adjusted",
		zap.Int64("user_id", userID),
		zap.Int64("delta", delta),
		zap.Int64("balance", change.NewBalance),
	)
	s.notify(ctx, model.Notification{ChatID: userID, Text: balanceChangedText(change)})

	return change, nil
}
