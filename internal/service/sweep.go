package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/shohjahonshahriyev-cloud/pulchi/internal/model"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/repository"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/subscription"
)

const sweepBatchSize = 1000

// SweepReport содержит итоги проверки подписок.
type SweepReport struct {
	Checked   int
	Unknown   int
	Cancelled int
	Refunded  int64
	LeftUsers []int64
}

// SweepSubscriptions проверяет подписку всех пользователей с заявками в статусе pending.
// Заявки пользователя отменяются только при точном ответе "не подписан".
func (s *Service) SweepSubscriptions(ctx context.Context) (*SweepReport, error) {
	pending, err := s.repo.ListPendingWithdrawals(ctx, sweepBatchSize)
	if err != nil {
		return nil, err
	}

	var order []int64
	byUser := make(map[int64][]model.Withdrawal)
	for _, w := range pending {
		if _, ok := byUser[w.UserID]; !ok {
			order = append(order, w.UserID)
		}
		byUser[w.UserID] = append(byUser[w.UserID], w)
	}

	report := &SweepReport{}
	for _, userID := range order {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		report.Checked++

		switch s.gate.Check(ctx, userID) {
		case subscription.VerdictMember:
			continue
		case subscription.VerdictUnknown:
			report.Unknown++
			continue
		}

		cancelled, refunded := 0, int64(0)
		for _, w := range byUser[userID] {
			if _, err := s.repo.ResolveWithdrawal(ctx, w.ID, model.WithdrawalCancelled); err != nil {
				if errors.Is(err, repository.ErrAlreadyProcessed) {
					continue
				}
				return report, err
			}
			cancelled++
			refunded += w.Amount
		}

		if cancelled == 0 {
			continue
		}

		report.Cancelled += cancelled
		report.Refunded += refunded
		report.LeftUsers = append(report.LeftUsers, userID)

		s.logger.Info("withdrawals cancelled after leaving sponsor channel",
			zap.Int64("user_id", userID),
			zap.Int("count", cancelled),
			zap.Int64("refunded", refunded),
		)
		s.notify(ctx, model.Notification{
			ChatID: userID,
			Text:   withdrawalsCancelledText(s.settings.SponsorChannels(), cancelled, refunded),
		})
	}

	return report, nil
}

// RunSubscriptionSweep периодически проверяет подписки до отмены контекста.
// При interval <= 0 проверка отключена и метод сразу возвращается.
func (s *Service) RunSubscriptionSweep(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			report, err := s.SweepSubscriptions(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("subscription sweep", zap.Error(err))
				continue
			}
			if report.Cancelled > 0 || report.Unknown > 0 {
				s.logger.Info("subscription sweep finished",
					zap.Int("checked", report.Checked),
					zap.Int("unknown", report.Unknown),
					zap.Int("cancelled", report.Cancelled),
				)
			}
		}
	}
}
