package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/shohjahonshahriyev-cloud/pulchi/internal/model"
)

const broadcastPageSize = 500

// Stats возвращает агрегированную статистику.
func (s *Service) Stats(ctx context.Context) (*model.Stats, error) {
	return s.repo.Stats(ctx)
}

// ListUsers возвращает последних зарегистрированных пользователей.
func (s *Service) ListUsers(ctx context.Context, limit int) ([]model.User, error) {
	return s.repo.ListUsers(ctx, limit)
}

// Broadcast ставит сообщение в очередь для всех пользователей и возвращает число адресатов.
func (s *Service) Broadcast(ctx context.Context, actorID int64, text string) (int, error) {
	if err := s.requireAdmin(actorID); err != nil {
		return 0, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return 0, ErrEmptyMessage
	}

	return s.broadcast(ctx, model.Notification{Text: text})
}

// BroadcastMedia рассылает всем пользователям фото, видео или стикер, загруженный администратором.
func (s *Service) BroadcastMedia(ctx context.Context, actorID int64, media model.Media, caption string) (int, error) {
	if err := s.requireAdmin(actorID); err != nil {
		return 0, err
	}
	if media.FileID == "" {
		return 0, ErrEmptyMessage
	}

	n := model.Notification{Media: &media}
	switch media.Kind {
	case model.MediaPhoto, model.MediaVideo:
		n.Text = adminBroadcastCaption(caption)
	case model.MediaSticker:
	default:
		return 0, fmt.Errorf("unsupported media kind %q", media.Kind)
	}

	return s.broadcast(ctx, n)
}

func (s *Service) broadcast(ctx context.Context, tmpl model.Notification) (int, error) {
	if s.notifier == nil {
		return 0, errors.New("notifier is not configured")
	}

	var (
		after int64
		total int
	)
	for {
		ids, err := s.repo.UserIDs(ctx, after, broadcastPageSize)
		if err != nil {
			return total, err
		}
		for _, id := range ids {
			n := tmpl
			n.ChatID = id
			if err := s.notifier.Enqueue(ctx, n); err != nil {
				return total, fmt.Errorf("enqueue broadcast: %w", err)
			}
			total++
		}
		if len(ids) < broadcastPageSize {
			break
		}
		after = ids[len(ids)-1]
	}

	kind := "text"
	if tmpl.Media != nil {
		kind = string(tmpl.Media.Kind)
	}
	s.logger.Info("broadcast queued", zap.String("kind", kind), zap.Int("recipients", total))
	return total, nil
}

// AddChannel добавляет спонсорский канал.
func (s *Service) AddChannel(actorID int64, channel string) (bool, error) {
	if err := s.requireAdmin(actorID); err != nil {
		return false, err
	}
	added, err := s.settings.AddChannel(channel)
	if err == nil && added {
		s.logger.Info("sponsor channel added", zap.String("channel", channel))
	}
	return added, err
}

// RemoveChannel удаляет спонсорский канал.
func (s *Service) RemoveChannel(actorID int64, channel string) (bool, error) {
	if err := s.requireAdmin(actorID); err != nil {
		return false, err
	}
	removed, err := s.settings.RemoveChannel(channel)
	if err == nil && removed {
		s.logger.Info("sponsor channel removed", zap.String("channel", channel))
	}
	return removed, err
}

// ClearChannels удаляет все спонсорские каналы.
func (s *Service) ClearChannels(actorID int64) error {
	if err := s.requireAdmin(actorID); err != nil {
		return err
	}
	if err := s.settings.ClearChannels(); err != nil {
		return err
	}
	s.logger.Info("sponsor channels cleared")
	return nil
}

// SetReferralReward меняет вознаграждение за реферала. Уже начисленные суммы не пересчитываются.
func (s *Service) SetReferralReward(actorID, reward int64) error {
	if err := s.requireAdmin(actorID); err != nil {
		return err
	}
	return s.settings.SetReferralReward(reward)
}

// SetMinimumWithdrawal меняет минимальную сумму вывода.
func (s *Service) SetMinimumWithdrawal(actorID, minimum int64) error {
	if err := s.requireAdmin(actorID); err != nil {
		return err
	}
	return s.settings.SetMinimumWithdrawal(minimum)
}
