package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/shohjahonshahriyev-cloud/pulchi/internal/model"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/repository"
)

// ReferralOutcome описывает результат обработки реферала.
type ReferralOutcome int

const (
	// ReferralSkipped означает, что пригласившего нет или он совпадает с приглашённым.
	ReferralSkipped ReferralOutcome = iota
	// ReferralDuplicate означает, что за эту пару вознаграждение уже начислено.
	ReferralDuplicate
	// ReferralReferredUnverified означает, что приглашённый не подтвердил подписку.
	ReferralReferredUnverified
	// ReferralReferrerUnverified означает, что пригласивший не подтвердил подписку.
	ReferralReferrerUnverified
	// ReferralReferrerUnknown означает, что пригласившего нет в базе.
	ReferralReferrerUnknown
	// ReferralRewarded означает, что вознаграждение начислено.
	ReferralRewarded
)

func (o ReferralOutcome) String() string {
	switch o {
	case ReferralSkipped:
		return "skipped"
	case ReferralDuplicate:
		return "duplicate"
	case ReferralReferredUnverified:
		return "referred_unverified"
	case ReferralReferrerUnverified:
		return "referrer_unverified"
	case ReferralReferrerUnknown:
		return "referrer_unknown"
	case ReferralRewarded:
		return "rewarded"
	default:
		return "unknown"
	}
}

// FirstContact содержит данные первого обращения пользователя к боту.
type FirstContact struct {
	UserID     int64
	FirstName  string
	LastName   string
	Username   string
	StartParam string
}

// Registration описывает результат регистрации.
type Registration struct {
	User    *model.User
	Created bool
	Outcome ReferralOutcome
}

// ParseStartParam извлекает идентификатор пригласившего из параметра /start.
// Некорректный параметр означает отсутствие пригласившего.
func ParseStartParam(param string) *int64 {
	param = strings.TrimSpace(param)
	if param == "" {
		return nil
	}
	id, err := strconv.ParseInt(param, 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}

// RegisterUser регистрирует пользователя при первом обращении и обрабатывает реферальную ссылку.
// Повторное обращение с тем же пригласившим снова проходит через обработку реферала,
// поэтому прерванное начисление можно довести до конца.
func (s *Service) RegisterUser(ctx context.Context, fc FirstContact) (*Registration, error) {
	referrer := ParseStartParam(fc.StartParam)
	if referrer != nil && *referrer == fc.UserID {
		referrer = nil
	}

	u, created, err := s.repo.CreateUser(ctx, model.NewUser{
		ID:         fc.UserID,
		FirstName:  fc.FirstName,
		LastName:   fc.LastName,
		Username:   fc.Username,
		ReferredBy: referrer,
		IsAdmin:    s.settings.IsAdmin(fc.UserID),
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	reg := &Registration{User: u, Created: created, Outcome: ReferralSkipped}

	if referrer == nil || u.ReferredBy == nil || *u.ReferredBy != *referrer {
		return reg, nil
	}

	outcome, err := s.ProcessReferral(ctx, *referrer, u.ID)
	if err != nil {
		s.logger.Error("process referral",
			zap.Int64("referrer_id", *referrer),
			zap.Int64("referred_id", u.ID),
			zap.Error(err),
		)
		return reg, nil
	}
	reg.Outcome = outcome

	s.logger.Info("referral processed",
		zap.Int64("referrer_id", *referrer),
		zap.Int64("referred_id", u.ID),
		zap.Stringer("outcome", outcome),
	)

	return reg, nil
}

// ProcessReferral начисляет вознаграждение пригласившему не более одного раза на пару.
func (s *Service) ProcessReferral(ctx context.Context, referrerID, referredID int64) (ReferralOutcome, error) {
	if referrerID == 0 || referrerID == referredID {
		return ReferralSkipped, nil
	}

	exists, err := s.repo.ReferralExists(ctx, referrerID, referredID)
	if err != nil {
		return ReferralSkipped, err
	}
	if exists {
		return ReferralDuplicate, nil
	}

	if !s.gate.Verified(ctx, referredID) {
		return ReferralReferredUnverified, nil
	}

	referrer, err := s.repo.GetUser(ctx, referrerID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ReferralReferrerUnknown, nil
		}
		return ReferralSkipped, err
	}

	if !s.gate.Verified(ctx, referrerID) {
		s.notify(ctx, model.Notification{
			ChatID: referrerID,
			Text:   subscriptionWarningText(s.settings.SponsorChannels()),
		})
		s.notify(ctx, model.Notification{
			ChatID: s.settings.AdminID(),
			Text:   referrerNotRewardedText(referrer),
		})
		return ReferralReferrerUnverified, nil
	}

	reward := s.settings.ReferralReward()
	referrer, err = s.repo.CreateReferral(ctx, referrerID, referredID, reward)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrReferralExists):
			return ReferralDuplicate, nil
		case errors.Is(err, repository.ErrUserNotFound):
			return ReferralReferrerUnknown, nil
		default:
			return ReferralSkipped, err
		}
	}

	s.notify(ctx, model.Notification{
		ChatID: referrerID,
		Text:   newReferralText(reward, referrer.Balance),
	})

	return ReferralRewarded, nil
}
