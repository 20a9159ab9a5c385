// Package subscription проверяет подписку пользователей на спонсорские каналы.
package subscription

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ErrTimeout возвращается, если сервис не ответил за отведённое время.
var ErrTimeout = errors.New("membership check timed out")

// Oracle отвечает на вопрос, состоит ли пользователь в канале.
type Oracle interface {
	IsMember(ctx context.Context, userID int64, channel string) (bool, error)
}

// Verdict описывает результат проверки подписки.
type Verdict int

const (
	// VerdictUnknown означает, что проверку выполнить не удалось.
	VerdictUnknown Verdict = iota
	// VerdictMember означает, что пользователь подписан на все каналы.
	VerdictMember
	// VerdictNotMember означает, что пользователь точно не подписан хотя бы на один канал.
	VerdictNotMember
)

func (v Verdict) String() string {
	switch v {
	case VerdictMember:
		return "member"
	case VerdictNotMember:
		return "not_member"
	default:
		return "unknown"
	}
}

// Source предоставляет текущие настройки проверки.
type Source interface {
	SponsorChannels() []string
	SkipCheck() bool
}

// Checker проверяет подписку на все спонсорские каналы с ограничением времени на каждый запрос.
type Checker struct {
	oracle  Oracle
	source  Source
	timeout time.Duration
	logger  *zap.Logger
}

// NewChecker создаёт Checker.
func NewChecker(oracle Oracle, source Source, timeout time.Duration, logger *zap.Logger) *Checker {
	return &Checker{
		oracle:  oracle,
		source:  source,
		timeout: timeout,
		logger:  logger,
	}
}

// Check возвращает вердикт по всем каналам. Без каналов или в режиме пропуска пользователь считается подписанным.
func (c *Checker) Check(ctx context.Context, userID int64) Verdict {
	if c.source.SkipCheck() {
		return VerdictMember
	}

	channels := c.source.SponsorChannels()
	if len(channels) == 0 {
		return VerdictMember
	}

	for _, ch := range channels {
		ok, err := c.isMember(ctx, userID, ch)
		if err != nil {
			c.logger.Warn("membership check failed",
				zap.Int64("user_id", userID),
				zap.String("channel", ch),
				zap.Error(err),
			)
			return VerdictUnknown
		}
		if !ok {
			return VerdictNotMember
		}
	}

	return VerdictMember
}

// Verified сообщает, подписан ли пользователь. Неизвестный результат считается отказом.
func (c *Checker) Verified(ctx context.Context, userID int64) bool {
	return c.Check(ctx, userID) == VerdictMember
}

func (c *Checker) isMember(ctx context.Context, userID int64, channel string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type result struct {
		ok  bool
		err error
	}

	done := make(chan result, 1)
	go func() {
		ok, err := c.oracle.IsMember(ctx, userID, channel)
		done <- result{ok: ok, err: err}
	}()

	select {
	case res := <-done:
		return res.ok, res.err
	case <-ctx.Done():
		return false, errors.Join(ErrTimeout, ctx.Err())
	}
}
