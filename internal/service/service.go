// Package service реализует бизнес-логику реферального бота: начисления за рефералов,
// заявки на вывод средств и ручную корректировку баланса.
package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/shohjahonshahriyev-cloud/pulchi/internal/config"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/model"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/subscription"
)

var (
	// ErrInvalidAmount возвращается при нулевой или отрицательной сумме.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidCardNumber возвращается, если номер карты не состоит из 16-19 цифр.
	ErrInvalidCardNumber = errors.New("invalid card number")
	// ErrBelowMinimum возвращается, если сумма вывода меньше минимальной.
	ErrBelowMinimum = errors.New("amount below minimum withdrawal")
	// ErrNotSubscribed возвращается, если подписку на спонсорские каналы не удалось подтвердить.
	ErrNotSubscribed = errors.New("not subscribed to sponsor channels")
	// ErrNotAdmin возвращается, если действие выполняет не администратор.
	ErrNotAdmin = errors.New("not an administrator")
	// ErrEmptyMessage возвращается при попытке разослать пустое сообщение.
	ErrEmptyMessage = errors.New("empty message")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, nu model.NewUser) (*model.User, bool, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	ListUsers(ctx context.Context, limit int) ([]model.User, error)
	UserIDs(ctx context.Context, afterID int64, limit int) ([]int64, error)
	Stats(ctx context.Context) (*model.Stats, error)
	ReferralExists(ctx context.Context, referrerID, referredID int64) (bool, error)
	CreateReferral(ctx context.Context, referrerID, referredID, reward int64) (*model.User, error)
	ListReferrals(ctx context.Context, referrerID int64) ([]model.Referral, error)
	CreateWithdrawal(ctx context.Context, nw model.NewWithdrawal) (*model.Withdrawal, int64, error)
	GetWithdrawal(ctx context.Context, id int64) (*model.Withdrawal, error)
	ResolveWithdrawal(ctx context.Context, id int64, to model.WithdrawalStatus) (*model.Withdrawal, error)
	ListPendingWithdrawals(ctx context.Context, limit int) ([]model.Withdrawal, error)
	GetWithdrawalsByUser(ctx context.Context, userID int64) ([]model.Withdrawal, error)
	AdjustBalance(ctx context.Context, userID, delta int64) (*model.BalanceChange, error)
}

// Notifier ставит уведомление в очередь на отправку.
type Notifier interface {
	Enqueue(ctx context.Context, n model.Notification) error
}

// Gate проверяет подписку пользователя на спонсорские каналы.
type Gate interface {
	Check(ctx context.Context, userID int64) subscription.Verdict
	Verified(ctx context.Context, userID int64) bool
}

// Service содержит бизнес-логику реферального бота.
type Service struct {
	repo     Repository
	settings *config.Settings
	gate     Gate
	notifier Notifier
	logger   *zap.Logger
}

// NewService создаёт новый сервис.
func NewService(repo Repository, settings *config.Settings, gate Gate, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		settings: settings,
		gate:     gate,
		notifier: notifier,
		logger:   logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Settings возвращает хранилище изменяемых настроек.
func (s *Service) Settings() *config.Settings {
	return s.settings
}

// IsAdmin сообщает, является ли пользователь администратором.
func (s *Service) IsAdmin(userID int64) bool {
	return s.settings.IsAdmin(userID)
}

// Verified сообщает, подтверждена ли подписка пользователя.
func (s *Service) Verified(ctx context.Context, userID int64) bool {
	return s.gate.Verified(ctx, userID)
}

// GetUser возвращает пользователя.
func (s *Service) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	return s.repo.GetUser(ctx, userID)
}

// ListReferrals возвращает приглашённых пользователем людей.
func (s *Service) ListReferrals(ctx context.Context, userID int64) ([]model.Referral, error) {
	return s.repo.ListReferrals(ctx, userID)
}

// GetWithdrawalsByUser возвращает историю заявок пользователя.
func (s *Service) GetWithdrawalsByUser(ctx context.Context, userID int64) ([]model.Withdrawal, error) {
	return s.repo.GetWithdrawalsByUser(ctx, userID)
}

// GetWithdrawal возвращает заявку по идентификатору.
func (s *Service) GetWithdrawal(ctx context.Context, id int64) (*model.Withdrawal, error) {
	return s.repo.GetWithdrawal(ctx, id)
}

func (s *Service) notify(ctx context.Context, n model.Notification) {
	if s.notifier == nil || n.ChatID == 0 {
		return
	}
	if err := s.notifier.Enqueue(ctx, n); err != nil {
		s.logger.Error("enqueue notification",
			zap.Int64("chat_id", n.ChatID),
			zap.Error(err),
		)
	}
}

func (s *Service) requireAdmin(actorID int64) error {
	if !s.settings.IsAdmin(actorID) {
		return ErrNotAdmin
	}
	return nil
}
