// Package model содержит доменные сущности реферального бота.
package model

import "time"

// User представляет пользователя бота. Идентификатор совпадает с идентификатором пользователя Telegram.
type User struct {
	ID            int64
	FirstName     string
	LastName      string
	Username      string
	Balance       int64
	ReferralCount int64
	ReferredBy    *int64
	IsAdmin       bool
	CreatedAt     time.Time
}

// DisplayName возвращает имя пользователя для сообщений.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return "@" + u.Username
	default:
		return "unknown"
	}
}

// NewUser содержит данные для создания пользователя при первом обращении к боту.
type NewUser struct {
	ID         int64
	FirstName  string
	LastName   string
	Username   string
	ReferredBy *int64
	IsAdmin    bool
}

// Referral описывает связь пригласившего и приглашённого пользователя.
type Referral struct {
	ReferrerID   int64
	ReferredID   int64
	RewardGiven  bool
	CreatedAt    time.Time
	ReferredName string
}

// WithdrawalStatus описывает статус заявки на вывод средств.
type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalApproved  WithdrawalStatus = "approved"
	WithdrawalRejected  WithdrawalStatus = "rejected"
	WithdrawalCancelled WithdrawalStatus = "cancelled"
)

// IsTerminal сообщает, является ли статус конечным.
func (s WithdrawalStatus) IsTerminal() bool {
	return s == WithdrawalApproved || s == WithdrawalRejected || s == WithdrawalCancelled
}

// Refunds сообщает, возвращается ли сумма заявки на баланс при переходе в этот статус.
func (s WithdrawalStatus) Refunds() bool {
	return s == WithdrawalRejected || s == WithdrawalCancelled
}

// Withdrawal описывает заявку на вывод средств.
type Withdrawal struct {
	ID          int64
	UserID      int64
	Amount      int64
	CardNumber  string
	Status      WithdrawalStatus
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// NewWithdrawal содержит данные новой заявки на вывод.
type NewWithdrawal struct {
	UserID     int64
	Amount     int64
	CardNumber string
}

// BalanceChange описывает результат ручной корректировки баланса.
type BalanceChange struct {
	UserID     int64
	OldBalance int64
	NewBalance int64
	Delta      int64
}

// Stats содержит агрегированную статистику бота.
type Stats struct {
	Users          int64
	ActiveUsers    int64
	TotalBalance   int64
	Pending        int64
	Approved       int64
	Rejected       int64
	Cancelled      int64
	ApprovedAmount int64
}

// Button описывает inline-кнопку уведомления.
type Button struct {
	Text string
	Data string
}

// MediaKind определяет тип вложения.
type MediaKind string

const (
	MediaPhoto   MediaKind = "photo"
	MediaVideo   MediaKind = "video"
	MediaSticker MediaKind = "sticker"
)

// Media - файл, уже загруженный в Telegram. Повторно отправляется по FileID.
type Media struct {
	Kind   MediaKind
	FileID string
}

// Notification описывает исходящее уведомление пользователю.
// Если задано Media, Text отправляется как подпись (для стикера игнорируется).
type Notification struct {
	ID        string
	ChatID    int64
	Text      string
	Media     *Media
	Buttons   []Button
	Attempts  int
	CreatedAt time.Time
	// NextAttemptAt - время, раньше которого повторная отправка не выполняется.
	NextAttemptAt time.Time
}
