package command

import (
	"strconv"
	"strings"
)

// Данные inline-кнопок.
const (
	CallbackCheckSubscription = "check_subscription"
	CallbackCopyLink          = "copy_link"

	approvePrefix = "approve_withdrawal:"
	rejectPrefix  = "reject_withdrawal:"
)

// Callback - разобранные данные нажатой inline-кнопки.
type Callback interface {
	callback()
}

// Approve - подтверждение заявки на вывод.
type Approve struct {
	WithdrawalID int64
}

// Reject - отклонение заявки на вывод.
type Reject struct {
	WithdrawalID int64
}

// CheckSubscription - повторная проверка подписки.
type CheckSubscription struct{}

// CopyLink - запрос реферальной ссылки.
type CopyLink struct{}

// UnknownCallback - неизвестные данные.
type UnknownCallback struct {
	Data string
}

func (Approve) callback()           {}
func (Reject) callback()            {}
func (CheckSubscription) callback() {}
func (CopyLink) callback()          {}
func (UnknownCallback) callback()   {}

// ApproveCallback возвращает данные кнопки подтверждения заявки.
func ApproveCallback(id int64) string {
	return approvePrefix + strconv.FormatInt(id, 10)
}

// RejectCallback возвращает данные кнопки отклонения заявки.
func RejectCallback(id int64) string {
	return rejectPrefix + strconv.FormatInt(id, 10)
}

// ParseCallback разбирает данные inline-кнопки.
func ParseCallback(data string) Callback {
	switch {
	case data == CallbackCheckSubscription:
		return CheckSubscription{}
	case data == CallbackCopyLink:
		return CopyLink{}
	case strings.HasPrefix(data, approvePrefix):
		if id, ok := parseID(strings.TrimPrefix(data, approvePrefix)); ok {
			return Approve{WithdrawalID: id}
		}
	case strings.HasPrefix(data, rejectPrefix):
		if id, ok := parseID(strings.TrimPrefix(data, rejectPrefix)); ok {
			return Reject{WithdrawalID: id}
		}
	}
	return UnknownCallback{Data: data}
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
