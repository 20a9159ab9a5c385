package repository

import "errors"

var (
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrReferralExists возвращается при повторной попытке создать связь реферала для той же пары.
	ErrReferralExists = errors.New("referral already exists")
	// ErrInsufficientBalance возвращается, если операция сделала бы баланс отрицательным.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrWithdrawalNotFound возвращается, если заявка на вывод не найдена.
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
	// ErrAlreadyProcessed возвращается при попытке изменить заявку, которая уже не в статусе pending.
	ErrAlreadyProcessed = errors.New("withdrawal already processed")
)
