package repository

import (
	"database/sql"

	"github.com/shohjahonshahriyev-cloud/pulchi/internal/model"
)

const userColumns = `id, first_name, last_name, username, balance, referral_count, referred_by, is_admin, created_at`

const withdrawalColumns = `id, user_id, amount, card_number, status, created_at, processed_at`

// rowScanner покрывает pgx.Row, *sql.Row и *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u          model.User
		referredBy sql.NullInt64
	)
	err := row.Scan(
		&u.ID,
		&u.FirstName,
		&u.LastName,
		&u.Username,
		&u.Balance,
		&u.ReferralCount,
		&referredBy,
		&u.IsAdmin,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if referredBy.Valid {
		v := referredBy.Int64
		u.ReferredBy = &v
	}
	return &u, nil
}

func scanWithdrawal(row rowScanner) (*model.Withdrawal, error) {
	var (
		w           model.Withdrawal
		status      string
		processedAt sql.NullTime
	)
	err := row.Scan(
		&w.ID,
		&w.UserID,
		&w.Amount,
		&w.CardNumber,
		&status,
		&w.CreatedAt,
		&processedAt,
	)
	if err != nil {
		return nil, err
	}
	w.Status = model.WithdrawalStatus(status)
	if processedAt.Valid {
		t := processedAt.Time
		w.ProcessedAt = &t
	}
	return &w, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}
