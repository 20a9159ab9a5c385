// Package repository содержит реализацию хранилища бота: пользователи, рефералы и заявки на вывод.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, 1 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(delays) {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delays[i]):
		}
	}
	return err
}

// isRetryable сообщает, имеет ли смысл повторить транзакцию.
// Повторяются конфликты сериализации, взаимные блокировки и обрывы соединения.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт пользователя, если его ещё нет. Возвращает сохранённую запись и признак создания.
func (r *PostgresRepository) CreateUser(ctx context.Context, nu model.NewUser) (*model.User, bool, error) {
	var (
		u       *model.User
		created bool
	)

	err := r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx,
			`INSERT INTO users (id, first_name, last_name, username, referred_by, is_admin)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO NOTHING`,
			nu.ID, nu.FirstName, nu.LastName, nu.Username, nullableID(nu.ReferredBy), nu.IsAdmin,
		)
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		created = tag.RowsAffected() == 1

		u, err = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, nu.ID))
		if err != nil {
			return fmt.Errorf("select user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return u, created, nil
}

// GetUser возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUser(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// ListUsers возвращает последних зарегистрированных пользователей.
func (r *PostgresRepository) ListUsers(ctx context.Context, limit int) ([]model.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var res []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		res = append(res, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UserIDs постранично возвращает идентификаторы пользователей больше afterID по возрастанию.
func (r *PostgresRepository) UserIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM users WHERE id > $1 ORDER BY id LIMIT $2`,
		afterID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select user ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return ids, nil
}

// Stats возвращает агрегированную статистику по пользователям и заявкам.
func (r *PostgresRepository) Stats(ctx context.Context) (*model.Stats, error) {
	var s model.Stats

	err := r.pool.QueryRow(ctx, statsUsersQuery).Scan(&s.Users, &s.ActiveUsers, &s.TotalBalance)
	if err != nil {
		return nil, fmt.Errorf("user stats: %w", err)
	}

	err = r.pool.QueryRow(ctx, statsWithdrawalsQuery).Scan(
		&s.Pending, &s.Approved, &s.Rejected, &s.Cancelled, &s.ApprovedAmount,
	)
	if err != nil {
		return nil, fmt.Errorf("withdrawal stats: %w", err)
	}

	return &s, nil
}

// ReferralExists сообщает, существует ли связь между пригласившим и приглашённым.
func (r *PostgresRepository) ReferralExists(ctx context.Context, referrerID, referredID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM referrals WHERE referrer_id = $1 AND referred_id = $2)`,
		referrerID, referredID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check referral: %w", err)
	}
	return exists, nil
}

// CreateReferral в одной транзакции создаёт связь реферала и начисляет вознаграждение пригласившему.
// Возвращает пригласившего пользователя после начисления.
func (r *PostgresRepository) CreateReferral(ctx context.Context, referrerID, referredID, reward int64) (*model.User, error) {
	var referrer *model.User

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		// Блокируем строку пригласившего, чтобы начисления по нему шли последовательно.
		var dummy int
		err = tx.QueryRow(ctx, `SELECT 1 FROM users WHERE id = $1 FOR UPDATE`, referrerID).Scan(&dummy)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("lock referrer: %w", err)
		}

		tag, err := tx.Exec(ctx,
			`INSERT INTO referrals (referrer_id, referred_id, reward_given)
			 VALUES ($1, $2, TRUE)
			 ON CONFLICT (referrer_id, referred_id) DO NOTHING`,
			referrerID, referredID,
		)
		if err != nil {
			if isPgCode(err, pgerrcode.ForeignKeyViolation) {
				return ErrUserNotFound
			}
			return fmt.Errorf("insert referral: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrReferralExists
		}

		referrer, err = scanUser(tx.QueryRow(ctx,
			`UPDATE users
			 SET balance = balance + $2, referral_count = referral_count + 1
			 WHERE id = $1
			 RETURNING `+userColumns,
			referrerID, reward,
		))
		if err != nil {
			return fmt.Errorf("credit referrer: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return referrer, nil
}

// ListReferrals возвращает приглашённых пользователем людей, новые первыми.
func (r *PostgresRepository) ListReferrals(ctx context.Context, referrerID int64) ([]model.Referral, error) {
	rows, err := r.pool.Query(ctx, listReferralsQuery("$1"), referrerID)
	if err != nil {
		return nil, fmt.Errorf("select referrals: %w", err)
	}
	defer rows.Close()

	var res []model.Referral
	for rows.Next() {
		var ref model.Referral
		if err := rows.Scan(&ref.ReferrerID, &ref.ReferredID, &ref.RewardGiven, &ref.CreatedAt, &ref.ReferredName); err != nil {
			return nil, fmt.Errorf("scan referral: %w", err)
		}
		res = append(res, ref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateWithdrawal списывает сумму с баланса и создаёт заявку в статусе pending.
// Использует блокировку строки пользователя для сериализации списаний.
// Возвращает заявку и баланс после списания.
func (r *PostgresRepository) CreateWithdrawal(ctx context.Context, nw model.NewWithdrawal) (*model.Withdrawal, int64, error) {
	var (
		w       *model.Withdrawal
		balance int64
	)

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		// Блокируем строку пользователя для предотвращения параллельных списаний, превышающих баланс.
		err = tx.QueryRow(ctx, `SELECT balance FROM users WHERE id = $1 FOR UPDATE`, nw.UserID).Scan(&balance)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("lock user for update: %w", err)
		}

		if balance < nw.Amount {
			return ErrInsufficientBalance
		}

		_, err = tx.Exec(ctx, `UPDATE users SET balance = balance - $2 WHERE id = $1`, nw.UserID, nw.Amount)
		if err != nil {
			return fmt.Errorf("debit user: %w", err)
		}
		balance -= nw.Amount

		w, err = scanWithdrawal(tx.QueryRow(ctx,
			`INSERT INTO withdrawals (user_id, amount, card_number, status)
			 VALUES ($1, $2, $3, $4)
			 RETURNING `+withdrawalColumns,
			nw.UserID, nw.Amount, nw.CardNumber, string(model.WithdrawalPending),
		))
		if err != nil {
			return fmt.Errorf("insert withdrawal: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	return w, balance, nil
}

// GetWithdrawal возвращает заявку по идентификатору.
func (r *PostgresRepository) GetWithdrawal(ctx context.Context, id int64) (*model.Withdrawal, error) {
	w, err := scanWithdrawal(r.pool.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("get withdrawal: %w", err)
	}
	return w, nil
}

// ResolveWithdrawal переводит заявку из pending в конечный статус.
// Для rejected и cancelled сумма возвращается на баланс в той же транзакции.
func (r *PostgresRepository) ResolveWithdrawal(ctx context.Context, id int64, to model.WithdrawalStatus) (*model.Withdrawal, error) {
	if !to.IsTerminal() {
		return nil, fmt.Errorf("resolve withdrawal %d: invalid target status %q", id, to)
	}

	var w *model.Withdrawal

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		w, err = scanWithdrawal(tx.QueryRow(ctx,
			`UPDATE withdrawals
			 SET status = $2, processed_at = now()
			 WHERE id = $1 AND status = $3
			 RETURNING `+withdrawalColumns,
			id, string(to), string(model.WithdrawalPending),
		))
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("update withdrawal: %w", err)
			}
			var status string
			err = tx.QueryRow(ctx, `SELECT status FROM withdrawals WHERE id = $1`, id).Scan(&status)
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrWithdrawalNotFound
			}
			if err != nil {
				return fmt.Errorf("select withdrawal status: %w", err)
			}
			return ErrAlreadyProcessed
		}

		if to.Refunds() {
			_, err = tx.Exec(ctx, `UPDATE users SET balance = balance + $2 WHERE id = $1`, w.UserID, w.Amount)
			if err != nil {
				return fmt.Errorf("refund user: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return w, nil
}

// ListPendingWithdrawals возвращает заявки в статусе pending, старые первыми.
func (r *PostgresRepository) ListPendingWithdrawals(ctx context.Context, limit int) ([]model.Withdrawal, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+withdrawalColumns+`
		 FROM withdrawals
		 WHERE status = $1
		 ORDER BY created_at, id
		 LIMIT $2`,
		string(model.WithdrawalPending), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select pending withdrawals: %w", err)
	}
	defer rows.Close()

	return collectWithdrawals(rows)
}

// GetWithdrawalsByUser возвращает историю заявок пользователя.
func (r *PostgresRepository) GetWithdrawalsByUser(ctx context.Context, userID int64) ([]model.Withdrawal, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+withdrawalColumns+`
		 FROM withdrawals
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select withdrawals: %w", err)
	}
	defer rows.Close()

	return collectWithdrawals(rows)
}

// AdjustBalance изменяет баланс пользователя на delta, не допуская отрицательного результата.
func (r *PostgresRepository) AdjustBalance(ctx context.Context, userID, delta int64) (*model.BalanceChange, error) {
	var newBalance int64

	err := r.withRetry(ctx, func() error {
		err := r.pool.QueryRow(ctx,
			`UPDATE users SET balance = balance + $2
			 WHERE id = $1 AND balance + $2 >= 0
			 RETURNING balance`,
			userID, delta,
		).Scan(&newBalance)
		if err == nil {
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("adjust balance: %w", err)
		}

		var exists bool
		err = r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check user: %w", err)
		}
		if !exists {
			return ErrUserNotFound
		}
		return ErrInsufficientBalance
	})
	if err != nil {
		return nil, err
	}

	return &model.BalanceChange{
		UserID:     userID,
		OldBalance: newBalance - delta,
		NewBalance: newBalance,
		Delta:      delta,
	}, nil
}

func collectWithdrawals(rows pgx.Rows) ([]model.Withdrawal, error) {
	var res []model.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}
		res = append(res, *w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
