package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id             INTEGER PRIMARY KEY,
	first_name     TEXT      NOT NULL DEFAULT '',
	last_name      TEXT      NOT NULL DEFAULT '',
	username       TEXT      NOT NULL DEFAULT '',
	balance        INTEGER   NOT NULL DEFAULT 0 CHECK (balance >= 0),
	referral_count INTEGER   NOT NULL DEFAULT 0,
	referred_by    INTEGER,
	is_admin       BOOLEAN   NOT NULL DEFAULT 0,
	created_at     TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_users_created_at ON users (created_at);

CREATE TABLE IF NOT EXISTS referrals (
	referrer_id  INTEGER   NOT NULL REFERENCES users (id),
	referred_id  INTEGER   NOT NULL REFERENCES users (id),
	reward_given BOOLEAN   NOT NULL DEFAULT 0,
	created_at   TIMESTAMP NOT NULL,
	PRIMARY KEY (referrer_id, referred_id),
	CHECK (referrer_id <> referred_id)
);

CREATE TABLE IF NOT EXISTS withdrawals (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id      INTEGER   NOT NULL REFERENCES users (id),
	amount       INTEGER   NOT NULL CHECK (amount > 0),
	card_number  TEXT      NOT NULL,
	status       TEXT      NOT NULL DEFAULT 'pending'
		CHECK (status IN ('pending', 'approved', 'rejected', 'cancelled')),
	created_at   TIMESTAMP NOT NULL,
	processed_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_withdrawals_status ON withdrawals (status);
CREATE INDEX IF NOT EXISTS idx_withdrawals_user_id ON withdrawals (user_id);
`

// SQLiteRepository предоставляет доступ к хранилищу данных в файле SQLite.
// Каждая пишущая транзакция начинается с BEGIN IMMEDIATE и сразу захватывает блокировку записи.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository открывает базу SQLite по пути path и создаёт схему.
// Путь ":memory:" открывает базу в памяти с единственным соединением.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	params := "_txlock=immediate&_busy_timeout=5000&_foreign_keys=1"

	inMemory := path == ":memory:"
	dsn := path + "?" + params
	if !inMemory {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
		dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if inMemory {
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// PathFromURI извлекает путь к файлу базы из строки вида sqlite://path.
func PathFromURI(uri string) string {
	path := strings.TrimPrefix(uri, "sqlite://")
	if path == "" {
		return ":memory:"
	}
	return path
}

func isSQLiteConstraint(err error, code sqlite3.ErrNoExtended) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == code
}

func now() time.Time {
	return time.Now().UTC()
}

// Close закрывает соединение с базой.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// CreateUser создаёт пользователя, если его ещё нет. Возвращает сохранённую запись и признак создания.
func (r *SQLiteRepository) CreateUser(ctx context.Context, nu model.NewUser) (*model.User, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (id, first_name, last_name, username, referred_by, is_admin, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		nu.ID, nu.FirstName, nu.LastName, nu.Username, nullableID(nu.ReferredBy), nu.IsAdmin, now(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}

	u, err := scanUser(tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, nu.ID))
	if err != nil {
		return nil, false, fmt.Errorf("select user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit tx: %w", err)
	}

	return u, affected == 1, nil
}

// GetUser возвращает пользователя по идентификатору.
func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// ListUsers возвращает последних зарегистрированных пользователей.
func (r *SQLiteRepository) ListUsers(ctx context.Context, limit int) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC LIMIT ?`,
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
func (r *SQLiteRepository) UserIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM users WHERE id > ? ORDER BY id LIMIT ?`,
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
func (r *SQLiteRepository) Stats(ctx context.Context) (*model.Stats, error) {
	var s model.Stats

	err := r.db.QueryRowContext(ctx, statsUsersQuery).Scan(&s.Users, &s.ActiveUsers, &s.TotalBalance)
	if err != nil {
		return nil, fmt.Errorf("user stats: %w", err)
	}

	err = r.db.QueryRowContext(ctx, statsWithdrawalsQuery).Scan(
		&s.Pending, &s.Approved, &s.Rejected, &s.Cancelled, &s.ApprovedAmount,
	)
	if err != nil {
		return nil, fmt.Errorf("withdrawal stats: %w", err)
	}

	return &s, nil
}

// ReferralExists сообщает, существует ли связь между пригласившим и приглашённым.
func (r *SQLiteRepository) ReferralExists(ctx context.Context, referrerID, referredID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM referrals WHERE referrer_id = ? AND referred_id = ?)`,
		referrerID, referredID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check referral: %w", err)
	}
	return exists, nil
}

// CreateReferral в одной транзакции создаёт связь реферала и начисляет вознаграждение пригласившему.
func (r *SQLiteRepository) CreateReferral(ctx context.Context, referrerID, referredID, reward int64) (*model.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var dummy int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, referrerID).Scan(&dummy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("select referrer: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO referrals (referrer_id, referred_id, reward_given, created_at)
		 VALUES (?, ?, 1, ?)
		 ON CONFLICT (referrer_id, referred_id) DO NOTHING`,
		referrerID, referredID, now(),
	)
	if err != nil {
		if isSQLiteConstraint(err, sqlite3.ErrConstraintForeignKey) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("insert referral: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrReferralExists
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET balance = balance + ?, referral_count = referral_count + 1 WHERE id = ?`,
		reward, referrerID,
	)
	if err != nil {
		return nil, fmt.Errorf("credit referrer: %w", err)
	}

	referrer, err := scanUser(tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, referrerID))
	if err != nil {
		return nil, fmt.Errorf("select referrer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return referrer, nil
}

// ListReferrals возвращает приглашённых пользователем людей, новые первыми.
func (r *SQLiteRepository) ListReferrals(ctx context.Context, referrerID int64) ([]model.Referral, error) {
	rows, err := r.db.QueryContext(ctx, listReferralsQuery("?"), referrerID)
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
// Возвращает заявку и баланс после списания.
func (r *SQLiteRepository) CreateWithdrawal(ctx context.Context, nw model.NewWithdrawal) (*model.Withdrawal, int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var balance int64
	err = tx.QueryRowContext(ctx, `SELECT balance FROM users WHERE id = ?`, nw.UserID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, ErrUserNotFound
		}
		return nil, 0, fmt.Errorf("select balance: %w", err)
	}

	if balance < nw.Amount {
		return nil, 0, ErrInsufficientBalance
	}

	_, err = tx.ExecContext(ctx, `UPDATE users SET balance = balance - ? WHERE id = ?`, nw.Amount, nw.UserID)
	if err != nil {
		return nil, 0, fmt.Errorf("debit user: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO withdrawals (user_id, amount, card_number, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		nw.UserID, nw.Amount, nw.CardNumber, string(model.WithdrawalPending), now(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("insert withdrawal: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, 0, fmt.Errorf("last insert id: %w", err)
	}

	w, err := scanWithdrawal(tx.QueryRowContext(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = ?`, id))
	if err != nil {
		return nil, 0, fmt.Errorf("select withdrawal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("commit tx: %w", err)
	}

	return w, balance - nw.Amount, nil
}

// GetWithdrawal возвращает заявку по идентификатору.
func (r *SQLiteRepository) GetWithdrawal(ctx context.Context, id int64) (*model.Withdrawal, error) {
	w, err := scanWithdrawal(r.db.QueryRowContext(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("get withdrawal: %w", err)
	}
	return w, nil
}

// ResolveWithdrawal переводит заявку из pending в конечный статус.
// Для rejected и cancelled сумма возвращается на баланс в той же транзакции.
func (r *SQLiteRepository) ResolveWithdrawal(ctx context.Context, id int64, to model.WithdrawalStatus) (*model.Withdrawal, error) {
	if !to.IsTerminal() {
		return nil, fmt.Errorf("resolve withdrawal %d: invalid target status %q", id, to)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE withdrawals SET status = ?, processed_at = ? WHERE id = ? AND status = ?`,
		string(to), now(), id, string(model.WithdrawalPending),
	)
	if err != nil {
		return nil, fmt.Errorf("update withdrawal: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}

	w, err := scanWithdrawal(tx.QueryRowContext(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("select withdrawal: %w", err)
	}

	if affected == 0 {
		return nil, ErrAlreadyProcessed
	}

	if to.Refunds() {
		_, err = tx.ExecContext(ctx, `UPDATE users SET balance = balance + ? WHERE id = ?`, w.Amount, w.UserID)
		if err != nil {
			return nil, fmt.Errorf("refund user: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return w, nil
}

// ListPendingWithdrawals возвращает заявки в статусе pending, старые первыми.
func (r *SQLiteRepository) ListPendingWithdrawals(ctx context.Context, limit int) ([]model.Withdrawal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+withdrawalColumns+`
		 FROM withdrawals
		 WHERE status = ?
		 ORDER BY id
		 LIMIT ?`,
		string(model.WithdrawalPending), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select pending withdrawals: %w", err)
	}
	defer rows.Close()

	return collectSQLWithdrawals(rows)
}

// GetWithdrawalsByUser возвращает историю заявок пользователя.
func (r *SQLiteRepository) GetWithdrawalsByUser(ctx context.Context, userID int64) ([]model.Withdrawal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+withdrawalColumns+`
		 FROM withdrawals
		 WHERE user_id = ?
		 ORDER BY id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select withdrawals: %w", err)
	}
	defer rows.Close()

	return collectSQLWithdrawals(rows)
}

// AdjustBalance изменяет баланс пользователя на delta, не допуская отрицательного результата.
func (r *SQLiteRepository) AdjustBalance(ctx context.Context, userID, delta int64) (*model.BalanceChange, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var newBalance int64
	err = tx.QueryRowContext(ctx,
		`UPDATE users SET balance = balance + ?
		 WHERE id = ? AND balance + ? >= 0
		 RETURNING balance`,
		delta, userID, delta,
	).Scan(&newBalance)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("adjust balance: %w", err)
		}

		var exists bool
		err = tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = ?)`, userID).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("check user: %w", err)
		}
		if !exists {
			return nil, ErrUserNotFound
		}
		return nil, ErrInsufficientBalance
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &model.BalanceChange{
		UserID:     userID,
		OldBalance: newBalance - delta,
		NewBalance: newBalance,
		Delta:      delta,
	}, nil
}

func collectSQLWithdrawals(rows *sql.Rows) ([]model.Withdrawal, error) {
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
