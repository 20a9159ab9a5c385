package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shohjahonshahriyev-cloud/pulchi/internal/model"
)

// store описывает общий контракт обоих хранилищ в тестах.
type store interface {
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

var (
	_ store = (*PostgresRepository)(nil)
	_ store = (*SQLiteRepository)(nil)
)

func runStoreSuite(t *testing.T, newStore func(t *testing.T) store) {
	t.Run("create user is idempotent", func(t *testing.T) {
		testCreateUser(t, newStore(t))
	})
	t.Run("referral credit", func(t *testing.T) {
		testCreateReferral(t, newStore(t))
	})
	t.Run("concurrent referral", func(t *testing.T) {
		testConcurrentReferral(t, newStore(t))
	})
	t.Run("withdrawal lifecycle", func(t *testing.T) {
		testWithdrawalLifecycle(t, newStore(t))
	})
	t.Run("concurrent submit", func(t *testing.T) {
		testConcurrentSubmit(t, newStore(t))
	})
	t.Run("concurrent resolve", func(t *testing.T) {
		testConcurrentResolve(t, newStore(t))
	})
	t.Run("adjust balance", func(t *testing.T) {
		testAdjustBalance(t, newStore(t))
	})
	t.Run("listing and stats", func(t *testing.T) {
		testListingAndStats(t, newStore(t))
	})
}

func mustCreateUser(t *testing.T, s store, id int64) *model.User {
	t.Helper()
	u, _, err := s.CreateUser(context.Background(), model.NewUser{ID: id, FirstName: "user"})
	require.NoError(t, err)
	return u
}

func testCreateUser(t *testing.T, s store) {
	ctx := context.Background()
	referrer := int64(1)

	u, created, err := s.CreateUser(ctx, model.NewUser{ID: 2, FirstName: "Ali", Username: "ali", ReferredBy: &referrer})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(2), u.ID)
	assert.Equal(t, "Ali", u.FirstName)
	require.NotNil(t, u.ReferredBy)
	assert.Equal(t, referrer, *u.ReferredBy)
	assert.Zero(t, u.Balance)

	other := int64(99)
	u, created, err = s.CreateUser(ctx, model.NewUser{ID: 2, FirstName: "Changed", ReferredBy: &other})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Ali", u.FirstName)
	assert.Equal(t, referrer, *u.ReferredBy)

	_, err = s.GetUser(ctx, 404)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func testCreateReferral(t *testing.T, s store) {
	ctx := context.Background()
	mustCreateUser(t, s, 1)
	mustCreateUser(t, s, 2)

	exists, err := s.ReferralExists(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, exists)

	referrer, err := s.CreateReferral(ctx, 1, 2, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(500), referrer.Balance)
	assert.Equal(t, int64(1), referrer.ReferralCount)

	_, err = s.CreateReferral(ctx, 1, 2, 500)
	require.ErrorIs(t, err, ErrReferralExists)

	_, err = s.CreateReferral(ctx, 404, 2, 500)
	require.ErrorIs(t, err, ErrUserNotFound)

	u, err := s.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(500), u.Balance)
	assert.Equal(t, int64(1), u.ReferralCount)

	refs, err := s.ListReferrals(ctx, 1)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, int64(2), refs[0].ReferredID)
	assert.True(t, refs[0].RewardGiven)
	assert.Equal(t, "user", refs[0].ReferredName)
}

func testConcurrentReferral(t *testing.T, s store) {
	ctx := context.Background()
	mustCreateUser(t, s, 1)
	mustCreateUser(t, s, 2)

	var (
		wg       sync.WaitGroup
		rewarded atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.CreateReferral(ctx, 1, 2, 500); err == nil {
				rewarded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), rewarded.Load())

	u, err := s.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(500), u.Balance)
	assert.Equal(t, int64(1), u.ReferralCount)
}

func testWithdrawalLifecycle(t *testing.T, s store) {
	ctx := context.Background()
	mustCreateUser(t, s, 1)
	_, err := s.AdjustBalance(ctx, 1, 20000)
	require.NoError(t, err)

	_, _, err = s.CreateWithdrawal(ctx, model.NewWithdrawal{UserID: 1, Amount: 20001, CardNumber: "8600123456789012"})
	require.ErrorIs(t, err, ErrInsufficientBalance)

	_, _, err = s.CreateWithdrawal(ctx, model.NewWithdrawal{UserID: 404, Amount: 1, CardNumber: "8600123456789012"})
	require.ErrorIs(t, err, ErrUserNotFound)

	w, balance, err := s.CreateWithdrawal(ctx, model.NewWithdrawal{UserID: 1, Amount: 15000, CardNumber: "8600123456789012"})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), balance)
	assert.Equal(t, model.WithdrawalPending, w.Status)
	assert.Nil(t, w.ProcessedAt)

	pending, err := s.ListPendingWithdrawals(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, w.ID, pending[0].ID)

	rejected, err := s.ResolveWithdrawal(ctx, w.ID, model.WithdrawalRejected)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalRejected, rejected.Status)
	assert.NotNil(t, rejected.ProcessedAt)

	u, err := s.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), u.Balance)

	_, err = s.ResolveWithdrawal(ctx, w.ID, model.WithdrawalApproved)
	require.ErrorIs(t, err, ErrAlreadyProcessed)

	_, err = s.ResolveWithdrawal(ctx, 404, model.WithdrawalApproved)
	require.ErrorIs(t, err, ErrWithdrawalNotFound)

	_, err = s.ResolveWithdrawal(ctx, w.ID, model.WithdrawalPending)
	require.Error(t, err)

	w2, balance, err := s.CreateWithdrawal(ctx, model.NewWithdrawal{UserID: 1, Amount: 20000, CardNumber: "8600123456789012"})
	require.NoError(t, err)
	assert.Zero(t, balance)

	approved, err := s.ResolveWithdrawal(ctx, w2.ID, model.WithdrawalApproved)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalApproved, approved.Status)

	u, err = s.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, u.Balance)

	history, err := s.GetWithdrawalsByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, w2.ID, history[0].ID)

	got, err := s.GetWithdrawal(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalRejected, got.Status)

	_, err = s.GetWithdrawal(ctx, 404)
	require.ErrorIs(t, err, ErrWithdrawalNotFound)
}

func testConcurrentSubmit(t *testing.T, s store) {
	ctx := context.Background()
	mustCreateUser(t, s, 1)
	_, err := s.AdjustBalance(ctx, 1, 50000)
	require.NoError(t, err)

	const (
		amount   = 15000
		attempts = 20
	)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		errs      = make(chan error, attempts)
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, balance, err := s.CreateWithdrawal(ctx, model.NewWithdrawal{
				UserID: 1, Amount: amount, CardNumber: "8600123456789012",
			})
			if err != nil {
				errs <- err
				return
			}
			if balance < 0 {
				errs <- fmt.Errorf("negative balance after debit: %d", balance)
				return
			}
			succeeded.Add(1)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.ErrorIs(t, err, ErrInsufficientBalance)
	}
	assert.Equal(t, int32(50000/amount), succeeded.Load())

	u, err := s.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50000-3*amount), u.Balance)

	pending, err := s.GetWithdrawalsByUser(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, pending, 3)
}

func testConcurrentResolve(t *testing.T, s store) {
	ctx := context.Background()
	mustCreateUser(t, s, 1)
	_, err := s.AdjustBalance(ctx, 1, 15000)
	require.NoError(t, err)

	w, _, err := s.CreateWithdrawal(ctx, model.NewWithdrawal{UserID: 1, Amount: 15000, CardNumber: "8600123456789012"})
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			to := model.WithdrawalRejected
			if i%2 == 0 {
				to = model.WithdrawalCancelled
			}
			if _, err := s.ResolveWithdrawal(ctx, w.ID, to); err == nil {
				succeeded.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())

	u, err := s.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(15000), u.Balance)
}

func testAdjustBalance(t *testing.T, s store) {
	ctx := context.Background()
	mustCreateUser(t, s, 1)

	change, err := s.AdjustBalance(ctx, 1, 5000)
	require.NoError(t, err)
	assert.Equal(t, model.BalanceChange{UserID: 1, OldBalance: 0, NewBalance: 5000, Delta: 5000}, *change)

	_, err = s.AdjustBalance(ctx, 1, -5001)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	change, err = s.AdjustBalance(ctx, 1, -5000)
	require.NoError(t, err)
	assert.Zero(t, change.NewBalance)

	_, err = s.AdjustBalance(ctx, 404, 10)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func testListingAndStats(t *testing.T, s store) {
	ctx := context.Background()
	for id := int64(1); id <= 5; id++ {
		mustCreateUser(t, s, id)
	}

	_, err := s.CreateReferral(ctx, 1, 2, 500)
	require.NoError(t, err)

	users, err := s.ListUsers(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, users, 3)

	ids, err := s.UserIDs(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	ids, err = s.UserIDs(ctx, 4, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, ids)

	_, err = s.AdjustBalance(ctx, 3, 30000)
	require.NoError(t, err)
	w, _, err := s.CreateWithdrawal(ctx, model.NewWithdrawal{UserID: 3, Amount: 15000, CardNumber: "8600123456789012"})
	require.NoError(t, err)
	_, err = s.ResolveWithdrawal(ctx, w.ID, model.WithdrawalApproved)
	require.NoError(t, err)
	_, _, err = s.CreateWithdrawal(ctx, model.NewWithdrawal{UserID: 3, Amount: 15000, CardNumber: "8600123456789012"})
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Stats{
		Users:          5,
		ActiveUsers:    1,
		TotalBalance:   500,
		Pending:        1,
		Approved:       1,
		ApprovedAmount: 15000,
	}, *stats)
}
