package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shohjahonshahriyev-cloud/pulchi/internal/config"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/model"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/repository"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/subscription"
)

const (
	testAdminID = int64(1)
	testCard    = "8600123456789012"
)

type stubGate struct {
	mu       sync.Mutex
	verdicts map[int64]subscription.Verdict
}

func (g *stubGate) set(userID int64, v subscription.Verdict) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verdicts[userID] = v
}

func (g *stubGate) Check(_ context.Context, userID int64) subscription.Verdict {
	g.mu.Lock()
	defer g.mu.Unlock()
	if v, ok := g.verdicts[userID]; ok {
		return v
	}
	return subscription.VerdictMember
}

func (g *stubGate) Verified(ctx context.Context, userID int64) bool {
	return g.Check(ctx, userID) == subscription.VerdictMember
}

type stubNotifier struct {
	mu   sync.Mutex
	sent []model.Notification
}

func (n *stubNotifier) Enqueue(_ context.Context, msg model.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *stubNotifier) to(chatID int64) []model.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []model.Notification
	for _, msg := range n.sent {
		if msg.ChatID == chatID {
			out = append(out, msg)
		}
	}
	return out
}

type fixture struct {
	svc      *Service
	repo     *repository.SQLiteRepository
	gate     *stubGate
	notifier *stubNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo, err := repository.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	settings, err := config.NewSettings(&config.Config{
		AdminID:           testAdminID,
		ReferralReward:    500,
		MinimumWithdrawal: 15000,
		SponsorChannels:   []string{"@sponsor"},
	})
	require.NoError(t, err)

	gate := &stubGate{verdicts: make(map[int64]subscription.Verdict)}
	notifier := &stubNotifier{}

	return &fixture{
		svc:      NewService(repo, settings, gate, notifier, zap.NewNop()),
		repo:     repo,
		gate:     gate,
		notifier: notifier,
	}
}

func (f *fixture) register(t *testing.T, userID int64, param string) *Registration {
	t.Helper()
	reg, err := f.svc.RegisterUser(context.Background(), FirstContact{
		UserID:     userID,
		FirstName:  "user",
		StartParam: param,
	})
	require.NoError(t, err)
	return reg
}

func (f *fixture) fund(t *testing.T, userID, amount int64) {
	t.Helper()
	_, err := f.svc.AdjustBalance(context.Background(), testAdminID, userID, amount)
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, userID int64) int64 {
	t.Helper()
	u, err := f.svc.GetUser(context.Background(), userID)
	require.NoError(t, err)
	return u.Balance
}

func TestParseStartParam(t *testing.T) {
	tests := []struct {
		param string
		want  int64
		ok    bool
	}{
		{param: "12345", want: 12345, ok: true},
		{param: " 7 ", want: 7, ok: true},
		{param: ""},
		{param: "abc"},
		{param: "-5"},
		{param: "0"},
	}

	for _, tt := range tests {
		got := ParseStartParam(tt.param)
		if !tt.ok {
			if got != nil {
				t.Fatalf("ParseStartParam(%q) = %d, want nil", tt.param, *got)
			}
			continue
		}
		if got == nil || *got != tt.want {
			t.Fatalf("ParseStartParam(%q) = %v, want %d", tt.param, got, tt.want)
		}
	}
}

func TestRegisterUser_AdminFlag(t *testing.T) {
	f := newFixture(t)

	admin := f.register(t, testAdminID, "")
	require.True(t, admin.User.IsAdmin)
	require.True(t, admin.Created)

	user := f.register(t, 2, "")
	require.False(t, user.User.IsAdmin)

	again := f.register(t, 2, "")
	require.False(t, again.Created)
}

func TestUserIsAdminFromSettings(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.svc.IsAdmin(testAdminID))
	require.False(t, f.svc.IsAdmin(2))
	require.Equal(t, []string{"@sponsor"}, f.svc.Settings().SponsorChannels())
}
