package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shohjahonshahriyev-cloud/pulchi/internal/model"
)

type stubSender struct {
	mu   sync.Mutex
	sent []model.Notification
	errs map[int64]error
}

func (s *stubSender) Send(_ context.Context, n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.errs[n.ChatID]; ok {
		return err
	}
	s.sent = append(s.sent, n)
	return nil
}

func (s *stubSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func TestDispatcher_DispatchOnce(t *testing.T) {
	o := newTestOutbox(t)
	ctx := context.Background()

	sender := &stubSender{errs: map[int64]error{
		2: errors.New("temporary"),
		3: fmt.Errorf("%w: bot was blocked by the user", ErrPermanent),
	}}
	d := NewDispatcher(o, sender, zap.NewNop()).WithMaxAttempts(2).WithRetryBackoff(0)

	for _, chatID := range []int64{1, 2, 3} {
		require.NoError(t, o.Enqueue(ctx, model.Notification{ChatID: chatID, Text: "hi"}))
	}

	sent, err := d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	entries, err := o.Due(time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].Notification.ChatID)
	assert.Equal(t, 1, entries[0].Notification.Attempts)

	sent, err = d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)

	n, err := o.Len()
	require.NoError(t, err)
	assert.Zero(t, n, "message must be dropped after max attempts")
}

func TestDispatcher_RunDeliversOnWake(t *testing.T) {
	o := newTestOutbox(t)
	sender := &stubSender{}
	d := NewDispatcher(o, sender, zap.NewNop()).WithInterval(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.NoError(t, o.Enqueue(context.Background(), model.Notification{ChatID: 1, Text: "wake"}))

	assert.Eventually(t, func() bool { return sender.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestDispatcher_RateLimitKeepsAttempts(t *testing.T) {
	o := newTestOutbox(t)
	ctx := context.Background()

	sender := &stubSender{errs: map[int64]error{
		1: &RateLimitError{RetryAfter: 10 * time.Millisecond},
	}}
	d := NewDispatcher(o, sender, zap.NewNop()).WithMaxAttempts(1)

	require.NoError(t, o.Enqueue(ctx, model.Notification{ChatID: 1, Text: "first"}))
	require.NoError(t, o.Enqueue(ctx, model.Notification{ChatID: 2, Text: "second"}))

	sent, err := d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent, "batch stops at the rate limit")

	entries, err := o.Due(time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Zero(t, entries[0].Notification.Attempts)
}

func TestDispatcher_RetryBackoff(t *testing.T) {
	o := newTestOutbox(t)
	ctx := context.Background()

	sender := &stubSender{errs: map[int64]error{1: errors.New("temporary")}}
	d := NewDispatcher(o, sender, zap.NewNop()).WithMaxAttempts(3).WithRetryBackoff(time.Minute)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	require.NoError(t, o.Enqueue(ctx, model.Notification{ChatID: 1, Text: "flaky"}))

	_, err := d.DispatchOnce(ctx)
	require.NoError(t, err)

	entries, err := o.Due(now.Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Notification.Attempts)
	assert.Equal(t, now.Add(time.Minute), entries[0].Notification.NextAttemptAt)

	// повторные проходы до истечения паузы сообщение не трогают
	for i := 0; i < 5; i++ {
		_, err := d.DispatchOnce(ctx)
		require.NoError(t, err)
	}
	entries, err = o.Due(now.Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Notification.Attempts)

	now = now.Add(time.Minute)
	_, err = d.DispatchOnce(ctx)
	require.NoError(t, err)

	entries, err = o.Due(now.Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].Notification.Attempts)
	assert.Equal(t, now.Add(2*time.Minute), entries[0].Notification.NextAttemptAt)
}

func TestDispatcher_RetryDelay(t *testing.T) {
	d := NewDispatcher(nil, nil, zap.NewNop()).WithRetryBackoff(time.Second)

	assert.Equal(t, time.Second, d.retryDelay(1))
	assert.Equal(t, 4*time.Second, d.retryDelay(3))
	assert.Equal(t, maxRetryBackoff, d.retryDelay(20))

	d.WithRetryBackoff(0)
	assert.Zero(t, d.retryDelay(5))
}
