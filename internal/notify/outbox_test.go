package notify

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shohjahonshahriyev-cloud/pulchi/internal/model"
)

func newTestOutbox(t *testing.T) *Outbox {
	t.Helper()

	o, err := OpenOutbox(filepath.Join(t.TempDir(), "outbox", "outbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })

	return o
}

func TestOutbox_EnqueuePendingAck(t *testing.T) {
	o := newTestOutbox(t)
	ctx := context.Background()

	require.NoError(t, o.Enqueue(ctx, model.Notification{ChatID: 1, Text: "first"}))
	require.NoError(t, o.Enqueue(ctx, model.Notification{ChatID: 2, Text: "second", Buttons: []model.Button{{Text: "ok", Data: "ok"}}}))

	select {
	case <-o.Wake():
	default:
		t.Fatal("enqueue must signal wake channel")
	}

	entries, err := o.Due(time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Notification.Text)
	assert.Equal(t, "second", entries[1].Notification.Text)
	assert.NotEmpty(t, entries[0].Notification.ID)
	assert.NotEqual(t, entries[0].Notification.ID, entries[1].Notification.ID)
	assert.False(t, entries[0].Notification.CreatedAt.IsZero())
	assert.Equal(t, []model.Button{{Text: "ok", Data: "ok"}}, entries[1].Notification.Buttons)

	limited, err := o.Due(time.Now(), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, o.Ack(entries[0].Seq))

	n, err := o.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOutbox_Retry(t *testing.T) {
	o := newTestOutbox(t)

	require.NoError(t, o.Enqueue(context.Background(), model.Notification{ChatID: 1, Text: "retry"}))
	entries, err := o.Due(time.Now(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	attempts, err := o.Retry(entries[0].Seq, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)

	attempts, err = o.Retry(entries[0].Seq, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	later := time.Now().Add(time.Minute)
	_, err = o.Retry(entries[0].Seq, later)
	require.NoError(t, err)

	due, err := o.Due(time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, due, "deferred entry must not be due yet")

	due, err = o.Due(later, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 3, due[0].Notification.Attempts)

	_, err = o.Retry(999, time.Time{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOutbox_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.db")

	o, err := OpenOutbox(path)
	require.NoError(t, err)
	require.NoError(t, o.Enqueue(context.Background(), model.Notification{ChatID: 5, Text: "survives restart"}))
	require.NoError(t, o.Close())

	o, err = OpenOutbox(path)
	require.NoError(t, err)
	defer o.Close()

	entries, err := o.Due(time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(5), entries[0].Notification.ChatID)
}
