package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/shohjahonshahriyev-cloud/pulchi/internal/model"
)

// ErrPermanent помечает ошибку доставки, при которой повторять отправку бессмысленно.
var ErrPermanent = errors.New("permanent delivery failure")

// Sender отправляет одно уведомление.
type Sender interface {
	Send(ctx context.Context, n model.Notification) error
}

// Параметры диспетчера по умолчанию.
const (
	DefaultInterval    = 2 * time.Second
	DefaultBatchSize   = 50
	DefaultMaxAttempts = 5
	// DefaultRetryBackoff - пауза перед первой повторной отправкой; каждая следующая вдвое длиннее.
	DefaultRetryBackoff = 5 * time.Second
	maxRetryBackoff     = 5 * time.Minute
)

// Dispatcher периодически вычитывает очередь и отправляет уведомления.
type Dispatcher struct {
	outbox      *Outbox
	sender      Sender
	logger      *zap.Logger
	interval    time.Duration
	batchSize   int
	maxAttempts int
	backoff     time.Duration
	now         func() time.Time
}

// NewDispatcher создаёт диспетчер с параметрами по умолчанию.
func NewDispatcher(outbox *Outbox, sender Sender, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		outbox:      outbox,
		sender:      sender,
		logger:      logger,
		interval:    DefaultInterval,
		batchSize:   DefaultBatchSize,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultRetryBackoff,
		now:         time.Now,
	}
}

// WithRetryBackoff задаёт паузу перед первой повторной отправкой.
func (d *Dispatcher) WithRetryBackoff(backoff time.Duration) *Dispatcher {
	d.backoff = backoff
	return d
}

// WithMaxAttempts задаёт число попыток доставки одного уведомления.
func (d *Dispatcher) WithMaxAttempts(n int) *Dispatcher {
	d.maxAttempts = n
	return d
}

// WithInterval задаёт период опроса очереди.
func (d *Dispatcher) WithInterval(interval time.Duration) *Dispatcher {
	d.interval = interval
	return d
}

// Run отправляет уведомления до отмены контекста.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if _, err := d.DispatchOnce(ctx); err != nil {
			d.logger.Error("dispatch notifications", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-d.outbox.Wake():
		}
	}
}

// DispatchOnce отправляет одну пачку сообщений и возвращает число доставленных.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	entries, err := d.outbox.Due(d.now(), d.batchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			return sent, nil
		}

		err := d.sender.Send(ctx, e.Notification)
		if err == nil {
			sent++
			if err := d.outbox.Ack(e.Seq); err != nil {
				return sent, err
			}
			continue
		}

		var limited *RateLimitError
		if errors.As(err, &limited) {
			d.logger.Warn("notification rate limited",
				zap.Int64("chat_id", e.Notification.ChatID),
				zap.Duration("retry_after", limited.RetryAfter),
			)
			pause(ctx, limited.RetryAfter)
			return sent, nil
		}

		if errors.Is(err, ErrPermanent) {
			d.logger.Warn("notification dropped",
				zap.String("id", e.Notification.ID),
				zap.Int64("chat_id", e.Notification.ChatID),
				zap.Error(err),
			)
			if err := d.outbox.Ack(e.Seq); err != nil {
				return sent, err
			}
			continue
		}

		next := d.now().Add(d.retryDelay(e.Notification.Attempts + 1))
		attempts, rerr := d.outbox.Retry(e.Seq, next)
		if rerr != nil {
			return sent, rerr
		}

		if attempts >= d.maxAttempts {
			d.logger.Error("notification dropped after retries",
				zap.String("id", e.Notification.ID),
				zap.Int64("chat_id", e.Notification.ChatID),
				zap.Int("attempts", attempts),
				zap.Error(err),
			)
			if err := d.outbox.Ack(e.Seq); err != nil {
				return sent, err
			}
			continue
		}

		d.logger.Warn("notification send failed",
			zap.String("id", e.Notification.ID),
			zap.Int64("chat_id", e.Notification.ChatID),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
	}

	return sent, nil
}

// retryDelay возвращает паузу перед попыткой с номером attempt+1.
func (d *Dispatcher) retryDelay(attempt int) time.Duration {
	if d.backoff <= 0 {
		return 0
	}
	delay := d.backoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxRetryBackoff {
			return maxRetryBackoff
		}
	}
	return delay
}

func pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
