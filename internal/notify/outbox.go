// Package notify доставляет уведомления пользователям через надёжную очередь исходящих сообщений.
//
// Изменения баланса фиксируются в хранилище до постановки уведомления в очередь,
// поэтому сбой доставки никогда не откатывает операцию.
package notify

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/shohjahonshahriyev-cloud/pulchi/internal/model"
)

var bucketOutbox = []byte("outbox")

// ErrNotFound возвращается, если сообщения с таким ключом нет в очереди.
var ErrNotFound = errors.New("outbox entry not found")

// Entry описывает сообщение в очереди вместе с его ключом.
type Entry struct {
	Seq          uint64
	Notification model.Notification
}

// Outbox хранит очередь исходящих уведомлений в файле bbolt.
type Outbox struct {
	db   *bbolt.DB
	wake chan struct{}
}

// OpenOutbox открывает или создаёт очередь по пути path.
func OpenOutbox(path string) (*Outbox, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("outbox: create directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("outbox: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketOutbox)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("outbox: create bucket: %w", err)
	}

	return &Outbox{db: db, wake: make(chan struct{}, 1)}, nil
}

// Close закрывает файл очереди.
func (o *Outbox) Close() error { return o.db.Close() }

// Wake возвращает канал, в который приходит сигнал после каждой постановки в очередь.
func (o *Outbox) Wake() <-chan struct{} { return o.wake }

// Enqueue ставит уведомление в очередь.
func (o *Outbox) Enqueue(_ context.Context, n model.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	data, err := encodeGob(n)
	if err != nil {
		return fmt.Errorf("outbox: encode notification: %w", err)
	}

	err = o.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketOutbox)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), data)
	})
	if err != nil {
		return fmt.Errorf("outbox: put notification: %w", err)
	}

	select {
	case o.wake <- struct{}{}:
	default:
	}

	return nil
}

// Due возвращает до limit сообщений в порядке постановки в очередь,
// пропуская отложенные: время повторной отправки которых ещё не наступило к now.
func (o *Outbox) Due(now time.Time, limit int) ([]Entry, error) {
	var res []Entry
	err := o.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketOutbox).Cursor()
		for k, v := c.First(); k != nil && len(res) < limit; k, v = c.Next() {
			var n model.Notification
			if err := decodeGob(v, &n); err != nil {
				return fmt.Errorf("decode notification %x: %w", k, err)
			}
			if !n.NextAttemptAt.After(now) {
				res = append(res, Entry{Seq: binary.BigEndian.Uint64(k), Notification: n})
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("outbox: read pending: %w", err)
	}
	return res, nil
}

// Ack удаляет доставленное сообщение из очереди.
func (o *Outbox) Ack(seq uint64) error {
	return o.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketOutbox).Delete(seqKey(seq))
	})
}

// Retry увеличивает счётчик попыток сообщения, откладывает его до next и возвращает новое число попыток.
func (o *Outbox) Retry(seq uint64, next time.Time) (int, error) {
	var attempts int
	err := o.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketOutbox)
		data := b.Get(seqKey(seq))
		if data == nil {
			return ErrNotFound
		}

		var n model.Notification
		if err := decodeGob(data, &n); err != nil {
			return fmt.Errorf("decode notification: %w", err)
		}
		n.Attempts++
		n.NextAttemptAt = next
		attempts = n.Attempts

		updated, err := encodeGob(n)
		if err != nil {
			return fmt.Errorf("encode notification: %w", err)
		}
		return b.Put(seqKey(seq), updated)
	})
	if err != nil {
		return 0, fmt.Errorf("outbox: retry %d: %w", seq, err)
	}
	return attempts, nil
}

// Len возвращает число сообщений в очереди.
func (o *Outbox) Len() (int, error) {
	var n int
	err := o.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketOutbox).Stats().KeyN
		return nil
	})
	return n, err
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
