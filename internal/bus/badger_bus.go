// Package bus implements a persistent topic/subscription message bus over
// BadgerDB. Deliveries are leased: an unacked message reappears after its
// visibility timeout with the delivery-attempt counter incremented, which
// gives at-least-once semantics without an external broker.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/fundtrace/fundtrace/internal/interfaces"
	"github.com/fundtrace/fundtrace/internal/models"
)

// ErrNoMessage is returned when a pull finds the subscription empty.
var ErrNoMessage = models.ErrNoMessage

// envelope is the internal structure stored in Badger.
type envelope struct {
	ID           string    `json:"id"`
	Body         []byte    `json:"body"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
	VisibleAt    time.Time `json:"visible_at"`
	ReceiveCount int       `json:"receive_count"`
}

// Config tunes lease and redelivery behaviour.
type Config struct {
	VisibilityTimeout time.Duration // Lease on a pulled delivery
	MaxReceive        int           // Deliveries before dead-letter
	RetryDeadline     time.Duration // Max wait inside Pull for a message
	PollInterval      time.Duration // Sleep between scans while waiting
	PublishTimeout    time.Duration // Upper bound on one publish write
}

// Bus is a Badger-backed implementation of interfaces.Bus.
// Topics double as subscriptions: publishing to a topic makes the message
// pullable under the subscription of the same name.
type Bus struct {
	db     *badger.DB
	cfg    Config
	logger arbor.ILogger
}

// New creates a bus over an existing badger DB.
func New(db *badger.DB, cfg Config, logger arbor.ILogger) (*Bus, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}
	if cfg.VisibilityTimeout <= 0 {
		cfg.VisibilityTimeout = 10 * time.Minute
	}
	if cfg.MaxReceive <= 0 {
		cfg.MaxReceive = 5
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}

	return &Bus{db: db, cfg: cfg, logger: logger}, nil
}

// Publish appends a message to a topic. The payload is JSON-marshalled. The
// write is bounded by the configured publish timeout; on expiry the caller
// gets the context error and must treat the message as unpublished.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) error {
	if b.cfg.PublishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.PublishTimeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	env := envelope{
		ID:         uuid.New().String(),
		Body:       body,
		EnqueuedAt: time.Now().UTC(),
		VisibleAt:  time.Now().UTC(),
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	// Badger writes do not take a context; run the transaction aside so an
	// expired deadline is honored even mid-write.
	done := make(chan error, 1)
	go func() {
		done <- b.db.Update(func(txn *badger.Txn) error {
			if err := txn.Set(b.msgKey(topic, env.ID), data); err != nil {
				return err
			}
			return txn.Set(b.indexKey(topic, env.VisibleAt, env.ID), []byte{})
		})
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pull leases up to max visible messages from a subscription. It waits up to
// the configured retry deadline before returning ErrNoMessage.
func (b *Bus) Pull(ctx context.Context, subscription string, max int) ([]interfaces.Delivery, error) {
	if max <= 0 {
		max = 1
	}

	deadline := time.Now().Add(b.cfg.RetryDeadline)
	for {
		batch, err := b.pullOnce(subscription, max)
		if err != nil {
			return nil, err
		}
		if len(batch) > 0 {
			return batch, nil
		}
		if b.cfg.RetryDeadline <= 0 || time.Now().After(deadline) {
			return nil, ErrNoMessage
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.cfg.PollInterval):
		}
	}
}

func (b *Bus) pullOnce(subscription string, max int) ([]interfaces.Delivery, error) {
	var out []interfaces.Delivery

	err := b.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := b.indexPrefix(subscription)
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now().UTC()

		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(out) < max; it.Next() {
			key := it.Item().KeyCopy(nil)

			ts, id, err := b.parseIndexKey(subscription, key)
			if err != nil {
				continue
			}
			if ts.After(now) {
				// Index keys sort by visibility time; nothing later is ready.
				break
			}

			item, err := txn.Get(b.msgKey(subscription, id))
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					// Stale index entry; clean it up.
					if err := txn.Delete(key); err != nil {
						return err
					}
					continue
				}
				return err
			}

			var env envelope
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &env)
			}); err != nil {
				return err
			}

			if env.ReceiveCount >= b.cfg.MaxReceive {
				// Delivery limit reached: keep the row under a dead-letter
				// prefix for inspection instead of dropping it.
				if err := b.deadLetter(txn, subscription, key, &env); err != nil {
					return err
				}
				continue
			}

			env.ReceiveCount++
			env.VisibleAt = now.Add(b.cfg.VisibilityTimeout)

			data, err := json.Marshal(env)
			if err != nil {
				return err
			}
			if err := txn.Set(b.msgKey(subscription, env.ID), data); err != nil {
				return err
			}
			if err := txn.Delete(key); err != nil {
				return err
			}
			if err := txn.Set(b.indexKey(subscription, env.VisibleAt, env.ID), []byte{}); err != nil {
				return err
			}

			out = append(out, interfaces.Delivery{
				ID:       env.ID,
				Attempts: env.ReceiveCount,
				Data:     env.Body,
			})
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// Ack removes a delivered message. Acking an already-removed message is a no-op.
func (b *Bus) Ack(ctx context.Context, subscription string, deliveryID string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		msgKey := b.msgKey(subscription, deliveryID)

		item, err := txn.Get(msgKey)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		var env envelope
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &env)
		}); err != nil {
			return err
		}

		if err := txn.Delete(b.indexKey(subscription, env.VisibleAt, deliveryID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Delete(msgKey)
	})
}

// Extend lengthens the lease of an in-flight delivery.
func (b *Bus) Extend(ctx context.Context, subscription string, deliveryID string, d time.Duration) error {
	return b.db.Update(func(txn *badger.Txn) error {
		msgKey := b.msgKey(subscription, deliveryID)
		item, err := txn.Get(msgKey)
		if err != nil {
			return err
		}

		var env envelope
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &env)
		}); err != nil {
			return err
		}

		oldVisible := env.VisibleAt
		env.VisibleAt = time.Now().UTC().Add(d)

		data, err := json.Marshal(env)
		if err != nil {
			return err
		}
		if err := txn.Set(msgKey, data); err != nil {
			return err
		}
		if err := txn.Delete(b.indexKey(subscription, oldVisible, deliveryID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(b.indexKey(subscription, env.VisibleAt, deliveryID), []byte{})
	})
}

func (b *Bus) deadLetter(txn *badger.Txn, topic string, indexKey []byte, env *envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := txn.Set(b.deadKey(topic, env.ID), data); err != nil {
		return err
	}
	if err := txn.Delete(indexKey); err != nil {
		return err
	}
	if b.logger != nil {
		b.logger.Warn().
			Str("topic", topic).
			Str("message_id", env.ID).
			Int("receive_count", env.ReceiveCount).
			Msg("Message moved to dead-letter")
	}
	return txn.Delete(b.msgKey(topic, env.ID))
}

func (b *Bus) msgKey(topic, id string) []byte {
	return []byte(fmt.Sprintf("bus:%s:msg:%s", topic, id))
}

func (b *Bus) deadKey(topic, id string) []byte {
	return []byte(fmt.Sprintf("bus:%s:dead:%s", topic, id))
}

func (b *Bus) indexPrefix(topic string) []byte {
	return []byte(fmt.Sprintf("bus:%s:index:", topic))
}

func (b *Bus) indexKey(topic string, visibleAt time.Time, id string) []byte {
	// Zero pad to 20 digits so string ordering matches numeric ordering.
	return []byte(fmt.Sprintf("bus:%s:index:%020d:%s", topic, visibleAt.UnixNano(), id))
}

func (b *Bus) parseIndexKey(topic string, key []byte) (time.Time, string, error) {
	prefix := string(b.indexPrefix(topic))
	if len(key) <= len(prefix) {
		return time.Time{}, "", fmt.Errorf("invalid index key length")
	}

	suffix := string(key[len(prefix):])
	if len(suffix) < 21 { // 20 digits + colon
		return time.Time{}, "", fmt.Errorf("invalid index key suffix")
	}

	var ts int64
	if _, err := fmt.Sscanf(suffix[:20], "%d", &ts); err != nil {
		return time.Time{}, "", err
	}

	return time.Unix(0, ts), suffix[21:], nil
}
