// Package notify is the best-effort notification queue. Messages are
// pushed onto a redis list and drained by a delivery worker; delivery
// failures are logged, never retried.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"goldbot/internal/cache"
)

// Sender delivers one message to a user. The Telegram bot implements
// it; tests use fakes.
type Sender interface {
	SendDM(userID int64, text string) error
}

type Message struct {
	ID     string `json:"id"`
	UserID int64  `json:"user_id"`
	Text   string `json:"text"`
}

type Queue struct {
	rdb    *redis.Client
	sender Sender
}

func NewQueue(rdb *redis.Client, sender Sender) *Queue {
	return &Queue{rdb: rdb, sender: sender}
}

// SetSender attaches the delivery side. Must be called before Worker
// starts; the bot and the queue are constructed in that order because
// each needs the other.
func (q *Queue) SetSender(s Sender) { q.sender = s }

// Notify enqueues the message for later delivery. Satisfies
// economy.Notifier.
func (q *Queue) Notify(ctx context.Context, userID int64, text string) error {
	msg := Message{ID: uuid.NewString(), UserID: userID, Text: text}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: marshal: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := q.rdb.LPush(ctx, cache.NotifyQueueKey, data).Err(); err != nil {
		return fmt.Errorf("notify: enqueue for %d: %w", userID, err)
	}
	return nil
}

// Worker drains the queue until ctx is cancelled. One bad message never
// stops the loop.
func (q *Queue) Worker(ctx context.Context) {
	log.Printf("notify: delivery worker started")
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := q.rdb.BRPop(ctx, 5*time.Second, cache.NotifyQueueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			log.Printf("notify: queue read: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if len(res) < 2 {
			continue
		}

		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			log.Printf("notify: bad message: %v", err)
			continue
		}

		if q.sender == nil {
			log.Printf("notify: no sender attached, dropping message for %d", msg.UserID)
			continue
		}
		if err := q.sender.SendDM(msg.UserID, msg.Text); err != nil {
			log.Printf("notify: delivery to %d: %v", msg.UserID, err)
		}
	}
}
