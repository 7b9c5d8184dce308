package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// InboxLimit caps the number of notifications kept per user.
const InboxLimit = 100

// Inbox stores notifications in a capped Redis list, newest first.
type Inbox struct {
	rdb *redis.Client
}

func NewInbox(rdb *redis.Client) *Inbox {
	return &Inbox{rdb: rdb}
}

func inboxKey(userID string) string {
	return "notifications:" + userID
}

// Attach subscribes the inbox to every known topic.
func (i *Inbox) Attach(d *Dispatcher) error {
	for _, topic := range Topics {
		if err := d.Subscribe(topic, i.handle); err != nil {
			return err
		}
	}
	return nil
}

func (i *Inbox) handle(n Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := i.Push(ctx, n); err != nil {
		log.Warn().Err(err).Str("topic", n.Type).Str("user_id", n.UserID).Msg("notification inbox write failed")
	}
}

func (i *Inbox) Push(ctx context.Context, n Notification) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return err
	}
	key := inboxKey(n.UserID)
	pipe := i.rdb.TxPipeline()
	pipe.LPush(ctx, key, raw)
	pipe.LTrim(ctx, key, 0, InboxLimit-1)
	_, err = pipe.Exec(ctx)
	return err
}

// List returns up to limit notifications for userID, newest first.
func (i *Inbox) List(ctx context.Context, userID string, limit int) ([]Notification, error) {
	if limit <= 0 || limit > InboxLimit {
		limit = InboxLimit
	}
	raws, err := i.rdb.LRange(ctx, inboxKey(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Notification, 0, len(raws))
	for _, raw := range raws {
		var n Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}
