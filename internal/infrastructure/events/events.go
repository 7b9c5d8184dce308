// Package events fans domain events out to in-process subscribers. The
// notification inbox is the only subscriber today; it keeps the latest
// entries per user in Redis.
package events

import (
	"time"

	EventBus "github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	TopicOrderCreated       = "order.created"
	TopicOrderItemStatus    = "order.item_status"
	TopicOrderCancelled     = "order.cancelled"
	TopicNegotiationUpdated = "negotiation.updated"
	TopicCropOrderUpdated   = "crop_order.updated"
)

// Topics lists every topic the inbox listens to.
var Topics = []string{
	TopicOrderCreated,
	TopicOrderItemStatus,
	TopicOrderCancelled,
	TopicNegotiationUpdated,
	TopicCropOrderUpdated,
}

// Notification is one entry in a user's inbox.
type Notification struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	UserID    string                 `json:"userId"`
	Data      map[string]interface{} `json:"data"`
	CreatedAt time.Time              `json:"createdAt"`
}

// Notifier is what services depend on. Delivery is best effort and never
// fails the calling operation.
type Notifier interface {
	Notify(topic string, recipients []uuid.UUID, data map[string]interface{})
}

// Dispatcher publishes notifications on an EventBus.
type Dispatcher struct {
	bus EventBus.Bus
	now func() time.Time
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{bus: EventBus.New(), now: time.Now}
}

// Subscribe registers fn for topic; handlers run asynchronously in order.
func (d *Dispatcher) Subscribe(topic string, fn func(Notification)) error {
	return d.bus.SubscribeAsync(topic, fn, true)
}

// Notify publishes one notification per distinct recipient.
func (d *Dispatcher) Notify(topic string, recipients []uuid.UUID, data map[string]interface{}) {
	seen := make(map[uuid.UUID]struct{}, len(recipients))
	for _, r := range recipients {
		if r == uuid.Nil {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		n := Notification{
			ID:        uuid.NewString(),
			Type:      topic,
			UserID:    r.String(),
			Data:      data,
			CreatedAt: d.now().UTC(),
		}
		if !d.bus.HasCallback(topic) {
			log.Debug().Str("topic", topic).Str("user_id", n.UserID).Msg("notification dropped: no subscriber")
			continue
		}
		d.bus.Publish(topic, n)
	}
}

// Wait blocks until all async handlers have finished.
func (d *Dispatcher) Wait() {
	d.bus.WaitAsync()
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(string, []uuid.UUID, map[string]interface{}) {}
