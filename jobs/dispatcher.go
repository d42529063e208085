package jobs

import (
	"context"

	"github.com/google/uuid"

	"github.com/Vitorhlem/TruCar/internal/maintenance"
)

// Dispatcher hands committed workflow notifications to the queue. It
// implements the maintenance notifier port.
type Dispatcher struct {
	client *Client
}

// NewDispatcher constructs Dispatcher.
func NewDispatcher(client *Client) *Dispatcher {
	return &Dispatcher{client: client}
}

// Notify enqueues one in-app notification.
func (d *Dispatcher) Notify(ctx context.Context, n maintenance.Notification) error {
	task, err := NewNotifyTask(NotifyPayload{
		UserID:    n.UserID,
		Message:   n.Message,
		RequestID: n.RequestID,
		Dedupe:    uuid.NewString(),
	})
	if err != nil {
		return err
	}
	_, err = d.client.Enqueue(ctx, task)
	return err
}

var _ maintenance.Notifier = (*Dispatcher)(nil)
