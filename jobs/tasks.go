package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskOrderConfirmed fans out the new-order notification.
	TaskOrderConfirmed = "orders:new_confirmed"
	// TaskOrderStatusChanged fans out a pipeline transition.
	TaskOrderStatusChanged = "orders:status_changed"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
	// TaskCatalogRefresh invalidates cached catalog lookups.
	TaskCatalogRefresh = "catalog:refresh"

	// EventsChannel is the Redis pub/sub channel order events are published on.
	EventsChannel = "orders.events"
)

// OrderEventPayload identifies an order change.
type OrderEventPayload struct {
	OrderID int64     `json:"order_id"`
	From    string    `json:"from,omitempty"`
	To      string    `json:"to,omitempty"`
	At      time.Time `json:"at"`
}

// NewOrderConfirmedTask builds the notification task for a freshly confirmed order.
func NewOrderConfirmedTask(orderID int64, at time.Time) (*asynq.Task, error) {
	return newOrderTask(TaskOrderConfirmed, OrderEventPayload{OrderID: orderID, From: "QUOTATION", To: "CONFIRMED", At: at})
}

// NewOrderStatusChangedTask builds the notification task for a transition.
func NewOrderStatusChangedTask(orderID int64, from, to string, at time.Time) (*asynq.Task, error) {
	return newOrderTask(TaskOrderStatusChanged, OrderEventPayload{OrderID: orderID, From: from, To: to, At: at})
}

func newOrderTask(taskType string, payload OrderEventPayload) (*asynq.Task, error) {
	if payload.OrderID <= 0 {
		return nil, fmt.Errorf("jobs: %s requires an order id", taskType)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueueDefault), asynq.MaxRetry(0)), nil
}

// CleanupPayload overrides the configured retention when set.
type CleanupPayload struct {
	RetentionHours int `json:"retention_hours,omitempty"`
}

// NewIdempotencyCleanupTask builds the cleanup cron task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(CleanupPayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// NewCatalogRefreshTask builds the catalog refresh cron task.
func NewCatalogRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskCatalogRefresh, nil, asynq.Queue(QueueDefault))
}
