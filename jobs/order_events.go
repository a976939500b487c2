package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	jobmetrics "github.com/odyssey-erp/distro/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Publisher is the subset of *redis.Client used to broadcast events.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// OrderEvent is the message subscribers of EventsChannel receive.
type OrderEvent struct {
	Event   string    `json:"event"`
	OrderID int64     `json:"order_id"`
	From    string    `json:"from,omitempty"`
	To      string    `json:"to,omitempty"`
	At      time.Time `json:"at"`
}

// Event names carried by OrderEvent.
const (
	EventOrderConfirmed     = "order.confirmed"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderEventsJob publishes order notifications for boards and other listeners.
type OrderEventsJob struct {
	Publisher Publisher
	Channel   string
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewOrderEventsJob wires dependencies for the notification handlers.
func NewOrderEventsJob(publisher Publisher, logger *slog.Logger, metrics *jobmetrics.Metrics) *OrderEventsJob {
	return &OrderEventsJob{Publisher: publisher, Channel: EventsChannel, Logger: logger, Metrics: metrics}
}

// HandleConfirmed processes TaskOrderConfirmed.
func (j *OrderEventsJob) HandleConfirmed(ctx context.Context, t *asynq.Task) error {
	return j.handle(ctx, t, EventOrderConfirmed)
}

// HandleStatusChanged processes TaskOrderStatusChanged.
func (j *OrderEventsJob) HandleStatusChanged(ctx context.Context, t *asynq.Task) error {
	return j.handle(ctx, t, EventOrderStatusChanged)
}

func (j *OrderEventsJob) handle(ctx context.Context, t *asynq.Task, event string) (resultErr error) {
	if j == nil || j.Publisher == nil {
		return errors.New("order events: publisher not configured")
	}
	var payload OrderEventPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.OrderID <= 0 {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(t.Type())
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	msg, err := json.Marshal(OrderEvent{
		Event:   event,
		OrderID: payload.OrderID,
		From:    payload.From,
		To:      payload.To,
		At:      payload.At,
	})
	if err != nil {
		return err
	}
	receivers, err := j.Publisher.Publish(ctx, j.channel(), msg).Result()
	if err != nil {
		j.logger().Error("publish order event", slog.Any("error", err), slog.Int64("order_id", payload.OrderID))
		return err
	}
	j.metrics().AddPublished(event)
	j.logger().Info("order event published",
		slog.String("event", event),
		slog.Int64("order_id", payload.OrderID),
		slog.Int64("receivers", receivers))
	return nil
}

func (j *OrderEventsJob) channel() string {
	if j.Channel != "" {
		return j.Channel
	}
	return EventsChannel
}

func (j *OrderEventsJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", "order_events"))
	}
	return slog.Default().With(slog.String("job", "order_events"))
}

func (j *OrderEventsJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
