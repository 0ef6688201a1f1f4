package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/community-class-api/internal/models"
	"github.com/noah-isme/community-class-api/pkg/jobs"
	"github.com/noah-isme/community-class-api/pkg/messaging"
)

const eventJobType = "domain_event"

type eventQueue interface {
	TryEnqueue(job jobs.Job) error
}

// EventPublisher is the narrow surface domain services use to announce state changes.
type EventPublisher interface {
	Publish(ctx context.Context, event models.DomainEvent)
}

// EventService hands domain events to a background queue whose workers push them to the broker.
// Publishing never fails the caller; delivery problems are logged and counted.
type EventService struct {
	queue     eventQueue
	publisher messaging.Publisher
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewEventService constructs the service. Attach a queue with UseQueue before publishing.
func NewEventService(publisher messaging.Publisher, metrics *MetricsService, logger *zap.Logger) *EventService {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{publisher: publisher, metrics: metrics, logger: logger, now: time.Now}
}

// UseQueue attaches the job queue used for asynchronous delivery. Without one, events are
// delivered inline.
func (s *EventService) UseQueue(queue eventQueue) {
	s.queue = queue
}

// Publish stamps and enqueues the event without waiting. A full or stopped queue drops it.
func (s *EventService) Publish(ctx context.Context, event models.DomainEvent) {
	if s == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now().UTC()
	}

	if s.queue == nil {
		if err := s.deliver(ctx, event); err != nil {
			s.logger.Warn("domain event delivery failed", zap.String("type", string(event.Type)), zap.Error(err))
		}
		return
	}

	job := jobs.Job{ID: event.ID, Type: eventJobType, Payload: event, Enqueued: event.OccurredAt}
	if err := s.queue.TryEnqueue(job); err != nil {
		s.metrics.RecordEvent(string(event.Type), "dropped")
		s.logger.Warn("domain event dropped", zap.String("type", string(event.Type)), zap.String("event_id", event.ID), zap.Error(err))
	}
}

// Handle is the jobs.Handler draining the event queue.
func (s *EventService) Handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.DomainEvent)
	if !ok {
		s.logger.Error("unexpected event payload", zap.String("job_id", job.ID), zap.String("payload", fmt.Sprintf("%T", job.Payload)))
		return nil
	}
	return s.deliver(ctx, event)
}

func (s *EventService) deliver(ctx context.Context, event models.DomainEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = s.publisher.Publish(ctx, messaging.Message{
		ID:         event.ID,
		Type:       string(event.Type),
		Body:       body,
		OccurredAt: event.OccurredAt,
	})
	if err != nil {
		s.metrics.RecordEvent(string(event.Type), "failed")
		return err
	}
	s.metrics.RecordEvent(string(event.Type), "published")
	return nil
}
