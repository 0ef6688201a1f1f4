package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/community-class-api/internal/models"
	"github.com/noah-isme/community-class-api/pkg/jobs"
	"github.com/noah-isme/community-class-api/pkg/messaging"
)

type capturePublisher struct {
	mu       sync.Mutex
	messages []messaging.Message
	err      error
}

func (c *capturePublisher) Publish(ctx context.Context, msg messaging.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.messages = append(c.messages, msg)
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func (c *capturePublisher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func eventCount(t *testing.T, metrics *MetricsService, eventType models.EventType, result string) float64 {
	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "domain_events_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			if labels["type"] == string(eventType) && labels["result"] == result {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

// stalledPublisher never completes a publish until its context ends.
type stalledPublisher struct{}

func (stalledPublisher) Publish(ctx context.Context, _ messaging.Message) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stalledPublisher) Close() error { return nil }

type failingQueue struct{}

func (failingQueue) TryEnqueue(jobs.Job) error { return jobs.ErrStopped }

func TestEventServiceDeliversThroughQueue(t *testing.T) {
	publisher := &capturePublisher{}
	metrics := NewMetricsService()
	svc := NewEventService(publisher, metrics, zap.NewNop())
	queue := jobs.NewQueue("events", svc.Handle, jobs.QueueConfig{Workers: 1, RetryDelay: time.Millisecond})
	svc.UseQueue(queue)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer queue.Stop()

	svc.Publish(context.Background(), models.DomainEvent{Type: models.EventRegistrationCreated, ClassID: "c1", SubjectID: "r1"})

	require.Eventually(t, func() bool {
		return eventCount(t, metrics, models.EventRegistrationCreated, "published") == 1
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, publisher.count())
	msg := publisher.messages[0]
	assert.Equal(t, string(models.EventRegistrationCreated), msg.Type)
	assert.NotEmpty(t, msg.ID)

	var decoded models.DomainEvent
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, "r1", decoded.SubjectID)
	assert.Equal(t, msg.ID, decoded.ID)
}

func TestEventServiceInlineFailureIsSwallowed(t *testing.T) {
	publisher := &capturePublisher{err: errors.New("broker down")}
	metrics := NewMetricsService()
	svc := NewEventService(publisher, metrics, zap.NewNop())

	assert.NotPanics(t, func() {
		svc.Publish(context.Background(), models.DomainEvent{Type: models.EventAttendanceCheckedIn})
	})
	assert.Equal(t, 1.0, eventCount(t, metrics, models.EventAttendanceCheckedIn, "failed"))
}

func TestEventServiceCountsDroppedEvents(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewEventService(&capturePublisher{}, metrics, zap.NewNop())
	svc.UseQueue(failingQueue{})

	svc.Publish(context.Background(), models.DomainEvent{Type: models.EventRegistrationDeleted})
	assert.Equal(t, 1.0, eventCount(t, metrics, models.EventRegistrationDeleted, "dropped"))
}

func TestEventServicePublishDoesNotBlockWhenBrokerStalls(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewEventService(stalledPublisher{}, metrics, zap.NewNop())
	queue := jobs.NewQueue("events", svc.Handle, jobs.QueueConfig{Workers: 1, BufferSize: 1})
	svc.UseQueue(queue)
	queue.Start(context.Background())
	defer queue.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 4; i++ {
			svc.Publish(ctx, models.DomainEvent{Type: models.EventRegistrationCreated})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked behind a stalled broker")
	}
	assert.GreaterOrEqual(t, eventCount(t, metrics, models.EventRegistrationCreated, "dropped"), 2.0)
}

func TestEventServiceHandleIgnoresForeignPayload(t *testing.T) {
	publisher := &capturePublisher{}
	svc := NewEventService(publisher, nil, zap.NewNop())

	require.NoError(t, svc.Handle(context.Background(), jobs.Job{ID: "x", Payload: "not an event"}))
	assert.Zero(t, publisher.count())
}

func TestNilEventServiceIsSafe(t *testing.T) {
	var svc *EventService
	assert.NotPanics(t, func() { svc.Publish(context.Background(), models.DomainEvent{}) })
}
