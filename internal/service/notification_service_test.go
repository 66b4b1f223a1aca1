package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hall-adp-api/internal/models"
	"github.com/noah-isme/hall-adp-api/pkg/jobs"
)

type recordingNotifier struct {
	mu        sync.Mutex
	events    []models.NotificationEvent
	delivered chan struct{}
}

func (n *recordingNotifier) Notify(_ context.Context, event models.NotificationEvent) error {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
	select {
	case n.delivered <- struct{}{}:
	default:
	}
	return nil
}

func TestNotificationServiceDeliversPublishedEvents(t *testing.T) {
	notifier := &recordingNotifier{delivered: make(chan struct{}, 1)}
	svc := NewNotificationService(notifier, jobs.QueueConfig{Workers: 1, BufferSize: 4}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	svc.Publish(models.NotificationEvent{Type: models.EventAllocationAssigned, HallID: "hall-1"})

	select {
	case <-notifier.delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.events, 1)
	assert.Equal(t, models.EventAllocationAssigned, notifier.events[0].Type)
	assert.Equal(t, "hall-1", notifier.events[0].HallID)
	assert.False(t, notifier.events[0].OccurredAt.IsZero())
}

func TestNotificationServicePublishBeforeStartNeverBlocks(t *testing.T) {
	svc := NewNotificationService(nil, jobs.QueueConfig{}, nil)

	done := make(chan struct{})
	go func() {
		svc.Publish(models.NotificationEvent{Type: models.EventWaitlisted})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a stopped queue")
	}
}
