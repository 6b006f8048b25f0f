package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradewatch-api/internal/models"
	"github.com/noah-isme/gradewatch-api/internal/repository"
)

func newTestNotificationService(t *testing.T, redisClient *redis.Client) NotificationService {
	t.Helper()
	db := openTestDB(t)
	repo := repository.NewNotificationRepository(db)
	return NewNotificationService(repo, redisClient, "gradewatch", nil, zerolog.Nop())
}

func TestNotificationServicePublishSanitizesAndStores(t *testing.T) {
	svc := newTestNotificationService(t, nil).(*notificationService)
	ctx := context.Background()

	response, err := svc.Publish(ctx, 100, models.NotificationGrade, "<script>alert(1)</script>Grade released for Calculus: A")
	require.NoError(t, err)
	require.Equal(t, "Grade released for Calculus: A", response.Message)
	require.Equal(t, models.NotificationGrade, response.Type)

	listed, err := svc.List(ctx, 100, 10, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.False(t, listed[0].Read)

	marked, err := svc.MarkRead(ctx, listed[0].ID, 100)
	require.NoError(t, err)
	require.True(t, marked.Read)
}

func TestNotificationServicePublishRejectsEmptyMessage(t *testing.T) {
	svc := newTestNotificationService(t, nil).(*notificationService)

	_, err := svc.Publish(context.Background(), 100, models.NotificationGrade, "<script>only markup</script>")
	require.Error(t, err)
}

func TestNotificationServiceSubscribeReceivesPublished(t *testing.T) {
	svc := newTestNotificationService(t, nil)

	channel, cleanup := svc.Subscribe(100)
	defer cleanup()

	svc.Send(context.Background(), 100, models.NotificationSync, "Checked the portal: no new updates.")

	select {
	case received := <-channel:
		require.Equal(t, models.NotificationSync, received.Type)
	case <-time.After(time.Second):
		t.Fatal("expected a notification on the subscriber channel")
	}
}

func TestNotificationServiceRedisFanOutReachesOtherNode(t *testing.T) {
	mini := miniredis.RunT(t)
	clientA := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	clientB := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() {
		_ = clientA.Close()
		_ = clientB.Close()
	})

	nodeA := newTestNotificationService(t, clientA).(*notificationService)
	nodeB := newTestNotificationService(t, clientB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	nodeB.Start(ctx)

	channel, cleanup := nodeB.Subscribe(100)
	defer cleanup()

	// Give the redis subscriber a moment to attach before publishing.
	require.Eventually(t, func() bool {
		_, err := nodeA.Publish(context.Background(), 100, models.NotificationGrade, "Grade released for Calculus: A")
		if err != nil {
			return false
		}
		select {
		case <-channel:
			return true
		default:
			return false
		}
	}, 3*time.Second, 50*time.Millisecond)
}
