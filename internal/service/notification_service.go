package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gradewatch-api/internal/dto"
	"github.com/noah-isme/gradewatch-api/internal/models"
	"github.com/noah-isme/gradewatch-api/internal/observability"
	"github.com/noah-isme/gradewatch-api/internal/repository"
)

const notificationBufferSize = 16

// Notifier is the delivery surface the sync pipeline writes to. Failures are
// logged and swallowed so a dead broker never aborts a sweep.
type Notifier interface {
	Send(ctx context.Context, chatID int64, kind, message string)
}

// NotificationService publishes notifications and streams them to connected
// clients via SSE.
type NotificationService interface {
	Notifier
	List(ctx context.Context, chatID int64, limit, offset int) ([]dto.NotificationResponse, error)
	MarkRead(ctx context.Context, id uint, chatID int64) (dto.NotificationResponse, error)
	Subscribe(chatID int64) (<-chan dto.NotificationResponse, func())
	Start(ctx context.Context)
}

type notificationService struct {
	repo        repository.NotificationRepository
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
	broker      *notificationBroker
	nodeID      string
}

type notificationEvent struct {
	Source       string                   `json:"source"`
	ChatID       int64                    `json:"chat_id"`
	Notification dto.NotificationResponse `json:"notification"`
	SentAt       time.Time                `json:"sent_at"`
}

type notificationBroker struct {
	mu          sync.RWMutex
	subscribers map[int64]map[chan dto.NotificationResponse]struct{}
}

// NewNotificationService constructs a notification service. The redis client
// and NATS connection are optional; either being nil disables that fan-out leg.
func NewNotificationService(repo repository.NotificationRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) NotificationService {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":notifications"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".notifications"
	}

	return &notificationService{
		repo:        repo,
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		logger:      logger.With().Str("component", "notification_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gradewatch-api/internal/service/notification"),
		sanitizer:   bluemonday.StrictPolicy(),
		broker: &notificationBroker{
			subscribers: make(map[int64]map[chan dto.NotificationResponse]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

func (s *notificationService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *notificationService) Send(ctx context.Context, chatID int64, kind, message string) {
	if _, err := s.Publish(ctx, chatID, kind, message); err != nil {
		s.logger.Warn().Err(err).Int64("chat_id", chatID).Str("type", kind).Msg("failed to deliver notification")
	}
}

// Publish persists the notification, fans it out to local subscribers and the
// cross-node brokers, and returns the stored row.
func (s *notificationService) Publish(ctx context.Context, chatID int64, kind, message string) (dto.NotificationResponse, error) {
	cleanMessage := strings.TrimSpace(s.sanitizer.Sanitize(message))
	if cleanMessage == "" {
		return dto.NotificationResponse{}, errors.New("notification message empty after sanitization")
	}
	if kind == "" {
		kind = models.NotificationSync
	}

	attrs := []attribute.KeyValue{
		attribute.String("notification.chat_id", strconv.FormatInt(chatID, 10)),
		attribute.String("notification.type", kind),
	}

	spanCtx, span := s.tracer.Start(ctx, "notifications.publish", trace.WithAttributes(attrs...))
	defer span.End()

	model := models.Notification{
		ChatID:  chatID,
		Type:    kind,
		Message: cleanMessage,
	}

	if err := s.repo.Create(spanCtx, &model); err != nil {
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}

	response := newNotificationResponse(model)
	s.broker.broadcast(chatID, response)
	if err := s.fanOut(spanCtx, chatID, response); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish notification to broker")
	}

	observability.NotificationsPublished().WithLabelValues(response.Type).Inc()

	return response, nil
}

func (s *notificationService) List(ctx context.Context, chatID int64, limit, offset int) ([]dto.NotificationResponse, error) {
	notifications, err := s.repo.ListByChat(ctx, chatID, limit, offset)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.NotificationResponse, 0, len(notifications))
	for _, notification := range notifications {
		responses = append(responses, newNotificationResponse(notification))
	}

	return responses, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id uint, chatID int64) (dto.NotificationResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "notifications.mark_read")
	defer span.End()

	notification, err := s.repo.MarkRead(spanCtx, id, chatID)
	if err != nil {
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}

	return newNotificationResponse(notification), nil
}

func (s *notificationService) Subscribe(chatID int64) (<-chan dto.NotificationResponse, func()) {
	channel := make(chan dto.NotificationResponse, notificationBufferSize)

	s.broker.subscribe(chatID, channel)
	observability.StreamSubscribers().Inc()

	cleanup := func() {
		s.broker.unsubscribe(chatID, channel)
		observability.StreamSubscribers().Dec()
	}

	return channel, cleanup
}

func (s *notificationService) fanOut(ctx context.Context, chatID int64, notification dto.NotificationResponse) error {
	event := notificationEvent{
		Source:       s.nodeID,
		ChatID:       chatID,
		Notification: notification,
		SentAt:       time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *notificationService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("notification redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *notificationService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "gradewatch-notifications", func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats notifications subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain notification nats subscription")
		}
	}()
}

func (s *notificationService) handleEvent(payload []byte) {
	var event notificationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid notification event payload")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	notification := event.Notification
	if notification.Type == "" {
		notification.Type = models.NotificationSync
	}

	observability.NotificationsPublished().WithLabelValues(notification.Type).Inc()
	s.broker.broadcast(event.ChatID, notification)
}

func newNotificationResponse(model models.Notification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:        model.ID,
		Type:      model.Type,
		Message:   model.Message,
		Read:      model.Read,
		CreatedAt: model.CreatedAt,
	}
}

func (b *notificationBroker) subscribe(chatID int64, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[chatID]; !exists {
		b.subscribers[chatID] = make(map[chan dto.NotificationResponse]struct{})
	}
	b.subscribers[chatID][ch] = struct{}{}
}

func (b *notificationBroker) unsubscribe(chatID int64, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[chatID]; ok {
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, chatID)
		}
	}
}

func (b *notificationBroker) broadcast(chatID int64, notification dto.NotificationResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subscribers := b.subscribers[chatID]
	for ch := range subscribers {
		select {
		case ch <- notification:
		default:
		}
	}
}
