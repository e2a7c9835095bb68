package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"github.com/adibqt/LibroTrack/internal/models"
)

// NotificationQueue holds reservation-ready alerts for the external
// dispatcher, which polls Pending and reports back with MarkSent or
// MarkFailed.
type NotificationQueue interface {
	Enqueue(ctx context.Context, n models.Notification) (models.Notification, error)
	Pending(ctx context.Context, limit int) ([]models.Notification, error)
	MarkSent(ctx context.Context, id string) (models.Notification, error)
	MarkFailed(ctx context.Context, id, reason string) (models.Notification, error)
}

// Redis keys of the notification queue
const (
	NotificationRecordsKey = "notifications:records"
	NotificationPendingKey = "notifications:pending"
	NotificationSentKey    = "notifications:sent"
	NotificationFailedKey  = "notifications:failed"
)

var notificationJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// ReadyNotification builds the alert sent when a hold becomes a loan
func ReadyNotification(result models.FulfillResult) models.Notification {
	loanID := result.Loan.ID
	return models.Notification{
		Type:          models.NotificationTypeReservationReady,
		UserID:        result.Reservation.UserID,
		BookID:        result.Reservation.BookID,
		ReservationID: result.Reservation.ID,
		LoanID:        &loanID,
	}
}

// RedisNotificationQueue keeps each notification as JSON in a hash and its
// id in one sorted set per status, scored by creation time.
type RedisNotificationQueue struct {
	redis  *redis.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewRedisNotificationQueue creates a new Redis backed notification queue
func NewRedisNotificationQueue(redisClient *redis.Client, logger *slog.Logger) *RedisNotificationQueue {
	return &RedisNotificationQueue{
		redis:  redisClient,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue stores a new PENDING notification
func (s *RedisNotificationQueue) Enqueue(ctx context.Context, n models.Notification) (models.Notification, error) {
	n = newPending(n, s.now())

	data, err := notificationJSON.Marshal(n)
	if err != nil {
		return models.Notification{}, fmt.Errorf("failed to marshal notification: %w", err)
	}

	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, NotificationRecordsKey, n.ID, data)
	pipe.ZAdd(ctx, NotificationPendingKey, redis.Z{Score: score(n.CreatedAt), Member: n.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("Failed to queue notification", "reservation_id", n.ReservationID, "error", err)
		return models.Notification{}, fmt.Errorf("failed to queue notification: %w", err)
	}

	s.logger.Info("Notification queued", "id", n.ID, "type", n.Type, "user_id", n.UserID)
	return n, nil
}

// Pending returns the oldest PENDING notifications first
func (s *RedisNotificationQueue) Pending(ctx context.Context, limit int) ([]models.Notification, error) {
	if err := validateLimit(limit); err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = maxListLimit
	}

	ids, err := s.redis.ZRange(ctx, NotificationPendingKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read pending notifications: %w", err)
	}
	if len(ids) == 0 {
		return []models.Notification{}, nil
	}

	records, err := s.redis.HMGet(ctx, NotificationRecordsKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read notifications: %w", err)
	}

	out := make([]models.Notification, 0, len(records))
	for i, record := range records {
		raw, ok := record.(string)
		if !ok {
			s.logger.Warn("Pending notification has no record", "id", ids[i])
			continue
		}
		var n models.Notification
		if err := notificationJSON.UnmarshalFromString(raw, &n); err != nil {
			s.logger.Error("Failed to unmarshal notification", "id", ids[i], "error", err)
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// MarkSent moves a PENDING notification to SENT
func (s *RedisNotificationQueue) MarkSent(ctx context.Context, id string) (models.Notification, error) {
	return s.resolve(ctx, id, models.NotificationStatusSent, "")
}

// MarkFailed moves a PENDING notification to FAILED with the dispatcher's reason
func (s *RedisNotificationQueue) MarkFailed(ctx context.Context, id, reason string) (models.Notification, error) {
	return s.resolve(ctx, id, models.NotificationStatusFailed, reason)
}

func (s *RedisNotificationQueue) resolve(ctx context.Context, id string, to models.NotificationStatus, reason string) (models.Notification, error) {
	var n models.Notification

	// WATCH the record so two dispatchers cannot both resolve it
	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, NotificationRecordsKey, id).Result()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: notification %s", ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("failed to read notification %s: %w", id, err)
		}
		if err := notificationJSON.UnmarshalFromString(raw, &n); err != nil {
			return fmt.Errorf("failed to unmarshal notification %s: %w", id, err)
		}

		if err := transitionNotification(&n, to, reason, s.now()); err != nil {
			return err
		}
		data, err := notificationJSON.Marshal(n)
		if err != nil {
			return fmt.Errorf("failed to marshal notification: %w", err)
		}

		target := NotificationSentKey
		if to == models.NotificationStatusFailed {
			target = NotificationFailedKey
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, NotificationRecordsKey, id, data)
			pipe.ZRem(ctx, NotificationPendingKey, id)
			pipe.ZAdd(ctx, target, redis.Z{Score: score(n.UpdatedAt), Member: id})
			return nil
		})
		return err
	}, NotificationRecordsKey)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return models.Notification{}, invalidStateError("notification %s was resolved concurrently", id)
		}
		return models.Notification{}, err
	}

	s.logger.Info("Notification resolved", "id", id, "status", to)
	return n, nil
}

// MemoryNotificationQueue is the in-process NotificationQueue used when
// Redis is not configured.
type MemoryNotificationQueue struct {
	mu      sync.Mutex
	records map[string]models.Notification
	now     func() time.Time
}

func NewMemoryNotificationQueue() *MemoryNotificationQueue {
	return &MemoryNotificationQueue{
		records: make(map[string]models.Notification),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryNotificationQueue) Enqueue(_ context.Context, n models.Notification) (models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n = newPending(n, m.now())
	m.records[n.ID] = n
	return n, nil
}

func (m *MemoryNotificationQueue) Pending(_ context.Context, limit int) ([]models.Notification, error) {
	if err := validateLimit(limit); err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = maxListLimit
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Notification, 0)
	for _, n := range m.records {
		if n.Status == models.NotificationStatusPending {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryNotificationQueue) MarkSent(_ context.Context, id string) (models.Notification, error) {
	return m.resolve(id, models.NotificationStatusSent, "")
}

func (m *MemoryNotificationQueue) MarkFailed(_ context.Context, id, reason string) (models.Notification, error) {
	return m.resolve(id, models.NotificationStatusFailed, reason)
}

func (m *MemoryNotificationQueue) resolve(id string, to models.NotificationStatus, reason string) (models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.records[id]
	if !ok {
		return models.Notification{}, fmt.Errorf("%w: notification %s", ErrNotFound, id)
	}
	if err := transitionNotification(&n, to, reason, m.now()); err != nil {
		return models.Notification{}, err
	}
	m.records[id] = n
	return n, nil
}

func newPending(n models.Notification, now time.Time) models.Notification {
	n.ID = uuid.NewString()
	n.Status = models.NotificationStatusPending
	n.Error = ""
	n.CreatedAt = now
	n.UpdatedAt = now
	return n
}

func transitionNotification(n *models.Notification, to models.NotificationStatus, reason string, now time.Time) error {
	if n.Status != models.NotificationStatusPending {
		return invalidStateError("notification %s is %s", n.ID, n.Status)
	}
	n.Status = to
	n.Error = reason
	n.UpdatedAt = now
	return nil
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}
