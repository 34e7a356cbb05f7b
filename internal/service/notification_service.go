package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/bondplatform/bond-backend/internal/logger"
	"github.com/bondplatform/bond-backend/internal/models"
)

// NotificationStore описывает зависимости сервиса уведомлений от хранилища.
type NotificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// Broadcaster доставляет событие подключённым клиентам пользователя.
// Реализуется хабом WebSocket.
type Broadcaster interface {
	BroadcastToUser(userID uuid.UUID, event string, data interface{}) error
}

// Notifier — то, чем пользуются доменные сервисы для отправки уведомлений.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, event string, payload interface{})
}

// NotificationService сохраняет уведомления и рассылает их по WebSocket.
type NotificationService struct {
	store       NotificationStore
	broadcaster Broadcaster
}

// NewNotificationService создаёт сервис уведомлений. broadcaster может
// быть nil, тогда уведомления только сохраняются.
func NewNotificationService(store NotificationStore, broadcaster Broadcaster) *NotificationService {
	return &NotificationService{store: store, broadcaster: broadcaster}
}

// Notify сохраняет уведомление и рассылает его по WebSocket. Ошибки
// доставки не возвращаются вызывающему: уведомления вторичны по
// отношению к самой операции.
func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, event string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Log.WithError(err).WithField("event", event).Error("notification service: не удалось сериализовать payload")
		return
	}

	notification := &models.Notification{
		UserID:  userID,
		Event:   event,
		Payload: raw,
	}
	if err := s.store.Create(ctx, notification); err != nil {
		logger.Log.WithError(err).WithField("event", event).Error("notification service: не удалось сохранить уведомление")
		return
	}

	if s.broadcaster != nil {
		if err := s.broadcaster.BroadcastToUser(userID, event, notification); err != nil {
			logger.Log.WithError(err).WithField("event", event).Debug("notification service: доставка по ws не удалась")
		}
	}
}

// List возвращает уведомления пользователя.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, error) {
	return s.store.List(ctx, userID, limit, offset)
}

// MarkAsRead помечает уведомление прочитанным.
func (s *NotificationService) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	return s.store.MarkAsRead(ctx, id, userID)
}

// MarkAllAsRead помечает все уведомления пользователя прочитанными.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.store.MarkAllAsRead(ctx, userID)
}

// Delete удаляет уведомление пользователя.
func (s *NotificationService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	return s.store.Delete(ctx, id, userID)
}

// CountUnread возвращает число непрочитанных уведомлений.
func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.store.CountUnread(ctx, userID)
}
