package services

import (
	"context"

	"gorm.io/gorm"

	apperrors "github.com/CodeSyncr/collaborative-expense-tracker/internal/errors"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/live"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/metrics"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/models"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/pagination"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/session"
)

// notificationService writes and reads per-user notification inboxes.
type notificationService struct {
	db   *gorm.DB
	live live.Publisher
}

// NewNotificationService creates a new NotificationServicer.
func NewNotificationService(db *gorm.DB, publisher live.Publisher) NotificationServicer {
	return &notificationService{db: db, live: publisher}
}

// FanOut writes one notification per project member except the actor, all in
// a single transaction, then pushes each one to the recipient's live topic.
func (s *notificationService) FanOut(ctx context.Context, project *models.Project, actor session.Session, kind models.NotificationType, expense *models.Expense) error {
	actorName := actor.DisplayName
	if actorName == "" {
		actorName = project.MemberName(actor.UserID)
	}

	var rows []models.Notification
	for _, m := range project.Members {
		if m.UserID == actor.UserID {
			continue
		}
		rows = append(rows, models.Notification{
			RecipientID: m.UserID,
			Type:        kind,
			ProjectID:   project.ID,
			ExpenseID:   expense.ID,
			ActorID:     actor.UserID,
			ActorName:   actorName,
			Description: expense.Description,
			Amount:      expense.Amount,
		})
	}
	if len(rows) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&rows, 100).Error
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrWriteFailure, err)
	}
	metrics.NotificationsWritten.Add(float64(len(rows)))

	for i := range rows {
		s.live.Publish(live.Event{
			Topic:   live.UserTopic(rows[i].RecipientID),
			Kind:    live.KindNotification,
			ID:      rows[i].ID,
			At:      rows[i].CreatedAt,
			Payload: rows[i],
		})
	}
	return nil
}

// ListNotifications returns the caller's notifications, newest first.
func (s *notificationService) ListNotifications(ctx context.Context, sess session.Session, page pagination.PageRequest) (*NotificationPage, error) {
	page.Defaults()

	query := s.db.WithContext(ctx).Model(&models.Notification{}).Where("recipient_id = ?", sess.UserID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var notifications []models.Notification
	err := query.
		Scopes(pagination.NewestFirst("notifications"), pagination.Paginate(page)).
		Find(&notifications).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	resp := &NotificationPage{
		PageResponse: pagination.NewPageResponse(notifications, page.Page, page.PageSize, total),
	}
	if page.Page == 1 && len(notifications) > 0 {
		resp.LatestID = notifications[0].ID
	} else if total > 0 {
		// Find, not First: First would order by primary key ahead of the scope.
		var latest []models.Notification
		err := s.db.WithContext(ctx).Where("recipient_id = ?", sess.UserID).
			Scopes(pagination.NewestFirst("notifications")).
			Limit(1).
			Find(&latest).Error
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if len(latest) > 0 {
			resp.LatestID = latest[0].ID
		}
	}
	return resp, nil
}

// ClearNotifications deletes every notification addressed to the caller.
func (s *notificationService) ClearNotifications(ctx context.Context, sess session.Session) (int64, error) {
	res := s.db.WithContext(ctx).Where("recipient_id = ?", sess.UserID).Delete(&models.Notification{})
	if res.Error != nil {
		return 0, apperrors.Wrap(apperrors.ErrWriteFailure, res.Error)
	}
	s.live.Publish(live.Event{
		Topic: live.UserTopic(sess.UserID),
		Kind:  live.KindNotificationsCleared,
	})
	return res.RowsAffected, nil
}
