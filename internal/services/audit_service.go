package services

import (
	"encoding/json"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/CodeSyncr/collaborative-expense-tracker/internal/logger"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/metrics"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/models"
)

type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log appends an audit entry for a project, expense or account mutation.
// Failures are logged and counted but never returned: the mutation has
// already been committed by the time the handler records it.
func (s *auditService) Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{}) {
	log := logger.With("user_id", userID, "action", action, "resource_type", resourceType, "resource_id", resourceID)

	entry := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
		Changes:      encodeChanges(log, changes),
	}

	if err := s.db.Create(entry).Error; err != nil {
		metrics.AuditEntries.WithLabelValues(action, "error").Inc()
		log.Errorw("failed to write audit entry", "error", err)
		return
	}
	metrics.AuditEntries.WithLabelValues(action, "ok").Inc()
}

// encodeChanges serializes a change set. Decimal values marshal as strings,
// so amounts keep their exact representation in the JSON column.
func encodeChanges(log *zap.SugaredLogger, changes map[string]interface{}) datatypes.JSON {
	if len(changes) == 0 {
		return nil
	}
	data, err := json.Marshal(changes)
	if err != nil {
		log.Warnw("failed to encode audit changes", "error", err)
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}
