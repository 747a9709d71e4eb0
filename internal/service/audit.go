package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/confhub-api/internal/models"
)

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// auditTrail writes best-effort audit entries. Failures are logged, never returned.
type auditTrail struct {
	audit  auditLogger
	logger *zap.Logger
	source string
}

func (a auditTrail) emit(ctx context.Context, actorID, action, resource, resourceID string, oldValues, newValues interface{}) {
	if a.audit == nil {
		return
	}
	entry := &models.AuditLog{
		ID:        uuid.NewString(),
		Action:    action,
		Resource:  resource,
		OldValues: marshalAudit(oldValues),
		NewValues: marshalAudit(newValues),
		IPAddress: "system",
		UserAgent: a.source,
		CreatedAt: time.Now().UTC(),
	}
	if actorID != "" {
		entry.UserID = &actorID
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if err := a.audit.CreateAuditLog(ctx, entry); err != nil && a.logger != nil {
		a.logger.Warn("failed to create audit log", zap.String("action", action), zap.String("resource_id", resourceID), zap.Error(err))
	}
}

func marshalAudit(v interface{}) []byte {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
