package storage

import (
	"context"

	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/lcalzada-xor/venuechat/internal/core/ports"
)

var _ ports.AuditRepository = (*SQLiteAdapter)(nil)

func (a *SQLiteAdapter) SaveAuditLog(ctx context.Context, log domain.AuditLog) error {
	model := auditToModel(log)
	return a.db.WithContext(ctx).Create(&model).Error
}

func (a *SQLiteAdapter) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	var models []AuditModel
	if err := a.db.WithContext(ctx).Order("timestamp desc").Order("id desc").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	logs := make([]domain.AuditLog, len(models))
	for i, m := range models {
		logs[i] = auditToDomain(m)
	}
	return logs, nil
}
