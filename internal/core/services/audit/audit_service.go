package audit

import (
	"context"

	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/lcalzada-xor/venuechat/internal/core/ports"
)

// DefaultLimit caps listings when the caller does not ask for a size.
const DefaultLimit = 100

type AuditService struct {
	repo ports.AuditRepository
}

func NewAuditService(repo ports.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

var _ ports.AuditService = (*AuditService)(nil)

// Log records action against target. The actor is read from ctx and falls
// back to "system" for background work.
func (s *AuditService) Log(ctx context.Context, action domain.AuditAction, target, details string) error {
	userID := "system"
	username := "system"

	if u, ok := domain.ActorFromContext(ctx); ok {
		userID = u.ID
		username = u.Email
		if username == "" {
			username = u.Name()
		}
	}

	entry, err := domain.NewAuditLog(userID, username, action, target, details, "")
	if err != nil {
		return err
	}

	return s.repo.SaveAuditLog(ctx, *entry)
}

func (s *AuditService) GetLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return s.repo.ListAuditLogs(ctx, limit)
}
