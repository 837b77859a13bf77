package repository

import (
	"context"

	"shop/internal/domain/model"
)

// 1リソース分の変更履歴を古い順に引く条件
type AuditTrailQuery struct {
	ResourceType model.AuditResourceType
	ResourceID   int64
	Action       *model.AuditAction
	Limit        int
	Offset       int
}

type AuditLogRepository interface {
	Create(ctx context.Context, log model.AuditLog) error
	ListTrail(ctx context.Context, q AuditTrailQuery) ([]model.AuditLog, int64, error)
}
