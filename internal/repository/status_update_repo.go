package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/sevamart/service-market-backend/internal/models"
)

// StatusUpdateRepository 工单状态流转记录仓储（仅追加）
type StatusUpdateRepository struct {
	db *gorm.DB
}

// NewStatusUpdateRepository 创建工单状态流转记录仓储
func NewStatusUpdateRepository(db *gorm.DB) *StatusUpdateRepository {
	return &StatusUpdateRepository{db: db}
}

// Create 追加一条流转记录
func (r *StatusUpdateRepository) Create(ctx context.Context, tx *gorm.DB, update *models.ServiceRequestStatusUpdate) error {
	db := r.db
	if tx != nil {
		db = tx
	}
	return db.WithContext(ctx).Create(update).Error
}

// ListByServiceRequest 获取某工单的全部流转记录（按时间升序）
func (r *StatusUpdateRepository) ListByServiceRequest(ctx context.Context, serviceRequestID int64) ([]*models.ServiceRequestStatusUpdate, error) {
	var updates []*models.ServiceRequestStatusUpdate
	err := r.db.WithContext(ctx).
		Where("service_request_id = ?", serviceRequestID).
		Order("id ASC").
		Find(&updates).Error
	if err != nil {
		return nil, err
	}
	return updates, nil
}
