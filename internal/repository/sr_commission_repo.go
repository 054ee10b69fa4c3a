package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/sevamart/service-market-backend/internal/models"
)

// SRCommissionRepository 工单佣金记录仓储
type SRCommissionRepository struct {
	db *gorm.DB
}

// NewSRCommissionRepository 创建工单佣金记录仓储
func NewSRCommissionRepository(db *gorm.DB) *SRCommissionRepository {
	return &SRCommissionRepository{db: db}
}

// Create 创建工单佣金记录
func (r *SRCommissionRepository) Create(ctx context.Context, tx *gorm.DB, sc *models.ServiceRequestCommissionTransaction) error {
	db := r.db
	if tx != nil {
		db = tx
	}
	return db.WithContext(ctx).Create(sc).Error
}

// GetByRequestAndUser 查询某工单下某用户的佣金记录（幂等判定用）
func (r *SRCommissionRepository) GetByRequestAndUser(ctx context.Context, tx *gorm.DB, serviceRequestID, userID int64) (*models.ServiceRequestCommissionTransaction, error) {
	db := r.db
	if tx != nil {
		db = tx
	}
	var sc models.ServiceRequestCommissionTransaction
	err := db.WithContext(ctx).
		Where("service_request_id = ? AND user_id = ?", serviceRequestID, userID).
		First(&sc).Error
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

// ListByServiceRequest 获取某工单的全部佣金记录
func (r *SRCommissionRepository) ListByServiceRequest(ctx context.Context, serviceRequestID int64) ([]*models.ServiceRequestCommissionTransaction, error) {
	var scs []*models.ServiceRequestCommissionTransaction
	err := r.db.WithContext(ctx).
		Where("service_request_id = ?", serviceRequestID).
		Order("id ASC").
		Find(&scs).Error
	if err != nil {
		return nil, err
	}
	return scs, nil
}

// ListPendingByServiceRequest 获取某工单待结算的佣金记录
func (r *SRCommissionRepository) ListPendingByServiceRequest(ctx context.Context, serviceRequestID int64) ([]*models.ServiceRequestCommissionTransaction, error) {
	var scs []*models.ServiceRequestCommissionTransaction
	err := r.db.WithContext(ctx).
		Where("service_request_id = ? AND status = ?", serviceRequestID, models.CommissionStatusPending).
		Order("id ASC").
		Find(&scs).Error
	if err != nil {
		return nil, err
	}
	return scs, nil
}

// UpdateStatus 更新佣金记录状态
func (r *SRCommissionRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, status string) error {
	db := r.db
	if tx != nil {
		db = tx
	}
	return db.WithContext(ctx).Model(&models.ServiceRequestCommissionTransaction{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// ListByUser 分页获取某用户的工单佣金记录
func (r *SRCommissionRepository) ListByUser(ctx context.Context, userID int64, offset, limit int) ([]*models.ServiceRequestCommissionTransaction, int64, error) {
	var scs []*models.ServiceRequestCommissionTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&models.ServiceRequestCommissionTransaction{}).
		Where("user_id = ?", userID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&scs).Error
	if err != nil {
		return nil, 0, err
	}

	return scs, total, nil
}
