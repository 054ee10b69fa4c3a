package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/sevamart/service-market-backend/internal/models"
)

// CommissionRepository 佣金记录仓储
type CommissionRepository struct {
	db *gorm.DB
}

// NewCommissionRepository 创建佣金记录仓储
func NewCommissionRepository(db *gorm.DB) *CommissionRepository {
	return &CommissionRepository{db: db}
}

// Create 创建佣金记录
func (r *CommissionRepository) Create(ctx context.Context, commission *models.Commission) error {
	return r.db.WithContext(ctx).Create(commission).Error
}

// CreateBatch 批量创建佣金记录
func (r *CommissionRepository) CreateBatch(ctx context.Context, commissions []*models.Commission) error {
	if len(commissions) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&commissions).Error
}

// GetByID 根据 ID 获取佣金记录
func (r *CommissionRepository) GetByID(ctx context.Context, id int64) (*models.Commission, error) {
	var commission models.Commission
	err := r.db.WithContext(ctx).First(&commission, id).Error
	if err != nil {
		return nil, err
	}
	return &commission, nil
}

// GetByTransaction 获取某笔交易的全部佣金记录
func (r *CommissionRepository) GetByTransaction(ctx context.Context, serviceType, transactionID string) ([]*models.Commission, error) {
	var commissions []*models.Commission
	err := r.db.WithContext(ctx).
		Where("service_type = ? AND transaction_id = ?", serviceType, transactionID).
		Order("id ASC").
		Find(&commissions).Error
	if err != nil {
		return nil, err
	}
	return commissions, nil
}

// GetByUserID 获取用户的佣金记录
func (r *CommissionRepository) GetByUserID(ctx context.Context, userID int64, offset, limit int) ([]*models.Commission, int64, error) {
	var commissions []*models.Commission
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Commission{}).Where("user_id = ?", userID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&commissions).Error
	if err != nil {
		return nil, 0, err
	}

	return commissions, total, nil
}

// List 获取佣金记录列表
func (r *CommissionRepository) List(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Commission, int64, error) {
	var commissions []*models.Commission
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Commission{})

	if serviceType, ok := filters["service_type"].(string); ok && serviceType != "" {
		query = query.Where("service_type = ?", serviceType)
	}
	if status, ok := filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}
	if userType, ok := filters["user_type"].(string); ok && userType != "" {
		query = query.Where("user_type = ?", userType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&commissions).Error
	if err != nil {
		return nil, 0, err
	}

	return commissions, total, nil
}
