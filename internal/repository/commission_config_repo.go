package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/sevamart/service-market-backend/internal/models"
)

// CommissionConfigRepository 佣金配置仓储
type CommissionConfigRepository struct {
	db *gorm.DB
}

// NewCommissionConfigRepository 创建佣金配置仓储
func NewCommissionConfigRepository(db *gorm.DB) *CommissionConfigRepository {
	return &CommissionConfigRepository{db: db}
}

// Create 创建佣金配置
func (r *CommissionConfigRepository) Create(ctx context.Context, config *models.CommissionConfig) error {
	return r.db.WithContext(ctx).Create(config).Error
}

// GetByID 根据 ID 获取佣金配置
func (r *CommissionConfigRepository) GetByID(ctx context.Context, id int64) (*models.CommissionConfig, error) {
	var config models.CommissionConfig
	err := r.db.WithContext(ctx).First(&config, id).Error
	if err != nil {
		return nil, err
	}
	return &config, nil
}

// FindActive 查找 (service_type, provider) 的生效配置
// 按 ID 升序取第一条匹配记录，provider 为空时不参与过滤
func (r *CommissionConfigRepository) FindActive(ctx context.Context, serviceType, provider string, at time.Time) (*models.CommissionConfig, error) {
	query := r.db.WithContext(ctx).
		Where("service_type = ? AND is_active = ?", serviceType, true).
		Where("(valid_from IS NULL OR valid_from <= ?)", at).
		Where("(valid_to IS NULL OR valid_to >= ?)", at)
	if provider != "" {
		query = query.Where("provider = ?", provider)
	}

	var config models.CommissionConfig
	err := query.Order("id ASC").First(&config).Error
	if err != nil {
		return nil, err
	}
	return &config, nil
}

// List 获取佣金配置列表
func (r *CommissionConfigRepository) List(ctx context.Context, offset, limit int, serviceType string) ([]*models.CommissionConfig, int64, error) {
	var configs []*models.CommissionConfig
	var total int64

	query := r.db.WithContext(ctx).Model(&models.CommissionConfig{})
	if serviceType != "" {
		query = query.Where("service_type = ?", serviceType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&configs).Error
	if err != nil {
		return nil, 0, err
	}

	return configs, total, nil
}

// Deactivate 停用佣金配置
func (r *CommissionConfigRepository) Deactivate(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&models.CommissionConfig{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}
