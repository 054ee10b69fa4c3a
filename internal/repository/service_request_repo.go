package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/sevamart/service-market-backend/internal/models"
)

// ServiceRequestRepository 服务工单仓储
type ServiceRequestRepository struct {
	db *gorm.DB
}

// NewServiceRequestRepository 创建服务工单仓储
func NewServiceRequestRepository(db *gorm.DB) *ServiceRequestRepository {
	return &ServiceRequestRepository{db: db}
}

// Create 创建服务工单
func (r *ServiceRequestRepository) Create(ctx context.Context, sr *models.ServiceRequest) error {
	return r.db.WithContext(ctx).Create(sr).Error
}

// GetByID 根据 ID 获取服务工单
func (r *ServiceRequestRepository) GetByID(ctx context.Context, id int64) (*models.ServiceRequest, error) {
	var sr models.ServiceRequest
	err := r.db.WithContext(ctx).First(&sr, id).Error
	if err != nil {
		return nil, err
	}
	return &sr, nil
}

// GetBySRNumber 根据工单号获取服务工单
func (r *ServiceRequestRepository) GetBySRNumber(ctx context.Context, srNumber string) (*models.ServiceRequest, error) {
	var sr models.ServiceRequest
	err := r.db.WithContext(ctx).Where("sr_number = ?", srNumber).First(&sr).Error
	if err != nil {
		return nil, err
	}
	return &sr, nil
}

// CountByDay 统计某自然日创建的工单数（工单号兜底序号用）
func (r *ServiceRequestRepository) CountByDay(ctx context.Context, day time.Time) (int64, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	var count int64
	err := r.db.WithContext(ctx).Model(&models.ServiceRequest{}).
		Where("created_at >= ? AND created_at < ?", start, end).
		Count(&count).Error
	return count, err
}

// UpdateFields 更新指定字段
func (r *ServiceRequestRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.ServiceRequest{}).Where("id = ?", id).Updates(fields).Error
}

// UpdateStatusIf 以乐观方式更新工单状态
// 仅当当前状态仍为 fromStatus 时生效，返回实际更新的行数，
// 调用方据此识别并发冲突或非法流转
func (r *ServiceRequestRepository) UpdateStatusIf(ctx context.Context, tx *gorm.DB, id int64, fromStatus, toStatus string) (int64, error) {
	db := r.db
	if tx != nil {
		db = tx
	}
	result := db.WithContext(ctx).Model(&models.ServiceRequest{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Update("status", toStatus)
	return result.RowsAffected, result.Error
}

// List 获取服务工单列表
func (r *ServiceRequestRepository) List(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.ServiceRequest, int64, error) {
	var srs []*models.ServiceRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&models.ServiceRequest{})

	if userID, ok := filters["user_id"].(int64); ok && userID > 0 {
		query = query.Where("user_id = ?", userID)
	}
	if status, ok := filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}
	if serviceType, ok := filters["service_type"].(string); ok && serviceType != "" {
		query = query.Where("service_type = ?", serviceType)
	}
	if assignedTo, ok := filters["assigned_to"].(int64); ok && assignedTo > 0 {
		query = query.Where("assigned_to = ?", assignedTo)
	}
	if district, ok := filters["district"].(string); ok && district != "" {
		query = query.Where("district = ?", district)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&srs).Error
	if err != nil {
		return nil, 0, err
	}

	return srs, total, nil
}
