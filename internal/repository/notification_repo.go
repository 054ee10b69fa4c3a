package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/sevamart/service-market-backend/internal/models"
)

// NotificationRepository 消息通知仓储
type NotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository 创建消息通知仓储
func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create 创建通知
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// CreateBatch 批量创建通知
func (r *NotificationRepository) CreateBatch(ctx context.Context, ns []*models.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&ns).Error
}

// ListByUser 分页获取某用户的通知
func (r *NotificationRepository) ListByUser(ctx context.Context, userID int64, offset, limit int, unreadOnly bool) ([]*models.Notification, int64, error) {
	var ns []*models.Notification
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&ns).Error
	if err != nil {
		return nil, 0, err
	}

	return ns, total, nil
}

// MarkRead 标记单条通知为已读
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id int64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error
}

// MarkAllRead 标记某用户全部通知为已读
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID int64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error
}

// CountUnread 统计某用户未读通知数
func (r *NotificationRepository) CountUnread(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}
