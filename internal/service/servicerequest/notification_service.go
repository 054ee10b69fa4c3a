package servicerequest

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sevamart/service-market-backend/internal/common/logger"
	"github.com/sevamart/service-market-backend/internal/common/metrics"
	"github.com/sevamart/service-market-backend/internal/models"
	"github.com/sevamart/service-market-backend/internal/repository"
)

// srStatusText 工单状态的通知文案
var srStatusText = map[string]string{
	models.SRStatusNew:        "已创建",
	models.SRStatusAssigned:   "已指派",
	models.SRStatusInProgress: "处理中",
	models.SRStatusCompleted:  "已完成",
	models.SRStatusCancelled:  "已取消",
}

// NotificationService 工单通知
// 通知为尽力而为：落库失败只记日志，不影响主流程
type NotificationService struct {
	notifRepo *repository.NotificationRepository
}

// NewNotificationService 创建工单通知服务
func NewNotificationService(notifRepo *repository.NotificationRepository) *NotificationService {
	return &NotificationService{notifRepo: notifRepo}
}

// NotifyStatusChange 通知工单创建人状态变更
func (s *NotificationService) NotifyStatusChange(ctx context.Context, sr *models.ServiceRequest, toStatus string) {
	text, ok := srStatusText[toStatus]
	if !ok {
		text = toStatus
	}
	s.emit(ctx, &models.Notification{
		UserID:    sr.UserID,
		Type:      models.NotificationTypeSRStatus,
		Title:     "工单状态更新",
		Content:   fmt.Sprintf("您的工单 %s %s", sr.SRNumber, text),
		RelatedID: &sr.ID,
	})
}

// NotifyAssigned 通知被指派人
func (s *NotificationService) NotifyAssigned(ctx context.Context, sr *models.ServiceRequest, assigneeID int64) {
	s.emit(ctx, &models.Notification{
		UserID:    assigneeID,
		Type:      models.NotificationTypeSRAssigned,
		Title:     "新工单指派",
		Content:   fmt.Sprintf("工单 %s 已指派给您", sr.SRNumber),
		RelatedID: &sr.ID,
	})
}

// NotifyCommission 通知受益人佣金入账
func (s *NotificationService) NotifyCommission(ctx context.Context, userID int64, srNumber string, relatedID int64, amount decimal.Decimal) {
	s.emit(ctx, &models.Notification{
		UserID:    userID,
		Type:      models.NotificationTypeCommission,
		Title:     "佣金到账",
		Content:   fmt.Sprintf("工单 %s 的佣金 %s 已入账", srNumber, amount.StringFixed(2)),
		RelatedID: &relatedID,
	})
}

// emit 落库并记指标
func (s *NotificationService) emit(ctx context.Context, n *models.Notification) {
	if err := s.notifRepo.Create(ctx, n); err != nil {
		logger.Error("通知落库失败",
			zap.Int64("user_id", n.UserID),
			zap.String("type", n.Type),
			zap.Error(err))
		return
	}
	metrics.GetMetrics().RecordNotification(n.Type)
}

// List 分页查询用户通知
func (s *NotificationService) List(ctx context.Context, userID int64, page, pageSize int, unreadOnly bool) ([]*models.Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.notifRepo.ListByUser(ctx, userID, (page-1)*pageSize, pageSize, unreadOnly)
}

// MarkRead 标记已读
func (s *NotificationService) MarkRead(ctx context.Context, userID, id int64) error {
	return s.notifRepo.MarkRead(ctx, userID, id)
}

// MarkAllRead 全部标记已读
func (s *NotificationService) MarkAllRead(ctx context.Context, userID int64) error {
	return s.notifRepo.MarkAllRead(ctx, userID)
}

// CountUnread 未读数
func (s *NotificationService) CountUnread(ctx context.Context, userID int64) (int64, error) {
	return s.notifRepo.CountUnread(ctx, userID)
}
