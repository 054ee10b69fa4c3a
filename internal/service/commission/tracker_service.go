package commission

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "github.com/sevamart/service-market-backend/internal/common/errors"
	"github.com/sevamart/service-market-backend/internal/common/logger"
	"github.com/sevamart/service-market-backend/internal/models"
	"github.com/sevamart/service-market-backend/internal/repository"
)

// TrackerService 分佣执行流水跟踪
// 以 (service_type, transaction_id) 为幂等键：pending/credited 视为重复，
// failed 允许重置后重试
type TrackerService struct {
	txRepo *repository.CommissionTransactionRepository
}

// NewTrackerService 创建分佣流水跟踪服务
func NewTrackerService(txRepo *repository.CommissionTransactionRepository) *TrackerService {
	return &TrackerService{txRepo: txRepo}
}

// Begin 登记一次分佣执行
// 已有 pending 或 credited 流水时返回 ErrDuplicateDistribution，
// 已有 failed 流水时重置为 pending 复用原记录
func (s *TrackerService) Begin(ctx context.Context, userID int64, amount decimal.Decimal, serviceType, transactionID string) (*models.CommissionTransaction, error) {
	existing, err := s.txRepo.GetByTransaction(ctx, serviceType, transactionID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	if existing != nil {
		if existing.Status != models.CommissionTxStatusFailed {
			return nil, apperrors.ErrDuplicateDistribution
		}
		// 失败的执行允许重试
		logger.Info("重置失败的分佣流水后重试",
			zap.String("service_type", serviceType),
			zap.String("transaction_id", transactionID))
		if err := s.txRepo.UpdateStatus(ctx, existing.ID, models.CommissionTxStatusPending, nil); err != nil {
			return nil, apperrors.ErrDatabaseError.WithError(err)
		}
		existing.Status = models.CommissionTxStatusPending
		existing.FailureReason = nil
		return existing, nil
	}

	record := &models.CommissionTransaction{
		UserID:        userID,
		Amount:        amount,
		ServiceType:   serviceType,
		TransactionID: transactionID,
		Status:        models.CommissionTxStatusPending,
	}
	if err := s.txRepo.Create(ctx, record); err != nil {
		// 唯一索引兜底并发下的重复登记，其余写入错误原样上抛
		if isDuplicateKeyError(err) {
			return nil, apperrors.ErrDuplicateDistribution.WithError(err)
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	return record, nil
}

// isDuplicateKeyError 判断是否为唯一键冲突
// 部分驱动版本不转换为 gorm.ErrDuplicatedKey，再按错误文案兜底
func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// MarkCredited 标记执行成功
func (s *TrackerService) MarkCredited(ctx context.Context, id int64) error {
	if err := s.txRepo.UpdateStatus(ctx, id, models.CommissionTxStatusCredited, nil); err != nil {
		return apperrors.ErrDatabaseError.WithError(err)
	}
	return nil
}

// MarkFailed 标记执行失败并记录原因
func (s *TrackerService) MarkFailed(ctx context.Context, id int64, reason string) error {
	if err := s.txRepo.UpdateStatus(ctx, id, models.CommissionTxStatusFailed, &reason); err != nil {
		return apperrors.ErrDatabaseError.WithError(err)
	}
	return nil
}

// Pending 分页获取执行中的流水
func (s *TrackerService) Pending(ctx context.Context, page, pageSize int) ([]*models.CommissionTransaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.txRepo.GetPending(ctx, (page-1)*pageSize, pageSize)
}

// Failed 分页获取失败的流水
func (s *TrackerService) Failed(ctx context.Context, page, pageSize int) ([]*models.CommissionTransaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.txRepo.GetFailed(ctx, (page-1)*pageSize, pageSize)
}

// GetByTransaction 按幂等键查询流水
func (s *TrackerService) GetByTransaction(ctx context.Context, serviceType, transactionID string) (*models.CommissionTransaction, error) {
	record, err := s.txRepo.GetByTransaction(ctx, serviceType, transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCommissionNotFound
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	return record, nil
}
