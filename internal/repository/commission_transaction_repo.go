package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/sevamart/service-market-backend/internal/models"
)

// CommissionTransactionRepository 分佣流水仓储
type CommissionTransactionRepository struct {
	db *gorm.DB
}

// NewCommissionTransactionRepository 创建分佣流水仓储
func NewCommissionTransactionRepository(db *gorm.DB) *CommissionTransactionRepository {
	return &CommissionTransactionRepository{db: db}
}

// Create 创建分佣流水
func (r *CommissionTransactionRepository) Create(ctx context.Context, tx *models.CommissionTransaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

// GetByID 根据 ID 获取分佣流水
func (r *CommissionTransactionRepository) GetByID(ctx context.Context, id int64) (*models.CommissionTransaction, error) {
	var tx models.CommissionTransaction
	err := r.db.WithContext(ctx).First(&tx, id).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// GetByTransaction 根据 (service_type, transaction_id) 获取分佣流水
func (r *CommissionTransactionRepository) GetByTransaction(ctx context.Context, serviceType, transactionID string) (*models.CommissionTransaction, error) {
	var tx models.CommissionTransaction
	err := r.db.WithContext(ctx).
		Where("service_type = ? AND transaction_id = ?", serviceType, transactionID).
		First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// UpdateStatus 更新分佣流水状态
func (r *CommissionTransactionRepository) UpdateStatus(ctx context.Context, id int64, status string, failureReason *string) error {
	fields := map[string]interface{}{
		"status":         status,
		"failure_reason": failureReason,
	}
	return r.db.WithContext(ctx).Model(&models.CommissionTransaction{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// GetPending 获取待处理的分佣流水（对账/重试工具使用）
func (r *CommissionTransactionRepository) GetPending(ctx context.Context, offset, limit int) ([]*models.CommissionTransaction, int64, error) {
	return r.getByStatus(ctx, models.CommissionTxStatusPending, offset, limit)
}

// GetFailed 获取失败的分佣流水
func (r *CommissionTransactionRepository) GetFailed(ctx context.Context, offset, limit int) ([]*models.CommissionTransaction, int64, error) {
	return r.getByStatus(ctx, models.CommissionTxStatusFailed, offset, limit)
}

// getByStatus 按状态查询分佣流水
func (r *CommissionTransactionRepository) getByStatus(ctx context.Context, status string, offset, limit int) ([]*models.CommissionTransaction, int64, error) {
	var txs []*models.CommissionTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&models.CommissionTransaction{}).Where("status = ?", status)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("id ASC").Offset(offset).Limit(limit).Find(&txs).Error
	if err != nil {
		return nil, 0, err
	}

	return txs, total, nil
}
