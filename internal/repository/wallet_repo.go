package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sevamart/service-market-backend/internal/models"
)

// WalletRepository 钱包仓储
// 余额变更全部走数据库端表达式，避免读改写竞态
type WalletRepository struct {
	db *gorm.DB
}

// NewWalletRepository 创建钱包仓储
func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// AddBalance 给用户余额加钱（服务器端自增）
// 返回实际更新的行数，行数为 0 表示用户不存在
func (r *WalletRepository) AddBalance(ctx context.Context, tx *gorm.DB, userID int64, amount decimal.Decimal) (int64, error) {
	db := r.db
	if tx != nil {
		db = tx
	}
	result := db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("wallet_balance", gorm.Expr("wallet_balance + ?", amount))
	return result.RowsAffected, result.Error
}

// DeductBalance 扣减用户余额
// 仅当余额足够时生效，行数为 0 表示余额不足或用户不存在
func (r *WalletRepository) DeductBalance(ctx context.Context, tx *gorm.DB, userID int64, amount decimal.Decimal) (int64, error) {
	db := r.db
	if tx != nil {
		db = tx
	}
	result := db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND wallet_balance >= ?", userID, amount).
		Update("wallet_balance", gorm.Expr("wallet_balance - ?", amount))
	return result.RowsAffected, result.Error
}

// GetBalance 查询用户当前余额
func (r *WalletRepository) GetBalance(ctx context.Context, tx *gorm.DB, userID int64) (decimal.Decimal, error) {
	db := r.db
	if tx != nil {
		db = tx
	}
	var user models.User
	err := db.WithContext(ctx).Select("id", "wallet_balance").First(&user, userID).Error
	if err != nil {
		return decimal.Zero, err
	}
	return user.WalletBalance, nil
}

// CreateTransaction 追加一条钱包流水
func (r *WalletRepository) CreateTransaction(ctx context.Context, tx *gorm.DB, wt *models.WalletTransaction) error {
	db := r.db
	if tx != nil {
		db = tx
	}
	return db.WithContext(ctx).Create(wt).Error
}

// ListTransactions 分页获取某用户的钱包流水
func (r *WalletRepository) ListTransactions(ctx context.Context, userID int64, offset, limit int, txType string) ([]*models.WalletTransaction, int64, error) {
	var wts []*models.WalletTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&models.WalletTransaction{}).Where("user_id = ?", userID)
	if txType != "" {
		query = query.Where("type = ?", txType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&wts).Error
	if err != nil {
		return nil, 0, err
	}

	return wts, total, nil
}
