// Package wallet 钱包账本
package wallet

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "github.com/sevamart/service-market-backend/internal/common/errors"
	"github.com/sevamart/service-market-backend/internal/common/logger"
	"github.com/sevamart/service-market-backend/internal/common/metrics"
	"github.com/sevamart/service-market-backend/internal/models"
	"github.com/sevamart/service-market-backend/internal/repository"
)

// LedgerService 钱包账本服务
// 余额与流水在同一事务内变更，余额增减走数据库端表达式
type LedgerService struct {
	db         *gorm.DB
	walletRepo *repository.WalletRepository
}

// NewLedgerService 创建钱包账本服务
func NewLedgerService(db *gorm.DB, walletRepo *repository.WalletRepository) *LedgerService {
	return &LedgerService{
		db:         db,
		walletRepo: walletRepo,
	}
}

// Credit 入账（独立事务）
func (s *LedgerService) Credit(ctx context.Context, userID int64, amount decimal.Decimal, txType string, referenceNo, remark *string) (*models.WalletTransaction, error) {
	var wt *models.WalletTransaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		wt, err = s.CreditTx(ctx, tx, userID, amount, txType, referenceNo, remark)
		return err
	})
	if err != nil {
		return nil, err
	}
	return wt, nil
}

// CreditTx 在调用方事务内入账
// 分佣等需要和其他写操作共事务的场景使用
func (s *LedgerService) CreditTx(ctx context.Context, tx *gorm.DB, userID int64, amount decimal.Decimal, txType string, referenceNo, remark *string) (*models.WalletTransaction, error) {
	if amount.Sign() <= 0 {
		return nil, apperrors.ErrWalletAmountInvalid
	}

	rows, err := s.walletRepo.AddBalance(ctx, tx, userID, amount)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if rows == 0 {
		return nil, apperrors.ErrUserNotFound
	}

	balance, err := s.walletRepo.GetBalance(ctx, tx, userID)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	wt := &models.WalletTransaction{
		UserID:       userID,
		Type:         txType,
		Amount:       amount,
		BalanceAfter: balance,
		ReferenceNo:  referenceNo,
		Remark:       remark,
	}
	if err := s.walletRepo.CreateTransaction(ctx, tx, wt); err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	metrics.GetMetrics().RecordWalletTransaction(txType)
	logger.Info("钱包入账",
		zap.Int64("user_id", userID),
		zap.String("type", txType),
		zap.String("amount", amount.String()),
		zap.String("balance_after", balance.String()))

	return wt, nil
}

// Debit 扣款（独立事务）
// 余额不足时整体回滚并返回 ErrInsufficientBalance
func (s *LedgerService) Debit(ctx context.Context, userID int64, amount decimal.Decimal, txType string, referenceNo, remark *string) (*models.WalletTransaction, error) {
	if amount.Sign() <= 0 {
		return nil, apperrors.ErrWalletAmountInvalid
	}

	var wt *models.WalletTransaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		rows, err := s.walletRepo.DeductBalance(ctx, tx, userID, amount)
		if err != nil {
			return apperrors.ErrDatabaseError.WithError(err)
		}
		if rows == 0 {
			// 用户不存在或余额不足，区分后返回
			if _, err := s.walletRepo.GetBalance(ctx, tx, userID); err != nil {
				return apperrors.ErrUserNotFound
			}
			return apperrors.ErrInsufficientBalance
		}

		balance, err := s.walletRepo.GetBalance(ctx, tx, userID)
		if err != nil {
			return apperrors.ErrDatabaseError.WithError(err)
		}

		wt = &models.WalletTransaction{
			UserID:       userID,
			Type:         txType,
			Amount:       amount.Neg(),
			BalanceAfter: balance,
			ReferenceNo:  referenceNo,
			Remark:       remark,
		}
		return s.walletRepo.CreateTransaction(ctx, tx, wt)
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	metrics.GetMetrics().RecordWalletTransaction(txType)
	return wt, nil
}

// GetBalance 查询余额
func (s *LedgerService) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	balance, err := s.walletRepo.GetBalance(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, apperrors.ErrUserNotFound
		}
		return decimal.Zero, apperrors.ErrDatabaseError.WithError(err)
	}
	return balance, nil
}

// ListTransactions 分页查询流水
func (s *LedgerService) ListTransactions(ctx context.Context, userID int64, page, pageSize int, txType string) ([]*models.WalletTransaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	wts, total, err := s.walletRepo.ListTransactions(ctx, userID, (page-1)*pageSize, pageSize, txType)
	if err != nil {
		return nil, 0, apperrors.ErrDatabaseError.WithError(err)
	}
	return wts, total, nil
}
