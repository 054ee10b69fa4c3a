package servicerequest

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sevamart/service-market-backend/internal/common/config"
	apperrors "github.com/sevamart/service-market-backend/internal/common/errors"
	"github.com/sevamart/service-market-backend/internal/common/logger"
	"github.com/sevamart/service-market-backend/internal/models"
	"github.com/sevamart/service-market-backend/internal/repository"
	"github.com/sevamart/service-market-backend/internal/service/hierarchy"
	"github.com/sevamart/service-market-backend/internal/service/wallet"
)

// BridgeRates 工单干系人佣金比例
type BridgeRates struct {
	Agent         decimal.Decimal
	TalukManager  decimal.Decimal
	BranchManager decimal.Decimal
	Admin         decimal.Decimal
}

// DefaultBridgeRates 默认比例：专员2% 区域1% 分部0.5% 管理员0.5%
func DefaultBridgeRates() BridgeRates {
	return BridgeRates{
		Agent:         decimal.NewFromInt(2),
		TalukManager:  decimal.NewFromInt(1),
		BranchManager: decimal.NewFromFloat(0.5),
		Admin:         decimal.NewFromFloat(0.5),
	}
}

// BridgeRatesFromConfig 从业务配置读取比例
func BridgeRatesFromConfig(cfg *config.CommissionConfig) BridgeRates {
	return BridgeRates{
		Agent:         decimal.NewFromFloat(cfg.AgentRate),
		TalukManager:  decimal.NewFromFloat(cfg.TalukManagerRate),
		BranchManager: decimal.NewFromFloat(cfg.BranchManagerRate),
		Admin:         decimal.NewFromFloat(cfg.AdminRate),
	}
}

// CommissionBridge 工单完成后的佣金桥接
// 完成时为各干系人登记 pending 佣金，结算时入账。
// (service_request_id, user_id) 唯一，重复触发不产生重复记录
type CommissionBridge struct {
	db       *gorm.DB
	srcRepo  *repository.SRCommissionRepository
	userRepo *repository.UserRepository
	resolver *hierarchy.Resolver
	ledger   *wallet.LedgerService
	notifier *NotificationService
	rates    BridgeRates
}

// NewCommissionBridge 创建佣金桥接器
func NewCommissionBridge(
	db *gorm.DB,
	srcRepo *repository.SRCommissionRepository,
	userRepo *repository.UserRepository,
	resolver *hierarchy.Resolver,
	ledger *wallet.LedgerService,
	notifier *NotificationService,
	rates BridgeRates,
) *CommissionBridge {
	return &CommissionBridge{
		db:       db,
		srcRepo:  srcRepo,
		userRepo: userRepo,
		resolver: resolver,
		ledger:   ledger,
		notifier: notifier,
		rates:    rates,
	}
}

// bridgeLeg 单个干系人的佣金计划
type bridgeLeg struct {
	userID   int64
	userType string
	rate     decimal.Decimal
}

// OnCompleted 工单完成时登记各干系人的 pending 佣金
// 未指派的干系人跳过；管理员一档取分部经理上级链中的第一个管理员
func (b *CommissionBridge) OnCompleted(ctx context.Context, sr *models.ServiceRequest) error {
	legs := b.buildLegs(ctx, sr)
	if len(legs) == 0 {
		logger.Info("工单无可分佣干系人",
			zap.String("sr_number", sr.SRNumber))
		return nil
	}

	return b.db.Transaction(func(tx *gorm.DB) error {
		for _, leg := range legs {
			amount := sr.Amount.Mul(leg.rate).Div(decimal.NewFromInt(100)).Round(2)
			if amount.Sign() <= 0 {
				continue
			}

			// 重复触发时已有记录直接跳过，判定读走同一事务
			if _, err := b.srcRepo.GetByRequestAndUser(ctx, tx, sr.ID, leg.userID); err == nil {
				continue
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			if err := b.srcRepo.Create(ctx, tx, &models.ServiceRequestCommissionTransaction{
				ServiceRequestID: sr.ID,
				UserID:           leg.userID,
				UserType:         leg.userType,
				Amount:           amount,
				CommissionRate:   leg.rate,
				Status:           models.CommissionStatusPending,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// buildLegs 从工单干系人字段构建佣金计划
func (b *CommissionBridge) buildLegs(ctx context.Context, sr *models.ServiceRequest) []bridgeLeg {
	var legs []bridgeLeg
	seen := make(map[int64]struct{})

	appendLeg := func(userID *int64, userType string, rate decimal.Decimal) {
		if userID == nil || rate.Sign() <= 0 {
			return
		}
		if _, ok := seen[*userID]; ok {
			return
		}
		user, err := b.userRepo.GetByID(ctx, *userID)
		if err != nil || user.Status != models.UserStatusActive {
			logger.Warn("干系人不可用，跳过工单佣金",
				zap.String("sr_number", sr.SRNumber),
				zap.Int64("user_id", *userID))
			return
		}
		seen[*userID] = struct{}{}
		legs = append(legs, bridgeLeg{userID: *userID, userType: userType, rate: rate})
	}

	appendLeg(sr.PincodeAgentID, models.UserTypeServiceAgent, b.rates.Agent)
	appendLeg(sr.TalukManagerID, models.UserTypeTalukManager, b.rates.TalukManager)
	appendLeg(sr.BranchManagerID, models.UserTypeBranchManager, b.rates.BranchManager)

	// 管理员一档：取分部经理上级链中的第一个管理员
	if sr.BranchManagerID != nil {
		if admin, err := b.resolver.FirstOfType(ctx, *sr.BranchManagerID, models.UserTypeAdmin); err == nil {
			appendLeg(&admin.ID, models.UserTypeAdmin, b.rates.Admin)
		}
	}

	return legs
}

// Settle 结算工单的全部 pending 佣金
// 每个受益人独立事务入账，单人失败不阻塞其他人，返回成功结算的记录
func (b *CommissionBridge) Settle(ctx context.Context, sr *models.ServiceRequest) ([]*models.ServiceRequestCommissionTransaction, error) {
	pending, err := b.srcRepo.ListPendingByServiceRequest(ctx, sr.ID)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	var settled []*models.ServiceRequestCommissionTransaction
	var lastErr error

	for _, sc := range pending {
		err := b.db.Transaction(func(tx *gorm.DB) error {
			remark := "工单佣金"
			if _, err := b.ledger.CreditTx(ctx, tx, sc.UserID, sc.Amount, models.WalletTxTypeCommission, &sr.SRNumber, &remark); err != nil {
				return err
			}
			return b.srcRepo.UpdateStatus(ctx, tx, sc.ID, models.CommissionStatusCredited)
		})
		if err != nil {
			logger.Error("工单佣金结算失败",
				zap.String("sr_number", sr.SRNumber),
				zap.Int64("user_id", sc.UserID),
				zap.Error(err))
			lastErr = err
			continue
		}
		sc.Status = models.CommissionStatusCredited
		settled = append(settled, sc)
		if b.notifier != nil {
			b.notifier.NotifyCommission(ctx, sc.UserID, sr.SRNumber, sr.ID, sc.Amount)
		}
	}

	if lastErr != nil && len(settled) == 0 {
		return nil, apperrors.ErrDistributionFailed.WithError(lastErr)
	}
	return settled, nil
}

// ListByServiceRequest 查询工单的佣金记录
func (b *CommissionBridge) ListByServiceRequest(ctx context.Context, serviceRequestID int64) ([]*models.ServiceRequestCommissionTransaction, error) {
	return b.srcRepo.ListByServiceRequest(ctx, serviceRequestID)
}
