package commission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "github.com/sevamart/service-market-backend/internal/common/errors"
	"github.com/sevamart/service-market-backend/internal/common/logger"
	"github.com/sevamart/service-market-backend/internal/common/metrics"
	"github.com/sevamart/service-market-backend/internal/models"
	"github.com/sevamart/service-market-backend/internal/repository"
	"github.com/sevamart/service-market-backend/internal/service/hierarchy"
	"github.com/sevamart/service-market-backend/internal/service/wallet"
)

// DistributionService 分佣服务
// 一次分佣在单个数据库事务内完成：逐级入账 + 佣金记录 + 流水状态
type DistributionService struct {
	db             *gorm.DB
	userRepo       *repository.UserRepository
	commissionRepo *repository.CommissionRepository
	resolver       *hierarchy.Resolver
	configSvc      *ConfigService
	tracker        *TrackerService
	ledger         *wallet.LedgerService
}

// NewDistributionService 创建分佣服务
func NewDistributionService(
	db *gorm.DB,
	userRepo *repository.UserRepository,
	commissionRepo *repository.CommissionRepository,
	resolver *hierarchy.Resolver,
	configSvc *ConfigService,
	tracker *TrackerService,
	ledger *wallet.LedgerService,
) *DistributionService {
	return &DistributionService{
		db:             db,
		userRepo:       userRepo,
		commissionRepo: commissionRepo,
		resolver:       resolver,
		configSvc:      configSvc,
		tracker:        tracker,
		ledger:         ledger,
	}
}

// DistributeRequest 分佣请求
type DistributeRequest struct {
	ServiceAgentID   int64           `json:"service_agent_id" binding:"required"`
	RegisteredUserID *int64          `json:"registered_user_id,omitempty"`
	ServiceType      string          `json:"service_type" binding:"required"`
	Provider         string          `json:"provider,omitempty"`
	TransactionID    string          `json:"transaction_id" binding:"required"`
	Amount           decimal.Decimal `json:"amount" binding:"required"`
	ServiceID        *int64          `json:"service_id,omitempty"`
}

// DistributeResponse 分佣结果
type DistributeResponse struct {
	TransactionID string               `json:"transaction_id"`
	Commissions   []*models.Commission `json:"commissions"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
}

// commissionLeg 单个受益人的分佣计划
type commissionLeg struct {
	user *models.User
	rate decimal.Decimal
}

// Distribute 对一笔交易执行分佣
// 受益人依次为：服务专员、上级链中各角色的第一人、注册推荐用户。
// 比例为 0 或金额舍入后为 0 的受益人跳过，停用用户跳过，
// 上级链解析出错时只影响链上受益人，已解析部分照常入账
func (s *DistributionService) Distribute(ctx context.Context, req *DistributeRequest) (*DistributeResponse, error) {
	if req.Amount.Sign() <= 0 {
		return nil, apperrors.ErrInvalidParams.WithMessage("交易金额必须大于0")
	}
	if req.TransactionID == "" {
		return nil, apperrors.ErrInvalidParams.WithMessage("transaction_id 不能为空")
	}

	agent, err := s.userRepo.GetByID(ctx, req.ServiceAgentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAgentNotFound
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	config, err := s.configSvc.Resolve(ctx, req.ServiceType, req.Provider, time.Now())
	if err != nil {
		return nil, err
	}

	// 幂等登记：重复交易按成功空操作处理，返回已有明细
	record, err := s.tracker.Begin(ctx, req.ServiceAgentID, req.Amount, req.ServiceType, req.TransactionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrDuplicateDistribution) {
			existing, listErr := s.commissionRepo.GetByTransaction(ctx, req.ServiceType, req.TransactionID)
			if listErr != nil {
				return nil, apperrors.ErrDatabaseError.WithError(listErr)
			}
			response := &DistributeResponse{
				TransactionID: req.TransactionID,
				Commissions:   existing,
				TotalAmount:   decimal.Zero,
			}
			for _, c := range existing {
				response.TotalAmount = response.TotalAmount.Add(c.CommissionAmount)
			}
			logger.Info("重复分佣请求，按幂等空操作返回",
				zap.String("service_type", req.ServiceType),
				zap.String("transaction_id", req.TransactionID))
			return response, nil
		}
		return nil, err
	}

	legs, err := s.buildLegs(ctx, agent, config, req)
	if err != nil {
		reason := err.Error()
		if markErr := s.tracker.MarkFailed(ctx, record.ID, reason); markErr != nil {
			logger.Error("标记分佣流水失败状态出错",
				zap.Int64("record_id", record.ID),
				zap.Error(markErr))
		}
		metrics.GetMetrics().RecordDistribution(req.ServiceType, models.CommissionTxStatusFailed)
		return nil, err
	}

	response := &DistributeResponse{
		TransactionID: req.TransactionID,
		TotalAmount:   decimal.Zero,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		referenceNo := fmt.Sprintf("%s-%s", req.ServiceType, req.TransactionID)
		var commissions []*models.Commission

		for _, leg := range legs {
			amount := req.Amount.Mul(leg.rate).Div(decimal.NewFromInt(100)).Round(2)
			if amount.Sign() <= 0 {
				continue
			}

			remark := fmt.Sprintf("%s 交易分佣", req.ServiceType)
			if _, err := s.ledger.CreditTx(ctx, tx, leg.user.ID, amount, models.WalletTxTypeCommission, &referenceNo, &remark); err != nil {
				return err
			}

			commissions = append(commissions, &models.Commission{
				UserID:               leg.user.ID,
				UserType:             leg.user.UserType,
				ServiceType:          req.ServiceType,
				TransactionID:        req.TransactionID,
				ServiceID:            req.ServiceID,
				OriginalAmount:       req.Amount,
				CommissionPercentage: leg.rate,
				CommissionAmount:     amount,
				Status:               models.CommissionStatusCredited,
			})
			response.TotalAmount = response.TotalAmount.Add(amount)
		}

		if len(commissions) > 0 {
			if err := tx.WithContext(ctx).Create(&commissions).Error; err != nil {
				return err
			}
		}
		response.Commissions = commissions

		// 流水状态在同一事务内置为 credited
		return tx.WithContext(ctx).Model(&models.CommissionTransaction{}).
			Where("id = ?", record.ID).
			Update("status", models.CommissionTxStatusCredited).Error
	})
	if err != nil {
		reason := err.Error()
		if markErr := s.tracker.MarkFailed(ctx, record.ID, reason); markErr != nil {
			logger.Error("标记分佣流水失败状态出错",
				zap.Int64("record_id", record.ID),
				zap.Error(markErr))
		}
		metrics.GetMetrics().RecordDistribution(req.ServiceType, models.CommissionTxStatusFailed)
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.ErrDistributionFailed.WithError(err)
	}

	metrics.GetMetrics().RecordDistribution(req.ServiceType, models.CommissionTxStatusCredited)
	for _, c := range response.Commissions {
		amount, _ := c.CommissionAmount.Float64()
		metrics.GetMetrics().RecordCommissionAmount(req.ServiceType, c.UserType, amount)
	}
	logger.Info("分佣完成",
		zap.String("service_type", req.ServiceType),
		zap.String("transaction_id", req.TransactionID),
		zap.Int("beneficiaries", len(response.Commissions)),
		zap.String("total_amount", response.TotalAmount.String()))

	return response, nil
}

// buildLegs 构建受益人计划
// 上级链解析失败按部分链降级，推荐人查询出错则整笔分佣失败
func (s *DistributionService) buildLegs(ctx context.Context, agent *models.User, config *models.CommissionConfig, req *DistributeRequest) ([]commissionLeg, error) {
	var legs []commissionLeg
	paid := make(map[int64]struct{})

	appendLeg := func(user *models.User, rate decimal.Decimal) {
		if rate.Sign() <= 0 {
			return
		}
		if user.Status != models.UserStatusActive {
			logger.Warn("受益人已停用，跳过分佣",
				zap.Int64("user_id", user.ID),
				zap.String("transaction_id", req.TransactionID))
			return
		}
		if _, ok := paid[user.ID]; ok {
			return
		}
		paid[user.ID] = struct{}{}
		legs = append(legs, commissionLeg{user: user, rate: rate})
	}

	appendLeg(agent, config.ServiceAgentCommission)

	chain, chainErr := s.resolver.ParentChain(ctx, agent.ID)
	if chainErr != nil {
		logger.Warn("上级链解析不完整，仅对已解析部分分佣",
			zap.Int64("agent_id", agent.ID),
			zap.String("transaction_id", req.TransactionID),
			zap.Error(chainErr))
	}
	seenTypes := make(map[string]struct{})
	for _, ancestor := range chain {
		if _, ok := seenTypes[ancestor.UserType]; ok {
			continue
		}
		seenTypes[ancestor.UserType] = struct{}{}
		appendLeg(ancestor, RateFor(config, ancestor.UserType))
	}

	if req.RegisteredUserID != nil {
		if *req.RegisteredUserID == agent.ID {
			// 专员自己推荐的交易不重复拿推荐佣金
			logger.Info("推荐人与服务专员相同，跳过推荐佣金",
				zap.Int64("user_id", agent.ID),
				zap.String("transaction_id", req.TransactionID))
		} else if refUser, err := s.userRepo.GetByID(ctx, *req.RegisteredUserID); err == nil {
			appendLeg(refUser, config.RegisteredUserCommission)
		} else if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("推荐人不存在，跳过推荐佣金",
				zap.Int64("registered_user_id", *req.RegisteredUserID),
				zap.String("transaction_id", req.TransactionID))
		} else {
			return nil, apperrors.ErrDatabaseError.WithError(err)
		}
	}

	return legs, nil
}

// GetByTransaction 查询一笔交易的佣金明细
func (s *DistributionService) GetByTransaction(ctx context.Context, serviceType, transactionID string) ([]*models.Commission, error) {
	commissions, err := s.commissionRepo.GetByTransaction(ctx, serviceType, transactionID)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if len(commissions) == 0 {
		return nil, apperrors.ErrCommissionNotFound
	}
	return commissions, nil
}

// ListByUser 分页查询用户的佣金记录
func (s *DistributionService) ListByUser(ctx context.Context, userID int64, page, pageSize int) ([]*models.Commission, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	commissions, total, err := s.commissionRepo.GetByUserID(ctx, userID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, apperrors.ErrDatabaseError.WithError(err)
	}
	return commissions, total, nil
}
