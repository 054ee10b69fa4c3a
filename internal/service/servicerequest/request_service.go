package servicerequest

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "github.com/sevamart/service-market-backend/internal/common/errors"
	"github.com/sevamart/service-market-backend/internal/common/logger"
	"github.com/sevamart/service-market-backend/internal/common/metrics"
	"github.com/sevamart/service-market-backend/internal/models"
	"github.com/sevamart/service-market-backend/internal/repository"
)

// createMaxRetries 工单号撞号时的重试次数
const createMaxRetries = 3

// RequestService 工单服务
// 负责工单创建、干系人指派与状态机流转；
// 每次流转在同一事务内落审计记录，完成时触发佣金桥接
type RequestService struct {
	db          *gorm.DB
	srRepo      *repository.ServiceRequestRepository
	statusRepo  *repository.StatusUpdateRepository
	userRepo    *repository.UserRepository
	trackerRepo *repository.CommissionTransactionRepository
	numberGen   *NumberGenerator
	bridge      *CommissionBridge
	notifier    *NotificationService
}

// NewRequestService 创建工单服务
func NewRequestService(
	db *gorm.DB,
	srRepo *repository.ServiceRequestRepository,
	statusRepo *repository.StatusUpdateRepository,
	userRepo *repository.UserRepository,
	trackerRepo *repository.CommissionTransactionRepository,
	numberGen *NumberGenerator,
	bridge *CommissionBridge,
	notifier *NotificationService,
) *RequestService {
	return &RequestService{
		db:          db,
		srRepo:      srRepo,
		statusRepo:  statusRepo,
		userRepo:    userRepo,
		trackerRepo: trackerRepo,
		numberGen:   numberGen,
		bridge:      bridge,
		notifier:    notifier,
	}
}

// CreateRequest 创建工单请求
type CreateRequest struct {
	UserID      int64           `json:"user_id" binding:"required"`
	ServiceType string          `json:"service_type" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	ServiceData json.RawMessage `json:"service_data,omitempty"`
	District    *string         `json:"district,omitempty"`
	Pincode     *string         `json:"pincode,omitempty"`
}

// Create 创建工单
// 工单号按日递增，退化计数下的撞号通过唯一索引发现并重试
func (s *RequestService) Create(ctx context.Context, req *CreateRequest) (*models.ServiceRequest, error) {
	if req.Amount.Sign() <= 0 {
		return nil, apperrors.ErrInvalidParams.WithMessage("工单金额必须大于0")
	}

	serviceData, err := models.ParseServiceData(req.ServiceType, req.ServiceData)
	if err != nil {
		return nil, apperrors.ErrServiceDataInvalid.WithError(err)
	}

	if _, err := s.userRepo.GetByID(ctx, req.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	var sr *models.ServiceRequest
	for attempt := 0; attempt < createMaxRetries; attempt++ {
		srNumber, err := s.numberGen.Next(ctx, time.Now())
		if err != nil {
			return nil, apperrors.ErrSRNumberGenerateFail.WithError(err)
		}

		sr = &models.ServiceRequest{
			SRNumber:      srNumber,
			UserID:        req.UserID,
			ServiceType:   req.ServiceType,
			Amount:        req.Amount,
			Status:        models.SRStatusNew,
			PaymentStatus: models.PaymentStatusPending,
			ServiceData:   serviceData,
			District:      req.District,
			Pincode:       req.Pincode,
		}
		if err := s.srRepo.Create(ctx, sr); err == nil {
			metrics.GetMetrics().RecordServiceRequest(req.ServiceType)
			s.notifier.NotifyStatusChange(ctx, sr, models.SRStatusNew)
			logger.Info("工单创建",
				zap.String("sr_number", sr.SRNumber),
				zap.String("service_type", sr.ServiceType),
				zap.Int64("user_id", sr.UserID))
			return sr, nil
		} else if !isDuplicateKeyError(err) {
			return nil, apperrors.ErrDatabaseError.WithError(err)
		}
		logger.Warn("工单号冲突，重试", zap.String("sr_number", srNumber))
	}

	return nil, apperrors.ErrSRNumberGenerateFail
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

// Get 根据 ID 获取工单
func (s *RequestService) Get(ctx context.Context, id int64) (*models.ServiceRequest, error) {
	sr, err := s.srRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrServiceRequestNotFound
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	return sr, nil
}

// GetByNumber 根据工单号获取工单
func (s *RequestService) GetByNumber(ctx context.Context, srNumber string) (*models.ServiceRequest, error) {
	sr, err := s.srRepo.GetBySRNumber(ctx, srNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrServiceRequestNotFound
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	return sr, nil
}

// List 分页查询工单
func (s *RequestService) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]*models.ServiceRequest, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	srs, total, err := s.srRepo.List(ctx, (page-1)*pageSize, pageSize, filters)
	if err != nil {
		return nil, 0, apperrors.ErrDatabaseError.WithError(err)
	}
	return srs, total, nil
}

// stakeholderFields 干系人角色到工单字段
var stakeholderFields = map[string]string{
	models.StakeholderPincodeAgent:  "pincode_agent_id",
	models.StakeholderTalukManager:  "taluk_manager_id",
	models.StakeholderBranchManager: "branch_manager_id",
	models.StakeholderAssignee:      "assigned_to",
}

// AssignStakeholder 指派干系人
// 指派履约人时工单从 new 流转到 assigned
func (s *RequestService) AssignStakeholder(ctx context.Context, id int64, role string, userID, actorID int64) (*models.ServiceRequest, error) {
	field, ok := stakeholderFields[role]
	if !ok {
		return nil, apperrors.ErrInvalidStakeholder
	}

	sr, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if models.IsTerminalStatus(sr.Status) {
		return nil, apperrors.ErrInvalidTransition
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	if err := s.srRepo.UpdateFields(ctx, id, map[string]interface{}{field: userID}); err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	if role == models.StakeholderAssignee {
		s.notifier.NotifyAssigned(ctx, sr, userID)
		if sr.Status == models.SRStatusNew {
			return s.Transition(ctx, id, models.SRStatusAssigned, actorID, nil, nil)
		}
	}

	return s.Get(ctx, id)
}

// Transition 工单状态流转
// 乐观更新：前置状态被并发修改时返回 ErrInvalidTransition；
// 流转与审计记录同事务，完成时登记干系人佣金
func (s *RequestService) Transition(ctx context.Context, id int64, toStatus string, actorID int64, reason, notes *string) (*models.ServiceRequest, error) {
	if !models.IsValidSRStatus(toStatus) {
		return nil, apperrors.ErrInvalidParams.WithMessage("未知的工单状态")
	}

	sr, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	fromStatus := sr.Status
	if !models.CanTransition(fromStatus, toStatus) {
		return nil, apperrors.ErrInvalidTransition
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		rows, err := s.srRepo.UpdateStatusIf(ctx, tx, id, fromStatus, toStatus)
		if err != nil {
			return err
		}
		if rows == 0 {
			// 并发流转抢先，按非法流转处理
			return apperrors.ErrInvalidTransition
		}

		if err := s.statusRepo.Create(ctx, tx, &models.ServiceRequestStatusUpdate{
			ServiceRequestID: id,
			FromStatus:       fromStatus,
			ToStatus:         toStatus,
			UpdatedBy:        actorID,
			Reason:           reason,
			Notes:            notes,
		}); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	metrics.GetMetrics().RecordSRTransition(fromStatus, toStatus)
	sr.Status = toStatus
	s.notifier.NotifyStatusChange(ctx, sr, toStatus)

	if toStatus == models.SRStatusCompleted && s.bridge != nil {
		// 桥接失败不回滚流转，落失败流水供补偿排查
		if err := s.bridge.OnCompleted(ctx, sr); err != nil {
			logger.Error("工单佣金登记失败",
				zap.String("sr_number", sr.SRNumber),
				zap.Error(err))
			s.recordBridgeFailure(ctx, sr, err)
		}
	}

	logger.Info("工单状态流转",
		zap.String("sr_number", sr.SRNumber),
		zap.String("from", fromStatus),
		zap.String("to", toStatus),
		zap.Int64("actor_id", actorID))

	return sr, nil
}

// recordBridgeFailure 把佣金桥接失败落成 failed 流水
// 以 (service_type, sr_number) 为幂等键，可经失败流水接口排查补偿
func (s *RequestService) recordBridgeFailure(ctx context.Context, sr *models.ServiceRequest, cause error) {
	if s.trackerRepo == nil {
		return
	}
	reason := cause.Error()
	record := &models.CommissionTransaction{
		UserID:        sr.UserID,
		Amount:        sr.Amount,
		ServiceType:   sr.ServiceType,
		TransactionID: sr.SRNumber,
		Status:        models.CommissionTxStatusFailed,
		FailureReason: &reason,
	}
	if err := s.trackerRepo.Create(ctx, record); err != nil && !isDuplicateKeyError(err) {
		logger.Error("工单佣金失败流水写入失败",
			zap.String("sr_number", sr.SRNumber),
			zap.Error(err))
	}
}

// History 查询工单流转历史
func (s *RequestService) History(ctx context.Context, id int64) ([]*models.ServiceRequestStatusUpdate, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	updates, err := s.statusRepo.ListByServiceRequest(ctx, id)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	return updates, nil
}

// MarkPaid 标记工单已支付
func (s *RequestService) MarkPaid(ctx context.Context, id int64) (*models.ServiceRequest, error) {
	sr, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sr.PaymentStatus == models.PaymentStatusPaid {
		return sr, nil
	}
	if err := s.srRepo.UpdateFields(ctx, id, map[string]interface{}{"payment_status": models.PaymentStatusPaid}); err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	sr.PaymentStatus = models.PaymentStatusPaid
	return sr, nil
}
