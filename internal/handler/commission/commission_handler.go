// Package commission 提供佣金相关的 HTTP Handler
package commission

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/sevamart/service-market-backend/internal/common/handler"
	"github.com/sevamart/service-market-backend/internal/common/response"
	"github.com/sevamart/service-market-backend/internal/models"
	"github.com/sevamart/service-market-backend/internal/service/commission"
)

// Handler 佣金处理器
type Handler struct {
	distributionService *commission.DistributionService
	trackerService      *commission.TrackerService
	configService       *commission.ConfigService
}

// NewHandler 创建佣金处理器
func NewHandler(
	distributionSvc *commission.DistributionService,
	trackerSvc *commission.TrackerService,
	configSvc *commission.ConfigService,
) *Handler {
	return &Handler{
		distributionService: distributionSvc,
		trackerService:      trackerSvc,
		configService:       configSvc,
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

// Distribute 对一笔交易执行分佣
// @Summary 对一笔交易执行分佣
// @Tags 佣金
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body DistributeRequest true "请求参数"
// @Success 200 {object} response.Response{data=commission.DistributeResponse}
// @Router /api/v1/commissions/distribute [post]
func (h *Handler) Distribute(c *gin.Context) {
	var req DistributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.distributionService.Distribute(c.Request.Context(), &commission.DistributeRequest{
		ServiceAgentID:   req.ServiceAgentID,
		RegisteredUserID: req.RegisteredUserID,
		ServiceType:      req.ServiceType,
		Provider:         req.Provider,
		TransactionID:    req.TransactionID,
		Amount:           req.Amount,
		ServiceID:        req.ServiceID,
	})
	handler.MustSucceed(c, err, result)
}

// ListMine 获取我的佣金记录
// @Summary 获取我的佣金记录
// @Tags 佣金
// @Produce json
// @Security Bearer
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/commissions [get]
func (h *Handler) ListMine(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	p := handler.BindPagination(c)

	list, total, err := h.distributionService.ListByUser(c.Request.Context(), userID, p.Page, p.PageSize)
	handler.MustSucceedPage(c, err, list, total, p.Page, p.PageSize)
}

// GetByTransaction 按交易号查询佣金记录
// @Summary 按交易号查询佣金记录
// @Tags 佣金
// @Produce json
// @Security Bearer
// @Param service_type query string true "服务类型"
// @Param transaction_id query string true "交易号"
// @Success 200 {object} response.Response{data=[]models.Commission}
// @Router /api/v1/commissions/transaction [get]
func (h *Handler) GetByTransaction(c *gin.Context) {
	serviceType := c.Query("service_type")
	transactionID := c.Query("transaction_id")
	if serviceType == "" || transactionID == "" {
		response.BadRequest(c, "service_type 和 transaction_id 不能为空")
		return
	}

	rows, err := h.distributionService.GetByTransaction(c.Request.Context(), serviceType, transactionID)
	handler.MustSucceed(c, err, rows)
}

// PendingTransactions 获取待对账的佣金交易
// @Summary 获取待对账的佣金交易
// @Tags 佣金
// @Produce json
// @Security Bearer
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/commissions/transactions/pending [get]
func (h *Handler) PendingTransactions(c *gin.Context) {
	p := handler.BindPagination(c)

	list, total, err := h.trackerService.Pending(c.Request.Context(), p.Page, p.PageSize)
	handler.MustSucceedPage(c, err, list, total, p.Page, p.PageSize)
}

// FailedTransactions 获取分佣失败的佣金交易
// @Summary 获取分佣失败的佣金交易
// @Tags 佣金
// @Produce json
// @Security Bearer
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/commissions/transactions/failed [get]
func (h *Handler) FailedTransactions(c *gin.Context) {
	p := handler.BindPagination(c)

	list, total, err := h.trackerService.Failed(c.Request.Context(), p.Page, p.PageSize)
	handler.MustSucceedPage(c, err, list, total, p.Page, p.PageSize)
}

// CreateConfigRequest 创建佣金配置请求
type CreateConfigRequest struct {
	ServiceType              string          `json:"service_type" binding:"required"`
	Provider                 *string         `json:"provider,omitempty"`
	AdminCommission          decimal.Decimal `json:"admin_commission"`
	BranchManagerCommission  decimal.Decimal `json:"branch_manager_commission"`
	TalukManagerCommission   decimal.Decimal `json:"taluk_manager_commission"`
	ServiceAgentCommission   decimal.Decimal `json:"service_agent_commission"`
	RegisteredUserCommission decimal.Decimal `json:"registered_user_commission"`
	APIProviderCommission    decimal.Decimal `json:"api_provider_commission"`
	ValidFrom                *time.Time      `json:"valid_from,omitempty"`
	ValidTo                  *time.Time      `json:"valid_to,omitempty"`
}

// CreateConfig 创建佣金配置
// @Summary 创建佣金配置
// @Tags 佣金配置
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body CreateConfigRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.CommissionConfig}
// @Router /api/v1/admin/commission-configs [post]
func (h *Handler) CreateConfig(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	var req CreateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	config := &models.CommissionConfig{
		ServiceType:              req.ServiceType,
		Provider:                 req.Provider,
		AdminCommission:          req.AdminCommission,
		BranchManagerCommission:  req.BranchManagerCommission,
		TalukManagerCommission:   req.TalukManagerCommission,
		ServiceAgentCommission:   req.ServiceAgentCommission,
		RegisteredUserCommission: req.RegisteredUserCommission,
		APIProviderCommission:    req.APIProviderCommission,
		IsActive:                 true,
		ValidFrom:                req.ValidFrom,
		ValidTo:                  req.ValidTo,
	}

	err := h.configService.Create(c.Request.Context(), config)
	handler.MustSucceed(c, err, config)
}

// ListConfigs 获取佣金配置列表
// @Summary 获取佣金配置列表
// @Tags 佣金配置
// @Produce json
// @Security Bearer
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Param service_type query string false "服务类型"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/admin/commission-configs [get]
func (h *Handler) ListConfigs(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	p := handler.BindPagination(c)
	serviceType := c.Query("service_type")

	list, total, err := h.configService.List(c.Request.Context(), p.Page, p.PageSize, serviceType)
	handler.MustSucceedPage(c, err, list, total, p.Page, p.PageSize)
}

// GetConfig 获取佣金配置详情
// @Summary 获取佣金配置详情
// @Tags 佣金配置
// @Produce json
// @Security Bearer
// @Param id path int true "配置ID"
// @Success 200 {object} response.Response{data=models.CommissionConfig}
// @Router /api/v1/admin/commission-configs/{id} [get]
func (h *Handler) GetConfig(c *gin.Context) {
	_, id, ok := handler.RequireAdminAndParseID(c, "佣金配置")
	if !ok {
		return
	}

	config, err := h.configService.GetByID(c.Request.Context(), id)
	handler.MustSucceed(c, err, config)
}

// DeactivateConfig 停用佣金配置
// @Summary 停用佣金配置
// @Tags 佣金配置
// @Produce json
// @Security Bearer
// @Param id path int true "配置ID"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/commission-configs/{id} [delete]
func (h *Handler) DeactivateConfig(c *gin.Context) {
	_, id, ok := handler.RequireAdminAndParseID(c, "佣金配置")
	if !ok {
		return
	}

	err := h.configService.Deactivate(c.Request.Context(), id)
	handler.MustSucceed(c, err, nil)
}
