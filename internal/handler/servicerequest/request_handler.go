// Package servicerequest 提供工单相关的 HTTP Handler
package servicerequest

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/sevamart/service-market-backend/internal/common/handler"
	"github.com/sevamart/service-market-backend/internal/common/response"
	"github.com/sevamart/service-market-backend/internal/service/servicerequest"
)

// Handler 工单处理器
type Handler struct {
	requestService *servicerequest.RequestService
	bridge         *servicerequest.CommissionBridge
}

// NewHandler 创建工单处理器
func NewHandler(requestSvc *servicerequest.RequestService, bridge *servicerequest.CommissionBridge) *Handler {
	return &Handler{
		requestService: requestSvc,
		bridge:         bridge,
	}
}

// CreateRequest 创建工单请求
type CreateRequest struct {
	ServiceType string          `json:"service_type" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	ServiceData json.RawMessage `json:"service_data,omitempty"`
	District    *string         `json:"district,omitempty"`
	Pincode     *string         `json:"pincode,omitempty"`
}

// Create 创建工单
// @Summary 创建工单
// @Tags 工单
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body CreateRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.ServiceRequest}
// @Router /api/v1/service-requests [post]
func (h *Handler) Create(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	sr, err := h.requestService.Create(c.Request.Context(), &servicerequest.CreateRequest{
		UserID:      userID,
		ServiceType: req.ServiceType,
		Amount:      req.Amount,
		ServiceData: req.ServiceData,
		District:    req.District,
		Pincode:     req.Pincode,
	})
	handler.MustSucceed(c, err, sr)
}

// List 获取工单列表
// @Summary 获取工单列表
// @Tags 工单
// @Produce json
// @Security Bearer
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Param status query string false "工单状态"
// @Param service_type query string false "服务类型"
// @Param mine query bool false "仅查看本人工单" default(true)
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/service-requests [get]
func (h *Handler) List(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	p := handler.BindPagination(c)

	filters := map[string]interface{}{}
	if c.DefaultQuery("mine", "true") == "true" {
		filters["user_id"] = userID
	}
	if status := c.Query("status"); status != "" {
		filters["status"] = status
	}
	if serviceType := c.Query("service_type"); serviceType != "" {
		filters["service_type"] = serviceType
	}
	if district := c.Query("district"); district != "" {
		filters["district"] = district
	}

	list, total, err := h.requestService.List(c.Request.Context(), p.Page, p.PageSize, filters)
	handler.MustSucceedPage(c, err, list, total, p.Page, p.PageSize)
}

// Get 获取工单详情
// @Summary 获取工单详情
// @Tags 工单
// @Produce json
// @Security Bearer
// @Param id path int true "工单ID"
// @Success 200 {object} response.Response{data=models.ServiceRequest}
// @Router /api/v1/service-requests/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	id, ok := handler.ParseID(c, "工单")
	if !ok {
		return
	}

	sr, err := h.requestService.Get(c.Request.Context(), id)
	handler.MustSucceed(c, err, sr)
}

// UpdateStatusRequest 工单状态流转请求
type UpdateStatusRequest struct {
	Status string  `json:"status" binding:"required"` // 目标状态
	Reason *string `json:"reason,omitempty"`          // 取消原因
	Notes  *string `json:"notes,omitempty"`           // 备注
}

// UpdateStatus 工单状态流转
// @Summary 工单状态流转
// @Tags 工单
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "工单ID"
// @Param request body UpdateStatusRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.ServiceRequest}
// @Router /api/v1/service-requests/{id}/status [patch]
func (h *Handler) UpdateStatus(c *gin.Context) {
	userID, id, ok := handler.RequireUserAndParseID(c, "工单")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	sr, err := h.requestService.Transition(c.Request.Context(), id, req.Status, userID, req.Reason, req.Notes)
	handler.MustSucceed(c, err, sr)
}

// AssignRequest 指派干系人请求
type AssignRequest struct {
	Role   string `json:"role" binding:"required"`    // 干系人角色: pincode_agent/taluk_manager/branch_manager/assignee
	UserID int64  `json:"user_id" binding:"required"` // 被指派用户ID
}

// Assign 指派干系人
// @Summary 指派干系人
// @Tags 工单
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "工单ID"
// @Param request body AssignRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.ServiceRequest}
// @Router /api/v1/service-requests/{id}/assign [post]
func (h *Handler) Assign(c *gin.Context) {
	actorID, id, ok := handler.RequireUserAndParseID(c, "工单")
	if !ok {
		return
	}

	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	sr, err := h.requestService.AssignStakeholder(c.Request.Context(), id, req.Role, req.UserID, actorID)
	handler.MustSucceed(c, err, sr)
}

// History 获取工单状态流转历史
// @Summary 获取工单状态流转历史
// @Tags 工单
// @Produce json
// @Security Bearer
// @Param id path int true "工单ID"
// @Success 200 {object} response.Response{data=[]models.ServiceRequestStatusUpdate}
// @Router /api/v1/service-requests/{id}/history [get]
func (h *Handler) History(c *gin.Context) {
	id, ok := handler.ParseID(c, "工单")
	if !ok {
		return
	}

	updates, err := h.requestService.History(c.Request.Context(), id)
	handler.MustSucceed(c, err, updates)
}

// GetCommissions 获取工单佣金计划
// @Summary 获取工单佣金计划
// @Tags 工单
// @Produce json
// @Security Bearer
// @Param id path int true "工单ID"
// @Success 200 {object} response.Response{data=[]models.ServiceRequestCommissionTransaction}
// @Router /api/v1/service-requests/{id}/commissions [get]
func (h *Handler) GetCommissions(c *gin.Context) {
	id, ok := handler.ParseID(c, "工单")
	if !ok {
		return
	}

	legs, err := h.bridge.ListByServiceRequest(c.Request.Context(), id)
	handler.MustSucceed(c, err, legs)
}

// SettleCommissions 结算工单佣金
// @Summary 结算工单佣金
// @Tags 工单
// @Produce json
// @Security Bearer
// @Param id path int true "工单ID"
// @Success 200 {object} response.Response{data=[]models.ServiceRequestCommissionTransaction}
// @Router /api/v1/service-requests/{id}/commissions/settle [post]
func (h *Handler) SettleCommissions(c *gin.Context) {
	id, ok := handler.ParseID(c, "工单")
	if !ok {
		return
	}

	sr, err := h.requestService.Get(c.Request.Context(), id)
	if handler.HandleError(c, err) {
		return
	}

	settled, err := h.bridge.Settle(c.Request.Context(), sr)
	handler.MustSucceed(c, err, settled)
}

// MarkPaid 标记工单已支付
// @Summary 标记工单已支付
// @Tags 工单
// @Produce json
// @Security Bearer
// @Param id path int true "工单ID"
// @Success 200 {object} response.Response{data=models.ServiceRequest}
// @Router /api/v1/service-requests/{id}/paid [post]
func (h *Handler) MarkPaid(c *gin.Context) {
	id, ok := handler.ParseID(c, "工单")
	if !ok {
		return
	}

	sr, err := h.requestService.MarkPaid(c.Request.Context(), id)
	handler.MustSucceed(c, err, sr)
}
