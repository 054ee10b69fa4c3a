// Package notification 提供通知相关的 HTTP Handler
package notification

import (
	"github.com/gin-gonic/gin"

	"github.com/sevamart/service-market-backend/internal/common/handler"
	"github.com/sevamart/service-market-backend/internal/common/response"
	"github.com/sevamart/service-market-backend/internal/service/servicerequest"
)

// Handler 通知处理器
type Handler struct {
	notificationService *servicerequest.NotificationService
}

// NewHandler 创建通知处理器
func NewHandler(notificationSvc *servicerequest.NotificationService) *Handler {
	return &Handler{notificationService: notificationSvc}
}

// List 获取通知列表
// @Summary 获取通知列表
// @Tags 通知
// @Produce json
// @Security Bearer
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Param unread_only query bool false "仅未读" default(false)
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/notifications [get]
func (h *Handler) List(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	p := handler.BindPagination(c)
	unreadOnly := c.Query("unread_only") == "true"

	list, total, err := h.notificationService.List(c.Request.Context(), userID, p.Page, p.PageSize, unreadOnly)
	handler.MustSucceedPage(c, err, list, total, p.Page, p.PageSize)
}

// MarkRead 标记通知已读
// @Summary 标记通知已读
// @Tags 通知
// @Produce json
// @Security Bearer
// @Param id path int true "通知ID"
// @Success 200 {object} response.Response
// @Router /api/v1/notifications/{id}/read [put]
func (h *Handler) MarkRead(c *gin.Context) {
	userID, id, ok := handler.RequireUserAndParseID(c, "通知")
	if !ok {
		return
	}

	err := h.notificationService.MarkRead(c.Request.Context(), userID, id)
	handler.MustSucceed(c, err, nil)
}

// MarkAllRead 标记全部通知已读
// @Summary 标记全部通知已读
// @Tags 通知
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response
// @Router /api/v1/notifications/read-all [put]
func (h *Handler) MarkAllRead(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	err := h.notificationService.MarkAllRead(c.Request.Context(), userID)
	handler.MustSucceed(c, err, nil)
}

// CountUnread 获取未读通知数量
// @Summary 获取未读通知数量
// @Tags 通知
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response
// @Router /api/v1/notifications/unread-count [get]
func (h *Handler) CountUnread(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	count, err := h.notificationService.CountUnread(c.Request.Context(), userID)
	if handler.HandleError(c, err) {
		return
	}

	response.Success(c, gin.H{"unread_count": count})
}
