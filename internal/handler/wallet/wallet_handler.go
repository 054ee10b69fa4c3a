// Package wallet 提供钱包相关的 HTTP Handler
package wallet

import (
	"github.com/gin-gonic/gin"

	"github.com/sevamart/service-market-backend/internal/common/handler"
	"github.com/sevamart/service-market-backend/internal/common/response"
	"github.com/sevamart/service-market-backend/internal/service/wallet"
)

// Handler 钱包处理器
type Handler struct {
	ledgerService *wallet.LedgerService
}

// NewHandler 创建钱包处理器
func NewHandler(ledgerSvc *wallet.LedgerService) *Handler {
	return &Handler{ledgerService: ledgerSvc}
}

// GetWallet 获取钱包余额
// @Summary 获取钱包余额
// @Tags 钱包
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response
// @Router /api/v1/wallet [get]
func (h *Handler) GetWallet(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	balance, err := h.ledgerService.GetBalance(c.Request.Context(), userID)
	if handler.HandleError(c, err) {
		return
	}

	response.Success(c, gin.H{"balance": balance})
}

// ListTransactions 获取钱包流水
// @Summary 获取钱包流水
// @Tags 钱包
// @Produce json
// @Security Bearer
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Param type query string false "交易类型: commission/recharge/spend/refund"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/wallet/transactions [get]
func (h *Handler) ListTransactions(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	p := handler.BindPagination(c)
	txType := c.Query("type")

	list, total, err := h.ledgerService.ListTransactions(c.Request.Context(), userID, p.Page, p.PageSize, txType)
	handler.MustSucceedPage(c, err, list, total, p.Page, p.PageSize)
}
