package handler

import (
	"github.com/gin-gonic/gin"

	chatErrors "sudooom.date.chat/internal/errors"
	"sudooom.date.chat/internal/middleware"
	"sudooom.date.chat/internal/service"
	"sudooom.date.chat/pkg/response"
)

// TopUpRequest 充值请求
type TopUpRequest struct {
	Tier  string `json:"tier" binding:"required"`
	Token string `json:"token" binding:"required"`
}

// WalletHandler 余额处理器
type WalletHandler struct {
	walletService *service.WalletService
	balance       *service.BalanceMeter
}

// NewWalletHandler 创建余额处理器
func NewWalletHandler(walletService *service.WalletService, balance *service.BalanceMeter) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
		balance:       balance,
	}
}

// GetWallet 当前余额和可选充值档位
// GET /api/v1/wallet
func (h *WalletHandler) GetWallet(c *gin.Context) {
	userID := middleware.GetUserID(c)

	balance, err := h.balance.Balance(c.Request.Context(), userID)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, gin.H{
		"balance": balance,
		"tiers":   h.walletService.Tiers(),
	})
}

// TopUp 充值
// POST /api/v1/wallet/topup
func (h *WalletHandler) TopUp(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, chatErrors.CodeInvalidParams, err.Error())
		return
	}

	result, err := h.walletService.TopUp(c.Request.Context(), userID, req.Tier, req.Token)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, result)
}
