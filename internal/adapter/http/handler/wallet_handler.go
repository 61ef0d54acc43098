package handler

import (
	"pliz-ledger/internal/adapter/http/dto"
	"pliz-ledger/internal/adapter/http/middleware"
	"pliz-ledger/internal/core/ports"
	"pliz-ledger/pkg/apperror"
	"pliz-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet-related endpoints.
type WalletHandler struct {
	settlementSvc ports.SettlementService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(settlementSvc ports.SettlementService) *WalletHandler {
	return &WalletHandler{settlementSvc: settlementSvc}
}

// GetBalance handles GET /api/v1/wallet/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	actorID, ok := middleware.ActorID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	balance, err := h.settlementSvc.GetBalance(c.Request.Context(), actorID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToBalanceResponse(balance))
}
