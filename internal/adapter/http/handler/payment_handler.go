package handler

import (
	"pliz-ledger/internal/adapter/http/dto"
	"pliz-ledger/internal/adapter/http/middleware"
	"pliz-ledger/internal/core/domain"
	"pliz-ledger/internal/core/ports"
	"pliz-ledger/pkg/apperror"
	"pliz-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// PaymentHandler handles the money-moving endpoints.
type PaymentHandler struct {
	settlementSvc ports.SettlementService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(settlementSvc ports.SettlementService) *PaymentHandler {
	return &PaymentHandler{settlementSvc: settlementSvc}
}

// SendMoney handles POST /api/v1/transfers.
func (h *PaymentHandler) SendMoney(c *gin.Context) {
	actorID, ok := middleware.ActorID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.SendMoneyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.settlementSvc.SendMoney(c.Request.Context(), ports.SendMoneyRequest{
		ActorID:  actorID,
		Receiver: req.Receiver,
		Amount:   req.Amount,
		Partner:  req.Partner,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	settled(c, result)
}

// PayMerchant handles POST /api/v1/payments/merchant.
func (h *PaymentHandler) PayMerchant(c *gin.Context) {
	actorID, ok := middleware.ActorID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.PayMerchantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.settlementSvc.PayMerchant(c.Request.Context(), ports.PayMerchantRequest{
		ActorID:      actorID,
		MerchantCode: req.MerchantCode,
		Amount:       req.Amount,
		Details:      req.Details,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	settled(c, result)
}

// ChargeCustomer handles POST /api/v1/payments/merchant-initiated.
func (h *PaymentHandler) ChargeCustomer(c *gin.Context) {
	actorID, ok := middleware.ActorID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.ChargeCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.settlementSvc.ChargeCustomer(c.Request.Context(), ports.ChargeCustomerRequest{
		MerchantActorID: actorID,
		CustomerPhone:   req.CustomerPhone,
		Amount:          req.Amount,
		Description:     req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	settled(c, result)
}

// TopUp handles POST /api/v1/topups.
func (h *PaymentHandler) TopUp(c *gin.Context) {
	actorID, ok := middleware.ActorID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.settlementSvc.TopUp(c.Request.Context(), ports.TopUpRequest{
		ActorID: actorID,
		Partner: req.Partner,
		Amount:  req.Amount,
		Detail:  req.Detail,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	settled(c, result)
}

// settled answers 202 while the partner has not confirmed, 201 otherwise.
func settled(c *gin.Context, result *ports.SettlementResult) {
	body := dto.ToSettlementResponse(result)
	if result.Transaction.Status == domain.TransactionStatusPending {
		response.Accepted(c, body)
		return
	}
	response.Created(c, body)
}
