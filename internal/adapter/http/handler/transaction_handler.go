package handler

import (
	"strconv"
	"strings"

	"pliz-ledger/internal/adapter/http/dto"
	"pliz-ledger/internal/adapter/http/middleware"
	"pliz-ledger/internal/core/domain"
	"pliz-ledger/internal/core/ports"
	"pliz-ledger/pkg/apperror"
	"pliz-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// TransactionHandler handles transaction history endpoints.
type TransactionHandler struct {
	settlementSvc ports.SettlementService
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(settlementSvc ports.SettlementService) *TransactionHandler {
	return &TransactionHandler{settlementSvc: settlementSvc}
}

// ListTransactions handles GET /api/v1/transactions.
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	actorID, ok := middleware.ActorID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	params := ports.HistoryParams{
		ActorID:  actorID,
		Page:     page,
		PageSize: pageSize,
	}

	if s := c.Query("status"); s != "" {
		status := domain.TransactionStatus(strings.ToUpper(s))
		if !status.Valid() {
			response.Error(c, apperror.Validation("unknown status: "+s))
			return
		}
		params.Status = &status
	}
	if t := c.Query("type"); t != "" {
		txType := domain.TransactionType(strings.ToUpper(t))
		if !txType.Valid() {
			response.Error(c, apperror.Validation("unknown type: "+t))
			return
		}
		params.Type = &txType
	}

	txns, total, err := h.settlementSvc.GetTransactionHistory(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, dto.ToTransactionResponse(&txns[i]))
	}

	response.Paged(c, items, response.PageMeta{
		Page:     page,
		PageSize: pageSize,
		Total:    int(total),
	})
}

// GetTransaction handles GET /api/v1/transactions/:order_id.
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	actorID, ok := middleware.ActorID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	detail, err := h.settlementSvc.GetTransactionDetail(c.Request.Context(), c.Param("order_id"), actorID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToTransactionDetailResponse(detail))
}
