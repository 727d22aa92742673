package handler

import (
	"net/http"

	"github.com/aiaimg/taxcollecotr-sub000/internal/apierror"
	"github.com/aiaimg/taxcollecotr-sub000/internal/dto"
	"github.com/aiaimg/taxcollecotr-sub000/internal/middleware"
	"github.com/aiaimg/taxcollecotr-sub000/internal/service"

	"github.com/gin-gonic/gin"
)

type TransactionHandler struct{ svc service.CashPaymentService }

func NewTransactionHandler(svc service.CashPaymentService) *TransactionHandler {
	return &TransactionHandler{svc: svc}
}

// Create godoc
// @Summary Record a cash tax payment in the collector's open session
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CreateCashPaymentRequest true "Payment"
// @Success 201 {object} dto.TransactionResponse
// @Failure 422 {object} apierror.APIError
// @Router /v1/cash/transactions [post]
func (h *TransactionHandler) Create(c *gin.Context) {
	var req dto.CreateCashPaymentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	txn, err := h.svc.CreateCashPayment(c.Request.Context(), middleware.CurrentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusCreated
	if txn.RequiresApproval {
		status = http.StatusAccepted
	}
	c.JSON(status, service.TransactionToResponse(txn))
}

// Approve godoc
// @Summary Second-person approval of a high-value cash payment
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Param body body dto.ApproveTransactionRequest true "Approval notes"
// @Success 200 {object} dto.TransactionResponse
// @Failure 403 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/cash/transactions/{id}/approve [post]
func (h *TransactionHandler) Approve(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.ApproveTransactionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	txn, err := h.svc.ApproveTransaction(c.Request.Context(), id, middleware.CurrentUserID(c), req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.TransactionToResponse(txn))
}

// Void godoc
// @Summary Void a transaction of an open session within the void window
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Param body body dto.VoidTransactionRequest true "Reason"
// @Success 200 {object} dto.TransactionResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/cash/transactions/{id}/void [post]
func (h *TransactionHandler) Void(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.VoidTransactionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	txn, err := h.svc.VoidTransaction(c.Request.Context(), id, middleware.CurrentUserID(c), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.TransactionToResponse(txn))
}

// Get godoc
// @Summary Get a transaction
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Success 200 {object} dto.TransactionResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/cash/transactions/{id} [get]
func (h *TransactionHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	txn, err := h.svc.GetTransaction(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if middleware.ForeignToCollector(c, txn.CollectorID) {
		c.AbortWithStatusJSON(http.StatusForbidden, apierror.WithCode("not_owner", "Transaction belongs to another collector"))
		return
	}
	c.JSON(http.StatusOK, service.TransactionToResponse(txn))
}

// Change computes the change owed for a tendered amount without recording anything.
func (h *TransactionHandler) Change(c *gin.Context) {
	var req dto.ChangeRequest
	if !bindAndValidate(c, &req) {
		return
	}
	change, err := h.svc.CalculateChange(req.TaxAmount, req.AmountTendered)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ChangeResponse{Change: change})
}
