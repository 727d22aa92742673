package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/apierror"
	"github.com/aiaimg/taxcollecotr-sub000/internal/dto"
	"github.com/aiaimg/taxcollecotr-sub000/internal/middleware"
	"github.com/aiaimg/taxcollecotr-sub000/internal/model"
	"github.com/aiaimg/taxcollecotr-sub000/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type SessionHandler struct {
	svc      service.CashSessionService
	payments service.CashPaymentService
	loc      *time.Location
}

func NewSessionHandler(svc service.CashSessionService, payments service.CashPaymentService, loc *time.Location) *SessionHandler {
	return &SessionHandler{svc: svc, payments: payments, loc: loc}
}

// Open godoc
// @Summary Open a cash session for the authenticated collector
// @Tags sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.OpenSessionRequest true "Opening float"
// @Success 201 {object} dto.SessionResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/cash/sessions [post]
func (h *SessionHandler) Open(c *gin.Context) {
	var req dto.OpenSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	cs, err := h.svc.OpenSession(c.Request.Context(), middleware.CurrentUserID(c), req.OpeningBalance)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, service.SessionToResponse(cs, false))
}

// Close godoc
// @Summary Close a session with the physical cash count
// @Tags sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param body body dto.CloseSessionRequest true "Physical count"
// @Success 200 {object} dto.CloseSessionResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/cash/sessions/{id}/close [post]
func (h *SessionHandler) Close(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.CloseSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if _, ok := h.ownedSession(c, id); !ok {
		return
	}

	cs, discrepancy, err := h.svc.CloseSession(c.Request.Context(), id, req.ClosingBalance, middleware.CurrentUserID(c), req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CloseSessionResponse{
		Session:        service.SessionToResponse(cs, false),
		Discrepancy:    discrepancy,
		RequiresReview: !cs.IsApproved(),
	})
}

// Approve godoc
// @Summary Approve a session closure whose discrepancy exceeded tolerance
// @Tags sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param body body dto.ApproveSessionRequest true "Supervisor notes"
// @Success 200 {object} dto.SessionResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/cash/sessions/{id}/approve [post]
func (h *SessionHandler) Approve(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.ApproveSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	cs, err := h.svc.ApproveSessionClosure(c.Request.Context(), id, middleware.CurrentUserID(c), req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.SessionToResponse(cs, false))
}

// Get godoc
// @Summary Get a session
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} dto.SessionResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/cash/sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	cs, ok := h.ownedSession(c, id)
	if !ok {
		return
	}
	h.respondSession(c, cs)
}

// Active returns the open session of the authenticated collector.
func (h *SessionHandler) Active(c *gin.Context) {
	cs, err := h.svc.GetActiveSession(c.Request.Context(), middleware.CurrentUserID(c))
	if errors.Is(err, service.ErrNoActiveSession) {
		c.AbortWithStatusJSON(http.StatusNotFound, apierror.WithCode(service.ErrNoActiveSession.Code, service.ErrNoActiveSession.Message))
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondSession(c, cs)
}

// Totals godoc
// @Summary Recompute the running totals of a session
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} dto.SessionTotals
// @Router /v1/cash/sessions/{id}/totals [get]
func (h *SessionHandler) Totals(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if _, ok := h.ownedSession(c, id); !ok {
		return
	}
	totals, err := h.svc.CalculateSessionTotals(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, totals)
}

// Transactions lists every transaction recorded in a session, voided ones included.
func (h *SessionHandler) Transactions(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if _, ok := h.ownedSession(c, id); !ok {
		return
	}
	txns, err := h.payments.ListSessionTransactions(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]dto.TransactionResponse, len(txns))
	for i := range txns {
		out[i] = service.TransactionToResponse(&txns[i])
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

// List godoc
// @Summary List sessions
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param collector_id query string false "Collector"
// @Param status query string false "Comma separated: open,closed,reconciled"
// @Param from query string false "First day (YYYY-MM-DD)"
// @Param to query string false "Last day (YYYY-MM-DD)"
// @Param limit query int false "Max rows (default 50, max 500)"
// @Success 200 {object} map[string]interface{}
// @Router /v1/cash/sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	collectorID, ok := optionalUUIDQuery(c, "collector_id")
	if !ok {
		return
	}
	from, to, ok := dateRange(c, h.loc)
	if !ok {
		return
	}
	filter := dto.SessionFilter{
		CollectorID: collectorID,
		OpenedFrom:  from,
		OpenedTo:    to,
		Limit:       intQuery(c, "limit", 50, 500),
	}
	if raw := c.Query("status"); raw != "" {
		for _, st := range strings.Split(raw, ",") {
			switch st {
			case model.SessionOpen, model.SessionClosed, model.SessionReconciled:
				filter.Statuses = append(filter.Statuses, st)
			default:
				c.JSON(http.StatusBadRequest, apierror.WithCode("invalid_status", "unknown status "+st))
				return
			}
		}
	}

	sessions, err := h.svc.ListSessions(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]dto.SessionResponse, len(sessions))
	for i := range sessions {
		timedOut, err := h.svc.CheckSessionTimeout(c.Request.Context(), &sessions[i])
		if err != nil {
			respondError(c, err)
			return
		}
		out[i] = service.SessionToResponse(&sessions[i], timedOut)
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "limit": filter.Limit})
}

func (h *SessionHandler) respondSession(c *gin.Context, cs *model.CashSession) {
	timedOut, err := h.svc.CheckSessionTimeout(c.Request.Context(), cs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.SessionToResponse(cs, timedOut))
}

// ownedSession loads a session and rejects collectors touching someone else's.
func (h *SessionHandler) ownedSession(c *gin.Context, id uuid.UUID) (*model.CashSession, bool) {
	cs, err := h.svc.GetSession(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if middleware.ForeignToCollector(c, cs.CollectorID) {
		c.AbortWithStatusJSON(http.StatusForbidden, apierror.WithCode("not_owner", "Session belongs to another collector"))
		return nil, false
	}
	return cs, true
}
