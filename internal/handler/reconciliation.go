package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/apierror"
	"github.com/aiaimg/taxcollecotr-sub000/internal/dto"
	"github.com/aiaimg/taxcollecotr-sub000/internal/middleware"
	"github.com/aiaimg/taxcollecotr-sub000/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type ReconciliationHandler struct {
	svc service.ReconciliationService
	loc *time.Location
}

func NewReconciliationHandler(svc service.ReconciliationService, loc *time.Location) *ReconciliationHandler {
	return &ReconciliationHandler{svc: svc, loc: loc}
}

// Daily godoc
// @Summary Daily cash report for one business day
// @Tags reconciliation
// @Produce json
// @Security BearerAuth
// @Param date query string false "Day (YYYY-MM-DD), defaults to today"
// @Success 200 {object} dto.DailyReport
// @Router /v1/cash/reconciliation/daily [get]
func (h *ReconciliationHandler) Daily(c *gin.Context) {
	date, ok := dateQuery(c, "date", h.loc)
	if !ok {
		return
	}
	day := time.Now().In(h.loc)
	if date != nil {
		day = *date
	}
	resp, err := h.svc.GenerateDailyReport(c.Request.Context(), day)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Reconcile godoc
// @Summary Reconcile every closed session of a day against the physical count
// @Tags reconciliation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.ReconcileDayRequest true "Day and physical count"
// @Success 200 {object} dto.ReconcileDayResult
// @Failure 422 {object} apierror.APIError
// @Router /v1/cash/reconciliation/reconcile [post]
func (h *ReconciliationHandler) Reconcile(c *gin.Context) {
	var req dto.ReconcileDayRequest
	if !bindAndValidate(c, &req) {
		return
	}
	day, err := time.ParseInLocation(dateLayout, req.Date, h.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode("invalid_date", "date must be YYYY-MM-DD"))
		return
	}
	resp, err := h.svc.ReconcileDay(c.Request.Context(), day, middleware.CurrentUserID(c), req.PhysicalCount, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Discrepancies godoc
// @Summary Sessions whose count differed from the expected balance
// @Tags reconciliation
// @Produce json
// @Security BearerAuth
// @Param from query string true "First day (YYYY-MM-DD)"
// @Param to query string true "Last day (YYYY-MM-DD)"
// @Param collector_id query string false "Collector"
// @Param min query string false "Minimum absolute discrepancy"
// @Success 200 {object} dto.DiscrepancyReport
// @Router /v1/cash/reconciliation/discrepancies [get]
func (h *ReconciliationHandler) Discrepancies(c *gin.Context) {
	from, to, ok := dateRange(c, h.loc)
	if !ok {
		return
	}
	if from == nil || to == nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode("invalid_date", "from and to are required"))
		return
	}
	collectorID, ok := optionalUUIDQuery(c, "collector_id")
	if !ok {
		return
	}
	filter := dto.DiscrepancyFilter{From: *from, To: *to, CollectorID: collectorID}
	if raw := c.Query("min"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil || d.IsNegative() {
			c.JSON(http.StatusBadRequest, apierror.WithCode("invalid_input", "min must be a non-negative amount"))
			return
		}
		filter.MinDiscrepancy = &d
	}
	resp, err := h.svc.GetDiscrepancyReport(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Unreconciled godoc
// @Summary Closed sessions still waiting for reconciliation
// @Tags reconciliation
// @Produce json
// @Security BearerAuth
// @Param max_age_days query int false "Only sessions opened within the last N days"
// @Success 200 {object} map[string]interface{}
// @Router /v1/cash/reconciliation/unreconciled [get]
func (h *ReconciliationHandler) Unreconciled(c *gin.Context) {
	var maxAge *int
	if raw := c.Query("max_age_days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, apierror.WithCode("invalid_input", "max_age_days must be a non-negative integer"))
			return
		}
		maxAge = &n
	}
	sessions, err := h.svc.GetUnreconciledSessions(c.Request.Context(), maxAge)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]dto.SessionResponse, len(sessions))
	for i := range sessions {
		out[i] = service.SessionToResponse(&sessions[i], false)
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}
