package handler

import (
	"net/http"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/apierror"
	"github.com/aiaimg/taxcollecotr-sub000/internal/dto"
	"github.com/aiaimg/taxcollecotr-sub000/internal/middleware"
	"github.com/aiaimg/taxcollecotr-sub000/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CommissionHandler struct {
	svc service.CommissionService
	loc *time.Location
}

func NewCommissionHandler(svc service.CommissionService, loc *time.Location) *CommissionHandler {
	return &CommissionHandler{svc: svc, loc: loc}
}

// Session godoc
// @Summary Commission earned in one session
// @Tags commissions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} dto.SessionCommission
// @Router /v1/cash/sessions/{id}/commission [get]
func (h *CommissionHandler) Session(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.GetSessionCommission(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Collector godoc
// @Summary Commission report of a collector
// @Description Collectors may only read their own report (use "me").
// @Tags commissions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Collector ID or me"
// @Param from query string false "First day (YYYY-MM-DD)"
// @Param to query string false "Last day (YYYY-MM-DD)"
// @Success 200 {object} dto.CollectorCommissionReport
// @Router /v1/cash/commissions/collectors/{id} [get]
func (h *CommissionHandler) Collector(c *gin.Context) {
	collectorID := middleware.CurrentUserID(c)
	if raw := c.Param("id"); raw != "me" {
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		collectorID = id
	}
	if middleware.ForeignToCollector(c, collectorID) {
		c.AbortWithStatusJSON(http.StatusForbidden, apierror.WithCode("not_owner", "Commission report of another collector"))
		return
	}
	from, to, ok := dateRange(c, h.loc)
	if !ok {
		return
	}
	resp, err := h.svc.GetCollectorCommissionReport(c.Request.Context(), collectorID, from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Summary godoc
// @Summary Commission summary grouped by collector or day
// @Tags commissions
// @Produce json
// @Security BearerAuth
// @Param from query string true "First day (YYYY-MM-DD)"
// @Param to query string true "Last day (YYYY-MM-DD)"
// @Param group_by query string false "collector | day"
// @Success 200 {object} dto.CommissionSummaryReport
// @Router /v1/cash/commissions/summary [get]
func (h *CommissionHandler) Summary(c *gin.Context) {
	from, to, ok := dateRange(c, h.loc)
	if !ok {
		return
	}
	if from == nil || to == nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode("invalid_date", "from and to are required"))
		return
	}
	resp, err := h.svc.GetCommissionSummary(c.Request.Context(), *from, *to, c.DefaultQuery("group_by", dto.GroupByCollector))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// MarkPaid godoc
// @Summary Mark pending commissions as paid out
// @Tags commissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.MarkCommissionsPaidRequest true "Commission ids"
// @Success 200 {object} dto.MarkCommissionsPaidResponse
// @Router /v1/cash/commissions/pay [post]
func (h *CommissionHandler) MarkPaid(c *gin.Context) {
	var req dto.MarkCommissionsPaidRequest
	if !bindAndValidate(c, &req) {
		return
	}
	ids := make([]uuid.UUID, len(req.CommissionIDs))
	for i, raw := range req.CommissionIDs {
		ids[i] = uuid.MustParse(raw) // validated by the dive,uuid tag
	}
	var paidAt time.Time
	if req.PaidDate != nil {
		paidAt = *req.PaidDate
	}
	n, err := h.svc.MarkCommissionsAsPaid(c.Request.Context(), ids, middleware.CurrentUserID(c), paidAt)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MarkCommissionsPaidResponse{Updated: n})
}
