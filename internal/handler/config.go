package handler

import (
	"net/http"

	"github.com/aiaimg/taxcollecotr-sub000/internal/dto"
	"github.com/aiaimg/taxcollecotr-sub000/internal/middleware"
	"github.com/aiaimg/taxcollecotr-sub000/internal/service"

	"github.com/gin-gonic/gin"
)

type ConfigHandler struct{ svc service.SystemConfigService }

func NewConfigHandler(svc service.SystemConfigService) *ConfigHandler {
	return &ConfigHandler{svc: svc}
}

// Get godoc
// @Summary Current cash-handling parameters
// @Tags config
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.SystemConfigResponse
// @Router /v1/cash/config [get]
func (h *ConfigHandler) Get(c *gin.Context) {
	cfg, err := h.svc.Get(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.ConfigToResponse(cfg))
}

// Update godoc
// @Summary Change cash-handling parameters
// @Tags config
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.UpdateSystemConfigRequest true "Fields to change"
// @Success 200 {object} dto.SystemConfigResponse
// @Router /v1/cash/config [put]
func (h *ConfigHandler) Update(c *gin.Context) {
	var req dto.UpdateSystemConfigRequest
	if !bindAndValidate(c, &req) {
		return
	}
	cfg, err := h.svc.Update(c.Request.Context(), middleware.CurrentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.ConfigToResponse(cfg))
}
