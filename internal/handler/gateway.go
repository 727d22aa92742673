package handler

import (
	"net/http"

	"github.com/aiaimg/taxcollecotr-sub000/internal/dto"
	"github.com/aiaimg/taxcollecotr-sub000/internal/service"

	"github.com/gin-gonic/gin"
)

type GatewayHandler struct {
	svc           service.GatewayPaymentService
	verifyBaseURL string
}

func NewGatewayHandler(svc service.GatewayPaymentService, verifyBaseURL string) *GatewayHandler {
	return &GatewayHandler{svc: svc, verifyBaseURL: verifyBaseURL}
}

// Confirm godoc
// @Summary Record a settled MVola or Stripe payment
// @Description Replays with the same method and reference return the original artifact.
// @Tags gateway
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.GatewayConfirmationRequest true "Settled payment"
// @Success 200 {object} dto.ArtifactResponse
// @Failure 422 {object} apierror.APIError
// @Router /v1/cash/gateway/confirm [post]
func (h *GatewayHandler) Confirm(c *gin.Context) {
	var req dto.GatewayConfirmationRequest
	if !bindAndValidate(c, &req) {
		return
	}
	artifact, err := h.svc.ConfirmGatewayPayment(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.ArtifactToResponse(artifact, h.verifyBaseURL))
}
