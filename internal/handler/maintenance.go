package handler

import (
	"net/http"

	"github.com/eduardojeem/Mipos-sub008/internal/dto"
	"github.com/eduardojeem/Mipos-sub008/internal/service"

	"github.com/gin-gonic/gin"
)

// MaintenanceHandler triggers the scheduled loyalty jobs on demand. Both jobs
// are idempotent, so a manual run next to the scheduled one is harmless.
type MaintenanceHandler struct{ svc service.LoyaltyService }

func NewMaintenanceHandler(svc service.LoyaltyService) *MaintenanceHandler {
	return &MaintenanceHandler{svc: svc}
}

// ExpirePoints godoc
// @Summary      Run points expiration now
// @Tags         maintenance
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.MaintenanceResponse
// @Router       /v1/maintenance/loyalty/expire [post]
func (h *MaintenanceHandler) ExpirePoints(c *gin.Context) {
	n, err := h.svc.ExpirePoints(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MaintenanceResponse{Job: "expire_points", Processed: n})
}

// BirthdayBonuses godoc
// @Summary      Run birthday bonuses now
// @Tags         maintenance
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.MaintenanceResponse
// @Router       /v1/maintenance/loyalty/birthday [post]
func (h *MaintenanceHandler) BirthdayBonuses(c *gin.Context) {
	n, err := h.svc.ProcessBirthdayBonuses(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MaintenanceResponse{Job: "birthday_bonus", Processed: n})
}
