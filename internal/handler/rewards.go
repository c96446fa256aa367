package handler

import (
	"net/http"

	"github.com/eduardojeem/Mipos-sub008/internal/dto"
	"github.com/eduardojeem/Mipos-sub008/internal/service"

	"github.com/gin-gonic/gin"
)

type RewardsHandler struct{ svc service.RewardService }

func NewRewardsHandler(svc service.RewardService) *RewardsHandler {
	return &RewardsHandler{svc: svc}
}

// CreateReward godoc
// @Summary      Create a reward
// @Tags         rewards
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.CreateRewardRequest true "Reward"
// @Success      201  {object} model.Reward
// @Router       /v1/rewards [post]
func (h *RewardsHandler) CreateReward(c *gin.Context) {
	var req dto.CreateRewardRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	r, err := h.svc.CreateReward(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// ListRewards godoc
// @Summary      List program rewards
// @Tags         rewards
// @Produce      json
// @Security     BearerAuth
// @Param        id          path  string true  "Program UUID"
// @Param        active_only query bool   false "Only active rewards"
// @Success      200 {array} model.Reward
// @Router       /v1/loyalty/programs/{id}/rewards [get]
func (h *RewardsHandler) ListRewards(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	rows, err := h.svc.ListRewards(c.Request.Context(), actor, id, c.Query("active_only") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// RedeemReward godoc
// @Summary      Exchange points for a reward
// @Tags         rewards
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.RedeemRewardRequest true "Redemption"
// @Success      201  {object} model.CustomerReward
// @Failure      409  {object} apierror.APIError
// @Failure      422  {object} apierror.APIError
// @Router       /v1/rewards/redeem [post]
func (h *RewardsHandler) RedeemReward(c *gin.Context) {
	var req dto.RedeemRewardRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	cr, err := h.svc.RedeemReward(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cr)
}

// UseCustomerReward godoc
// @Summary      Apply a redeemed reward to a sale
// @Tags         rewards
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string               true "Customer reward UUID"
// @Param        body body dto.UseRewardRequest true "Sale"
// @Success      200  {object} model.CustomerReward
// @Failure      422  {object} apierror.APIError
// @Router       /v1/customer-rewards/{id}/use [post]
func (h *RewardsHandler) UseCustomerReward(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.UseRewardRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	cr, err := h.svc.UseCustomerReward(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cr)
}

// ListCustomerRewards godoc
// @Summary      Rewards held by an enrollment
// @Tags         rewards
// @Produce      json
// @Security     BearerAuth
// @Param        id  path string true "Enrollment UUID"
// @Success      200 {array} model.CustomerReward
// @Router       /v1/loyalty/enrollments/{id}/rewards [get]
func (h *RewardsHandler) ListCustomerRewards(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	rows, err := h.svc.ListCustomerRewards(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}
