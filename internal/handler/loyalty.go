package handler

import (
	"net/http"

	"github.com/eduardojeem/Mipos-sub008/internal/dto"
	"github.com/eduardojeem/Mipos-sub008/internal/service"

	"github.com/gin-gonic/gin"
)

type LoyaltyHandler struct{ svc service.LoyaltyService }

func NewLoyaltyHandler(svc service.LoyaltyService) *LoyaltyHandler {
	return &LoyaltyHandler{svc: svc}
}

// ── Programs & tiers ──────────────────────────────────────────────────────────

// CreateProgram godoc
// @Summary      Create a loyalty program
// @Tags         loyalty
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.CreateProgramRequest true "Program"
// @Success      201  {object} model.LoyaltyProgram
// @Router       /v1/loyalty/programs [post]
func (h *LoyaltyHandler) CreateProgram(c *gin.Context) {
	var req dto.CreateProgramRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	p, err := h.svc.CreateProgram(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// GetProgram godoc
// @Summary      Get a loyalty program
// @Tags         loyalty
// @Produce      json
// @Security     BearerAuth
// @Param        id  path     string true "Program UUID"
// @Success      200 {object} model.LoyaltyProgram
// @Router       /v1/loyalty/programs/{id} [get]
func (h *LoyaltyHandler) GetProgram(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	p, err := h.svc.GetProgram(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// ListTiers godoc
// @Summary      List program tiers
// @Tags         loyalty
// @Produce      json
// @Security     BearerAuth
// @Param        id  path     string true "Program UUID"
// @Success      200 {array}  model.LoyaltyTier
// @Router       /v1/loyalty/programs/{id}/tiers [get]
func (h *LoyaltyHandler) ListTiers(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	tiers, err := h.svc.ListTiers(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tiers)
}

// CreateTier godoc
// @Summary      Add a tier
// @Description  Tier ranges may not overlap within a program.
// @Tags         loyalty
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string          true "Program UUID"
// @Param        body body dto.TierRequest true "Tier"
// @Success      201  {object} model.LoyaltyTier
// @Failure      422  {object} apierror.APIError
// @Router       /v1/loyalty/programs/{id}/tiers [post]
func (h *LoyaltyHandler) CreateTier(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.TierRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	t, err := h.svc.CreateTier(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// UpdateTier godoc
// @Summary      Update a tier
// @Tags         loyalty
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path string          true "Program UUID"
// @Param        tier_id path string          true "Tier UUID"
// @Param        body    body dto.TierRequest true "Tier"
// @Success      200  {object} model.LoyaltyTier
// @Router       /v1/loyalty/programs/{id}/tiers/{tier_id} [put]
func (h *LoyaltyHandler) UpdateTier(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	tierID, ok := paramUUID(c, "tier_id")
	if !ok {
		return
	}
	var req dto.TierRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	t, err := h.svc.UpdateTier(c.Request.Context(), actor, id, tierID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// ── Enrollments ───────────────────────────────────────────────────────────────

// Enroll godoc
// @Summary      Enroll a customer
// @Description  Books the welcome bonus, and the referral bonus for an enrolled referrer.
// @Tags         loyalty
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.EnrollRequest true "Enrollment"
// @Success      201  {object} model.CustomerLoyalty
// @Failure      409  {object} apierror.APIError
// @Router       /v1/loyalty/enrollments [post]
func (h *LoyaltyHandler) Enroll(c *gin.Context) {
	var req dto.EnrollRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	e, err := h.svc.Enroll(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

// GetEnrollment godoc
// @Summary      Get an enrollment with balances and tier
// @Tags         loyalty
// @Produce      json
// @Security     BearerAuth
// @Param        id  path     string true "Enrollment UUID"
// @Success      200 {object} model.CustomerLoyalty
// @Router       /v1/loyalty/enrollments/{id} [get]
func (h *LoyaltyHandler) GetEnrollment(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	e, err := h.svc.GetEnrollment(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// ListTransactions godoc
// @Summary      Points ledger, newest first
// @Tags         loyalty
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string true  "Enrollment UUID"
// @Param        limit query int    false "Limit" default(100)
// @Success      200 {array} model.PointsTransaction
// @Router       /v1/loyalty/enrollments/{id}/transactions [get]
func (h *LoyaltyHandler) ListTransactions(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	rows, err := h.svc.ListTransactions(c.Request.Context(), actor, id, queryInt(c, "limit", 100))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// AddPoints godoc
// @Summary      Credit an external purchase
// @Tags         loyalty
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string               true "Enrollment UUID"
// @Param        body body dto.AddPointsRequest true "Purchase"
// @Success      201  {object} model.PointsTransaction
// @Success      204  "purchase earns no points"
// @Router       /v1/loyalty/enrollments/{id}/points [post]
func (h *LoyaltyHandler) AddPoints(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.AddPointsRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	entry, err := h.svc.AddPointsForPurchase(c.Request.Context(), actor, id, req.Amount, req.Reference)
	if err != nil {
		respondError(c, err)
		return
	}
	if entry == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// AdjustPoints godoc
// @Summary      Manual points adjustment
// @Description  Signed adjustment; may not drive the balance below zero.
// @Tags         loyalty
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                  true "Enrollment UUID"
// @Param        body body dto.AdjustPointsRequest true "Adjustment"
// @Success      201  {object} model.PointsTransaction
// @Failure      422  {object} apierror.APIError
// @Router       /v1/loyalty/enrollments/{id}/adjust [post]
func (h *LoyaltyHandler) AdjustPoints(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.AdjustPointsRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	entry, err := h.svc.AdjustPoints(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}
