package handler

import (
	"net/http"

	"github.com/eduardojeem/Mipos-sub008/internal/dto"
	"github.com/eduardojeem/Mipos-sub008/internal/service"

	"github.com/gin-gonic/gin"
)

type CashHandler struct{ svc service.CashService }

func NewCashHandler(svc service.CashService) *CashHandler { return &CashHandler{svc: svc} }

// OpenSession godoc
// @Summary      Open the cash drawer
// @Tags         cash
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.OpenCashSessionRequest true "Opening amount"
// @Success      201  {object} dto.CashSessionReport
// @Failure      400  {object} apierror.APIError
// @Router       /v1/cash/sessions [post]
func (h *CashHandler) OpenSession(c *gin.Context) {
	var req dto.OpenCashSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	resp, err := h.svc.OpenSession(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// RegisterMovement godoc
// @Summary      Manual deposit or withdrawal
// @Tags         cash
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.CashMovementRequest true "Movement"
// @Success      201  {object} dto.CashMovementResponse
// @Router       /v1/cash/movements [post]
func (h *CashHandler) RegisterMovement(c *gin.Context) {
	var req dto.CashMovementRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	resp, err := h.svc.RegisterMovement(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// CloseSession godoc
// @Summary      Close the cash drawer
// @Description  Computes expected vs declared amount and classifies the deviation. Critical deviations need notes.
// @Tags         cash
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.CloseCashSessionRequest true "Declared amount"
// @Success      200  {object} dto.CashSessionReport
// @Router       /v1/cash/sessions/close [post]
func (h *CashHandler) CloseSession(c *gin.Context) {
	var req dto.CloseCashSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	resp, err := h.svc.CloseSession(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CurrentSession godoc
// @Summary      Current open cash session
// @Tags         cash
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object} dto.CashSessionReport
// @Failure      400  {object} apierror.APIError
// @Router       /v1/cash/sessions/current [get]
func (h *CashHandler) CurrentSession(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	resp, err := h.svc.CurrentSession(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetSession godoc
// @Summary      Cash session report
// @Tags         cash
// @Produce      json
// @Security     BearerAuth
// @Param        id  path     string true "Session UUID"
// @Success      200 {object} dto.CashSessionReport
// @Router       /v1/cash/sessions/{id} [get]
func (h *CashHandler) GetSession(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	resp, err := h.svc.GetSession(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
