package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/booking_go_server/internal/api/middleware"
	"github.com/qs3c/booking_go_server/internal/model/dto"
	"github.com/qs3c/booking_go_server/internal/pkg/response"
	"github.com/qs3c/booking_go_server/internal/service"
)

type SubscriptionHandler struct {
	subscriptionService *service.SubscriptionService
}

func NewSubscriptionHandler(subscriptionService *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
	}
}

// ChangePlan 变更套餐（新购、升级、降级）
// POST /api/v1/subscription/change-plan
func (h *SubscriptionHandler) ChangePlan(c *gin.Context) {
	tenantID, ok := middleware.GetTenantID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "")
		return
	}

	result, err := h.subscriptionService.ChangePlan(c.Request.Context(), tenantID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownPlan), errors.Is(err, service.ErrInvalidCycle):
			response.ParamError(c, err.Error())
		case errors.Is(err, service.ErrNotSubscriptionOwner):
			response.PermissionError(c, err.Error())
		case errors.Is(err, service.ErrSubscriptionNotFound):
			response.NotFoundError(c, err.Error())
		case errors.Is(err, service.ErrSubscriptionNotActive):
			response.DuplicateError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, result)
}

// Cancel 取消付费订阅，立即回退到免费套餐
// POST /api/v1/subscription/cancel
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	tenantID, ok := middleware.GetTenantID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.ParamError(c, "")
		return
	}

	info, err := h.subscriptionService.Cancel(tenantID, req.Reason)
	if err != nil {
		if errors.Is(err, service.ErrNoActiveSubscription) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.SuccessWithMessage(c, "订阅已取消", info)
}

// GetCurrent 当前订阅详情
// GET /api/v1/subscription/current
func (h *SubscriptionHandler) GetCurrent(c *gin.Context) {
	tenantID, ok := middleware.GetTenantID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	info, err := h.subscriptionService.Current(tenantID)
	if err != nil {
		if errors.Is(err, service.ErrSubscriptionNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, info)
}
