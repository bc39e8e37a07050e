package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/booking_go_server/internal/model/dto"
	"github.com/qs3c/booking_go_server/internal/service"
)

type WebhookHandler struct {
	paymentService *service.PaymentService
}

func NewWebhookHandler(paymentService *service.PaymentService) *WebhookHandler {
	return &WebhookHandler{
		paymentService: paymentService,
	}
}

// HandleGateway 支付网关回调
// POST /api/v1/payments/webhook
//
// 这是唯一不走统一响应封装的接口：网关只看 HTTP 状态码，
// 瞬时故障返回 500 让网关重投，其余一律 200 确认收货。
func (h *WebhookHandler) HandleGateway(c *gin.Context) {
	var req dto.WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// 格式错误的回调重投也不会变好，直接确认
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if err := h.paymentService.HandleGatewayEvent(c.Request.Context(), req.Type, req.Data.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

