package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/booking_go_server/internal/pkg/response"
	"github.com/qs3c/booking_go_server/internal/pkg/scheduler"
)

type HealthHandler struct {
	scheduler *scheduler.Service
}

func NewHealthHandler(sched *scheduler.Service) *HealthHandler {
	return &HealthHandler{scheduler: sched}
}

// Check 健康检查
// GET /api/v1/health
func (h *HealthHandler) Check(c *gin.Context) {
	data := gin.H{"status": "ok"}
	if h.scheduler != nil {
		data["scheduler"] = h.scheduler.Status()
	}
	response.Success(c, data)
}
