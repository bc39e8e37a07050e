package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/booking_go_server/config"
	"github.com/qs3c/booking_go_server/internal/model/dto"
	"github.com/qs3c/booking_go_server/internal/pkg/response"
	"github.com/qs3c/booking_go_server/internal/service"
)

func TestPlanHandler_List(t *testing.T) {
	handler := NewPlanHandler(service.NewPlanService(&config.Config{}))

	router := gin.New()
	router.GET("/plans", handler.List)

	w := performRequest(router, "GET", "/plans", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	resp := parseResponse(t, w)
	assert.Equal(t, response.CodeSuccess, resp.Code)

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var plans []dto.PlanInfo
	require.NoError(t, json.Unmarshal(raw, &plans))
	require.Len(t, plans, 4)
	assert.Equal(t, "free", plans[0].Type)
	assert.Equal(t, int64(204120), plans[1].YearlyPrice)
}
