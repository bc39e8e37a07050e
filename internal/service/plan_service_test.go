package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/booking_go_server/config"
	"github.com/qs3c/booking_go_server/internal/model"
)

func TestPlanService_YearlyPricing(t *testing.T) {
	service := NewPlanService(&config.Config{})

	// basic 月付 18900 → 年付 18900×12×0.9 = 204120，折算每月 17010
	yearly, err := service.PriceFor(model.PlanBasic, model.CycleYearly)
	require.NoError(t, err)
	assert.Equal(t, int64(204120), yearly)
	assert.Equal(t, int64(17010), MonthlyEquivalent(yearly))

	monthly, err := service.PriceFor(model.PlanBasic, model.CycleMonthly)
	require.NoError(t, err)
	assert.Equal(t, int64(18900), monthly)
}

func TestPlanService_PriceFor_Free(t *testing.T) {
	service := NewPlanService(&config.Config{})

	price, err := service.PriceFor(model.PlanFree, model.CycleMonthly)
	require.NoError(t, err)
	assert.Equal(t, int64(0), price)

	price, err = service.PriceFor(model.PlanFree, model.CycleYearly)
	require.NoError(t, err)
	assert.Equal(t, int64(0), price)
}

func TestPlanService_PriceFor_Invalid(t *testing.T) {
	service := NewPlanService(&config.Config{})

	_, err := service.PriceFor("gold", model.CycleMonthly)
	assert.ErrorIs(t, err, ErrUnknownPlan)

	_, err = service.PriceFor(model.PlanBasic, "weekly")
	assert.ErrorIs(t, err, ErrInvalidCycle)
}

func TestPlanService_ConfigOverridesDefaults(t *testing.T) {
	cfg := &config.Config{
		Plans: config.PlansConfig{
			Currency: "USD",
			Tiers: map[string]config.PlanTier{
				model.PlanBasic: {Price: 999, MaxAppointments: 50},
			},
		},
	}
	service := NewPlanService(cfg)

	assert.Equal(t, "USD", service.Currency())

	info, err := service.Get(model.PlanBasic)
	require.NoError(t, err)
	assert.Equal(t, int64(999), info.MonthlyPrice)
	assert.Equal(t, 50, info.MaxAppointments)

	// 未覆盖的套餐仍用内置目录
	info, err = service.Get(model.PlanPremium)
	require.NoError(t, err)
	assert.Equal(t, int64(34900), info.MonthlyPrice)
}

func TestPlanService_List_OrderedByRank(t *testing.T) {
	service := NewPlanService(&config.Config{})

	plans := service.List()
	require.Len(t, plans, 4)
	assert.Equal(t, model.PlanFree, plans[0].Type)
	assert.Equal(t, model.PlanBasic, plans[1].Type)
	assert.Equal(t, model.PlanPremium, plans[2].Type)
	assert.Equal(t, model.PlanEnterprise, plans[3].Type)
}
