package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComparePlans(t *testing.T) {
	assert.Greater(t, ComparePlans(PlanFree, PlanBasic), 0)
	assert.Greater(t, ComparePlans(PlanBasic, PlanEnterprise), 0)
	assert.Less(t, ComparePlans(PlanPremium, PlanBasic), 0)
	assert.Equal(t, 0, ComparePlans(PlanPremium, PlanPremium))
}

func TestPlanRank_Unknown(t *testing.T) {
	assert.Equal(t, -1, PlanRank("gold"))
	assert.False(t, IsValidPlan("gold"))
	assert.True(t, IsValidPlan(PlanEnterprise))
}

func TestIsValidCycle(t *testing.T) {
	assert.True(t, IsValidCycle(CycleMonthly))
	assert.True(t, IsValidCycle(CycleYearly))
	assert.False(t, IsValidCycle("weekly"))
	assert.False(t, IsValidCycle(""))
}

func TestNextBillingFrom(t *testing.T) {
	base := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	monthly := NextBillingFrom(base, CycleMonthly)
	assert.Equal(t, time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC), monthly)

	yearly := NextBillingFrom(base, CycleYearly)
	assert.Equal(t, time.Date(2027, 1, 15, 10, 0, 0, 0, time.UTC), yearly)
}
