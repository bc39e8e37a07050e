package model

import "time"

// 套餐等级
const (
	PlanFree       = "free"
	PlanBasic      = "basic"
	PlanPremium    = "premium"
	PlanEnterprise = "enterprise"
)

// 计费周期
const (
	CycleMonthly = "monthly"
	CycleYearly  = "yearly"
)

// planRank 套餐等级排序，用于判断升级/降级方向
var planRank = map[string]int{
	PlanFree:       0,
	PlanBasic:      1,
	PlanPremium:    2,
	PlanEnterprise: 3,
}

// PlanOrder 按等级从低到高排列的所有套餐
var PlanOrder = []string{PlanFree, PlanBasic, PlanPremium, PlanEnterprise}

// IsValidPlan 判断套餐类型是否合法
func IsValidPlan(plan string) bool {
	_, ok := planRank[plan]
	return ok
}

// IsValidCycle 判断计费周期是否合法
func IsValidCycle(cycle string) bool {
	return cycle == CycleMonthly || cycle == CycleYearly
}

// PlanRank 获取套餐等级，未知套餐返回 -1
func PlanRank(plan string) int {
	rank, ok := planRank[plan]
	if !ok {
		return -1
	}
	return rank
}

// ComparePlans 比较两个套餐等级：>0 升级，<0 降级，=0 相同
func ComparePlans(from, to string) int {
	return PlanRank(to) - PlanRank(from)
}

// NextBillingFrom 从指定时间起算的下一个计费日
func NextBillingFrom(t time.Time, cycle string) time.Time {
	if cycle == CycleYearly {
		return t.AddDate(1, 0, 0)
	}
	return t.AddDate(0, 1, 0)
}
