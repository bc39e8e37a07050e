package model

import (
	"time"
)

// 套餐变更原因
const (
	PlanChangeReasonUpgrade   = "upgrade"
	PlanChangeReasonDowngrade = "downgrade"
	PlanChangeReasonCancelled = "subscription_cancelled"
)

// PlanChange 套餐变更审计日志，只写入不修改
type PlanChange struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	TenantID    int64     `gorm:"not null;index" json:"tenant_id"`
	FromPlan    string    `gorm:"size:20;not null" json:"from_plan"`
	ToPlan      string    `gorm:"size:20;not null" json:"to_plan"`
	Reason      string    `gorm:"size:30;not null" json:"reason"`
	EffectiveAt time.Time `gorm:"not null" json:"effective_at"`
	CreatedAt   time.Time `json:"created_at"`
}

func (PlanChange) TableName() string {
	return "plan_changes"
}
