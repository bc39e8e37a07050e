package model

import (
	"time"
)

// Tenant 租户商家。租户的注册/资料管理由外部系统负责，
// 这里只保留计费引擎需要的字段（通知地址 + 当前套餐缓存）。
type Tenant struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:100;uniqueIndex;not null" json:"email"`
	PlanType  string    `gorm:"size:20;default:free" json:"plan_type"`
	Status    string    `gorm:"size:20;default:active" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Tenant) TableName() string {
	return "tenants"
}
