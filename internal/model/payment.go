package model

import (
	"time"
)

// 支付状态，单调流转：pending → approved/rejected，终态后不再改写
const (
	PaymentStatusPending   = "pending"
	PaymentStatusApproved  = "approved"
	PaymentStatusRejected  = "rejected"
	PaymentStatusCancelled = "cancelled"
	PaymentStatusRefunded  = "refunded"
)

// 支付用途标记，用于区分升级/降级付款与常规订阅付款
const (
	PaymentMethodSubscription = "subscription"
	PaymentMethodUpgrade      = "plan_upgrade"
	PaymentMethodDowngrade    = "plan_downgrade"
)

// Payment 每次计费尝试一条记录（新订阅、续费、升级、降级）
type Payment struct {
	ID                  int64      `gorm:"primaryKey" json:"id"`
	SubscriptionID      int64      `gorm:"not null;index" json:"subscription_id"`
	TenantID            int64      `gorm:"not null;index" json:"tenant_id"`
	PlanType            string     `gorm:"size:20;not null" json:"plan_type"`
	Amount              int64      `gorm:"not null" json:"amount"`
	Currency            string     `gorm:"size:3;default:ARS" json:"currency"`
	BillingCycle        string     `gorm:"size:10;not null" json:"billing_cycle"`
	Status              string     `gorm:"size:20;not null;default:pending;index" json:"status"`
	Method              string     `gorm:"size:20;not null" json:"method"`
	GatewayPreferenceID string     `gorm:"size:100" json:"-"`
	GatewayPaymentID    string     `gorm:"size:100;index" json:"-"`
	ExternalReference   string     `gorm:"size:100;uniqueIndex" json:"-"` // 创建时生成的关联 ID，网关回调靠它定位
	PaidAt              *time.Time `json:"paid_at,omitempty"`
	CreatedAt           time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

// IsFinal 支付是否已到终态
func (p *Payment) IsFinal() bool {
	return p.Status != PaymentStatusPending
}
