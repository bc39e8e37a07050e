package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// 订阅状态
const (
	SubStatusActive                  = "active"
	SubStatusPaymentFailed           = "payment_failed"
	SubStatusPendingDowngradePayment = "pending_downgrade_payment"
	SubStatusSuspended               = "suspended"
	SubStatusCancelled               = "cancelled"
)

// Subscription 每个租户至多一条非 cancelled 记录；记录只做状态流转，从不物理删除
type Subscription struct {
	ID            int64          `gorm:"primaryKey" json:"id"`
	TenantID      int64          `gorm:"not null;index" json:"tenant_id"`
	PlanType      string         `gorm:"size:20;not null" json:"plan_type"`
	Status        string         `gorm:"size:30;not null;default:active;index" json:"status"`
	BillingCycle  string         `gorm:"size:10;not null;default:monthly" json:"billing_cycle"`
	Price         int64          `json:"price"`
	Currency      string         `gorm:"size:3;default:ARS" json:"currency"`
	StartedAt     time.Time      `gorm:"not null" json:"started_at"`
	NextBillingAt *time.Time     `gorm:"index" json:"next_billing_at,omitempty"` // free 套餐为空
	CancelledAt   *time.Time     `json:"cancelled_at,omitempty"`
	CancelReason  string         `gorm:"size:200" json:"-"`
	Metadata      datatypes.JSON `json:"-"` // 待定操作文档，见 SubscriptionMeta
	Version       int            `gorm:"not null;default:1" json:"-"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// Meta 解码待定操作文档；空 Metadata 返回零值文档
func (s *Subscription) Meta() (*SubscriptionMeta, error) {
	meta := &SubscriptionMeta{}
	if len(s.Metadata) == 0 {
		return meta, nil
	}
	if err := json.Unmarshal(s.Metadata, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// SetMeta 编码待定操作文档
func (s *Subscription) SetMeta(meta *SubscriptionMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	s.Metadata = datatypes.JSON(data)
	return nil
}
