package dto

import "time"

// ChangePlanRequest 变更套餐请求；SubscriptionID 为空表示 free 租户首次购买
type ChangePlanRequest struct {
	SubscriptionID *int64 `json:"subscription_id"`
	NewPlanType    string `json:"new_plan_type" binding:"required"`
	BillingCycle   string `json:"billing_cycle"`
}

// ChangePlanResult 变更套餐结果
type ChangePlanResult struct {
	ChangeType      string     `json:"change_type"` // new, upgrade, downgrade, same
	RequiresPayment bool       `json:"requires_payment"`
	PaymentID       *int64     `json:"payment_id,omitempty"`
	Amount          *int64     `json:"amount,omitempty"`
	CheckoutURL     string     `json:"checkout_url,omitempty"`
	EffectiveAt     *time.Time `json:"effective_at,omitempty"`
}

// CancelRequest 取消订阅请求
type CancelRequest struct {
	Reason string `json:"reason"`
}

// PendingOperation 当前待定操作的只读投影
type PendingOperation struct {
	Kind        string     `json:"kind"` // pending_upgrade, pending_downgrade, pending_downgrade_payment
	FromPlan    string     `json:"from_plan"`
	ToPlan      string     `json:"to_plan"`
	Amount      *int64     `json:"amount,omitempty"`
	EffectiveAt *time.Time `json:"effective_at,omitempty"`
}

// SubscriptionInfo 当前订阅的只读投影
type SubscriptionInfo struct {
	ID            int64             `json:"id"`
	PlanType      string            `json:"plan_type"`
	Status        string            `json:"status"`
	BillingCycle  string            `json:"billing_cycle"`
	Price         int64             `json:"price"`
	Currency      string            `json:"currency"`
	StartedAt     time.Time         `json:"started_at"`
	NextBillingAt *time.Time        `json:"next_billing_at,omitempty"`
	Pending       *PendingOperation `json:"pending,omitempty"`
}

// PlanInfo 套餐目录条目
type PlanInfo struct {
	Type              string `json:"type"`
	Currency          string `json:"currency"`
	MonthlyPrice      int64  `json:"monthly_price"`
	YearlyPrice       int64  `json:"yearly_price"`        // 年付九折
	YearlyPerMonth    int64  `json:"yearly_per_month"`    // 年付折算到每月的展示价
	MaxAppointments   int    `json:"max_appointments"`    // 0 = 不限
	MaxServices       int    `json:"max_services"`
	MaxUsers          int    `json:"max_users"`
}
