package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/booking_go_server/internal/model"
)

// TestTenant 创建测试租户
func TestTenant(t *testing.T, db *gorm.DB, opts ...func(*model.Tenant)) *model.Tenant {
	t.Helper()

	tenant := &model.Tenant{
		Name:     fmt.Sprintf("Test Tenant %d", time.Now().UnixNano()%10000),
		Email:    fmt.Sprintf("tenant_%d@example.com", time.Now().UnixNano()),
		PlanType: model.PlanFree,
		Status:   "active",
	}

	for _, opt := range opts {
		opt(tenant)
	}

	if err := db.Create(tenant).Error; err != nil {
		t.Fatalf("Failed to create test tenant: %v", err)
	}

	return tenant
}

// WithTenantPlan 设置租户套餐缓存
func WithTenantPlan(plan string) func(*model.Tenant) {
	return func(tn *model.Tenant) {
		tn.PlanType = plan
	}
}

// TestSubscription 创建测试订阅，默认 basic/monthly/active、30 天后到期
func TestSubscription(t *testing.T, db *gorm.DB, tenantID int64, opts ...func(*model.Subscription)) *model.Subscription {
	t.Helper()

	now := time.Now()
	nextBilling := now.AddDate(0, 1, 0)
	sub := &model.Subscription{
		TenantID:      tenantID,
		PlanType:      model.PlanBasic,
		Status:        model.SubStatusActive,
		BillingCycle:  model.CycleMonthly,
		Price:         18900,
		Currency:      "ARS",
		StartedAt:     now,
		NextBillingAt: &nextBilling,
		Version:       1,
	}

	for _, opt := range opts {
		opt(sub)
	}

	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("Failed to create test subscription: %v", err)
	}

	return sub
}

// WithPlan 设置套餐与价格
func WithPlan(plan string, price int64) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.PlanType = plan
		s.Price = price
	}
}

// WithStatus 设置订阅状态
func WithStatus(status string) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.Status = status
	}
}

// WithCycle 设置计费周期
func WithCycle(cycle string) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.BillingCycle = cycle
	}
}

// WithNextBilling 设置计费日；nil 表示 free 无计费日
func WithNextBilling(at *time.Time) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.NextBillingAt = at
	}
}

// WithMeta 设置待定操作文档
func WithMeta(t *testing.T, meta *model.SubscriptionMeta) func(*model.Subscription) {
	return func(s *model.Subscription) {
		if err := s.SetMeta(meta); err != nil {
			t.Fatalf("Failed to set subscription meta: %v", err)
		}
	}
}

// TestPayment 创建测试支付记录，默认 pending
func TestPayment(t *testing.T, db *gorm.DB, subscriptionID, tenantID int64, opts ...func(*model.Payment)) *model.Payment {
	t.Helper()

	payment := &model.Payment{
		SubscriptionID:    subscriptionID,
		TenantID:          tenantID,
		PlanType:          model.PlanBasic,
		Amount:            18900,
		Currency:          "ARS",
		BillingCycle:      model.CycleMonthly,
		Status:            model.PaymentStatusPending,
		Method:            model.PaymentMethodSubscription,
		ExternalReference: fmt.Sprintf("sub_test_%d", time.Now().UnixNano()),
	}

	for _, opt := range opts {
		opt(payment)
	}

	if err := db.Create(payment).Error; err != nil {
		t.Fatalf("Failed to create test payment: %v", err)
	}

	return payment
}

// WithPaymentPlan 设置支付对应的套餐与金额
func WithPaymentPlan(plan string, amount int64) func(*model.Payment) {
	return func(p *model.Payment) {
		p.PlanType = plan
		p.Amount = amount
	}
}

// WithPaymentStatus 设置支付状态
func WithPaymentStatus(status string) func(*model.Payment) {
	return func(p *model.Payment) {
		p.Status = status
	}
}

// WithPaymentMethod 设置支付用途
func WithPaymentMethod(method string) func(*model.Payment) {
	return func(p *model.Payment) {
		p.Method = method
	}
}

// WithPaymentCycle 设置支付的计费周期
func WithPaymentCycle(cycle string) func(*model.Payment) {
	return func(p *model.Payment) {
		p.BillingCycle = cycle
	}
}

// WithExternalReference 设置网关关联 ID
func WithExternalReference(ref string) func(*model.Payment) {
	return func(p *model.Payment) {
		p.ExternalReference = ref
	}
}
