package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/booking_go_server/internal/model"
)

// ErrVersionConflict 乐观锁版本冲突，调用方应重读后重试
var ErrVersionConflict = errors.New("订阅已被并发修改")

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// WithTx 返回绑定到事务的仓库副本
func (r *SubscriptionRepository) WithTx(tx *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: tx}
}

func (r *SubscriptionRepository) Create(sub *model.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *SubscriptionRepository) GetByID(id int64) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.Where("id = ?", id).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetCurrentByTenant 获取租户当前（非 cancelled）订阅
func (r *SubscriptionRepository) GetCurrentByTenant(tenantID int64) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.Where("tenant_id = ? AND status <> ?", tenantID, model.SubStatusCancelled).
		Order("id DESC").First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// SaveVersioned 带版本号的整行更新。三个并发写入方（编排器、对账器、
// 调度器）都必须走这里，版本不匹配返回 ErrVersionConflict。
func (r *SubscriptionRepository) SaveVersioned(sub *model.Subscription) error {
	result := r.db.Model(&model.Subscription{}).
		Where("id = ? AND version = ?", sub.ID, sub.Version).
		Updates(map[string]interface{}{
			"plan_type":       sub.PlanType,
			"status":          sub.Status,
			"billing_cycle":   sub.BillingCycle,
			"price":           sub.Price,
			"next_billing_at": sub.NextBillingAt,
			"cancelled_at":    sub.CancelledAt,
			"cancel_reason":   sub.CancelReason,
			"metadata":        sub.Metadata,
			"version":         sub.Version + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	sub.Version++
	return nil
}

// ListActivePaid 所有 active 且非 free 的订阅
func (r *SubscriptionRepository) ListActivePaid() ([]model.Subscription, error) {
	var subs []model.Subscription
	err := r.db.Where("status = ? AND plan_type <> ?", model.SubStatusActive, model.PlanFree).
		Find(&subs).Error
	return subs, err
}

// ListExpired active 非 free 且计费日已过的订阅
func (r *SubscriptionRepository) ListExpired(now time.Time) ([]model.Subscription, error) {
	var subs []model.Subscription
	err := r.db.Where("status = ? AND plan_type <> ? AND next_billing_at IS NOT NULL AND next_billing_at < ?",
		model.SubStatusActive, model.PlanFree, now).
		Find(&subs).Error
	return subs, err
}

// ListExpiringBetween active 非 free 且计费日落在 [from, to) 区间的订阅
func (r *SubscriptionRepository) ListExpiringBetween(from, to time.Time) ([]model.Subscription, error) {
	var subs []model.Subscription
	err := r.db.Where("status = ? AND plan_type <> ? AND next_billing_at >= ? AND next_billing_at < ?",
		model.SubStatusActive, model.PlanFree, from, to).
		Find(&subs).Error
	return subs, err
}
