package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/booking_go_server/internal/model"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// WithTx 返回绑定到事务的仓库副本
func (r *PaymentRepository) WithTx(tx *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: tx}
}

func (r *PaymentRepository) Create(payment *model.Payment) error {
	return r.db.Create(payment).Error
}

func (r *PaymentRepository) GetByID(id int64) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.Where("id = ?", id).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepository) GetByExternalReference(ref string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.Where("external_reference = ?", ref).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepository) UpdateFields(id int64, fields map[string]interface{}) error {
	return r.db.Model(&model.Payment{}).Where("id = ?", id).Updates(fields).Error
}

// MarkApproved 仅当仍处于 pending 时置为 approved，返回是否实际生效。
// 状态单调：已到终态的支付不会被改写。
func (r *PaymentRepository) MarkApproved(id int64, gatewayPaymentID string, paidAt time.Time) (bool, error) {
	result := r.db.Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, model.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":             model.PaymentStatusApproved,
			"gateway_payment_id": gatewayPaymentID,
			"paid_at":            paidAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkRejected 仅当仍处于 pending 时置为 rejected，返回是否实际生效
func (r *PaymentRepository) MarkRejected(id int64, gatewayPaymentID string) (bool, error) {
	result := r.db.Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, model.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":             model.PaymentStatusRejected,
			"gateway_payment_id": gatewayPaymentID,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkCancelled 网关下单失败时作废本地支付记录
func (r *PaymentRepository) MarkCancelled(id int64) error {
	return r.db.Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, model.PaymentStatusPending).
		Update("status", model.PaymentStatusCancelled).Error
}

// CancelPendingBySubscription 作废某订阅下全部在途支付（订阅取消时调用）
func (r *PaymentRepository) CancelPendingBySubscription(subscriptionID int64) error {
	return r.db.Model(&model.Payment{}).
		Where("subscription_id = ? AND status = ?", subscriptionID, model.PaymentStatusPending).
		Update("status", model.PaymentStatusCancelled).Error
}

// HasApprovedSince 订阅在指定时间之后是否存在 approved 支付（续费判定）
func (r *PaymentRepository) HasApprovedSince(subscriptionID int64, since time.Time) (bool, error) {
	var count int64
	err := r.db.Model(&model.Payment{}).
		Where("subscription_id = ? AND status = ? AND created_at > ?",
			subscriptionID, model.PaymentStatusApproved, since).
		Count(&count).Error
	return count > 0, err
}

// ListRejectedSince 指定时间之后被拒绝的支付
func (r *PaymentRepository) ListRejectedSince(since time.Time) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.db.Where("status = ? AND updated_at > ?", model.PaymentStatusRejected, since).
		Find(&payments).Error
	return payments, err
}
