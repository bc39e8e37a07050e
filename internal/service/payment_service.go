package service

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/booking_go_server/internal/model"
	"github.com/qs3c/booking_go_server/internal/pkg/eventledger"
	"github.com/qs3c/booking_go_server/internal/pkg/gateway"
	"github.com/qs3c/booking_go_server/internal/repository"
)

var ErrPaymentNotFound = errors.New("支付记录不存在")

// PaymentService 网关对账器。接收异步回调、回查网关详情、
// 把外部支付状态落到内部 Payment/Subscription 上。
// 必须幂等：同一事件重复投递不产生重复副作用。
type PaymentService struct {
	db          *gorm.DB
	subRepo     *repository.SubscriptionRepository
	paymentRepo *repository.PaymentRepository
	tenantRepo  *repository.TenantRepository
	ledger      *eventledger.Ledger
	gateway     GatewayClient
}

func NewPaymentService(
	db *gorm.DB,
	subRepo *repository.SubscriptionRepository,
	paymentRepo *repository.PaymentRepository,
	tenantRepo *repository.TenantRepository,
	ledger *eventledger.Ledger,
	gw GatewayClient,
) *PaymentService {
	return &PaymentService{
		db:          db,
		subRepo:     subRepo,
		paymentRepo: paymentRepo,
		tenantRepo:  tenantRepo,
		ledger:      ledger,
		gateway:     gw,
	}
}

// mapGatewayStatus 网关状态词汇映射到内部支付状态
func mapGatewayStatus(status string) string {
	switch status {
	case gateway.StatusApproved:
		return model.PaymentStatusApproved
	case gateway.StatusRejected, gateway.StatusCancelled:
		return model.PaymentStatusRejected
	}
	return model.PaymentStatusPending
}

// HandleGatewayEvent 处理一次网关回调。
// 返回 error 表示瞬时故障（网关回查失败、数据库故障），调用方应让
// 网关重投；网关侧数据不一致（本地找不到支付记录等）只记日志并吞掉，
// 避免重投风暴。
func (s *PaymentService) HandleGatewayEvent(ctx context.Context, eventType, gatewayPaymentID string) error {
	if eventType != "payment" {
		log.Printf("Webhook: ignoring event type %q (id=%s)", eventType, gatewayPaymentID)
		return nil
	}

	detail, err := s.gateway.GetPayment(ctx, gatewayPaymentID)
	if err != nil {
		return err
	}

	status := mapGatewayStatus(detail.Status)
	if status == model.PaymentStatusPending {
		// 中间态不落库，等终态回调
		return nil
	}

	payment, err := s.paymentRepo.GetByExternalReference(detail.ExternalReference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Webhook: gateway payment %s references unknown external_reference %q, ignoring",
				gatewayPaymentID, detail.ExternalReference)
			return nil
		}
		return err
	}

	if payment.IsFinal() {
		// 终态单调：重复投递直接 no-op
		return nil
	}

	// 快路径去重。redis 故障只记日志不阻断，幂等性由下面的
	// pending 字段校验兜底。
	marked := false
	if s.ledger != nil {
		first, err := s.ledger.MarkProcessed(ctx, gatewayPaymentID, status)
		if err != nil {
			log.Printf("Webhook: event ledger unavailable: %v", err)
		} else if !first {
			return nil
		} else {
			marked = true
		}
	}

	if err := s.applyWithRetry(payment, status, gatewayPaymentID, detail); err != nil {
		if marked {
			if relErr := s.ledger.Release(ctx, gatewayPaymentID, status); relErr != nil {
				log.Printf("Webhook: failed to release ledger entry for %s: %v", gatewayPaymentID, relErr)
			}
		}
		return err
	}
	return nil
}

// applyWithRetry 与调度器/编排器的并发写冲突在这里内部消化，
// 不上抛给网关
func (s *PaymentService) applyWithRetry(payment *model.Payment, status, gatewayPaymentID string, detail *gateway.PaymentDetail) error {
	var err error
	for attempt := 0; attempt < maxMutateRetries; attempt++ {
		err = s.apply(payment, status, gatewayPaymentID, detail)
		if !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}
	}
	return err
}

func (s *PaymentService) apply(payment *model.Payment, status, gatewayPaymentID string, detail *gateway.PaymentDetail) error {
	if status == model.PaymentStatusRejected {
		// 单笔失败不动订阅：持续欠费由调度器处理
		applied, err := s.paymentRepo.MarkRejected(payment.ID, gatewayPaymentID)
		if err != nil {
			return err
		}
		if !applied {
			log.Printf("Webhook: payment %d already final, skip reject", payment.ID)
		}
		return nil
	}

	paidAt := time.Now()
	if detail.DateApproved != nil {
		paidAt = *detail.DateApproved
	}

	// 支付状态与订阅状态必须一起落库
	return s.db.Transaction(func(tx *gorm.DB) error {
		paymentRepo := s.paymentRepo.WithTx(tx)
		subRepo := s.subRepo.WithTx(tx)
		tenantRepo := s.tenantRepo.WithTx(tx)

		applied, err := paymentRepo.MarkApproved(payment.ID, gatewayPaymentID, paidAt)
		if err != nil {
			return err
		}
		if !applied {
			// 另一次投递已经处理过
			return nil
		}

		sub, err := subRepo.GetByID(payment.SubscriptionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("Webhook: payment %d references missing subscription %d",
					payment.ID, payment.SubscriptionID)
				return nil
			}
			return err
		}
		meta, err := sub.Meta()
		if err != nil {
			return err
		}

		if sub.Status == model.SubStatusCancelled {
			// 取消后到达的迟到回调：支付照常终态化，订阅不复活
			log.Printf("Webhook: payment %d belongs to cancelled subscription %d, skip apply",
				payment.ID, sub.ID)
			return nil
		}

		now := time.Now()
		switch {
		case meta.PendingUpgrade != nil && meta.PendingUpgrade.PaymentID == payment.ID:
			// 升级生效：计费周期从付款时刻重新起算，旧周期剩余时间不折算
			up := meta.PendingUpgrade
			sub.PlanType = up.ToPlan
			sub.Status = model.SubStatusActive
			sub.Price = payment.Amount
			sub.BillingCycle = payment.BillingCycle
			nextBilling := model.NextBillingFrom(now, payment.BillingCycle)
			sub.NextBillingAt = &nextBilling
			meta.ClearPending()
			meta.AppendUpgradeAudit(up.FromPlan, up.ToPlan, now)

		case meta.PendingDowngradePayment != nil && meta.PendingDowngradePayment.PaymentID == payment.ID:
			// 降级付款确认：套餐已在生效日由调度器切换，这里只恢复 active
			down := meta.PendingDowngradePayment
			sub.Status = model.SubStatusActive
			meta.ClearPending()
			meta.AppendDowngradeAudit(down.FromPlan, down.ToPlan, now)

		case payment.Method == model.PaymentMethodSubscription:
			// 常规新订阅/续费付款
			sub.PlanType = payment.PlanType
			sub.Status = model.SubStatusActive
			sub.Price = payment.Amount
			sub.BillingCycle = payment.BillingCycle
			nextBilling := model.NextBillingFrom(now, payment.BillingCycle)
			sub.NextBillingAt = &nextBilling

		default:
			// 升级/降级付款但待定字段已不匹配（被覆盖或清除）：
			// 支付终态化，订阅不动
			log.Printf("Webhook: payment %d (%s) has no matching pending operation on subscription %d, skip apply",
				payment.ID, payment.Method, sub.ID)
			return nil
		}

		if err := sub.SetMeta(meta); err != nil {
			return err
		}
		if err := subRepo.SaveVersioned(sub); err != nil {
			return err
		}
		if err := tenantRepo.UpdatePlan(sub.TenantID, sub.PlanType); err != nil {
			return err
		}
		return nil
	})
}
