package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/booking_go_server/config"
	"github.com/qs3c/booking_go_server/internal/model"
	"github.com/qs3c/booking_go_server/internal/model/dto"
	"github.com/qs3c/booking_go_server/internal/pkg/gateway"
	"github.com/qs3c/booking_go_server/internal/repository"
)

var (
	ErrSubscriptionNotFound  = errors.New("订阅不存在")
	ErrNotSubscriptionOwner  = errors.New("无权操作该订阅")
	ErrSubscriptionNotActive = errors.New("订阅当前不可变更")
	ErrNoActiveSubscription  = errors.New("没有可取消的付费订阅")
)

// 并发写冲突时的最大重试次数
const maxMutateRetries = 3

// errNoop 由 mutate 闭包返回，表示重读后条件已不成立、跳过写回
var errNoop = errors.New("noop")

// GatewayClient 支付网关能力，由 gateway.Client 实现
type GatewayClient interface {
	CreatePreference(ctx context.Context, req *gateway.PreferenceRequest) (*gateway.Preference, error)
	GetPayment(ctx context.Context, id string) (*gateway.PaymentDetail, error)
}

// 变更类型
const (
	ChangeTypeNew       = "new"
	ChangeTypeUpgrade   = "upgrade"
	ChangeTypeDowngrade = "downgrade"
	ChangeTypeSame      = "same"
)

// SubscriptionService 套餐变更编排器。订阅状态与待定操作元数据
// 只由这里和调度器写入，网关对账由 PaymentService 负责。
type SubscriptionService struct {
	subRepo     *repository.SubscriptionRepository
	paymentRepo *repository.PaymentRepository
	changeRepo  *repository.PlanChangeRepository
	tenantRepo  *repository.TenantRepository
	planService *PlanService
	gateway     GatewayClient
	cfg         *config.Config
}

func NewSubscriptionService(
	subRepo *repository.SubscriptionRepository,
	paymentRepo *repository.PaymentRepository,
	changeRepo *repository.PlanChangeRepository,
	tenantRepo *repository.TenantRepository,
	planService *PlanService,
	gw GatewayClient,
	cfg *config.Config,
) *SubscriptionService {
	return &SubscriptionService{
		subRepo:     subRepo,
		paymentRepo: paymentRepo,
		changeRepo:  changeRepo,
		tenantRepo:  tenantRepo,
		planService: planService,
		gateway:     gw,
		cfg:         cfg,
	}
}

// ChangePlan 变更套餐入口。升级走「先付款后生效」，降级走
// 「下个计费日生效」，目标套餐等于当前套餐时为 no-op。
func (s *SubscriptionService) ChangePlan(ctx context.Context, tenantID int64, req *dto.ChangePlanRequest) (*dto.ChangePlanResult, error) {
	if !model.IsValidPlan(req.NewPlanType) {
		return nil, ErrUnknownPlan
	}
	cycle := req.BillingCycle
	if cycle == "" {
		cycle = model.CycleMonthly
	}
	if !model.IsValidCycle(cycle) {
		return nil, ErrInvalidCycle
	}

	var sub *model.Subscription
	var err error
	if req.SubscriptionID != nil {
		sub, err = s.subRepo.GetByID(*req.SubscriptionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrSubscriptionNotFound
			}
			return nil, err
		}
		if sub.TenantID != tenantID {
			return nil, ErrNotSubscriptionOwner
		}
	} else {
		// 未指定订阅：free 租户首次购买，或还没有任何订阅记录
		sub, err = s.subRepo.GetCurrentByTenant(tenantID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if sub == nil || errors.Is(err, gorm.ErrRecordNotFound) {
			return s.createInitial(ctx, tenantID, req.NewPlanType, cycle)
		}
	}

	if sub.Status != model.SubStatusActive {
		return nil, ErrSubscriptionNotActive
	}

	direction := model.ComparePlans(sub.PlanType, req.NewPlanType)
	switch {
	case direction == 0:
		return &dto.ChangePlanResult{ChangeType: ChangeTypeSame, RequiresPayment: false}, nil
	case direction > 0:
		return s.upgrade(ctx, sub, req.NewPlanType, cycle)
	default:
		return s.downgrade(sub, req.NewPlanType, cycle)
	}
}

// upgrade 升级：按新套餐全价建支付单（不按剩余周期折算），
// 付款确认前租户保留当前套餐。
func (s *SubscriptionService) upgrade(ctx context.Context, sub *model.Subscription, newPlan, cycle string) (*dto.ChangePlanResult, error) {
	amount, err := s.planService.PriceFor(newPlan, cycle)
	if err != nil {
		return nil, err
	}
	now := time.Now()

	payment := &model.Payment{
		SubscriptionID:    sub.ID,
		TenantID:          sub.TenantID,
		PlanType:          newPlan,
		Amount:            amount,
		Currency:          s.planService.Currency(),
		BillingCycle:      cycle,
		Status:            model.PaymentStatusPending,
		Method:            model.PaymentMethodUpgrade,
		ExternalReference: NewExternalRef(),
	}
	if err := s.paymentRepo.Create(payment); err != nil {
		return nil, err
	}

	pref, err := s.createPreference(ctx, payment, fmt.Sprintf("套餐升级 %s → %s", sub.PlanType, newPlan))
	if err != nil {
		// 网关下单失败：作废本地支付记录，租户保持原套餐
		if cancelErr := s.paymentRepo.MarkCancelled(payment.ID); cancelErr != nil {
			log.Printf("Failed to cancel payment %d after gateway error: %v", payment.ID, cancelErr)
		}
		return nil, err
	}

	fromPlan := sub.PlanType
	_, err = s.mutate(sub.ID, func(fresh *model.Subscription) error {
		meta, err := fresh.Meta()
		if err != nil {
			return err
		}
		meta.SetPendingUpgrade(&model.PendingUpgrade{
			PaymentID:   payment.ID,
			FromPlan:    fresh.PlanType,
			ToPlan:      newPlan,
			Amount:      amount,
			RequestedAt: now,
		})
		return fresh.SetMeta(meta)
	})
	if err != nil {
		return nil, err
	}

	if err := s.changeRepo.Create(&model.PlanChange{
		TenantID:    sub.TenantID,
		FromPlan:    fromPlan,
		ToPlan:      newPlan,
		Reason:      model.PlanChangeReasonUpgrade,
		EffectiveAt: now,
	}); err != nil {
		log.Printf("Failed to log plan change for tenant %d: %v", sub.TenantID, err)
	}

	return &dto.ChangePlanResult{
		ChangeType:      ChangeTypeUpgrade,
		RequiresPayment: true,
		PaymentID:       &payment.ID,
		Amount:          &amount,
		CheckoutURL:     pref.InitPoint,
	}, nil
}

// downgrade 降级：不立即扣费，记录待定降级，到当前计费日由调度器执行。
// 再次降级会覆盖之前的待定降级（同一时刻至多一个待定操作）。
func (s *SubscriptionService) downgrade(sub *model.Subscription, newPlan, cycle string) (*dto.ChangePlanResult, error) {
	newPrice, err := s.planService.PriceFor(newPlan, cycle)
	if err != nil {
		return nil, err
	}

	effectiveAt := time.Now()
	if sub.NextBillingAt != nil {
		effectiveAt = *sub.NextBillingAt
	}

	fromPlan := sub.PlanType
	_, err = s.mutate(sub.ID, func(fresh *model.Subscription) error {
		meta, err := fresh.Meta()
		if err != nil {
			return err
		}
		meta.SetPendingDowngrade(&model.PendingDowngrade{
			FromPlan:     fresh.PlanType,
			ToPlan:       newPlan,
			EffectiveAt:  effectiveAt,
			NewPlanPrice: newPrice,
		})
		return fresh.SetMeta(meta)
	})
	if err != nil {
		return nil, err
	}

	if err := s.changeRepo.Create(&model.PlanChange{
		TenantID:    sub.TenantID,
		FromPlan:    fromPlan,
		ToPlan:      newPlan,
		Reason:      model.PlanChangeReasonDowngrade,
		EffectiveAt: effectiveAt,
	}); err != nil {
		log.Printf("Failed to log plan change for tenant %d: %v", sub.TenantID, err)
	}

	return &dto.ChangePlanResult{
		ChangeType:      ChangeTypeDowngrade,
		RequiresPayment: false,
		EffectiveAt:     &effectiveAt,
	}, nil
}

// createInitial 首次创建订阅（没有任何在途记录的租户）。
// free 目标直接激活；付费目标先建 payment_failed 记录，付款确认后激活。
func (s *SubscriptionService) createInitial(ctx context.Context, tenantID int64, plan, cycle string) (*dto.ChangePlanResult, error) {
	now := time.Now()

	if plan == model.PlanFree {
		sub := &model.Subscription{
			TenantID:     tenantID,
			PlanType:     model.PlanFree,
			Status:       model.SubStatusActive,
			BillingCycle: cycle,
			Price:        0,
			Currency:     s.planService.Currency(),
			StartedAt:    now,
		}
		if err := s.subRepo.Create(sub); err != nil {
			return nil, err
		}
		return &dto.ChangePlanResult{ChangeType: ChangeTypeNew, RequiresPayment: false}, nil
	}

	amount, err := s.planService.PriceFor(plan, cycle)
	if err != nil {
		return nil, err
	}

	sub := &model.Subscription{
		TenantID:     tenantID,
		PlanType:     plan,
		Status:       model.SubStatusPaymentFailed, // 付款确认前无访问权限
		BillingCycle: cycle,
		Price:        amount,
		Currency:     s.planService.Currency(),
		StartedAt:    now,
	}
	if err := s.subRepo.Create(sub); err != nil {
		return nil, err
	}

	payment := &model.Payment{
		SubscriptionID:    sub.ID,
		TenantID:          tenantID,
		PlanType:          plan,
		Amount:            amount,
		Currency:          s.planService.Currency(),
		BillingCycle:      cycle,
		Status:            model.PaymentStatusPending,
		Method:            model.PaymentMethodSubscription,
		ExternalReference: NewExternalRef(),
	}
	if err := s.paymentRepo.Create(payment); err != nil {
		return nil, err
	}

	pref, err := s.createPreference(ctx, payment, fmt.Sprintf("订阅 %s 套餐", plan))
	if err != nil {
		if cancelErr := s.paymentRepo.MarkCancelled(payment.ID); cancelErr != nil {
			log.Printf("Failed to cancel payment %d after gateway error: %v", payment.ID, cancelErr)
		}
		return nil, err
	}

	return &dto.ChangePlanResult{
		ChangeType:      ChangeTypeNew,
		RequiresPayment: true,
		PaymentID:       &payment.ID,
		Amount:          &amount,
		CheckoutURL:     pref.InitPoint,
	}, nil
}

// Cancel 取消付费订阅，立即回退到 free。原记录保留为 cancelled，
// 新建一条 free/active 记录保证「每租户至多一条在途订阅」。
func (s *SubscriptionService) Cancel(tenantID int64, reason string) (*dto.SubscriptionInfo, error) {
	sub, err := s.subRepo.GetCurrentByTenant(tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveSubscription
		}
		return nil, err
	}
	if sub.PlanType == model.PlanFree {
		return nil, ErrNoActiveSubscription
	}

	now := time.Now()
	fromPlan := sub.PlanType
	_, err = s.mutate(sub.ID, func(fresh *model.Subscription) error {
		meta, err := fresh.Meta()
		if err != nil {
			return err
		}
		// 在途升级/降级随取消一并作废，迟到的网关回调不得复活该记录
		meta.ClearPending()
		if err := fresh.SetMeta(meta); err != nil {
			return err
		}
		fresh.Status = model.SubStatusCancelled
		fresh.CancelledAt = &now
		fresh.CancelReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.paymentRepo.CancelPendingBySubscription(sub.ID); err != nil {
		log.Printf("Failed to void pending payments for subscription %d: %v", sub.ID, err)
	}

	freeSub := &model.Subscription{
		TenantID:     tenantID,
		PlanType:     model.PlanFree,
		Status:       model.SubStatusActive,
		BillingCycle: model.CycleMonthly,
		Price:        0,
		Currency:     s.planService.Currency(),
		StartedAt:    now,
	}
	if err := s.subRepo.Create(freeSub); err != nil {
		return nil, err
	}

	if err := s.tenantRepo.UpdatePlan(tenantID, model.PlanFree); err != nil {
		log.Printf("Failed to update tenant %d plan cache: %v", tenantID, err)
	}

	if err := s.changeRepo.Create(&model.PlanChange{
		TenantID:    tenantID,
		FromPlan:    fromPlan,
		ToPlan:      model.PlanFree,
		Reason:      model.PlanChangeReasonCancelled,
		EffectiveAt: now,
	}); err != nil {
		log.Printf("Failed to log plan change for tenant %d: %v", tenantID, err)
	}

	return s.toInfo(freeSub)
}

// Current 当前订阅的只读投影
func (s *SubscriptionService) Current(tenantID int64) (*dto.SubscriptionInfo, error) {
	sub, err := s.subRepo.GetCurrentByTenant(tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return s.toInfo(sub)
}

// ExecutePendingDowngrade 执行到期的待定降级（调度器调用）。
// 立即切换到目标套餐并生成新套餐价格的支付单；目标为 free 时
// 无需付款，直接切换并清空计费日。对未到期或已不存在的待定降级是 no-op。
func (s *SubscriptionService) ExecutePendingDowngrade(ctx context.Context, subscriptionID int64) error {
	sub, err := s.subRepo.GetByID(subscriptionID)
	if err != nil {
		return err
	}
	meta, err := sub.Meta()
	if err != nil {
		return err
	}
	pd := meta.PendingDowngrade
	now := time.Now()
	if pd == nil || pd.EffectiveAt.After(now) {
		return nil
	}

	if pd.ToPlan == model.PlanFree {
		applied := false
		_, err = s.mutate(sub.ID, func(fresh *model.Subscription) error {
			applied = false
			freshMeta, err := fresh.Meta()
			if err != nil {
				return err
			}
			// 重读后必须还是同一个待定降级，已被覆盖或清除的不执行
			if !pendingDowngradeMatches(freshMeta.PendingDowngrade, pd) {
				return errNoop
			}
			fresh.PlanType = model.PlanFree
			fresh.Price = 0
			fresh.NextBillingAt = nil
			fresh.Status = model.SubStatusActive
			freshMeta.ClearPending()
			freshMeta.AppendDowngradeAudit(pd.FromPlan, pd.ToPlan, now)
			applied = true
			return fresh.SetMeta(freshMeta)
		})
		if err != nil {
			return err
		}
		if !applied {
			return nil
		}
		if err := s.tenantRepo.UpdatePlan(sub.TenantID, model.PlanFree); err != nil {
			log.Printf("Failed to update tenant %d plan cache: %v", sub.TenantID, err)
		}
		return nil
	}

	payment := &model.Payment{
		SubscriptionID:    sub.ID,
		TenantID:          sub.TenantID,
		PlanType:          pd.ToPlan,
		Amount:            pd.NewPlanPrice,
		Currency:          s.planService.Currency(),
		BillingCycle:      sub.BillingCycle,
		Status:            model.PaymentStatusPending,
		Method:            model.PaymentMethodDowngrade,
		ExternalReference: NewExternalRef(),
	}
	if err := s.paymentRepo.Create(payment); err != nil {
		return err
	}
	if _, err := s.createPreference(ctx, payment, fmt.Sprintf("套餐降级 %s → %s", pd.FromPlan, pd.ToPlan)); err != nil {
		if cancelErr := s.paymentRepo.MarkCancelled(payment.ID); cancelErr != nil {
			log.Printf("Failed to cancel payment %d after gateway error: %v", payment.ID, cancelErr)
		}
		return err
	}

	nextBilling := model.NextBillingFrom(now, sub.BillingCycle)
	applied := false
	_, err = s.mutate(sub.ID, func(fresh *model.Subscription) error {
		applied = false
		freshMeta, err := fresh.Meta()
		if err != nil {
			return err
		}
		if !pendingDowngradeMatches(freshMeta.PendingDowngrade, pd) {
			return errNoop
		}
		fresh.PlanType = pd.ToPlan
		fresh.Price = pd.NewPlanPrice
		fresh.Status = model.SubStatusPendingDowngradePayment
		fresh.NextBillingAt = &nextBilling
		freshMeta.SetPendingDowngradePayment(&model.PendingDowngradePayment{
			PaymentID:   payment.ID,
			FromPlan:    pd.FromPlan,
			ToPlan:      pd.ToPlan,
			Amount:      pd.NewPlanPrice,
			EffectiveAt: pd.EffectiveAt,
		})
		applied = true
		return fresh.SetMeta(freshMeta)
	})
	if err != nil {
		return err
	}
	if !applied {
		// 下单后待定降级被并发覆盖或清除，作废刚创建的支付单
		log.Printf("Pending downgrade on subscription %d superseded, voiding payment %d", sub.ID, payment.ID)
		if cancelErr := s.paymentRepo.MarkCancelled(payment.ID); cancelErr != nil {
			log.Printf("Failed to cancel payment %d after superseded downgrade: %v", payment.ID, cancelErr)
		}
		return nil
	}

	if err := s.tenantRepo.UpdatePlan(sub.TenantID, pd.ToPlan); err != nil {
		log.Printf("Failed to update tenant %d plan cache: %v", sub.TenantID, err)
	}
	return nil
}

// pendingDowngradeMatches 重读后的待定降级是否仍是最初读到的那一个。
// 目标套餐或生效时间不同说明其间被重新提交过，不能按旧参数执行。
func pendingDowngradeMatches(fresh, want *model.PendingDowngrade) bool {
	return fresh != nil &&
		fresh.ToPlan == want.ToPlan &&
		fresh.EffectiveAt.Equal(want.EffectiveAt)
}

// mutate 乐观锁重试：读最新行、应用变更、带版本写回，冲突最多重试三次
func (s *SubscriptionService) mutate(subscriptionID int64, fn func(*model.Subscription) error) (*model.Subscription, error) {
	var lastErr error
	for attempt := 0; attempt < maxMutateRetries; attempt++ {
		sub, err := s.subRepo.GetByID(subscriptionID)
		if err != nil {
			return nil, err
		}
		if err := fn(sub); err != nil {
			if errors.Is(err, errNoop) {
				return sub, nil
			}
			return nil, err
		}
		err = s.subRepo.SaveVersioned(sub)
		if err == nil {
			return sub, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *SubscriptionService) createPreference(ctx context.Context, payment *model.Payment, title string) (*gateway.Preference, error) {
	pref, err := s.gateway.CreatePreference(ctx, &gateway.PreferenceRequest{
		Title:             title,
		Amount:            payment.Amount,
		Currency:          payment.Currency,
		ExternalReference: payment.ExternalReference,
		NotificationURL:   s.cfg.Gateway.WebhookURL,
	})
	if err != nil {
		return nil, err
	}
	if err := s.paymentRepo.UpdateFields(payment.ID, map[string]interface{}{
		"gateway_preference_id": pref.ID,
	}); err != nil {
		return nil, err
	}
	payment.GatewayPreferenceID = pref.ID
	return pref, nil
}

func (s *SubscriptionService) toInfo(sub *model.Subscription) (*dto.SubscriptionInfo, error) {
	meta, err := sub.Meta()
	if err != nil {
		return nil, err
	}

	info := &dto.SubscriptionInfo{
		ID:            sub.ID,
		PlanType:      sub.PlanType,
		Status:        sub.Status,
		BillingCycle:  sub.BillingCycle,
		Price:         sub.Price,
		Currency:      sub.Currency,
		StartedAt:     sub.StartedAt,
		NextBillingAt: sub.NextBillingAt,
	}

	switch {
	case meta.PendingUpgrade != nil:
		p := meta.PendingUpgrade
		info.Pending = &dto.PendingOperation{
			Kind:     "pending_upgrade",
			FromPlan: p.FromPlan,
			ToPlan:   p.ToPlan,
			Amount:   &p.Amount,
		}
	case meta.PendingDowngrade != nil:
		p := meta.PendingDowngrade
		info.Pending = &dto.PendingOperation{
			Kind:        "pending_downgrade",
			FromPlan:    p.FromPlan,
			ToPlan:      p.ToPlan,
			EffectiveAt: &p.EffectiveAt,
		}
	case meta.PendingDowngradePayment != nil:
		p := meta.PendingDowngradePayment
		info.Pending = &dto.PendingOperation{
			Kind:        "pending_downgrade_payment",
			FromPlan:    p.FromPlan,
			ToPlan:      p.ToPlan,
			Amount:      &p.Amount,
			EffectiveAt: &p.EffectiveAt,
		}
	}
	return info, nil
}

// NewExternalRef 生成网关关联 ID（支付创建时写入，回调靠它定位本地记录）
func NewExternalRef() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// crypto/rand 不可用时退化到时间戳，仍保证可用性
		return fmt.Sprintf("sub_%d", time.Now().UnixNano())
	}
	return "sub_" + hex.EncodeToString(bytes)
}
