package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/booking_go_server/internal/model"
	"github.com/qs3c/booking_go_server/internal/pkg/eventledger"
	"github.com/qs3c/booking_go_server/internal/pkg/gateway"
	"github.com/qs3c/booking_go_server/internal/repository"
	"github.com/qs3c/booking_go_server/internal/testutil"
)

func setupPaymentService(t *testing.T) (*PaymentService, *gorm.DB, *testutil.FakeGateway, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	subRepo := repository.NewSubscriptionRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	tenantRepo := repository.NewTenantRepository(db)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ledger := eventledger.NewLedger(rdb)

	gw := testutil.NewFakeGateway()
	service := NewPaymentService(db, subRepo, paymentRepo, tenantRepo, ledger, gw)

	cleanup := func() {
		rdb.Close()
		testutil.CleanupTestDB(t, db)
	}
	return service, db, gw, cleanup
}

func TestPaymentService_ApprovedActivatesNewSubscription(t *testing.T) {
	service, db, gw, cleanup := setupPaymentService(t)
	defer cleanup()

	tenant := testutil.TestTenant(t, db)
	sub := testutil.TestSubscription(t, db, tenant.ID,
		testutil.WithStatus(model.SubStatusPaymentFailed),
		testutil.WithNextBilling(nil),
	)
	payment := testutil.TestPayment(t, db, sub.ID, tenant.ID)

	gw.SetPayment("gw-100", &gateway.PaymentDetail{
		Status:            gateway.StatusApproved,
		ExternalReference: payment.ExternalReference,
		TransactionAmount: payment.Amount,
	})

	require.NoError(t, service.HandleGatewayEvent(context.Background(), "payment", "gw-100"))

	reloadedSub, err := repository.NewSubscriptionRepository(db).GetByID(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubStatusActive, reloadedSub.Status)
	assert.Equal(t, model.PlanBasic, reloadedSub.PlanType)
	require.NotNil(t, reloadedSub.NextBillingAt)

	reloadedPayment, err := repository.NewPaymentRepository(db).GetByID(payment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusApproved, reloadedPayment.Status)
	assert.Equal(t, "gw-100", reloadedPayment.GatewayPaymentID)
	assert.NotNil(t, reloadedPayment.PaidAt)

	var tenantRow model.Tenant
	require.NoError(t, db.First(&tenantRow, tenant.ID).Error)
	assert.Equal(t, model.PlanBasic, tenantRow.PlanType)
}

func TestPaymentService_ApprovedUpgradeSwitchesPlan(t *testing.T) {
	service, db, gw, cleanup := setupPaymentService(t)
	defer cleanup()

	tenant := testutil.TestTenant(t, db, testutil.WithTenantPlan(model.PlanBasic))
	oldBilling := time.Now().AddDate(0, 0, 20)
	sub := testutil.TestSubscription(t, db, tenant.ID,
		testutil.WithNextBilling(&oldBilling),
	)
	payment := testutil.TestPayment(t, db, sub.ID, tenant.ID,
		testutil.WithPaymentPlan(model.PlanPremium, 34900),
		testutil.WithPaymentMethod(model.PaymentMethodUpgrade),
	)

	meta := &model.SubscriptionMeta{}
	meta.SetPendingUpgrade(&model.PendingUpgrade{
		PaymentID: payment.ID,
		FromPlan:  model.PlanBasic,
		ToPlan:    model.PlanPremium,
		Amount:    34900,
	})
	require.NoError(t, sub.SetMeta(meta))
	require.NoError(t, repository.NewSubscriptionRepository(db).SaveVersioned(sub))

	gw.SetPayment("gw-200", &gateway.PaymentDetail{
		Status:            gateway.StatusApproved,
		ExternalReference: payment.ExternalReference,
	})

	before := time.Now()
	require.NoError(t, service.HandleGatewayEvent(context.Background(), "payment", "gw-200"))

	reloaded, err := repository.NewSubscriptionRepository(db).GetByID(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanPremium, reloaded.PlanType)
	assert.Equal(t, int64(34900), reloaded.Price)
	assert.Equal(t, model.SubStatusActive, reloaded.Status)

	// 计费周期从付款时刻重新起算，不是旧计费日顺延
	require.NotNil(t, reloaded.NextBillingAt)
	assert.True(t, reloaded.NextBillingAt.After(before.AddDate(0, 0, 27)))

	reloadedMeta, err := reloaded.Meta()
	require.NoError(t, err)
	assert.Equal(t, "", reloadedMeta.PendingKind())
	require.Len(t, reloadedMeta.LastUpgrade, 1)
	assert.Equal(t, model.PlanPremium, reloadedMeta.LastUpgrade[0].ToPlan)
}

func TestPaymentService_DoubleDeliveryMutatesOnce(t *testing.T) {
	service, db, gw, cleanup := setupPaymentService(t)
	defer cleanup()

	tenant := testutil.TestTenant(t, db)
	sub := testutil.TestSubscription(t, db, tenant.ID,
		testutil.WithStatus(model.SubStatusPaymentFailed),
	)
	payment := testutil.TestPayment(t, db, sub.ID, tenant.ID)

	gw.SetPayment("gw-300", &gateway.PaymentDetail{
		Status:            gateway.StatusApproved,
		ExternalReference: payment.ExternalReference,
	})

	require.NoError(t, service.HandleGatewayEvent(context.Background(), "payment", "gw-300"))

	first, err := repository.NewSubscriptionRepository(db).GetByID(sub.ID)
	require.NoError(t, err)

	// 重复投递：状态与版本都不再变化
	require.NoError(t, service.HandleGatewayEvent(context.Background(), "payment", "gw-300"))

	second, err := repository.NewSubscriptionRepository(db).GetByID(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Version, second.Version)
	assert.Equal(t, first.NextBillingAt.Unix(), second.NextBillingAt.Unix())
}

func TestPaymentService_RejectedLeavesSubscriptionAlone(t *testing.T) {
	service, db, gw, cleanup := setupPaymentService(t)
	defer cleanup()

	tenant := testutil.TestTenant(t, db)
	sub := testutil.TestSubscription(t, db, tenant.ID)
	payment := testutil.TestPayment(t, db, sub.ID, tenant.ID,
		testutil.WithPaymentMethod(model.PaymentMethodUpgrade),
	)

	gw.SetPayment("gw-400", &gateway.PaymentDetail{
		Status:            gateway.StatusRejected,
		ExternalReference: payment.ExternalReference,
	})

	require.NoError(t, service.HandleGatewayEvent(context.Background(), "payment", "gw-400"))

	reloadedPayment, err := repository.NewPaymentRepository(db).GetByID(payment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusRejected, reloadedPayment.Status)

	reloaded, err := repository.NewSubscriptionRepository(db).GetByID(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanBasic, reloaded.PlanType)
	assert.Equal(t, model.SubStatusActive, reloaded.Status)
	assert.Equal(t, sub.Version, reloaded.Version)
}

func TestPaymentService_DowngradePaymentConfirm(t *testing.T) {
	service, db, gw, cleanup := setupPaymentService(t)
	defer cleanup()

	tenant := testutil.TestTenant(t, db, testutil.WithTenantPlan(model.PlanBasic))
	sub := testutil.TestSubscription(t, db, tenant.ID,
		testutil.WithStatus(model.SubStatusPendingDowngradePayment),
	)
	payment := testutil.TestPayment(t, db, sub.ID, tenant.ID,
		testutil.WithPaymentMethod(model.PaymentMethodDowngrade),
	)

	meta := &model.SubscriptionMeta{}
	meta.SetPendingDowngradePayment(&model.PendingDowngradePayment{
		PaymentID: payment.ID,
		FromPlan:  model.PlanPremium,
		ToPlan:    model.PlanBasic,
		Amount:    18900,
	})
	require.NoError(t, sub.SetMeta(meta))
	require.NoError(t, repository.NewSubscriptionRepository(db).SaveVersioned(sub))

	gw.SetPayment("gw-500", &gateway.PaymentDetail{
		Status:            gateway.StatusApproved,
		ExternalReference: payment.ExternalReference,
	})

	require.NoError(t, service.HandleGatewayEvent(context.Background(), "payment", "gw-500"))

	reloaded, err := repository.NewSubscriptionRepository(db).GetByID(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubStatusActive, reloaded.Status)
	assert.Equal(t, model.PlanBasic, reloaded.PlanType)

	reloadedMeta, err := reloaded.Meta()
	require.NoError(t, err)
	assert.Equal(t, "", reloadedMeta.PendingKind())
	require.Len(t, reloadedMeta.LastDowngrade, 1)
}

func TestPaymentService_LateApprovalAfterCancelDoesNotResurrect(t *testing.T) {
	service, db, gw, cleanup := setupPaymentService(t)
	defer cleanup()

	// 取消时回退到 free 后，在途升级的付款确认才姗姗来迟
	tenant := testutil.TestTenant(t, db, testutil.WithTenantPlan(model.PlanFree))
	now := time.Now()
	sub := testutil.TestSubscription(t, db, tenant.ID,
		testutil.WithStatus(model.SubStatusCancelled),
	)
	testutil.TestSubscription(t, db, tenant.ID,
		testutil.WithPlan(model.PlanFree, 0),
		testutil.WithNextBilling(nil),
	)
	payment := testutil.TestPayment(t, db, sub.ID, tenant.ID,
		testutil.WithPaymentPlan(model.PlanPremium, 34900),
		testutil.WithPaymentMethod(model.PaymentMethodUpgrade),
	)

	meta := &model.SubscriptionMeta{}
	meta.SetPendingUpgrade(&model.PendingUpgrade{
		PaymentID:   payment.ID,
		FromPlan:    model.PlanBasic,
		ToPlan:      model.PlanPremium,
		Amount:      34900,
		RequestedAt: now,
	})
	require.NoError(t, sub.SetMeta(meta))
	require.NoError(t, repository.NewSubscriptionRepository(db).SaveVersioned(sub))

	cancelledVersion, err := repository.NewSubscriptionRepository(db).GetByID(sub.ID)
	require.NoError(t, err)

	gw.SetPayment("gw-900", &gateway.PaymentDetail{
		Status:            gateway.StatusApproved,
		ExternalReference: payment.ExternalReference,
	})

	require.NoError(t, service.HandleGatewayEvent(context.Background(), "payment", "gw-900"))

	// 已取消的记录不复活，也不改套餐
	reloaded, err := repository.NewSubscriptionRepository(db).GetByID(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubStatusCancelled, reloaded.Status)
	assert.Equal(t, model.PlanBasic, reloaded.PlanType)
	assert.Equal(t, cancelledVersion.Version, reloaded.Version)

	// 每租户仍然只有一条在途订阅
	var nonCancelled int64
	require.NoError(t, db.Model(&model.Subscription{}).
		Where("tenant_id = ? AND status <> ?", tenant.ID, model.SubStatusCancelled).
		Count(&nonCancelled).Error)
	assert.Equal(t, int64(1), nonCancelled)

	var tenantRow model.Tenant
	require.NoError(t, db.First(&tenantRow, tenant.ID).Error)
	assert.Equal(t, model.PlanFree, tenantRow.PlanType)

	// 支付侧照常终态化，网关不再重投
	reloadedPayment, err := repository.NewPaymentRepository(db).GetByID(payment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusApproved, reloadedPayment.Status)
}

func TestPaymentService_SupersededUpgradePaymentLeavesPlanAlone(t *testing.T) {
	service, db, gw, cleanup := setupPaymentService(t)
	defer cleanup()

	tenant := testutil.TestTenant(t, db, testutil.WithTenantPlan(model.PlanBasic))
	sub := testutil.TestSubscription(t, db, tenant.ID)

	// 第一次升级的支付单已被第二次升级覆盖，待定字段指向新单
	stale := testutil.TestPayment(t, db, sub.ID, tenant.ID,
		testutil.WithPaymentPlan(model.PlanPremium, 34900),
		testutil.WithPaymentMethod(model.PaymentMethodUpgrade),
	)
	current := testutil.TestPayment(t, db, sub.ID, tenant.ID,
		testutil.WithPaymentPlan(model.PlanEnterprise, 59900),
		testutil.WithPaymentMethod(model.PaymentMethodUpgrade),
		testutil.WithExternalReference("sub_current_upgrade"),
	)

	meta := &model.SubscriptionMeta{}
	meta.SetPendingUpgrade(&model.PendingUpgrade{
		PaymentID: current.ID,
		FromPlan:  model.PlanBasic,
		ToPlan:    model.PlanEnterprise,
		Amount:    59900,
	})
	require.NoError(t, sub.SetMeta(meta))
	require.NoError(t, repository.NewSubscriptionRepository(db).SaveVersioned(sub))

	before, err := repository.NewSubscriptionRepository(db).GetByID(sub.ID)
	require.NoError(t, err)

	gw.SetPayment("gw-901", &gateway.PaymentDetail{
		Status:            gateway.StatusApproved,
		ExternalReference: stale.ExternalReference,
	})

	require.NoError(t, service.HandleGatewayEvent(context.Background(), "payment", "gw-901"))

	// 旧单确认只终态化支付，不把订阅切到过时的目标套餐
	reloaded, err := repository.NewSubscriptionRepository(db).GetByID(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanBasic, reloaded.PlanType)
	assert.Equal(t, before.Version, reloaded.Version)

	reloadedMeta, err := reloaded.Meta()
	require.NoError(t, err)
	require.NotNil(t, reloadedMeta.PendingUpgrade)
	assert.Equal(t, current.ID, reloadedMeta.PendingUpgrade.PaymentID)

	reloadedStale, err := repository.NewPaymentRepository(db).GetByID(stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusApproved, reloadedStale.Status)

	var tenantRow model.Tenant
	require.NoError(t, db.First(&tenantRow, tenant.ID).Error)
	assert.Equal(t, model.PlanBasic, tenantRow.PlanType)
}

func TestPaymentService_IgnoresNonPaymentEvents(t *testing.T) {
	service, _, gw, cleanup := setupPaymentService(t)
	defer cleanup()

	// 非 payment 事件不应触发网关回查
	gw.GetErr = errors.New("should not be called")
	require.NoError(t, service.HandleGatewayEvent(context.Background(), "merchant_order", "order-1"))
}

func TestPaymentService_UnknownReferenceAcked(t *testing.T) {
	service, _, gw, cleanup := setupPaymentService(t)
	defer cleanup()

	gw.SetPayment("gw-600", &gateway.PaymentDetail{
		Status:            gateway.StatusApproved,
		ExternalReference: "sub_nobody_knows",
	})

	// 本地无对应记录：确认收货，不让网关重投
	require.NoError(t, service.HandleGatewayEvent(context.Background(), "payment", "gw-600"))
}

func TestPaymentService_PendingStatusIsNoop(t *testing.T) {
	service, db, gw, cleanup := setupPaymentService(t)
	defer cleanup()

	tenant := testutil.TestTenant(t, db)
	sub := testutil.TestSubscription(t, db, tenant.ID)
	payment := testutil.TestPayment(t, db, sub.ID, tenant.ID)

	gw.SetPayment("gw-700", &gateway.PaymentDetail{
		Status:            gateway.StatusPending,
		ExternalReference: payment.ExternalReference,
	})

	require.NoError(t, service.HandleGatewayEvent(context.Background(), "payment", "gw-700"))

	reloaded, err := repository.NewPaymentRepository(db).GetByID(payment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPending, reloaded.Status)
}

func TestPaymentService_GatewayLookupFailurePropagates(t *testing.T) {
	service, _, gw, cleanup := setupPaymentService(t)
	defer cleanup()

	gw.GetErr = errors.New("gateway timeout")

	// 瞬时故障上抛，让网关重投
	err := service.HandleGatewayEvent(context.Background(), "payment", "gw-800")
	assert.Error(t, err)
}
