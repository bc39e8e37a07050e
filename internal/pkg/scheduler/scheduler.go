package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/qs3c/booking_go_server/config"
	"github.com/qs3c/booking_go_server/internal/model"
	"github.com/qs3c/booking_go_server/internal/repository"
	"github.com/qs3c/booking_go_server/internal/service"
)

// Notifier 调度器需要的通知能力，由 service.NotificationService 实现
type Notifier interface {
	SendRenewalReminder(sub *model.Subscription, daysLeft int, urgent bool) error
	SendSuspensionNotice(sub *model.Subscription) error
	SendPaymentFailedNotice(payment *model.Payment) error
}

// Status 调度器运行状态快照
type Status struct {
	Running   bool          `json:"running"`
	LastRunAt time.Time     `json:"last_run_at"`
	Interval  time.Duration `json:"interval"`
}

// Service 订阅校验调度器：固定周期对全量订阅做四类独立巡检
// （过期、临期提醒、失败支付、待定降级执行）。单条失败只记日志，
// 不中断本轮剩余条目；每轮对未变化的订阅重复执行不产生额外变更。
type Service struct {
	subRepo     *repository.SubscriptionRepository
	paymentRepo *repository.PaymentRepository
	subService  *service.SubscriptionService
	notifier    Notifier

	interval       time.Duration
	initialDelay   time.Duration
	reminderWindow time.Duration
	urgentWindow   time.Duration
	failedLookback time.Duration

	stopChan chan struct{}
	stopOnce sync.Once

	mu        sync.Mutex
	running   bool
	lastRunAt time.Time
}

func NewService(
	subRepo *repository.SubscriptionRepository,
	paymentRepo *repository.PaymentRepository,
	subService *service.SubscriptionService,
	notifier Notifier,
	cfg *config.SchedulerConfig,
) *Service {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	initialDelay := time.Duration(cfg.InitialDelaySecs) * time.Second
	if initialDelay <= 0 {
		initialDelay = time.Minute
	}
	reminderDays := cfg.ReminderDays
	if reminderDays <= 0 {
		reminderDays = 7
	}
	urgentDays := cfg.UrgentDays
	if urgentDays <= 0 {
		urgentDays = 3
	}
	lookbackHours := cfg.FailedLookbackHours
	if lookbackHours <= 0 {
		lookbackHours = 24
	}

	return &Service{
		subRepo:        subRepo,
		paymentRepo:    paymentRepo,
		subService:     subService,
		notifier:       notifier,
		interval:       interval,
		initialDelay:   initialDelay,
		reminderWindow: time.Duration(reminderDays) * 24 * time.Hour,
		urgentWindow:   time.Duration(urgentDays) * 24 * time.Hour,
		failedLookback: time.Duration(lookbackHours) * time.Hour,
		stopChan:       make(chan struct{}),
	}
}

// Start 启动后台巡检循环：启动后先延迟执行一次，之后按固定周期执行
func (s *Service) Start() {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	go s.run()
	log.Printf("Validation scheduler started (interval=%s)", s.interval)
}

// Stop 停止调度器；进行中的一轮巡检会执行完
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	log.Println("Validation scheduler stopped")
}

// Status 当前运行状态
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Running:   s.running,
		LastRunAt: s.lastRunAt,
		Interval:  s.interval,
	}
}

func (s *Service) run() {
	timer := time.NewTimer(s.initialDelay)
	defer timer.Stop()

	select {
	case <-s.stopChan:
		return
	case <-timer.C:
		s.RunOnce()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunOnce()
		}
	}
}

// RunOnce 立即执行一轮全部巡检（启动巡检、手动触发、运维工具共用）
func (s *Service) RunOnce() {
	now := time.Now()

	// 待定降级先执行：降级生效日等于计费日，必须在过期巡检
	// 把这类订阅误判为欠费之前完成切换
	s.sweepPendingDowngrades(now)
	s.sweepExpired(now)
	s.sweepUpcoming(now)
	s.sweepFailedPayments(now)

	s.mu.Lock()
	s.lastRunAt = now
	s.mu.Unlock()
}

// sweepExpired 过期巡检：计费日已过的订阅，有新 approved 付款则顺延
// 一个周期，没有则暂停。暂停是本引擎唯一的自动停服路径。
func (s *Service) sweepExpired(now time.Time) {
	subs, err := s.subRepo.ListExpired(now)
	if err != nil {
		log.Printf("Sweep expired: failed to list subscriptions: %v", err)
		return
	}

	for i := range subs {
		sub := &subs[i]
		if sub.NextBillingAt == nil {
			continue
		}

		meta, err := sub.Meta()
		if err != nil {
			log.Printf("Sweep expired: subscription %d: bad metadata: %v", sub.ID, err)
			continue
		}
		if meta.PendingDowngrade != nil {
			// 计费日切换归降级路径管，这里不做欠费判定
			continue
		}

		renewed, err := s.paymentRepo.HasApprovedSince(sub.ID, *sub.NextBillingAt)
		if err != nil {
			log.Printf("Sweep expired: subscription %d: %v", sub.ID, err)
			continue
		}

		if renewed {
			// 已续费：从原计费日顺延，保持账期不漂移
			nextBilling := model.NextBillingFrom(*sub.NextBillingAt, sub.BillingCycle)
			sub.NextBillingAt = &nextBilling
		} else {
			sub.Status = model.SubStatusSuspended
		}

		if err := s.subRepo.SaveVersioned(sub); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				// 并发写入方已处理过这条，下一轮再看
				continue
			}
			log.Printf("Sweep expired: subscription %d: %v", sub.ID, err)
			continue
		}

		if !renewed {
			if err := s.notifier.SendSuspensionNotice(sub); err != nil {
				log.Printf("Sweep expired: notify subscription %d: %v", sub.ID, err)
			}
		}
	}
}

// sweepUpcoming 临期提醒巡检：7 天内到期的订阅发提醒，3 天内用紧急口径
func (s *Service) sweepUpcoming(now time.Time) {
	subs, err := s.subRepo.ListExpiringBetween(now, now.Add(s.reminderWindow))
	if err != nil {
		log.Printf("Sweep upcoming: failed to list subscriptions: %v", err)
		return
	}

	for i := range subs {
		sub := &subs[i]
		if sub.NextBillingAt == nil {
			continue
		}
		left := sub.NextBillingAt.Sub(now)
		daysLeft := int(left.Hours() / 24)
		urgent := left <= s.urgentWindow

		if err := s.notifier.SendRenewalReminder(sub, daysLeft, urgent); err != nil {
			log.Printf("Sweep upcoming: notify subscription %d: %v", sub.ID, err)
		}
	}
}

// sweepFailedPayments 失败支付巡检：最近被拒的付款逐条通知，不自动重试
func (s *Service) sweepFailedPayments(now time.Time) {
	payments, err := s.paymentRepo.ListRejectedSince(now.Add(-s.failedLookback))
	if err != nil {
		log.Printf("Sweep failed payments: failed to list payments: %v", err)
		return
	}

	for i := range payments {
		payment := &payments[i]
		if err := s.notifier.SendPaymentFailedNotice(payment); err != nil {
			log.Printf("Sweep failed payments: notify payment %d: %v", payment.ID, err)
		}
	}
}

// sweepPendingDowngrades 待定降级巡检：生效日已到的降级交给编排器执行
func (s *Service) sweepPendingDowngrades(now time.Time) {
	subs, err := s.subRepo.ListActivePaid()
	if err != nil {
		log.Printf("Sweep downgrades: failed to list subscriptions: %v", err)
		return
	}

	for i := range subs {
		sub := &subs[i]
		meta, err := sub.Meta()
		if err != nil {
			log.Printf("Sweep downgrades: subscription %d: bad metadata: %v", sub.ID, err)
			continue
		}
		pd := meta.PendingDowngrade
		if pd == nil || pd.EffectiveAt.After(now) {
			continue
		}

		if err := s.subService.ExecutePendingDowngrade(context.Background(), sub.ID); err != nil {
			log.Printf("Sweep downgrades: subscription %d: %v", sub.ID, err)
		}
	}
}
