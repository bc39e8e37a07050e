package service

import (
	"fmt"

	"github.com/qs3c/booking_go_server/internal/model"
	"github.com/qs3c/booking_go_server/internal/pkg/email"
	"github.com/qs3c/booking_go_server/internal/repository"
)

// NotificationService 计费相关通知出口（续费提醒、暂停、支付失败）。
// 通知是终端副作用，发送失败只影响本条，不影响调用方的状态流转。
type NotificationService struct {
	emailService *email.Service
	tenantRepo   *repository.TenantRepository
}

func NewNotificationService(emailService *email.Service, tenantRepo *repository.TenantRepository) *NotificationService {
	return &NotificationService{
		emailService: emailService,
		tenantRepo:   tenantRepo,
	}
}

// SendRenewalReminder 续费提醒；urgent 为 3 天内的紧急口径
func (s *NotificationService) SendRenewalReminder(sub *model.Subscription, daysLeft int, urgent bool) error {
	tenant, err := s.tenantRepo.GetByID(sub.TenantID)
	if err != nil {
		return fmt.Errorf("failed to load tenant %d: %w", sub.TenantID, err)
	}
	return s.emailService.SendRenewalReminder(tenant.Email, tenant.Name, sub.PlanType, daysLeft, urgent)
}

// SendSuspensionNotice 订阅被暂停的通知
func (s *NotificationService) SendSuspensionNotice(sub *model.Subscription) error {
	tenant, err := s.tenantRepo.GetByID(sub.TenantID)
	if err != nil {
		return fmt.Errorf("failed to load tenant %d: %w", sub.TenantID, err)
	}
	return s.emailService.SendSuspensionNotice(tenant.Email, tenant.Name, sub.PlanType)
}

// SendPaymentFailedNotice 支付被拒的通知
func (s *NotificationService) SendPaymentFailedNotice(payment *model.Payment) error {
	tenant, err := s.tenantRepo.GetByID(payment.TenantID)
	if err != nil {
		return fmt.Errorf("failed to load tenant %d: %w", payment.TenantID, err)
	}
	return s.emailService.SendPaymentFailedNotice(tenant.Email, tenant.Name, payment.Amount, payment.Currency)
}
