package email

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/qs3c/booking_go_server/config"
)

type Service struct {
	cfg *config.EmailConfig
}

func NewService(cfg *config.EmailConfig) *Service {
	return &Service{cfg: cfg}
}

// SendRenewalReminder 发送续费提醒邮件
func (s *Service) SendRenewalReminder(to, tenantName, planType string, daysLeft int, urgent bool) error {
	subject := "订阅续费提醒 - 门店预约管理平台"
	tone := "请在到期前完成续费，避免服务中断。"
	if urgent {
		subject = "【紧急】订阅即将到期 - 门店预约管理平台"
		tone = "您的订阅即将到期，逾期未续费将被暂停服务，请尽快处理。"
	}
	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #2563eb;">续费提醒</h2>
        <p>%s，您好，</p>
        <p>您的 <strong>%s</strong> 套餐订阅将在 <strong>%d 天</strong>后到期。</p>
        <p>%s</p>
        <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 20px 0;">
        <p style="color: #6b7280; font-size: 12px;">此邮件由系统自动发送，请勿回复。</p>
    </div>
</body>
</html>
`, tenantName, planType, daysLeft, tone)

	return s.sendHTML(to, subject, body)
}

// SendSuspensionNotice 发送订阅暂停通知
func (s *Service) SendSuspensionNotice(to, tenantName, planType string) error {
	subject := "订阅已暂停 - 门店预约管理平台"
	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #dc2626;">订阅已暂停</h2>
        <p>%s，您好，</p>
        <p>由于未在计费日前完成续费，您的 <strong>%s</strong> 套餐已被暂停。</p>
        <p>完成补缴后服务将自动恢复，期间门店预约功能不可用。</p>
        <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 20px 0;">
        <p style="color: #6b7280; font-size: 12px;">此邮件由系统自动发送，请勿回复。</p>
    </div>
</body>
</html>
`, tenantName, planType)

	return s.sendHTML(to, subject, body)
}

// SendPaymentFailedNotice 发送支付失败通知
func (s *Service) SendPaymentFailedNotice(to, tenantName string, amount int64, currency string) error {
	subject := "支付失败提醒 - 门店预约管理平台"
	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #dc2626;">支付失败</h2>
        <p>%s，您好，</p>
        <p>您最近一笔 <strong>%d %s</strong> 的订阅付款被支付网关拒绝。</p>
        <p>请检查支付方式后重新发起支付，系统不会自动重试扣款。</p>
        <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 20px 0;">
        <p style="color: #6b7280; font-size: 12px;">此邮件由系统自动发送，请勿回复。</p>
    </div>
</body>
</html>
`, tenantName, amount, currency)

	return s.sendHTML(to, subject, body)
}

// sendHTML 发送 HTML 邮件
func (s *Service) sendHTML(to, subject, body string) error {
	headers := make(map[string]string)
	headers["From"] = s.cfg.From
	headers["To"] = to
	headers["Subject"] = subject
	headers["MIME-Version"] = "1.0"
	headers["Content-Type"] = "text/html; charset=UTF-8"

	var msg strings.Builder
	for k, v := range headers {
		msg.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}
	msg.WriteString("\r\n")
	msg.WriteString(body)

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPHost)
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	return smtp.SendMail(addr, auth, s.cfg.From, []string{to}, []byte(msg.String()))
}
