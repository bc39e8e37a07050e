package main

import (
	"flag"
	"log"
	"os"

	"github.com/qs3c/booking_go_server/config"
	"github.com/qs3c/booking_go_server/internal/database"
	"github.com/qs3c/booking_go_server/internal/pkg/email"
	"github.com/qs3c/booking_go_server/internal/pkg/gateway"
	"github.com/qs3c/booking_go_server/internal/pkg/scheduler"
	"github.com/qs3c/booking_go_server/internal/repository"
	"github.com/qs3c/booking_go_server/internal/service"
)

// 一次性巡检工具：跑一轮调度器全部巡检后退出，供运维手动触发或
// 作为外部 cron 的兜底（服务进程里的调度器挂掉时照常可用）。
func main() {
	flag.Parse()

	log.Println("Starting subscription sweep...")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}

	subRepo := repository.NewSubscriptionRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	changeRepo := repository.NewPlanChangeRepository(db)
	tenantRepo := repository.NewTenantRepository(db)

	gatewayClient := gateway.NewClient(&cfg.Gateway)
	emailService := email.NewService(&cfg.Email)

	planService := service.NewPlanService(cfg)
	subscriptionService := service.NewSubscriptionService(subRepo, paymentRepo, changeRepo, tenantRepo, planService, gatewayClient, cfg)
	notificationService := service.NewNotificationService(emailService, tenantRepo)

	sched := scheduler.NewService(subRepo, paymentRepo, subscriptionService, notificationService, &cfg.Scheduler)
	sched.RunOnce()

	log.Println("Sweep completed")
}
