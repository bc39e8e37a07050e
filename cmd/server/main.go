package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qs3c/booking_go_server/config"
	"github.com/qs3c/booking_go_server/internal/api"
	"github.com/qs3c/booking_go_server/internal/api/handler"
	"github.com/qs3c/booking_go_server/internal/database"
	"github.com/qs3c/booking_go_server/internal/pkg/email"
	"github.com/qs3c/booking_go_server/internal/pkg/eventledger"
	"github.com/qs3c/booking_go_server/internal/pkg/gateway"
	"github.com/qs3c/booking_go_server/internal/pkg/scheduler"
	"github.com/qs3c/booking_go_server/internal/repository"
	"github.com/qs3c/booking_go_server/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	// 初始化 Repository
	subRepo := repository.NewSubscriptionRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	changeRepo := repository.NewPlanChangeRepository(db)
	tenantRepo := repository.NewTenantRepository(db)

	// 初始化 Service
	gatewayClient := gateway.NewClient(&cfg.Gateway)
	ledger := eventledger.NewLedger(rdb)
	emailService := email.NewService(&cfg.Email)

	planService := service.NewPlanService(cfg)
	subscriptionService := service.NewSubscriptionService(subRepo, paymentRepo, changeRepo, tenantRepo, planService, gatewayClient, cfg)
	paymentService := service.NewPaymentService(db, subRepo, paymentRepo, tenantRepo, ledger, gatewayClient)
	notificationService := service.NewNotificationService(emailService, tenantRepo)

	// 初始化调度器
	sched := scheduler.NewService(subRepo, paymentRepo, subscriptionService, notificationService, &cfg.Scheduler)
	sched.Start()

	// 初始化 Handler
	subscriptionHandler := handler.NewSubscriptionHandler(subscriptionService)
	planHandler := handler.NewPlanHandler(planService)
	webhookHandler := handler.NewWebhookHandler(paymentService)
	healthHandler := handler.NewHealthHandler(sched)

	// 初始化 Router
	router := api.NewRouter(subscriptionHandler, planHandler, webhookHandler, healthHandler, cfg)
	engine := router.Setup()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	go func() {
		log.Printf("Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 等待退出信号，优雅关闭
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("Received shutdown signal")

	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server shutdown complete")
}
