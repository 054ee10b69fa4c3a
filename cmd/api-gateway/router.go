// Package main 是应用程序入口
package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sevamart/service-market-backend/internal/common/config"
	"github.com/sevamart/service-market-backend/internal/common/jwt"
	"github.com/sevamart/service-market-backend/internal/common/metrics"
	commonMiddleware "github.com/sevamart/service-market-backend/internal/common/middleware"
	commissionHandler "github.com/sevamart/service-market-backend/internal/handler/commission"
	notificationHandler "github.com/sevamart/service-market-backend/internal/handler/notification"
	srHandler "github.com/sevamart/service-market-backend/internal/handler/servicerequest"
	walletHandler "github.com/sevamart/service-market-backend/internal/handler/wallet"
	"github.com/sevamart/service-market-backend/internal/middleware"
	"github.com/sevamart/service-market-backend/internal/repository"
	commissionService "github.com/sevamart/service-market-backend/internal/service/commission"
	"github.com/sevamart/service-market-backend/internal/service/hierarchy"
	srService "github.com/sevamart/service-market-backend/internal/service/servicerequest"
	walletService "github.com/sevamart/service-market-backend/internal/service/wallet"
)

// setupRouter 设置路由
func setupRouter(
	r *gin.Engine,
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	redisClient *redis.Client,
) {
	// 创建 JWT 管理器
	jwtManager := jwt.NewManager(&jwt.Config{
		Secret:            cfg.JWT.Secret,
		AccessExpireTime:  cfg.JWT.AccessTokenDuration(),
		RefreshExpireTime: cfg.JWT.RefreshTokenDuration(),
		Issuer:            cfg.JWT.Issuer,
	})

	// 初始化仓储
	userRepo := repository.NewUserRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	configRepo := repository.NewCommissionConfigRepository(db)
	commissionRepo := repository.NewCommissionRepository(db)
	commissionTxRepo := repository.NewCommissionTransactionRepository(db)
	srRepo := repository.NewServiceRequestRepository(db)
	statusRepo := repository.NewStatusUpdateRepository(db)
	srCommissionRepo := repository.NewSRCommissionRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	operationLogRepo := repository.NewOperationLogRepository(db)

	// 初始化服务
	resolver := hierarchy.NewResolver(userRepo, cfg.Business.Commission.MaxHierarchyDepth)
	ledgerSvc := walletService.NewLedgerService(db, walletRepo)
	configSvc := commissionService.NewConfigService(configRepo, redisClient)
	trackerSvc := commissionService.NewTrackerService(commissionTxRepo)
	distributionSvc := commissionService.NewDistributionService(
		db, userRepo, commissionRepo, resolver, configSvc, trackerSvc, ledgerSvc)

	notificationSvc := srService.NewNotificationService(notificationRepo)
	bridge := srService.NewCommissionBridge(
		db, srCommissionRepo, userRepo, resolver, ledgerSvc, notificationSvc,
		srService.BridgeRatesFromConfig(&cfg.Business.Commission))
	numberGen := srService.NewNumberGenerator(
		redisClient, srRepo,
		cfg.Business.ServiceRequest.NumberPrefix,
		time.Duration(cfg.Business.ServiceRequest.SeqTTLHours)*time.Hour)
	requestSvc := srService.NewRequestService(
		db, srRepo, statusRepo, userRepo, commissionTxRepo, numberGen, bridge, notificationSvc)

	// 初始化处理器
	srH := srHandler.NewHandler(requestSvc, bridge)
	commissionH := commissionHandler.NewHandler(distributionSvc, trackerSvc, configSvc)
	walletH := walletHandler.NewHandler(ledgerSvc)
	notificationH := notificationHandler.NewHandler(notificationSvc)

	// 全局中间件
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RealIP())
	r.Use(middleware.CORS(nil))
	r.Use(middleware.AccessLog(logger))

	// 链路追踪
	if cfg.Tracing.Enabled {
		r.Use(commonMiddleware.Tracing(&commonMiddleware.TracingConfig{
			ServiceName: cfg.Tracing.ServiceName,
			SkipPaths:   []string{"/health", "/ping", "/ready", "/metrics"},
		}))
	}

	// 限流
	if cfg.RateLimit.Enabled {
		r.Use(middleware.RateLimit(&middleware.RateLimitConfig{
			RedisClient: redisClient,
			KeyPrefix:   "ratelimit:",
			Limit:       cfg.RateLimit.RequestsPerSecond,
			Window:      time.Second,
		}))
	}

	// 指标采集
	if cfg.Metrics.Enabled {
		m := metrics.Init(cfg.Server.Name)
		r.Use(m.Middleware())
		r.GET("/metrics", metrics.Handler())
	}

	// 健康检查（不需要认证）
	r.GET("/health", healthHandler)
	r.GET("/ping", pingHandler)
	r.GET("/ready", readyHandler(db, redisClient))

	// Swagger 文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API v1 路由组
	v1 := r.Group("/api/v1")
	{
		// 用户端接口（需要用户认证）
		user := v1.Group("")
		user.Use(middleware.UserAuth(jwtManager))
		{
			// 工单
			user.POST("/service-requests", srH.Create)
			user.GET("/service-requests", srH.List)
			user.GET("/service-requests/:id", srH.Get)
			user.PATCH("/service-requests/:id/status", srH.UpdateStatus)
			user.POST("/service-requests/:id/assign", srH.Assign)
			user.GET("/service-requests/:id/history", srH.History)
			user.GET("/service-requests/:id/commissions", srH.GetCommissions)
			user.POST("/service-requests/:id/commissions/settle", srH.SettleCommissions)
			user.POST("/service-requests/:id/paid", srH.MarkPaid)

			// 佣金
			user.POST("/commissions/distribute", commissionH.Distribute)
			user.GET("/commissions", commissionH.ListMine)
			user.GET("/commissions/transaction", commissionH.GetByTransaction)
			user.GET("/commissions/transactions/pending", commissionH.PendingTransactions)
			user.GET("/commissions/transactions/failed", commissionH.FailedTransactions)

			// 钱包
			user.GET("/wallet", walletH.GetWallet)
			user.GET("/wallet/transactions", walletH.ListTransactions)

			// 通知
			user.GET("/notifications", notificationH.List)
			user.GET("/notifications/unread-count", notificationH.CountUnread)
			user.PUT("/notifications/:id/read", notificationH.MarkRead)
			user.PUT("/notifications/read-all", notificationH.MarkAllRead)
		}
	}

	// 管理后台 API
	admin := r.Group("/api/admin")
	admin.Use(middleware.AdminAuth(jwtManager))
	admin.Use(commonMiddleware.NewOperationLogger(operationLogRepo).Log())
	{
		// 佣金配置管理
		admin.POST("/commission-configs", commissionH.CreateConfig)
		admin.GET("/commission-configs", commissionH.ListConfigs)
		admin.GET("/commission-configs/:id", commissionH.GetConfig)
		admin.DELETE("/commission-configs/:id", commissionH.DeactivateConfig)

		// 工单管理
		admin.POST("/requests/:id/assign", srH.Assign)
		admin.PUT("/requests/:id/status", srH.UpdateStatus)
		admin.POST("/requests/:id/settle", srH.SettleCommissions)
	}

	// 404 处理
	r.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{
			"code":    404,
			"message": "接口不存在",
		})
	})
}
