package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"groupbuy-service/config"
	"groupbuy-service/consumers"
	"groupbuy-service/controllers"
	"groupbuy-service/database"
	"groupbuy-service/middlewares"
	"groupbuy-service/pkg/logger"
	"groupbuy-service/rabbitmq"
	"groupbuy-service/repositories"
	"groupbuy-service/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("config load failed: %v", err))
	}

	if err := logger.Init(cfg.Logger); err != nil {
		panic(fmt.Sprintf("logger init failed: %v", err))
	}

	db, err := database.Connect(cfg.MySQL)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		return
	}
	defer db.Close()

	rmq, err := rabbitmq.New(&cfg.MQ)
	if err != nil {
		logger.Error("rabbitmq connection failed", "error", err)
		return
	}
	defer rmq.Close()

	if err := rmq.SetupTopology(); err != nil {
		logger.Error("rabbitmq topology setup failed", "error", err)
		return
	}

	groupRepo := repositories.NewGroupRepository(db)
	productRepo := repositories.NewProductRepository(db)
	orderRepo := repositories.NewOrderRepository(db)
	settingsRepo := repositories.NewSettingsRepository(db)

	groupService := services.NewGroupService(groupRepo, productRepo, rmq)
	orderService := services.NewOrderStatusService(orderRepo, settingsRepo, rmq)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := consumers.NewEventConsumer(rmq.Channel, &cfg.MQ, orderService)
	if err := consumer.Start(ctx); err != nil {
		logger.Error("consumer start failed", "error", err)
		return
	}

	gin.SetMode(cfg.Server.Mode)
	router := setupRouter(cfg, groupService, orderService, productRepo)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", "error", err)
		return
	}
	logger.Info("server stopped")
}

func setupRouter(
	cfg *config.Config,
	groupService services.GroupServiceInterface,
	orderService services.OrderServiceInterface,
	productRepo repositories.ProductRepositoryInterface,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middlewares.PrometheusMiddleware())
	router.Use(middlewares.RateLimit(cfg.RateLimits.Global))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	groupCtrl := controllers.NewGroupController(groupService)
	orderCtrl := controllers.NewOrderController(orderService)
	adminCtrl := controllers.NewAdminController(orderService, productRepo)

	router.GET("/api/products/:id", adminCtrl.GetProduct)

	auth := router.Group("/api")
	auth.Use(middlewares.AuthRequired(cfg.JWT.Secret))
	{
		joinLimit := middlewares.RateLimit(cfg.RateLimits.Join)
		auth.POST("/groups", joinLimit, groupCtrl.CreateGroup)
		auth.POST("/groups/:id/join", joinLimit, groupCtrl.JoinGroup)
		auth.GET("/groups/:id/members", groupCtrl.ListMembers)

		auth.POST("/orders", orderCtrl.CreateOrder)
		auth.GET("/orders/:id", orderCtrl.GetOrder)
		auth.GET("/orders/:id/history", orderCtrl.GetHistory)
	}

	admin := router.Group("/api")
	admin.Use(middlewares.AuthRequired(cfg.JWT.Secret), middlewares.AdminRequired())
	{
		admin.PATCH("/groups/:id/status", groupCtrl.UpdateStatus)
		admin.PATCH("/orders/:id/status", orderCtrl.UpdateStatus)
		admin.GET("/admin/orders/overdue", adminCtrl.OverdueOrders)
		admin.GET("/admin/order-settings", adminCtrl.GetSettings)
		admin.PUT("/admin/order-settings", adminCtrl.UpdateSettings)
		admin.POST("/admin/products", adminCtrl.CreateProduct)
	}

	return router
}
