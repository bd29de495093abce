// File: notifyhub/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notifyhub/config"
	"notifyhub/cron"
	"notifyhub/database"
	deviceRepoPkg "notifyhub/database/repository/device"
	notificationRepoPkg "notifyhub/database/repository/notification"
	"notifyhub/handlers"
	"notifyhub/middleware"
	"notifyhub/realtime"
	"notifyhub/routes"
	"notifyhub/services/alert"
	"notifyhub/services/directory"
	"notifyhub/services/dispatch"
	"notifyhub/services/gateway"
	"notifyhub/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitRedis()
	utils.FirebaseInit()

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware())

	// repositories.
	notifRepo := notificationRepoPkg.NewMongoNotificationRepo()
	deviceRepo := deviceRepoPkg.NewMongoDeviceRepo()

	// realtime channel and device alert sink.
	channel := realtime.NewRedisChannel(utils.GetRealtimeClient(), logger)

	var alertSink alert.AlertSink = alert.NoopSink{}
	if utils.FCMClient != nil {
		sink, err := alert.NewFCMSink(utils.FCMClient, deviceRepo)
		if err != nil {
			logger.Sugar().Fatalf("main: failed to initialize FCM alert sink: %v", err)
		}
		alertSink = sink
	}

	// services.
	gw, err := gateway.NewDefaultGateway(notifRepo, channel, utils.GetCacheClient(), logger)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize gateway: %v", err)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisFanoutDB,
	})
	defer asynqClient.Close()

	dispatchService, err := dispatch.NewDefaultDispatchService(notifRepo, asynqClient, logger)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize dispatch service: %v", err)
	}

	// Background fan-out worker.
	cron.InitFanoutWorker(cron.FanoutDeps{
		Repo:     notifRepo,
		Resolver: directory.NewMongoResolver(),
		Channel:  channel,
		Alert:    alertSink,
		Counts:   gw,
		Logger:   logger,
	})

	// Assemble the handler bundle.
	handlerBundle := &routes.HandlerBundle{
		Notifications: handlers.NewNotificationHandler(gw, config.AppConfig.DefaultListLimit),
		Admin:         handlers.NewAdminHandler(dispatchService),
		Devices:       handlers.NewDeviceHandler(deviceRepo),
	}

	// Register routes with the assembled handler bundle.
	routes.RegisterRoutes(router, handlerBundle)

	utils.StartHealthMonitor([]*redis.Client{utils.GetCacheClient(), utils.GetRealtimeClient()}, database.MongoClient)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
