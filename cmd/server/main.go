package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace-service/internal/config"
	handler "marketplace-service/internal/controllers/http"
	"marketplace-service/internal/infra/cache"
	"marketplace-service/internal/infra/lock"
	"marketplace-service/internal/infra/logging"
	mmysql "marketplace-service/internal/infra/mysql"
	"marketplace-service/internal/infra/payment"
	"marketplace-service/internal/infra/rabbitmq"
	mysqlrepo "marketplace-service/internal/repository/mysql"
	"marketplace-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	log := logging.New("main")

	cfg, err := config.Load()
	if err != nil {
		log.Error(err, "load config")
		os.Exit(1)
	}
	logging.SetVerbosity(cfg.LogVerbosity)

	policy, err := cfg.Withdrawal.Policy()
	if err != nil {
		log.Error(err, "withdrawal policy")
		os.Exit(1)
	}

	db, err := mmysql.NewMySQL(cfg.MySQL)
	if err != nil {
		log.Error(err, "db: connect")
		os.Exit(1)
	}
	store := mysqlrepo.NewStore(db)

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: 10,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	defer redisClient.Close()

	orderCache := cache.NewRedisCache(redisClient, cfg.OrderCacheTTL)
	locker := lock.NewRedisLock(redisClient, cfg.IPNLockTTL)

	var publisher rabbitmq.PublisherInterface = rabbitmq.LogPublisher{}
	if amqpPub, err := rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange); err != nil {
		log.Error(err, "rabbitmq unavailable, events will only be logged")
	} else {
		defer amqpPub.Close()
		publisher = rabbitmq.NewRetryingPublisher(amqpPub, 3, 200*time.Millisecond)
	}

	gateways, err := payment.BuildRegistry(cfg.PaymentProviders, cfg.VNPay)
	if err != nil {
		log.Error(err, "payment providers")
		os.Exit(1)
	}

	commissions := services.NewCommissionService(store)
	downloads := services.NewDownloadService(store)
	orders := services.NewOrderService(store, gateways, publisher, orderCache, commissions, downloads, cfg.OrderPendingTTL)
	payments := services.NewPaymentService(store, gateways, locker, orderCache, publisher, commissions, downloads)

	expiry, err := services.NewExpiryJob(orders, cfg.OrderExpirySchedule)
	if err != nil {
		log.Error(err, "expiry job")
		os.Exit(1)
	}
	if err := expiry.Start(); err != nil {
		log.Error(err, "start expiry job")
		os.Exit(1)
	}
	defer expiry.Stop()

	h := handler.NewHandler(handler.Services{
		Orders:      orders,
		Payments:    payments,
		Carts:       services.NewCartService(store),
		Coupons:     services.NewCouponService(store),
		Downloads:   downloads,
		Wallets:     services.NewWalletService(store),
		Withdrawals: services.NewWithdrawalService(store, publisher, policy),
		Commissions: commissions,
	}, cfg.IsDevelopment())

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), handler.RequestID(), handler.AccessLog(logging.New("access")))
	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("starting marketplace service", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "server run")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "graceful shutdown")
	}
}
