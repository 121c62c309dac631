package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"

	"bikestore/internal/catalog"
	"bikestore/internal/checkout"
	"bikestore/internal/config"
	"bikestore/internal/database"
	"bikestore/internal/handlers"
	"bikestore/internal/ledger"
	"bikestore/internal/mercadopago"
	"bikestore/internal/middleware"
	"bikestore/internal/notify"
	"bikestore/internal/reconcile"
)

const storeName = "Bike Store"

// services is everything the HTTP layer and the CLI commands share.
type services struct {
	mongo      *mongo.Client
	db         *mongo.Database
	redis      *redis.Client
	catalog    *catalog.Gateway
	ledger     *ledger.MongoLedger
	payments   *mercadopago.Client
	mailer     *notify.Mailer
	reconciler *reconcile.Reconciler
	checkout   *checkout.Orchestrator
	admins     *database.AdminStore
}

func connectServices(cfg config.Config) (*services, error) {
	client, err := database.Connect(cfg.MongoURI)
	if err != nil {
		return nil, err
	}
	db := client.Database(cfg.DBName)
	log.Println("MongoDB connected to:", db.Name())

	s := &services{mongo: client, db: db}

	var cache catalog.Cache = catalog.NoopCache{}
	var locker reconcile.Locker = reconcile.NoopLocker{}
	if cfg.RedisAddr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := s.redis.Ping(ctx).Err()
		cancel()
		if err != nil {
			log.Printf("[STARTUP] [WARN] redis %s unreachable, catalog reads go straight to MongoDB: %v", cfg.RedisAddr, err)
		} else {
			log.Println("Redis connected to:", cfg.RedisAddr)
		}
		cache = catalog.NewRedisCache(s.redis)
		locker = reconcile.NewRedisLocker(s.redis)
	}

	var sender notify.Sender = notify.LogSender{}
	if cfg.ResendAPIKey != "" {
		sender = notify.NewResendSender("", cfg.ResendAPIKey)
	} else {
		log.Println("[STARTUP] [WARN] RESEND_API_KEY not set, emails are only logged")
	}

	if cfg.MercadoPagoAccessToken == "" {
		log.Println("[STARTUP] [WARN] MERCADOPAGO_ACCESS_TOKEN not set, hosted checkout will fail")
	}

	s.catalog = catalog.NewGateway(db, cache)
	s.ledger = ledger.NewMongoLedger(db)
	s.payments = mercadopago.NewClient(cfg.MercadoPagoBaseURL, cfg.MercadoPagoAccessToken)
	s.mailer = notify.NewMailer(sender, cfg.EmailFrom, storeName)
	s.admins = database.NewAdminStore(db)
	s.reconciler = reconcile.NewReconciler(s.payments, s.catalog, s.ledger, s.mailer, locker, cfg.PublicURL)
	s.checkout = checkout.New(s.catalog, s.ledger, s.payments, s.mailer, checkout.Config{
		PublicURL:           cfg.PublicURL,
		SessionTTL:          cfg.PaymentSessionTTL,
		StatementDescriptor: "BIKESTORE",
	})
	return s, nil
}

func (s *services) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Printf("[SHUTDOWN] [WARN] closing redis: %v", err)
		}
	}
	if err := s.mongo.Disconnect(ctx); err != nil {
		log.Printf("[SHUTDOWN] [WARN] disconnecting mongo: %v", err)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the payment reconciliation workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(config.AppEnv)
		},
	}
}

func runServe(cfg config.Config) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if err := handlers.RegisterValidators(); err != nil {
		return err
	}

	s, err := connectServices(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := database.EnsureAll(s.db); err != nil {
		log.Printf("⚠️ index warning: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var queue reconcile.Queue
	workersDone := make(chan struct{})
	if len(cfg.KafkaBrokers) > 0 {
		kq := reconcile.NewKafkaQueue(cfg.KafkaBrokers, cfg.KafkaPaymentsTopic)
		defer kq.Close()
		queue = kq
		go func() {
			defer close(workersDone)
			if err := kq.Consume(ctx, s.reconciler.Handle); err != nil {
				log.Printf("[RECONCILE] [ERROR] consumer stopped: %v", err)
			}
		}()
		log.Printf("[STARTUP] reconciliation queue: kafka topic %s", cfg.KafkaPaymentsTopic)
	} else {
		pool := reconcile.NewWorkerPool(cfg.ReconcileWorkers, 256, s.reconciler.Handle)
		queue = pool
		go func() {
			defer close(workersDone)
			pool.Run(ctx)
		}()
		log.Printf("[STARTUP] reconciliation queue: %d in-process workers", cfg.ReconcileWorkers)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(cfg, s, queue),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			stop()
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[SHUTDOWN] [WARN] http shutdown: %v", err)
	}

	select {
	case <-workersDone:
	case <-shutdownCtx.Done():
		log.Println("[SHUTDOWN] [WARN] reconciliation workers still busy, exiting")
	}
	return nil
}

func newRouter(cfg config.Config, s *services, queue reconcile.Queue) *gin.Engine {
	r := gin.Default()
	r.Use(middleware.RequestID())

	r.GET("/healthz", handlers.Health(s.db))

	r.GET("/products", handlers.GetProducts(s.catalog))
	r.GET("/products/:slug", handlers.GetProductBySlug(s.catalog))
	r.GET("/categories", handlers.GetCategories(s.catalog))
	r.GET("/categories/:slug", handlers.GetCategoryBySlug(s.catalog))
	r.GET("/attributes", handlers.GetFilterableAttributes(s.catalog))
	r.GET("/brands", handlers.GetBrands(s.catalog))

	limiter := middleware.NewRateLimiter(cfg.CheckoutRateLimit)
	r.POST("/checkout", limiter.Middleware(), handlers.Checkout(s.checkout))
	r.GET("/orders/:orderNumber", handlers.GetOrderStatus(s.ledger))

	r.POST("/webhooks/mercadopago", handlers.MercadoPagoWebhook(cfg.MercadoPagoWebhookSecret, queue))

	r.POST("/admin/login", handlers.AdminLogin(s.admins, cfg.JWTSecret, cfg.AccessTokenTTL))
	admin := r.Group("/admin/api", middleware.AdminAuth(cfg.JWTSecret))
	{
		admin.POST("/cache/invalidate", handlers.InvalidateCache(s.catalog))
		admin.GET("/orders", handlers.ListOrders(s.ledger))
	}

	return r
}
