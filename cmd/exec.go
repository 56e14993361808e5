package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"topup-system/config"
	"topup-system/handlers"
	"topup-system/internal/services/paypal"
	"topup-system/internal/services/vend"
	"topup-system/monitoring"
	"topup-system/security"
	"topup-system/services"
	"topup-system/utils"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"

	_ "topup-system/migrations"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL)
	defer redisClient.Close()

	// Initialize PubNub
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey

	pn := pubnub.NewPubNub(pnConfig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize provider clients
	vendClient, err := vend.New(ctx, &vend.Config{
		BaseURL:   cfg.VendBaseURL,
		APIKey:    cfg.VendAPIKey,
		APISecret: cfg.VendAPISecret,
	})
	if err != nil {
		return err
	}

	paypalClient, err := paypal.New(ctx, &paypal.Config{
		Mode:         cfg.PayPalMode,
		ClientID:     cfg.PayPalClientID,
		ClientSecret: cfg.PayPalClientSecret,
		Currency:     cfg.Currency,
	})
	if err != nil {
		return err
	}

	// Initialize monitoring
	var monitor *monitoring.Monitor
	if cfg.EnableMetrics {
		monitor = monitoring.NewMonitor(redisClient)
	}

	// Initialize services
	store := services.NewPendingStore(redisClient, cfg.PendingTTL)
	notifier := services.NewNotifyService(pn)
	archiver := services.NewRecordArchive(app)
	coordinator := services.NewCoordinator(
		store, vendClient, paypalClient, services.DefaultFeeSchedule(),
		archiver, notifier, monitor,
		services.CoordinatorOptions{
			PublicURL:    cfg.PublicURL,
			ExchangeRate: cfg.ExchangeRate,
			TaxFeeRate:   cfg.TaxFeeRate,
		},
	)

	// Initialize handlers
	topupHandler := handlers.NewTopupHandler(app, coordinator)
	accountHandler := handlers.NewAccountHandler(app, redisClient)
	adminHandler := handlers.NewAdminHandler(app, redisClient)

	rateLimiter := security.NewRateLimiter(redisClient, cfg.InitiateRateLimit, cfg.InitiateRateWindow)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Top-up endpoints
		e.Router.POST("/api/topup/initiate", topupHandler.Initiate).BindFunc(rateLimiter.InitiateLimit())
		e.Router.GET("/api/topup/execute", topupHandler.Execute)
		e.Router.GET("/api/topup/cancel", topupHandler.Cancel)
		e.Router.GET("/api/topup/{txnId}/status", topupHandler.GetStatus)

		// Account endpoints
		e.Router.POST("/api/account/register", accountHandler.Register)
		e.Router.POST("/api/account/login", accountHandler.Login)
		e.Router.POST("/api/account/password-reset/request", accountHandler.RequestPasswordReset)
		e.Router.POST("/api/account/password-reset/confirm", accountHandler.ResetPassword)

		// Admin endpoints
		e.Router.GET("/api/admin/transactions", adminHandler.ListTransactions)
		e.Router.GET("/api/admin/pending", adminHandler.ListPending)

		// Metrics
		if cfg.EnableMetrics {
			e.Router.GET("/metrics", apis.WrapStdHandler(promhttp.Handler()))
		}

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
