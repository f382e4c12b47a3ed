package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/auction-backend/internal/config"
	"github.com/ignatzorin/auction-backend/internal/db"
	"github.com/ignatzorin/auction-backend/internal/email"
	httpHandlers "github.com/ignatzorin/auction-backend/internal/http/handlers"
	httpRouter "github.com/ignatzorin/auction-backend/internal/http/router"
	"github.com/ignatzorin/auction-backend/internal/logger"
	"github.com/ignatzorin/auction-backend/internal/repository"
	"github.com/ignatzorin/auction-backend/internal/scheduler"
	"github.com/ignatzorin/auction-backend/internal/service"
	"github.com/ignatzorin/auction-backend/internal/storage"
	"github.com/ignatzorin/auction-backend/internal/stripe"
	"github.com/ignatzorin/auction-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
		logger.Init(logLevel)
		logger.SetTextFormatter()
	} else {
		logger.Init(logLevel)
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Инициализируем вспомогательные сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	imageStorage, err := storage.NewImageStorage(cfg.MediaStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	gateway := stripe.NewClient(cfg.StripeBaseURL, cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.DefaultCurrency)
	mailer := email.NewClient(cfg.EmailRelayURL, cfg.EmailAPIKey, cfg.FrontURL)

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	auctionRepo := repository.NewAuctionRepository(dbConn)
	bidRepo := repository.NewBidRepository(dbConn)
	paymentRepo := repository.NewPaymentRepository(dbConn)
	walletRepo := repository.NewWalletRepository(dbConn)
	joinedRepo := repository.NewJoinedAuctionRepository(dbConn)

	// Вебсокеты.
	hub := ws.NewHub()
	go hub.Run()
	notifier := ws.NewNotifierAdapter(hub)

	// Сервисы.
	authService := service.NewAuthService(userRepo, tokenManager)
	bidService := service.NewBidService(bidRepo, auctionRepo, notifier)
	paymentService := service.NewPaymentService(paymentRepo, auctionRepo, userRepo, bidRepo, joinedRepo, gateway, notifier, mailer)
	auctionService := service.NewAuctionService(auctionRepo, paymentRepo, walletRepo, bidRepo, joinedRepo, userRepo, gateway, notifier, mailer)
	walletService := service.NewWalletService(walletRepo)

	// Планировщик: активация запланированных и закрытие просроченных аукционов.
	sweep := scheduler.New(auctionService, cfg.SweepInterval, logger.Log)
	go sweep.Run(ctx)

	// HTTP хэндлеры.
	authHandler := httpHandlers.NewAuthHandler(authService)
	auctionHandler := httpHandlers.NewAuctionHandler(auctionService)
	bidHandler := httpHandlers.NewBidHandler(bidService)
	paymentHandler := httpHandlers.NewPaymentHandler(paymentService, gateway)
	walletHandler := httpHandlers.NewWalletHandler(walletService)
	mediaHandler := httpHandlers.NewMediaHandler(imageStorage)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, authHandler, auctionHandler, bidHandler, paymentHandler, walletHandler, mediaHandler, wsHandler, healthHandler, tokenManager)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
