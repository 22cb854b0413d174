package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/linemk/online-store/internal/app"
	"github.com/linemk/online-store/internal/app/handlers"
	"github.com/linemk/online-store/internal/config"
	"github.com/linemk/online-store/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/online-store/internal/lib/logger"
	"github.com/linemk/online-store/internal/lib/logger/handlers/urllog"
	"github.com/linemk/online-store/internal/lib/metrics"
	"github.com/linemk/online-store/internal/publisher"
	"github.com/linemk/online-store/internal/service"
	"github.com/linemk/online-store/internal/storage"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app", slog.String("env", cfg.Env))

	// загружаем объект приложения, конфигом и подключением к БД
	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Error("failed to close app", slog.Any("error", err))
		}
	}()

	isolation, err := storage.ParseIsolationLevel(cfg.Checkout.IsolationLevel)
	if err != nil {
		panic(errors.Wrap(err, "invalid checkout config"))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(application.DB, cfg.Database.Name),
	)
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)
	serverMetrics := metrics.NewServerMetrics(registry)

	// реализация слоев по работе с БД по каждому направлению
	userRepo := storage.NewUserRepository(application.DB)
	productRepo := storage.NewProductRepository(application.DB)
	cartRepo := storage.NewCartRepository(application.DB)
	orderRepo := storage.NewOrderRepository(application.DB)
	outboxRepo := storage.NewOutboxRepository(application.DB)
	txs := storage.NewTxBeginner(application.DB, isolation)

	checkoutCfg := service.CheckoutConfig{
		Timeout:  cfg.Checkout.Timeout,
		Observer: checkoutMetrics,
	}
	if application.Redis != nil {
		checkoutCfg.Idempotency = storage.NewIdempotencyRepository(application.Redis, cfg.Redis.IdempotencyTTL)
	}

	ledger := service.NewInventoryLedger(productRepo, !cfg.Checkout.SkipUnitsSold)
	checkoutService := service.NewCheckoutService(
		log,
		txs,
		service.NewCartSnapshotReader(cartRepo, productRepo),
		ledger,
		service.NewOrderMaterializer(orderRepo, cartRepo, outboxRepo, ledger),
		checkoutCfg,
	)
	authService := service.NewAuthService(log, userRepo, cfg.JWT.TokenTTL, cfg.JWT.Secret)
	catalogService := service.NewCatalogService(log, productRepo, txs, ledger)
	profileService := service.NewProfileService(log, userRepo)
	cartService := service.NewCartService(log, cartRepo, productRepo)
	orderService := service.NewOrderService(log, orderRepo)

	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(serverMetrics.HTTPMiddleware)

	router.Handle("/metrics", metrics.Handler(registry))

	// эндпоинт для аутентификации
	router.Post("/api/auth", handlers.AuthHandler(log, authService))

	// каталог открыт без токена
	router.Get("/api/products", handlers.ListProductsHandler(log, catalogService))
	router.Get("/api/products/top", handlers.TopProductsHandler(log, catalogService))
	router.Get("/api/products/recent", handlers.RecentProductsHandler(log, catalogService))
	router.Get("/api/products/{id}", handlers.GetProductHandler(log, catalogService))

	router.Group(func(r chi.Router) {
		r.Use(jwtmiddleware.NewJWTMiddleware(cfg.JWT.Secret))

		r.Get("/api/auth/profile", handlers.ProfileHandler(log, profileService))
		r.Put("/api/auth/profile", handlers.UpdateProfileHandler(log, profileService))

		r.Post("/api/products", handlers.CreateProductHandler(log, catalogService))
		r.Put("/api/products/{id}", handlers.UpdateProductHandler(log, catalogService))
		r.Post("/api/products/{id}/restock", handlers.RestockProductHandler(log, catalogService))
		r.Delete("/api/products/{id}", handlers.DeleteProductHandler(log, catalogService))

		r.Get("/api/cart", handlers.CartHandler(log, cartService))
		r.Post("/api/cart", handlers.AddToCartHandler(log, cartService))
		r.Delete("/api/cart/{id}", handlers.RemoveFromCartHandler(log, cartService))

		r.Post("/api/orders/checkout", handlers.CheckoutHandler(log, checkoutService))
		r.Get("/api/orders", handlers.OrdersHandler(log, orderService))
		r.Get("/api/orders/{id}", handlers.OrderHandler(log, orderService))
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	if len(cfg.Kafka.Brokers) > 0 {
		writer := publisher.NewKafkaWriter(cfg.Kafka.Brokers...)
		poller := publisher.NewOutboxPoller(log, outboxRepo, writer, cfg.Kafka.PollInterval, cfg.Kafka.BatchSize)
		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Run(ctx)
			if err := writer.Close(); err != nil {
				log.Error("failed to close kafka writer", slog.Any("error", err))
			}
		}()
	} else {
		log.Warn("kafka brokers are not configured, outbox events stay pending")
	}

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.Any("error", err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	stopSign := <-stop
	log.Info("received shutdown signal", slog.String("signal", stopSign.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
	}
	cancel()
	wg.Wait()
	log.Info("server gracefully stopped")
}
