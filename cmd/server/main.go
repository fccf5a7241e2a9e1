package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"dealhub/internal/config"
	"dealhub/internal/database"
	"dealhub/internal/handlers"
	"dealhub/internal/kafka"
	"dealhub/internal/logger"
	"dealhub/internal/models"
	"dealhub/internal/redis"
	"dealhub/internal/services"
	"dealhub/internal/store"

	"github.com/google/uuid"
)

// Фабричные функции для подключения внешних сервисов (подменяемые в тестах).
var (
	dbConnect        = database.Connect
	redisConnect     = redis.Connect
	newKafkaProducer = kafka.NewProducer
	newKafkaConsumer = kafka.NewConsumer
	loadConfig       = config.Load
	newLogger        = logger.New
)

// application агрегирует собранные зависимости.
type application struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB
	redis    *redis.Client
	producer *kafka.Producer
	consumer *kafka.Consumer
	mux      *http.ServeMux
	server   *http.Server
}

func main() {
	app, err := buildApplication()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build app: %v\n", err)
		os.Exit(1)
	}
	app.log.Info("Starting dealhub server...")

	go func() {
		app.log.WithField("address", app.server.Addr).Info("HTTP server starting")
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	app.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = app.consumer.Stop()
	if err := app.server.Shutdown(ctx); err != nil {
		app.log.WithError(err).Error("Server forced to shutdown")
	}
	_ = app.producer.Close()
	_ = app.redis.Close()
	_ = app.db.Close()
	app.log.Info("Server exited")
}

// buildApplication создает все зависимости (подменяемые в тестах).
func buildApplication() (*application, error) {
	cfg := loadConfig()
	log := newLogger(&cfg.Logger)

	db, err := dbConnect(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	redisClient, err := redisConnect(&cfg.Redis, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}

	producer, err := newKafkaProducer(&cfg.Kafka, log)
	if err != nil {
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	consumer, err := newKafkaConsumer(&cfg.Kafka, log)
	if err != nil {
		_ = producer.Close()
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	couponStore := store.NewPostgresStore(db, log)

	pricingService := services.NewPricingService(cfg.Promo.EndDate, services.PricingUnit(cfg.Promo.PricingUnit))
	codeGenerator := services.NewCodeGenerator(&cfg.Coupon)
	validator := services.NewRedemptionValidator()
	auditLogger := services.NewAuditLogger(couponStore, producer, log)
	paymentService := services.NewPaymentService(redisClient, log, &cfg.Payment)

	dealService := services.NewDealService(db, redisClient, log, producer)
	couponService := services.NewCouponService(couponStore, dealService, pricingService, codeGenerator, validator, auditLogger, paymentService, producer, log, &cfg.Coupon)
	analyticsService := services.NewAnalyticsService(db, redisClient, log, &cfg.Analytics)
	rateLimiter := services.NewRateLimiter(redisClient, log, &cfg.RateLimit)

	dealHandler := handlers.NewDealHandler(dealService, log)
	couponHandler := handlers.NewCouponHandler(couponService, log)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService, log, &cfg.Analytics)
	healthHandler := handlers.NewHealthHandler(db, redisClient, cfg.Kafka.Brokers)
	rateLimitHandler := handlers.NewRateLimitHandler(rateLimiter, log, &cfg.RateLimit)

	registerEventHandlers(consumer, dealService, analyticsService, log)
	if err := consumer.Start(); err != nil {
		_ = consumer.Stop()
		_ = producer.Close()
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka consumer start: %w", err)
	}

	mux := setupRoutes(dealHandler, couponHandler, analyticsHandler, healthHandler, rateLimitHandler, rateLimiter, log)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return &application{
		cfg:      cfg,
		log:      log,
		db:       db,
		redis:    redisClient,
		producer: producer,
		consumer: consumer,
		mux:      mux,
		server:   server,
	}, nil
}

// setupRoutes настраивает маршруты HTTP сервера
func setupRoutes(dealHandler *handlers.DealHandler, couponHandler *handlers.CouponHandler, analyticsHandler *handlers.AnalyticsHandler, healthHandler *handlers.HealthHandler, rateLimitHandler *handlers.RateLimitHandler, rateLimiter *services.RateLimiter, log *logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	applyAPI := func(h http.HandlerFunc) http.HandlerFunc {
		return corsMiddleware(handlers.RateLimitMiddleware(rateLimiter, log, h))
	}

	// Health check endpoints
	mux.HandleFunc("/health", corsMiddleware(healthHandler.Health))
	mux.HandleFunc("/health/readiness", corsMiddleware(healthHandler.Readiness))
	mux.HandleFunc("/health/liveness", corsMiddleware(healthHandler.Liveness))

	// Deal catalog endpoints
	mux.HandleFunc("/api/deals", applyAPI(handleDealsRoute(dealHandler)))
	mux.HandleFunc("/api/deals/", applyAPI(handleDealRoute(dealHandler)))

	// Coupon endpoints
	mux.HandleFunc("/api/coupons", applyAPI(couponHandler.IssueCoupon))
	mux.HandleFunc("/api/coupons/", applyAPI(handleCouponRoute(couponHandler)))

	// Payment confirmation
	mux.HandleFunc("/api/payments/confirm", applyAPI(couponHandler.ConfirmPayment))

	// Analytics endpoints
	mux.HandleFunc("/api/analytics/coupons", applyAPI(analyticsHandler.GetCouponKPIs))

	// Rate limit status
	mux.HandleFunc("/api/rate-limit/status", applyAPI(rateLimitHandler.Status))

	return mux
}

// handleDealsRoute обрабатывает маршруты для коллекции предложений
func handleDealsRoute(handler *handlers.DealHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.GetDeals(w, r)
		case http.MethodPost:
			handler.CreateDeal(w, r)
		default:
			writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// handleDealRoute обрабатывает маршруты для отдельного предложения
func handleDealRoute(handler *handlers.DealHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/status") {
			if r.Method == http.MethodPut {
				handler.UpdateDealStatus(w, r)
			} else {
				writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
			return
		}

		if r.Method == http.MethodGet {
			handler.GetDeal(w, r)
		} else {
			writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// handleCouponRoute обрабатывает маршруты для отдельного купона
func handleCouponRoute(handler *handlers.CouponHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/redeem") {
			if r.Method == http.MethodPost {
				handler.RedeemCoupon(w, r)
			} else {
				writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
			return
		}

		if r.Method == http.MethodGet {
			handler.GetCoupon(w, r)
		} else {
			writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// registerEventHandlers регистрирует обработчики событий Kafka
func registerEventHandlers(consumer *kafka.Consumer, dealService *services.DealService, analyticsService *services.AnalyticsService, log *logger.Logger) {
	// Выпуск купона считается заявкой по предложению.
	consumer.RegisterHandler(models.EventTypeCouponIssued, func(ctx context.Context, event *models.Event) error {
		dealID, err := eventUUID(event, "deal_id")
		if err != nil {
			log.WithError(err).WithField("event_id", event.ID).Warn("Skipping coupon issued event without deal_id")
			return nil
		}
		return dealService.IncrementInquiryCount(ctx, dealID)
	})

	// Погашение меняет агрегаты — кэш аналитики сбрасывается.
	consumer.RegisterHandler(models.EventTypeCouponRedeemed, func(ctx context.Context, event *models.Event) error {
		log.WithField("event_id", event.ID).Info("Processing coupon redeemed event")
		analyticsService.InvalidateCache(ctx)
		return nil
	})
}

// eventUUID извлекает UUID из данных события.
func eventUUID(event *models.Event, field string) (uuid.UUID, error) {
	raw, ok := event.Data[field]
	if !ok {
		return uuid.Nil, fmt.Errorf("missing %s in event data", field)
	}

	str, ok := raw.(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("%s is not a string", field)
	}

	return uuid.Parse(str)
}

// corsMiddleware и другие helper функции
func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	type errorResponse struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}
