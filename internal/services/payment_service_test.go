package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dealhub/internal/apperror"
	"dealhub/internal/config"
	"dealhub/internal/models"
	"dealhub/internal/redis"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.Connect(&config.RedisConfig{Host: "127.0.0.1", Port: mr.Port()}, newTestLogger())
	if err != nil {
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func offlinePaymentConfig() *config.PaymentConfig {
	return &config.PaymentConfig{
		Provider:          "offline",
		MerchantID:        "dealhub-test",
		PendingTTLMinutes: 30,
		TimeoutSeconds:    2,
	}
}

func TestCreatePending_Offline(t *testing.T) {
	svc := NewPaymentService(newTestRedis(t), newTestLogger(), offlinePaymentConfig())

	intent, err := svc.CreatePending(context.Background(), uuid.New(), uuid.New(), 25)
	if err != nil {
		t.Fatalf("CreatePending failed: %v", err)
	}

	if intent.Reference == "" {
		t.Error("Expected a non-empty reference")
	}
	if intent.AmountDue != 25 {
		t.Errorf("Expected amount 25, got %f", intent.AmountDue)
	}
	if intent.FormFields["merchant_id"] != "dealhub-test" {
		t.Errorf("Unexpected merchant_id: %s", intent.FormFields["merchant_id"])
	}
	if intent.FormFields["amount"] != "25.00" {
		t.Errorf("Unexpected amount field: %s", intent.FormFields["amount"])
	}
	if intent.ExpiresAt.Before(time.Now()) {
		t.Error("Expected intent expiry in the future")
	}
}

func TestConsumePending(t *testing.T) {
	svc := NewPaymentService(newTestRedis(t), newTestLogger(), offlinePaymentConfig())
	dealID := uuid.New()
	buyerID := uuid.New()

	intent, err := svc.CreatePending(context.Background(), dealID, buyerID, 25)
	if err != nil {
		t.Fatalf("CreatePending failed: %v", err)
	}

	pending, err := svc.ConsumePending(context.Background(), intent.Reference)
	if err != nil {
		t.Fatalf("ConsumePending failed: %v", err)
	}
	if pending.DealID != dealID || pending.BuyerID != buyerID {
		t.Error("Pending purchase does not match the created one")
	}
	if pending.AmountDue != 25 {
		t.Errorf("Expected amount 25, got %f", pending.AmountDue)
	}
}

func TestConsumePending_ExactlyOnce(t *testing.T) {
	// Повторное подтверждение той же ссылки не должно выпустить второй купон.
	svc := NewPaymentService(newTestRedis(t), newTestLogger(), offlinePaymentConfig())

	intent, err := svc.CreatePending(context.Background(), uuid.New(), uuid.New(), 25)
	if err != nil {
		t.Fatalf("CreatePending failed: %v", err)
	}

	if _, err := svc.ConsumePending(context.Background(), intent.Reference); err != nil {
		t.Fatalf("First ConsumePending failed: %v", err)
	}
	if _, err := svc.ConsumePending(context.Background(), intent.Reference); !apperror.Is(err, apperror.KindNotFound) {
		t.Errorf("Expected not_found on second consume, got %v", err)
	}
}

func TestConsumePending_Unknown(t *testing.T) {
	svc := NewPaymentService(newTestRedis(t), newTestLogger(), offlinePaymentConfig())

	if _, err := svc.ConsumePending(context.Background(), uuid.New().String()); !apperror.Is(err, apperror.KindNotFound) {
		t.Errorf("Expected not_found, got %v", err)
	}
}

func TestConsumePending_EmptyReference(t *testing.T) {
	svc := NewPaymentService(newTestRedis(t), newTestLogger(), offlinePaymentConfig())

	if _, err := svc.ConsumePending(context.Background(), ""); !apperror.Is(err, apperror.KindValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestConsumePending_Expired(t *testing.T) {
	// Срок сравнивается по ExpiresAt внутри записи, не по TTL ключа.
	client := newTestRedis(t)
	svc := NewPaymentService(client, newTestLogger(), offlinePaymentConfig())

	pending := models.PendingPurchase{
		Reference: uuid.New().String(),
		DealID:    uuid.New(),
		BuyerID:   uuid.New(),
		AmountDue: 25,
		CreatedAt: time.Now().Add(-time.Hour),
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	key := redis.GenerateKey(redis.KeyPrefixPending, pending.Reference)
	if err := client.Set(context.Background(), key, pending, time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := svc.ConsumePending(context.Background(), pending.Reference); !apperror.Is(err, apperror.KindConflict) {
		t.Errorf("Expected conflict for expired pending purchase, got %v", err)
	}
}

func TestCreatePending_Gateway(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"payment_url": "https://pay.example.com/checkout/abc", "form_fields": {"session": "abc"}}`))
	}))
	defer server.Close()

	cfg := offlinePaymentConfig()
	cfg.Provider = "gateway"
	cfg.GatewayURL = server.URL
	svc := NewPaymentService(newTestRedis(t), newTestLogger(), cfg)

	intent, err := svc.CreatePending(context.Background(), uuid.New(), uuid.New(), 1499)
	if err != nil {
		t.Fatalf("CreatePending failed: %v", err)
	}
	if intent.PaymentURL != "https://pay.example.com/checkout/abc" {
		t.Errorf("Unexpected payment url: %s", intent.PaymentURL)
	}
	if intent.FormFields["session"] != "abc" {
		t.Errorf("Unexpected form fields: %v", intent.FormFields)
	}
}

func TestCreatePending_GatewayFailureFallsBackToOffline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := offlinePaymentConfig()
	cfg.Provider = "gateway"
	cfg.GatewayURL = server.URL
	svc := NewPaymentService(newTestRedis(t), newTestLogger(), cfg)

	intent, err := svc.CreatePending(context.Background(), uuid.New(), uuid.New(), 1499)
	if err != nil {
		t.Fatalf("CreatePending failed: %v", err)
	}
	if intent.PaymentURL != "/api/payments/confirm" {
		t.Errorf("Expected offline fallback form, got %s", intent.PaymentURL)
	}
	if _, err := svc.ConsumePending(context.Background(), intent.Reference); err != nil {
		t.Errorf("Expected pending purchase to survive gateway failure: %v", err)
	}
}
