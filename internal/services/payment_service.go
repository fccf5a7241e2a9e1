package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dealhub/internal/apperror"
	"dealhub/internal/config"
	"dealhub/internal/logger"
	"dealhub/internal/models"
	"dealhub/internal/redis"

	"github.com/google/uuid"
)

const defaultPendingTTL = 30 * time.Minute

// PaymentService — граница с платёжным провайдером на платном пути выпуска.
// Провайдер offline строит детерминированную платёжную форму без внешних
// вызовов; провайдер gateway ходит в настроенный внешний API. Отложенные
// покупки живут в Redis и потребляются ровно один раз при подтверждении.
type PaymentService struct {
	redis  *redis.Client
	log    *logger.Logger
	client *http.Client
	cfg    *config.PaymentConfig
}

// NewPaymentService создает платёжный сервис.
func NewPaymentService(redisClient *redis.Client, log *logger.Logger, cfg *config.PaymentConfig) *PaymentService {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PaymentService{
		redis:  redisClient,
		log:    log,
		client: &http.Client{Timeout: timeout},
		cfg:    cfg,
	}
}

// CreatePending регистрирует отложенную покупку и возвращает платёжное
// намерение для перенаправления покупателя.
func (s *PaymentService) CreatePending(ctx context.Context, dealID, buyerID uuid.UUID, amountDue float64) (*models.PaymentIntent, error) {
	ttl := time.Duration(s.cfg.PendingTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}

	now := time.Now()
	pending := models.PendingPurchase{
		Reference: uuid.New().String(),
		DealID:    dealID,
		BuyerID:   buyerID,
		AmountDue: amountDue,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	key := redis.GenerateKey(redis.KeyPrefixPending, pending.Reference)
	if err := s.redis.Set(ctx, key, pending, ttl); err != nil {
		return nil, fmt.Errorf("failed to store pending purchase: %w", err)
	}

	intent, err := s.buildIntent(ctx, &pending)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(map[string]interface{}{
		"reference": pending.Reference,
		"deal_id":   dealID,
		"amount":    amountDue,
	}).Info("Pending purchase created")

	return intent, nil
}

// ConsumePending атомарно забирает отложенную покупку по ссылке. Повторное
// подтверждение той же ссылки получает apperror.NotFound. Срок сравнивается
// явно по ExpiresAt, TTL ключа в Redis — только уборка мусора.
func (s *PaymentService) ConsumePending(ctx context.Context, reference string) (*models.PendingPurchase, error) {
	if reference == "" {
		return nil, apperror.Validation("payment reference is required", nil)
	}

	key := redis.GenerateKey(redis.KeyPrefixPending, reference)

	var pending models.PendingPurchase
	if err := s.redis.GetDel(ctx, key, &pending); err != nil {
		return nil, apperror.NotFound("pending purchase not found", err)
	}

	if time.Now().After(pending.ExpiresAt) {
		return nil, apperror.Conflict("pending purchase has expired", nil)
	}

	return &pending, nil
}

// buildIntent строит платёжное намерение выбранным провайдером. Сбой внешнего
// шлюза откатывается на offline-форму, покупка при этом уже зарегистрирована.
func (s *PaymentService) buildIntent(ctx context.Context, pending *models.PendingPurchase) (*models.PaymentIntent, error) {
	if strings.EqualFold(s.cfg.Provider, "gateway") && s.cfg.GatewayURL != "" {
		intent, err := s.gatewayIntent(ctx, pending)
		if err != nil {
			s.log.WithError(err).WithField("reference", pending.Reference).Warn("Payment gateway failed, fallback to offline form")
			return s.offlineIntent(pending), nil
		}
		return intent, nil
	}
	return s.offlineIntent(pending), nil
}

// offlineIntent строит детерминированную форму без внешних вызовов.
func (s *PaymentService) offlineIntent(pending *models.PendingPurchase) *models.PaymentIntent {
	return &models.PaymentIntent{
		Reference:  pending.Reference,
		PaymentURL: "/api/payments/confirm",
		FormFields: map[string]string{
			"merchant_id": s.cfg.MerchantID,
			"reference":   pending.Reference,
			"amount":      fmt.Sprintf("%.2f", pending.AmountDue),
		},
		AmountDue: pending.AmountDue,
		ExpiresAt: pending.ExpiresAt,
	}
}

// gatewayIntent регистрирует платёж во внешнем шлюзе.
func (s *PaymentService) gatewayIntent(ctx context.Context, pending *models.PendingPurchase) (*models.PaymentIntent, error) {
	payload := map[string]interface{}{
		"merchant_id": s.cfg.MerchantID,
		"reference":   pending.Reference,
		"amount":      pending.AmountDue,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.GatewayURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call payment gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("payment gateway returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var data gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}
	if data.PaymentURL == "" {
		return nil, fmt.Errorf("payment gateway returned empty payment url")
	}

	return &models.PaymentIntent{
		Reference:  pending.Reference,
		PaymentURL: data.PaymentURL,
		FormFields: data.FormFields,
		AmountDue:  pending.AmountDue,
		ExpiresAt:  pending.ExpiresAt,
	}, nil
}

type gatewayResponse struct {
	PaymentURL string            `json:"payment_url"`
	FormFields map[string]string `json:"form_fields"`
}
