package services

import (
	"context"
	"fmt"
	"time"

	"dealhub/internal/apperror"
	"dealhub/internal/config"
	"dealhub/internal/logger"
	"dealhub/internal/models"
	"dealhub/internal/store"

	"github.com/google/uuid"
)

// DealGetter — часть каталога, нужная купонной подсистеме: только чтение.
type DealGetter interface {
	GetDeal(ctx context.Context, dealID uuid.UUID) (*models.Deal, error)
}

// PaymentCoordinator — граница с платёжным сервисом на платном пути.
type PaymentCoordinator interface {
	CreatePending(ctx context.Context, dealID, buyerID uuid.UUID, amountDue float64) (*models.PaymentIntent, error)
	ConsumePending(ctx context.Context, reference string) (*models.PendingPurchase, error)
}

// CouponPublisher — часть Kafka producer, нужная при выпуске купона.
type CouponPublisher interface {
	PublishCouponIssued(coupon *models.Coupon) error
}

// CouponService — выпуск и погашение купонов. Бизнес-исходы погашения
// возвращаются структурой RedemptionResult, ошибками наружу уходит только
// инфраструктура.
type CouponService struct {
	store     store.CouponStore
	deals     DealGetter
	pricing   *PricingService
	codes     *CodeGenerator
	validator *RedemptionValidator
	audit     *AuditLogger
	payments  PaymentCoordinator
	producer  CouponPublisher
	log       *logger.Logger
	cfg       *config.CouponConfig
}

// NewCouponService создает сервис купонов. producer может быть nil.
func NewCouponService(
	couponStore store.CouponStore,
	deals DealGetter,
	pricing *PricingService,
	codes *CodeGenerator,
	validator *RedemptionValidator,
	audit *AuditLogger,
	payments PaymentCoordinator,
	producer CouponPublisher,
	log *logger.Logger,
	cfg *config.CouponConfig,
) *CouponService {
	return &CouponService{
		store:     couponStore,
		deals:     deals,
		pricing:   pricing,
		codes:     codes,
		validator: validator,
		audit:     audit,
		payments:  payments,
		producer:  producer,
		log:       log,
		cfg:       cfg,
	}
}

// Issue выпускает купон на предложение. В промо-период купон создаётся сразу,
// после него покупатель перенаправляется к платёжному провайдеру, а купон
// будет создан в ConfirmPayment. Цена всегда пересчитывается в момент запроса.
func (s *CouponService) Issue(ctx context.Context, req *models.IssueCouponRequest) (*models.IssuanceResult, error) {
	if req.DealID == uuid.Nil {
		return nil, apperror.Validation("deal_id is required", nil)
	}
	if req.BuyerID == uuid.Nil {
		return nil, apperror.Validation("buyer_id is required", nil)
	}

	deal, err := s.deals.GetDeal(ctx, req.DealID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := checkDealAvailable(deal, now); err != nil {
		return nil, err
	}

	quote := s.pricing.Quote(deal, now)
	if quote.Promotional {
		coupon, err := s.createCoupon(ctx, deal.ID, req.BuyerID, quote.AmountDue, true, now)
		if err != nil {
			return nil, err
		}
		return &models.IssuanceResult{Promotional: true, Coupon: coupon}, nil
	}

	intent, err := s.payments.CreatePending(ctx, deal.ID, req.BuyerID, quote.AmountDue)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(map[string]interface{}{
		"deal_id":   deal.ID,
		"buyer_id":  req.BuyerID,
		"reference": intent.Reference,
		"amount":    intent.AmountDue,
	}).Info("Paid issuance deferred to payment provider")

	return &models.IssuanceResult{Promotional: false, Payment: intent}, nil
}

// ConfirmPayment выпускает купон по подтверждённой оплате. Отложенная покупка
// потребляется ровно один раз; повторное подтверждение получает not_found.
func (s *CouponService) ConfirmPayment(ctx context.Context, reference string) (*models.Coupon, error) {
	pending, err := s.payments.ConsumePending(ctx, reference)
	if err != nil {
		return nil, err
	}

	deal, err := s.deals.GetDeal(ctx, pending.DealID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := checkDealAvailable(deal, now); err != nil {
		return nil, err
	}

	// Цена зафиксирована в отложенной покупке: покупатель платил именно её.
	return s.createCoupon(ctx, pending.DealID, pending.BuyerID, pending.AmountDue, false, now)
}

// Validate проверяет купон без побочных эффектов: ни аудита, ни смены статуса.
func (s *CouponService) Validate(ctx context.Context, code string) (*models.RedemptionResult, error) {
	coupon, err := s.store.GetByCode(ctx, code)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			result := s.validator.Evaluate(nil, time.Now())
			return &result, nil
		}
		return nil, err
	}

	result := s.validator.Evaluate(coupon, time.Now())
	return &result, nil
}

// Redeem погашает купон в точке продаж. Любой бизнес-исход (включая отказ)
// возвращается структурой и записывается в журнал аудита; ошибкой наружу
// уходят только сбои инфраструктуры, произошедшие до определения исхода.
func (s *CouponService) Redeem(ctx context.Context, req *models.RedeemRequest) (*models.RedemptionResult, error) {
	if req.Code == "" {
		return nil, apperror.Validation("code is required", nil)
	}
	if req.Location == "" {
		return nil, apperror.Validation("location is required", nil)
	}

	now := time.Now()

	coupon, err := s.store.GetByCode(ctx, req.Code)
	if err != nil && !apperror.Is(err, apperror.KindNotFound) {
		return nil, err
	}

	result := s.validator.Evaluate(coupon, now)
	if !result.CanRedeem {
		s.finishRejected(ctx, &result, req, now)
		return &result, nil
	}

	redeemed, err := s.store.MarkRedeemed(ctx, req.Code, req.Location, req.Notes, now)
	if err != nil {
		if apperror.Is(err, apperror.KindConflict) {
			// Проиграли гонку: перечитываем купон и сообщаем данные победителя.
			winner, getErr := s.store.GetByCode(ctx, req.Code)
			if getErr != nil {
				return nil, getErr
			}
			result = s.validator.Evaluate(winner, now)
			s.finishRejected(ctx, &result, req, now)
			return &result, nil
		}
		return nil, err
	}

	result = models.RedemptionResult{
		Valid:     true,
		CanRedeem: true,
		Outcome:   models.OutcomeReady,
		Coupon:    redeemed,
	}
	s.audit.RecordSuccess(ctx, redeemed, req, now)

	s.log.WithFields(map[string]interface{}{
		"code":     req.Code,
		"location": req.Location,
	}).Info("Coupon redeemed")

	return &result, nil
}

// finishRejected записывает отклонённую попытку и лениво помечает купон
// просроченным, если срок вышел, а статус ещё active.
func (s *CouponService) finishRejected(ctx context.Context, result *models.RedemptionResult, req *models.RedeemRequest, now time.Time) {
	if result.Outcome == models.OutcomeExpired && result.Coupon != nil && result.Coupon.Status == models.CouponStatusActive {
		if err := s.store.MarkExpired(ctx, req.Code, now); err != nil {
			s.log.WithError(err).WithField("code", req.Code).Warn("Failed to mark coupon expired")
		}
	}
	s.audit.RecordFailure(ctx, result.Outcome, result.Reason, req, now)
}

// createCoupon создает купон, подбирая уникальный код с ограниченным числом
// попыток. Конфликт кода — единственная причина повтора; исчерпание попыток
// считается сбоем инфраструктуры.
func (s *CouponService) createCoupon(ctx context.Context, dealID, buyerID uuid.UUID, issuePrice float64, promotional bool, now time.Time) (*models.Coupon, error) {
	validity := time.Duration(s.cfg.ValidityDays) * 24 * time.Hour
	if validity <= 0 {
		validity = 90 * 24 * time.Hour
	}
	expiresAt := now.Add(validity)

	retries := s.cfg.MaxCodeRetries
	if retries <= 0 {
		retries = 5
	}

	for attempt := 0; attempt < retries; attempt++ {
		code, err := s.codes.Generate()
		if err != nil {
			return nil, fmt.Errorf("failed to generate coupon code: %w", err)
		}

		coupon := &models.Coupon{
			ID:          uuid.New(),
			Code:        code,
			DealID:      dealID,
			BuyerID:     buyerID,
			IssuePrice:  issuePrice,
			Promotional: promotional,
			Status:      models.CouponStatusActive,
			IssuedAt:    now,
			ExpiresAt:   &expiresAt,
		}

		err = s.store.Create(ctx, coupon)
		if err == nil {
			if s.producer != nil {
				if pubErr := s.producer.PublishCouponIssued(coupon); pubErr != nil {
					s.log.WithError(pubErr).WithField("code", code).Warn("Failed to publish coupon issued event")
				}
			}

			s.log.WithFields(map[string]interface{}{
				"code":        code,
				"deal_id":     dealID,
				"buyer_id":    buyerID,
				"promotional": promotional,
			}).Info("Coupon issued")

			return coupon, nil
		}

		if apperror.Is(err, apperror.KindConflict) {
			s.log.WithField("code", code).Debug("Coupon code collision, retrying")
			continue
		}
		return nil, err
	}

	return nil, apperror.Unavailable("failed to generate a unique coupon code", nil)
}

// checkDealAvailable проверяет, что предложение доступно для выпуска купонов.
func checkDealAvailable(deal *models.Deal, now time.Time) error {
	if deal.Status == models.DealStatusInactive {
		return apperror.Conflict("deal is not active", nil)
	}
	if deal.Status == models.DealStatusExpired {
		return apperror.Conflict("deal has expired", nil)
	}
	if deal.ExpiresAt != nil && now.After(*deal.ExpiresAt) {
		return apperror.Conflict("deal has expired", nil)
	}
	return nil
}
