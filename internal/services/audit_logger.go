package services

import (
	"context"
	"time"

	"dealhub/internal/logger"
	"dealhub/internal/models"
	"dealhub/internal/store"

	"github.com/google/uuid"
)

// RedemptionPublisher — часть Kafka producer, нужная журналу аудита.
type RedemptionPublisher interface {
	PublishCouponRedeemed(coupon *models.Coupon, location string) error
	PublishRedemptionRejected(code string, outcome models.RedemptionOutcome, reason, location string) error
}

// AuditLogger пишет журнал попыток погашения: запись в хранилище плюс событие
// в Kafka. Оба шага best-effort — сбой аудита логируется и не блокирует
// погашение. Исход для оператора уже определён к моменту записи.
type AuditLogger struct {
	store    store.CouponStore
	producer RedemptionPublisher
	log      *logger.Logger
}

// NewAuditLogger создаёт журнал аудита. producer может быть nil, тогда события
// не публикуются.
func NewAuditLogger(couponStore store.CouponStore, producer RedemptionPublisher, log *logger.Logger) *AuditLogger {
	return &AuditLogger{
		store:    couponStore,
		producer: producer,
		log:      log,
	}
}

// RecordSuccess записывает успешное погашение.
func (a *AuditLogger) RecordSuccess(ctx context.Context, coupon *models.Coupon, req *models.RedeemRequest, at time.Time) {
	attempt := &models.RedemptionAttempt{
		ID:          uuid.New(),
		Code:        coupon.Code,
		AttemptedAt: at,
		Success:     true,
		Location:    req.Location,
		RequesterIP: req.RequesterIP,
		UserAgent:   req.UserAgent,
	}
	a.append(ctx, attempt)

	if a.producer == nil {
		return
	}
	if err := a.producer.PublishCouponRedeemed(coupon, req.Location); err != nil {
		a.log.WithError(err).WithField("code", coupon.Code).Warn("Failed to publish coupon redeemed event")
	}
}

// RecordFailure записывает отклонённую попытку. Код берётся из запроса: для
// невалидных кодов купона не существует.
func (a *AuditLogger) RecordFailure(ctx context.Context, outcome models.RedemptionOutcome, reason string, req *models.RedeemRequest, at time.Time) {
	attempt := &models.RedemptionAttempt{
		ID:            uuid.New(),
		Code:          req.Code,
		AttemptedAt:   at,
		Success:       false,
		Location:      req.Location,
		FailureReason: &reason,
		RequesterIP:   req.RequesterIP,
		UserAgent:     req.UserAgent,
	}
	a.append(ctx, attempt)

	if a.producer == nil {
		return
	}
	if err := a.producer.PublishRedemptionRejected(req.Code, outcome, reason, req.Location); err != nil {
		a.log.WithError(err).WithField("code", req.Code).Warn("Failed to publish redemption rejected event")
	}
}

func (a *AuditLogger) append(ctx context.Context, attempt *models.RedemptionAttempt) {
	if err := a.store.AppendAttempt(ctx, attempt); err != nil {
		a.log.WithError(err).WithFields(map[string]interface{}{
			"code":    attempt.Code,
			"success": attempt.Success,
		}).Error("Failed to append redemption attempt")
	}
}
