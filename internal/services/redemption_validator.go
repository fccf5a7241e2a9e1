package services

import (
	"fmt"
	"time"

	"dealhub/internal/models"
)

// Сообщения, которые видит оператор в точке продаж.
const (
	msgInvalidCode = "Invalid coupon code"
)

// RedemptionValidator — машина состояний проверки погашения. Чистая функция
// от (купон, момент времени): хранилище не трогает, исход возвращает
// структурой.
//
// Порядок проверок фиксирован: not found -> already redeemed -> expired ->
// ready. Купон, который одновременно погашен и просрочен, сообщается как
// already redeemed, а не expired: факт погашения специфичнее и точнее
// показывает оператору попытку повторного использования. Порядок менять
// нельзя — от него зависит диагностика в точке продаж.
type RedemptionValidator struct{}

// NewRedemptionValidator создаёт валидатор.
func NewRedemptionValidator() *RedemptionValidator {
	return &RedemptionValidator{}
}

// Evaluate возвращает исход проверки для купона. coupon == nil означает, что
// код не найден в хранилище.
func (v *RedemptionValidator) Evaluate(coupon *models.Coupon, now time.Time) models.RedemptionResult {
	if coupon == nil {
		return models.RedemptionResult{
			Valid:     false,
			CanRedeem: false,
			Outcome:   models.OutcomeInvalid,
			Reason:    msgInvalidCode,
		}
	}

	if coupon.Status == models.CouponStatusRedeemed {
		return models.RedemptionResult{
			Valid:     true,
			CanRedeem: false,
			Outcome:   models.OutcomeAlreadyRedeemed,
			Reason:    alreadyRedeemedMessage(coupon),
			Coupon:    coupon,
		}
	}

	if coupon.Status == models.CouponStatusExpired || (coupon.ExpiresAt != nil && now.After(*coupon.ExpiresAt)) {
		return models.RedemptionResult{
			Valid:     true,
			CanRedeem: false,
			Outcome:   models.OutcomeExpired,
			Reason:    expiredMessage(coupon),
			Coupon:    coupon,
		}
	}

	return models.RedemptionResult{
		Valid:     true,
		CanRedeem: true,
		Outcome:   models.OutcomeReady,
		Coupon:    coupon,
	}
}

func alreadyRedeemedMessage(coupon *models.Coupon) string {
	when := "unknown time"
	if coupon.RedeemedAt != nil {
		when = coupon.RedeemedAt.Format("2006-01-02 15:04")
	}
	where := "unknown location"
	if coupon.RedemptionLocation != nil {
		where = *coupon.RedemptionLocation
	}
	return fmt.Sprintf("Already used on %s at %s", when, where)
}

func expiredMessage(coupon *models.Coupon) string {
	if coupon.ExpiresAt != nil {
		return fmt.Sprintf("Coupon expired on %s", coupon.ExpiresAt.Format("2006-01-02"))
	}
	return "Coupon expired"
}
