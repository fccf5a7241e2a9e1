package services

import (
	"strings"
	"testing"
	"time"

	"dealhub/internal/models"

	"github.com/google/uuid"
)

func validatorCoupon(status models.CouponStatus) *models.Coupon {
	expires := time.Now().Add(24 * time.Hour)
	return &models.Coupon{
		ID:        uuid.New(),
		Code:      "DEAL-7XK2MQ",
		DealID:    uuid.New(),
		BuyerID:   uuid.New(),
		Status:    status,
		IssuedAt:  time.Now().Add(-time.Hour),
		ExpiresAt: &expires,
	}
}

func TestEvaluate_NotFound(t *testing.T) {
	v := NewRedemptionValidator()

	result := v.Evaluate(nil, time.Now())

	if result.Valid {
		t.Error("Expected Valid to be false for unknown code")
	}
	if result.CanRedeem {
		t.Error("Expected CanRedeem to be false for unknown code")
	}
	if result.Outcome != models.OutcomeInvalid {
		t.Errorf("Expected outcome %s, got %s", models.OutcomeInvalid, result.Outcome)
	}
	if result.Reason != "Invalid coupon code" {
		t.Errorf("Unexpected reason: %s", result.Reason)
	}
}

func TestEvaluate_Ready(t *testing.T) {
	v := NewRedemptionValidator()
	coupon := validatorCoupon(models.CouponStatusActive)

	result := v.Evaluate(coupon, time.Now())

	if !result.Valid {
		t.Error("Expected Valid to be true")
	}
	if !result.CanRedeem {
		t.Error("Expected CanRedeem to be true")
	}
	if result.Outcome != models.OutcomeReady {
		t.Errorf("Expected outcome %s, got %s", models.OutcomeReady, result.Outcome)
	}
	if result.Coupon != coupon {
		t.Error("Expected coupon to be echoed back in the result")
	}
}

func TestEvaluate_AlreadyRedeemed(t *testing.T) {
	v := NewRedemptionValidator()
	coupon := validatorCoupon(models.CouponStatusRedeemed)
	redeemedAt := time.Date(2026, 2, 14, 12, 30, 0, 0, time.UTC)
	location := "Berlin HQ"
	coupon.RedeemedAt = &redeemedAt
	coupon.RedemptionLocation = &location

	result := v.Evaluate(coupon, time.Now())

	if result.CanRedeem {
		t.Error("Expected CanRedeem to be false")
	}
	if result.Outcome != models.OutcomeAlreadyRedeemed {
		t.Errorf("Expected outcome %s, got %s", models.OutcomeAlreadyRedeemed, result.Outcome)
	}
	if result.Reason != "Already used on 2026-02-14 12:30 at Berlin HQ" {
		t.Errorf("Unexpected reason: %s", result.Reason)
	}
}

func TestEvaluate_AlreadyRedeemed_MissingDetails(t *testing.T) {
	v := NewRedemptionValidator()
	coupon := validatorCoupon(models.CouponStatusRedeemed)

	result := v.Evaluate(coupon, time.Now())

	if !strings.Contains(result.Reason, "unknown time") || !strings.Contains(result.Reason, "unknown location") {
		t.Errorf("Expected placeholders for missing details, got: %s", result.Reason)
	}
}

func TestEvaluate_Expired_ByStatus(t *testing.T) {
	v := NewRedemptionValidator()
	coupon := validatorCoupon(models.CouponStatusExpired)
	expires := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	coupon.ExpiresAt = &expires

	result := v.Evaluate(coupon, time.Now())

	if result.Outcome != models.OutcomeExpired {
		t.Errorf("Expected outcome %s, got %s", models.OutcomeExpired, result.Outcome)
	}
	if result.Reason != "Coupon expired on 2026-03-01" {
		t.Errorf("Unexpected reason: %s", result.Reason)
	}
}

func TestEvaluate_Expired_ByClock(t *testing.T) {
	// Статус ещё active, но срок уже вышел: лениво считаем просроченным.
	v := NewRedemptionValidator()
	coupon := validatorCoupon(models.CouponStatusActive)
	expires := time.Now().Add(-time.Minute)
	coupon.ExpiresAt = &expires

	result := v.Evaluate(coupon, time.Now())

	if result.CanRedeem {
		t.Error("Expected CanRedeem to be false for an expired coupon")
	}
	if result.Outcome != models.OutcomeExpired {
		t.Errorf("Expected outcome %s, got %s", models.OutcomeExpired, result.Outcome)
	}
}

func TestEvaluate_RedeemedBeatsExpired(t *testing.T) {
	// Купон и погашен, и просрочен: оператор должен увидеть факт
	// повторного использования, а не просрочку.
	v := NewRedemptionValidator()
	coupon := validatorCoupon(models.CouponStatusRedeemed)
	expires := time.Now().Add(-48 * time.Hour)
	coupon.ExpiresAt = &expires

	result := v.Evaluate(coupon, time.Now())

	if result.Outcome != models.OutcomeAlreadyRedeemed {
		t.Errorf("Expected outcome %s, got %s", models.OutcomeAlreadyRedeemed, result.Outcome)
	}
}

func TestEvaluate_NoExpiry(t *testing.T) {
	v := NewRedemptionValidator()
	coupon := validatorCoupon(models.CouponStatusActive)
	coupon.ExpiresAt = nil

	result := v.Evaluate(coupon, time.Now())

	if !result.CanRedeem {
		t.Error("Expected a coupon without expiry to be redeemable")
	}
}
