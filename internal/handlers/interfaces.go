package handlers

import (
	"context"

	"dealhub/internal/models"
	"dealhub/internal/services"

	"github.com/google/uuid"
)

// ----- Deals -----

type DealService interface {
	CreateDeal(ctx context.Context, req *models.CreateDealRequest) (*models.Deal, error)
	GetDeal(ctx context.Context, dealID uuid.UUID) (*models.Deal, error)
	GetDeals(ctx context.Context, status *models.DealStatus, category *string, limit, offset int) ([]*models.Deal, error)
	UpdateDealStatus(ctx context.Context, dealID uuid.UUID, req *models.UpdateDealStatusRequest) error
	IncrementViewCount(ctx context.Context, dealID uuid.UUID) error
}

// ----- Coupons -----

type CouponService interface {
	Issue(ctx context.Context, req *models.IssueCouponRequest) (*models.IssuanceResult, error)
	ConfirmPayment(ctx context.Context, reference string) (*models.Coupon, error)
	Validate(ctx context.Context, code string) (*models.RedemptionResult, error)
	Redeem(ctx context.Context, req *models.RedeemRequest) (*models.RedemptionResult, error)
}

// ----- Analytics -----

type AnalyticsProvider interface {
	GetCouponKPIs(ctx context.Context, filter *models.AnalyticsFilter) (*models.CouponKPIs, error)
}

// ----- Rate limiting -----

type RateLimitProvider interface {
	Allow(ctx context.Context, clientIP string) (*services.RateDecision, error)
	Usage(ctx context.Context, clientIP string) (*services.RateDecision, error)
	Enabled() bool
}

// ----- Health -----

type DBHealth interface {
	Health() error
}

type RedisHealth interface {
	Health(ctx context.Context) error
}
