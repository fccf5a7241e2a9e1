package services

import (
	"context"
	"fmt"
	"time"

	"dealhub/internal/apperror"
	"dealhub/internal/config"
	"dealhub/internal/database"
	"dealhub/internal/logger"
	"dealhub/internal/models"
	"dealhub/internal/redis"
)

const (
	DefaultTopDealLimit  = 5
	defaultStatsCacheTTL = 10 * time.Minute
	defaultMaxRangeDays  = 365
)

// AnalyticsService агрегирует показатели купонной подсистемы и кеширует
// тяжёлые выборки в Redis.
type AnalyticsService struct {
	db             *database.DB
	redis          *redis.Client
	log            *logger.Logger
	cacheTTL       time.Duration
	maxRangeDays   int
	defaultTop     int
	defaultGroupBy models.AnalyticsGroupBy
}

// NewAnalyticsService создает новый сервис аналитики.
func NewAnalyticsService(db *database.DB, redisClient *redis.Client, log *logger.Logger, cfg *config.AnalyticsConfig) *AnalyticsService {
	cacheTTL := defaultStatsCacheTTL
	maxRange := defaultMaxRangeDays
	defaultTop := DefaultTopDealLimit
	groupBy := models.AnalyticsGroupNone

	if cfg != nil {
		if cfg.CacheTTLMinutes > 0 {
			cacheTTL = time.Duration(cfg.CacheTTLMinutes) * time.Minute
		}
		if cfg.MaxRangeDays > 0 {
			maxRange = cfg.MaxRangeDays
		}
		if cfg.DefaultTopDealLimit > 0 {
			defaultTop = cfg.DefaultTopDealLimit
		}
		switch models.AnalyticsGroupBy(cfg.DefaultGroupBy) {
		case models.AnalyticsGroupDay, models.AnalyticsGroupWeek, models.AnalyticsGroupMonth, models.AnalyticsGroupNone:
			groupBy = models.AnalyticsGroupBy(cfg.DefaultGroupBy)
		}
	}

	return &AnalyticsService{
		db:             db,
		redis:          redisClient,
		log:            log,
		cacheTTL:       cacheTTL,
		maxRangeDays:   maxRange,
		defaultTop:     defaultTop,
		defaultGroupBy: groupBy,
	}
}

// GetCouponKPIs возвращает агрегированные показатели купонов за интервал.
func (s *AnalyticsService) GetCouponKPIs(ctx context.Context, filter *models.AnalyticsFilter) (*models.CouponKPIs, error) {
	filter, err := s.normalizeFilter(filter)
	if err != nil {
		return nil, err
	}

	cacheKey := s.buildCacheKey(filter)
	var cached models.CouponKPIs
	if s.tryGetFromCache(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	summary, err := s.fetchSummary(ctx, filter)
	if err != nil {
		return nil, err
	}

	topDeals, err := s.fetchTopDeals(ctx, filter)
	if err != nil {
		return nil, err
	}

	periods, err := s.fetchPeriods(ctx, filter)
	if err != nil {
		return nil, err
	}

	result := &models.CouponKPIs{
		From:           filter.From,
		To:             filter.To,
		Issued:         summary.Issued,
		Redeemed:       summary.Redeemed,
		RedemptionRate: redemptionRate(summary.Issued, summary.Redeemed),
		Revenue:        summary.Revenue,
		FailedAttempts: summary.FailedAttempts,
		TopDeals:       topDeals,
		Periods:        periods,
		GroupBy:        string(filter.GroupBy),
		GeneratedAt:    time.Now(),
	}

	s.saveToCache(ctx, cacheKey, result)
	return result, nil
}

// InvalidateCache сбрасывает весь кеш аналитики. Вызывается обработчиком
// события coupon.redeemed.
func (s *AnalyticsService) InvalidateCache(ctx context.Context) {
	if s.redis == nil {
		return
	}
	if err := s.redis.DeleteByPrefix(ctx, redis.KeyPrefixStats); err != nil {
		s.log.WithError(err).Warn("Failed to invalidate analytics cache")
	}
}

type couponSummary struct {
	Issued         int
	Redeemed       int
	Revenue        float64
	FailedAttempts int
}

func (s *AnalyticsService) fetchSummary(ctx context.Context, filter *models.AnalyticsFilter) (*couponSummary, error) {
	summary := &couponSummary{}

	query := `
		SELECT COUNT(*) AS issued,
		       COUNT(*) FILTER (WHERE status = 'redeemed') AS redeemed,
		       COALESCE(SUM(issue_price), 0) AS revenue
		FROM coupons
		WHERE issued_at BETWEEN $1 AND $2
	`
	row := s.db.QueryRowContext(ctx, query, filter.From, filter.To)
	if err := row.Scan(&summary.Issued, &summary.Redeemed, &summary.Revenue); err != nil {
		return nil, fmt.Errorf("failed to load coupon summary: %w", err)
	}

	attemptsQuery := `
		SELECT COUNT(*)
		FROM redemption_attempts
		WHERE success = false AND attempted_at BETWEEN $1 AND $2
	`
	row = s.db.QueryRowContext(ctx, attemptsQuery, filter.From, filter.To)
	if err := row.Scan(&summary.FailedAttempts); err != nil {
		return nil, fmt.Errorf("failed to load failed attempts count: %w", err)
	}

	return summary, nil
}

func (s *AnalyticsService) fetchTopDeals(ctx context.Context, filter *models.AnalyticsFilter) ([]models.TopDeal, error) {
	query := `
		SELECT d.id,
		       d.title,
		       COUNT(c.id) AS issued,
		       COUNT(c.id) FILTER (WHERE c.status = 'redeemed') AS redeemed,
		       COALESCE(SUM(c.issue_price), 0) AS revenue
		FROM deals d
		JOIN coupons c ON c.deal_id = d.id AND c.issued_at BETWEEN $1 AND $2
		GROUP BY d.id, d.title
		ORDER BY redeemed DESC, issued DESC, d.title ASC
		LIMIT $3
	`

	rows, err := s.db.QueryContext(ctx, query, filter.From, filter.To, filter.TopDealLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load top deals: %w", err)
	}
	defer rows.Close()

	var result []models.TopDeal
	for rows.Next() {
		var item models.TopDeal
		if err := rows.Scan(&item.DealID, &item.Title, &item.Issued, &item.Redeemed, &item.Revenue); err != nil {
			return nil, fmt.Errorf("failed to scan top deal: %w", err)
		}
		result = append(result, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate top deals: %w", err)
	}

	return result, nil
}

func (s *AnalyticsService) fetchPeriods(ctx context.Context, filter *models.AnalyticsFilter) ([]models.CouponPeriod, error) {
	if filter.GroupBy == models.AnalyticsGroupNone {
		return nil, nil
	}

	periodExpr := "date_trunc('day', issued_at)"
	switch filter.GroupBy {
	case models.AnalyticsGroupWeek:
		periodExpr = "date_trunc('week', issued_at)"
	case models.AnalyticsGroupMonth:
		periodExpr = "date_trunc('month', issued_at)"
	}

	query := fmt.Sprintf(`
		SELECT %s AS period,
		       COUNT(*) AS issued,
		       COUNT(*) FILTER (WHERE status = 'redeemed') AS redeemed,
		       COALESCE(SUM(issue_price), 0) AS revenue
		FROM coupons
		WHERE issued_at BETWEEN $1 AND $2
		GROUP BY period
		ORDER BY period ASC
	`, periodExpr)

	rows, err := s.db.QueryContext(ctx, query, filter.From, filter.To)
	if err != nil {
		return nil, fmt.Errorf("failed to load coupon periods: %w", err)
	}
	defer rows.Close()

	var result []models.CouponPeriod
	for rows.Next() {
		var (
			periodTime time.Time
			item       models.CouponPeriod
		)
		if err := rows.Scan(&periodTime, &item.Issued, &item.Redeemed, &item.Revenue); err != nil {
			return nil, fmt.Errorf("failed to scan coupon period: %w", err)
		}
		item.Period = formatPeriod(periodTime, filter.GroupBy)
		result = append(result, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate coupon periods: %w", err)
	}

	return result, nil
}

func (s *AnalyticsService) normalizeFilter(filter *models.AnalyticsFilter) (*models.AnalyticsFilter, error) {
	if filter == nil {
		filter = &models.AnalyticsFilter{}
	}
	if filter.To.IsZero() {
		filter.To = time.Now()
	}
	if filter.From.IsZero() {
		filter.From = filter.To.AddDate(0, 0, -30)
	}
	if filter.From.After(filter.To) {
		return nil, apperror.Validation("from must be before to", nil)
	}
	if filter.To.Sub(filter.From) > time.Duration(s.maxRangeDays)*24*time.Hour {
		return nil, apperror.Validation(fmt.Sprintf("date range must not exceed %d days", s.maxRangeDays), nil)
	}
	if filter.TopDealLimit <= 0 {
		filter.TopDealLimit = s.defaultTop
	}
	if filter.GroupBy == "" {
		filter.GroupBy = s.defaultGroupBy
	}
	switch filter.GroupBy {
	case models.AnalyticsGroupNone, models.AnalyticsGroupDay, models.AnalyticsGroupWeek, models.AnalyticsGroupMonth:
	default:
		return nil, apperror.Validation("group_by must be none, day, week or month", nil)
	}
	return filter, nil
}

func (s *AnalyticsService) buildCacheKey(filter *models.AnalyticsFilter) string {
	return redis.GenerateKey(redis.KeyPrefixStats, fmt.Sprintf(
		"coupons:%s:%s:%s:%d",
		filter.From.Format("2006-01-02"),
		filter.To.Format("2006-01-02"),
		filter.GroupBy,
		filter.TopDealLimit,
	))
}

func (s *AnalyticsService) tryGetFromCache(ctx context.Context, key string, dest interface{}) bool {
	if s.redis == nil {
		return false
	}
	if err := s.redis.Get(ctx, key, dest); err != nil {
		return false
	}
	return true
}

func (s *AnalyticsService) saveToCache(ctx context.Context, key string, value interface{}) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("Failed to cache analytics result")
	}
}

func redemptionRate(issued, redeemed int) float64 {
	if issued == 0 {
		return 0
	}
	return float64(redeemed) / float64(issued)
}

func formatPeriod(period time.Time, groupBy models.AnalyticsGroupBy) string {
	switch groupBy {
	case models.AnalyticsGroupMonth:
		return period.Format("2006-01")
	default:
		return period.Format("2006-01-02")
	}
}
