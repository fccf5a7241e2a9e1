package handlers

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dealhub/internal/config"
	"dealhub/internal/logger"
	"dealhub/internal/models"
)

const defaultTopDealFallback = 5

// AnalyticsHandler обрабатывает эндпоинты аналитики купонов.
type AnalyticsHandler struct {
	service AnalyticsProvider
	log     *logger.Logger
	cfg     *config.AnalyticsConfig
}

// NewAnalyticsHandler создает новый обработчик аналитики.
func NewAnalyticsHandler(service AnalyticsProvider, log *logger.Logger, cfg *config.AnalyticsConfig) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
		log:     log,
		cfg:     cfg,
	}
}

// GetCouponKPIs возвращает показатели купонов с возможностью экспорта в CSV.
func (h *AnalyticsHandler) GetCouponKPIs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	filter, format, err := parseAnalyticsFilter(r, h.cfg)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), analyticsTimeout(h.cfg))
	defer cancel()

	kpis, err := h.service.GetCouponKPIs(ctx, filter)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to load analytics")
		return
	}

	if format == "csv" {
		if err := writeCouponKPICSV(w, kpis); err != nil {
			h.log.WithError(err).Warn("Failed to stream KPI CSV")
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, kpis)
}

func parseAnalyticsFilter(r *http.Request, cfg *config.AnalyticsConfig) (*models.AnalyticsFilter, string, error) {
	query := r.URL.Query()
	now := time.Now().UTC()

	to := endOfDay(now)
	if toParam := query.Get("to"); toParam != "" {
		parsed, err := time.Parse("2006-01-02", toParam)
		if err != nil {
			return nil, "", fmt.Errorf("invalid 'to' date, expected YYYY-MM-DD")
		}
		to = endOfDay(parsed)
	}

	from := startOfDay(now.AddDate(0, 0, -30))
	if fromParam := query.Get("from"); fromParam != "" {
		parsed, err := time.Parse("2006-01-02", fromParam)
		if err != nil {
			return nil, "", fmt.Errorf("invalid 'from' date, expected YYYY-MM-DD")
		}
		from = startOfDay(parsed)
	}

	groupByStr := strings.ToLower(query.Get("group_by"))
	groupBy := models.AnalyticsGroupBy(groupByStr)
	switch groupBy {
	case "", models.AnalyticsGroupNone, models.AnalyticsGroupDay, models.AnalyticsGroupWeek, models.AnalyticsGroupMonth:
	default:
		return nil, "", fmt.Errorf("group_by must be one of: day, week, month, none")
	}

	topDefault := defaultTopDealFallback
	if cfg != nil && cfg.DefaultTopDealLimit > 0 {
		topDefault = cfg.DefaultTopDealLimit
	}

	format := strings.ToLower(query.Get("format"))
	if format != "" && format != "json" && format != "csv" {
		return nil, "", fmt.Errorf("format must be json or csv")
	}

	filter := &models.AnalyticsFilter{
		From:         from,
		To:           to,
		GroupBy:      groupBy,
		TopDealLimit: parseIntWithDefault(query.Get("top_limit"), topDefault),
	}

	return filter, format, nil
}

func parseIntWithDefault(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return defaultValue
	}

	return parsed
}

func writeCouponKPICSV(w http.ResponseWriter, kpis *models.CouponKPIs) error {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=coupon_kpis.csv")
	w.WriteHeader(http.StatusOK)

	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"section", "period", "issued", "redeemed", "revenue"})
	rangeLabel := fmt.Sprintf("%s..%s", kpis.From.Format("2006-01-02"), kpis.To.Format("2006-01-02"))
	_ = writer.Write([]string{"summary", rangeLabel, strconv.Itoa(kpis.Issued), strconv.Itoa(kpis.Redeemed), fmt.Sprintf("%.2f", kpis.Revenue)})

	for _, period := range kpis.Periods {
		_ = writer.Write([]string{"period", period.Period, strconv.Itoa(period.Issued), strconv.Itoa(period.Redeemed), fmt.Sprintf("%.2f", period.Revenue)})
	}

	_ = writer.Write([]string{})
	_ = writer.Write([]string{"section", "deal_title", "issued", "redeemed", "revenue"})
	for _, deal := range kpis.TopDeals {
		_ = writer.Write([]string{"top_deal", deal.Title, strconv.Itoa(deal.Issued), strconv.Itoa(deal.Redeemed), fmt.Sprintf("%.2f", deal.Revenue)})
	}

	writer.Flush()
	return writer.Error()
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Millisecond*999), time.UTC)
}

func analyticsTimeout(cfg *config.AnalyticsConfig) time.Duration {
	if cfg != nil && cfg.RequestTimeoutSeconds > 0 {
		return time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	}
	return 5 * time.Second
}
