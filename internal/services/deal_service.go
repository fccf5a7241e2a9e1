package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dealhub/internal/apperror"
	"dealhub/internal/database"
	"dealhub/internal/logger"
	"dealhub/internal/models"
	"dealhub/internal/redis"

	"github.com/google/uuid"
)

const dealCacheTTL = 5 * time.Minute

// DealPublisher — часть Kafka producer, нужная каталогу предложений.
type DealPublisher interface {
	PublishDealCreated(deal *models.Deal) error
	PublishDealStatusChanged(dealID uuid.UUID, oldStatus, newStatus models.DealStatus) error
}

// DealService представляет сервис каталога предложений. Купонная подсистема
// из предложения только читает цену и срок; единственные мутации со стороны
// купонов — счётчики просмотров и заявок.
type DealService struct {
	db       *database.DB
	redis    *redis.Client
	log      *logger.Logger
	producer DealPublisher
}

// NewDealService создает сервис каталога. producer может быть nil.
func NewDealService(db *database.DB, redisClient *redis.Client, log *logger.Logger, producer DealPublisher) *DealService {
	return &DealService{
		db:       db,
		redis:    redisClient,
		log:      log,
		producer: producer,
	}
}

// CreateDeal создает новое предложение.
func (s *DealService) CreateDeal(ctx context.Context, req *models.CreateDealRequest) (*models.Deal, error) {
	if req.SupplierID == uuid.Nil {
		return nil, apperror.Validation("supplier_id is required", nil)
	}
	if req.Title == "" {
		return nil, apperror.Validation("title is required", nil)
	}
	if req.Price <= 0 {
		return nil, apperror.Validation("price must be positive", nil)
	}
	if req.CreditsCost < 0 {
		return nil, apperror.Validation("credits_cost must not be negative", nil)
	}

	dealType := req.DealType
	if dealType == "" {
		dealType = models.DealTypeRegular
	}
	if dealType != models.DealTypeHot && dealType != models.DealTypeRegular {
		return nil, apperror.Validation("deal_type must be hot or regular", nil)
	}

	now := time.Now()
	deal := &models.Deal{
		ID:            uuid.New(),
		SupplierID:    req.SupplierID,
		Title:         req.Title,
		Description:   req.Description,
		Price:         req.Price,
		OriginalPrice: req.OriginalPrice,
		Category:      req.Category,
		DealType:      dealType,
		Status:        models.DealStatusActive,
		CreditsCost:   req.CreditsCost,
		ExpiresAt:     req.ExpiresAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	query := `
		INSERT INTO deals (id, supplier_id, title, description, price, original_price, category, deal_type, status, view_count, inquiry_count, credits_cost, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := s.db.ExecContext(ctx, query, deal.ID, deal.SupplierID, deal.Title, deal.Description,
		deal.Price, deal.OriginalPrice, deal.Category, deal.DealType, deal.Status,
		deal.ViewCount, deal.InquiryCount, deal.CreditsCost, deal.ExpiresAt, deal.CreatedAt, deal.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create deal: %w", err)
	}

	if s.producer != nil {
		if err := s.producer.PublishDealCreated(deal); err != nil {
			s.log.WithError(err).WithField("deal_id", deal.ID).Warn("Failed to publish deal created event")
		}
	}

	s.log.WithFields(map[string]interface{}{
		"deal_id":     deal.ID,
		"supplier_id": deal.SupplierID,
		"deal_type":   deal.DealType,
	}).Info("Deal created successfully")

	return deal, nil
}

// GetDeal получает предложение по ID, используя кеш Redis.
func (s *DealService) GetDeal(ctx context.Context, dealID uuid.UUID) (*models.Deal, error) {
	cacheKey := redis.GenerateKey(redis.KeyPrefixDeal, dealID.String())

	if s.redis != nil {
		var cached models.Deal
		if err := s.redis.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	deal := &models.Deal{}
	query := `
		SELECT id, supplier_id, title, description, price, original_price, category, deal_type,
		       status, view_count, inquiry_count, credits_cost, expires_at, created_at, updated_at
		FROM deals
		WHERE id = $1
	`
	err := s.db.QueryRowContext(ctx, query, dealID).Scan(
		&deal.ID, &deal.SupplierID, &deal.Title, &deal.Description, &deal.Price, &deal.OriginalPrice,
		&deal.Category, &deal.DealType, &deal.Status, &deal.ViewCount, &deal.InquiryCount,
		&deal.CreditsCost, &deal.ExpiresAt, &deal.CreatedAt, &deal.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("deal not found", err)
		}
		return nil, fmt.Errorf("failed to get deal: %w", err)
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, cacheKey, deal, dealCacheTTL); err != nil {
			s.log.WithError(err).WithField("deal_id", dealID).Warn("Failed to cache deal")
		}
	}

	return deal, nil
}

// GetDeals получает список предложений с фильтрацией.
func (s *DealService) GetDeals(ctx context.Context, status *models.DealStatus, category *string, limit, offset int) ([]*models.Deal, error) {
	query := `
		SELECT id, supplier_id, title, description, price, original_price, category, deal_type,
		       status, view_count, inquiry_count, credits_cost, expires_at, created_at, updated_at
		FROM deals
		WHERE 1=1
	`
	args := []interface{}{}
	argIndex := 1

	if status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, *status)
		argIndex++
	}

	if category != nil && *category != "" {
		query += fmt.Sprintf(" AND category = $%d", argIndex)
		args = append(args, *category)
		argIndex++
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, limit)
		argIndex++
	}

	if offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get deals: %w", err)
	}
	defer rows.Close()

	var deals []*models.Deal
	for rows.Next() {
		deal := &models.Deal{}
		if err := rows.Scan(&deal.ID, &deal.SupplierID, &deal.Title, &deal.Description,
			&deal.Price, &deal.OriginalPrice, &deal.Category, &deal.DealType, &deal.Status,
			&deal.ViewCount, &deal.InquiryCount, &deal.CreditsCost, &deal.ExpiresAt,
			&deal.CreatedAt, &deal.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deal: %w", err)
		}
		deals = append(deals, deal)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deals: %w", err)
	}

	return deals, nil
}

// UpdateDealStatus обновляет статус предложения. Статус expired терминальный.
func (s *DealService) UpdateDealStatus(ctx context.Context, dealID uuid.UUID, req *models.UpdateDealStatusRequest) error {
	if req == nil || req.Status == "" {
		return apperror.Validation("status is required", nil)
	}
	if req.Status != models.DealStatusActive && req.Status != models.DealStatusExpired && req.Status != models.DealStatusInactive {
		return apperror.Validation("status must be active, expired or inactive", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var currentStatus models.DealStatus
	selectQuery := `
		SELECT status
		FROM deals
		WHERE id = $1
		FOR UPDATE
	`
	if err := tx.QueryRowContext(ctx, selectQuery, dealID).Scan(&currentStatus); err != nil {
		if err == sql.ErrNoRows {
			return apperror.NotFound("deal not found", err)
		}
		return fmt.Errorf("failed to fetch deal status: %w", err)
	}

	if !isValidDealStatusTransition(currentStatus, req.Status) {
		return apperror.Conflict("invalid deal status transition", nil)
	}

	updateQuery := `
		UPDATE deals
		SET status = $1, updated_at = $2
		WHERE id = $3
	`
	if _, err := tx.ExecContext(ctx, updateQuery, req.Status, time.Now(), dealID); err != nil {
		return fmt.Errorf("failed to update deal status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit deal status update: %w", err)
	}

	s.invalidateCache(ctx, dealID)

	if s.producer != nil && currentStatus != req.Status {
		if err := s.producer.PublishDealStatusChanged(dealID, currentStatus, req.Status); err != nil {
			s.log.WithError(err).WithField("deal_id", dealID).Warn("Failed to publish deal status changed event")
		}
	}

	s.log.WithFields(map[string]interface{}{
		"deal_id":    dealID,
		"old_status": currentStatus,
		"new_status": req.Status,
	}).Info("Deal status updated")

	return nil
}

// IncrementViewCount увеличивает счётчик просмотров предложения.
func (s *DealService) IncrementViewCount(ctx context.Context, dealID uuid.UUID) error {
	return s.incrementCounter(ctx, dealID, "view_count")
}

// IncrementInquiryCount увеличивает счётчик заявок. Вызывается обработчиком
// события coupon.issued.
func (s *DealService) IncrementInquiryCount(ctx context.Context, dealID uuid.UUID) error {
	return s.incrementCounter(ctx, dealID, "inquiry_count")
}

// incrementCounter атомарно увеличивает счётчик. column выбирается только из
// фиксированного набора вызывающим кодом.
func (s *DealService) incrementCounter(ctx context.Context, dealID uuid.UUID, column string) error {
	query := fmt.Sprintf(`
		UPDATE deals
		SET %s = %s + 1, updated_at = $1
		WHERE id = $2
	`, column, column)

	result, err := s.db.ExecContext(ctx, query, time.Now(), dealID)
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", column, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("deal not found", nil)
	}

	s.invalidateCache(ctx, dealID)
	return nil
}

func (s *DealService) invalidateCache(ctx context.Context, dealID uuid.UUID) {
	if s.redis == nil {
		return
	}
	cacheKey := redis.GenerateKey(redis.KeyPrefixDeal, dealID.String())
	if err := s.redis.Delete(ctx, cacheKey); err != nil {
		s.log.WithError(err).WithField("deal_id", dealID).Warn("Failed to invalidate deal cache")
	}
}

func isValidDealStatusTransition(from, to models.DealStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case models.DealStatusActive:
		return to == models.DealStatusExpired || to == models.DealStatusInactive
	case models.DealStatusInactive:
		return to == models.DealStatusActive
	case models.DealStatusExpired:
		return false
	default:
		return false
	}
}
