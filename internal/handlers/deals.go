package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"dealhub/internal/logger"
	"dealhub/internal/models"
)

// DealHandler представляет обработчик каталога предложений
type DealHandler struct {
	dealService DealService
	log         *logger.Logger
}

// NewDealHandler создает новый обработчик предложений
func NewDealHandler(dealService DealService, log *logger.Logger) *DealHandler {
	return &DealHandler{
		dealService: dealService,
		log:         log,
	}
}

// CreateDeal создает новое предложение
func (h *DealHandler) CreateDeal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.CreateDealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	deal, err := h.dealService.CreateDeal(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create deal")
		return
	}

	writeJSONResponse(w, http.StatusCreated, deal)
}

// GetDeal получает предложение по ID и учитывает просмотр
func (h *DealHandler) GetDeal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	dealID, err := extractUUIDFromPath(r.URL.Path, "/api/deals/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid deal ID")
		return
	}

	deal, err := h.dealService.GetDeal(r.Context(), dealID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get deal")
		return
	}

	// Просмотр каталога учитывается best-effort.
	if err := h.dealService.IncrementViewCount(r.Context(), dealID); err != nil {
		h.log.WithError(err).WithField("deal_id", dealID).Warn("Failed to increment view count")
	}

	writeJSONResponse(w, http.StatusOK, deal)
}

// GetDeals получает список предложений с фильтрацией
func (h *DealHandler) GetDeals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	query := r.URL.Query()

	var status *models.DealStatus
	if statusStr := query.Get("status"); statusStr != "" {
		s := models.DealStatus(statusStr)
		status = &s
	}

	var category *string
	if categoryStr := query.Get("category"); categoryStr != "" {
		category = &categoryStr
	}

	limit := 50
	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	offset := 0
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	deals, err := h.dealService.GetDeals(r.Context(), status, category, limit, offset)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get deals")
		return
	}

	writeJSONResponse(w, http.StatusOK, deals)
}

// UpdateDealStatus обновляет статус предложения
func (h *DealHandler) UpdateDealStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	dealID, err := extractUUIDFromPath(r.URL.Path, "/api/deals/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid deal ID")
		return
	}

	var req models.UpdateDealStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.dealService.UpdateDealStatus(r.Context(), dealID, &req); err != nil {
		writeServiceError(w, h.log, err, "Failed to update deal status")
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Deal status updated successfully"})
}
