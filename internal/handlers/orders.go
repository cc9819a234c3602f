package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/judyjanx-jpg/inventory-advisor-sub003/internal/database"
	"github.com/judyjanx-jpg/inventory-advisor-sub003/internal/models"
	"gorm.io/gorm"
)

const maxPageSize = 200

// OrderHandler serves the dashboard's read path over synced aggregates
type OrderHandler struct {
	db *database.DB
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(db *database.DB) *OrderHandler {
	return &OrderHandler{db: db}
}

// RegisterRoutes registers order and product routes
func (oh *OrderHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/orders", oh.ListOrders).Methods("GET")
	r.HandleFunc("/api/orders/{id}", oh.GetOrder).Methods("GET")
	r.HandleFunc("/api/products", oh.ListProducts).Methods("GET")
}

// ListOrders returns a page of orders, optionally filtered by status
func (oh *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := queryInt(r, "offset", 0)

	query := oh.db.Model(&models.Order{}).Order("purchase_date DESC")
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var orders []models.Order
	if err := query.Limit(limit).Offset(offset).Find(&orders).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"total":  total,
		"count":  len(orders),
		"orders": orders,
	})
}

// GetOrder returns one order with its line items
func (oh *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var order models.Order
	err := oh.db.Preload("Items").
		Where("amazon_order_id = ?", vars["id"]).
		First(&order).Error
	if err == gorm.ErrRecordNotFound {
		respondError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// ListProducts returns the product catalog
func (oh *OrderHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := queryInt(r, "offset", 0)

	var products []models.Product
	err := oh.db.Order("sku").Limit(limit).Offset(offset).Find(&products).Error
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(products),
		"products": products,
	})
}
