package sync

import (
	"time"

	"github.com/judyjanx-jpg/inventory-advisor-sub003/internal/database"
	"github.com/judyjanx-jpg/inventory-advisor-sub003/internal/models"
	"gorm.io/gorm/clause"
)

// GormStore implements OrderStore and run-log persistence over the
// application database
type GormStore struct {
	db *database.DB
}

// NewGormStore creates the database-backed order store
func NewGormStore(db *database.DB) *GormStore {
	return &GormStore{db: db}
}

// ExistingOrderIDs checks which order ids are already persisted
func (s *GormStore) ExistingOrderIDs(ids []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}

	var found []string
	err := s.db.Model(&models.Order{}).
		Where("amazon_order_id IN ?", ids).
		Pluck("amazon_order_id", &found).Error
	if err != nil {
		return nil, err
	}

	for _, id := range found {
		existing[id] = true
	}
	return existing, nil
}

// KnownSKUs checks which SKUs have a catalog entry
func (s *GormStore) KnownSKUs(skus []string) (map[string]bool, error) {
	known := make(map[string]bool, len(skus))
	if len(skus) == 0 {
		return known, nil
	}

	var found []string
	err := s.db.Model(&models.Product{}).
		Where("sku IN ?", skus).
		Pluck("sku", &found).Error
	if err != nil {
		return nil, err
	}

	for _, sku := range found {
		known[sku] = true
	}
	return known, nil
}

// CreateOrder persists a newly sighted order aggregate
func (s *GormStore) CreateOrder(order *models.Order) error {
	return s.db.Create(order).Error
}

// UpdateOrder touches only the mutable fields of an existing order.
// Purchase date and identity never change after first sighting.
func (s *GormStore) UpdateOrder(orderID string, shipDate *time.Time, status models.OrderStatus) error {
	updates := map[string]interface{}{
		"status": status,
	}
	if shipDate != nil {
		updates["ship_date"] = shipDate
	}
	return s.db.Model(&models.Order{}).
		Where("amazon_order_id = ?", orderID).
		Updates(updates).Error
}

// UpsertItem creates or replaces a line item keyed by (order id, SKU).
// Quantity and price take the latest row's values, they are not accumulated.
func (s *GormStore) UpsertItem(item *models.OrderItem) error {
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "amazon_order_id"}, {Name: "sku"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"asin", "product_name", "quantity", "item_price", "item_tax", "updated_at",
		}),
	}).Create(item).Error
}

// SaveRunLog appends the summary record of a finished run
func (s *GormStore) SaveRunLog(run *models.SyncRunLog) error {
	return s.db.Create(run).Error
}

// RecentRunLogs returns the latest run summaries, newest first
func (s *GormStore) RecentRunLogs(limit int) ([]models.SyncRunLog, error) {
	var runs []models.SyncRunLog
	err := s.db.Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}
