package sync

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/judyjanx-jpg/inventory-advisor-sub003/internal/models"
)

// mergeChunkSize bounds both the identifier existence checks and the
// progress flush cadence
const mergeChunkSize = 50

// OrderStore is the persistence surface the merger writes through
type OrderStore interface {
	// ExistingOrderIDs reports which of the given order ids already exist
	ExistingOrderIDs(ids []string) (map[string]bool, error)
	// KnownSKUs reports which of the given SKUs exist in the product catalog
	KnownSKUs(skus []string) (map[string]bool, error)
	CreateOrder(order *models.Order) error
	// UpdateOrder touches only the mutable fields of an existing order
	UpdateOrder(orderID string, shipDate *time.Time, status models.OrderStatus) error
	UpsertItem(item *models.OrderItem) error
}

// MergeCounts accumulates the outcome of a merge pass
type MergeCounts struct {
	OrdersProcessed int
	OrdersCreated   int
	OrdersUpdated   int
	ItemsProcessed  int
	Skipped         int
}

func (c *MergeCounts) add(other MergeCounts) {
	c.OrdersProcessed += other.OrdersProcessed
	c.OrdersCreated += other.OrdersCreated
	c.OrdersUpdated += other.OrdersUpdated
	c.ItemsProcessed += other.ItemsProcessed
	c.Skipped += other.Skipped
}

// Merger performs the idempotent upsert of parsed order groups into the
// store. OnFlush, when set, receives the per-chunk counter delta so shared
// progress state is written once per chunk rather than once per record.
type Merger struct {
	store   OrderStore
	OnFlush func(MergeCounts)
}

// NewMerger creates a merger over the given store
func NewMerger(store OrderStore) *Merger {
	return &Merger{store: store}
}

// MergeGroups upserts all groups and returns the cumulative counts.
// Re-running the same groups produces the same persisted state: orders are
// created once and later only have mutable fields touched, items are keyed
// by (order id, SKU) with latest-value semantics.
func (m *Merger) MergeGroups(report *ParsedReport, groups []OrderGroup) (MergeCounts, error) {
	var total MergeCounts

	for offset := 0; offset < len(groups); offset += mergeChunkSize {
		end := offset + mergeChunkSize
		if end > len(groups) {
			end = len(groups)
		}

		chunk, err := m.mergeChunk(report, groups[offset:end])
		total.add(chunk)
		if m.OnFlush != nil {
			m.OnFlush(chunk)
		}
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

// mergeChunk processes up to mergeChunkSize groups with one existence check
// and one catalog lookup
func (m *Merger) mergeChunk(report *ParsedReport, groups []OrderGroup) (MergeCounts, error) {
	var counts MergeCounts

	ids := make([]string, 0, len(groups))
	skuSet := make(map[string]bool)
	for _, g := range groups {
		ids = append(ids, g.OrderID)
		for _, row := range g.Rows {
			if sku := report.Get(row, FieldSKU); sku != "" {
				skuSet[sku] = true
			}
		}
	}

	existing, err := m.store.ExistingOrderIDs(ids)
	if err != nil {
		return counts, fmt.Errorf("existence check failed: %w", err)
	}

	skus := make([]string, 0, len(skuSet))
	for sku := range skuSet {
		skus = append(skus, sku)
	}
	known, err := m.store.KnownSKUs(skus)
	if err != nil {
		return counts, fmt.Errorf("catalog lookup failed: %w", err)
	}

	for _, group := range groups {
		if err := m.mergeGroup(report, group, existing[group.OrderID], known, &counts); err != nil {
			return counts, err
		}
	}

	return counts, nil
}

// mergeGroup upserts one order aggregate and its line items
func (m *Merger) mergeGroup(report *ParsedReport, group OrderGroup, exists bool, knownSKUs map[string]bool, counts *MergeCounts) error {
	first := group.Rows[0]
	shipDate := ParseReportDate(report.Get(first, FieldShipDate))
	status := models.NormalizeOrderStatus(report.Get(first, FieldStatus))

	if exists {
		if err := m.store.UpdateOrder(group.OrderID, shipDate, status); err != nil {
			return fmt.Errorf("failed to update order %s: %w", group.OrderID, err)
		}
		counts.OrdersUpdated++
	} else {
		order := &models.Order{
			AmazonOrderID:  group.OrderID,
			PurchaseDate:   ParseReportDate(report.Get(first, FieldPurchaseDate)),
			ShipDate:       shipDate,
			Status:         status,
			OrderTotal:     groupTotal(report, group),
			Currency:       report.Get(first, FieldCurrency),
			BuyerName:      report.Get(first, FieldBuyerName),
			ShipCity:       report.Get(first, FieldShipCity),
			ShipState:      report.Get(first, FieldShipState),
			ShipPostalCode: report.Get(first, FieldShipPostal),
			ShipCountry:    report.Get(first, FieldShipCountry),
			SalesChannel:   report.Get(first, FieldSalesChannel),
		}
		if err := m.store.CreateOrder(order); err != nil {
			return fmt.Errorf("failed to create order %s: %w", group.OrderID, err)
		}
		counts.OrdersCreated++
	}
	counts.OrdersProcessed++

	for _, row := range group.Rows {
		sku := report.Get(row, FieldSKU)
		if sku == "" || !knownSKUs[sku] {
			counts.Skipped++
			continue
		}

		item := &models.OrderItem{
			AmazonOrderID: group.OrderID,
			SKU:           sku,
			ASIN:          report.Get(row, FieldASIN),
			ProductName:   report.Get(row, FieldProductName),
			Quantity:      parseIntField(report.Get(row, FieldQuantity)),
			ItemPrice:     parseFloatField(report.Get(row, FieldItemPrice)),
			ItemTax:       parseFloatField(report.Get(row, FieldItemTax)),
		}
		if err := m.store.UpsertItem(item); err != nil {
			return fmt.Errorf("failed to upsert item %s/%s: %w", group.OrderID, sku, err)
		}
		counts.ItemsProcessed++
	}

	return nil
}

// groupTotal sums the line prices of a group for the initial order total
func groupTotal(report *ParsedReport, group OrderGroup) float64 {
	var total float64
	for _, row := range group.Rows {
		total += parseFloatField(report.Get(row, FieldItemPrice))
	}
	return total
}

func parseIntField(value string) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return n
}

func parseFloatField(value string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return f
}
