package sync

import (
	"strings"
	"time"
)

// Field names the logical columns the merger consumes. Historical report
// formats used several header spellings for the same field, so each logical
// field resolves through an ordered alias list.
type Field string

const (
	FieldOrderID      Field = "order_id"
	FieldSKU          Field = "sku"
	FieldASIN         Field = "asin"
	FieldProductName  Field = "product_name"
	FieldQuantity     Field = "quantity"
	FieldItemPrice    Field = "item_price"
	FieldItemTax      Field = "item_tax"
	FieldCurrency     Field = "currency"
	FieldPurchaseDate Field = "purchase_date"
	FieldShipDate     Field = "ship_date"
	FieldStatus       Field = "status"
	FieldBuyerName    Field = "buyer_name"
	FieldShipCity     Field = "ship_city"
	FieldShipState    Field = "ship_state"
	FieldShipPostal   Field = "ship_postal_code"
	FieldShipCountry  Field = "ship_country"
	FieldSalesChannel Field = "sales_channel"
)

// fieldAliases maps each logical field to its accepted normalized headers,
// in precedence order. The first alias present in the payload wins for the
// whole parse.
var fieldAliases = map[Field][]string{
	FieldOrderID:      {"amazon-order-id", "order-id", "merchant-order-id"},
	FieldSKU:          {"sku", "seller-sku", "merchant-sku"},
	FieldASIN:         {"asin"},
	FieldProductName:  {"product-name", "item-name", "title"},
	FieldQuantity:     {"quantity", "quantity-purchased", "quantity-shipped", "qty"},
	FieldItemPrice:    {"item-price", "item-price-amount", "price"},
	FieldItemTax:      {"item-tax", "item-tax-amount"},
	FieldCurrency:     {"currency", "currency-code"},
	FieldPurchaseDate: {"purchase-date", "order-date"},
	FieldShipDate:     {"ship-date", "shipment-date", "shipped-date"},
	FieldStatus:       {"order-status", "item-status", "status"},
	FieldBuyerName:    {"buyer-name", "recipient-name"},
	FieldShipCity:     {"ship-city", "shipping-city", "city"},
	FieldShipState:    {"ship-state", "shipping-state", "state"},
	FieldShipPostal:   {"ship-postal-code", "shipping-postal-code", "postal-code", "zip"},
	FieldShipCountry:  {"ship-country", "shipping-country", "country"},
	FieldSalesChannel: {"sales-channel", "channel"},
}

// Row is one parsed record keyed by normalized header name
type Row map[string]string

// ParsedReport holds the rows of one report payload plus the header each
// logical field resolved to
type ParsedReport struct {
	Fields map[Field]string
	Rows   []Row
}

// OrderGroup is the set of rows sharing one order identifier, in payload order
type OrderGroup struct {
	OrderID string
	Rows    []Row
}

// NormalizeHeader lower-cases a header and collapses runs of
// non-alphanumeric characters to a single dash, so "Amazon Order Id",
// "amazon_order_id" and "amazon-order-id" all resolve to the same key.
func NormalizeHeader(h string) string {
	var b strings.Builder
	lastDash := true // trims leading dashes
	for _, r := range strings.ToLower(strings.TrimSpace(h)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastDash = false
		} else if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// ParseReport converts a tab-delimited payload into rows. The first line is
// the header; alias resolution happens once here, not per row.
func ParseReport(payload string) *ParsedReport {
	report := &ParsedReport{Fields: make(map[Field]string)}

	lines := strings.Split(strings.ReplaceAll(payload, "\r\n", "\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return report
	}

	rawHeaders := strings.Split(lines[0], "\t")
	headers := make([]string, len(rawHeaders))
	present := make(map[string]bool, len(rawHeaders))
	for i, h := range rawHeaders {
		headers[i] = NormalizeHeader(h)
		present[headers[i]] = true
	}

	// Resolve each logical field to the first alias present in this payload
	for field, aliases := range fieldAliases {
		for _, alias := range aliases {
			if present[alias] {
				report.Fields[field] = alias
				break
			}
		}
	}

	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		values := strings.Split(line, "\t")
		row := make(Row, len(headers))
		for i, h := range headers {
			if i < len(values) {
				row[h] = strings.TrimSpace(values[i])
			}
		}
		report.Rows = append(report.Rows, row)
	}

	return report
}

// Get returns a row's value for a logical field, or "" if the field has no
// resolved column or the row has no value
func (pr *ParsedReport) Get(row Row, field Field) string {
	col, ok := pr.Fields[field]
	if !ok {
		return ""
	}
	return row[col]
}

// GroupByOrder groups rows by the order identifier, preserving first-seen
// order. Rows with no identifier can't be merged and are returned as a
// skip count.
func (pr *ParsedReport) GroupByOrder() ([]OrderGroup, int) {
	var groups []OrderGroup
	index := make(map[string]int)
	skipped := 0

	for _, row := range pr.Rows {
		orderID := pr.Get(row, FieldOrderID)
		if orderID == "" {
			skipped++
			continue
		}
		if i, ok := index[orderID]; ok {
			groups[i].Rows = append(groups[i].Rows, row)
			continue
		}
		index[orderID] = len(groups)
		groups = append(groups, OrderGroup{OrderID: orderID, Rows: []Row{row}})
	}

	return groups, skipped
}

// dateFormats lists the timestamp layouts seen across report generations
var dateFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseReportDate parses a report timestamp, tolerating the layouts used by
// different report generations. Returns nil for empty or unparseable values.
func ParseReportDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
