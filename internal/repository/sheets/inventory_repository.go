// Package sheets reads inventory snapshots and consumption logs from the
// household's Google Sheets workbook, which stands in for the external
// inventory service. The engine treats both as read-only inputs.
package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/pantrywatch/pantrywatch/internal/config"
	"github.com/pantrywatch/pantrywatch/internal/domain/models"
)

const (
	itemsRange       = "Items!A2:L"
	consumptionRange = "Consumption!A2:D"

	dateLayout = "2006-01-02"
)

// Repository exposes the inbound inventory data the engine consumes.
type Repository interface {
	Items(ctx context.Context) ([]models.InventoryItem, error)
	Consumption(ctx context.Context, since time.Time) ([]models.ConsumptionLogEntry, error)
}

// GoogleSheetRepository implements Repository using the official Google
// Sheets API.
type GoogleSheetRepository struct {
	service       *sheetsapi.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewGoogleSheetRepository builds a Google Sheets backed repository instance.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*GoogleSheetRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &GoogleSheetRepository{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
	}, nil
}

// Items loads the current inventory snapshot. Rows that fail to parse are
// skipped, never fatal.
func (r *GoogleSheetRepository) Items(ctx context.Context) ([]models.InventoryItem, error) {
	rows, err := r.readRange(ctx, itemsRange)
	if err != nil {
		return nil, fmt.Errorf("load items range: %w", err)
	}

	items := make([]models.InventoryItem, 0, len(rows))
	for _, row := range rows {
		item, err := itemFromRow(row)
		if err != nil {
			r.logger.Debug("skip malformed item row", zap.Any("row", row), zap.Error(err))
			continue
		}
		items = append(items, item)
	}

	return items, nil
}

// Consumption loads consumption log entries recorded at or after since.
func (r *GoogleSheetRepository) Consumption(ctx context.Context, since time.Time) ([]models.ConsumptionLogEntry, error) {
	rows, err := r.readRange(ctx, consumptionRange)
	if err != nil {
		return nil, fmt.Errorf("load consumption range: %w", err)
	}

	entries := make([]models.ConsumptionLogEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := consumptionFromRow(row)
		if err != nil {
			r.logger.Debug("skip malformed consumption row", zap.Any("row", row), zap.Error(err))
			continue
		}
		if entry.LoggedAt.Before(since) {
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func (r *GoogleSheetRepository) readRange(ctx context.Context, sheetRange string) ([][]interface{}, error) {
	resp, err := r.service.Spreadsheets.Values.Get(r.spreadsheetID, sheetRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", sheetRange, err)
	}
	return resp.Values, nil
}

// Items sheet columns:
// A id | B name | C category | D quantity | E unit | F min | G preferred |
// H expiry | I rate | J brands (csv) | K keywords (csv) |
// L pinned products ("platform=product_id;...")
func itemFromRow(row []interface{}) (models.InventoryItem, error) {
	if len(row) < 7 {
		return models.InventoryItem{}, fmt.Errorf("expected at least 7 columns, got %d", len(row))
	}

	id := cell(row, 0)
	name := cell(row, 1)
	if id == "" || name == "" {
		return models.InventoryItem{}, fmt.Errorf("id and name are required")
	}

	quantity, err := parseFloat(cell(row, 3))
	if err != nil {
		return models.InventoryItem{}, fmt.Errorf("quantity: %w", err)
	}
	minQty, err := parseFloat(cell(row, 5))
	if err != nil {
		return models.InventoryItem{}, fmt.Errorf("min quantity: %w", err)
	}
	preferredQty, err := parseFloat(cell(row, 6))
	if err != nil {
		return models.InventoryItem{}, fmt.Errorf("preferred quantity: %w", err)
	}
	if minQty > preferredQty {
		return models.InventoryItem{}, fmt.Errorf("min quantity %.2f exceeds preferred %.2f", minQty, preferredQty)
	}
	if quantity < 0 {
		return models.InventoryItem{}, fmt.Errorf("quantity must not be negative")
	}

	item := models.InventoryItem{
		ID:                id,
		Name:              name,
		Category:          cell(row, 2),
		CurrentQuantity:   quantity,
		Unit:              cell(row, 4),
		MinQuantity:       minQty,
		PreferredQuantity: preferredQty,
		PreferredBrands:   splitList(cell(row, 9)),
		SearchKeywords:    splitList(cell(row, 10)),
		PlatformProducts:  parsePinned(cell(row, 11)),
		Active:            true,
	}

	if expiry := cell(row, 7); expiry != "" {
		d, err := parseDate(expiry)
		if err == nil {
			item.ExpiryDate = &d
		}
	}
	if rate := cell(row, 8); rate != "" {
		if v, err := parseFloat(rate); err == nil {
			item.AvgConsumptionRate = v
		}
	}

	return item, nil
}

// Consumption sheet columns: A item id | B quantity | C logged_at | D notes
func consumptionFromRow(row []interface{}) (models.ConsumptionLogEntry, error) {
	if len(row) < 3 {
		return models.ConsumptionLogEntry{}, fmt.Errorf("expected at least 3 columns, got %d", len(row))
	}

	itemID := cell(row, 0)
	if itemID == "" {
		return models.ConsumptionLogEntry{}, fmt.Errorf("item id is required")
	}

	quantity, err := parseFloat(cell(row, 1))
	if err != nil {
		return models.ConsumptionLogEntry{}, fmt.Errorf("quantity: %w", err)
	}
	if quantity <= 0 {
		return models.ConsumptionLogEntry{}, fmt.Errorf("quantity must be positive")
	}

	loggedAt, err := parseTimestamp(cell(row, 2))
	if err != nil {
		return models.ConsumptionLogEntry{}, fmt.Errorf("logged_at: %w", err)
	}

	return models.ConsumptionLogEntry{
		ItemID:   itemID,
		Quantity: quantity,
		LoggedAt: loggedAt,
		Notes:    cell(row, 3),
	}, nil
}

func cell(row []interface{}, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[idx]))
}

func parseFloat(value string) (float64, error) {
	if value == "" {
		return 0, fmt.Errorf("empty numeric value")
	}
	return strconv.ParseFloat(value, 64)
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if len(value) > 10 {
		value = value[:10]
	}
	return time.Parse(dateLayout, value)
}

func parseTimestamp(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return parseDate(value)
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parsePinned(value string) map[string]string {
	if value == "" {
		return nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(value, ";") {
		platform, productID, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || platform == "" || productID == "" {
			continue
		}
		out[platform] = productID
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
