package handlers

import (
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/estoque-backend/internal/inventory"
	"github.com/Ananth-NQI/estoque-backend/internal/logging"
	"github.com/Ananth-NQI/estoque-backend/internal/models"
	"github.com/Ananth-NQI/estoque-backend/internal/services"
	"github.com/Ananth-NQI/estoque-backend/internal/storage"
)

// StockHandler serves the read-only stock API
type StockHandler struct {
	store  storage.Store
	logger *zap.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(store storage.Store, logger *zap.Logger) *StockHandler {
	return &StockHandler{
		store:  store,
		logger: logging.Component(logger, "stock_api"),
	}
}

// StockItemView is one ledger row as returned by the API
type StockItemView struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Category      string           `json:"category,omitempty"`
	Quantity      decimal.Decimal  `json:"quantity"`
	Unit          string           `json:"unit"`
	Display       string           `json:"display"`
	LastUnitPrice *decimal.Decimal `json:"last_unit_price,omitempty"`
}

func newStockItemView(item *models.StockItem) StockItemView {
	v := StockItemView{
		ID:       item.ID,
		Name:     item.Name,
		Category: item.CategoryLabel(),
		Quantity: item.Quantity,
		Unit:     item.Unit,
		Display:  inventory.FormatQuantity(item.Quantity, item.Unit),
	}
	if item.HasPrice() {
		price := item.LastUnitPrice.Decimal
		v.LastUnitPrice = &price
	}
	return v
}

// ListStock returns a user's stock, optionally filtered by category
func (h *StockHandler) ListStock(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Params("userId"))
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user id is required",
		})
	}
	ctx := c.UserContext()

	var (
		items    []*models.StockItem
		err      error
		category string
	)
	if query := strings.TrimSpace(c.Query("category")); query != "" {
		cat, ok := inventory.ResolveCategoryAnswer(query)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":      "unknown category",
				"categories": inventory.CategoryMenu(),
			})
		}
		category = cat.Label
		items, err = services.ItemsInCategory(ctx, h.store, userID, cat)
	} else {
		items, err = h.store.ListStockItems(ctx, userID)
	}
	if err != nil {
		h.logger.Error("could not list stock", zap.String("user_id", userID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Name < items[j].Name })

	views := make([]StockItemView, 0, len(items))
	total := decimal.Zero
	for _, item := range items {
		views = append(views, newStockItemView(item))
		if item.HasPrice() {
			total = total.Add(item.LastUnitPrice.Decimal.Mul(item.Quantity))
		}
	}

	resp := fiber.Map{
		"user_id": userID,
		"count":   len(views),
		"items":   views,
		"total":   inventory.FormatCurrency(total),
	}
	if category != "" {
		resp["category"] = category
	}
	return c.JSON(resp)
}
