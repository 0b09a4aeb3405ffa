package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/estoque-backend/internal/inventory"
	"github.com/Ananth-NQI/estoque-backend/internal/models"
	"github.com/Ananth-NQI/estoque-backend/internal/storage"
)

// maxStockRetries bounds the compare-and-swap loop on a stock row
const maxStockRetries = 3

// commandContext carries the transaction-bound collaborators of one message
type commandContext struct {
	store    storage.Store
	sessions *SessionManager
	msg      *models.InboundMessage
	cmd      Command
	logger   *zap.Logger
}

type commandHandler func(ctx context.Context, cc *commandContext) (string, error)

func (e *Engine) handlers() map[Intent]commandHandler {
	return map[Intent]commandHandler{
		IntentContinue:         e.handleContinue,
		IntentFallbackContinue: e.handleContinue,
		IntentDecrement:        e.handleDecrement,
		IntentIncrement:        e.handleIncrement,
		IntentCreate:           e.handleCreate,
		IntentCategoryQuery:    e.handleCategoryQuery,
		IntentQuery:            e.handleQuery,
		IntentHelp:             e.handleHelp,
	}
}

func itemName(item *models.StockItem) string { return item.Name }

// resolveItem picks the single ledger row a product text refers to
func resolveItem(ctx context.Context, cc *commandContext, product string, notFoundReply string) (*models.StockItem, error) {
	items, err := cc.store.ListStockItems(ctx, cc.msg.UserID)
	if err != nil {
		return nil, persistenceError("list stock", err)
	}

	res := inventory.Resolve(product, items, itemName)
	switch {
	case res.Ambiguous():
		return nil, newError(CodeAmbiguous, replyAmbiguous(product, res.Matches), nil)
	case !res.Found():
		return nil, newError(CodeNotFound, notFoundReply, nil)
	}
	return res.Best(), nil
}

// changeQuantity computes and writes a new quantity, re-reading the row and
// retrying when another writer got there first. A result of zero or less
// deletes the row.
func changeQuantity(ctx context.Context, cc *commandContext, item *models.StockItem, next func(*models.StockItem) (decimal.Decimal, error)) (removed bool, err error) {
	for attempt := 1; ; attempt++ {
		quantity, err := next(item)
		if err != nil {
			return false, err
		}

		if quantity.Sign() <= 0 {
			err = cc.store.DeleteStockItem(ctx, item)
		} else {
			err = cc.store.UpdateStockQuantity(ctx, item, quantity)
		}
		if err == nil {
			return quantity.Sign() <= 0, nil
		}
		if !errors.Is(err, storage.ErrStaleItem) || attempt == maxStockRetries {
			return false, persistenceError("write stock", err)
		}

		cc.logger.Info("stock row changed concurrently, retrying",
			zap.String("item_id", item.ID), zap.Int("attempt", attempt))
		fresh, err := cc.store.GetStockItem(ctx, item.UserID, item.ID)
		if errors.Is(err, storage.ErrNotFound) {
			return false, newError(CodeNotFound, replyNotFound(item.Name), err)
		}
		if err != nil {
			return false, persistenceError("reload stock", err)
		}
		*item = *fresh
	}
}

func parseStockAmount(args, noQuantityReply string) (inventory.Amount, error) {
	amount, err := inventory.ParseAmount(args)
	if err != nil {
		return amount, newError(CodeParse, msgNoProduct, err)
	}
	if !amount.HasQuantity || !amount.Quantity.IsPositive() {
		return amount, newError(CodeParse, noQuantityReply, inventory.ErrNoQuantity)
	}
	return amount, nil
}

func (e *Engine) handleDecrement(ctx context.Context, cc *commandContext) (string, error) {
	amount, err := parseStockAmount(cc.cmd.Args, msgNoQuantityDecrement)
	if err != nil {
		return "", err
	}
	item, err := resolveItem(ctx, cc, amount.Product, replyNotFound(amount.Product))
	if err != nil {
		return "", err
	}

	removed, err := changeQuantity(ctx, cc, item, func(item *models.StockItem) (decimal.Decimal, error) {
		requested, unit := inventory.Reconcile(amount.Quantity, amount.Unit, item.Unit)
		if requested.GreaterThan(item.Quantity) {
			return decimal.Zero, newError(CodeInsufficientStock, replyInsufficient(item, requested, unit), nil)
		}
		return inventory.RoundQuantity(item.Quantity.Sub(requested)), nil
	})
	if err != nil {
		return "", err
	}

	cc.logger.Info("stock decremented",
		zap.String("item_id", item.ID), zap.Bool("removed", removed), zap.String("quantity", item.Quantity.String()))
	if removed {
		return replyRemoved(item), nil
	}
	return replyDecremented(item), nil
}

func (e *Engine) handleIncrement(ctx context.Context, cc *commandContext) (string, error) {
	amount, err := parseStockAmount(cc.cmd.Args, msgNoQuantityIncrement)
	if err != nil {
		return "", err
	}
	// never creates a row
	item, err := resolveItem(ctx, cc, amount.Product, replyUseCreate(amount.Product))
	if err != nil {
		return "", err
	}

	if _, err := changeQuantity(ctx, cc, item, func(item *models.StockItem) (decimal.Decimal, error) {
		added, _ := inventory.Reconcile(amount.Quantity, amount.Unit, item.Unit)
		return inventory.RoundQuantity(item.Quantity.Add(added)), nil
	}); err != nil {
		return "", err
	}

	cc.logger.Info("stock incremented", zap.String("item_id", item.ID), zap.String("quantity", item.Quantity.String()))
	return replyIncremented(item), nil
}

func (e *Engine) handleCreate(ctx context.Context, cc *commandContext) (string, error) {
	amount, err := inventory.ParseAmount(cc.cmd.Args)
	if err != nil {
		return "", newError(CodeParse, msgNoProductCreate, err)
	}
	if !amount.Quantity.IsPositive() {
		return "", newError(CodeParse, msgNoProductCreate, inventory.ErrNoQuantity)
	}
	unit := amount.Unit
	if unit == "" {
		unit = inventory.UnitPiece
	}
	quantity, storedUnit := inventory.Reconcile(amount.Quantity, unit, string(unit))

	items, err := cc.store.ListStockItems(ctx, cc.msg.UserID)
	if err != nil {
		return "", persistenceError("list stock", err)
	}
	if res := inventory.Resolve(amount.Product, items, itemName); len(res.Matches) > 0 {
		return replyUseIncrement(res.Matches[0]), nil
	}

	item := &models.StockItem{
		UserID:   cc.msg.UserID,
		Name:     amount.Product,
		Quantity: quantity,
		Unit:     storedUnit,
	}
	if err := cc.store.CreateStockItem(ctx, item); err != nil {
		return "", persistenceError("create stock", err)
	}

	session, err := cc.sessions.Start(ctx, cc.msg.UserID, cc.msg.Sender, models.SessionStateAwaitingPrice, item.ID, map[string]string{
		models.ContextQuantity: quantity.String(),
		models.ContextUnit:     storedUnit,
		models.ContextProduct:  item.Name,
	})
	if err != nil {
		return "", persistenceError("start session", err)
	}

	cc.logger.Info("pending product created", zap.String("item_id", item.ID), zap.String("session_id", session.ID))
	return replyPricePrompt(item), nil
}

// handleContinue feeds the message to the session's registration state
func (e *Engine) handleContinue(ctx context.Context, cc *commandContext) (string, error) {
	session := cc.cmd.Session
	log := cc.logger.With(zap.String("session_id", session.ID), zap.String("state", session.State))

	t, err := Step(session.State, cc.cmd.Args)
	if err != nil {
		log.Warn("dropping session in unknown state", zap.Error(err))
		if err := cc.sessions.End(ctx, session.ID); err != nil {
			return "", persistenceError("end session", err)
		}
		return HelpMessage, nil
	}

	if !t.Accepted {
		log.Debug("answer not understood, prompting again")
		if session.State == models.SessionStateAwaitingPrice {
			return msgPriceRetry, nil
		}
		return replyCategoryRetry(), nil
	}

	switch session.State {
	case models.SessionStateAwaitingPrice:
		if err := cc.store.SetStockPrice(ctx, session.ItemID, t.Price); err != nil {
			return e.abandonSession(ctx, cc, session, err)
		}
		if err := cc.sessions.Advance(ctx, session, t.Next, map[string]string{models.ContextPrice: t.Price.String()}); err != nil {
			return "", persistenceError("advance session", err)
		}
		return replyCategoryPrompt(t.Price), nil

	default:
		if err := cc.store.SetStockCategory(ctx, session.ItemID, t.Category.Label); err != nil {
			return e.abandonSession(ctx, cc, session, err)
		}
		if err := cc.sessions.End(ctx, session.ID); err != nil {
			return "", persistenceError("end session", err)
		}
		log.Info("product registration completed", zap.String("item_id", session.ItemID), zap.String("category", t.Category.Label))
		return replyRegistered(
			session.Context[models.ContextProduct],
			contextDecimal(session.Context, models.ContextQuantity),
			session.Context[models.ContextUnit],
			contextDecimal(session.Context, models.ContextPrice),
			t.Category,
		), nil
	}
}

// abandonSession ends a dialogue whose product row disappeared
func (e *Engine) abandonSession(ctx context.Context, cc *commandContext, session *models.ChatSession, cause error) (string, error) {
	if !errors.Is(cause, storage.ErrNotFound) {
		return "", persistenceError("update pending product", cause)
	}
	if err := cc.sessions.End(ctx, session.ID); err != nil {
		return "", persistenceError("end session", err)
	}
	return msgItemGone, nil
}

func contextDecimal(values map[string]string, key string) decimal.Decimal {
	d, err := decimal.NewFromString(values[key])
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (e *Engine) handleQuery(ctx context.Context, cc *commandContext) (string, error) {
	product := queryProduct(cc.cmd.Args)
	if product == "" {
		return "", newError(CodeParse, msgNoProductQuery, inventory.ErrNoProduct)
	}
	item, err := resolveItem(ctx, cc, product, replyNotFound(product))
	if err != nil {
		return "", err
	}
	return replyQuantity(item), nil
}

func (e *Engine) handleCategoryQuery(ctx context.Context, cc *commandContext) (string, error) {
	category, ok := inventory.ResolveCategoryAnswer(cc.cmd.Args)
	if !ok {
		category, ok = inventory.FindCategoryInText(cc.msg.Content)
	}
	if !ok {
		return "", newError(CodeNotFound, replyUnknownCategory(), nil)
	}

	items, err := ItemsInCategory(ctx, cc.store, cc.msg.UserID, category)
	if err != nil {
		return "", persistenceError("list stock", err)
	}
	if len(items) == 0 {
		return "", newError(CodeNotFound, replyEmptyCategory(category), nil)
	}
	return replyCategoryListing(category, items), nil
}

func (e *Engine) handleHelp(context.Context, *commandContext) (string, error) {
	return HelpMessage, nil
}

// ItemsInCategory lists the user's positive-quantity items of a category,
// ordered by name
func ItemsInCategory(ctx context.Context, store storage.Store, userID string, category inventory.Category) ([]*models.StockItem, error) {
	items, err := store.ListStockItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out []*models.StockItem
	for _, item := range items {
		if item.Quantity.IsPositive() && category.Matches(item.CategoryLabel()) {
			out = append(out, item)
		}
	}
	return out, nil
}
