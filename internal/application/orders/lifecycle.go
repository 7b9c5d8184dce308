package orders

import (
	"context"
	"errors"

	"farmdirect-backend/internal/application/stock"
	"farmdirect-backend/internal/domain"
	"farmdirect-backend/internal/infrastructure/events"
	"farmdirect-backend/internal/pkg/apperr"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

type ListQuery struct {
	Status string
	Page   int
	Limit  int
}

// Page is one page of orders plus the pagination metadata.
type Page struct {
	Orders []domain.Order `json:"orders"`
	Total  int64          `json:"total"`
	Page   int            `json:"page"`
	Limit  int            `json:"limit"`
	Pages  int            `json:"pages"`
}

func (q ListQuery) normalize() (ListQuery, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultPageLimit
	}
	if q.Limit > maxPageLimit {
		q.Limit = maxPageLimit
	}
	switch domain.OrderStatus(q.Status) {
	case "", domain.OrderPending, domain.OrderConfirmed, domain.OrderCancelled, domain.OrderFulfilled:
		return q, nil
	}
	return q, apperr.Newf(apperr.ValidationError, "Unknown order status %q", q.Status)
}

// List returns the buyer's orders, newest first.
func (s *Service) List(ctx context.Context, buyerID uuid.UUID, q ListQuery) (*Page, error) {
	q, err := q.normalize()
	if err != nil {
		return nil, err
	}
	base := s.DB.WithContext(ctx).Model(&domain.Order{}).Where("buyer_id = ?", buyerID)
	return s.page(base, q, func(db *gorm.DB) *gorm.DB { return db })
}

// ListForSeller returns orders containing at least one of the seller's items.
// Only the seller's own lines are loaded.
func (s *Service) ListForSeller(ctx context.Context, sellerID uuid.UUID, q ListQuery) (*Page, error) {
	q, err := q.normalize()
	if err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	sub := db.Model(&domain.OrderItem{}).Select("order_id").Where("seller_id = ?", sellerID)
	base := db.Model(&domain.Order{}).Where("order_id IN (?)", sub)
	return s.page(base, q, func(p *gorm.DB) *gorm.DB { return p.Where("seller_id = ?", sellerID) })
}

func (s *Service) page(base *gorm.DB, q ListQuery, items func(*gorm.DB) *gorm.DB) (*Page, error) {
	if q.Status != "" {
		base = base.Where("status = ?", q.Status)
	}
	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, apperr.Wrap(err, "order count failed")
	}
	var orders []domain.Order
	err := base.Session(&gorm.Session{}).
		Preload("Items", items).
		Order(`"createdAt" DESC`).
		Offset((q.Page - 1) * q.Limit).
		Limit(q.Limit).
		Find(&orders).Error
	if err != nil {
		return nil, apperr.Wrap(err, "order list failed")
	}
	pages := int((total + int64(q.Limit) - 1) / int64(q.Limit))
	return &Page{Orders: orders, Total: total, Page: q.Page, Limit: q.Limit, Pages: pages}, nil
}

// Get returns an order visible to its buyer or to any seller on it.
func (s *Service) Get(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.loadOrder(s.DB.WithContext(ctx), orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != userID && !order.HasSeller(userID) {
		return nil, apperr.New(apperr.Unauthorized, "Not a party to this order")
	}
	return order, nil
}

// Cancel lets the buyer cancel an order while every line is still pending.
// Stock for every line is released in the same transaction.
func (s *Service) Cancel(ctx context.Context, buyerID, orderID uuid.UUID) (*domain.Order, error) {
	var order *domain.Order
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.loadOrderForUpdate(tx, orderID)
		if err != nil {
			return err
		}
		if order.BuyerID != buyerID {
			return apperr.New(apperr.Unauthorized, "Only the buyer can cancel this order")
		}
		lines := make([]stock.Line, 0, len(order.Items))
		for i := range order.Items {
			it := &order.Items[i]
			if it.Status != domain.ItemPending {
				return apperr.Newf(apperr.InvalidState, "Order cannot be cancelled: %s is %s", it.ProductName, it.Status)
			}
			if err := moveItem(tx, it, domain.ItemCancelled); err != nil {
				return err
			}
			lines = append(lines, stock.Line{ProductID: it.ProductID, Quantity: it.Quantity})
		}
		if err := stock.ReleaseAll(tx, lines); err != nil {
			return err
		}
		return s.refreshStatus(tx, order)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("order_id", order.OrderID.String()).Msg("order cancelled by buyer")
	sellers := make([]uuid.UUID, 0, len(order.Items))
	for _, it := range order.Items {
		sellers = append(sellers, it.SellerID)
	}
	s.notifier().Notify(events.TopicOrderCancelled, sellers, map[string]interface{}{
		"order_id":     order.OrderID.String(),
		"order_number": order.OrderNumber,
	})
	return order, nil
}

// UpdateItemStatus moves one line through pending -> confirmed -> fulfilled
// (or to cancelled). Only the line's seller may do it; cancelling releases stock.
func (s *Service) UpdateItemStatus(ctx context.Context, sellerID, orderID, itemID uuid.UUID, to domain.ItemStatus) (*domain.Order, error) {
	if !domain.IsValidItemStatus(to) {
		return nil, apperr.Newf(apperr.ValidationError, "Unknown item status %q", to)
	}
	var order *domain.Order
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.loadOrderForUpdate(tx, orderID)
		if err != nil {
			return err
		}
		var item *domain.OrderItem
		for i := range order.Items {
			if order.Items[i].ItemID == itemID {
				item = &order.Items[i]
				break
			}
		}
		if item == nil {
			return apperr.New(apperr.NotFound, "Order item not found")
		}
		if item.SellerID != sellerID {
			return apperr.New(apperr.Unauthorized, "Only the seller of this item can update it")
		}
		if !domain.CanTransitionItem(item.Status, to) {
			return apperr.Newf(apperr.InvalidTransition, "Cannot move item from %s to %s", item.Status, to)
		}
		if err := moveItem(tx, item, to); err != nil {
			return err
		}
		if to == domain.ItemCancelled {
			if err := stock.Release(tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		return s.refreshStatus(tx, order)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("order_id", orderID.String()).Str("item_id", itemID.String()).Str("status", string(to)).Msg("order item updated")
	s.notifier().Notify(events.TopicOrderItemStatus, []uuid.UUID{order.BuyerID}, map[string]interface{}{
		"order_id":     order.OrderID.String(),
		"order_number": order.OrderNumber,
		"item_id":      itemID.String(),
		"status":       string(to),
		"order_status": string(order.Status),
	})
	return order, nil
}

// moveItem writes the new status only if the line still has the status read.
func moveItem(tx *gorm.DB, it *domain.OrderItem, to domain.ItemStatus) error {
	res := tx.Model(&domain.OrderItem{}).
		Where("item_id = ? AND status = ?", it.ItemID, it.Status).
		Update("status", to)
	if res.Error != nil {
		return apperr.Wrap(res.Error, "order item update failed")
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.InvalidState, "Order item changed concurrently; reload and retry")
	}
	it.Status = to
	return nil
}

// refreshStatus stores the status derived from the lines as stored now, not
// as loaded. A fully cancelled order also voids its payment.
func (s *Service) refreshStatus(tx *gorm.DB, order *domain.Order) error {
	var items []domain.OrderItem
	if err := tx.Where("order_id = ?", order.OrderID).Find(&items).Error; err != nil {
		return apperr.Wrap(err, "order items lookup failed")
	}
	order.Items = items
	order.Status = domain.DeriveOrderStatus(order.Items)
	updates := map[string]interface{}{"status": order.Status}
	if order.Status == domain.OrderCancelled && order.Payment.Status != PaymentVoided {
		order.Payment.Status = PaymentVoided
		updates["payment_status"] = PaymentVoided
	}
	if err := tx.Model(&domain.Order{}).Where("order_id = ?", order.OrderID).Updates(updates).Error; err != nil {
		return apperr.Wrap(err, "order update failed")
	}
	return nil
}

// loadOrderForUpdate holds the order row until the transaction ends, so item
// writes on one order run one after another.
func (s *Service) loadOrderForUpdate(tx *gorm.DB, orderID uuid.UUID) (*domain.Order, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return s.loadOrder(q, orderID)
}

func (s *Service) loadOrder(db *gorm.DB, orderID uuid.UUID) (*domain.Order, error) {
	var order domain.Order
	if err := db.Preload("Items").Where("order_id = ?", orderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "Order not found")
		}
		return nil, apperr.Wrap(err, "order lookup failed")
	}
	return &order, nil
}
