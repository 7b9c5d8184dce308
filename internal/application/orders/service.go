package orders

import (
	"context"
	"errors"
	"sync"
	"time"

	"farmdirect-backend/internal/application/cart"
	"farmdirect-backend/internal/application/negotiations"
	"farmdirect-backend/internal/application/stock"
	"farmdirect-backend/internal/domain"
	"farmdirect-backend/internal/infrastructure/events"
	"farmdirect-backend/internal/pkg/apperr"
	"farmdirect-backend/internal/pkg/metrics"
	"farmdirect-backend/internal/pkg/validation"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DefaultFreeShippingThreshold = 500
	DefaultShippingFee           = 50
)

// IdempotencyStore is satisfied by cache.IdempotencyStore.
type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Unlock(ctx context.Context, scope, key string) error
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

type Service struct {
	DB          *gorm.DB
	Idempotency IdempotencyStore
	Events      events.Notifier
	Numbers     *snowflake.Node

	FreeShippingThreshold float64
	ShippingFee           float64
	Now                   func() time.Time
}

type CheckoutInput struct {
	// Items overrides the cart contents when non-empty.
	Items           []stock.Line
	ShippingAddress domain.Address
	PaymentMethod   string
	IdempotencyKey  string
}

type FromNegotiationInput struct {
	NegotiationID   uuid.UUID
	ShippingAddress domain.Address
	PaymentMethod   string
}

var (
	fallbackNodeOnce sync.Once
	fallbackNode     *snowflake.Node
)

func (s *Service) orderNumber() string {
	node := s.Numbers
	if node == nil {
		fallbackNodeOnce.Do(func() { fallbackNode, _ = snowflake.NewNode(1) })
		node = fallbackNode
	}
	return "FD-" + node.Generate().String()
}

func (s *Service) pricing(subtotal float64) domain.Pricing {
	threshold, fee := s.FreeShippingThreshold, s.ShippingFee
	if threshold == 0 && fee == 0 {
		threshold, fee = DefaultFreeShippingThreshold, DefaultShippingFee
	}
	return domain.NewPricing(subtotal, threshold, fee)
}

func (s *Service) notifier() events.Notifier {
	if s.Events == nil {
		return events.Nop{}
	}
	return s.Events
}

func validateDelivery(addr domain.Address, method string) error {
	if !addr.Complete() {
		return apperr.New(apperr.ValidationError, "Shipping address requires name, line1, city, state and postal_code")
	}
	if !domain.IsValidPaymentMethod(method) {
		return apperr.New(apperr.ValidationError, "Payment method must be one of cod, upi, card")
	}
	return nil
}

// Checkout turns the buyer's cart (or in.Items) into an order. All lines are
// checked first, then priced at the live catalog price, then decremented as
// one unit with the order insert and cart clear. Any failure leaves stock,
// cart and orders untouched.
func (s *Service) Checkout(ctx context.Context, buyerID uuid.UUID, in CheckoutInput) (*domain.Order, error) {
	if err := validateDelivery(in.ShippingAddress, in.PaymentMethod); err != nil {
		return nil, err
	}
	// Merge sums duplicate lines, so each one must be positive beforehand.
	for _, l := range in.Items {
		if l.Quantity <= 0 {
			return nil, apperr.New(apperr.ValidationError, "Quantity must be at least 1")
		}
	}

	if in.IdempotencyKey != "" {
		if existing, err := s.replay(ctx, buyerID, in.IdempotencyKey); err != nil || existing != nil {
			return existing, err
		}
		if s.Idempotency != nil {
			scope := "checkout:" + buyerID.String()
			locked, err := s.Idempotency.TryLock(ctx, scope, in.IdempotencyKey)
			if err != nil {
				return nil, apperr.Wrap(err, "idempotency lock failed")
			}
			if !locked {
				return nil, apperr.New(apperr.InvalidState, "A checkout with this Idempotency-Key is already in progress")
			}
			order, err := s.checkout(ctx, buyerID, in)
			if err != nil {
				if uerr := s.Idempotency.Unlock(ctx, scope, in.IdempotencyKey); uerr != nil {
					log.Warn().Err(uerr).Msg("idempotency unlock failed")
				}
				return nil, err
			}
			if rerr := s.Idempotency.Remember(ctx, scope, in.IdempotencyKey, order.OrderID.String()); rerr != nil {
				log.Warn().Err(rerr).Msg("idempotency remember failed")
			}
			return order, nil
		}
	}
	return s.checkout(ctx, buyerID, in)
}

// replay returns the order an earlier request with the same key created.
func (s *Service) replay(ctx context.Context, buyerID uuid.UUID, key string) (*domain.Order, error) {
	if s.Idempotency != nil {
		id, found, err := s.Idempotency.Recall(ctx, "checkout:"+buyerID.String(), key)
		if err != nil {
			log.Warn().Err(err).Msg("idempotency recall failed")
		} else if found {
			if orderID, perr := uuid.Parse(id); perr == nil {
				return s.loadOrder(s.DB.WithContext(ctx), orderID)
			}
		}
	}
	var order domain.Order
	err := s.DB.WithContext(ctx).Preload("Items").
		Where("buyer_id = ? AND idempotency_key = ?", buyerID, key).First(&order).Error
	if err == nil {
		return &order, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, apperr.Wrap(err, "order lookup failed")
}

func (s *Service) checkout(ctx context.Context, buyerID uuid.UUID, in CheckoutInput) (*domain.Order, error) {
	var order *domain.Order
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := cart.LoadForUpdate(tx, buyerID)
		if err != nil {
			return err
		}
		lines := in.Items
		if len(lines) == 0 {
			for _, it := range c.Items {
				lines = append(lines, stock.Line{ProductID: it.ProductID, Quantity: it.Quantity})
			}
		}
		if len(lines) == 0 {
			return apperr.New(apperr.ValidationError, "Cart is empty")
		}
		lines = stock.Merge(lines)

		products := make([]*domain.Product, 0, len(lines))
		for _, l := range lines {
			p, err := stock.Check(tx, l.ProductID, l.Quantity)
			if err != nil {
				return err
			}
			products = append(products, p)
		}

		var subtotal float64
		items := make([]domain.OrderItem, 0, len(lines))
		for i, l := range lines {
			p := products[i]
			subtotal += p.Price.Selling * float64(l.Quantity)
			items = append(items, domain.OrderItem{
				ProductID:   p.ProductID,
				SellerID:    p.SellerID,
				ProductName: p.Name,
				Quantity:    l.Quantity,
				Price:       p.Price.Selling,
				Status:      domain.ItemPending,
			})
		}

		if err := stock.DecrementAll(tx, lines); err != nil {
			return err
		}

		order = s.newOrder(buyerID, items, subtotal, in.ShippingAddress, in.PaymentMethod, domain.OrderSourceCart)
		if in.IdempotencyKey != "" {
			key := in.IdempotencyKey
			order.IdempotencyKey = &key
		}
		if err := tx.Create(order).Error; err != nil {
			return apperr.Wrap(err, "order create failed")
		}

		c.Clear()
		return cart.Save(tx, c)
	})
	if err != nil {
		if isStockFailure(err) {
			metrics.StockRejections.WithLabelValues("checkout").Inc()
		}
		return nil, err
	}
	s.created(order)
	return order, nil
}

// CreateFromNegotiation orders an accepted negotiation at its agreed price.
// The negotiation is linked to the order in the same transaction, so it can be ordered once.
func (s *Service) CreateFromNegotiation(ctx context.Context, buyerID uuid.UUID, in FromNegotiationInput) (*domain.Order, error) {
	if err := validateDelivery(in.ShippingAddress, in.PaymentMethod); err != nil {
		return nil, err
	}
	var order *domain.Order
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := negotiations.LoadAccepted(tx, buyerID, in.NegotiationID)
		if err != nil {
			return err
		}
		p, err := stock.Check(tx, n.ProductID, n.Quantity)
		if err != nil {
			return err
		}
		if err := stock.Decrement(tx, n.ProductID, n.Quantity); err != nil {
			return err
		}
		price := *n.AgreedPrice
		items := []domain.OrderItem{{
			ProductID:   p.ProductID,
			SellerID:    n.SellerID,
			ProductName: p.Name,
			Quantity:    n.Quantity,
			Price:       price,
			Status:      domain.ItemPending,
		}}
		order = s.newOrder(buyerID, items, price*float64(n.Quantity), in.ShippingAddress, in.PaymentMethod, domain.OrderSourceNegotiation)
		nid := n.NegotiationID
		order.NegotiationID = &nid
		if err := tx.Create(order).Error; err != nil {
			return apperr.Wrap(err, "order create failed")
		}
		return negotiations.MarkOrdered(tx, n.NegotiationID, order.OrderID)
	})
	if err != nil {
		if isStockFailure(err) {
			metrics.StockRejections.WithLabelValues("negotiation_order").Inc()
		}
		return nil, err
	}
	s.created(order)
	return order, nil
}

func (s *Service) newOrder(buyerID uuid.UUID, items []domain.OrderItem, subtotal float64, addr domain.Address, method, source string) *domain.Order {
	pricing := s.pricing(validation.RoundMoney(subtotal))
	return &domain.Order{
		OrderID:         uuid.New(),
		OrderNumber:     s.orderNumber(),
		BuyerID:         buyerID,
		Items:           items,
		ShippingAddress: datatypes.NewJSONType(addr),
		Payment:         authorize(method, pricing.Total),
		Pricing:         pricing,
		Status:          domain.OrderPending,
		Source:          source,
	}
}

func (s *Service) created(order *domain.Order) {
	metrics.OrdersCreated.WithLabelValues(order.Source).Inc()
	log.Info().
		Str("order_id", order.OrderID.String()).
		Str("order_number", order.OrderNumber).
		Str("source", order.Source).
		Float64("total", order.Pricing.Total).
		Int("items", len(order.Items)).
		Msg("order created")

	recipients := []uuid.UUID{order.BuyerID}
	for _, it := range order.Items {
		recipients = append(recipients, it.SellerID)
	}
	s.notifier().Notify(events.TopicOrderCreated, recipients, map[string]interface{}{
		"order_id":     order.OrderID.String(),
		"order_number": order.OrderNumber,
		"total":        order.Pricing.Total,
	})
}

func isStockFailure(err error) bool {
	k := apperr.KindOf(err)
	return k == apperr.InsufficientStock || k == apperr.InsufficientQuantity
}
