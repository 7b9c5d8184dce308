package negotiations

import (
	"context"
	"errors"
	"time"

	"farmdirect-backend/internal/domain"
	"farmdirect-backend/internal/infrastructure/events"
	"farmdirect-backend/internal/pkg/apperr"
	"farmdirect-backend/internal/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const DefaultTTL = 48 * time.Hour

type Service struct {
	DB     *gorm.DB
	Events events.Notifier
	TTL    time.Duration
	Now    func() time.Time
}

type CreateInput struct {
	ProductID     uuid.UUID
	ProposedPrice float64
	Quantity      int
	Message       string
}

// ListFilter narrows List. Role is "buyer", "seller" or empty for both sides.
type ListFilter struct {
	ProductID *uuid.UUID
	Role      string
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultTTL
}

func (s *Service) notifier() events.Notifier {
	if s.Events == nil {
		return events.Nop{}
	}
	return s.Events
}

// Create opens a negotiation for buyerID. At most one pending/counter
// negotiation may exist per (product, buyer); an overdue one is expired first.
func (s *Service) Create(ctx context.Context, buyerID uuid.UUID, in CreateInput) (*domain.Negotiation, error) {
	if in.Quantity <= 0 {
		return nil, apperr.New(apperr.ValidationError, "Quantity must be at least 1")
	}
	if in.ProposedPrice <= 0 {
		return nil, apperr.New(apperr.ValidationError, "Proposed price must be greater than 0")
	}

	var created *domain.Negotiation
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := loadProduct(tx, in.ProductID)
		if err != nil {
			return err
		}
		if !product.CanNegotiate() {
			return apperr.New(apperr.ValidationError, "Product is not open to negotiation")
		}
		if product.SellerID == buyerID {
			return apperr.New(apperr.ValidationError, "Cannot negotiate on your own product")
		}
		if !product.AcceptsProposal(in.ProposedPrice) {
			return apperr.Newf(apperr.ValidationError, "Proposed price is below the minimum of %.2f", *product.Price.MinNegotiable)
		}
		if in.Quantity > product.Stock {
			return apperr.Newf(apperr.InsufficientStock, "Insufficient stock for %s: requested %d, available %d", product.Name, in.Quantity, product.Stock)
		}

		now := s.now()
		var open domain.Negotiation
		err = tx.Where("open_key = ?", domain.OpenNegotiationKey(product.ProductID, buyerID)).First(&open).Error
		switch {
		case err == nil:
			if !open.Expire(now) {
				return apperr.New(apperr.DuplicateNegotiation, "An open negotiation already exists for this product")
			}
			if err := persistExpiry(tx, &open); err != nil {
				return err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return apperr.Wrap(err, "negotiation lookup failed")
		}

		n := domain.NewNegotiation(product, buyerID, in.ProposedPrice, in.Quantity, in.Message, now, s.ttl())
		if err := tx.Create(n).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.New(apperr.DuplicateNegotiation, "An open negotiation already exists for this product")
			}
			return apperr.Wrap(err, "negotiation create failed")
		}
		created = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.NegotiationTransitions.WithLabelValues("create").Inc()
	log.Info().Str("negotiation_id", created.NegotiationID.String()).Str("product_id", created.ProductID.String()).Msg("negotiation opened")
	s.publish(created, "created")
	return created, nil
}

// Get returns a negotiation visible to userID, applying lazy expiry.
func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (*domain.Negotiation, error) {
	var n *domain.Negotiation
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		n, err = load(tx, id)
		if err != nil {
			return err
		}
		if _, err := n.PartyOf(userID); err != nil {
			return err
		}
		if n.Expire(s.now()) {
			return persistExpiry(tx, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// List returns the negotiations userID takes part in, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, f ListFilter) ([]domain.Negotiation, error) {
	var list []domain.Negotiation
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&domain.Negotiation{})
		switch f.Role {
		case string(domain.PartyBuyer):
			q = q.Where("buyer_id = ?", userID)
		case string(domain.PartySeller):
			q = q.Where("seller_id = ?", userID)
		case "":
			q = q.Where("buyer_id = ? OR seller_id = ?", userID, userID)
		default:
			return apperr.New(apperr.ValidationError, "role must be buyer or seller")
		}
		if f.ProductID != nil {
			q = q.Where("product_id = ?", *f.ProductID)
		}
		if err := q.Preload("Messages", orderBySeq).Order(`"createdAt" DESC`).Find(&list).Error; err != nil {
			return apperr.Wrap(err, "negotiation list failed")
		}
		now := s.now()
		for i := range list {
			if list[i].Expire(now) {
				if err := persistExpiry(tx, &list[i]); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// Accept freezes the standing offer as the agreed price. A pending
// negotiation can only be accepted while the product is still negotiable.
func (s *Service) Accept(ctx context.Context, actorID, id uuid.UUID) (*domain.Negotiation, error) {
	return s.act(ctx, actorID, id, "accept", func(tx *gorm.DB, n *domain.Negotiation, p domain.Party, now time.Time) error {
		if n.Status == domain.NegotiationPending {
			product, err := loadProduct(tx, n.ProductID)
			if err != nil {
				return err
			}
			if !product.CanNegotiate() {
				return apperr.New(apperr.InvalidState, "Product is no longer negotiable")
			}
		}
		return n.Accept(p, now)
	})
}

func (s *Service) Reject(ctx context.Context, actorID, id uuid.UUID, reason string) (*domain.Negotiation, error) {
	return s.act(ctx, actorID, id, "reject", func(tx *gorm.DB, n *domain.Negotiation, p domain.Party, now time.Time) error {
		return n.Reject(p, reason, now)
	})
}

// Counter replaces the standing offer. A buyer's counter must respect the product's floor.
func (s *Service) Counter(ctx context.Context, actorID, id uuid.UUID, price float64, message string) (*domain.Negotiation, error) {
	return s.act(ctx, actorID, id, "counter", func(tx *gorm.DB, n *domain.Negotiation, p domain.Party, now time.Time) error {
		if p == domain.PartyBuyer && price > 0 {
			product, err := loadProduct(tx, n.ProductID)
			if err != nil {
				return err
			}
			if !product.AcceptsProposal(price) {
				return apperr.Newf(apperr.ValidationError, "Counter price is below the minimum of %.2f", *product.Price.MinNegotiable)
			}
		}
		return n.Counter(p, price, message, now)
	})
}

// Message appends a plain message; the negotiation state is unchanged.
func (s *Service) Message(ctx context.Context, actorID, id uuid.UUID, text string) (*domain.Negotiation, error) {
	return s.act(ctx, actorID, id, "message", func(tx *gorm.DB, n *domain.Negotiation, p domain.Party, now time.Time) error {
		return n.AddMessage(p, text, now)
	})
}

type action func(tx *gorm.DB, n *domain.Negotiation, p domain.Party, now time.Time) error

// act loads the negotiation, authorizes actorID, expires it if overdue and
// otherwise applies fn. The write is conditional on the status and turn that
// were read, so of two simultaneous responses only one succeeds.
func (s *Service) act(ctx context.Context, actorID, id uuid.UUID, name string, fn action) (*domain.Negotiation, error) {
	var (
		n       *domain.Negotiation
		expired bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		n, err = load(tx, id)
		if err != nil {
			return err
		}
		party, err := n.PartyOf(actorID)
		if err != nil {
			return err
		}
		now := s.now()
		if n.Expire(now) {
			expired = true
			return persistExpiry(tx, n)
		}

		prevStatus, prevTurn, prevCount := n.Status, n.LastOfferBy, len(n.Messages)
		if err := fn(tx, n, party, now); err != nil {
			return err
		}
		if err := guardedUpdate(tx, n, prevStatus, prevTurn); err != nil {
			return err
		}
		if added := n.Messages[prevCount:]; len(added) > 0 {
			if err := tx.Create(&added).Error; err != nil {
				return apperr.Wrap(err, "negotiation message save failed")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		s.publish(n, "expired")
		return nil, apperr.New(apperr.InvalidState, "Negotiation has expired")
	}

	metrics.NegotiationTransitions.WithLabelValues(name).Inc()
	log.Info().Str("negotiation_id", n.NegotiationID.String()).Str("action", name).Str("status", string(n.Status)).Msg("negotiation updated")
	s.publish(n, name)
	return n, nil
}

func (s *Service) publish(n *domain.Negotiation, action string) {
	data := map[string]interface{}{
		"negotiation_id": n.NegotiationID.String(),
		"product_id":     n.ProductID.String(),
		"action":         action,
		"status":         string(n.Status),
		"proposed_price": n.ProposedPrice,
	}
	if n.AgreedPrice != nil {
		data["agreed_price"] = *n.AgreedPrice
	}
	s.notifier().Notify(events.TopicNegotiationUpdated, []uuid.UUID{n.BuyerID, n.SellerID}, data)
}

func guardedUpdate(tx *gorm.DB, n *domain.Negotiation, prevStatus domain.NegotiationStatus, prevTurn domain.Party) error {
	res := tx.Model(&domain.Negotiation{}).
		Where("negotiation_id = ? AND status = ? AND last_offer_by = ?", n.NegotiationID, prevStatus, prevTurn).
		Updates(map[string]interface{}{
			"status":         n.Status,
			"proposed_price": n.ProposedPrice,
			"agreed_price":   n.AgreedPrice,
			"last_offer_by":  n.LastOfferBy,
			"open_key":       n.OpenKey,
		})
	if res.Error != nil {
		return apperr.Wrap(res.Error, "negotiation update failed")
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.InvalidState, "Negotiation changed while this action was applied; reload and retry")
	}
	return nil
}

func persistExpiry(tx *gorm.DB, n *domain.Negotiation) error {
	err := tx.Model(&domain.Negotiation{}).
		Where("negotiation_id = ? AND status IN ?", n.NegotiationID, []domain.NegotiationStatus{domain.NegotiationPending, domain.NegotiationCounter}).
		Updates(map[string]interface{}{"status": domain.NegotiationExpired, "open_key": nil}).Error
	if err != nil {
		return apperr.Wrap(err, "negotiation expiry failed")
	}
	return nil
}

func orderBySeq(db *gorm.DB) *gorm.DB {
	return db.Order("seq ASC")
}

func load(tx *gorm.DB, id uuid.UUID) (*domain.Negotiation, error) {
	var n domain.Negotiation
	if err := tx.Preload("Messages", orderBySeq).Where("negotiation_id = ?", id).First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "Negotiation not found")
		}
		return nil, apperr.Wrap(err, "negotiation lookup failed")
	}
	return &n, nil
}

func loadProduct(tx *gorm.DB, id uuid.UUID) (*domain.Product, error) {
	var p domain.Product
	if err := tx.Where("product_id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "Product not found")
		}
		return nil, apperr.Wrap(err, "product lookup failed")
	}
	return &p, nil
}

// LoadAccepted returns an accepted negotiation that buyerID may convert into
// an order. Used by order fulfillment inside its own transaction.
func LoadAccepted(tx *gorm.DB, buyerID, id uuid.UUID) (*domain.Negotiation, error) {
	n, err := load(tx, id)
	if err != nil {
		return nil, err
	}
	if n.BuyerID != buyerID {
		return nil, apperr.New(apperr.Unauthorized, "Only the buyer can order from this negotiation")
	}
	if n.Status != domain.NegotiationAccepted || n.AgreedPrice == nil {
		return nil, apperr.Newf(apperr.InvalidState, "Negotiation is %s, not accepted", n.Status)
	}
	if n.OrderID != nil {
		return nil, apperr.New(apperr.InvalidState, "Negotiation has already been ordered")
	}
	return n, nil
}

// MarkOrdered links an accepted negotiation to its order exactly once.
func MarkOrdered(tx *gorm.DB, id, orderID uuid.UUID) error {
	res := tx.Model(&domain.Negotiation{}).
		Where("negotiation_id = ? AND status = ? AND order_id IS NULL", id, domain.NegotiationAccepted).
		Update("order_id", orderID)
	if res.Error != nil {
		return apperr.Wrap(res.Error, "negotiation update failed")
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.InvalidState, "Negotiation has already been ordered")
	}
	return nil
}
