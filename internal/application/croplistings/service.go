package croplistings

import (
	"context"
	"errors"
	"strings"
	"time"

	"farmdirect-backend/internal/application/stock"
	"farmdirect-backend/internal/domain"
	"farmdirect-backend/internal/infrastructure/events"
	"farmdirect-backend/internal/pkg/apperr"
	"farmdirect-backend/internal/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type Service struct {
	DB     *gorm.DB
	Events events.Notifier
	Now    func() time.Time
}

type CreateInput struct {
	CropName       string
	Variety        string
	Unit           string
	Location       string
	Available      int
	BasePrice      float64
	Negotiable     bool
	MinPrice       *float64
	AvailableUntil *time.Time
}

type ListFilter struct {
	Status   string
	FarmerID *uuid.UUID
}

type OrderInput struct {
	Quantity int
	Price    float64
	Notes    string
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) notifier() events.Notifier {
	if s.Events == nil {
		return events.Nop{}
	}
	return s.Events
}

func (s *Service) Create(ctx context.Context, farmerID uuid.UUID, in CreateInput) (*domain.CropListing, error) {
	in.CropName = strings.TrimSpace(in.CropName)
	in.Unit = strings.TrimSpace(in.Unit)
	switch {
	case in.CropName == "" || in.Unit == "":
		return nil, apperr.New(apperr.ValidationError, "crop_name and unit are required")
	case in.Available < 1:
		return nil, apperr.New(apperr.ValidationError, "Available quantity must be at least 1")
	case in.BasePrice <= 0:
		return nil, apperr.New(apperr.ValidationError, "Base price must be greater than 0")
	case in.MinPrice != nil && (*in.MinPrice <= 0 || *in.MinPrice > in.BasePrice):
		return nil, apperr.New(apperr.ValidationError, "Minimum price must be between 0 and the base price")
	case in.AvailableUntil != nil && !in.AvailableUntil.After(s.now()):
		return nil, apperr.New(apperr.ValidationError, "available_until must be in the future")
	}
	minPrice := in.MinPrice
	if !in.Negotiable {
		minPrice = nil
	}
	l := &domain.CropListing{
		FarmerID:       farmerID,
		CropName:       in.CropName,
		Variety:        in.Variety,
		Unit:           in.Unit,
		Location:       in.Location,
		Quantity:       domain.CropQuantity{Available: in.Available},
		Pricing:        domain.CropPricing{BasePrice: in.BasePrice, Negotiable: in.Negotiable, MinPrice: minPrice},
		Status:         domain.ListingActive,
		AvailableUntil: in.AvailableUntil,
	}
	if err := s.DB.WithContext(ctx).Create(l).Error; err != nil {
		return nil, apperr.Wrap(err, "listing create failed")
	}
	log.Info().Str("listing_id", l.ListingID.String()).Str("crop", l.CropName).Int("available", in.Available).Msg("crop listing created")
	return l, nil
}

// Get returns a listing with its orders, expiring it first if overdue.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.CropListing, error) {
	var l *domain.CropListing
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		l, err = s.load(tx, id, true)
		return err
	})
	return l, err
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.CropListing, error) {
	if f.Status != "" && !isListingStatus(domain.ListingStatus(f.Status)) {
		return nil, apperr.Newf(apperr.ValidationError, "Unknown listing status %q", f.Status)
	}
	db := s.DB.WithContext(ctx)
	if err := expireOverdue(db, s.now()); err != nil {
		return nil, err
	}
	q := db.Model(&domain.CropListing{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.FarmerID != nil {
		q = q.Where("farmer_id = ?", *f.FarmerID)
	}
	var list []domain.CropListing
	if err := q.Order(`"createdAt" DESC`).Find(&list).Error; err != nil {
		return nil, apperr.Wrap(err, "listing list failed")
	}
	return list, nil
}

// Close withdraws an active listing. Pending orders can no longer be accepted.
func (s *Service) Close(ctx context.Context, farmerID, id uuid.UUID) (*domain.CropListing, error) {
	var l *domain.CropListing
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		l, err = s.load(tx, id, true)
		if err != nil {
			return err
		}
		if l.FarmerID != farmerID {
			return apperr.New(apperr.Unauthorized, "Only the listing's farmer can close it")
		}
		if l.Status != domain.ListingActive {
			return apperr.Newf(apperr.InvalidState, "Listing is %s", l.Status)
		}
		res := tx.Model(&domain.CropListing{}).
			Where("listing_id = ? AND status = ?", id, domain.ListingActive).
			Update("status", domain.ListingClosed)
		if res.Error != nil {
			return apperr.Wrap(res.Error, "listing update failed")
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.InvalidState, "Listing changed concurrently")
		}
		l.Status = domain.ListingClosed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// AddOrder records a pending order. Sold is not touched until the farmer accepts.
func (s *Service) AddOrder(ctx context.Context, listingID, buyerID uuid.UUID, in OrderInput) (*domain.CropOrder, error) {
	if in.Quantity < 1 {
		return nil, apperr.New(apperr.ValidationError, "Quantity must be at least 1")
	}
	var (
		order    *domain.CropOrder
		farmerID uuid.UUID
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := s.load(tx, listingID, false)
		if err != nil {
			return err
		}
		if l.Status != domain.ListingActive {
			return apperr.Newf(apperr.InvalidState, "Listing is %s", l.Status)
		}
		if l.FarmerID == buyerID {
			return apperr.New(apperr.ValidationError, "Cannot order from your own listing")
		}
		if err := l.AcceptsPrice(in.Price); err != nil {
			return err
		}
		if in.Quantity > l.Remaining() {
			return apperr.Newf(apperr.InsufficientQuantity, "Only %d %s remaining", l.Remaining(), l.Unit)
		}
		order = &domain.CropOrder{
			ListingID: listingID,
			BuyerID:   buyerID,
			Quantity:  in.Quantity,
			Price:     in.Price,
			Notes:     strings.TrimSpace(in.Notes),
			Status:    domain.CropOrderPending,
		}
		farmerID = l.FarmerID
		if err := tx.Create(order).Error; err != nil {
			return apperr.Wrap(err, "crop order create failed")
		}
		return nil
	})
	if err != nil {
		if apperr.IsKind(err, apperr.InsufficientQuantity) {
			metrics.StockRejections.WithLabelValues("crop_order").Inc()
		}
		return nil, err
	}
	s.notifier().Notify(events.TopicCropOrderUpdated, []uuid.UUID{farmerID}, map[string]interface{}{
		"listing_id": listingID.String(),
		"order_id":   order.OrderID.String(),
		"status":     string(order.Status),
		"quantity":   order.Quantity,
	})
	return order, nil
}

// UpdateOrderStatus applies pending->accepted, pending->rejected or
// accepted->completed. Accepting commits the quantity against the listing with
// a conditional update, so concurrent accepts cannot oversell it.
func (s *Service) UpdateOrderStatus(ctx context.Context, farmerID, listingID, orderID uuid.UUID, to domain.CropOrderStatus, deliveryDate *time.Time) (*domain.CropOrder, error) {
	if !domain.IsValidCropOrderStatus(to) {
		return nil, apperr.Newf(apperr.ValidationError, "Unknown order status %q", to)
	}
	var order domain.CropOrder
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := s.load(tx, listingID, false)
		if err != nil {
			return err
		}
		if l.FarmerID != farmerID {
			return apperr.New(apperr.Unauthorized, "Only the listing's farmer can update its orders")
		}
		if err := tx.Where("order_id = ? AND listing_id = ?", orderID, listingID).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.NotFound, "Order not found")
			}
			return apperr.Wrap(err, "crop order lookup failed")
		}
		if err := domain.CheckCropOrderTransition(order.Status, to); err != nil {
			return err
		}

		updates := map[string]interface{}{"status": to}
		switch to {
		case domain.CropOrderAccepted:
			if l.Status == domain.ListingClosed {
				return apperr.New(apperr.InvalidState, "Listing is closed")
			}
			soldOut, err := stock.CommitListing(tx, listingID, order.Quantity)
			if err != nil {
				return err
			}
			if soldOut {
				if err := tx.Model(&domain.CropListing{}).
					Where("listing_id = ? AND status = ?", listingID, domain.ListingActive).
					Update("status", domain.ListingSoldOut).Error; err != nil {
					return apperr.Wrap(err, "listing update failed")
				}
			}
		case domain.CropOrderCompleted:
			d := s.now()
			if deliveryDate != nil {
				d = *deliveryDate
			}
			updates["delivery_date"] = d
			order.DeliveryDate = &d
		}

		res := tx.Model(&domain.CropOrder{}).
			Where("order_id = ? AND status = ?", orderID, order.Status).
			Updates(updates)
		if res.Error != nil {
			return apperr.Wrap(res.Error, "crop order update failed")
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.InvalidState, "Order changed concurrently; reload and retry")
		}
		order.Status = to
		return nil
	})
	if err != nil {
		if apperr.IsKind(err, apperr.InsufficientQuantity) {
			metrics.StockRejections.WithLabelValues("crop_accept").Inc()
		}
		return nil, err
	}

	metrics.CropOrderTransitions.WithLabelValues(string(to)).Inc()
	log.Info().Str("listing_id", listingID.String()).Str("order_id", orderID.String()).Str("status", string(to)).Msg("crop order updated")
	s.notifier().Notify(events.TopicCropOrderUpdated, []uuid.UUID{order.BuyerID}, map[string]interface{}{
		"listing_id": listingID.String(),
		"order_id":   orderID.String(),
		"status":     string(to),
	})
	return &order, nil
}

// load reads a listing (optionally with orders) and persists lazy expiry.
func (s *Service) load(tx *gorm.DB, id uuid.UUID, withOrders bool) (*domain.CropListing, error) {
	var l domain.CropListing
	q := tx
	if withOrders {
		q = q.Preload("Orders", func(db *gorm.DB) *gorm.DB { return db.Order(`"createdAt" ASC`) })
	}
	if err := q.Where("listing_id = ?", id).First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "Listing not found")
		}
		return nil, apperr.Wrap(err, "listing lookup failed")
	}
	if l.IsExpired(s.now()) {
		if err := tx.Model(&domain.CropListing{}).
			Where("listing_id = ? AND status = ?", id, domain.ListingActive).
			Update("status", domain.ListingExpired).Error; err != nil {
			return nil, apperr.Wrap(err, "listing expiry failed")
		}
		l.Status = domain.ListingExpired
	}
	return &l, nil
}

func expireOverdue(db *gorm.DB, now time.Time) error {
	err := db.Model(&domain.CropListing{}).
		Where("status = ? AND available_until IS NOT NULL AND available_until < ?", domain.ListingActive, now).
		Update("status", domain.ListingExpired).Error
	if err != nil {
		return apperr.Wrap(err, "listing expiry failed")
	}
	return nil
}

func isListingStatus(s domain.ListingStatus) bool {
	switch s {
	case domain.ListingActive, domain.ListingSoldOut, domain.ListingExpired, domain.ListingClosed:
		return true
	}
	return false
}
