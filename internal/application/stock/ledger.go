// Package stock owns every mutation of product stock and crop-listing sold
// quantities. Each mutation is a single conditional UPDATE, so concurrent
// callers serialize in the database and stock never goes negative.
package stock

import (
	"errors"
	"sort"

	"farmdirect-backend/internal/domain"
	"farmdirect-backend/internal/pkg/apperr"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Line is one (product, quantity) request against the ledger.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
}

// Available returns the current stock of an active product.
func Available(db *gorm.DB, productID uuid.UUID) (int, error) {
	p, err := load(db, productID)
	if err != nil {
		return 0, err
	}
	if !p.Active {
		return 0, nil
	}
	return p.Stock, nil
}

// Check is the read-only availability test used by the cart and checkout pre-pass.
func Check(db *gorm.DB, productID uuid.UUID, qty int) (*domain.Product, error) {
	if qty <= 0 {
		return nil, apperr.New(apperr.ValidationError, "Quantity must be at least 1")
	}
	p, err := load(db, productID)
	if err != nil {
		return nil, err
	}
	if !p.IsInStock(qty) {
		return p, insufficient(p, qty)
	}
	return p, nil
}

// Decrement removes qty units in one step, only if stock >= qty.
func Decrement(db *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return apperr.New(apperr.ValidationError, "Quantity must be at least 1")
	}
	res := db.Model(&domain.Product{}).
		Where("product_id = ? AND active = ? AND stock >= ?", productID, true, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return apperr.Wrap(res.Error, "stock decrement failed")
	}
	if res.RowsAffected == 1 {
		return nil
	}
	p, err := load(db, productID)
	if err != nil {
		return err
	}
	return insufficient(p, qty)
}

// Release returns qty units to a product. Used by rollback, cancellation and restock.
func Release(db *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return apperr.New(apperr.ValidationError, "Quantity must be at least 1")
	}
	res := db.Model(&domain.Product{}).
		Where("product_id = ?", productID).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty))
	if res.Error != nil {
		return apperr.Wrap(res.Error, "stock release failed")
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.NotFound, "Product not found")
	}
	return nil
}

// DecrementAll decrements every line or none. Lines for the same product are
// merged and applied in product id order so two multi-item checkouts always
// lock rows in the same sequence. On failure, lines already applied are
// released before the error is returned.
func DecrementAll(db *gorm.DB, lines []Line) error {
	merged := Merge(lines)
	applied := make([]Line, 0, len(merged))
	for _, l := range merged {
		if err := Decrement(db, l.ProductID, l.Quantity); err != nil {
			compensate(db, applied)
			return err
		}
		applied = append(applied, l)
	}
	return nil
}

// ReleaseAll returns stock for every line; it stops at the first failure.
func ReleaseAll(db *gorm.DB, lines []Line) error {
	for _, l := range Merge(lines) {
		if err := Release(db, l.ProductID, l.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// Merge sums quantities per product and sorts by product id.
func Merge(lines []Line) []Line {
	totals := make(map[uuid.UUID]int, len(lines))
	order := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		if _, ok := totals[l.ProductID]; !ok {
			order = append(order, l.ProductID)
		}
		totals[l.ProductID] += l.Quantity
	}
	sort.Slice(order, func(i, j int) bool { return order[i].String() < order[j].String() })
	out := make([]Line, 0, len(order))
	for _, id := range order {
		out = append(out, Line{ProductID: id, Quantity: totals[id]})
	}
	return out
}

// CommitListing moves qty from remaining to sold on a crop listing, only if
// available - sold >= qty at the moment of the update. It reports whether the
// listing is now fully sold.
func CommitListing(db *gorm.DB, listingID uuid.UUID, qty int) (bool, error) {
	if qty <= 0 {
		return false, apperr.New(apperr.ValidationError, "Quantity must be at least 1")
	}
	res := db.Model(&domain.CropListing{}).
		Where("listing_id = ? AND quantity_available - quantity_sold >= ?", listingID, qty).
		UpdateColumn("quantity_sold", gorm.Expr("quantity_sold + ?", qty))
	if res.Error != nil {
		return false, apperr.Wrap(res.Error, "listing update failed")
	}
	var l domain.CropListing
	if err := db.Select("listing_id", "quantity_available", "quantity_sold").
		Where("listing_id = ?", listingID).First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, apperr.New(apperr.NotFound, "Listing not found")
		}
		return false, apperr.Wrap(err, "listing lookup failed")
	}
	if res.RowsAffected == 0 {
		return false, apperr.Newf(apperr.InsufficientQuantity, "Only %d units remaining", l.Remaining())
	}
	return l.Remaining() == 0, nil
}

func compensate(db *gorm.DB, applied []Line) {
	for _, l := range applied {
		if err := Release(db, l.ProductID, l.Quantity); err != nil {
			log.Error().Err(err).Str("product_id", l.ProductID.String()).Int("qty", l.Quantity).Msg("stock compensation failed")
			continue
		}
		log.Warn().Str("product_id", l.ProductID.String()).Int("qty", l.Quantity).Msg("stock decrement rolled back")
	}
}

func load(db *gorm.DB, productID uuid.UUID) (*domain.Product, error) {
	var p domain.Product
	if err := db.Where("product_id = ?", productID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.NotFound, "Product %s not found", productID)
		}
		return nil, apperr.Wrap(err, "product lookup failed")
	}
	return &p, nil
}

func insufficient(p *domain.Product, qty int) error {
	if !p.Active {
		return apperr.Newf(apperr.InsufficientStock, "%s is no longer available", p.Name)
	}
	return apperr.Newf(apperr.InsufficientStock, "Insufficient stock for %s: requested %d, available %d", p.Name, qty, p.Stock)
}
