package negotiations

import (
	"context"
	"sync"
	"testing"
	"time"

	"farmdirect-backend/internal/domain"
	"farmdirect-backend/internal/infrastructure/database"
	"farmdirect-backend/internal/pkg/apperr"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu     sync.Mutex
	topics []string
	data   []map[string]interface{}
}

func (r *recordingNotifier) Notify(topic string, _ []uuid.UUID, data map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	r.data = append(r.data, data)
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func setupNegotiationTest(t *testing.T) (*Service, *gorm.DB, *clock, *recordingNotifier) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))
	clk := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	rec := &recordingNotifier{}
	return &Service{DB: db, Events: rec, TTL: 48 * time.Hour, Now: clk.Now}, db, clk, rec
}

func seedNegotiable(t *testing.T, db *gorm.DB, negotiable bool) domain.Product {
	min := 80.0
	p := domain.Product{
		SellerID: uuid.New(),
		Name:     "Basmati rice",
		Unit:     "kg",
		Price:    domain.Price{Selling: 100, MinNegotiable: &min, Negotiable: negotiable},
		Stock:    50,
		Active:   true,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func TestNegotiation_CounterThenAcceptScenario(t *testing.T) {
	svc, db, _, rec := setupNegotiationTest(t)
	ctx := context.Background()
	p := seedNegotiable(t, db, true)
	buyer := uuid.New()

	n, err := svc.Create(ctx, buyer, CreateInput{ProductID: p.ProductID, ProposedPrice: 80, Quantity: 5, Message: "bulk order"})
	require.NoError(t, err)
	assert.Equal(t, domain.NegotiationPending, n.Status)
	assert.Equal(t, 100.0, n.OriginalPrice)
	assert.Equal(t, p.SellerID, n.SellerID)

	n, err = svc.Counter(ctx, p.SellerID, n.NegotiationID, 90, "meet halfway")
	require.NoError(t, err)
	assert.Equal(t, domain.NegotiationCounter, n.Status)
	assert.Equal(t, 90.0, n.ProposedPrice)

	n, err = svc.Accept(ctx, buyer, n.NegotiationID)
	require.NoError(t, err)
	assert.Equal(t, domain.NegotiationAccepted, n.Status)
	require.NotNil(t, n.AgreedPrice)
	assert.Equal(t, 90.0, *n.AgreedPrice)

	stored, err := svc.Get(ctx, buyer, n.NegotiationID)
	require.NoError(t, err)
	assert.Equal(t, domain.NegotiationAccepted, stored.Status)
	require.Len(t, stored.Messages, 3)
	assert.Equal(t, 1, stored.Messages[0].Seq)
	require.NotNil(t, stored.Messages[1].Price)
	assert.Equal(t, 90.0, *stored.Messages[1].Price)
	assert.Equal(t, "meet halfway", stored.Messages[1].Message)

	assert.Len(t, rec.topics, 3)
	assert.Equal(t, "accept", rec.data[2]["action"])
}

func TestNegotiation_DuplicateOpenPair(t *testing.T) {
	svc, db, _, _ := setupNegotiationTest(t)
	ctx := context.Background()
	p := seedNegotiable(t, db, true)
	buyer := uuid.New()

	first, err := svc.Create(ctx, buyer, CreateInput{ProductID: p.ProductID, ProposedPrice: 85, Quantity: 1})
	require.NoError(t, err)

	_, err = svc.Create(ctx, buyer, CreateInput{ProductID: p.ProductID, ProposedPrice: 90, Quantity: 1})
	assert.Equal(t, apperr.DuplicateNegotiation, apperr.KindOf(err))

	_, err = svc.Counter(ctx, p.SellerID, first.NegotiationID, 95, "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, buyer, CreateInput{ProductID: p.ProductID, ProposedPrice: 90, Quantity: 1})
	assert.Equal(t, apperr.DuplicateNegotiation, apperr.KindOf(err), "counter is still open")

	_, err = svc.Reject(ctx, buyer, first.NegotiationID, "too high")
	require.NoError(t, err)
	_, err = svc.Create(ctx, buyer, CreateInput{ProductID: p.ProductID, ProposedPrice: 90, Quantity: 1})
	require.NoError(t, err)

	other, err := svc.Create(ctx, uuid.New(), CreateInput{ProductID: p.ProductID, ProposedPrice: 90, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.NegotiationPending, other.Status)
}

func TestNegotiation_CreateGuards(t *testing.T) {
	svc, db, _, _ := setupNegotiationTest(t)
	ctx := context.Background()
	fixed := seedNegotiable(t, db, false)
	p := seedNegotiable(t, db, true)
	buyer := uuid.New()

	_, err := svc.Create(ctx, buyer, CreateInput{ProductID: fixed.ProductID, ProposedPrice: 90, Quantity: 1})
	assert.Equal(t, apperr.ValidationError, apperr.KindOf(err))

	_, err = svc.Create(ctx, buyer, CreateInput{ProductID: p.ProductID, ProposedPrice: 79, Quantity: 1})
	assert.Equal(t, apperr.ValidationError, apperr.KindOf(err))

	_, err = svc.Create(ctx, buyer, CreateInput{ProductID: p.ProductID, ProposedPrice: 90, Quantity: 0})
	assert.Equal(t, apperr.ValidationError, apperr.KindOf(err))

	_, err = svc.Create(ctx, buyer, CreateInput{ProductID: p.ProductID, ProposedPrice: 90, Quantity: 51})
	assert.Equal(t, apperr.InsufficientStock, apperr.KindOf(err))

	_, err = svc.Create(ctx, p.SellerID, CreateInput{ProductID: p.ProductID, ProposedPrice: 90, Quantity: 1})
	assert.Equal(t, apperr.ValidationError, apperr.KindOf(err))

	_, err = svc.Create(ctx, buyer, CreateInput{ProductID: uuid.New(), ProposedPrice: 90, Quantity: 1})
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestNegotiation_TerminalActionsFailWithoutChange(t *testing.T) {
	svc, db, _, _ := setupNegotiationTest(t)
	ctx := context.Background()
	p := seedNegotiable(t, db, true)
	buyer := uuid.New()

	n, err := svc.Create(ctx, buyer, CreateInput{ProductID: p.ProductID, ProposedPrice: 85, Quantity: 2})
	require.NoError(t, err)
	_, err = svc.Reject(ctx, p.SellerID, n.NegotiationID, "")
	require.NoError(t, err)

	_, err = svc.Accept(ctx, p.SellerID, n.NegotiationID)
	assert.Equal(t, apperr.InvalidState, apperr.KindOf(err))
	_, err = svc.Counter(ctx, buyer, n.NegotiationID, 90, "")
	assert.Equal(t, apperr.InvalidState, apperr.KindOf(err))
	_, err = svc.Reject(ctx, buyer, n.NegotiationID, "")
	assert.Equal(t, apperr.InvalidState, apperr.KindOf(err))

	stored, err := svc.Get(ctx, buyer, n.NegotiationID)
	require.NoError(t, err)
	assert.Equal(t, domain.NegotiationRejected, stored.Status)
	assert.Len(t, stored.Messages, 2)
}

func TestNegotiation_TurnAndAuthorization(t *testing.T) {
	svc, db, _, _ := setupNegotiationTest(t)
	ctx := context.Background()
	p := seedNegotiable(t, db, true)
	buyer := uuid.New()

	n, err := svc.Create(ctx, buyer, CreateInput{ProductID: p.ProductID, ProposedPrice: 85, Quantity: 2})
	require.NoError(t, err)

	_, err = svc.Accept(ctx, buyer, n.NegotiationID)
	assert.Equal(t, apperr.InvalidTransition, apperr.KindOf(err), "buyer cannot accept own offer")

	_, err = svc.Accept(ctx, uuid.New(), n.NegotiationID)
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))
	_, err = svc.Get(ctx, uuid.New(), n.NegotiationID)
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))

	_, err = svc.Counter(ctx, p.SellerID, n.NegotiationID, 0, "")
	assert.Equal(t, apperr.ValidationError, apperr.KindOf(err))

	_, err = svc.Counter(ctx, p.SellerID, n.NegotiationID, 95, "")
	require.NoError(t, err)
	_, err = svc.Counter(ctx, buyer, n.NegotiationID, 70, "")
	assert.Equal(t, apperr.ValidationError, apperr.KindOf(err), "buyer counter below floor")

	n, err = svc.Message(ctx, buyer, n.NegotiationID, "can you deliver Friday?")
	require.NoError(t, err)
	assert.Equal(t, domain.NegotiationCounter, n.Status)
	assert.Equal(t, 95.0, n.ProposedPrice)
	assert.Nil(t, n.LastMessage().Price)
}

func TestNegotiation_AcceptPendingRequiresNegotiableProduct(t *testing.T) {
	svc, db, _, _ := setupNegotiationTest(t)
	ctx := context.Background()
	p := seedNegotiable(t, db, true)
	buyer := uuid.New()

	n, err := svc.Create(ctx, buyer, CreateInput{ProductID: p.ProductID, ProposedPrice: 85, Quantity: 2})
	require.NoError(t, err)
	require.NoError(t, db.Model(&domain.Product{}).Where("product_id = ?", p.ProductID).Update("price_negotiable", false).Error)

	_, err = svc.Accept(ctx, p.SellerID, n.NegotiationID)
	assert.Equal(t, apperr.InvalidState, apperr.KindOf(err))

	stored, err := svc.Get(ctx, buyer, n.NegotiationID)
	require.NoError(t, err)
	assert.Equal(t, domain.NegotiationPending, stored.Status)
}

func TestNegotiation_LazyExpiry(t *testing.T) {
	svc, db, clk, _ := setupNegotiationTest(t)
	ctx := context.Background()
	p := seedNegotiable(t, db, true)
	buyer := uuid.New()

	n, err := svc.Create(ctx, buyer, CreateInput{ProductID: p.ProductID, ProposedPrice: 85, Quantity: 2})
	require.NoError(t, err)
	clk.Advance(49 * time.Hour)

	_, err = svc.Accept(ctx, p.SellerID, n.NegotiationID)
	assert.Equal(t, apperr.InvalidState, apperr.KindOf(err))

	var stored domain.Negotiation
	require.NoError(t, db.Where("negotiation_id = ?", n.NegotiationID).First(&stored).Error)
	assert.Equal(t, domain.NegotiationExpired, stored.Status)
	assert.Nil(t, stored.OpenKey)

	_, err = svc.Create(ctx, buyer, CreateInput{ProductID: p.ProductID, ProposedPrice: 85, Quantity: 2})
	require.NoError(t, err)
}

func TestNegotiation_ExpiredPairIsReplacedOnCreate(t *testing.T) {
	svc, db, clk, _ := setupNegotiationTest(t)
	ctx := context.Background()
	p := seedNegotiable(t, db, true)
	buyer := uuid.New()

	old, err := svc.Create(ctx, buyer, CreateInput{ProductID: p.ProductID, ProposedPrice: 85, Quantity: 2})
	require.NoError(t, err)
	clk.Advance(72 * time.Hour)

	_, err = svc.Create(ctx, buyer, CreateInput{ProductID: p.ProductID, ProposedPrice: 88, Quantity: 2})
	require.NoError(t, err)

	var stored domain.Negotiation
	require.NoError(t, db.Where("negotiation_id = ?", old.NegotiationID).First(&stored).Error)
	assert.Equal(t, domain.NegotiationExpired, stored.Status)
}

func TestNegotiation_ListByRoleAndProduct(t *testing.T) {
	svc, db, clk, _ := setupNegotiationTest(t)
	ctx := context.Background()
	p1 := seedNegotiable(t, db, true)
	p2 := seedNegotiable(t, db, true)
	buyer := uuid.New()

	_, err := svc.Create(ctx, buyer, CreateInput{ProductID: p1.ProductID, ProposedPrice: 85, Quantity: 1})
	require.NoError(t, err)
	_, err = svc.Create(ctx, buyer, CreateInput{ProductID: p2.ProductID, ProposedPrice: 85, Quantity: 1})
	require.NoError(t, err)

	mine, err := svc.List(ctx, buyer, ListFilter{Role: "buyer"})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	pid := p1.ProductID
	byProduct, err := svc.List(ctx, buyer, ListFilter{ProductID: &pid})
	require.NoError(t, err)
	require.Len(t, byProduct, 1)

	selling, err := svc.List(ctx, p1.SellerID, ListFilter{Role: "seller"})
	require.NoError(t, err)
	assert.Len(t, selling, 1)

	none, err := svc.List(ctx, buyer, ListFilter{Role: "seller"})
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = svc.List(ctx, buyer, ListFilter{Role: "farmer"})
	assert.Equal(t, apperr.ValidationError, apperr.KindOf(err))

	clk.Advance(49 * time.Hour)
	expired, err := svc.List(ctx, buyer, ListFilter{})
	require.NoError(t, err)
	for _, n := range expired {
		assert.Equal(t, domain.NegotiationExpired, n.Status)
	}
}

func TestGuardedUpdate_StaleStatusIsRejected(t *testing.T) {
	svc, db, _, _ := setupNegotiationTest(t)
	ctx := context.Background()
	p := seedNegotiable(t, db, true)
	buyer := uuid.New()

	n, err := svc.Create(ctx, buyer, CreateInput{ProductID: p.ProductID, ProposedPrice: 85, Quantity: 1})
	require.NoError(t, err)
	_, err = svc.Reject(ctx, p.SellerID, n.NegotiationID, "")
	require.NoError(t, err)

	// n still carries the pending snapshot read before the reject landed.
	require.NoError(t, n.Accept(domain.PartySeller, time.Now()))
	err = guardedUpdate(db, n, domain.NegotiationPending, domain.PartyBuyer)
	assert.Equal(t, apperr.InvalidState, apperr.KindOf(err))

	var stored domain.Negotiation
	require.NoError(t, db.Where("negotiation_id = ?", n.NegotiationID).First(&stored).Error)
	assert.Equal(t, domain.NegotiationRejected, stored.Status)
	assert.Nil(t, stored.AgreedPrice)
}

func TestLoadAcceptedAndMarkOrdered(t *testing.T) {
	svc, db, _, _ := setupNegotiationTest(t)
	ctx := context.Background()
	p := seedNegotiable(t, db, true)
	buyer := uuid.New()

	n, err := svc.Create(ctx, buyer, CreateInput{ProductID: p.ProductID, ProposedPrice: 85, Quantity: 1})
	require.NoError(t, err)
	_, err = LoadAccepted(db, buyer, n.NegotiationID)
	assert.Equal(t, apperr.InvalidState, apperr.KindOf(err))

	_, err = svc.Accept(ctx, p.SellerID, n.NegotiationID)
	require.NoError(t, err)
	_, err = LoadAccepted(db, uuid.New(), n.NegotiationID)
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))

	got, err := LoadAccepted(db, buyer, n.NegotiationID)
	require.NoError(t, err)
	assert.Equal(t, 85.0, *got.AgreedPrice)

	orderID := uuid.New()
	require.NoError(t, MarkOrdered(db, n.NegotiationID, orderID))
	assert.Equal(t, apperr.InvalidState, apperr.KindOf(MarkOrdered(db, n.NegotiationID, uuid.New())))
	_, err = LoadAccepted(db, buyer, n.NegotiationID)
	assert.Equal(t, apperr.InvalidState, apperr.KindOf(err))
}
