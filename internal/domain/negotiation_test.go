package domain

import (
	"testing"
	"time"

	"farmdirect-backend/internal/pkg/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func negotiableProduct() *Product {
	min := 80.0
	return &Product{
		ProductID: uuid.New(),
		SellerID:  uuid.New(),
		Price:     Price{Selling: 100, MinNegotiable: &min, Negotiable: true},
		Stock:     10,
		Active:    true,
	}
}

func TestNegotiation_CounterThenAcceptScenario(t *testing.T) {
	now := time.Now()
	p := negotiableProduct()
	buyer := uuid.New()
	n := NewNegotiation(p, buyer, 80, 2, "Would you take 80?", now, time.Hour)

	assert.Equal(t, NegotiationPending, n.Status)
	assert.Equal(t, 100.0, n.OriginalPrice)
	assert.Equal(t, p.SellerID, n.SellerID)
	require.NotNil(t, n.OpenKey)

	require.NoError(t, n.Counter(PartySeller, 90, "Best I can do is 90", now))
	assert.Equal(t, NegotiationCounter, n.Status)
	assert.Equal(t, 90.0, n.ProposedPrice)

	require.NoError(t, n.Accept(PartyBuyer, now))
	assert.Equal(t, NegotiationAccepted, n.Status)
	require.NotNil(t, n.AgreedPrice)
	assert.Equal(t, 90.0, *n.AgreedPrice)
	assert.Nil(t, n.OpenKey)
	assert.Len(t, n.Messages, 3)
	assert.Equal(t, 3, n.LastMessage().Seq)
}

func TestNegotiation_SellerAcceptsPending(t *testing.T) {
	now := time.Now()
	n := NewNegotiation(negotiableProduct(), uuid.New(), 85, 1, "", now, time.Hour)
	require.NoError(t, n.Accept(PartySeller, now))
	assert.Equal(t, 85.0, *n.AgreedPrice)
}

func TestNegotiation_CannotRespondToOwnOffer(t *testing.T) {
	now := time.Now()
	n := NewNegotiation(negotiableProduct(), uuid.New(), 85, 1, "", now, time.Hour)

	err := n.Accept(PartyBuyer, now)
	assert.Equal(t, apperr.InvalidTransition, apperr.KindOf(err))
	err = n.Counter(PartyBuyer, 86, "", now)
	assert.Equal(t, apperr.InvalidTransition, apperr.KindOf(err))
	assert.Equal(t, NegotiationPending, n.Status)
}

func TestNegotiation_TerminalStatesRejectActions(t *testing.T) {
	now := time.Now()
	for _, terminal := range []NegotiationStatus{NegotiationAccepted, NegotiationRejected, NegotiationExpired} {
		n := NewNegotiation(negotiableProduct(), uuid.New(), 85, 1, "", now, time.Hour)
		n.Status = terminal
		before := *n

		assert.Equal(t, apperr.InvalidState, apperr.KindOf(n.Accept(PartySeller, now)), terminal)
		assert.Equal(t, apperr.InvalidState, apperr.KindOf(n.Reject(PartySeller, "", now)), terminal)
		assert.Equal(t, apperr.InvalidState, apperr.KindOf(n.Counter(PartySeller, 95, "", now)), terminal)
		assert.Equal(t, before.Status, n.Status)
		assert.Equal(t, before.ProposedPrice, n.ProposedPrice)
		assert.Len(t, n.Messages, len(before.Messages))
	}
}

func TestNegotiation_CounterRequiresPositivePrice(t *testing.T) {
	now := time.Now()
	n := NewNegotiation(negotiableProduct(), uuid.New(), 85, 1, "", now, time.Hour)
	assert.Equal(t, apperr.ValidationError, apperr.KindOf(n.Counter(PartySeller, 0, "", now)))
	assert.Equal(t, NegotiationPending, n.Status)
}

func TestNegotiation_Expire(t *testing.T) {
	now := time.Now()
	n := NewNegotiation(negotiableProduct(), uuid.New(), 85, 1, "", now, time.Hour)

	assert.False(t, n.Expire(now.Add(30*time.Minute)))
	assert.True(t, n.Expire(now.Add(2*time.Hour)))
	assert.Equal(t, NegotiationExpired, n.Status)
	assert.Nil(t, n.OpenKey)
	// idempotent
	assert.False(t, n.Expire(now.Add(3*time.Hour)))
}

func TestNegotiation_PlainMessageKeepsState(t *testing.T) {
	now := time.Now()
	n := NewNegotiation(negotiableProduct(), uuid.New(), 85, 1, "", now, time.Hour)
	require.NoError(t, n.AddMessage(PartyBuyer, "Can you deliver Friday?", now))
	assert.Equal(t, NegotiationPending, n.Status)
	assert.Nil(t, n.LastMessage().Price)
	assert.Equal(t, apperr.ValidationError, apperr.KindOf(n.AddMessage(PartyBuyer, "", now)))
}

func TestNegotiation_PartyOf(t *testing.T) {
	n := NewNegotiation(negotiableProduct(), uuid.New(), 85, 1, "", time.Now(), time.Hour)
	p, err := n.PartyOf(n.SellerID)
	require.NoError(t, err)
	assert.Equal(t, PartySeller, p)
	_, err = n.PartyOf(uuid.New())
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))
}

func TestProduct_AcceptsProposal(t *testing.T) {
	p := negotiableProduct()
	assert.True(t, p.AcceptsProposal(80))
	assert.False(t, p.AcceptsProposal(79.99))
	assert.False(t, p.AcceptsProposal(0))
}
