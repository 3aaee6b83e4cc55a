package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/tradeflow/internal/model"
)

func TestShipmentNumberFormat(t *testing.T) {
	now := time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC)
	assert.Regexp(t, regexp.MustCompile(`^TF-20250307-[A-Z0-9]{5}$`), ShipmentNumber(now))
}

func TestQuoteNumberFormat(t *testing.T) {
	now := time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC)
	assert.Regexp(t, regexp.MustCompile(`^Q-202503-[0-9]{5}$`), QuoteNumber(now))
}

func TestErrorIsMatchesKind(t *testing.T) {
	err := NotFound("Shipment %s not found", "abc")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrForbidden))
	assert.Equal(t, "Shipment abc not found", err.Error())
}

func TestAuthorizeView(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	supplier := createUser(t, db, model.RoleSupplier, "supplier")
	otherSupplier := createUser(t, db, model.RoleSupplier, "other")
	buyer := createUser(t, db, model.RoleBuyer, "buyer")
	forwarder := createUser(t, db, model.RoleForwarder, "forwarder")
	outsider := createUser(t, db, model.RoleForwarder, "outsider")

	open := createShipment(t, db, supplier, buyer, model.ShipmentStatusQuoteRequested)
	closed := createShipment(t, db, supplier, buyer, model.ShipmentStatusQuoted)
	createQuote(t, db, closed, forwarder, model.QuoteStatusAccepted, time.Now().Add(24*time.Hour))

	require.NoError(t, authorizeView(ctx, db, open, caller(supplier)))
	require.NoError(t, authorizeView(ctx, db, open, caller(buyer)))
	require.NoError(t, authorizeView(ctx, db, open, caller(outsider)))
	require.NoError(t, authorizeView(ctx, db, closed, caller(forwarder)))

	assert.ErrorIs(t, authorizeView(ctx, db, closed, caller(outsider)), ErrForbidden)
	assert.ErrorIs(t, authorizeView(ctx, db, open, caller(otherSupplier)), ErrForbidden)
}
