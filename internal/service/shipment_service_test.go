package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/tradeflow/internal/model"
)

func TestCreateShipment(t *testing.T) {
	db := newTestDB(t)
	svc := NewShipmentService(db)
	ctx := context.Background()

	supplier := createUser(t, db, model.RoleSupplier, "supplier")
	buyer := createUser(t, db, model.RoleBuyer, "buyer")

	value := decimal.RequireFromString("25000.50")
	shipment, err := svc.Create(ctx, caller(supplier), CreateShipmentInput{
		BuyerID:             buyer.ID,
		OriginPort:          "INMAA",
		DestinationPort:     "NLRTM",
		GoodsDescription:    "Leather goods",
		DeclaredValueUSD:    &value,
		SpecialInstructions: "Keep dry",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ShipmentStatusDraft, shipment.Status)
	assert.Regexp(t, `^TF-\d{8}-[A-Z0-9]{5}$`, shipment.ShipmentNumber)

	stored, err := svc.Get(ctx, caller(supplier), shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, "Keep dry", stored.Metadata["special_instructions"])
	assert.Equal(t, "api", stored.Metadata["created_via"])
	require.True(t, stored.DeclaredValueUSD.Valid)
	assert.True(t, value.Equal(stored.DeclaredValueUSD.Decimal))
}

func TestCreateShipmentRequiresSupplierAndBuyer(t *testing.T) {
	db := newTestDB(t)
	svc := NewShipmentService(db)
	ctx := context.Background()

	supplier := createUser(t, db, model.RoleSupplier, "supplier")
	forwarder := createUser(t, db, model.RoleForwarder, "forwarder")
	buyer := createUser(t, db, model.RoleBuyer, "buyer")

	in := CreateShipmentInput{BuyerID: buyer.ID, OriginPort: "INMAA", DestinationPort: "SGSIN", GoodsDescription: "Tea"}
	_, err := svc.Create(ctx, caller(forwarder), in)
	assert.ErrorIs(t, err, ErrForbidden)

	in.BuyerID = forwarder.ID
	_, err = svc.Create(ctx, caller(supplier), in)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestListShipmentsIsScopedByRole(t *testing.T) {
	db := newTestDB(t)
	svc := NewShipmentService(db)
	ctx := context.Background()

	supplier := createUser(t, db, model.RoleSupplier, "supplier")
	otherSupplier := createUser(t, db, model.RoleSupplier, "other")
	buyer := createUser(t, db, model.RoleBuyer, "buyer")
	forwarder := createUser(t, db, model.RoleForwarder, "forwarder")

	mine := createShipment(t, db, supplier, buyer, model.ShipmentStatusDraft)
	quoted := createShipment(t, db, supplier, buyer, model.ShipmentStatusQuoteRequested)
	createShipment(t, db, otherSupplier, buyer, model.ShipmentStatusDraft)
	createQuote(t, db, quoted, forwarder, model.QuoteStatusPending, mine.CreatedAt.AddDate(0, 1, 0))

	list, err := svc.List(ctx, caller(supplier), "")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = svc.List(ctx, caller(supplier), model.ShipmentStatusDraft)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)

	list, err = svc.List(ctx, caller(buyer), "")
	require.NoError(t, err)
	assert.Len(t, list, 3)

	list, err = svc.List(ctx, caller(forwarder), "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, quoted.ID, list[0].ID)

	open, err := svc.ListOpen(ctx, caller(forwarder))
	require.NoError(t, err)
	assert.Len(t, open, 3)

	_, err = svc.ListOpen(ctx, caller(supplier))
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateShipmentOwnerOnly(t *testing.T) {
	db := newTestDB(t)
	svc := NewShipmentService(db)
	ctx := context.Background()

	supplier := createUser(t, db, model.RoleSupplier, "supplier")
	buyer := createUser(t, db, model.RoleBuyer, "buyer")
	shipment := createShipment(t, db, supplier, buyer, model.ShipmentStatusDraft)

	hs := "520512"
	weight := 1250.5
	updated, err := svc.Update(ctx, caller(supplier), shipment.ID, UpdateShipmentInput{HSCode: &hs, GrossWeightKg: &weight})
	require.NoError(t, err)
	assert.Equal(t, hs, updated.HSCode)
	require.NotNil(t, updated.GrossWeightKg)
	assert.Equal(t, weight, *updated.GrossWeightKg)

	_, err = svc.Update(ctx, caller(buyer), shipment.ID, UpdateShipmentInput{HSCode: &hs})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Update(ctx, caller(supplier), "missing", UpdateShipmentInput{HSCode: &hs})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRequestQuotes(t *testing.T) {
	db := newTestDB(t)
	svc := NewShipmentService(db)
	ctx := context.Background()

	supplier := createUser(t, db, model.RoleSupplier, "supplier")
	buyer := createUser(t, db, model.RoleBuyer, "buyer")
	shipment := createShipment(t, db, supplier, buyer, model.ShipmentStatusDraft)

	updated, err := svc.RequestQuotes(ctx, caller(supplier), shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ShipmentStatusQuoteRequested, updated.Status)

	_, err = svc.RequestQuotes(ctx, caller(supplier), shipment.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestUpdateShipmentKeepsEtaAfterEtd(t *testing.T) {
	db := newTestDB(t)
	svc := NewShipmentService(db)
	ctx := context.Background()

	supplier := createUser(t, db, model.RoleSupplier, "supplier")
	buyer := createUser(t, db, model.RoleBuyer, "buyer")
	shipment := createShipment(t, db, supplier, buyer, model.ShipmentStatusDraft)

	etd := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	eta := etd.AddDate(0, 0, 20)
	_, err := svc.Update(ctx, caller(supplier), shipment.ID, UpdateShipmentInput{PreferredETD: &etd, PreferredETA: &eta})
	require.NoError(t, err)

	early := etd.AddDate(0, 0, -1)
	_, err = svc.Update(ctx, caller(supplier), shipment.ID, UpdateShipmentInput{PreferredETA: &early})
	assert.ErrorIs(t, err, ErrValidation)

	late := eta.AddDate(0, 0, 1)
	_, err = svc.Update(ctx, caller(supplier), shipment.ID, UpdateShipmentInput{PreferredETD: &late})
	assert.ErrorIs(t, err, ErrValidation)

	stored, err := svc.Get(ctx, caller(supplier), shipment.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PreferredETA)
	require.NotNil(t, stored.PreferredETD)
	assert.True(t, eta.Equal(*stored.PreferredETA))
	assert.True(t, etd.Equal(*stored.PreferredETD))
}

func TestCreateShipmentRedrawsCollidingNumber(t *testing.T) {
	db := newTestDB(t)
	svc := NewShipmentService(db)

	supplier := createUser(t, db, model.RoleSupplier, "supplier")
	buyer := createUser(t, db, model.RoleBuyer, "buyer")
	taken := createShipment(t, db, supplier, buyer, model.ShipmentStatusDraft)

	numbers := []string{taken.ShipmentNumber, "TF-20250310-ZZZZZ"}
	svc.number = func(time.Time) string {
		n := numbers[0]
		numbers = numbers[1:]
		return n
	}

	shipment, err := svc.Create(context.Background(), caller(supplier), CreateShipmentInput{
		BuyerID: buyer.ID, OriginPort: "INMAA", DestinationPort: "SGSIN", GoodsDescription: "Tea leaves",
	})
	require.NoError(t, err)
	assert.Equal(t, "TF-20250310-ZZZZZ", shipment.ShipmentNumber)
}
