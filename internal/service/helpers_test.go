package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/tradeflow/internal/model"
	"github.com/suteetoe/tradeflow/pkg/notify"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

func createUser(t *testing.T, db *gorm.DB, role, name string) *model.User {
	t.Helper()
	user := &model.User{
		Email:       name + "@example.com",
		Password:    "x",
		FullName:    name,
		CompanyName: name + " Ltd",
		Role:        role,
		Country:     "IN",
		IsActive:    true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createShipment(t *testing.T, db *gorm.DB, supplier, buyer *model.User, status string) *model.Shipment {
	t.Helper()
	shipment := &model.Shipment{
		ShipmentNumber:   ShipmentNumber(time.Now()),
		SupplierID:       supplier.ID,
		BuyerID:          buyer.ID,
		OriginPort:       "INMAA",
		DestinationPort:  "SGSIN",
		ContainerType:    "40HC",
		ContainerQty:     1,
		GoodsDescription: "Cotton yarn",
		Status:           status,
	}
	require.NoError(t, db.Create(shipment).Error)
	return shipment
}

func createQuote(t *testing.T, db *gorm.DB, shipment *model.Shipment, forwarder *model.User, status string, validity time.Time) *model.Quote {
	t.Helper()
	quote := &model.Quote{
		QuoteNumber:       QuoteNumber(time.Now()),
		ShipmentID:        shipment.ID,
		ForwarderID:       forwarder.ID,
		FreightAmountUSD:  decimal.NewFromInt(1200),
		ValidityDate:      validity,
		TransitTimeDays:   14,
		Routing:           "INMAA - SGSIN direct",
		ContainerType:     "40HC",
		ContainerQuantity: 1,
		Status:            status,
	}
	quote.ComputeTotal()
	require.NoError(t, db.Create(quote).Error)
	return quote
}

func caller(u *model.User) Caller {
	return Caller{ID: u.ID, Role: u.Role}
}

// recordingNotifier keeps every notification it is handed
type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) Close() error { return nil }

func (r *recordingNotifier) Sent() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.sent...)
}

func newRecordingDispatcher() (*notify.Dispatcher, *recordingNotifier) {
	rec := &recordingNotifier{}
	return notify.NewDispatcher(rec, time.Second, zap.NewNop()), rec
}
