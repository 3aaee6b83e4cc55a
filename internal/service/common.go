package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"github.com/suteetoe/tradeflow/internal/model"
	"github.com/suteetoe/tradeflow/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Caller is the authenticated identity behind a request
type Caller struct {
	ID   string
	Role string
}

func (c Caller) Is(role string) bool {
	return c.Role == role
}

const (
	upperDigits = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	digits      = "0123456789"
)

func randomString(alphabet string, n int) string {
	out := make([]byte, n)
	limit := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(err)
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out)
}

// ShipmentNumber formats TF-YYYYMMDD-XXXXX
func ShipmentNumber(now time.Time) string {
	return "TF-" + now.Format("20060102") + "-" + randomString(upperDigits, 5)
}

// QuoteNumber formats Q-YYYYMM-NNNNN
func QuoteNumber(now time.Time) string {
	return "Q-" + now.Format("200601") + "-" + randomString(digits, 5)
}

// numberAttempts bounds how often a colliding business number is redrawn
const numberAttempts = 5

// createNumbered inserts value and calls renumber to draw a fresh number each time the
// insert collides on a unique column. Needs a gorm.DB opened with TranslateError.
func createNumbered(ctx context.Context, db *gorm.DB, value interface{}, renumber func()) error {
	for attempt := 0; attempt < numberAttempts; attempt++ {
		if attempt > 0 {
			renumber()
		}
		err := db.WithContext(ctx).Create(value).Error
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		logger.FromCtx(ctx).Warn("Business number collided, redrawing", zap.Int("attempt", attempt+1))
	}
	return Conflict("Could not allocate a unique number, please retry")
}

func findShipment(ctx context.Context, db *gorm.DB, id string) (*model.Shipment, error) {
	var shipment model.Shipment
	err := db.WithContext(ctx).Where("id = ?", id).First(&shipment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("Shipment not found")
	}
	if err != nil {
		return nil, err
	}
	return &shipment, nil
}

// shipmentOpen reports whether forwarders may still quote on the shipment
func shipmentOpen(s *model.Shipment) bool {
	return s.Status == model.ShipmentStatusDraft || s.Status == model.ShipmentStatusQuoteRequested
}

// hasQuoted reports whether forwarderID submitted any quote on shipmentID
func hasQuoted(ctx context.Context, db *gorm.DB, shipmentID, forwarderID string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&model.Quote{}).
		Where("shipment_id = ? AND forwarder_id = ?", shipmentID, forwarderID).
		Count(&count).Error
	return count > 0, err
}

// assignedForwarder reports whether forwarderID holds the accepted quote on shipmentID.
// Checked against the database on every call.
func assignedForwarder(ctx context.Context, db *gorm.DB, shipmentID, forwarderID string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&model.Quote{}).
		Where("shipment_id = ? AND forwarder_id = ? AND status = ?", shipmentID, forwarderID, model.QuoteStatusAccepted).
		Count(&count).Error
	return count > 0, err
}

// authorizeView returns Forbidden unless caller may read the shipment: its supplier, its
// buyer, or a forwarder that quoted on it or could still quote on it
func authorizeView(ctx context.Context, db *gorm.DB, s *model.Shipment, caller Caller) error {
	switch caller.Role {
	case model.RoleSupplier:
		if s.SupplierID == caller.ID {
			return nil
		}
	case model.RoleBuyer:
		if s.BuyerID == caller.ID {
			return nil
		}
	case model.RoleForwarder:
		if shipmentOpen(s) {
			return nil
		}
		quoted, err := hasQuoted(ctx, db, s.ID, caller.ID)
		if err != nil {
			return err
		}
		if quoted {
			return nil
		}
	}
	return Forbidden("Not authorized to access this shipment")
}

// authorizeOwner returns Forbidden unless caller is the shipment's supplier
func authorizeOwner(s *model.Shipment, caller Caller) error {
	if caller.Role == model.RoleSupplier && s.SupplierID == caller.ID {
		return nil
	}
	return Forbidden("Only the shipment's supplier can do this")
}

func userNames(ctx context.Context, db *gorm.DB, ids []string) (map[string]model.User, error) {
	out := make(map[string]model.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []model.User
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}
