package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/tradeflow/internal/model"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMigrateCreatesEveryTable(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, Migrate(db, zap.NewNop()))

	for _, m := range model.All() {
		assert.True(t, db.Migrator().HasTable(m), "missing table for %T", m)
	}
	assert.True(t, db.Migrator().HasColumn(&model.Document{}, "extraction_version"))
	assert.True(t, db.Migrator().HasColumn(&model.Shipment{}, "hs_code"))
}
