package testutil

import (
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"frozen-pos/internal/model"
	"frozen-pos/pkg/database"
)

// NewDB opens a private in-memory database with every model migrated.
// One connection keeps all statements of a test on the same memory store.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), database.GormConfig(zap.NewNop(), false))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

// NewTxRunner wraps db with a quiet, non-retrying runner.
func NewTxRunner(db *gorm.DB) *database.TxRunner {
	return database.NewTxRunner(db, zap.NewNop(), database.WithMaxRetries(0))
}
