// Package dbtest opens throwaway sqlite databases carrying the production
// schema, for repository and transaction tests.
package dbtest

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sportsarena/membership-backend/pkg/db/models"
)

// Models lists every table the services touch.
func Models() []any {
	return []any{
		&models.InvoiceCounter{},
		&models.Member{},
		&models.Facility{},
		&models.FacilityPlan{},
		&models.Academy{},
		&models.Payment{},
		&models.Subscription{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	}
}

// Open returns an isolated in-memory database. A single pooled connection
// keeps concurrent transactions serialized the way sqlite expects.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.AutoMigrate(Models()...))
	return conn
}

// OpenFile returns a file-backed database in t.TempDir with a real connection
// pool. Transactions take the write lock at BEGIN and wait on each other
// through the busy timeout, so goroutines really do contend.
func OpenFile(t testing.TB, maxConns int) *gorm.DB {
	t.Helper()
	if maxConns < 2 {
		maxConns = 2
	}

	path := filepath.Join(t.TempDir(), "arena.db")
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=10000&_txlock=immediate", path)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.AutoMigrate(Models()...))
	return conn
}
