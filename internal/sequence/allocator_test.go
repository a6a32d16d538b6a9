package sequence

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sportsarena/membership-backend/pkg/db/dbtest"
	"github.com/sportsarena/membership-backend/pkg/enums"
)

func fixedClock(year int) func() time.Time {
	return func() time.Time { return time.Date(year, time.March, 10, 9, 0, 0, 0, time.UTC) }
}

func newTestAllocator(t *testing.T, conn *gorm.DB, year int) Allocator {
	t.Helper()
	alloc, err := NewAllocator(Params{Repo: NewRepository(conn), Now: fixedClock(year)})
	require.NoError(t, err)
	return alloc
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "INV202600001", Format("INV", 2026, 1))
	assert.Equal(t, "INV202600123", Format("INV", 2026, 123))
	assert.Equal(t, "INV2026123456", Format("INV", 2026, 123456))
	assert.Equal(t, "ACA202500042", Format("ACA", 2025, 42))
}

func TestNextStartsAtOneAndIncrements(t *testing.T) {
	conn := dbtest.Open(t)
	alloc := newTestAllocator(t, conn, 2026)
	ctx := context.Background()

	var numbers []string
	for i := 0; i < 3; i++ {
		require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
			inv, err := alloc.Next(ctx, tx, enums.BillingDomainFacility)
			if err != nil {
				return err
			}
			numbers = append(numbers, inv.Number)
			return nil
		}))
	}

	assert.Equal(t, []string{"INV202600001", "INV202600002", "INV202600003"}, numbers)

	current, err := alloc.Peek(ctx, enums.BillingDomainFacility)
	require.NoError(t, err)
	assert.Equal(t, int64(3), current)
}

func TestNextDoesNotResetAcrossYears(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()

	var last Invoice
	for _, year := range []int{2025, 2025, 2026} {
		alloc := newTestAllocator(t, conn, year)
		require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
			var err error
			last, err = alloc.Next(ctx, tx, enums.BillingDomainFacility)
			return err
		}))
	}

	assert.Equal(t, int64(3), last.Sequence)
	assert.Equal(t, "INV202600003", last.Number)
}

func TestRolledBackAllocationIsNotConsumed(t *testing.T) {
	conn := dbtest.Open(t)
	alloc := newTestAllocator(t, conn, 2026)
	ctx := context.Background()

	boom := errors.New("payment insert failed")
	err := conn.Transaction(func(tx *gorm.DB) error {
		if _, err := alloc.Next(ctx, tx, enums.BillingDomainFacility); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	current, err := alloc.Peek(ctx, enums.BillingDomainFacility)
	require.NoError(t, err)
	assert.Equal(t, int64(0), current)

	var inv Invoice
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		inv, err = alloc.Next(ctx, tx, enums.BillingDomainFacility)
		return err
	}))
	assert.Equal(t, "INV202600001", inv.Number)
}

func TestDomainsAreIndependent(t *testing.T) {
	conn := dbtest.Open(t)
	alloc := newTestAllocator(t, conn, 2026)
	ctx := context.Background()

	next := func(domain enums.BillingDomain) Invoice {
		var inv Invoice
		require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
			var err error
			inv, err = alloc.Next(ctx, tx, domain)
			return err
		}))
		return inv
	}

	next(enums.BillingDomainFacility)
	next(enums.BillingDomainFacility)
	academy := next(enums.BillingDomainAcademy)
	facility := next(enums.BillingDomainFacility)

	assert.Equal(t, int64(1), academy.Sequence)
	assert.Equal(t, int64(3), facility.Sequence)
}

func TestNextRejectsUnknownDomainAndMissingTx(t *testing.T) {
	conn := dbtest.Open(t)
	alloc := newTestAllocator(t, conn, 2026)

	_, err := alloc.Next(context.Background(), nil, enums.BillingDomainFacility)
	require.Error(t, err)

	err = conn.Transaction(func(tx *gorm.DB) error {
		_, err := alloc.Next(context.Background(), tx, enums.BillingDomain("shop"))
		return err
	})
	require.Error(t, err)
}

func TestCustomPrefixAndTimezone(t *testing.T) {
	conn := dbtest.Open(t)
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	alloc, err := NewAllocator(Params{
		Repo:     NewRepository(conn),
		Prefixes: map[enums.BillingDomain]string{enums.BillingDomainAcademy: "ACA"},
		Location: kolkata,
		Now:      func() time.Time { return time.Date(2025, time.December, 31, 20, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	var inv Invoice
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		inv, err = alloc.Next(context.Background(), tx, enums.BillingDomainAcademy)
		return err
	}))
	assert.Equal(t, "ACA202600001", inv.Number)
}
