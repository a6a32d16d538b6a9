package sequence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/sportsarena/membership-backend/pkg/enums"
)

// DefaultPrefix is printed in front of every invoice number unless overridden.
const DefaultPrefix = "INV"

// Invoice is one allocated invoice number.
type Invoice struct {
	Domain   enums.BillingDomain
	Sequence int64
	Number   string
}

// Allocator hands out invoice numbers inside a caller-owned transaction. The
// number is only consumed if that transaction commits.
type Allocator interface {
	Next(ctx context.Context, tx *gorm.DB, domain enums.BillingDomain) (Invoice, error)
	Peek(ctx context.Context, domain enums.BillingDomain) (int64, error)
}

// Params configures the allocator.
type Params struct {
	Repo     Repository
	Prefixes map[enums.BillingDomain]string
	Location *time.Location
	Now      func() time.Time
}

type allocator struct {
	repo     Repository
	prefixes map[enums.BillingDomain]string
	loc      *time.Location
	now      func() time.Time
}

// NewAllocator builds an Allocator. Domains without a configured prefix use DefaultPrefix.
func NewAllocator(params Params) (Allocator, error) {
	if params.Repo == nil {
		return nil, errors.New("sequence repository is required")
	}
	prefixes := map[enums.BillingDomain]string{
		enums.BillingDomainFacility: DefaultPrefix,
		enums.BillingDomainAcademy:  DefaultPrefix,
	}
	for domain, prefix := range params.Prefixes {
		if trimmed := strings.TrimSpace(prefix); trimmed != "" {
			prefixes[domain] = trimmed
		}
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &allocator{repo: params.Repo, prefixes: prefixes, loc: loc, now: now}, nil
}

func (a *allocator) Next(ctx context.Context, tx *gorm.DB, domain enums.BillingDomain) (Invoice, error) {
	if tx == nil {
		return Invoice{}, errors.New("transaction required")
	}
	if !domain.IsValid() {
		return Invoice{}, fmt.Errorf("unknown billing domain %q", domain)
	}

	seq, err := a.repo.WithTx(tx).Increment(ctx, domain)
	if err != nil {
		return Invoice{}, fmt.Errorf("increment %s invoice counter: %w", domain, err)
	}

	return Invoice{
		Domain:   domain,
		Sequence: seq,
		Number:   Format(a.prefixes[domain], a.now().In(a.loc).Year(), seq),
	}, nil
}

func (a *allocator) Peek(ctx context.Context, domain enums.BillingDomain) (int64, error) {
	return a.repo.Current(ctx, domain)
}

// Format renders prefix + four-digit year + five-digit zero-padded sequence,
// e.g. INV202600123. The year is cosmetic; the sequence never restarts.
func Format(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s%04d%05d", prefix, year, seq)
}
