package booking

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sportsarena/membership-backend/internal/academies"
	"github.com/sportsarena/membership-backend/internal/facilities"
	"github.com/sportsarena/membership-backend/internal/members"
	"github.com/sportsarena/membership-backend/internal/payments"
	"github.com/sportsarena/membership-backend/internal/sequence"
	"github.com/sportsarena/membership-backend/internal/subscriptions"
	"github.com/sportsarena/membership-backend/pkg/auth"
	"github.com/sportsarena/membership-backend/pkg/db"
	"github.com/sportsarena/membership-backend/pkg/db/dbtest"
	"github.com/sportsarena/membership-backend/pkg/db/models"
	"github.com/sportsarena/membership-backend/pkg/enums"
	pkgerrors "github.com/sportsarena/membership-backend/pkg/errors"
	"github.com/sportsarena/membership-backend/pkg/outbox"
)

var staff = auth.Actor{StaffID: "staff-1", Role: enums.StaffRoleStaff}

type fixture struct {
	conn      *gorm.DB
	svc       Service
	allocator sequence.Allocator
	facility  *models.Facility
	member    *models.Member
	guest     *models.Member
	academy   *models.Academy
}

type fixtureOption func(*ServiceParams)

func withPayments(wrap func(payments.Repository) payments.Repository) fixtureOption {
	return func(p *ServiceParams) { p.Payments = wrap(p.Payments) }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	return newFixtureOn(t, dbtest.Open(t), opts...)
}

func newFixtureOn(t *testing.T, conn *gorm.DB, opts ...fixtureOption) *fixture {
	t.Helper()
	ctx := context.Background()
	clock := func() time.Time { return time.Date(2026, time.February, 3, 10, 0, 0, 0, time.UTC) }

	alloc, err := sequence.NewAllocator(sequence.Params{Repo: sequence.NewRepository(conn), Now: clock})
	require.NoError(t, err)

	facilityRepo := facilities.NewRepository(conn)
	facility := &models.Facility{Name: "Main Arena", Active: true}
	require.NoError(t, facilityRepo.CreateFacility(ctx, facility))

	memberRepo := members.NewRepository(conn)
	dob := time.Date(1990, 5, 4, 0, 0, 0, 0, time.UTC)
	address := "12 Court Road"
	member := &models.Member{Kind: enums.MemberKindMember, FullName: "Asha Rao", Phone: "9000000001", DateOfBirth: &dob, Address: &address, CreatedBy: "staff-1"}
	require.NoError(t, memberRepo.Create(ctx, member))
	guest := &models.Member{Kind: enums.MemberKindGuest, FullName: "Vik Guest", Phone: "9000000002", CreatedBy: "staff-1"}
	require.NoError(t, memberRepo.Create(ctx, guest))

	academyRepo := academies.NewRepository(conn)
	academy := &models.Academy{
		Name: "Smash Academy", ContactName: "Coach", Phone: "9000000003",
		FacilityID: facility.ID, MonthlyFee: decimal.NewFromInt(5000), Active: true, CreatedBy: "staff-1",
	}
	require.NoError(t, academyRepo.Create(ctx, academy))

	params := ServiceParams{
		DB:            db.NewFromConn(conn),
		Allocator:     alloc,
		Members:       memberRepo,
		Academies:     academyRepo,
		Facilities:    facilityRepo,
		Payments:      payments.NewRepository(conn),
		Subscriptions: subscriptions.NewRepository(conn),
		Outbox:        outbox.NewService(outbox.NewRepository(conn), nil),
		Retry:         db.RetryOptions{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
		Now:           clock,
	}
	for _, opt := range opts {
		opt(&params)
	}
	svc, err := NewService(params)
	require.NoError(t, err)

	return &fixture{conn: conn, svc: svc, allocator: alloc, facility: facility, member: member, guest: guest, academy: academy}
}

func (f *fixture) memberRequest(start string) Request {
	amount := decimal.NewFromInt(1500)
	return Request{
		PayerType:  enums.PayerTypeMember,
		PayerID:    f.member.ID,
		FacilityID: f.facility.ID,
		PlanType:   enums.PlanTypeOneMonth,
		Amount:     &amount,
		Method:     enums.PaymentMethodCash,
		StartDate:  start,
		Actor:      staff,
	}
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(model).Count(&n).Error)
	return n
}

func TestBookIssuesSequentialInvoices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Book(ctx, f.memberRequest("2026-02-01"))
	require.NoError(t, err)
	second, err := f.svc.Book(ctx, f.memberRequest("2026-03-01"))
	require.NoError(t, err)

	assert.Equal(t, "INV202600001", first.InvoiceNumber)
	assert.Equal(t, "INV202600002", second.InvoiceNumber)
	assert.Equal(t, enums.BillingDomainFacility, first.BillingDomain)
	assert.Equal(t, enums.PaymentStatusCompleted, first.Status)
	assert.Equal(t, "2026-03-01", first.EndDate)
	assert.Equal(t, "2026-02-03", first.PaidOn)
	assert.False(t, first.Extended)
	assert.Contains(t, first.Reference, "MAN-")

	var payment models.Payment
	require.NoError(t, f.conn.First(&payment, "id = ?", first.PaymentID).Error)
	assert.Equal(t, first.SubscriptionID, payment.SubscriptionID)
	assert.Equal(t, f.member.ID.String()+"/"+first.SubscriptionID.String(), payment.SubscriptionRef)

	var sub models.Subscription
	require.NoError(t, f.conn.First(&sub, "id = ?", first.SubscriptionID).Error)
	require.NotNil(t, sub.LastPaymentID)
	assert.Equal(t, payment.ID, *sub.LastPaymentID)
	assert.Equal(t, enums.SubscriptionStatusActive, sub.Status)

	for eventType, want := range map[enums.OutboxEventType]int64{
		enums.EventPaymentRecorded:     2,
		enums.EventSubscriptionCreated: 2,
	} {
		var n int64
		require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
		assert.Equal(t, want, n, eventType)
	}
}

func TestBookConcurrentInvoicesAreUniqueAndContiguous(t *testing.T) {
	const workers = 12
	f := newFixtureOn(t, dbtest.OpenFile(t, workers))
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		seqs    []int64
		numbers = map[string]struct{}{}
	)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			receipt, err := f.svc.Book(ctx, f.memberRequest("2026-02-01"))
			if err != nil {
				errs <- err
				return
			}
			var payment models.Payment
			if err := f.conn.Select("invoice_sequence").First(&payment, "id = ?", receipt.PaymentID).Error; err != nil {
				errs <- err
				return
			}
			mu.Lock()
			numbers[receipt.InvoiceNumber] = struct{}{}
			seqs = append(seqs, payment.InvoiceSequence)
			mu.Unlock()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Len(t, numbers, workers)
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	for i, seq := range seqs {
		assert.Equal(t, int64(i+1), seq)
	}

	current, err := f.allocator.Peek(ctx, enums.BillingDomainFacility)
	require.NoError(t, err)
	assert.Equal(t, int64(workers), current)
}

type failingPayments struct {
	payments.Repository
}

func (f failingPayments) WithTx(tx *gorm.DB) payments.Repository {
	return failingPayments{Repository: f.Repository.WithTx(tx)}
}

func (failingPayments) Create(context.Context, *models.Payment) error {
	return errors.New("disk full")
}

func TestBookFailureLeavesNoTrace(t *testing.T) {
	f := newFixture(t, withPayments(func(inner payments.Repository) payments.Repository {
		return failingPayments{Repository: inner}
	}))
	ctx := context.Background()

	_, err := f.svc.Book(ctx, f.memberRequest("2026-02-01"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	current, err := f.allocator.Peek(ctx, enums.BillingDomainFacility)
	require.NoError(t, err)
	assert.Equal(t, int64(0), current)
	assert.Zero(t, f.count(t, &models.Payment{}))
	assert.Zero(t, f.count(t, &models.Subscription{}))
	assert.Zero(t, f.count(t, &models.OutboxEvent{}))
}

func TestBookDomainsHaveIndependentCounters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Book(ctx, f.memberRequest("2026-02-01"))
	require.NoError(t, err)

	academyReceipt, err := f.svc.Book(ctx, Request{
		PayerType: enums.PayerTypeAcademy,
		PayerID:   f.academy.ID,
		Method:    enums.PaymentMethodBankTransfer,
		Reference: "NEFT-1",
		StartDate: "2026-02-01",
		Actor:     staff,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.BillingDomainAcademy, academyReceipt.BillingDomain)
	assert.Equal(t, "INV202600001", academyReceipt.InvoiceNumber)
	assert.Equal(t, f.facility.ID, academyReceipt.FacilityID)
	assert.True(t, decimal.NewFromInt(5000).Equal(academyReceipt.Amount))

	next, err := f.svc.Book(ctx, f.memberRequest("2026-03-01"))
	require.NoError(t, err)
	assert.Equal(t, "INV202600002", next.InvoiceNumber)
}

func TestBookEndDates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	three := 3

	cases := []struct {
		name   string
		start  string
		plan   enums.PlanType
		months *int
		want   string
	}{
		{"one month inferred", "2025-01-15", enums.PlanTypeOneMonth, nil, "2025-02-15"},
		{"explicit months", "2025-01-15", enums.PlanTypeOneMonth, &three, "2025-04-14"},
		{"one year", "2024-02-29", enums.PlanTypeOneYear, nil, "2025-03-01"},
		{"default plan", "2025-06-30", "", nil, "2025-07-30"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := f.memberRequest(tc.start)
			req.PlanType = tc.plan
			req.DurationMonths = tc.months
			receipt, err := f.svc.Book(ctx, req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, receipt.EndDate)
		})
	}
}

func TestBookExtendsExistingSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Book(ctx, f.memberRequest("2026-01-01"))
	require.NoError(t, err)

	req := f.memberRequest("2026-02-01")
	req.SubscriptionID = &first.SubscriptionID
	req.Method = enums.PaymentMethodOnlineQR
	req.Reference = "UTR123456"
	second, err := f.svc.Book(ctx, req)
	require.NoError(t, err)

	assert.True(t, second.Extended)
	assert.Equal(t, first.SubscriptionID, second.SubscriptionID)
	assert.Equal(t, "INV202600002", second.InvoiceNumber)
	assert.Equal(t, enums.PaymentStatusPending, second.Status)
	assert.Equal(t, "2026-03-01", second.EndDate)

	var sub models.Subscription
	require.NoError(t, f.conn.First(&sub, "id = ?", first.SubscriptionID).Error)
	assert.Equal(t, 1, sub.ExtensionCount)
	require.NotNil(t, sub.ExtendedBy)
	assert.Equal(t, "staff-1", *sub.ExtendedBy)
	require.NotNil(t, sub.LastPaymentID)
	assert.Equal(t, second.PaymentID, *sub.LastPaymentID)
	assert.Equal(t, int64(1), f.count(t, &models.Subscription{}))
	assert.Equal(t, int64(2), f.count(t, &models.Payment{}))

	var extended int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventSubscriptionExtended).Count(&extended).Error)
	assert.Equal(t, int64(1), extended)
}

func TestBookExtensionAfterGuestConversionTakesMemberType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.memberRequest("2026-01-01")
	req.PayerType = enums.PayerTypeGuest
	req.PayerID = f.guest.ID
	first, err := f.svc.Book(ctx, req)
	require.NoError(t, err)
	require.Equal(t, enums.PayerTypeGuest, first.PayerType)

	dob := time.Date(1995, 8, 1, 0, 0, 0, 0, time.UTC)
	address := "4 Net Lane"
	f.guest.Kind = enums.MemberKindMember
	f.guest.DateOfBirth = &dob
	f.guest.Address = &address
	require.NoError(t, members.NewRepository(f.conn).Update(ctx, f.guest))

	req = f.memberRequest("2026-02-01")
	req.PayerID = f.guest.ID
	req.SubscriptionID = &first.SubscriptionID
	second, err := f.svc.Book(ctx, req)
	require.NoError(t, err)

	assert.True(t, second.Extended)
	assert.Equal(t, enums.PayerTypeMember, second.PayerType)

	var sub models.Subscription
	require.NoError(t, f.conn.First(&sub, "id = ?", first.SubscriptionID).Error)
	assert.Equal(t, enums.PayerTypeMember, sub.PayerType)

	var payment models.Payment
	require.NoError(t, f.conn.First(&payment, "id = ?", second.PaymentID).Error)
	assert.Equal(t, enums.PayerTypeMember, payment.PayerType)
}

func TestBookRejectsSubscriptionOfAnotherPayer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Book(ctx, f.memberRequest("2026-01-01"))
	require.NoError(t, err)

	req := f.memberRequest("2026-02-01")
	req.PayerType = enums.PayerTypeGuest
	req.PayerID = f.guest.ID
	req.SubscriptionID = &first.SubscriptionID
	_, err = f.svc.Book(ctx, req)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	current, err := f.allocator.Peek(ctx, enums.BillingDomainFacility)
	require.NoError(t, err)
	assert.Equal(t, int64(1), current)
}

func TestBookValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	zero := decimal.Zero

	cases := []struct {
		name   string
		mutate func(*Request)
		code   pkgerrors.Code
	}{
		{"missing actor", func(r *Request) { r.Actor = auth.Actor{} }, pkgerrors.CodeUnauthorized},
		{"bad payer type", func(r *Request) { r.PayerType = "vendor" }, pkgerrors.CodeValidation},
		{"bad method", func(r *Request) { r.Method = "crypto" }, pkgerrors.CodeValidation},
		{"bad start date", func(r *Request) { r.StartDate = "01/02/2026" }, pkgerrors.CodeValidation},
		{"online without reference", func(r *Request) { r.Method = enums.PaymentMethodOnlineQR }, pkgerrors.CodeValidation},
		{"zero amount", func(r *Request) { r.Amount = &zero }, pkgerrors.CodeValidation},
		{"unknown plan type", func(r *Request) { r.PlanType = "weekly" }, pkgerrors.CodeValidation},
		{"unknown payer", func(r *Request) { r.PayerID = uuid.New() }, pkgerrors.CodeNotFound},
		{"kind mismatch", func(r *Request) { r.PayerType = enums.PayerTypeGuest }, pkgerrors.CodeValidation},
		{"unknown facility", func(r *Request) { r.FacilityID = uuid.New() }, pkgerrors.CodeNotFound},
		{"unknown plan", func(r *Request) { id := uuid.New(); r.PlanID = &id }, pkgerrors.CodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := f.memberRequest("2026-02-01")
			tc.mutate(&req)
			_, err := f.svc.Book(ctx, req)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, tc.code), "got %v", err)
		})
	}

	assert.Zero(t, f.count(t, &models.Payment{}))
	current, err := f.allocator.Peek(ctx, enums.BillingDomainFacility)
	require.NoError(t, err)
	assert.Equal(t, int64(0), current)
}

func TestBookUsesPlanFeeAndDuration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	months := 2
	plan := &models.FacilityPlan{
		FacilityID: f.facility.ID, PlanType: enums.PlanTypeThreeMonths, Name: "Two month promo",
		Fee: decimal.NewFromInt(2800), DurationMonths: &months, Active: true,
	}
	require.NoError(t, facilities.NewRepository(f.conn).CreatePlan(ctx, plan))

	req := f.memberRequest("2026-01-10")
	req.Amount = nil
	req.PlanType = ""
	req.PlanID = &plan.ID
	receipt, err := f.svc.Book(ctx, req)
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(2800).Equal(receipt.Amount))
	assert.Equal(t, enums.PlanTypeThreeMonths, receipt.PlanType)
	assert.Equal(t, "2026-03-09", receipt.EndDate)
}

func TestRegisterAndBook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	amount := decimal.NewFromInt(300)

	member, receipt, err := f.svc.RegisterAndBook(ctx, Registration{
		Member: members.Input{Kind: enums.MemberKindGuest, FullName: "Walk In", Phone: "9111111111"},
		Booking: Request{
			FacilityID: f.facility.ID,
			Amount:     &amount,
			Method:     enums.PaymentMethodCash,
			StartDate:  "2026-02-03",
			Actor:      staff,
		},
	})
	require.NoError(t, err)
	require.NotNil(t, member)
	assert.Equal(t, member.ID, receipt.PayerID)
	assert.Equal(t, enums.PayerTypeGuest, receipt.PayerType)
	assert.Equal(t, "INV202600001", receipt.InvoiceNumber)

	var registered int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventMemberRegistered).Count(&registered).Error)
	assert.Equal(t, int64(1), registered)
}

func TestRegisterAndBookRollsBackMemberOnFailure(t *testing.T) {
	f := newFixture(t, withPayments(func(inner payments.Repository) payments.Repository {
		return failingPayments{Repository: inner}
	}))
	ctx := context.Background()
	amount := decimal.NewFromInt(300)

	_, _, err := f.svc.RegisterAndBook(ctx, Registration{
		Member: members.Input{Kind: enums.MemberKindGuest, FullName: "Walk In", Phone: "9111111111"},
		Booking: Request{
			FacilityID: f.facility.ID,
			Amount:     &amount,
			Method:     enums.PaymentMethodCash,
			StartDate:  "2026-02-03",
			Actor:      staff,
		},
	})
	require.Error(t, err)
	assert.Equal(t, int64(2), f.count(t, &models.Member{}))
	assert.Zero(t, f.count(t, &models.OutboxEvent{}))
}

type conflictRunner struct {
	*db.Client
	conflicts int
}

func (c *conflictRunner) WithRetryTx(ctx context.Context, opts db.RetryOptions, fn func(tx *gorm.DB) error) error {
	return c.Client.WithRetryTx(ctx, opts, func(tx *gorm.DB) error {
		if err := fn(tx); err != nil {
			return err
		}
		if c.conflicts > 0 {
			c.conflicts--
			return db.ErrConflict
		}
		return nil
	})
}

func TestBookRetriesConflicts(t *testing.T) {
	runner := &conflictRunner{conflicts: 1}
	f := newFixture(t, func(p *ServiceParams) {
		runner.Client = p.DB.(*db.Client)
		p.DB = runner
	})

	receipt, err := f.svc.Book(context.Background(), f.memberRequest("2026-02-01"))
	require.NoError(t, err)
	assert.Equal(t, "INV202600001", receipt.InvoiceNumber)
	assert.Equal(t, int64(1), f.count(t, &models.Payment{}))
}

func TestBookReportsConflictWhenRetriesExhausted(t *testing.T) {
	runner := &conflictRunner{conflicts: 100}
	f := newFixture(t, func(p *ServiceParams) {
		runner.Client = p.DB.(*db.Client)
		p.DB = runner
	})

	_, err := f.svc.Book(context.Background(), f.memberRequest("2026-02-01"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Zero(t, f.count(t, &models.Payment{}))
}
