package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sportsarena/membership-backend/api/middleware"
	"github.com/sportsarena/membership-backend/internal/academies"
	"github.com/sportsarena/membership-backend/internal/facilities"
	"github.com/sportsarena/membership-backend/internal/members"
	"github.com/sportsarena/membership-backend/pkg/auth"
	"github.com/sportsarena/membership-backend/pkg/config"
	"github.com/sportsarena/membership-backend/pkg/db/models"
	"github.com/sportsarena/membership-backend/pkg/enums"
	pkgerrors "github.com/sportsarena/membership-backend/pkg/errors"
	"github.com/sportsarena/membership-backend/pkg/logger"
	"github.com/sportsarena/membership-backend/pkg/outbox/payloads"
	"github.com/sportsarena/membership-backend/pkg/pagination"
)

var admin = auth.Actor{StaffID: "staff-admin", Role: enums.StaffRoleAdmin}

func serve(t *testing.T, register func(chi.Router), method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithActor(req.Context(), admin)))
		})
	})
	register(r)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, dest))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error.Code
}

type stubFacilities struct {
	facility *models.Facility
	plans    []models.FacilityPlan
	deleted  *payloads.FacilityDeletedEvent
	err      error

	gotActor      auth.Actor
	gotActiveOnly bool
	gotFacility   facilities.FacilityInput
	gotPlan       facilities.PlanInput
	gotPlanID     uuid.UUID
}

func (s *stubFacilities) CreateFacility(_ context.Context, actor auth.Actor, input facilities.FacilityInput) (*models.Facility, error) {
	s.gotActor, s.gotFacility = actor, input
	return s.facility, s.err
}

func (s *stubFacilities) GetFacility(context.Context, uuid.UUID) (*models.Facility, error) {
	return s.facility, s.err
}

func (s *stubFacilities) ListFacilities(_ context.Context, activeOnly bool) ([]models.Facility, error) {
	s.gotActiveOnly = activeOnly
	if s.err != nil {
		return nil, s.err
	}
	return []models.Facility{*s.facility}, nil
}

func (s *stubFacilities) UpdateFacility(_ context.Context, actor auth.Actor, _ uuid.UUID, input facilities.FacilityInput) (*models.Facility, error) {
	s.gotActor, s.gotFacility = actor, input
	return s.facility, s.err
}

func (s *stubFacilities) DeleteFacility(_ context.Context, actor auth.Actor, _ uuid.UUID) (*payloads.FacilityDeletedEvent, error) {
	s.gotActor = actor
	return s.deleted, s.err
}

func (s *stubFacilities) CreatePlan(_ context.Context, actor auth.Actor, _ uuid.UUID, input facilities.PlanInput) (*models.FacilityPlan, error) {
	s.gotActor, s.gotPlan = actor, input
	if s.err != nil {
		return nil, s.err
	}
	return &s.plans[0], nil
}

func (s *stubFacilities) ListPlans(_ context.Context, _ uuid.UUID, activeOnly bool) ([]models.FacilityPlan, error) {
	s.gotActiveOnly = activeOnly
	return s.plans, s.err
}

func (s *stubFacilities) UpdatePlan(_ context.Context, actor auth.Actor, _, planID uuid.UUID, input facilities.PlanInput) (*models.FacilityPlan, error) {
	s.gotActor, s.gotPlanID, s.gotPlan = actor, planID, input
	if s.err != nil {
		return nil, s.err
	}
	return &s.plans[0], nil
}

func facilityRoutes(svc facilities.Service) func(chi.Router) {
	logg := logger.Nop()
	return func(r chi.Router) {
		r.Get("/facilities", FacilityList(svc, logg))
		r.Post("/facilities", FacilityCreate(svc, logg))
		r.Get("/facilities/{facilityId}", FacilityGet(svc, logg))
		r.Put("/facilities/{facilityId}", FacilityUpdate(svc, logg))
		r.Delete("/facilities/{facilityId}", FacilityDelete(svc, logg))
		r.Get("/facilities/{facilityId}/plans", PlanList(svc, logg))
		r.Post("/facilities/{facilityId}/plans", PlanCreate(svc, logg))
		r.Put("/facilities/{facilityId}/plans/{planId}", PlanUpdate(svc, logg))
	}
}

func TestFacilityCreateMapsBody(t *testing.T) {
	svc := &stubFacilities{facility: &models.Facility{ID: uuid.New(), Name: "Court A", Active: true}}

	rec := serve(t, facilityRoutes(svc), http.MethodPost, "/facilities", `{"name":"Court A","description":"indoor"}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, admin, svc.gotActor)
	assert.Equal(t, "Court A", svc.gotFacility.Name)
	assert.Equal(t, "indoor", svc.gotFacility.Description)
	assert.Nil(t, svc.gotFacility.Active)

	var got map[string]any
	decodeData(t, rec, &got)
	assert.Equal(t, "Court A", got["name"])
}

func TestFacilityCreateRequiresName(t *testing.T) {
	svc := &stubFacilities{}

	rec := serve(t, facilityRoutes(svc), http.MethodPost, "/facilities", `{"description":"x"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), errorCode(t, rec))
}

func TestFacilityListActiveFilter(t *testing.T) {
	svc := &stubFacilities{facility: &models.Facility{ID: uuid.New(), Name: "Court A"}}

	rec := serve(t, facilityRoutes(svc), http.MethodGet, "/facilities?active=true", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.gotActiveOnly)

	rec = serve(t, facilityRoutes(svc), http.MethodGet, "/facilities?active=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFacilityGetRejectsBadID(t *testing.T) {
	rec := serve(t, facilityRoutes(&stubFacilities{}), http.MethodGet, "/facilities/not-a-uuid", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFacilityGetNotFound(t *testing.T) {
	svc := &stubFacilities{err: pkgerrors.New(pkgerrors.CodeNotFound, "facility not found")}

	rec := serve(t, facilityRoutes(svc), http.MethodGet, "/facilities/"+uuid.NewString(), "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFacilityDeleteReportsCascade(t *testing.T) {
	id := uuid.New()
	svc := &stubFacilities{deleted: &payloads.FacilityDeletedEvent{FacilityID: id, DeletedPlans: 2, DeletedSubscriptions: 3, DeletedPayments: 5}}

	rec := serve(t, facilityRoutes(svc), http.MethodDelete, "/facilities/"+id.String(), "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	decodeData(t, rec, &got)
	assert.Equal(t, id.String(), got["id"])
	assert.EqualValues(t, 2, got["deleted_plans"])
	assert.EqualValues(t, 5, got["deleted_payments"])
}

func TestPlanCreateAndUpdate(t *testing.T) {
	facilityID := uuid.New()
	plan := models.FacilityPlan{ID: uuid.New(), FacilityID: facilityID, PlanType: enums.PlanTypeThreeMonths, Name: "Quarter", Fee: decimal.NewFromInt(4500)}
	svc := &stubFacilities{plans: []models.FacilityPlan{plan}}
	routes := facilityRoutes(svc)

	rec := serve(t, routes, http.MethodPost, "/facilities/"+facilityID.String()+"/plans",
		`{"plan_type":"threeMonths","name":"Quarter","fee":"4500"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, enums.PlanTypeThreeMonths, svc.gotPlan.PlanType)
	assert.True(t, decimal.NewFromInt(4500).Equal(svc.gotPlan.Fee))

	var got map[string]any
	decodeData(t, rec, &got)
	assert.EqualValues(t, 3, got["duration_months"])

	rec = serve(t, routes, http.MethodPut, "/facilities/"+facilityID.String()+"/plans/"+plan.ID.String(),
		`{"plan_type":"threeMonths","name":"Quarter","fee":"4800","duration_months":4}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, plan.ID, svc.gotPlanID)
	require.NotNil(t, svc.gotPlan.DurationMonths)
	assert.Equal(t, 4, *svc.gotPlan.DurationMonths)
}

type stubAcademies struct {
	academy *models.Academy
	deleted *payloads.PayerDeletedEvent
	err     error

	gotInput    academies.Input
	gotFacility *uuid.UUID
}

func (s *stubAcademies) Create(_ context.Context, _ auth.Actor, input academies.Input) (*models.Academy, error) {
	s.gotInput = input
	return s.academy, s.err
}

func (s *stubAcademies) Get(context.Context, uuid.UUID) (*models.Academy, error) {
	return s.academy, s.err
}

func (s *stubAcademies) List(_ context.Context, facilityID *uuid.UUID) ([]models.Academy, error) {
	s.gotFacility = facilityID
	if s.err != nil {
		return nil, s.err
	}
	return []models.Academy{*s.academy}, nil
}

func (s *stubAcademies) Update(_ context.Context, _ auth.Actor, _ uuid.UUID, input academies.Input) (*models.Academy, error) {
	s.gotInput = input
	return s.academy, s.err
}

func (s *stubAcademies) Delete(context.Context, auth.Actor, uuid.UUID) (*payloads.PayerDeletedEvent, error) {
	return s.deleted, s.err
}

func academyRoutes(svc academies.Service) func(chi.Router) {
	logg := logger.Nop()
	return func(r chi.Router) {
		r.Get("/academies", AcademyList(svc, logg))
		r.Post("/academies", AcademyCreate(svc, logg))
		r.Get("/academies/{academyId}", AcademyGet(svc, logg))
		r.Put("/academies/{academyId}", AcademyUpdate(svc, logg))
		r.Delete("/academies/{academyId}", AcademyDelete(svc, logg))
	}
}

func TestAcademyCreateMapsBody(t *testing.T) {
	facilityID := uuid.New()
	svc := &stubAcademies{academy: &models.Academy{ID: uuid.New(), Name: "Hoops", FacilityID: facilityID}}

	rec := serve(t, academyRoutes(svc), http.MethodPost, "/academies",
		`{"name":"Hoops","contact_name":"Dana","phone":"555-0100","facility_id":"`+facilityID.String()+`","monthly_fee":"1200.50"}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, facilityID, svc.gotInput.FacilityID)
	assert.Equal(t, "1200.5", svc.gotInput.MonthlyFee.String())
}

func TestAcademyCreateRejectsBadFacilityID(t *testing.T) {
	rec := serve(t, academyRoutes(&stubAcademies{}), http.MethodPost, "/academies",
		`{"name":"Hoops","contact_name":"Dana","phone":"555-0100","facility_id":"nope","monthly_fee":"10"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAcademyListFiltersByFacility(t *testing.T) {
	facilityID := uuid.New()
	svc := &stubAcademies{academy: &models.Academy{ID: uuid.New(), Name: "Hoops"}}

	rec := serve(t, academyRoutes(svc), http.MethodGet, "/academies?facility_id="+facilityID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.gotFacility)
	assert.Equal(t, facilityID, *svc.gotFacility)

	rec = serve(t, academyRoutes(svc), http.MethodGet, "/academies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, svc.gotFacility)
}

func TestAcademyDeleteBlockedByState(t *testing.T) {
	svc := &stubAcademies{err: pkgerrors.New(pkgerrors.CodeStateConflict, "academy has active subscriptions")}

	rec := serve(t, academyRoutes(svc), http.MethodDelete, "/academies/"+uuid.NewString(), "")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

type stubSubscriptions struct {
	sub  *models.Subscription
	next time.Time
	err  error

	gotPayer    uuid.UUID
	gotFacility uuid.UUID
}

func (s *stubSubscriptions) Get(context.Context, uuid.UUID) (*models.Subscription, error) {
	return s.sub, s.err
}

func (s *stubSubscriptions) ListByPayer(_ context.Context, payerID uuid.UUID) ([]models.Subscription, error) {
	s.gotPayer = payerID
	if s.err != nil {
		return nil, s.err
	}
	return []models.Subscription{*s.sub}, nil
}

func (s *stubSubscriptions) Current(_ context.Context, payerID, facilityID uuid.UUID) (*models.Subscription, error) {
	s.gotPayer, s.gotFacility = payerID, facilityID
	return s.sub, s.err
}

func (s *stubSubscriptions) ProposeNextStart(context.Context, uuid.UUID) (time.Time, error) {
	return s.next, s.err
}

func subscriptionRoutes(svc *stubSubscriptions) func(chi.Router) {
	logg := logger.Nop()
	return func(r chi.Router) {
		r.Get("/subscriptions", SubscriptionList(svc, logg))
		r.Get("/subscriptions/current", SubscriptionCurrent(svc, logg))
		r.Get("/subscriptions/{subscriptionId}", SubscriptionGet(svc, logg))
		r.Get("/subscriptions/{subscriptionId}/next-start", SubscriptionNextStart(svc, logg))
	}
}

func sampleSubscription() *models.Subscription {
	return &models.Subscription{
		ID:         uuid.New(),
		PayerType:  enums.PayerTypeMember,
		PayerID:    uuid.New(),
		FacilityID: uuid.New(),
		PlanType:   enums.PlanTypeOneMonth,
		StartDate:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
		Status:     enums.SubscriptionStatusActive,
	}
}

func TestSubscriptionListRequiresPayer(t *testing.T) {
	svc := &stubSubscriptions{sub: sampleSubscription()}

	rec := serve(t, subscriptionRoutes(svc), http.MethodGet, "/subscriptions", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, subscriptionRoutes(svc), http.MethodGet, "/subscriptions?payer_id="+svc.sub.PayerID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, svc.sub.PayerID, svc.gotPayer)

	var got []map[string]any
	decodeData(t, rec, &got)
	require.Len(t, got, 1)
	assert.Equal(t, "2026-01-31", got[0]["end_date"])
}

func TestSubscriptionCurrentNeedsBothIDs(t *testing.T) {
	svc := &stubSubscriptions{sub: sampleSubscription()}

	rec := serve(t, subscriptionRoutes(svc), http.MethodGet, "/subscriptions/current?payer_id="+uuid.NewString(), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	target := "/subscriptions/current?payer_id=" + svc.sub.PayerID.String() + "&facility_id=" + svc.sub.FacilityID.String()
	rec = serve(t, subscriptionRoutes(svc), http.MethodGet, target, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, svc.sub.FacilityID, svc.gotFacility)
}

func TestSubscriptionNextStart(t *testing.T) {
	svc := &stubSubscriptions{next: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}
	id := uuid.New()

	rec := serve(t, subscriptionRoutes(svc), http.MethodGet, "/subscriptions/"+id.String()+"/next-start", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]string
	decodeData(t, rec, &got)
	assert.Equal(t, "2026-02-01", got["start_date"])
	assert.Equal(t, id.String(), got["subscription_id"])
}

type stubMembers struct {
	member  *models.Member
	deleted *payloads.PayerDeletedEvent
	err     error

	gotFilter members.ListFilter
	gotInput  members.Input
}

func (s *stubMembers) Create(_ context.Context, _ auth.Actor, input members.Input) (*models.Member, error) {
	s.gotInput = input
	return s.member, s.err
}

func (s *stubMembers) Get(context.Context, uuid.UUID) (*models.Member, error) {
	return s.member, s.err
}

func (s *stubMembers) Update(_ context.Context, _ uuid.UUID, input members.Input) (*models.Member, error) {
	s.gotInput = input
	return s.member, s.err
}

func (s *stubMembers) List(_ context.Context, filter members.ListFilter) (pagination.Page[models.Member], error) {
	s.gotFilter = filter
	if s.err != nil {
		return pagination.Page[models.Member]{}, s.err
	}
	return pagination.Page[models.Member]{Items: []models.Member{*s.member}}, nil
}

func (s *stubMembers) Delete(context.Context, auth.Actor, uuid.UUID) (*payloads.PayerDeletedEvent, error) {
	return s.deleted, s.err
}

func memberRoutes(svc members.Service) func(chi.Router) {
	logg := logger.Nop()
	return func(r chi.Router) {
		r.Get("/members", MemberList(svc, logg))
		r.Delete("/members/{memberId}", MemberDelete(svc, logg))
	}
}

func TestMemberListParsesFilters(t *testing.T) {
	svc := &stubMembers{member: &models.Member{ID: uuid.New(), Kind: enums.MemberKindGuest, FullName: "Sam"}}

	rec := serve(t, memberRoutes(svc), http.MethodGet, "/members?kind=guest&q=%20sam%20&limit=10", "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, svc.gotFilter.Kind)
	assert.Equal(t, enums.MemberKindGuest, *svc.gotFilter.Kind)
	assert.Equal(t, "sam", svc.gotFilter.Search)
	assert.Equal(t, 10, svc.gotFilter.Limit)
}

func TestMemberListRejectsUnknownKind(t *testing.T) {
	rec := serve(t, memberRoutes(&stubMembers{}), http.MethodGet, "/members?kind=vip", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMemberDeleteReportsCascade(t *testing.T) {
	id := uuid.New()
	svc := &stubMembers{deleted: &payloads.PayerDeletedEvent{PayerType: enums.PayerTypeMember, PayerID: id, DeletedSubscriptions: 1, DeletedPayments: 4}}

	rec := serve(t, memberRoutes(svc), http.MethodDelete, "/members/"+id.String(), "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	decodeData(t, rec, &got)
	assert.EqualValues(t, 4, got["deleted_payments"])
	assert.NotContains(t, got, "deleted_plans")
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	ok := pingerFunc(func(context.Context) error { return nil })
	down := pingerFunc(func(context.Context) error { return errors.New("connection refused") })

	rec := httptest.NewRecorder()
	HealthReady(cfg, logger.Nop(), map[string]Pinger{"db": ok, "redis": ok})(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-Arena-Env"))

	rec = httptest.NewRecorder()
	HealthReady(cfg, logger.Nop(), map[string]Pinger{"db": ok, "redis": down})(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"down"`)
}

type stubDeadLetters struct {
	rows      []models.OutboxDLQ
	requeued  []uuid.UUID
	lastLimit int
}

func (s *stubDeadLetters) List(_ context.Context, limit int) ([]models.OutboxDLQ, error) {
	s.lastLimit = limit
	return s.rows, nil
}

func (s *stubDeadLetters) Requeue(_ context.Context, id uuid.UUID) (bool, error) {
	for _, row := range s.rows {
		if row.EventID == id {
			s.requeued = append(s.requeued, id)
			return true, nil
		}
	}
	return false, nil
}

func deadLetterRoutes(store DeadLetters) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/dead-letters", DeadLetterList(store, logger.Nop()))
		r.Post("/dead-letters/{eventId}/requeue", DeadLetterRequeue(store, logger.Nop()))
	}
}

func TestDeadLetterListAndRequeue(t *testing.T) {
	msg := "topic unavailable"
	entry := models.OutboxDLQ{
		EventID:      uuid.New(),
		EventType:    enums.EventPaymentEdited,
		ErrorReason:  enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage: &msg,
		AttemptCount: 10,
		FailedAt:     time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	store := &stubDeadLetters{rows: []models.OutboxDLQ{entry}}

	rec := serve(t, deadLetterRoutes(store), http.MethodGet, "/dead-letters?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []map[string]any
	decodeData(t, rec, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, "max_attempts", listed[0]["reason"])
	assert.Equal(t, msg, listed[0]["error"])
	assert.Equal(t, 5, store.lastLimit)

	rec = serve(t, deadLetterRoutes(store), http.MethodPost, "/dead-letters/"+entry.EventID.String()+"/requeue", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []uuid.UUID{entry.EventID}, store.requeued)

	rec = serve(t, deadLetterRoutes(store), http.MethodPost, "/dead-letters/"+uuid.NewString()+"/requeue", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
