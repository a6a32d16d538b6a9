package dto

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sportsarena/membership-backend/internal/booking"
	"github.com/sportsarena/membership-backend/internal/members"
	"github.com/sportsarena/membership-backend/pkg/enums"
	pkgerrors "github.com/sportsarena/membership-backend/pkg/errors"
)

// MemberRequest is the registration or profile form for members and guests.
type MemberRequest struct {
	Kind                  string `json:"kind" validate:"required,oneof=member guest"`
	FullName              string `json:"full_name" validate:"required,max=128"`
	Phone                 string `json:"phone" validate:"required,max=32"`
	Email                 string `json:"email" validate:"omitempty,email"`
	Gender                string `json:"gender" validate:"max=16"`
	DateOfBirth           string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	Address               string `json:"address" validate:"max=512"`
	EmergencyContactName  string `json:"emergency_contact_name" validate:"max=128"`
	EmergencyContactPhone string `json:"emergency_contact_phone" validate:"max=32"`
	Notes                 string `json:"notes" validate:"max=1024"`
}

func (r MemberRequest) ToInput() members.Input {
	return members.Input{
		Kind:                  enums.MemberKind(strings.TrimSpace(r.Kind)),
		FullName:              r.FullName,
		Phone:                 r.Phone,
		Email:                 r.Email,
		Gender:                r.Gender,
		DateOfBirth:           r.DateOfBirth,
		Address:               r.Address,
		EmergencyContactName:  r.EmergencyContactName,
		EmergencyContactPhone: r.EmergencyContactPhone,
		Notes:                 r.Notes,
	}
}

// BookingTerms describes what is being paid for, independent of the payer.
type BookingTerms struct {
	FacilityID     string           `json:"facility_id" validate:"omitempty,uuid"`
	PlanID         string           `json:"plan_id" validate:"omitempty,uuid"`
	PlanType       string           `json:"plan_type" validate:"max=32"`
	DurationMonths *int             `json:"duration_months" validate:"omitempty,min=1,max=120"`
	Amount         *decimal.Decimal `json:"amount"`
	Method         string           `json:"method" validate:"required"`
	Reference      string           `json:"reference" validate:"max=64"`
	StartDate      string           `json:"start_date" validate:"required,datetime=2006-01-02"`
	PeriodLabel    string           `json:"period_label" validate:"max=128"`
}

func (t BookingTerms) ToRequest() (booking.Request, error) {
	method, err := enums.ParsePaymentMethod(strings.TrimSpace(t.Method))
	if err != nil {
		return booking.Request{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid method")
	}
	req := booking.Request{
		PlanType:       enums.PlanType(strings.TrimSpace(t.PlanType)),
		DurationMonths: t.DurationMonths,
		Amount:         t.Amount,
		Method:         method,
		Reference:      t.Reference,
		StartDate:      strings.TrimSpace(t.StartDate),
		PeriodLabel:    t.PeriodLabel,
	}
	if req.FacilityID, err = parseOptionalUUID(t.FacilityID); err != nil {
		return booking.Request{}, err
	}
	planID, err := parseOptionalUUID(t.PlanID)
	if err != nil {
		return booking.Request{}, err
	}
	if planID != uuid.Nil {
		req.PlanID = &planID
	}
	return req, nil
}

// BookingRequest books for an existing payer, optionally extending one of
// their subscriptions.
type BookingRequest struct {
	PayerType      string `json:"payer_type" validate:"required,oneof=member guest academy"`
	PayerID        string `json:"payer_id" validate:"required,uuid"`
	SubscriptionID string `json:"subscription_id" validate:"omitempty,uuid"`
	BookingTerms
}

func (r BookingRequest) ToRequest() (booking.Request, error) {
	req, err := r.BookingTerms.ToRequest()
	if err != nil {
		return booking.Request{}, err
	}
	if req.PayerType, err = enums.ParsePayerType(strings.TrimSpace(r.PayerType)); err != nil {
		return booking.Request{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payer_type")
	}
	if req.PayerID, err = parseOptionalUUID(r.PayerID); err != nil {
		return booking.Request{}, err
	}
	subID, err := parseOptionalUUID(r.SubscriptionID)
	if err != nil {
		return booking.Request{}, err
	}
	if subID != uuid.Nil {
		req.SubscriptionID = &subID
	}
	return req, nil
}

// RegistrationRequest registers a member or guest and books their first
// subscription in one call.
type RegistrationRequest struct {
	Member  MemberRequest `json:"member" validate:"required"`
	Booking BookingTerms  `json:"booking" validate:"required"`
}

func (r RegistrationRequest) ToRegistration() (booking.Registration, error) {
	req, err := r.Booking.ToRequest()
	if err != nil {
		return booking.Registration{}, err
	}
	return booking.Registration{Member: r.Member.ToInput(), Booking: req}, nil
}

func parseOptionalUUID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid uuid")
	}
	return id, nil
}
