package members

import (
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/sportsarena/membership-backend/pkg/db/models"
	"github.com/sportsarena/membership-backend/pkg/enums"
	pkgerrors "github.com/sportsarena/membership-backend/pkg/errors"
)

const dateLayout = "2006-01-02"

// Input carries the registration and profile fields for a member or guest.
// Guests only need a name and phone number.
type Input struct {
	Kind                  enums.MemberKind
	FullName              string
	Phone                 string
	Email                 string
	Gender                string
	DateOfBirth           string
	Address               string
	EmergencyContactName  string
	EmergencyContactPhone string
	Notes                 string
}

// Build validates the input and returns an unsaved member row.
func (in Input) Build(createdBy string) (*models.Member, error) {
	member := &models.Member{CreatedBy: createdBy}
	if err := in.apply(member); err != nil {
		return nil, err
	}
	return member, nil
}

func (in Input) apply(member *models.Member) error {
	if !in.Kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "kind must be member or guest")
	}
	fullName := strings.TrimSpace(in.FullName)
	phone := strings.TrimSpace(in.Phone)
	if fullName == "" || phone == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "full name and phone are required")
	}

	var dob *time.Time
	if raw := strings.TrimSpace(in.DateOfBirth); raw != "" {
		parsed, err := time.ParseInLocation(dateLayout, raw, time.UTC)
		if err != nil {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "date of birth %q must be YYYY-MM-DD", raw)
		}
		dob = &parsed
	}
	if in.Kind == enums.MemberKindMember && (dob == nil || strings.TrimSpace(in.Address) == "") {
		return pkgerrors.New(pkgerrors.CodeValidation, "members require date of birth and address")
	}

	member.Kind = in.Kind
	member.FullName = fullName
	member.Phone = phone
	member.Email = optional(in.Email)
	member.Gender = optional(in.Gender)
	member.DateOfBirth = dob
	member.Address = optional(in.Address)
	member.EmergencyContactName = optional(in.EmergencyContactName)
	member.EmergencyContactPhone = optional(in.EmergencyContactPhone)
	member.Notes = optional(in.Notes)
	return nil
}

func optional(value string) *string {
	return lo.EmptyableToPtr(strings.TrimSpace(value))
}
