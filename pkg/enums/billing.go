package enums

import "github.com/samber/lo"

// BillingDomain selects which invoice counter a payment draws from.
type BillingDomain string

const (
	BillingDomainFacility BillingDomain = "facility"
	BillingDomainAcademy  BillingDomain = "academy"
)

var validBillingDomains = []BillingDomain{
	BillingDomainFacility,
	BillingDomainAcademy,
}

func (b BillingDomain) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BillingDomain.
func (b BillingDomain) IsValid() bool {
	return lo.Contains(validBillingDomains, b)
}

// ParseBillingDomain converts raw input into a BillingDomain.
func ParseBillingDomain(value string) (BillingDomain, error) {
	return parse("billing domain", validBillingDomains, value)
}

// PayerType identifies who a payment or subscription belongs to.
type PayerType string

const (
	PayerTypeMember  PayerType = "member"
	PayerTypeGuest   PayerType = "guest"
	PayerTypeAcademy PayerType = "academy"
)

var validPayerTypes = []PayerType{
	PayerTypeMember,
	PayerTypeGuest,
	PayerTypeAcademy,
}

func (p PayerType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayerType.
func (p PayerType) IsValid() bool {
	return lo.Contains(validPayerTypes, p)
}

// BillingDomain maps a payer onto its counter. Academies have their own.
func (p PayerType) BillingDomain() BillingDomain {
	if p == PayerTypeAcademy {
		return BillingDomainAcademy
	}
	return BillingDomainFacility
}

// ParsePayerType converts raw input into a PayerType.
func ParsePayerType(value string) (PayerType, error) {
	return parse("payer type", validPayerTypes, value)
}

// MemberKind separates fully registered members from lightweight guests.
type MemberKind string

const (
	MemberKindMember MemberKind = "member"
	MemberKindGuest  MemberKind = "guest"
)

var validMemberKinds = []MemberKind{MemberKindMember, MemberKindGuest}

func (m MemberKind) IsValid() bool {
	return lo.Contains(validMemberKinds, m)
}

// PayerType maps a member kind onto the payer recorded on bookings.
func (m MemberKind) PayerType() PayerType {
	if m == MemberKindGuest {
		return PayerTypeGuest
	}
	return PayerTypeMember
}

// ParseMemberKind converts raw input into a MemberKind.
func ParseMemberKind(value string) (MemberKind, error) {
	return parse("member kind", validMemberKinds, value)
}
