package enums

import "github.com/samber/lo"

// PaymentMethod describes how the payer settled a booking.
type PaymentMethod string

const (
	PaymentMethodOnlineQR     PaymentMethod = "online_qr"
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCheque       PaymentMethod = "cheque"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodOnlineQR,
	PaymentMethodCash,
	PaymentMethodCard,
	PaymentMethodBankTransfer,
	PaymentMethodCheque,
}

func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	return lo.Contains(validPaymentMethods, p)
}

// IsOnline reports whether the payment is verified later against a UTR.
func (p PaymentMethod) IsOnline() bool {
	return p == PaymentMethodOnlineQR
}

// InitialStatus is the status a freshly booked payment starts in.
func (p PaymentMethod) InitialStatus() PaymentStatus {
	if p.IsOnline() {
		return PaymentStatusPending
	}
	return PaymentStatusCompleted
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return parse("payment method", validPaymentMethods, value)
}
