package model

import "github.com/shopspring/decimal"

type ConsultationKind string

const (
	ConsultationKindOral ConsultationKind = "oral"
	ConsultationKindFull ConsultationKind = "full"
)

var consultationPrices = map[ConsultationKind]decimal.Decimal{
	ConsultationKindOral: decimal.RequireFromString("3150.00"),
	ConsultationKindFull: decimal.RequireFromString("13650.00"),
}

func (k ConsultationKind) Valid() bool {
	_, ok := consultationPrices[k]
	return ok
}

// Price is the fixed tier price in RUB.
func (k ConsultationKind) Price() decimal.Decimal {
	return consultationPrices[k]
}

func (k ConsultationKind) Title() string {
	switch k {
	case ConsultationKindFull:
		return "Полная консультация с изучением документов"
	case ConsultationKindOral:
		return "Устная консультация"
	default:
		return string(k)
	}
}

// PaymentStatus is the ledger-side status of a consultation record.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusSucceeded || s == PaymentStatusFailed
}

// CanAdvanceTo reports whether the ledger may move from s to next.
// Only pending records move, and never back to pending.
func (s PaymentStatus) CanAdvanceTo(next PaymentStatus) bool {
	return s == PaymentStatusPending && next.Terminal()
}

// PaymentState is the purchase lifecycle as seen by the authorization protocol.
type PaymentState string

const (
	PaymentStateCreated   PaymentState = "created"
	PaymentStatePending   PaymentState = "pending"
	PaymentStateSucceeded PaymentState = "succeeded"
	PaymentStateFailed    PaymentState = "failed"
)

// ClassifyProviderStatus maps a raw provider status onto the protocol states.
// Anything other than succeeded or an in-process status is a terminal failure.
func ClassifyProviderStatus(raw string) PaymentState {
	switch raw {
	case "succeeded":
		return PaymentStateSucceeded
	case "pending", "waiting_for_capture":
		return PaymentStatePending
	case "":
		return PaymentStateCreated
	default:
		return PaymentStateFailed
	}
}

// LedgerStatus is the status written to the ledger for a protocol state.
func (s PaymentState) LedgerStatus() PaymentStatus {
	switch s {
	case PaymentStateSucceeded:
		return PaymentStatusSucceeded
	case PaymentStateFailed:
		return PaymentStatusFailed
	default:
		return PaymentStatusPending
	}
}
