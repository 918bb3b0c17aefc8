package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConsultationRecord is one purchase attempt in the ledger.
// Secret is assigned at creation but only honored once Status is succeeded.
type ConsultationRecord struct {
	ID           int64            `db:"id" json:"id"`
	ClientID     int64            `db:"client_id" json:"clientId"`
	Kind         ConsultationKind `db:"kind" json:"kind"`
	Amount       decimal.Decimal  `db:"amount" json:"amount"`
	PaymentRef   string           `db:"payment_ref" json:"paymentRef"`
	Status       PaymentStatus    `db:"status" json:"status"`
	Secret       string           `db:"secret" json:"-"`
	ContactEmail *string          `db:"contact_email" json:"contactEmail,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updatedAt"`

	ClientFields
}

type RecordPurchaseParams struct {
	ClientID     int64
	Kind         ConsultationKind
	Amount       decimal.Decimal
	PaymentRef   string
	Status       PaymentStatus
	Secret       string
	ContactEmail *string
}

// ClientStats summarizes a client's purchase history.
type ClientStats struct {
	TotalConsultations int             `db:"total_consultations" json:"totalConsultations"`
	TotalAmount        decimal.Decimal `db:"total_amount" json:"totalAmount"`
}
