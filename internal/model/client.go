package model

import (
	"strings"
	"time"
)

// Client is the paying party, keyed by the chat platform's numeric id.
type Client struct {
	ClientID  int64     `db:"client_id" json:"clientId"`
	Username  *string   `db:"username" json:"username,omitempty"`
	FirstName *string   `db:"first_name" json:"firstName,omitempty"`
	LastName  *string   `db:"last_name" json:"lastName,omitempty"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

type UpsertClientParams struct {
	ClientID  int64
	Username  *string
	FirstName *string
	LastName  *string
	Phone     *string
}

// ClientFields are the client columns joined onto ledger reads.
type ClientFields struct {
	Username  *string `db:"username" json:"username,omitempty"`
	FirstName *string `db:"first_name" json:"firstName,omitempty"`
	LastName  *string `db:"last_name" json:"lastName,omitempty"`
	Phone     *string `db:"phone" json:"phone,omitempty"`
}

func (f ClientFields) DisplayName() string {
	parts := make([]string, 0, 2)
	if f.FirstName != nil && *f.FirstName != "" {
		parts = append(parts, *f.FirstName)
	}
	if f.LastName != nil && *f.LastName != "" {
		parts = append(parts, *f.LastName)
	}
	if len(parts) == 0 {
		return "Не указано"
	}
	return strings.Join(parts, " ")
}

func (f ClientFields) Handle() string {
	if f.Username == nil || *f.Username == "" {
		return "Не указан"
	}
	return "@" + *f.Username
}
