package models

import (
	"strings"
	"time"
)

// Event is the remote platform's semantic notification, parsed out of a
// valid WebhookTrigger. The remote-assigned event ID is the idempotency key
// for event-level processing: the same ID is processed at most once.
type Event struct {
	ID             string     `gorm:"type:varchar(255);primaryKey" json:"id"`
	Livemode       bool       `gorm:"default:false" json:"livemode"`
	Type           string     `gorm:"type:varchar(250);not null;index" json:"type"`
	APIVersion     string     `gorm:"type:varchar(64);default:''" json:"api_version"`
	RequestID      string     `gorm:"type:varchar(100);default:''" json:"request_id"`
	IdempotencyKey string     `gorm:"type:text" json:"idempotency_key"`
	Data           string     `gorm:"type:longtext;not null" json:"data"`
	OwnerAccountID *string    `gorm:"type:varchar(255);index" json:"owner_account_id,omitempty"`
	Created        *time.Time `gorm:"type:timestamp;default:null" json:"created,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Parts splits the namespaced event type into its dot-separated segments.
func (e *Event) Parts() []string {
	return strings.Split(e.Type, ".")
}

// Category is the portion of the event type before the first separator,
// e.g. "customer" for "customer.subscription.created".
func (e *Event) Category() string {
	return e.Parts()[0]
}

// Verb is the past-tense remainder after the category, e.g.
// "subscription.created".
func (e *Event) Verb() string {
	return strings.Join(e.Parts()[1:], ".")
}
