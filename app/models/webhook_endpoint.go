package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Webhook validation strategies. HEADER verifies the cryptographic
// signature header; NONE accepts unconditionally and is only meant for
// trusted local testing.
const (
	WebhookValidationHeader = "HEADER"
	WebhookValidationNone   = "NONE"
)

// DefaultWebhookTolerance is the allowed clock skew, in seconds, between
// the signature header timestamp and the receiving clock.
const DefaultWebhookTolerance = 300

// WebhookEndpoint is one inbound webhook mount. The endpoint is addressed
// by its opaque UUID path token rather than a fixed URL, so scanners cannot
// probe for it.
type WebhookEndpoint struct {
	ID               string     `gorm:"type:varchar(255);primaryKey" json:"id"`
	UUID             string     `gorm:"type:varchar(36);not null;uniqueIndex" json:"uuid" validate:"required,uuid4"`
	Secret           string     `gorm:"type:varchar(256)" json:"-"`
	Livemode         *bool      `gorm:"default:null" json:"livemode,omitempty"`
	APIVersion       string     `gorm:"type:varchar(64);default:''" json:"api_version"`
	EnabledEvents    string     `gorm:"type:text" json:"enabled_events"`
	Status           string     `gorm:"type:varchar(20);default:'enabled'" json:"status" validate:"oneof=enabled disabled"`
	URL              string     `gorm:"type:varchar(2048);default:''" json:"url"`
	Tolerance        uint       `gorm:"default:300" json:"tolerance" validate:"lte=3600"`
	ValidationMethod string     `gorm:"type:varchar(10);default:'HEADER'" json:"validation_method" validate:"oneof=HEADER NONE"`
	OwnerAccountID   *string    `gorm:"type:varchar(255);index" json:"owner_account_id,omitempty"`
	Created          *time.Time `gorm:"type:timestamp;default:null" json:"created,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e *WebhookEndpoint) Validate() error {
	v := validator.New()

	return v.Struct(e)
}

// ToleranceDuration returns the endpoint's clock-skew tolerance, falling
// back to the default when unset.
func (e *WebhookEndpoint) ToleranceDuration() time.Duration {
	if e.Tolerance == 0 {
		return DefaultWebhookTolerance * time.Second
	}
	return time.Duration(e.Tolerance) * time.Second
}
