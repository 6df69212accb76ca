package models

import "time"

// PlatformAccount represents one remote-platform account/tenant scope.
// Every mirrored record optionally belongs to exactly one of these; the
// association is resolved once and then cached.
type PlatformAccount struct {
	ID           string     `gorm:"type:varchar(255);primaryKey" json:"id"`
	Livemode     *bool      `gorm:"default:null" json:"livemode,omitempty"`
	BusinessName string     `gorm:"type:varchar(255);default:''" json:"business_name"`
	Email        string     `gorm:"type:varchar(200);default:''" json:"email"`
	Country      string     `gorm:"type:varchar(2);default:''" json:"country"`
	Created      *time.Time `gorm:"type:timestamp;default:null" json:"created,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// APIKey is one credential bound to a PlatformAccount. The secret itself is
// the lookup key for credential-to-account resolution.
type APIKey struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Secret    string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"-"`
	Livemode  bool      `gorm:"default:false" json:"livemode"`
	AccountID *string   `gorm:"type:varchar(255);index" json:"account_id,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
