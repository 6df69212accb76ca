package models

import "time"

// MirrorVersion is recorded on every WebhookTrigger at receipt time so a
// stored delivery can always be matched to the code that processed it.
const MirrorVersion = "1.2.0"

// MirroredRecord is the shape shared by every synchronized entity. The
// primary key is the remote-assigned ID, never a local surrogate: updates
// for the same remote object always target the same row, which is what
// makes re-delivery and out-of-order delivery converge.
type MirroredRecord struct {
	ID             string     `gorm:"type:varchar(255);primaryKey" json:"id"`
	Livemode       *bool      `gorm:"default:null" json:"livemode,omitempty"`
	Created        *time.Time `gorm:"type:timestamp;default:null" json:"created,omitempty"`
	OwnerAccountID *string    `gorm:"type:varchar(255);index" json:"owner_account_id,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
