package models

import "time"

// WebhookTrigger is one received webhook delivery, exactly as it arrived.
// Triggers are initially untrusted: anything on the internet can POST to a
// webhook URL, so the raw request is persisted for audit regardless of
// whether it validates, and the valid/processed flags record what happened
// to it. Trigger rows are never deleted.
//
// Identity is a locally generated UUID, not the remote event ID: the sender
// may replay the same event in a new HTTP delivery, and the two deliveries
// must stay distinguishable.
type WebhookTrigger struct {
	ID            string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	RemoteIP      string    `gorm:"type:varchar(45);not null" json:"remote_ip"`
	Headers       string    `gorm:"type:longtext" json:"headers"`
	Body          string    `gorm:"type:longtext" json:"body"`
	Valid         bool      `gorm:"default:false;index" json:"valid"`
	Processed     bool      `gorm:"default:false;index" json:"processed"`
	Exception     string    `gorm:"type:varchar(255);default:''" json:"exception"`
	EventID       *string   `gorm:"type:varchar(255);index" json:"event_id,omitempty"`
	EndpointID    *string   `gorm:"type:varchar(255);index" json:"endpoint_id,omitempty"`
	MirrorVersion string    `gorm:"type:varchar(32);default:''" json:"mirror_version"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
