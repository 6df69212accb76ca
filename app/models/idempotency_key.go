package models

import "time"

// IdempotencyKeyTTL bounds how long a key is honored. Expiry is derived on
// lookup; there is no active sweep.
const IdempotencyKeyTTL = 24 * time.Hour

// IdempotencyKey tracks one in-flight or completed outbound mutating call.
// The key value is sent to the remote platform so a retried local call is
// recognized there as a duplicate instead of creating a second resource.
type IdempotencyKey struct {
	UUID      string    `gorm:"type:varchar(36);primaryKey" json:"uuid"`
	Action    string    `gorm:"type:varchar(100);not null;index:ux_idempotency_keys_action_livemode,unique,priority:1" json:"action"`
	Livemode  bool      `gorm:"not null;index:ux_idempotency_keys_action_livemode,unique,priority:2" json:"livemode"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (k *IdempotencyKey) IsExpired() bool {
	return k.IsExpiredAt(time.Now())
}

// IsExpiredAt reports expiry against an explicit clock, so callers with an
// injected clock can stay deterministic.
func (k *IdempotencyKey) IsExpiredAt(now time.Time) bool {
	return now.After(k.CreatedAt.Add(IdempotencyKeyTTL))
}
