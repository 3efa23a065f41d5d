package model

import "time"

// AuditEvent is an append-only compliance record. Rows are never updated
// or deleted once written.
type AuditEvent struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	EventID     string    `gorm:"size:36;not null;uniqueIndex"` // uuid, correlation id
	EventType   string    `gorm:"size:64;not null;index"`       // LOGIN_SUCCESS, ACCOUNT_LOCKED...
	Username    string    `gorm:"size:256;not null;index"`      // username or email of the actor
	IP          string    `gorm:"size:45;not null"`             // IPv4/IPv6 origin address
	Description string    `gorm:"size:512"`                     // free-text context
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (AuditEvent) TableName() string {
	return "audit"
}
