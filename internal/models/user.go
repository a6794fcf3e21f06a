package models

import "time"

// User mirrors the account rows owned by the external identity service.
// This subsystem only reads it (receiver email lookups, FK targets) apart
// from the contact violation counter bumped by the moderation gate.
type User struct {
	ID                    int64     `gorm:"primaryKey" json:"id"`
	Username              string    `gorm:"uniqueIndex;not null" json:"username"`
	Email                 string    `gorm:"uniqueIndex;not null" json:"email"`
	Whatsapp              string    `json:"whatsapp,omitempty"`
	ContactViolationCount int64     `gorm:"default:0" json:"contactViolationCount"`
	IsSuspended           bool      `gorm:"default:false" json:"isSuspended"`
	CreatedAt             time.Time `json:"createdAt"`
}
