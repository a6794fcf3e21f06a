package models

import "time"

// PushTarget is one registered delivery endpoint for a user: either a
// direct FCM token or a browser push subscription (JSON), independently.
// Rows are deleted when a provider reports the endpoint permanently gone.
type PushTarget struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       int64     `gorm:"index;not null" json:"userId"`
	Token        string    `gorm:"type:text" json:"token,omitempty"`
	Subscription string    `gorm:"type:text" json:"subscription,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}
