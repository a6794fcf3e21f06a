package models

import "time"

// Message is a direct message between two users. Immutable once created
// except for Read, which only ever transitions false -> true.
type Message struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID   int64     `gorm:"index;not null" json:"senderId"`
	ReceiverID int64     `gorm:"index;not null" json:"receiverId"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Read       bool      `gorm:"default:false;not null" json:"read"`
	CreatedAt  time.Time `json:"createdAt"`

	// Relations
	Sender   User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Receiver User `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
}
