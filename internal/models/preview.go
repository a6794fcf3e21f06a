package models

import "time"

// ChatPreview is the denormalized last-message/unread summary for one
// conversation pair. Exactly one row per unordered pair, keyed by
// (SenderID, ReceiverID) = (min, max) of the two user ids. The actual_*
// columns record who really sent/received the latest message for UI
// attribution, independent of the canonical key.
type ChatPreview struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID         int64     `gorm:"uniqueIndex:idx_preview_pair;not null" json:"senderId"`
	ReceiverID       int64     `gorm:"uniqueIndex:idx_preview_pair;not null" json:"receiverId"`
	LatestMessage    string    `gorm:"size:100" json:"latestMessage"`
	Time             time.Time `json:"time"`
	Unread           int64     `gorm:"default:0;not null" json:"unread"`
	ActualSenderID   int64     `json:"actualSenderId"`
	ActualReceiverID int64     `json:"actualReceiverId"`
}
