package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/TeaToe17/jalev1/internal/models"
)

// ErrInvalidPair rejects self-messaging writes.
var ErrInvalidPair = errors.New("ledger: sender and receiver must differ")

// ReminderScheduler is what the ledger calls after a successful append.
// Satisfied by *Escalation; kept as an interface so tests can observe
// scheduling without a queue.
type ReminderScheduler interface {
	Schedule(ctx context.Context, msg *models.Message)
}

// Ledger owns message persistence and the preview/unread bookkeeping.
// It is the only legal mutation path for a message's read flag, and that
// path only ever goes false -> true.
type Ledger struct {
	db        *gorm.DB
	log       zerolog.Logger
	reminders ReminderScheduler
}

func NewLedger(db *gorm.DB, log zerolog.Logger) *Ledger {
	return &Ledger{db: db, log: log}
}

// SetReminders wires the escalation scheduler. Append becomes a no-op
// toward reminders until this is called (useful for boot ordering and
// tests).
func (l *Ledger) SetReminders(r ReminderScheduler) {
	l.reminders = r
}

// Append durably stores a new unread message and starts the reminder
// timeline for its receiver.
func (l *Ledger) Append(ctx context.Context, senderID, receiverID int64, content string) (*models.Message, error) {
	if senderID == receiverID {
		return nil, ErrInvalidPair
	}

	msg := models.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Read:       false,
		CreatedAt:  time.Now(),
	}
	if err := l.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, err
	}

	if l.reminders != nil {
		l.reminders.Schedule(ctx, &msg)
	}
	return &msg, nil
}

// UpsertPreview refreshes the canonical pair row with the latest message
// and then bumps the unread counter as a separate, relative update so
// concurrent increments are never lost.
func (l *Ledger) UpsertPreview(ctx context.Context, senderID, receiverID int64, content string, t time.Time) error {
	if senderID == receiverID {
		return ErrInvalidPair
	}

	first, second := senderID, receiverID
	if first > second {
		first, second = second, first
	}

	preview := models.ChatPreview{
		SenderID:         first,
		ReceiverID:       second,
		LatestMessage:    content,
		Time:             t,
		ActualSenderID:   senderID,
		ActualReceiverID: receiverID,
	}
	err := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "sender_id"}, {Name: "receiver_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"latest_message", "time", "actual_sender_id", "actual_receiver_id",
		}),
	}).Create(&preview).Error
	if err != nil {
		return err
	}

	return l.db.WithContext(ctx).Model(&models.ChatPreview{}).
		Where("sender_id = ? AND receiver_id = ?", first, second).
		UpdateColumn("unread", gorm.Expr("unread + ?", 1)).Error
}

// MarkRead transitions the targeted messages to read and decrements each
// touched pair's unread counter by the number of rows the update actually
// transitioned, floored at zero. The per-pair update re-checks the read
// flag, so a concurrent caller with an overlapping id set never counts
// the same message twice, and calling twice is idempotent.
func (l *Ledger) MarkRead(ctx context.Context, messageIDs []int64) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}

	var targets []models.Message
	if err := l.db.WithContext(ctx).
		Where("id IN ? AND read = ?", messageIDs, false).
		Find(&targets).Error; err != nil {
		return 0, err
	}
	if len(targets) == 0 {
		return 0, nil
	}

	// The fetch only groups candidate ids by pair; the decrement amount
	// comes from RowsAffected below, never from this snapshot.
	perPair := make(map[[2]int64][]int64)
	for _, m := range targets {
		first, second := m.SenderID, m.ReceiverID
		if first > second {
			first, second = second, first
		}
		key := [2]int64{first, second}
		perPair[key] = append(perPair[key], m.ID)
	}

	var total int64
	for pair, ids := range perPair {
		res := l.db.WithContext(ctx).Model(&models.Message{}).
			Where("id IN ? AND read = ?", ids, false).
			UpdateColumn("read", true)
		if res.Error != nil {
			return total, res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}
		total += res.RowsAffected

		err := l.db.WithContext(ctx).Model(&models.ChatPreview{}).
			Where("sender_id = ? AND receiver_id = ?", pair[0], pair[1]).
			UpdateColumn("unread", gorm.Expr("CASE WHEN unread >= ? THEN unread - ? ELSE 0 END",
				res.RowsAffected, res.RowsAffected)).Error
		if err != nil {
			l.log.Error().Err(err).Int64("pair_min", pair[0]).Int64("pair_max", pair[1]).
				Msg("failed to decrement preview unread")
		}
	}

	return total, nil
}

// MarkConversationRead marks every unread message between the two users,
// in both directions, and returns the transition count.
func (l *Ledger) MarkConversationRead(ctx context.Context, userID, peerID int64) (int64, error) {
	var ids []int64
	err := l.db.WithContext(ctx).Model(&models.Message{}).
		Where("((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)) AND read = ?",
			userID, peerID, peerID, userID, false).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	return l.MarkRead(ctx, ids)
}

// GetMessage loads one message by id. The escalation steps use it to
// re-read the read flag, which must never be trusted from a value
// captured at creation time.
func (l *Ledger) GetMessage(ctx context.Context, messageID int64) (*models.Message, error) {
	var msg models.Message
	if err := l.db.WithContext(ctx).First(&msg, messageID).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// Messages returns the chronological history between two users.
func (l *Ledger) Messages(ctx context.Context, userID, peerID int64) ([]models.Message, error) {
	var messages []models.Message
	err := l.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userID, peerID, peerID, userID).
		Order("created_at asc").
		Find(&messages).Error
	return messages, err
}

// Previews lists the caller's conversation previews, newest first.
func (l *Ledger) Previews(ctx context.Context, userID int64) ([]models.ChatPreview, error) {
	var previews []models.ChatPreview
	err := l.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("time desc").
		Find(&previews).Error
	return previews, err
}

// GetPreview fetches the canonical pair row.
func (l *Ledger) GetPreview(ctx context.Context, a, b int64) (*models.ChatPreview, error) {
	if a > b {
		a, b = b, a
	}
	var preview models.ChatPreview
	err := l.db.WithContext(ctx).
		Where("sender_id = ? AND receiver_id = ?", a, b).
		First(&preview).Error
	if err != nil {
		return nil, err
	}
	return &preview, nil
}
