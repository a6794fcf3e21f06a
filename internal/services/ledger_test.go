package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/TeaToe17/jalev1/internal/models"
)

func TestAppendRejectsSelfPair(t *testing.T) {
	db := SetupTestDB()
	ledger := NewLedger(db, testLogger())

	_, err := ledger.Append(context.Background(), 100, 100, "hello me")
	assert.ErrorIs(t, err, ErrInvalidPair)
}

func TestAppendStoresUnread(t *testing.T) {
	db := SetupTestDB()
	ledger := NewLedger(db, testLogger())

	msg, err := ledger.Append(context.Background(), 101, 102, "hey")
	assert.NoError(t, err)
	assert.False(t, msg.Read)
	assert.NotZero(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())
}

func TestPreviewUnreadCounting(t *testing.T) {
	db := SetupTestDB()
	ledger := NewLedger(db, testLogger())
	ctx := context.Background()

	// Messages in both directions land on the same canonical row
	for i := 0; i < 3; i++ {
		assert.NoError(t, ledger.UpsertPreview(ctx, 111, 112, "ping", time.Now()))
	}
	assert.NoError(t, ledger.UpsertPreview(ctx, 112, 111, "pong", time.Now()))

	preview, err := ledger.GetPreview(ctx, 112, 111)
	assert.NoError(t, err)
	assert.Equal(t, int64(4), preview.Unread)
	assert.Equal(t, "pong", preview.LatestMessage)
	assert.Equal(t, int64(111), preview.SenderID)
	assert.Equal(t, int64(112), preview.ReceiverID)
	assert.Equal(t, int64(112), preview.ActualSenderID)
	assert.Equal(t, int64(111), preview.ActualReceiverID)

	// Exactly one preview row exists for the pair
	var count int64
	db.Model(&models.ChatPreview{}).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", 111, 112, 112, 111).
		Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestMarkReadDecrementsAndIsIdempotent(t *testing.T) {
	db := SetupTestDB()
	ledger := NewLedger(db, testLogger())
	ctx := context.Background()

	m1, _ := ledger.Append(ctx, 121, 122, "one")
	m2, _ := ledger.Append(ctx, 121, 122, "two")
	ledger.UpsertPreview(ctx, 121, 122, "one", time.Now())
	ledger.UpsertPreview(ctx, 121, 122, "two", time.Now())

	count, err := ledger.MarkRead(ctx, []int64{m1.ID, m2.ID})
	assert.NoError(t, err)
	assert.Equal(t, int64(2), count)

	preview, _ := ledger.GetPreview(ctx, 121, 122)
	assert.Equal(t, int64(0), preview.Unread)

	// Second call recounts nothing and leaves unread untouched
	count, err = ledger.MarkRead(ctx, []int64{m1.ID, m2.ID})
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count)

	preview, _ = ledger.GetPreview(ctx, 121, 122)
	assert.Equal(t, int64(0), preview.Unread)
}

func TestMarkReadFloorsAtZero(t *testing.T) {
	db := SetupTestDB()
	ledger := NewLedger(db, testLogger())
	ctx := context.Background()

	// One counted increment, two stored messages: the decrement must
	// floor rather than go negative.
	m1, _ := ledger.Append(ctx, 131, 132, "one")
	m2, _ := ledger.Append(ctx, 131, 132, "two")
	ledger.UpsertPreview(ctx, 131, 132, "two", time.Now())

	count, err := ledger.MarkRead(ctx, []int64{m1.ID, m2.ID})
	assert.NoError(t, err)
	assert.Equal(t, int64(2), count)

	preview, _ := ledger.GetPreview(ctx, 131, 132)
	assert.Equal(t, int64(0), preview.Unread)
}

func TestMarkReadConcurrentOverlapCountsOnce(t *testing.T) {
	db := SetupTestDB()
	ledger := NewLedger(db, testLogger())
	ctx := context.Background()

	m1, _ := ledger.Append(ctx, 161, 162, "one")
	m2, _ := ledger.Append(ctx, 161, 162, "two")
	m3, _ := ledger.Append(ctx, 161, 162, "three")
	ledger.Append(ctx, 161, 162, "four")
	for i := 0; i < 4; i++ {
		ledger.UpsertPreview(ctx, 161, 162, "four", time.Now())
	}

	// A second caller with an overlapping id set lands between the first
	// caller's candidate fetch and its updates. The shared message must
	// decrement the pair's unread exactly once.
	var racingCount int64
	fired := false
	db.Callback().Query().After("gorm:query").Register("racing_mark_read", func(tx *gorm.DB) {
		if fired || tx.Statement.Table != "messages" {
			return
		}
		fired = true
		racingCount, _ = ledger.MarkRead(ctx, []int64{m2.ID, m3.ID})
	})

	count, err := ledger.MarkRead(ctx, []int64{m1.ID, m2.ID})
	assert.NoError(t, err)
	assert.True(t, fired)
	assert.Equal(t, int64(2), racingCount)
	assert.Equal(t, int64(1), count) // m2 already transitioned by the racer

	// 3 transitions total against 4 unread: exactly one remains
	preview, err := ledger.GetPreview(ctx, 161, 162)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), preview.Unread)
}

func TestMarkConversationReadBothDirections(t *testing.T) {
	// The end-to-end preview scenario: 3 and 7 exchange "hi" then "yo"
	db := SetupTestDB()
	ledger := NewLedger(db, testLogger())
	ctx := context.Background()

	_, err := ledger.Append(ctx, 3, 7, "hi")
	assert.NoError(t, err)
	assert.NoError(t, ledger.UpsertPreview(ctx, 3, 7, "hi", time.Now()))

	_, err = ledger.Append(ctx, 7, 3, "yo")
	assert.NoError(t, err)
	assert.NoError(t, ledger.UpsertPreview(ctx, 7, 3, "yo", time.Now()))

	preview, err := ledger.GetPreview(ctx, 3, 7)
	assert.NoError(t, err)
	assert.Equal(t, "yo", preview.LatestMessage)
	assert.Equal(t, int64(2), preview.Unread)

	count, err := ledger.MarkConversationRead(ctx, 7, 3)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), count)

	preview, _ = ledger.GetPreview(ctx, 3, 7)
	assert.Equal(t, int64(0), preview.Unread)
}

func TestAppendSchedulesReminder(t *testing.T) {
	db := SetupTestDB()
	ledger := NewLedger(db, testLogger())

	rec := &reminderRecorder{}
	ledger.SetReminders(rec)

	msg, err := ledger.Append(context.Background(), 141, 142, "are you there?")
	assert.NoError(t, err)
	assert.Len(t, rec.scheduled, 1)
	assert.Equal(t, msg.ID, rec.scheduled[0].ID)
}

func TestMessagesChronological(t *testing.T) {
	db := SetupTestDB()
	ledger := NewLedger(db, testLogger())
	ctx := context.Background()

	ledger.Append(ctx, 151, 152, "first")
	ledger.Append(ctx, 152, 151, "second")

	messages, err := ledger.Messages(ctx, 151, 152)
	assert.NoError(t, err)
	assert.Len(t, messages, 2)
	assert.Equal(t, "first", messages[0].Content)
	assert.Equal(t, "second", messages[1].Content)
}

// reminderRecorder captures Schedule calls without a queue.
type reminderRecorder struct {
	scheduled []*models.Message
}

func (r *reminderRecorder) Schedule(_ context.Context, msg *models.Message) {
	r.scheduled = append(r.scheduled, msg)
}
