package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/TeaToe17/jalev1/internal/moderation"
	"github.com/TeaToe17/jalev1/internal/models"
	"github.com/TeaToe17/jalev1/internal/queue"
)

// fakeQueue records enqueued tasks instead of scheduling them.
type fakeQueue struct {
	tasks []recordedTask
}

type recordedTask struct {
	task queue.Task
	opt  queue.EnqueueOption
}

func (f *fakeQueue) Enqueue(_ context.Context, t queue.Task, opt queue.EnqueueOption) (string, error) {
	f.tasks = append(f.tasks, recordedTask{task: t, opt: opt})
	return "task-id", nil
}

func (f *fakeQueue) Close() error { return nil }

// fakeEmail scripts failures before succeeding.
type fakeEmail struct {
	failures int
	sent     []string
	calls    int
}

func (f *fakeEmail) Send(to, _, _ string) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("smtp unavailable")
	}
	f.sent = append(f.sent, to)
	return nil
}

func newTestEscalation(t *testing.T, q queue.Client, email *fakeEmail, direct *fakeDirect) (*Escalation, *Ledger) {
	t.Helper()
	db := SetupTestDB()
	ledger := NewLedger(db, testLogger())
	dispatcher := NewDispatcher(db, direct, &fakeSubs{}, testLogger())
	esc := NewEscalation(q, ledger, dispatcher, email, db, 5*time.Minute, 10*time.Minute, "https://jale.example", testLogger())
	esc.backoff = time.Millisecond
	ledger.SetReminders(esc)
	return esc, ledger
}

func payloadFor(id int64) []byte {
	p, _ := json.Marshal(reminderPayload{MessageID: id})
	return p
}

func TestScheduleEnqueuesPushReminder(t *testing.T) {
	q := &fakeQueue{}
	esc, _ := newTestEscalation(t, q, &fakeEmail{}, &fakeDirect{})

	esc.Schedule(context.Background(), &models.Message{ID: 1, SenderID: 301, ReceiverID: 302, Content: "hi"})

	assert.Len(t, q.tasks, 1)
	assert.Equal(t, TaskPushReminder, q.tasks[0].task.Type)
	assert.Equal(t, 5*time.Minute, q.tasks[0].opt.ProcessIn)
	assert.Equal(t, "chat", q.tasks[0].opt.Queue)
}

func TestScheduleSkipsModerationNotice(t *testing.T) {
	q := &fakeQueue{}
	esc, _ := newTestEscalation(t, q, &fakeEmail{}, &fakeDirect{})

	esc.Schedule(context.Background(), &models.Message{ID: 2, SenderID: 303, ReceiverID: 304, Content: moderation.Notice})
	assert.Empty(t, q.tasks)
}

func TestReadBeforePushCheckSilencesPipeline(t *testing.T) {
	q := &fakeQueue{}
	direct := &fakeDirect{results: []error{nil}}
	esc, ledger := newTestEscalation(t, q, &fakeEmail{}, direct)
	ctx := context.Background()

	msg, err := ledger.Append(ctx, 311, 312, "hello?")
	assert.NoError(t, err)
	assert.Len(t, q.tasks, 1) // push reminder scheduled at append

	_, err = ledger.MarkRead(ctx, []int64{msg.ID})
	assert.NoError(t, err)

	// T1 fires after the read: the fresh check observes read=true
	err = esc.handlePushReminder(ctx, queue.Task{Type: TaskPushReminder, Payload: payloadFor(msg.ID)})
	assert.NoError(t, err)

	assert.Equal(t, 0, direct.calls)
	assert.Len(t, q.tasks, 1) // no email step scheduled
}

func TestReadBetweenPushAndEmailCheck(t *testing.T) {
	db := SetupTestDB()
	q := &fakeQueue{}
	email := &fakeEmail{}
	direct := &fakeDirect{results: []error{nil}}
	ledger := NewLedger(db, testLogger())
	dispatcher := NewDispatcher(db, direct, &fakeSubs{}, testLogger())
	esc := NewEscalation(q, ledger, dispatcher, email, db, 5*time.Minute, 10*time.Minute, "https://jale.example", testLogger())
	esc.backoff = time.Millisecond
	ledger.SetReminders(esc)
	ctx := context.Background()

	db.Create(&models.User{ID: 322, Username: "u322", Email: "u322@example.com"})
	db.Create(&models.PushTarget{UserID: 322, Token: "tok-322"})

	msg, _ := ledger.Append(ctx, 321, 322, "still there?")

	// T1: unread, exactly one dispatcher invocation, email step queued
	err := esc.handlePushReminder(ctx, queue.Task{Type: TaskPushReminder, Payload: payloadFor(msg.ID)})
	assert.NoError(t, err)
	assert.Equal(t, 1, direct.calls)
	assert.Len(t, q.tasks, 2)
	assert.Equal(t, TaskEmailReminder, q.tasks[1].task.Type)
	assert.Equal(t, 10*time.Minute, q.tasks[1].opt.ProcessIn)

	// Read lands inside the second window
	ledger.MarkRead(ctx, []int64{msg.ID})

	// T2: the fresh check sees read=true, no email goes out
	err = esc.handleEmailReminder(ctx, queue.Task{Type: TaskEmailReminder, Payload: payloadFor(msg.ID)})
	assert.NoError(t, err)
	assert.Equal(t, 0, email.calls)
}

func TestUnreadPastEmailCheckSendsOneEmail(t *testing.T) {
	db := SetupTestDB()
	q := &fakeQueue{}
	email := &fakeEmail{}
	direct := &fakeDirect{results: []error{nil}}
	ledger := NewLedger(db, testLogger())
	dispatcher := NewDispatcher(db, direct, &fakeSubs{}, testLogger())
	esc := NewEscalation(q, ledger, dispatcher, email, db, 5*time.Minute, 10*time.Minute, "https://jale.example", testLogger())
	esc.backoff = time.Millisecond
	ledger.SetReminders(esc)
	ctx := context.Background()

	db.Create(&models.User{ID: 332, Username: "u332", Email: "u332@example.com"})
	db.Create(&models.PushTarget{UserID: 332, Token: "tok-332"})

	msg, _ := ledger.Append(ctx, 331, 332, "ping")

	err := esc.handlePushReminder(ctx, queue.Task{Type: TaskPushReminder, Payload: payloadFor(msg.ID)})
	assert.NoError(t, err)
	assert.Equal(t, 1, direct.calls)

	err = esc.handleEmailReminder(ctx, queue.Task{Type: TaskEmailReminder, Payload: payloadFor(msg.ID)})
	assert.NoError(t, err)
	assert.Equal(t, 1, email.calls)
	assert.Equal(t, []string{"u332@example.com"}, email.sent)
}

func TestEmailRetriesWithBackoffThenSucceeds(t *testing.T) {
	db := SetupTestDB()
	q := &fakeQueue{}
	email := &fakeEmail{failures: 2}
	ledger := NewLedger(db, testLogger())
	dispatcher := NewDispatcher(db, &fakeDirect{}, &fakeSubs{}, testLogger())
	esc := NewEscalation(q, ledger, dispatcher, email, db, 5*time.Minute, 10*time.Minute, "https://jale.example", testLogger())
	esc.backoff = time.Millisecond
	ctx := context.Background()

	db.Create(&models.User{ID: 342, Username: "u342", Email: "u342@example.com"})
	msg, _ := ledger.Append(ctx, 341, 342, "retry me")

	err := esc.handleEmailReminder(ctx, queue.Task{Type: TaskEmailReminder, Payload: payloadFor(msg.ID)})
	assert.NoError(t, err)
	assert.Equal(t, 3, email.calls)
	assert.Equal(t, []string{"u342@example.com"}, email.sent)
}

func TestEmailGivesUpSilently(t *testing.T) {
	db := SetupTestDB()
	q := &fakeQueue{}
	email := &fakeEmail{failures: 10}
	ledger := NewLedger(db, testLogger())
	dispatcher := NewDispatcher(db, &fakeDirect{}, &fakeSubs{}, testLogger())
	esc := NewEscalation(q, ledger, dispatcher, email, db, 5*time.Minute, 10*time.Minute, "https://jale.example", testLogger())
	esc.backoff = time.Millisecond
	ctx := context.Background()

	db.Create(&models.User{ID: 352, Username: "u352", Email: "u352@example.com"})
	msg, _ := ledger.Append(ctx, 351, 352, "never delivered")

	err := esc.handleEmailReminder(ctx, queue.Task{Type: TaskEmailReminder, Payload: payloadFor(msg.ID)})
	assert.NoError(t, err) // failures never propagate to the broker
	assert.Equal(t, 3, email.calls)
	assert.Empty(t, email.sent)
}

func TestPushDeliveryFailureStillSchedulesEmail(t *testing.T) {
	db := SetupTestDB()
	q := &fakeQueue{}
	email := &fakeEmail{}
	direct := &fakeDirect{results: []error{errors.New("provider down")}}
	ledger := NewLedger(db, testLogger())
	dispatcher := NewDispatcher(db, direct, &fakeSubs{}, testLogger())
	esc := NewEscalation(q, ledger, dispatcher, email, db, 5*time.Minute, 10*time.Minute, "https://jale.example", testLogger())
	esc.backoff = time.Millisecond
	ctx := context.Background()

	db.Create(&models.PushTarget{UserID: 362, Token: "tok-362"})
	msg, _ := ledger.Append(ctx, 361, 362, "hi")

	err := esc.handlePushReminder(ctx, queue.Task{Type: TaskPushReminder, Payload: payloadFor(msg.ID)})
	assert.NoError(t, err)

	// The failed push never blocks the next step
	found := false
	for _, rt := range q.tasks {
		if rt.task.Type == TaskEmailReminder {
			found = true
		}
	}
	assert.True(t, found)
}

func TestReminderForDeletedMessageIsNoop(t *testing.T) {
	q := &fakeQueue{}
	esc, _ := newTestEscalation(t, q, &fakeEmail{}, &fakeDirect{})

	err := esc.handlePushReminder(context.Background(), queue.Task{Type: TaskPushReminder, Payload: payloadFor(999999)})
	assert.NoError(t, err)
	assert.Empty(t, q.tasks)
}
