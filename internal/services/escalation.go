package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/TeaToe17/jalev1/internal/models"
	"github.com/TeaToe17/jalev1/internal/moderation"
	"github.com/TeaToe17/jalev1/internal/push"
	"github.com/TeaToe17/jalev1/internal/queue"
)

// Task types for the reminder pipeline. Both run on the chat queue.
const (
	TaskPushReminder  = "chat:push_reminder"
	TaskEmailReminder = "chat:email_reminder"
)

const (
	emailAttempts = 3
	emailBackoff  = 2 * time.Second
)

// reminderPayload is the JSON body of both reminder tasks.
type reminderPayload struct {
	MessageID int64 `json:"messageId"`
}

// Escalation drives the unread-message reminder timeline: a push
// notification after PushDelay, then an email after a further EmailDelay.
// Every step re-reads the message's read flag from the ledger, so a read
// at any point silences the remaining steps without explicit cancellation.
type Escalation struct {
	queue      queue.Client
	ledger     *Ledger
	dispatcher *Dispatcher
	email      push.EmailSender
	db         *gorm.DB
	log        zerolog.Logger

	// PushDelay is measured from message creation, EmailDelay from the
	// push check.
	PushDelay  time.Duration
	EmailDelay time.Duration

	// ChatURL prefixes the /chat/<senderId> link embedded in reminders.
	ChatURL string

	// Overridable in tests to avoid real sleeps.
	attempts int
	backoff  time.Duration
}

func NewEscalation(q queue.Client, ledger *Ledger, dispatcher *Dispatcher, email push.EmailSender, db *gorm.DB, pushDelay, emailDelay time.Duration, chatURL string, log zerolog.Logger) *Escalation {
	return &Escalation{
		queue:      q,
		ledger:     ledger,
		dispatcher: dispatcher,
		email:      email,
		db:         db,
		log:        log,
		PushDelay:  pushDelay,
		EmailDelay: emailDelay,
		ChatURL:    chatURL,
		attempts:   emailAttempts,
		backoff:    emailBackoff,
	}
}

var _ ReminderScheduler = (*Escalation)(nil)

// Register binds the reminder handlers to the queue server.
func (e *Escalation) Register(srv queue.Server) {
	srv.Register(TaskPushReminder, e.handlePushReminder)
	srv.Register(TaskEmailReminder, e.handleEmailReminder)
}

// Schedule opens the reminder window for a freshly created message.
// Moderation notices and self-pairs never get a timeline.
func (e *Escalation) Schedule(ctx context.Context, msg *models.Message) {
	if msg.Content == moderation.Notice || msg.SenderID == msg.ReceiverID {
		return
	}

	payload, _ := json.Marshal(reminderPayload{MessageID: msg.ID})
	_, err := e.queue.Enqueue(ctx, queue.Task{Type: TaskPushReminder, Payload: payload}, queue.EnqueueOption{
		Queue:     "chat",
		ProcessIn: e.PushDelay,
		MaxRetry:  -1,
	})
	if err != nil {
		e.log.Error().Err(err).Int64("message_id", msg.ID).Msg("failed to schedule push reminder")
		return
	}
	e.log.Debug().Int64("message_id", msg.ID).Dur("delay", e.PushDelay).Msg("push reminder scheduled")
}

// handlePushReminder fires PushDelay after creation. A fresh read of the
// message decides whether to notify; delivery failures are logged and the
// email step is scheduled either way. Always returns nil so the broker
// never re-fires a step.
func (e *Escalation) handlePushReminder(ctx context.Context, task queue.Task) error {
	var p reminderPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		e.log.Error().Err(err).Msg("malformed push reminder payload")
		return nil
	}

	msg, err := e.ledger.GetMessage(ctx, p.MessageID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			e.log.Error().Err(err).Int64("message_id", p.MessageID).Msg("push reminder: message lookup failed")
		}
		return nil
	}
	if msg.Read {
		e.log.Debug().Int64("message_id", msg.ID).Msg("push reminder skipped, message already read")
		return nil
	}

	result := e.dispatcher.Notify(ctx, msg.ReceiverID, "You have an unread message", msg.Content, e.chatLink(msg.SenderID))
	if !result.Sent {
		e.log.Warn().Int64("message_id", msg.ID).Int64("receiver_id", msg.ReceiverID).Msg("push reminder not delivered")
	}

	payload, _ := json.Marshal(reminderPayload{MessageID: msg.ID})
	if _, err := e.queue.Enqueue(ctx, queue.Task{Type: TaskEmailReminder, Payload: payload}, queue.EnqueueOption{
		Queue:     "chat",
		ProcessIn: e.EmailDelay,
		MaxRetry:  -1,
	}); err != nil {
		e.log.Error().Err(err).Int64("message_id", msg.ID).Msg("failed to schedule email reminder")
	}
	return nil
}

// handleEmailReminder is the last escalation step. It re-reads the read
// flag, then mails the receiver with a short retry loop, giving up
// silently after the attempts are exhausted.
func (e *Escalation) handleEmailReminder(ctx context.Context, task queue.Task) error {
	var p reminderPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		e.log.Error().Err(err).Msg("malformed email reminder payload")
		return nil
	}

	msg, err := e.ledger.GetMessage(ctx, p.MessageID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			e.log.Error().Err(err).Int64("message_id", p.MessageID).Msg("email reminder: message lookup failed")
		}
		return nil
	}
	if msg.Read {
		e.log.Debug().Int64("message_id", msg.ID).Msg("email reminder skipped, message already read")
		return nil
	}

	var receiver models.User
	if err := e.db.WithContext(ctx).Select("email").First(&receiver, msg.ReceiverID).Error; err != nil {
		e.log.Error().Err(err).Int64("receiver_id", msg.ReceiverID).Msg("email reminder: receiver lookup failed")
		return nil
	}

	for attempt := 1; attempt <= e.attempts; attempt++ {
		err := e.email.Send(receiver.Email, "You Have an Unread Message", msg.Content)
		if err == nil {
			e.log.Info().Int64("message_id", msg.ID).Str("to", receiver.Email).Msg("unread reminder email sent")
			return nil
		}
		e.log.Error().Err(err).Int("attempt", attempt).Int64("message_id", msg.ID).Msg("reminder email failed")
		if attempt < e.attempts {
			time.Sleep(e.backoff)
		}
	}
	// All retry attempts failed; give up silently.
	return nil
}

func (e *Escalation) chatLink(senderID int64) string {
	return fmt.Sprintf("%s/chat/%d", e.ChatURL, senderID)
}
