package push

import (
	"context"
	"errors"
)

// ErrTargetGone reports that a delivery endpoint is permanently invalid
// (expired token, unsubscribed browser). The caller should delete the
// stored target. Any other error is treated as transient.
var ErrTargetGone = errors.New("push: target permanently invalid")

// DirectPush delivers to a device token (FCM).
type DirectPush interface {
	Send(ctx context.Context, token, title, body, url string) error
}

// SubscriptionPush delivers to a stored browser push subscription.
type SubscriptionPush interface {
	Send(ctx context.Context, subscription string, payload []byte) error
}

// EmailSender is the outbound mail collaborator. Retrying is the
// caller's responsibility.
type EmailSender interface {
	Send(to, subject, body string) error
}
