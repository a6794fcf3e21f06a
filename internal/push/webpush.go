package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// WebPushClient sends VAPID web push notifications to stored browser
// subscriptions (the Safari/iOS fallback path).
type WebPushClient struct {
	publicKey  string
	privateKey string
	subject    string
}

func NewWebPushClient(publicKey, privateKey, subject string) *WebPushClient {
	return &WebPushClient{publicKey: publicKey, privateKey: privateKey, subject: subject}
}

var _ SubscriptionPush = (*WebPushClient)(nil)

func (w *WebPushClient) Send(ctx context.Context, subscription string, payload []byte) error {
	var sub webpush.Subscription
	if err := json.Unmarshal([]byte(subscription), &sub); err != nil {
		// Unparseable subscriptions can never be delivered to.
		return ErrTargetGone
	}
	if sub.Endpoint == "" {
		return ErrTargetGone
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &sub, &webpush.Options{
		Subscriber:      w.subject,
		VAPIDPublicKey:  w.publicKey,
		VAPIDPrivateKey: w.privateKey,
		TTL:             60,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrTargetGone
	case resp.StatusCode >= 400:
		return fmt.Errorf("webpush: unexpected status %d", resp.StatusCode)
	}
	return nil
}
