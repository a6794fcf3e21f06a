package push

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMClient sends direct push notifications through Firebase Cloud
// Messaging.
type FCMClient struct {
	client *messaging.Client
}

func NewFCMClient(ctx context.Context, credentialsFile string) (*FCMClient, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("fcm: init app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("fcm: init messaging: %w", err)
	}
	return &FCMClient{client: client}, nil
}

var _ DirectPush = (*FCMClient)(nil)

func (f *FCMClient) Send(ctx context.Context, token, title, body, url string) error {
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title:    title,
			Body:     body,
			ImageURL: imageURL(url),
		},
		Data: map[string]string{
			"title":        title,
			"body":         body,
			"url":          url,
			"timestamp":    ts,
			"click_action": url,
		},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title:              title,
				Body:               body,
				Icon:               "/logo.png",
				Badge:              "/badge-icon.png",
				Tag:                "notification-tag",
				RequireInteraction: true,
				Actions: []*messaging.WebpushNotificationAction{
					{Action: "open", Title: "Open"},
					{Action: "close", Title: "Close"},
				},
				Data: map[string]string{"url": url, "timestamp": ts},
			},
			FCMOptions: &messaging.WebpushFCMOptions{Link: url},
		},
	}

	if _, err := f.client.Send(ctx, msg); err != nil {
		if messaging.IsUnregistered(err) {
			return ErrTargetGone
		}
		return err
	}
	return nil
}

// imageURL passes url through as the notification image only when it
// points at an actual image.
func imageURL(url string) string {
	for _, ext := range []string{".jpg", ".png", ".gif"} {
		if strings.HasSuffix(url, ext) {
			return url
		}
	}
	return ""
}
