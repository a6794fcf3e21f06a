package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/TeaToe17/jalev1/internal/models"
	"github.com/TeaToe17/jalev1/internal/push"
)

// Channel identifies which delivery path carried a notification.
type Channel string

const (
	ChannelNone             Channel = "none"
	ChannelDirectPush       Channel = "direct_push"
	ChannelSubscriptionPush Channel = "subscription_push"
)

// DeliveryResult reports whether and how a notify call reached the user.
type DeliveryResult struct {
	Sent    bool    `json:"sent"`
	Channel Channel `json:"channel"`
}

// Dispatcher selects a delivery channel per recipient and sends at most
// one notification per user per call: the first successful channel wins,
// so a user with several devices gets a single pop-up.
type Dispatcher struct {
	db     *gorm.DB
	direct push.DirectPush
	subs   push.SubscriptionPush
	log    zerolog.Logger
}

func NewDispatcher(db *gorm.DB, direct push.DirectPush, subs push.SubscriptionPush, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{db: db, direct: direct, subs: subs, log: log}
}

// Notify walks the user's registered push targets, preferring the direct
// token channel and falling back to the browser subscription channel.
// Permanently invalid targets are deleted on the spot; transient provider
// errors are logged and the next candidate is tried. A failed or empty
// result is not an error: escalation continues regardless.
func (d *Dispatcher) Notify(ctx context.Context, userID int64, subject, body, url string) DeliveryResult {
	var targets []models.PushTarget
	if err := d.db.WithContext(ctx).Where("user_id = ?", userID).Find(&targets).Error; err != nil {
		d.log.Error().Err(err).Int64("user_id", userID).Msg("failed to load push targets")
		return DeliveryResult{Sent: false, Channel: ChannelNone}
	}
	if len(targets) == 0 {
		d.log.Warn().Int64("user_id", userID).Msg("no push targets registered")
		return DeliveryResult{Sent: false, Channel: ChannelNone}
	}

	for _, target := range targets {
		if d.direct != nil && target.Token != "" {
			err := d.direct.Send(ctx, target.Token, subject, body, url)
			if err == nil {
				return DeliveryResult{Sent: true, Channel: ChannelDirectPush}
			}
			if errors.Is(err, push.ErrTargetGone) {
				d.deleteTarget(ctx, target.ID)
			} else {
				d.log.Error().Err(err).Int64("user_id", userID).Msg("direct push failed, trying next candidate")
			}
		}

		if d.subs != nil && target.Subscription != "" {
			payload, _ := json.Marshal(map[string]string{
				"title":     subject,
				"body":      body,
				"url":       url,
				"timestamp": strconv.FormatInt(time.Now().Unix(), 10),
			})
			err := d.subs.Send(ctx, target.Subscription, payload)
			if err == nil {
				return DeliveryResult{Sent: true, Channel: ChannelSubscriptionPush}
			}
			if errors.Is(err, push.ErrTargetGone) {
				d.deleteTarget(ctx, target.ID)
			} else {
				d.log.Error().Err(err).Int64("user_id", userID).Msg("web push failed, trying next candidate")
			}
		}
	}

	return DeliveryResult{Sent: false, Channel: ChannelNone}
}

// deleteTarget removes a dead endpoint. A concurrent notify may have
// deleted it already; that is a skip, not an error.
func (d *Dispatcher) deleteTarget(ctx context.Context, id int64) {
	if err := d.db.WithContext(ctx).Delete(&models.PushTarget{}, id).Error; err != nil {
		d.log.Error().Err(err).Int64("target_id", id).Msg("failed to delete invalid push target")
		return
	}
	d.log.Info().Int64("target_id", id).Msg("removed permanently invalid push target")
}
