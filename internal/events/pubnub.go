package events

import (
	"context"
	"fmt"

	"exhibition-system/models"

	pubnub "github.com/pubnub/go/v7"
)

type PubNubConfig struct {
	PublishKey   string
	SubscribeKey string
	SecretKey    string
	UserID       string
}

// PubNubPublisher pushes events to the realtime channels the front-end
// listens on: one per session, one per affected user.
type PubNubPublisher struct {
	send func(channel string, message any) error
}

func NewPubNubPublisher(cfg PubNubConfig) *PubNubPublisher {
	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.UserID))
	pnCfg.PublishKey = cfg.PublishKey
	pnCfg.SubscribeKey = cfg.SubscribeKey
	pnCfg.SecretKey = cfg.SecretKey

	pn := pubnub.NewPubNub(pnCfg)
	return &PubNubPublisher{
		send: func(channel string, message any) error {
			_, _, err := pn.Publish().
				Channel(channel).
				Message(message).
				Execute()
			return err
		},
	}
}

func SessionChannel(sessionID string) string {
	return fmt.Sprintf("session-%s", sessionID)
}

func UserChannel(userID string) string {
	return fmt.Sprintf("user-%s", userID)
}

func (p *PubNubPublisher) Publish(ctx context.Context, evt models.DomainEvent) error {
	message := map[string]any{
		"type":       string(evt.Type),
		"event_id":   evt.ID,
		"session_id": evt.GameSessionID,
		"occurred":   evt.OccurredAt.Unix(),
	}
	if evt.BookingID != "" {
		message["booking_id"] = evt.BookingID
	}
	if evt.Reason != "" {
		message["reason"] = evt.Reason
	}

	for _, channel := range channelsFor(evt) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.send(channel, message); err != nil {
			return fmt.Errorf("pubnub publish to %s: %w", channel, err)
		}
	}
	return nil
}

func channelsFor(evt models.DomainEvent) []string {
	channels := []string{SessionChannel(evt.GameSessionID)}
	seen := map[string]bool{}
	add := func(userID string) {
		if userID == "" || seen[userID] {
			return
		}
		seen[userID] = true
		channels = append(channels, UserChannel(userID))
	}
	add(evt.UserID)
	for _, id := range evt.AffectedUserIDs {
		add(id)
	}
	return channels
}
