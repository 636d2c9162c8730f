package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	channelPrefix = "listing:"
	channelSuffix = ":events"
	bidStream     = "bid_events"
	streamMaxLen  = 100_000
)

// Channel returns the pub/sub channel carrying a listing's events.
func Channel(listingID string) string {
	return channelPrefix + listingID + channelSuffix
}

// ListingIDFromChannel extracts the listing ID, or "" if the channel does not
// match the listing event pattern.
func ListingIDFromChannel(channel string) string {
	if len(channel) <= len(channelPrefix)+len(channelSuffix) {
		return ""
	}
	if channel[:len(channelPrefix)] != channelPrefix ||
		channel[len(channel)-len(channelSuffix):] != channelSuffix {
		return ""
	}
	return channel[len(channelPrefix) : len(channel)-len(channelSuffix)]
}

// Publisher fans committed state changes out to Redis: a pub/sub message per
// listing channel for the websocket hub, and an XADD per accepted bid to the
// audit stream. Delivery is best effort; the database commit already happened.
type Publisher struct {
	rdc *redis.Client
}

func NewPublisher(rdc *redis.Client) *Publisher {
	return &Publisher{rdc: rdc}
}

func (p *Publisher) BidAccepted(ctx context.Context, listingID, bidderID string, amount decimal.Decimal, at time.Time) {
	payload, _ := json.Marshal(map[string]any{
		"event":  "bid",
		"bidder": bidderID,
		"amount": amount.StringFixed(2),
		"at":     at.Unix(),
	})
	if err := p.rdc.Publish(ctx, Channel(listingID), payload).Err(); err != nil {
		zap.L().Warn("events.publish_bid", zap.String("listing_id", listingID), zap.Error(err))
	}

	err := p.rdc.XAdd(ctx, &redis.XAddArgs{
		Stream: bidStream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{
			"lid":    listingID,
			"bidder": bidderID,
			"amount": amount.StringFixed(2),
			"at":     at.Unix(),
		},
	}).Err()
	if err != nil {
		zap.L().Warn("events.xadd_bid", zap.String("listing_id", listingID), zap.Error(err))
	}
}

func (p *Publisher) ListingClosed(ctx context.Context, listingID string) {
	payload, _ := json.Marshal(map[string]any{"event": "closed"})
	if err := p.rdc.Publish(ctx, Channel(listingID), payload).Err(); err != nil {
		zap.L().Warn("events.publish_closed", zap.String("listing_id", listingID), zap.Error(err))
	}
}
