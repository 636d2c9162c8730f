package listingwatcher

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"auctionhouse/internal/services/listing"
)

// Run listens to key-expiry events on the listing timer keys and settles the
// matching listing as soon as its end date passes. Run must be started once
// at service boot. Settlement stays correct without it: every read/write
// entry point settles lazily, this only shrinks the stale window.
func Run(ctx context.Context, rdb *redis.Client, svc listing.IListingService) {
	_ = rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err()
	ps := rdb.PSubscribe(ctx, "__keyevent@*__:expired")
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-ps.Channel():
			if !strings.HasPrefix(m.Payload, "listing_t:") {
				continue
			}
			id := strings.TrimPrefix(m.Payload, "listing_t:")
			if _, err := svc.EnsureSettled(ctx, id, time.Now()); err != nil {
				zap.L().Warn("listingwatcher.settle", zap.String("id", id), zap.Error(err))
			}
		}
	}
}
