package settler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"auctionhouse/internal/services/listing"
)

const sweepInterval = 30 * time.Second

// Run sweeps expired listings on a fixed interval. The sweep races harmlessly
// with lazy settlement and the key-expiry watcher: the close is a conditional
// update and flipping an already-closed listing matches zero rows.
func Run(ctx context.Context, svc listing.IListingService) {
	tk := time.NewTicker(sweepInterval)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				n, err := svc.SettleExpired(ctx, time.Now())
				if err != nil {
					zap.L().Warn("settler.sweep", zap.Error(err))
					continue
				}
				if n > 0 {
					zap.L().Info("settler.swept", zap.Int("closed", n))
				}
			}
		}
	}()
}
