package booking

import (
    "context"
    "log"
    "time"

    "github.com/iliyamo/train-seat-reservation/internal/repository"
)

// RunSweeper periodically reclaims lapsed pending tickets across all
// journeys. The per-request sweep in Reserve only covers journeys
// someone is actively booking; without this loop, reservations on quiet
// journeys would hold their seats past the payment window until the
// next booking attempt happened to land there.
//
// The loop runs until ctx is cancelled. Individual journey failures are
// logged and retried on the next tick.
func RunSweeper(ctx context.Context, store repository.Store, interval time.Duration) {
    if interval <= 0 {
        interval = 5 * time.Minute
    }
    ticker := time.NewTicker(interval)
    defer ticker.Stop()

    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            sweepOnce(ctx, store)
        }
    }
}

func sweepOnce(ctx context.Context, store repository.Store) {
    ids, err := store.JourneysWithExpired(ctx)
    if err != nil {
        log.Printf("sweeper: listing journeys failed: %v", err)
        return
    }
    for _, id := range ids {
        n, err := store.ReclaimExpired(ctx, id)
        if err != nil {
            log.Printf("sweeper: reclaim failed for journey %d: %v", id, err)
            continue
        }
        if n > 0 {
            log.Printf("sweeper: reclaimed %d tickets on journey %d", n, id)
        }
    }
}
