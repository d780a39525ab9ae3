// Package guard implements the duplicate-event pre-check over redis.
package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const admitTTL = 24 * time.Hour

// Guard marks seen event keys in redis with SETNX. A nil or unreachable redis
// admits every event: the pre-check is purely an optimization, correctness is
// carried by the ledger's unique constraints and conditional transitions.
type Guard struct {
	rdb *redis.Client
	log *zerolog.Logger
}

// InitGuard initializes a guard. An empty address yields a pass-through guard.
func InitGuard(redisAddress string, log *zerolog.Logger) *Guard {
	if redisAddress == "" {
		log.Info().Msg("event dedup cache disabled, admitting all events")
		return &Guard{log: log}
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddress})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Warn().Err(err).Msg("event dedup cache unreachable, admitting all events")
		return &Guard{log: log}
	}
	log.Info().Msg("event dedup cache connection was established")
	return &Guard{rdb: rdb, log: log}
}

// Admit reports whether the event key is seen for the first time.
func (g *Guard) Admit(ctx context.Context, eventKey string) bool {
	if g.rdb == nil {
		return true
	}
	fresh, err := g.rdb.SetNX(ctx, "event:"+eventKey, 1, admitTTL).Result()
	if err != nil {
		g.log.Warn().Err(err).Msg(fmt.Sprintf("dedup pre-check failed for %s, admitting", eventKey))
		return true
	}
	return fresh
}

// Forget clears an admitted key after a failed commit so that a redelivery of
// the same event is admitted again.
func (g *Guard) Forget(ctx context.Context, eventKey string) {
	if g.rdb == nil {
		return
	}
	if err := g.rdb.Del(ctx, "event:"+eventKey).Err(); err != nil {
		g.log.Warn().Err(err).Msg(fmt.Sprintf("dedup key release failed for %s", eventKey))
	}
}
