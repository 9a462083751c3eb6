// README: Redis-backed route cache in front of any Router.
package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"roadside/internal/maps"
	"roadside/internal/types"
)

const routeKeyFormat = "routing:route:%.5f,%.5f:%.5f,%.5f"

// CachedRouter memoizes successful lookups. Cache failures degrade to a direct call.
type CachedRouter struct {
	next  Router
	redis *redis.Client
	ttl   time.Duration
	log   logrus.FieldLogger
}

func NewCachedRouter(next Router, rdb *redis.Client, ttl time.Duration, log logrus.FieldLogger) *CachedRouter {
	return &CachedRouter{next: next, redis: rdb, ttl: ttl, log: log}
}

func (c *CachedRouter) Route(ctx context.Context, origin, destination types.Point) (maps.Route, error) {
	key := routeKey(origin, destination)

	raw, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var r maps.Route
		if jerr := json.Unmarshal(raw, &r); jerr == nil {
			return r, nil
		}
		c.log.WithField("key", key).Warn("routing: discarding corrupt cache entry")
	case !errors.Is(err, redis.Nil):
		c.log.WithError(err).WithField("key", key).Warn("routing: cache read failed")
	}

	r, err := c.next.Route(ctx, origin, destination)
	if err != nil {
		return maps.Route{}, err
	}
	if b, jerr := json.Marshal(r); jerr == nil {
		if serr := c.redis.Set(ctx, key, b, c.ttl).Err(); serr != nil {
			c.log.WithError(serr).WithField("key", key).Warn("routing: cache write failed")
		}
	}
	return r, nil
}

func routeKey(origin, destination types.Point) string {
	return fmt.Sprintf(routeKeyFormat, origin.Lat, origin.Lng, destination.Lat, destination.Lng)
}
