package store

import (
	"context"
	"encoding/json"
	"time"

	"PSocial/logger"
	"PSocial/module/chat/model"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const profileKeyPrefix = "psocial:profile:"

// CachedUsers fronts a UserDirectory with Redis. Redis failures fall through
// to the inner directory.
type CachedUsers struct {
	inner UserDirectory
	rdb   redis.Cmdable
	ttl   time.Duration
}

func NewCachedUsers(inner UserDirectory, rdb redis.Cmdable, ttl time.Duration) *CachedUsers {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedUsers{inner: inner, rdb: rdb, ttl: ttl}
}

func profileKey(id string) string { return profileKeyPrefix + id }

func (c *CachedUsers) FindUsers(ctx context.Context, userIDs []string) (map[string]model.UserProfile, error) {
	out := make(map[string]model.UserProfile, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = profileKey(id)
	}

	missing := userIDs
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		logger.Warn("[profile-cache] mget failed", zap.Error(err))
	} else {
		missing = nil
		for i, v := range vals {
			s, ok := v.(string)
			if !ok {
				missing = append(missing, userIDs[i])
				continue
			}
			var p model.UserProfile
			if err := json.Unmarshal([]byte(s), &p); err != nil {
				missing = append(missing, userIDs[i])
				continue
			}
			out[p.ID] = p
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := c.inner.FindUsers(ctx, missing)
	if err != nil {
		return nil, err
	}

	pipe := c.rdb.Pipeline()
	for id, p := range loaded {
		out[id] = p
		raw, err := json.Marshal(p)
		if err != nil {
			continue
		}
		pipe.Set(ctx, profileKey(id), raw, c.ttl)
	}
	if len(loaded) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			logger.Warn("[profile-cache] fill failed", zap.Error(err))
		}
	}
	return out, nil
}
