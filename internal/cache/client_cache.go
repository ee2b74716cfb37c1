package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jinzhu/copier"
	"github.com/remodely/crm-voice-service/internal/services/pipeline"
	"github.com/remodely/crm-voice-service/pkg/logger"
	"github.com/remodely/crm-voice-service/pkg/redis"
	"go.uber.org/zap"
)

// clientProfileTTL bounds staleness of cached contact details. A changed
// phone number is picked up within this window.
const clientProfileTTL = 10 * time.Minute

// CachedClientDirectory is a read-through cache over the CRM client lookup.
// Cache failures degrade to the underlying directory; they are never surfaced
// to callers.
type CachedClientDirectory struct {
	next  pipeline.ClientDirectory
	cache redis.ServiceInterface
}

// NewCachedClientDirectory wraps next with a Redis cache. If cache is nil the
// wrapper is a passthrough.
func NewCachedClientDirectory(next pipeline.ClientDirectory, cache redis.ServiceInterface) *CachedClientDirectory {
	return &CachedClientDirectory{next: next, cache: cache}
}

func (d *CachedClientDirectory) GetClient(ctx context.Context, clientID, workspaceID string) (*pipeline.ClientProfile, error) {
	if d.cache == nil {
		return d.next.GetClient(ctx, clientID, workspaceID)
	}

	key := d.cache.GenerateKey(redis.ClientProfileKey, workspaceID+":"+clientID)

	if raw, err := d.cache.GetValue(ctx, key); err == nil {
		var cached pipeline.ClientProfile
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			profile := &pipeline.ClientProfile{}
			if err := copier.Copy(profile, &cached); err == nil {
				return profile, nil
			}
		}
		logger.Base().Warn("corrupt cached client profile, refetching",
			zap.String("client_id", clientID),
		)
	} else if !errors.Is(err, redis.ErrKeyNotExist) {
		logger.Base().Warn("client profile cache read failed",
			zap.String("client_id", clientID),
			zap.Error(err),
		)
	}

	profile, err := d.next.GetClient(ctx, clientID, workspaceID)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(profile); err == nil {
		if err := d.cache.SetValue(ctx, key, string(raw), clientProfileTTL); err != nil {
			logger.Base().Warn("client profile cache write failed",
				zap.String("client_id", clientID),
				zap.Error(err),
			)
		}
	}
	return profile, nil
}

// Invalidate drops a cached profile, for callers that know it changed.
func (d *CachedClientDirectory) Invalidate(ctx context.Context, clientID, workspaceID string) {
	if d.cache == nil {
		return
	}
	key := d.cache.GenerateKey(redis.ClientProfileKey, workspaceID+":"+clientID)
	if err := d.cache.DelValue(ctx, key); err != nil {
		logger.Base().Warn("client profile cache invalidation failed",
			zap.String("client_id", clientID),
			zap.Error(err),
		)
	}
}
