package inspection

import (
	"context"
	"encoding/json"
	"time"

	"aero-portal/maintenance-portal/inspection-backend/pkg/cache"
	"go.uber.org/zap"
)

// DefinitionSource provides a tenant's check-definition catalog
type DefinitionSource interface {
	GetCheckDefinitions(ctx context.Context, tenantID string) ([]CheckDefinition, error)
}

// CachedDefinitionSource keeps catalogs in a cache for a short TTL. Cache
// failures are logged and fall through to the underlying source.
type CachedDefinitionSource struct {
	source DefinitionSource
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedDefinitionSource(source DefinitionSource, c cache.Cache, ttl time.Duration, logger *zap.Logger) *CachedDefinitionSource {
	return &CachedDefinitionSource{source: source, cache: c, ttl: ttl, logger: logger}
}

func definitionsCacheKey(tenantID string) string {
	return "check_definitions:" + tenantID
}

func (s *CachedDefinitionSource) GetCheckDefinitions(ctx context.Context, tenantID string) ([]CheckDefinition, error) {
	key := definitionsCacheKey(tenantID)

	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("Definition cache read failed", zap.String("tenant_id", tenantID), zap.Error(err))
	} else if ok {
		var defs []CheckDefinition
		if err := json.Unmarshal(raw, &defs); err == nil {
			return defs, nil
		}
		s.logger.Warn("Discarding undecodable cached definitions", zap.String("tenant_id", tenantID))
	}

	defs, err := s.source.GetCheckDefinitions(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(defs); err == nil {
		if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
			s.logger.Warn("Definition cache write failed", zap.String("tenant_id", tenantID), zap.Error(err))
		}
	}
	return defs, nil
}

// Invalidate drops the cached catalog of a tenant
func (s *CachedDefinitionSource) Invalidate(ctx context.Context, tenantID string) error {
	return s.cache.Delete(ctx, definitionsCacheKey(tenantID))
}
