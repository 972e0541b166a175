package client

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/vitiscan/vitiscan-web/internal/agronomy/domain"
	"github.com/vitiscan/vitiscan-web/pkg/logger"
)

const catalogKey = "diseases"

// UnknownCatalog is served when the Diagnostic API cannot list its labels
var UnknownCatalog = domain.DiseaseCatalog{DatasetName: "unknown", Diseases: map[string]string{}}

// CatalogCache caches the disease catalog of the wrapped client. Failed
// lookups are not cached and fall back to UnknownCatalog.
type CatalogCache struct {
	Client
	cache *cache.Cache
	log   *logger.Logger
}

// NewCatalogCache wraps c with an in-memory catalog cache
func NewCatalogCache(c Client, ttl time.Duration, log *logger.Logger) *CatalogCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CatalogCache{
		Client: c,
		cache:  cache.New(ttl, 2*ttl),
		log:    log,
	}
}

// Diseases returns the cached catalog, fetching it on a miss
func (c *CatalogCache) Diseases(ctx context.Context) (*domain.DiseaseCatalog, error) {
	if v, found := c.cache.Get(catalogKey); found {
		return v.(*domain.DiseaseCatalog), nil
	}

	catalog, err := c.Client.Diseases(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to retrieve diseases from diagnostic api")
		unknown := UnknownCatalog
		unknown.Diseases = map[string]string{}
		return &unknown, nil
	}

	c.cache.SetDefault(catalogKey, catalog)
	c.log.Info().
		Str("dataset", catalog.DatasetName).
		Int("diseases", len(catalog.Diseases)).
		Msg("disease catalog loaded")
	return catalog, nil
}
