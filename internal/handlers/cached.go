package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/portaprosoftware/fleet-compliance/internal/cache"
	"github.com/portaprosoftware/fleet-compliance/internal/metrics"
	log "github.com/sirupsen/logrus"
)

// readCache serves GET results from the response cache. Loads are only
// cached when they succeed and no mutation invalidated the scope while
// they ran.
type readCache struct {
	store   *cache.Store
	metrics *metrics.Metrics
}

// serve writes the cached body for key, or calls load, caches and writes
// its result. load writes its own error response and returns ok=false.
func (c readCache) serve(w http.ResponseWriter, key cache.Key, load func() (interface{}, bool)) {
	var gen uint64
	if c.store != nil {
		if body, hit := c.store.Get(key); hit {
			c.metrics.CacheLookup(string(key.Scope), true)
			writeRawJSON(w, http.StatusOK, body)
			return
		}
		c.metrics.CacheLookup(string(key.Scope), false)
		gen = c.store.Generation(key.Scope)
	}

	v, ok := load()
	if !ok {
		return
	}
	body, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).Error("Failed to encode response")
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to encode response")
		return
	}
	body = append(body, '\n')
	if c.store != nil {
		c.store.SetIfGeneration(key, gen, body)
	}
	writeRawJSON(w, http.StatusOK, body)
}

func (c readCache) invalidate(scopes ...cache.Scope) {
	if c.store != nil {
		c.store.Invalidate(scopes...)
	}
	for _, scope := range scopes {
		c.metrics.CacheInvalidated(string(scope))
	}
}
