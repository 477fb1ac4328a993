package database

import (
	"sync"
	"time"
)

// connectionPool caches the open gateway across warm serverless invocations.
type connectionPool struct {
	instance DatabaseInterface
	config   DatabaseConfig
	mu       sync.RWMutex
	lastUsed time.Time
}

var (
	globalPool *connectionPool
	poolMutex  sync.Mutex
)

// GetDatabase returns the process-wide gateway, reconnecting when the
// configuration changed, the connection aged out, or the health check fails.
func GetDatabase(config DatabaseConfig) (DatabaseInterface, error) {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool == nil || shouldRecreateConnection(globalPool, config) {
		if globalPool != nil && globalPool.instance != nil {
			globalPool.instance.Close()
		}

		instance, err := NewDatabase(config)
		if err != nil {
			return nil, err
		}
		globalPool = &connectionPool{
			instance: instance,
			config:   config,
			lastUsed: time.Now(),
		}
	} else {
		globalPool.mu.Lock()
		globalPool.lastUsed = time.Now()
		globalPool.mu.Unlock()
	}

	return globalPool.instance, nil
}

func shouldRecreateConnection(pool *connectionPool, newConfig DatabaseConfig) bool {
	if pool == nil || pool.instance == nil {
		return true
	}

	if pool.config.PostgresDSN != newConfig.PostgresDSN || pool.config.UseMemoryDB != newConfig.UseMemoryDB {
		return true
	}

	// The memory store never ages out; dropping it would lose local data
	if pool.config.UseMemoryDB {
		return false
	}

	// Stale after 30 minutes without use
	pool.mu.RLock()
	expired := time.Since(pool.lastUsed) > 30*time.Minute
	pool.mu.RUnlock()
	if expired {
		return true
	}

	if err := pool.instance.HealthCheck(); err != nil {
		return true
	}

	return false
}

// GetConnectionStats exposes pool state for the debug endpoint.
func GetConnectionStats() map[string]interface{} {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool == nil {
		return map[string]interface{}{
			"status":    "no_connection",
			"last_used": nil,
		}
	}

	globalPool.mu.RLock()
	lastUsed := globalPool.lastUsed
	globalPool.mu.RUnlock()

	return map[string]interface{}{
		"status":    "connected",
		"last_used": lastUsed.Format(time.RFC3339),
		"age":       time.Since(lastUsed).String(),
	}
}
