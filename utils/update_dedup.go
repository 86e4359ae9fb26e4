package utils

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type dedupEntry struct {
	expiresAt time.Time
}

var (
	dedupStore   = map[int64]dedupEntry{}
	dedupStoreMu sync.Mutex
)

// MarkUpdateProcessed records a Telegram update ID and reports whether this is
// the first time it was seen. Telegram redelivers webhook updates until they
// are acknowledged, so redeliveries must not re-run commands.
func MarkUpdateProcessed(updateID int64, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	// Prefer Redis so dedup holds across instances
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		key := "tg:update:" + strconv.FormatInt(updateID, 10)
		if ok, err := rc.SetNX(ctx, key, "1", ttl).Result(); err == nil {
			return ok
		}
		// Redis unreachable, fall through to in-memory (single-instance only)
	}
	dedupStoreMu.Lock()
	defer dedupStoreMu.Unlock()
	now := time.Now()
	for id, entry := range dedupStore {
		if now.After(entry.expiresAt) {
			delete(dedupStore, id)
		}
	}
	if entry, ok := dedupStore[updateID]; ok && now.Before(entry.expiresAt) {
		return false
	}
	dedupStore[updateID] = dedupEntry{expiresAt: now.Add(ttl)}
	return true
}
