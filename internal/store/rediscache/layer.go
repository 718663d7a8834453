// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package rediscache fronts a durable content store with a Redis
// read-through cache of the latest record per (kind, key, language).
// Redis is an accelerator only: any Redis failure falls through to the
// durable store.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kyrn/engine/internal/models"
)

const (
	// DefaultTTL bounds how long a cached latest record may be served.
	DefaultTTL = 6 * time.Hour

	// keyPrefix namespaces content keys in Redis.
	keyPrefix = "kyrn:content:"
)

// storeIfNewer writes ARGV[1] unless the cached record already carries a
// version at least ARGV[2]. A reader that fetched an older version cannot
// overwrite a newer one written by Put.
var storeIfNewer = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  local ok, doc = pcall(cjson.decode, cur)
  if ok and type(doc) == 'table' then
    local v = tonumber(doc['version'])
    if v and v >= tonumber(ARGV[2]) then
      return 0
    end
  end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// Backing is the durable store behind the cache.
type Backing interface {
	GetLatest(ctx context.Context, kind models.ContentKind, key string, lang models.Language) (*models.ContentRecord, error)
	Put(ctx context.Context, rec models.ContentRecord) (models.ContentRecord, error)
}

// Layer is a read-through cache over a Backing store.
type Layer struct {
	rdb  *redis.Client
	next Backing
	ttl  time.Duration
}

// NewLayer wraps next with a Redis cache. A non-positive ttl uses DefaultTTL.
func NewLayer(rdb *redis.Client, next Backing, ttl time.Duration) *Layer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Layer{rdb: rdb, next: next, ttl: ttl}
}

func cacheKey(kind models.ContentKind, key string, lang models.Language) string {
	return fmt.Sprintf("%s%s:%s:%s", keyPrefix, kind, lang, key)
}

// GetLatest serves from Redis when possible and populates it on a miss.
func (l *Layer) GetLatest(ctx context.Context, kind models.ContentKind, key string, lang models.Language) (*models.ContentRecord, error) {
	ck := cacheKey(kind, key, lang)

	data, err := l.rdb.Get(ctx, ck).Bytes()
	switch {
	case err == nil:
		var rec models.ContentRecord
		if err := json.Unmarshal(data, &rec); err == nil {
			return &rec, nil
		}
		slog.Warn("discarding undecodable cached content", "key", ck)
	case !errors.Is(err, redis.Nil):
		slog.Warn("redis content lookup failed", "key", ck, "error", err)
	}

	rec, err := l.next.GetLatest(ctx, kind, key, lang)
	if err != nil || rec == nil {
		return rec, err
	}

	if err := l.store(ctx, ck, *rec); err != nil {
		slog.Warn("redis content populate failed", "key", ck, "error", err)
	}
	return rec, nil
}

// store caches rec under ck unless a newer version is already cached.
func (l *Layer) store(ctx context.Context, ck string, rec models.ContentRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode cached content: %w", err)
	}
	return storeIfNewer.Run(ctx, l.rdb, []string{ck}, data, rec.Version, l.ttl.Milliseconds()).Err()
}

// Put writes through to the backing store and caches the saved record. If
// the cache write fails the entry is dropped so the next read goes to the
// backing store.
func (l *Layer) Put(ctx context.Context, rec models.ContentRecord) (models.ContentRecord, error) {
	saved, err := l.next.Put(ctx, rec)
	if err != nil {
		return saved, err
	}

	ck := cacheKey(saved.Kind, saved.Key, saved.Language)
	if err := l.store(ctx, ck, saved); err != nil {
		slog.Warn("redis content update failed, invalidating", "key", ck, "error", err)
		if err := l.rdb.Del(ctx, ck).Err(); err != nil {
			slog.Warn("redis content invalidate failed", "key", ck, "error", err)
		}
	}
	return saved, nil
}
