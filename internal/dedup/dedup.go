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

// Package dedup suppresses duplicate alert submissions. A client retrying
// an alert request with the same idempotency key within the TTL is told the
// alert is already being handled instead of notifying contacts twice.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL is how long an idempotency key is remembered.
	DefaultTTL = 10 * time.Minute

	// keyPrefix namespaces idempotency keys in Redis.
	keyPrefix = "kyrn:alert:"
)

// Filter tracks which idempotency keys have been claimed.
type Filter struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewFilter creates an idempotency filter backed by Redis.
func NewFilter(rdb *redis.Client, ttl time.Duration) *Filter {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Filter{
		rdb: rdb,
		ttl: ttl,
	}
}

// Claim returns true if key has NOT been seen before, marking it seen
// atomically (SETNX).
func (f *Filter) Claim(ctx context.Context, key string) (bool, error) {
	set, err := f.rdb.SetNX(ctx, keyPrefix+key, 1, f.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency SETNX: %w", err)
	}
	return set, nil
}

// Release forgets key so a rejected request can be resubmitted.
func (f *Filter) Release(ctx context.Context, key string) error {
	if err := f.rdb.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("idempotency DEL: %w", err)
	}
	return nil
}
