/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/dbscope/dbscope/internal/config"
)

// Store is a byte-level store for serialized schema snapshots. Backends do
// not interpret the payload; validation happens at the snapshot layer.
type Store interface {
	// Get retrieves a value. Absent keys return ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value, replacing any previous one.
	Set(ctx context.Context, key string, data []byte) error

	// Delete removes a value. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// ErrCacheMiss is returned when a key is not found in the cache.
type ErrCacheMiss struct {
	Key string
}

func (e ErrCacheMiss) Error() string {
	return "cache miss: " + e.Key
}

// IsCacheMiss checks if an error is a cache miss.
func IsCacheMiss(err error) bool {
	var miss ErrCacheMiss
	return errors.As(err, &miss)
}

// New builds the store selected by the configuration.
func New(cfg config.CacheConfig) (Store, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileStore(cfg.Dir)
	case "redis":
		return NewRedisStore(cfg.Redis)
	case "s3":
		return NewS3Store(cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported cache backend: %q", cfg.Backend)
	}
}
