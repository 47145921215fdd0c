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
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbscope/dbscope/internal/cache"
	"github.com/dbscope/dbscope/internal/database"
	"github.com/dbscope/dbscope/internal/schema"
)

var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Remove the cached schema snapshot",
	Long: `Deletes the snapshot this configuration would load from the cache backend.
No database connection is made. The next serve or warm run extracts a fresh
snapshot from the catalog.`,
	Example: `  dbscope clear-cache --dialect postgres --host localhost --username user --database mydb
  dbscope clear-cache --cache-backend redis --redis-addr localhost:6379 --dialect mysql --host db.internal --username user --database mydb`,
	RunE: runClearCache,
}

func runClearCache(cmd *cobra.Command, args []string) error {
	store, err := cache.New(cfg.Cache)
	if err != nil {
		return err
	}
	defer store.Close()

	key := schema.CacheKey(database.Fingerprint(cfg.Database, cfg.Database.TargetSchema))
	if err := store.Delete(cmd.Context(), key); err != nil {
		return fmt.Errorf("failed to clear cached snapshot: %w", err)
	}

	fmt.Printf("Cleared cached snapshot: %s\n", key)
	return nil
}
