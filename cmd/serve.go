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
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dbscope/dbscope/internal/dbcontext"
	"github.com/dbscope/dbscope/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve database schema context over MCP",
	Long: `Connects to the database, loads or builds the schema snapshot and serves
it to tool-calling clients. The stdio transport speaks MCP on stdin/stdout;
the http transport exposes a streamable MCP endpoint at /mcp.`,
	Example: `  dbscope serve --dialect postgres --host localhost --username user --password pass --database mydb
  dbscope serve --transport http --http-addr :8080 --dialect mysql --host db.internal --username user --password pass --database mydb`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := dbcontext.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Warn("shutdown cleanup failed", zap.Error(err))
		}
	}()

	// Load or build the snapshot before accepting tool calls, so the first
	// tool call is never stuck behind a full extraction.
	if err := engine.Initialize(ctx); err != nil {
		return fmt.Errorf("initial schema load failed: %w", err)
	}

	srv := mcp.NewServer(engine, version, logger)
	switch cfg.Server.Transport {
	case "http":
		return srv.Serve(ctx, cfg.Server.HTTPAddr)
	default:
		logger.Info("serving on stdio")
		if err := srv.ServeStdio(); err != nil && ctx.Err() == nil {
			return fmt.Errorf("stdio server: %w", err)
		}
		return nil
	}
}
