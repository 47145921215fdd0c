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
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dbscope/dbscope/internal/database"
	"github.com/dbscope/dbscope/internal/dbcontext"
	"github.com/dbscope/dbscope/internal/utils"
)

var showOutFile string

var showCmd = &cobra.Command{
	Use:   "show [table...]",
	Short: "Print schema information from the snapshot as JSON",
	Long: `Loads or builds the schema snapshot and prints it as JSON. Without
arguments a summary with the table names is printed; with table names their
full schemas are printed, including name suggestions for lookups that miss.`,
	Example: `  dbscope show --dialect postgres --host localhost --username user --password pass --database mydb
  dbscope show orders order_lines --dialect postgres --host localhost --username user --password pass --database mydb --out ./orders_schema.json`,
	RunE: runShow,
}

type showSummary struct {
	Schema      string    `json:"schema"`
	BuiltAt     time.Time `json:"builtAt"`
	TableNames  []string  `json:"tableNames"`
	ObjectNames []string  `json:"objectNames"`
	TypeNames   []string  `json:"typeNames"`
}

type showEntry struct {
	Name        string              `json:"name"`
	Found       bool                `json:"found"`
	Suggestions []string            `json:"suggestions,omitempty"`
	Table       *database.TableInfo `json:"table,omitempty"`
}

func runShow(cmd *cobra.Command, args []string) error {
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

	var out any
	if len(args) == 0 {
		snap, err := engine.Snapshot(ctx)
		if err != nil {
			return fmt.Errorf("schema load failed: %w", err)
		}
		out = showSummary{
			Schema:      snap.TargetSchema,
			BuiltAt:     snap.BuiltAt,
			TableNames:  snap.TableNames,
			ObjectNames: snap.ObjectNames,
			TypeNames:   snap.TypeNames,
		}
	} else {
		results, err := engine.Tables(ctx, args)
		if err != nil {
			return fmt.Errorf("schema load failed: %w", err)
		}
		entries := make([]showEntry, 0, len(results))
		for _, r := range results {
			entries = append(entries, showEntry{
				Name:        r.Name,
				Found:       r.Table != nil,
				Suggestions: r.Suggestions,
				Table:       r.Table,
			})
		}
		out = entries
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return utils.WriteOutput(string(data)+"\n", showOutFile)
}

func init() {
	showCmd.Flags().StringVarP(&showOutFile, "out", "o", "", "File path to write the output to (defaults to stdout)")
}
