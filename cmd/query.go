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
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dbscope/dbscope/internal/database"
	"github.com/dbscope/dbscope/internal/dbcontext"
	"github.com/dbscope/dbscope/internal/utils"
)

var queryFile string

var queryCmd = &cobra.Command{
	Use:   "query [sql]",
	Short: "Run SQL statements and print their results",
	Long: `Executes SQL against the configured database. Pass one statement as an
argument, or a file of semicolon-separated statements with --file. Results
print as tab-separated text with NULL for null values.`,
	Example: `  dbscope query "SELECT id, name FROM customers LIMIT 5" --dialect postgres --host localhost --username user --password pass --database mydb
  dbscope query --file ./checks.sql --dialect mysql --host db.internal --username user --password pass --database mydb`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && queryFile == "" {
		return fmt.Errorf("pass a SQL statement or --file")
	}
	if len(args) > 0 && queryFile != "" {
		return fmt.Errorf("pass either a SQL statement or --file, not both")
	}

	statements := args
	if queryFile != "" {
		var err error
		statements, err = utils.ReadStatementsFromFile(queryFile)
		if err != nil {
			return err
		}
		if len(statements) == 0 {
			return fmt.Errorf("no statements found in %s", queryFile)
		}
	}

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

	failed := 0
	for i, stmt := range statements {
		if i > 0 {
			fmt.Println()
		}
		res := engine.Execute(ctx, stmt)
		if res.Status == database.StatusError {
			failed++
			fmt.Printf("Error: %s\n", res.Error)
			continue
		}
		if len(res.Columns) == 0 {
			fmt.Println("OK. No result set returned.")
			continue
		}
		fmt.Println(strings.Join(res.Columns, "\t"))
		for _, row := range res.Rows {
			fmt.Println(strings.Join(row, "\t"))
		}
		fmt.Printf("(%d rows)\n", res.RowCount)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d statements failed", failed, len(statements))
	}
	return nil
}

func init() {
	queryCmd.Flags().StringVarP(&queryFile, "file", "f", "", "File with semicolon-separated SQL statements to run")
}
