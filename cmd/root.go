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
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dbscope/dbscope/internal/config"
	_ "github.com/dbscope/dbscope/internal/database/mysql"
	_ "github.com/dbscope/dbscope/internal/database/postgres"
	_ "github.com/dbscope/dbscope/internal/database/sqlserver"
	"github.com/dbscope/dbscope/internal/logging"
)

const version = "0.1.0"

var (
	cfg    *config.Config
	logger *zap.Logger

	// Database connection flags
	dialect                        string
	host                           string
	port                           int
	username                       string
	password                       string
	dbName                         string
	sslMode                        string
	targetSchema                   string
	nativeDriver                   bool
	cloudSQLInstanceConnectionName string
	cloudSQLUsePrivateIP           bool

	// Cache flags
	cacheBackend string
	cacheDir     string
	redisAddr    string

	// Server flags
	transport string
	httpAddr  string

	// Logging flags
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "dbscope",
	Short: "Database schema context server for tool-calling clients",
	Long: `dbscope connects to a relational database, builds a cached snapshot of its
schema (tables, columns, constraints, indexes, code objects and user-defined
types) and serves it to tool-calling clients over MCP.`,
	Version:           version,
	PersistentPreRunE: initConfig,
}

// initConfig layers flag values over the config file and environment.
// Only flags the user actually set override the file.
func initConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("dialect") {
		loaded.Database.Dialect = dialect
	}
	if flags.Changed("host") {
		loaded.Database.Host = host
	}
	if flags.Changed("port") {
		loaded.Database.Port = port
	}
	if flags.Changed("username") {
		loaded.Database.User = username
	}
	if flags.Changed("password") {
		loaded.Database.Password = password
	}
	if flags.Changed("database") {
		loaded.Database.DBName = dbName
	}
	if flags.Changed("sslmode") {
		loaded.Database.SSLMode = sslMode
	}
	if flags.Changed("schema") {
		loaded.Database.TargetSchema = targetSchema
	}
	if flags.Changed("native-driver") {
		loaded.Database.NativeDriver = nativeDriver
	}
	if flags.Changed("cloudsql-instance-connection-name") {
		loaded.Database.CloudSQLInstanceConnectionName = cloudSQLInstanceConnectionName
	}
	if flags.Changed("cloudsql-use-private-ip") {
		loaded.Database.UsePrivateIP = cloudSQLUsePrivateIP
	}
	if flags.Changed("cache-backend") {
		loaded.Cache.Backend = cacheBackend
	}
	if flags.Changed("cache-dir") {
		loaded.Cache.Dir = cacheDir
	}
	if flags.Changed("redis-addr") {
		loaded.Cache.Redis.Addr = redisAddr
	}
	if flags.Changed("transport") {
		loaded.Server.Transport = transport
	}
	if flags.Changed("http-addr") {
		loaded.Server.HTTPAddr = httpAddr
	}
	if flags.Changed("log-level") {
		loaded.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		loaded.Log.Format = logFormat
	}

	if err := loaded.Validate(); err != nil {
		return err
	}

	l, err := logging.New(loaded.Log)
	if err != nil {
		return err
	}

	cfg = loaded
	logger = l
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()

	// Database connection flags
	pf.StringVar(&dialect, "dialect", "", fmt.Sprintf("Database dialect (%s)", strings.Join(config.SupportedDialects, ", ")))
	pf.StringVar(&host, "host", "", "Database host")
	pf.IntVar(&port, "port", 0, "Database port (defaults to the dialect's conventional port)")
	pf.StringVar(&username, "username", "", "Database username")
	pf.StringVar(&password, "password", "", "Database password")
	pf.StringVar(&dbName, "database", "", "Database name")
	pf.StringVar(&sslMode, "sslmode", "", "SSL mode for postgres connections")
	pf.StringVar(&targetSchema, "schema", "", "Schema to snapshot (defaults to the connection's default schema)")
	pf.BoolVar(&nativeDriver, "native-driver", false, "Use the native driver (pgx, mssql connector) instead of the generic one")
	pf.StringVar(&cloudSQLInstanceConnectionName, "cloudsql-instance-connection-name", "", "Cloud SQL instance connection name (for Cloud SQL dialects)")
	pf.BoolVar(&cloudSQLUsePrivateIP, "cloudsql-use-private-ip", false, "Use private IP for Cloud SQL connection (Cloud SQL)")

	// Cache flags
	pf.StringVar(&cacheBackend, "cache-backend", "", "Snapshot cache backend (file, redis or s3)")
	pf.StringVar(&cacheDir, "cache-dir", "", "Directory for the file cache backend")
	pf.StringVar(&redisAddr, "redis-addr", "", "Address for the redis cache backend")

	// Server flags
	pf.StringVar(&transport, "transport", "", "Tool transport (stdio or http)")
	pf.StringVar(&httpAddr, "http-addr", "", "Listen address for the http transport")

	// Logging flags
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "", "Log format (json or console)")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(warmCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(clearCacheCmd)
}
