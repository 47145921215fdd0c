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
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Dialect                        string        `mapstructure:"dialect"`
	Host                           string        `mapstructure:"host"`
	Port                           int           `mapstructure:"port"`
	User                           string        `mapstructure:"user"`
	Password                       string        `mapstructure:"password"`
	DBName                         string        `mapstructure:"name"`
	SSLMode                        string        `mapstructure:"sslmode"`
	TargetSchema                   string        `mapstructure:"target_schema"`
	NativeDriver                   bool          `mapstructure:"native_driver"`
	CloudSQLInstanceConnectionName string        `mapstructure:"cloudsql_instance_connection_name"`
	UsePrivateIP                   bool          `mapstructure:"cloudsql_use_private_ip"`
	MaxOpenConns                   int           `mapstructure:"max_open_conns"`
	CatalogTimeout                 time.Duration `mapstructure:"catalog_timeout"`
	QueryTimeout                   time.Duration `mapstructure:"query_timeout"`
}

// CacheConfig selects and configures the snapshot cache backend.
type CacheConfig struct {
	Backend string      `mapstructure:"backend"` // file, redis or s3
	Dir     string      `mapstructure:"dir"`
	Redis   RedisConfig `mapstructure:"redis"`
	S3      S3Config    `mapstructure:"s3"`
}

// RedisConfig holds settings for the redis cache backend.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"` // zero disables expiry
}

// S3Config holds settings for the s3 cache backend (any S3-compatible store).
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// ServerConfig holds settings for the tool-serving layer.
type ServerConfig struct {
	Transport string `mapstructure:"transport"` // stdio or http
	HTTPAddr  string `mapstructure:"http_addr"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// SupportedDialects lists every dialect a handler is registered for.
var SupportedDialects = []string{
	"postgres", "cloudsqlpostgres",
	"mysql", "cloudsqlmysql",
	"sqlserver", "cloudsqlsqlserver",
}

// Default returns the built-in configuration. Values here are overridden by
// the config file, environment and flags, in that order.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Dialect:        "postgres",
			Host:           "localhost",
			Port:           0, // resolved per dialect when unset
			SSLMode:        "disable",
			MaxOpenConns:   5,
			CatalogTimeout: 30 * time.Second,
			QueryTimeout:   60 * time.Second,
		},
		Cache: CacheConfig{
			Backend: "file",
			Dir:     ".cache",
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "dbscope",
			},
			S3: S3Config{
				Bucket: "dbscope-cache",
				UseSSL: true,
			},
		},
		Server: ServerConfig{
			Transport: "stdio",
			HTTPAddr:  ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads dbscope.yaml (when present) and DBSCOPE_* environment variables
// on top of the defaults. A missing config file is not an error.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("dbscope")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DBSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key with viper. AutomaticEnv only surfaces
// variables for keys viper already knows, so unset keys get an empty default.
func setDefaults(v *viper.Viper) {
	def := Default()

	v.SetDefault("database.dialect", def.Database.Dialect)
	v.SetDefault("database.host", def.Database.Host)
	v.SetDefault("database.port", def.Database.Port)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "")
	v.SetDefault("database.sslmode", def.Database.SSLMode)
	v.SetDefault("database.target_schema", "")
	v.SetDefault("database.native_driver", false)
	v.SetDefault("database.cloudsql_instance_connection_name", "")
	v.SetDefault("database.cloudsql_use_private_ip", false)
	v.SetDefault("database.max_open_conns", def.Database.MaxOpenConns)
	v.SetDefault("database.catalog_timeout", def.Database.CatalogTimeout)
	v.SetDefault("database.query_timeout", def.Database.QueryTimeout)

	v.SetDefault("cache.backend", def.Cache.Backend)
	v.SetDefault("cache.dir", def.Cache.Dir)
	v.SetDefault("cache.redis.addr", def.Cache.Redis.Addr)
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.prefix", def.Cache.Redis.Prefix)
	v.SetDefault("cache.redis.ttl", time.Duration(0))
	v.SetDefault("cache.s3.endpoint", "")
	v.SetDefault("cache.s3.access_key", "")
	v.SetDefault("cache.s3.secret_key", "")
	v.SetDefault("cache.s3.bucket", def.Cache.S3.Bucket)
	v.SetDefault("cache.s3.region", "")
	v.SetDefault("cache.s3.use_ssl", def.Cache.S3.UseSSL)

	v.SetDefault("server.transport", def.Server.Transport)
	v.SetDefault("server.http_addr", def.Server.HTTPAddr)

	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
}

// DefaultPort returns the conventional port for a dialect.
func DefaultPort(dialect string) int {
	switch {
	case strings.Contains(dialect, "postgres"):
		return 5432
	case strings.Contains(dialect, "mysql"):
		return 3306
	case strings.Contains(dialect, "sqlserver"):
		return 1433
	default:
		return 0
	}
}

// Validate checks that the configuration is complete enough to connect.
// Called after flag overlay, before any connection attempt.
func (c *Config) Validate() error {
	db := &c.Database

	valid := false
	for _, d := range SupportedDialects {
		if db.Dialect == d {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("unsupported dialect: %q (supported: %s)", db.Dialect, strings.Join(SupportedDialects, ", "))
	}

	if db.DBName == "" {
		return fmt.Errorf("database name is required")
	}
	if db.User == "" {
		return fmt.Errorf("database user is required")
	}
	if strings.HasPrefix(db.Dialect, "cloudsql") {
		if db.CloudSQLInstanceConnectionName == "" {
			return fmt.Errorf("cloudsql-instance-connection-name is required for dialect %q", db.Dialect)
		}
	} else if db.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if db.Port == 0 {
		db.Port = DefaultPort(db.Dialect)
	}

	switch c.Cache.Backend {
	case "file", "redis", "s3":
	default:
		return fmt.Errorf("unsupported cache backend: %q (supported: file, redis, s3)", c.Cache.Backend)
	}

	switch c.Server.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("unsupported transport: %q (supported: stdio, http)", c.Server.Transport)
	}

	return nil
}
