// Package config loads runtime configuration for the cofind client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. COFIND_* environment variables (see parseEnv).
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   identity service base URL
//	-k string   anonymous API key
//	-d string   Postgres DSN
//	-l string   local SQLite database path
//	-g string   gRPC health endpoint address
//	-i int      online status check interval (seconds)
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "3s" or integer nanoseconds:
//
//	{
//	  "auth_url": "https://abc.supabase.co",
//	  "anon_key": "...",
//	  "database_dsn": "postgres://localhost/cofind",
//	  "retry_max_retries": 3,
//	  "retry_base_delay": "1s",
//	  "online_check_interval": "3s"
//	}
package config
