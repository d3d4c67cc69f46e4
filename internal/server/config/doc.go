// Package config loads runtime configuration for the relay server.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Environment variables (see parseEnv).
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-h string       listen host
//	-p int          listen port
//	-d string       PostgreSQL DSN
//	-s string       admin bearer secret
//	-b string       blob storage, "db" or "s3"
//	-activation     require activation keys for new vaults
//
// # JSON schema
//
// Keys are the snake_case field names. Durations go through timex.Duration,
// so values can be either strings like "1h" or integer nanoseconds:
//
//	{
//	  "port": 3000,
//	  "database_dsn": "postgres://relay@localhost/relay",
//	  "retention_period": "720h",
//	  "rate_limit_window": "1m",
//	  "blob_storage": "s3",
//	  "s3_bucket": "vault"
//	}
//
// Primary API
//
//   - type Config                     holds every server setting
//   - func LoadConfig() *Config       applies defaults, JSON, env, then flags
//   - func (*Config) LoadDefaults()   sets development defaults
//   - func (*Config) Validate() error rejects unusable settings
//
// Malformed input (unreadable file, bad JSON, unparsable env value or flag)
// panics at startup; Validate reports combinations that parse but cannot run.
package config
