package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/dmitrijs2005/vaultrelay/internal/common"
)

// Blob storage modes.
const (
	BlobStorageDB = "db"
	BlobStorageS3 = "s3"
)

// Config holds runtime settings for the relay server.
//
// Fields:
//   - Host / Port: listen address for websocket, health and admin traffic.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty selects the in-memory store.
//   - RequireActivation: new vaults must redeem an activation key.
//   - AdminSecret: bearer secret for /admin. Empty disables the admin API.
//   - RetentionPeriod / SweepInterval: tombstone retention and purge cadence.
//   - RateLimit*: fixed-window limits per client IP and per vault.
//   - MaxMessageBytes: largest accepted websocket frame.
//   - TrustProxy: take the client IP from X-Forwarded-For.
//   - BlobStorage: "db" keeps ciphertext in the files table, "s3" offloads it.
//   - S3*: object storage settings used when BlobStorage is "s3".
type Config struct {
	Host                   string
	Port                   int
	DatabaseDSN            string
	RequireActivation      bool
	AdminSecret            string
	RetentionPeriod        time.Duration
	SweepInterval          time.Duration
	RateLimitWindow        time.Duration
	RateLimitPerIP         int
	RateLimitPerVault      int
	RateLimitSweepInterval time.Duration
	MaxMessageBytes        int64
	TrustProxy             bool
	LogLevel               string
	BlobStorage            string
	S3RootUser             string
	S3RootPassword         string
	S3Bucket               string
	S3Region               string
	S3BaseEndpoint         string
}

// LoadDefaults populates Config with development defaults.
// NOTE: the S3 credentials match a local MinIO and must be overridden in
// production.
func (c *Config) LoadDefaults() {
	c.Host = "0.0.0.0"
	c.Port = 3000
	c.DatabaseDSN = ""
	c.RequireActivation = true
	c.AdminSecret = ""
	c.RetentionPeriod = common.DefaultRetentionPeriod
	c.SweepInterval = time.Hour
	c.RateLimitWindow = time.Minute
	c.RateLimitPerIP = 5000
	c.RateLimitPerVault = 10000
	c.RateLimitSweepInterval = 5 * time.Minute
	c.MaxMessageBytes = 100 * 1024 * 1024
	c.TrustProxy = false
	c.LogLevel = "info"
	c.BlobStorage = BlobStorageDB
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = "vault"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate rejects settings the server cannot run with. Every error wraps
// common.ErrorValidation.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port %d", common.ErrorValidation, c.Port)
	}
	if c.BlobStorage != BlobStorageDB && c.BlobStorage != BlobStorageS3 {
		return fmt.Errorf("%w: invalid blob storage %q, want %q or %q", common.ErrorValidation, c.BlobStorage, BlobStorageDB, BlobStorageS3)
	}
	if c.BlobStorage == BlobStorageS3 && c.S3Bucket == "" {
		return fmt.Errorf("%w: s3 blob storage requires a bucket", common.ErrorValidation)
	}
	if c.RateLimitWindow <= 0 || c.SweepInterval <= 0 || c.RateLimitSweepInterval <= 0 {
		return fmt.Errorf("%w: intervals must be positive", common.ErrorValidation)
	}
	if c.MaxMessageBytes <= 0 {
		return fmt.Errorf("%w: invalid max message size %d", common.ErrorValidation, c.MaxMessageBytes)
	}
	return nil
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment and finally command-line
// flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
