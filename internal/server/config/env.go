package config

import "github.com/dmitrijs2005/vaultrelay/internal/flagx"

// parseEnv overlays values from the environment. Malformed values panic.
//
// Recognised variables: HOST, PORT, DATABASE_DSN, REQUIRE_ACTIVATION,
// ADMIN_SECRET, RETENTION_PERIOD, SWEEP_INTERVAL, RATE_LIMIT_WINDOW,
// RATE_LIMIT_PER_IP, RATE_LIMIT_PER_VAULT, MAX_MESSAGE_BYTES, TRUST_PROXY,
// LOG_LEVEL, BLOB_STORAGE and S3_ROOT_USER, S3_ROOT_PASSWORD, S3_BUCKET,
// S3_REGION, S3_BASE_ENDPOINT.
func parseEnv(config *Config) {
	flagx.EnvString("HOST", &config.Host)
	flagx.EnvString("DATABASE_DSN", &config.DatabaseDSN)
	flagx.EnvString("ADMIN_SECRET", &config.AdminSecret)
	flagx.EnvString("LOG_LEVEL", &config.LogLevel)
	flagx.EnvString("BLOB_STORAGE", &config.BlobStorage)
	flagx.EnvString("S3_ROOT_USER", &config.S3RootUser)
	flagx.EnvString("S3_ROOT_PASSWORD", &config.S3RootPassword)
	flagx.EnvString("S3_BUCKET", &config.S3Bucket)
	flagx.EnvString("S3_REGION", &config.S3Region)
	flagx.EnvString("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)

	errs := []error{
		flagx.EnvInt("PORT", &config.Port),
		flagx.EnvBool("REQUIRE_ACTIVATION", &config.RequireActivation),
		flagx.EnvDuration("RETENTION_PERIOD", &config.RetentionPeriod),
		flagx.EnvDuration("SWEEP_INTERVAL", &config.SweepInterval),
		flagx.EnvDuration("RATE_LIMIT_WINDOW", &config.RateLimitWindow),
		flagx.EnvInt("RATE_LIMIT_PER_IP", &config.RateLimitPerIP),
		flagx.EnvInt("RATE_LIMIT_PER_VAULT", &config.RateLimitPerVault),
		flagx.EnvInt64("MAX_MESSAGE_BYTES", &config.MaxMessageBytes),
		flagx.EnvBool("TRUST_PROXY", &config.TrustProxy),
	}
	for _, err := range errs {
		if err != nil {
			panic(err)
		}
	}
}
