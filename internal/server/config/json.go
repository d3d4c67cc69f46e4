package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/vaultrelay/internal/flagx"
	"github.com/dmitrijs2005/vaultrelay/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Pointer fields distinguish
// "absent" from a zero value so that only keys present in the file override
// earlier layers. Durations accept "1m" style strings or nanoseconds.
type JsonConfig struct {
	Host                   *string         `json:"host"`
	Port                   *int            `json:"port"`
	DatabaseDSN            *string         `json:"database_dsn"`
	RequireActivation      *bool           `json:"require_activation"`
	AdminSecret            *string         `json:"admin_secret"`
	RetentionPeriod        *timex.Duration `json:"retention_period"`
	SweepInterval          *timex.Duration `json:"sweep_interval"`
	RateLimitWindow        *timex.Duration `json:"rate_limit_window"`
	RateLimitPerIP         *int            `json:"rate_limit_per_ip"`
	RateLimitPerVault      *int            `json:"rate_limit_per_vault"`
	RateLimitSweepInterval *timex.Duration `json:"rate_limit_sweep_interval"`
	MaxMessageBytes        *int64          `json:"max_message_bytes"`
	TrustProxy             *bool           `json:"trust_proxy"`
	LogLevel               *string         `json:"log_level"`
	BlobStorage            *string         `json:"blob_storage"`
	S3RootUser             *string         `json:"s3_root_user"`
	S3RootPassword         *string         `json:"s3_root_password"`
	S3Bucket               *string         `json:"s3_bucket"`
	S3Region               *string         `json:"s3_region"`
	S3BaseEndpoint         *string         `json:"s3_base_endpoint"`
}

// parseJson loads the file named by -c/-config, if any, into config.
// Unreadable files and invalid JSON panic: the server cannot start with a
// configuration it was explicitly pointed at but could not read.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFileFlag()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setValue(&config.Host, c.Host)
	setValue(&config.Port, c.Port)
	setValue(&config.DatabaseDSN, c.DatabaseDSN)
	setValue(&config.RequireActivation, c.RequireActivation)
	setValue(&config.AdminSecret, c.AdminSecret)
	setDuration(&config.RetentionPeriod, c.RetentionPeriod)
	setDuration(&config.SweepInterval, c.SweepInterval)
	setDuration(&config.RateLimitWindow, c.RateLimitWindow)
	setValue(&config.RateLimitPerIP, c.RateLimitPerIP)
	setValue(&config.RateLimitPerVault, c.RateLimitPerVault)
	setDuration(&config.RateLimitSweepInterval, c.RateLimitSweepInterval)
	setValue(&config.MaxMessageBytes, c.MaxMessageBytes)
	setValue(&config.TrustProxy, c.TrustProxy)
	setValue(&config.LogLevel, c.LogLevel)
	setValue(&config.BlobStorage, c.BlobStorage)
	setValue(&config.S3RootUser, c.S3RootUser)
	setValue(&config.S3RootPassword, c.S3RootPassword)
	setValue(&config.S3Bucket, c.S3Bucket)
	setValue(&config.S3Region, c.S3Region)
	setValue(&config.S3BaseEndpoint, c.S3BaseEndpoint)
}

func setValue[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
