package common

import "time"

// AdminSecretEnv names the environment variable relayctl reads the admin
// bearer secret from.
const AdminSecretEnv = "RELAY_ADMIN_SECRET"

// DefaultRetentionPeriod is how long tombstones are kept before purge.
const DefaultRetentionPeriod = 7 * 24 * time.Hour
