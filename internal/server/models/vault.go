package models

import "time"

// VaultSummary is the admin listing row for a vault.
type VaultSummary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	FileCount int64     `json:"fileCount"`
	TotalSize int64     `json:"totalSize"`
}
