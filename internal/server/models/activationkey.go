package models

import "time"

// ActivationKey is a single-use code redeemed when registering a new vault.
type ActivationKey struct {
	Key       string     `json:"key"`
	Note      string     `json:"note"`
	Active    bool       `json:"active"`
	ClaimedBy *string    `json:"claimedBy"`
	ClaimedAt *time.Time `json:"claimedAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Redeemable reports whether k can still be claimed.
func (k *ActivationKey) Redeemable() bool {
	return k.Active && k.ClaimedBy == nil
}
