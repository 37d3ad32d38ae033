package model

type ActivationCode struct {
	ID        string `db:"id" json:"id"`
	AccountID string `db:"account_id" json:"accountId"`
	Code      string `db:"code" json:"code"`
	CreatedAt int64  `db:"created_at" json:"createdAt"`
	ExpiresAt int64  `db:"expires_at" json:"expiresAt"`
	UsedAt    *int64 `db:"used_at" json:"usedAt,omitempty"`
}

// Usable reports whether the code can still be consumed at the given unix time.
func (c *ActivationCode) Usable(now int64) bool {
	return now < c.ExpiresAt && c.UsedAt == nil
}

type CreateActivationCodeParams struct {
	AccountID string
	Code      string
	CreatedAt int64
	ExpiresAt int64
}
