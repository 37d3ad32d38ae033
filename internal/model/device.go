package model

// Device maps a gateway identity key to the automation client's device address.
type Device struct {
	IdentityKey string `db:"identity_key" json:"identityKey"`
	JID         string `db:"jid" json:"jid"`
	CreatedAt   int64  `db:"created_at" json:"createdAt"`
	UpdatedAt   int64  `db:"updated_at" json:"updatedAt"`
}
