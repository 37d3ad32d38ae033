package model

type Integration struct {
	ID               string            `db:"id" json:"id"`
	AccountID        string            `db:"account_id" json:"accountId"`
	ExternalIdentity string            `db:"external_identity" json:"externalIdentity"`
	DisplayName      *string           `db:"display_name" json:"displayName,omitempty"`
	Status           IntegrationStatus `db:"status" json:"status"`
	ActivatedAt      int64             `db:"activated_at" json:"activatedAt"`
	RevokedAt        *int64            `db:"revoked_at" json:"revokedAt,omitempty"`
}

type CreateIntegrationParams struct {
	AccountID        string
	ExternalIdentity string
	DisplayName      *string
	ActivatedAt      int64
}
