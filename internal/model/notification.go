package model

type NotificationLog struct {
	ID               string               `db:"id" json:"id"`
	AccountID        *string              `db:"account_id" json:"accountId,omitempty"`
	Category         NotificationCategory `db:"category" json:"category"`
	ExternalIdentity string               `db:"external_identity" json:"externalIdentity"`
	Body             string               `db:"body" json:"body"`
	Outcome          NotificationOutcome  `db:"outcome" json:"outcome"`
	SentAt           int64                `db:"sent_at" json:"sentAt"`
	ErrorDetail      *string              `db:"error_detail" json:"errorDetail,omitempty"`
}

type CreateNotificationLogParams struct {
	AccountID        *string
	Category         NotificationCategory
	ExternalIdentity string
	Body             string
	Outcome          NotificationOutcome
	SentAt           int64
	ErrorDetail      *string
}
