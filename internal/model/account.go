package model

type Account struct {
	ID           string  `db:"id" json:"id"`
	Name         string  `db:"name" json:"name"`
	APITokenHash *string `db:"api_token_hash" json:"-"`
	CreatedAt    int64   `db:"created_at" json:"createdAt"`
	UpdatedAt    int64   `db:"updated_at" json:"updatedAt"`
	DisabledAt   *int64  `db:"disabled_at" json:"disabledAt,omitempty"`
}

type AccountPreferences struct {
	AccountID       string `db:"account_id" json:"accountId"`
	Locale          string `db:"locale" json:"locale"`
	Timezone        string `db:"timezone" json:"timezone"`
	ReminderEnabled bool   `db:"reminder_enabled" json:"reminderEnabled"`
	UpdatedAt       int64  `db:"updated_at" json:"updatedAt"`
}
