package model

type IntegrationStatus string

const (
	IntegrationStatusActive  IntegrationStatus = "active"
	IntegrationStatusRevoked IntegrationStatus = "revoked"
)

type NotificationCategory string

const (
	NotificationCategoryReminder     NotificationCategory = "reminder"
	NotificationCategoryConfirmation NotificationCategory = "confirmation"
	NotificationCategoryReply        NotificationCategory = "reply"
	NotificationCategoryPairing      NotificationCategory = "pairing"
	NotificationCategoryTest         NotificationCategory = "test"
)

type NotificationOutcome string

const (
	NotificationOutcomeSent   NotificationOutcome = "sent"
	NotificationOutcomeFailed NotificationOutcome = "failed"
)

type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

func (t TransactionType) Valid() bool {
	return t == TransactionTypeIncome || t == TransactionTypeExpense
}

type TransactionSource string

const (
	TransactionSourceManual TransactionSource = "manual"
	TransactionSourceChat   TransactionSource = "chat"
)

type Locale string

const (
	LocaleID Locale = "id"
	LocaleEN Locale = "en"
)

// ParseLocale returns fallback for anything other than a supported locale.
func ParseLocale(s string, fallback Locale) Locale {
	switch Locale(s) {
	case LocaleID, LocaleEN:
		return Locale(s)
	}
	return fallback
}
