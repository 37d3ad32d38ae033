package model

import "github.com/shopspring/decimal"

type Transaction struct {
	ID          string            `db:"id" json:"id"`
	AccountID   string            `db:"account_id" json:"accountId"`
	CategoryID  *string           `db:"category_id" json:"categoryId,omitempty"`
	Type        TransactionType   `db:"type" json:"type"`
	Amount      decimal.Decimal   `db:"amount" json:"amount"`
	Description string            `db:"description" json:"description"`
	Source      TransactionSource `db:"source" json:"source"`
	AIGenerated bool              `db:"ai_generated" json:"aiGenerated"`
	OccurredAt  int64             `db:"occurred_at" json:"occurredAt"`
	CreatedAt   int64             `db:"created_at" json:"createdAt"`
}

type CreateTransactionParams struct {
	AccountID   string
	CategoryID  *string
	Type        TransactionType
	Amount      decimal.Decimal
	Description string
	Source      TransactionSource
	AIGenerated bool
	OccurredAt  int64
}

type Category struct {
	ID        string          `db:"id" json:"id"`
	AccountID *string         `db:"account_id" json:"accountId,omitempty"`
	Name      string          `db:"name" json:"name"`
	Type      TransactionType `db:"type" json:"type"`
}

// TransactionSummary aggregates amounts over a period.
type TransactionSummary struct {
	Income  decimal.Decimal `db:"income" json:"income"`
	Expense decimal.Decimal `db:"expense" json:"expense"`
	Count   int             `db:"count" json:"count"`
}

func (s TransactionSummary) Net() decimal.Decimal {
	return s.Income.Sub(s.Expense)
}
