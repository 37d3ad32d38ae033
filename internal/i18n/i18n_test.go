package i18n

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/kasku/chat-gateway/internal/model"
)

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "Rp50.000", FormatAmount(model.LocaleID, decimal.NewFromInt(50000)))
	assert.Equal(t, "Rp50,000", FormatAmount(model.LocaleEN, decimal.NewFromInt(50000)))
	assert.Equal(t, "-Rp1.250.000", FormatAmount(model.LocaleID, decimal.NewFromInt(-1250000)))
	assert.Equal(t, "Rp0", FormatAmount(model.LocaleID, decimal.Zero))
}

func TestT(t *testing.T) {
	t.Run("every key exists in every locale", func(t *testing.T) {
		for key := range catalog[model.LocaleID] {
			_, ok := catalog[model.LocaleEN][key]
			assert.True(t, ok, "missing en template for %s", key)
		}
		assert.Equal(t, len(catalog[model.LocaleID]), len(catalog[model.LocaleEN]))
	})

	t.Run("unknown locale falls back to indonesian", func(t *testing.T) {
		assert.Equal(t, catalog[model.LocaleID][KeyReminder], T(model.Locale("fr"), KeyReminder))
	})

	t.Run("formats arguments", func(t *testing.T) {
		assert.Contains(t, T(model.LocaleEN, KeyActivationSuccess, "+628123"), "+628123")
	})
}

func TestMonthLabel(t *testing.T) {
	assert.Equal(t, "Maret 2026", MonthLabel(model.LocaleID, 3, 2026))
	assert.Equal(t, "December 2025", MonthLabel(model.LocaleEN, 12, 2025))
}

func TestTransactionLines(t *testing.T) {
	lines := TransactionLines(model.LocaleEN, []Line{
		{Type: model.TransactionTypeExpense, Amount: decimal.NewFromInt(50000), Category: "Food & Dining", Description: "Lunch"},
		{Type: model.TransactionTypeIncome, Amount: decimal.NewFromInt(5000000)},
	})
	assert.Equal(t, "• Expense Rp50,000 (Food & Dining) Lunch\n• Income Rp5,000,000 (-)", lines)
}
