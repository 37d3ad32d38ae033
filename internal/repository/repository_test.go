package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasku/chat-gateway/internal/database"
	"github.com/kasku/chat-gateway/internal/model"
)

// setupTestDB connects to TEST_DATABASE_URL, applies the schema and seeds one account.
func setupTestDB(t *testing.T) (*database.DB, string) {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := database.Connect(url)
	require.NoError(t, err)

	schema, err := os.ReadFile("../../migrations/001_init.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	_, err = db.Exec(`TRUNCATE accounts, whatsapp_devices CASCADE`)
	require.NoError(t, err)

	now := time.Now().Unix()
	_, err = db.Exec(`INSERT INTO accounts (id, name, created_at, updated_at) VALUES ('acct-1', 'Test', $1, $1)`, now)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db, "acct-1"
}

func TestActivationCodeRepository_Consume(t *testing.T) {
	db, accountID := setupTestDB(t)
	repo := NewActivationCodeRepository(db.DB)
	ctx := context.Background()

	t0 := time.Now().Unix()
	_, err := repo.Create(ctx, model.CreateActivationCodeParams{
		AccountID: accountID,
		Code:      "AB12CD",
		CreatedAt: t0,
		ExpiresAt: t0 + 300,
	})
	require.NoError(t, err)

	t.Run("rejects after expiry", func(t *testing.T) {
		ac, err := repo.Consume(ctx, "AB12CD", t0+301)
		require.NoError(t, err)
		assert.Nil(t, ac)
	})

	t.Run("consumes exactly once", func(t *testing.T) {
		ac, err := repo.Consume(ctx, "AB12CD", t0+10)
		require.NoError(t, err)
		require.NotNil(t, ac)
		assert.Equal(t, accountID, ac.AccountID)
		require.NotNil(t, ac.UsedAt)

		again, err := repo.Consume(ctx, "AB12CD", t0+11)
		require.NoError(t, err)
		assert.Nil(t, again)
	})

	t.Run("duplicate code is reported", func(t *testing.T) {
		_, err := repo.Create(ctx, model.CreateActivationCodeParams{
			AccountID: accountID, Code: "AB12CD", CreatedAt: t0, ExpiresAt: t0 + 300,
		})
		assert.ErrorIs(t, err, ErrDuplicate)
	})
}

func TestIntegrationRepository_UniqueActiveIdentity(t *testing.T) {
	db, accountID := setupTestDB(t)
	repo := NewIntegrationRepository(db.DB)
	ctx := context.Background()
	now := time.Now().Unix()

	in, err := repo.Create(ctx, model.CreateIntegrationParams{
		AccountID: accountID, ExternalIdentity: "6281234567890", ActivatedAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, model.IntegrationStatusActive, in.Status)

	_, err = repo.Create(ctx, model.CreateIntegrationParams{
		AccountID: accountID, ExternalIdentity: "6281234567890", ActivatedAt: now,
	})
	assert.ErrorIs(t, err, ErrDuplicate)

	ok, err := repo.Revoke(ctx, accountID, in.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)

	found, err := repo.FindActiveByIdentity(ctx, "6281234567890")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestTransactionRepository_Summary(t *testing.T) {
	db, accountID := setupTestDB(t)
	repo := NewTransactionRepository(db.DB)
	ctx := context.Background()
	now := time.Now().Unix()

	for _, p := range []model.CreateTransactionParams{
		{AccountID: accountID, Type: model.TransactionTypeIncome, Amount: decimal.NewFromInt(100000), Source: model.TransactionSourceManual, OccurredAt: now - 10},
		{AccountID: accountID, Type: model.TransactionTypeExpense, Amount: decimal.NewFromInt(50000), Source: model.TransactionSourceChat, AIGenerated: true, OccurredAt: now - 5},
	} {
		_, err := repo.Create(ctx, p)
		require.NoError(t, err)
	}

	summary, err := repo.Summary(ctx, accountID, now-60, now+1)
	require.NoError(t, err)
	assert.True(t, summary.Net().Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, 2, summary.Count)

	count, err := repo.CountBetween(ctx, accountID, now, now+60)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
