package store

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockgame/internal/contracts"
)

func record(ticker, company string, price float64) contracts.RatingRecord {
	return contracts.RatingRecord{
		Ticker:  ticker,
		Company: company,
		Snapshot: contracts.StockSnapshot{
			Week:       1,
			RatingFrom: "Hold",
			RatingTo:   "Hold",
			TargetFrom: decimal.RequireFromString("11.00"),
			TargetTo:   decimal.RequireFromString("8.00"),
			Price:      decimal.NewFromFloat(price),
			Action:     "target lowered by",
			NewsTitle:  "Recommendation by Stifel Nicolaus",
		},
	}
}

func TestInsertRatings_CommitsStockAndSnapshot(t *testing.T) {
	tx := newFakeTx()
	repo := NewRepository(&fakeDB{tx: tx})

	result, err := repo.InsertRatings(context.Background(), []contracts.RatingRecord{
		record("INSG", "Inseego", 9.1),
		record("MODG", "Topgolf Callaway Brands", 9.4),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Stocks)
	assert.Equal(t, 2, result.Snapshots)
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)

	require.Len(t, tx.calls, 4)

	stockCall := tx.calls[0]
	assert.Contains(t, stockCall.sql, "INSERT INTO stocks")
	assert.Contains(t, stockCall.sql, "ON CONFLICT (ticker) DO UPDATE SET")
	assert.NotContains(t, stockCall.sql, "category = EXCLUDED")
	assert.Equal(t, []any{"INSG", "Inseego", "Unclassified"}, stockCall.args)

	snapCall := tx.calls[1]
	assert.Contains(t, snapCall.sql, "INSERT INTO stock_snapshots")
	assert.Contains(t, snapCall.sql, "ON CONFLICT (stock_id, week) DO UPDATE SET")
	assert.Equal(t, int64(1), snapCall.args[0])
	assert.Equal(t, 1, snapCall.args[1])
	assert.Equal(t, "9.1", snapCall.args[6].(decimal.Decimal).String())
	assert.Equal(t, "target lowered by", snapCall.args[7])
	assert.Equal(t, "Recommendation by Stifel Nicolaus", snapCall.args[8])

	assert.Equal(t, int64(2), tx.calls[3].args[0])
}

func TestInsertRatings_SameTickerTwiceCountsOneStock(t *testing.T) {
	tx := newFakeTx()
	repo := NewRepository(&fakeDB{tx: tx})

	result, err := repo.InsertRatings(context.Background(), []contracts.RatingRecord{
		record("AAPL", "Apple", 100),
		record("AAPL", "Apple Inc.", 101),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Stocks)
	assert.Equal(t, 2, result.Snapshots)
	assert.Equal(t, int64(1), tx.calls[3].args[0])
}

func TestInsertRatings_RollsBackOnFailure(t *testing.T) {
	tx := newFakeTx()
	tx.failOn = "INSERT INTO stock_snapshots"
	tx.failErr = errors.New("Insert failed")
	repo := NewRepository(&fakeDB{tx: tx})

	_, err := repo.InsertRatings(context.Background(), []contracts.RatingRecord{
		record("INSG", "Inseego", 9.1),
	})
	require.Error(t, err)

	assert.ErrorIs(t, err, contracts.ErrPersistence)
	assert.Equal(t, "failed to insert stock data: Insert failed", err.Error())
	assert.False(t, tx.committed, "nothing may be committed")
	assert.True(t, tx.rolledBack)
}

func TestInsertRatings_BeginFailure(t *testing.T) {
	repo := NewRepository(&fakeDB{beginErr: errors.New("pool exhausted")})

	_, err := repo.InsertRatings(context.Background(), []contracts.RatingRecord{record("A", "A Corp", 1)})
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrPersistence)
	assert.Contains(t, err.Error(), "pool exhausted")
}

func TestInsertRatings_EmptyIsNoop(t *testing.T) {
	repo := NewRepository(&fakeDB{beginErr: errors.New("must not begin")})

	result, err := repo.InsertRatings(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Snapshots)
}

func TestUpsertSnapshot_RejectsWeekZero(t *testing.T) {
	repo := NewRepository(&fakeDB{tx: newFakeTx()})

	err := repo.UpsertSnapshot(context.Background(), contracts.StockSnapshot{StockID: 1, Week: 0})
	assert.Error(t, err)
}

func TestUpdateCategories(t *testing.T) {
	t.Run("single row", func(t *testing.T) {
		db := &fakeDB{}
		repo := NewRepository(db)

		err := repo.UpdateCategories(context.Background(), []contracts.CategoryAssignment{
			{StockID: 1, Category: "Tech"},
		})
		require.NoError(t, err)

		require.Len(t, db.calls, 1)
		assert.Equal(t, "UPDATE stocks SET category = $1 WHERE id = $2", db.calls[0].sql)
		assert.Equal(t, []any{"Tech", int64(1)}, db.calls[0].args)
	})

	t.Run("batch", func(t *testing.T) {
		db := &fakeDB{}
		repo := NewRepository(db)

		err := repo.UpdateCategories(context.Background(), []contracts.CategoryAssignment{
			{StockID: 1, Category: "Tech"},
			{StockID: 2, Category: "Finance"},
		})
		require.NoError(t, err)

		require.Len(t, db.calls, 1)
		assert.Contains(t, db.calls[0].sql, "($1::TEXT, $2::BIGINT), ($3::TEXT, $4::BIGINT)")
		assert.Equal(t, []any{"Tech", int64(1), "Finance", int64(2)}, db.calls[0].args)
	})

	t.Run("rejects labels outside taxonomy", func(t *testing.T) {
		db := &fakeDB{}
		repo := NewRepository(db)

		err := repo.UpdateCategories(context.Background(), []contracts.CategoryAssignment{
			{StockID: 1, Category: "Crypto"},
		})
		require.Error(t, err)
		assert.Empty(t, db.calls)
	})

	t.Run("empty", func(t *testing.T) {
		db := &fakeDB{}
		require.NoError(t, NewRepository(db).UpdateCategories(context.Background(), nil))
		assert.Empty(t, db.calls)
	})
}

func TestMarkClassifyAttempt(t *testing.T) {
	db := &fakeDB{}
	repo := NewRepository(db)

	require.NoError(t, repo.MarkClassifyAttempt(context.Background(), []int64{3, 4}))
	require.Len(t, db.calls, 1)
	assert.Contains(t, db.calls[0].sql, "classification_attempts = classification_attempts + 1")
	assert.Equal(t, []any{[]int64{3, 4}}, db.calls[0].args)

	db.execErr = errors.New("down")
	assert.Error(t, repo.MarkClassifyAttempt(context.Background(), []int64{1}))
}
