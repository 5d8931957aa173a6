package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wonny/stockgame/internal/contracts"
)

// ErrNotFound is returned by single-row lookups that match nothing
var ErrNotFound = errors.New("not found")

const opInsertRatings = "failed to insert stock data"

// DB is the part of *pgxpool.Pool the repository uses
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// querier is satisfied by both the pool and a transaction
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository handles persistence of stocks and snapshots
// ⭐ SSOT: stocks / stock_snapshots 테이블 접근은 여기서만
type Repository struct {
	db DB
}

func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

const upsertStockSQL = `
	INSERT INTO stocks (ticker, company, category)
	VALUES ($1, $2, $3)
	ON CONFLICT (ticker) DO UPDATE SET
		company = EXCLUDED.company
	RETURNING id
`

const upsertSnapshotSQL = `
	INSERT INTO stock_snapshots (
		stock_id, week, rating_from, rating_to,
		target_from, target_to, price, action,
		news_title, news_summary, market_sentiment, signal_strength,
		created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
	ON CONFLICT (stock_id, week) DO UPDATE SET
		rating_from = EXCLUDED.rating_from,
		rating_to = EXCLUDED.rating_to,
		target_from = EXCLUDED.target_from,
		target_to = EXCLUDED.target_to,
		price = EXCLUDED.price,
		action = EXCLUDED.action,
		news_title = EXCLUDED.news_title,
		news_summary = EXCLUDED.news_summary,
		market_sentiment = EXCLUDED.market_sentiment,
		signal_strength = EXCLUDED.signal_strength,
		created_at = EXCLUDED.created_at
`

func upsertStock(ctx context.Context, q querier, ticker, company string) (int64, error) {
	var id int64
	if err := q.QueryRow(ctx, upsertStockSQL, ticker, company, contracts.CategoryUnclassified).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func upsertSnapshot(ctx context.Context, q querier, s contracts.StockSnapshot) error {
	if s.Week < contracts.BaselineWeek {
		return fmt.Errorf("invalid week %d", s.Week)
	}

	_, err := q.Exec(ctx, upsertSnapshotSQL,
		s.StockID,
		s.Week,
		s.RatingFrom,
		s.RatingTo,
		s.TargetFrom,
		s.TargetTo,
		s.Price,
		s.Action,
		s.NewsTitle,
		s.NewsSummary,
		string(s.MarketSentiment),
		s.SignalStrength,
	)
	return err
}

// UpsertStock inserts a stock as Unclassified, or refreshes its company
// name. The category of an existing stock is never touched.
func (r *Repository) UpsertStock(ctx context.Context, ticker, company string) (int64, error) {
	id, err := upsertStock(ctx, r.db, ticker, company)
	if err != nil {
		return 0, fmt.Errorf("upsert stock %s: %w", ticker, err)
	}
	return id, nil
}

// UpsertSnapshot writes one (stock, week) snapshot, last write wins
func (r *Repository) UpsertSnapshot(ctx context.Context, s contracts.StockSnapshot) error {
	if err := upsertSnapshot(ctx, r.db, s); err != nil {
		return fmt.Errorf("upsert snapshot stock=%d week=%d: %w", s.StockID, s.Week, err)
	}
	return nil
}

// InsertResult counts rows written by InsertRatings
type InsertResult struct {
	Stocks    int `json:"stocks"`
	Snapshots int `json:"snapshots"`
}

// InsertRatings upserts every stock and its week-1 snapshot in a single
// transaction. Any failure rolls back the whole call.
func (r *Repository) InsertRatings(ctx context.Context, records []contracts.RatingRecord) (*InsertResult, error) {
	result := &InsertResult{}
	if len(records) == 0 {
		return result, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, contracts.NewPersistenceError(opInsertRatings, fmt.Errorf("begin transaction: %w", err))
	}
	// no-op once committed
	defer tx.Rollback(ctx)

	stocks := make(map[int64]struct{}, len(records))
	for _, rec := range records {
		id, err := upsertStock(ctx, tx, rec.Ticker, rec.Company)
		if err != nil {
			return nil, contracts.NewPersistenceError(opInsertRatings, err)
		}
		stocks[id] = struct{}{}

		snapshot := rec.Snapshot
		snapshot.StockID = id
		if err := upsertSnapshot(ctx, tx, snapshot); err != nil {
			return nil, contracts.NewPersistenceError(opInsertRatings, err)
		}
		result.Snapshots++
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, contracts.NewPersistenceError(opInsertRatings, fmt.Errorf("commit: %w", err))
	}

	result.Stocks = len(stocks)
	return result, nil
}

// UpdateCategories writes a batch of category assignments in one statement
func (r *Repository) UpdateCategories(ctx context.Context, assignments []contracts.CategoryAssignment) error {
	for _, a := range assignments {
		if !contracts.IsAssignable(a.Category) {
			return fmt.Errorf("refusing to store category %q for stock %d", a.Category, a.StockID)
		}
	}

	switch len(assignments) {
	case 0:
		return nil
	case 1:
		a := assignments[0]
		if _, err := r.db.Exec(ctx, `UPDATE stocks SET category = $1 WHERE id = $2`, a.Category, a.StockID); err != nil {
			return fmt.Errorf("update category for stock %d: %w", a.StockID, err)
		}
		return nil
	}

	values := NewValuesBuilder("TEXT", "BIGINT")
	for _, a := range assignments {
		if err := values.Add(a.Category, a.StockID); err != nil {
			return err
		}
	}

	query := fmt.Sprintf(`
		UPDATE stocks AS s SET category = v.category
		FROM (VALUES %s) AS v(category, id)
		WHERE s.id = v.id
	`, values.SQL())

	if _, err := r.db.Exec(ctx, query, values.Args()...); err != nil {
		return fmt.Errorf("update categories (%d rows): %w", values.Len(), err)
	}
	return nil
}

// MarkClassifyAttempt bumps classification_attempts for the given stocks
func (r *Repository) MarkClassifyAttempt(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := r.db.Exec(ctx,
		`UPDATE stocks SET classification_attempts = classification_attempts + 1 WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("mark classify attempt: %w", err)
	}
	return nil
}

const stockColumns = `id, ticker, company, category, classification_attempts, created_at`

func scanStock(row pgx.Row) (contracts.Stock, error) {
	var s contracts.Stock
	err := row.Scan(&s.ID, &s.Ticker, &s.Company, &s.Category, &s.ClassificationAttempts, &s.CreatedAt)
	return s, err
}

func (r *Repository) queryStocks(ctx context.Context, query string, args ...any) ([]contracts.Stock, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stocks := make([]contracts.Stock, 0)
	for rows.Next() {
		s, err := scanStock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		stocks = append(stocks, s)
	}
	return stocks, rows.Err()
}

// ListUnclassified returns Unclassified stocks still under the attempt cap
func (r *Repository) ListUnclassified(ctx context.Context, maxAttempts int) ([]contracts.Stock, error) {
	stocks, err := r.queryStocks(ctx, `
		SELECT `+stockColumns+`
		FROM stocks
		WHERE category = $1 AND classification_attempts < $2
		ORDER BY id
	`, contracts.CategoryUnclassified, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("list unclassified stocks: %w", err)
	}
	return stocks, nil
}

// StockFilter narrows ListStocks
type StockFilter struct {
	Category string
	Limit    int
	Offset   int
}

// ListStocks returns one page of stocks ordered by ticker, plus the total count
func (r *Repository) ListStocks(ctx context.Context, f StockFilter) ([]contracts.Stock, int, error) {
	where := ""
	args := []any{}
	if f.Category != "" {
		where = "WHERE category = $1"
		args = append(args, f.Category)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM stocks `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count stocks: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Offset)

	query := fmt.Sprintf(`
		SELECT %s FROM stocks %s
		ORDER BY ticker
		LIMIT $%d OFFSET $%d
	`, stockColumns, where, len(args)-1, len(args))

	stocks, err := r.queryStocks(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list stocks: %w", err)
	}
	return stocks, total, nil
}

// GetStockByTicker returns ErrNotFound for unknown tickers
func (r *Repository) GetStockByTicker(ctx context.Context, ticker string) (*contracts.Stock, error) {
	s, err := scanStock(r.db.QueryRow(ctx, `SELECT `+stockColumns+` FROM stocks WHERE ticker = $1`, ticker))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get stock %s: %w", ticker, err)
	}
	return &s, nil
}

const snapshotColumns = `
	ss.stock_id, ss.week, ss.rating_from, ss.rating_to,
	ss.target_from, ss.target_to, ss.price, ss.action,
	ss.market_sentiment, ss.signal_strength, ss.news_title, ss.news_summary,
	ss.created_at
`

func snapshotDest(s *contracts.StockSnapshot) []any {
	return []any{
		&s.StockID, &s.Week, &s.RatingFrom, &s.RatingTo,
		&s.TargetFrom, &s.TargetTo, &s.Price, &s.Action,
		&s.MarketSentiment, &s.SignalStrength, &s.NewsTitle, &s.NewsSummary,
		&s.CreatedAt,
	}
}

// ListSnapshots returns a stock's snapshots in week order
func (r *Repository) ListSnapshots(ctx context.Context, stockID int64) ([]contracts.StockSnapshot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+snapshotColumns+`
		FROM stock_snapshots ss
		WHERE ss.stock_id = $1
		ORDER BY ss.week
	`, stockID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots for stock %d: %w", stockID, err)
	}
	defer rows.Close()

	snapshots := make([]contracts.StockSnapshot, 0)
	for rows.Next() {
		var s contracts.StockSnapshot
		if err := rows.Scan(snapshotDest(&s)...); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// ListBaselines returns every stock joined with its week-1 snapshot
func (r *Repository) ListBaselines(ctx context.Context) ([]contracts.Baseline, error) {
	rows, err := r.db.Query(ctx, `
		SELECT s.id, s.ticker, s.company, s.category, s.classification_attempts, s.created_at,
		`+snapshotColumns+`
		FROM stocks s
		JOIN stock_snapshots ss ON ss.stock_id = s.id
		WHERE ss.week = $1
		ORDER BY s.id
	`, contracts.BaselineWeek)
	if err != nil {
		return nil, fmt.Errorf("list baselines: %w", err)
	}
	defer rows.Close()

	baselines := make([]contracts.Baseline, 0)
	for rows.Next() {
		var b contracts.Baseline
		dest := append([]any{
			&b.Stock.ID, &b.Stock.Ticker, &b.Stock.Company, &b.Stock.Category,
			&b.Stock.ClassificationAttempts, &b.Stock.CreatedAt,
		}, snapshotDest(&b.Snapshot)...)

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan baseline: %w", err)
		}
		baselines = append(baselines, b)
	}
	return baselines, rows.Err()
}

// CategoryCounts returns the number of stocks per category
func (r *Repository) CategoryCounts(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.Query(ctx, `SELECT category, COUNT(*) FROM stocks GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("count categories: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		counts[category] = n
	}
	return counts, rows.Err()
}
