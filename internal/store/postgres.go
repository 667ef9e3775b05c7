package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pricewatch/internal/db"
	"github.com/sells-group/pricewatch/internal/model"
)

// PostgresStore implements Store on top of a pgx connection pool. The
// pool field is the db.Pool interface so tests can inject pgxmock.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres connects to Postgres at the given DSN.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool, used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS items (
	id               TEXT PRIMARY KEY,
	external_id      TEXT UNIQUE,
	name             TEXT NOT NULL,
	normalized_name  TEXT NOT NULL,
	category         TEXT NOT NULL,
	url              TEXT NOT NULL DEFAULT '',
	current_price    DOUBLE PRECISION NOT NULL DEFAULT 0,
	base_price       DOUBLE PRECISION NOT NULL DEFAULT 0,
	sale_price       DOUBLE PRECISION NOT NULL DEFAULT 0,
	is_on_sale       BOOLEAN NOT NULL DEFAULT FALSE,
	price_history    JSONB NOT NULL DEFAULT '[]',
	last_price_check TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS check_failures (
	id         TEXT PRIMARY KEY,
	item_id    TEXT NOT NULL REFERENCES items(id),
	reason     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_items_normalized_name ON items(normalized_name);
CREATE INDEX IF NOT EXISTS idx_items_category ON items(category);
CREATE INDEX IF NOT EXISTS idx_check_failures_item_id ON check_failures(item_id);
CREATE INDEX IF NOT EXISTS idx_check_failures_created_at ON check_failures(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const pgItemColumns = `id, external_id, name, normalized_name, category, url,
	current_price, base_price, sale_price, is_on_sale, price_history,
	last_price_check, created_at, updated_at`

func (s *PostgresStore) CreateItem(ctx context.Context, item model.CatalogItem) (*model.CatalogItem, error) {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	histJSON, err := json.Marshal(item.PriceHistory)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal history")
	}

	var extID any
	if item.ExternalID != "" {
		extID = item.ExternalID
	}
	var lastCheck any
	if !item.LastPriceCheck.IsZero() {
		lastCheck = item.LastPriceCheck
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO items (id, external_id, name, normalized_name, category, url,
			current_price, base_price, sale_price, is_on_sale, price_history,
			last_price_check, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (external_id) DO NOTHING`,
		item.ID, extID, item.Name, item.NormalizedName, string(item.Category),
		item.URL, item.CurrentPrice, item.BasePrice, item.SalePrice,
		item.IsOnSale, histJSON, lastCheck, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert item")
	}

	if tag.RowsAffected() == 0 && item.ExternalID != "" {
		existing, err := s.GetItemByExternalID(ctx, item.ExternalID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}
	return &item, nil
}

func (s *PostgresStore) GetItem(ctx context.Context, id string) (*model.CatalogItem, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgItemColumns+` FROM items WHERE id = $1`, id)
	return scanPgItem(row)
}

func (s *PostgresStore) GetItemByExternalID(ctx context.Context, externalID string) (*model.CatalogItem, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgItemColumns+` FROM items WHERE external_id = $1`, externalID)
	return scanPgItem(row)
}

func (s *PostgresStore) GetItemByNormalizedName(ctx context.Context, name string) (*model.CatalogItem, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgItemColumns+` FROM items WHERE normalized_name = $1`, name)
	return scanPgItem(row)
}

func (s *PostgresStore) ListItems(ctx context.Context, filter ItemFilter) ([]model.CatalogItem, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}

	var rows pgx.Rows
	var err error
	if filter.Category != "" {
		rows, err = s.pool.Query(ctx,
			`SELECT `+pgItemColumns+` FROM items WHERE category = $1
			 ORDER BY created_at ASC LIMIT $2 OFFSET $3`,
			string(filter.Category), limit, filter.Offset)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT `+pgItemColumns+` FROM items
			 ORDER BY created_at ASC LIMIT $1 OFFSET $2`,
			limit, filter.Offset)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list items")
	}
	defer rows.Close()

	var items []model.CatalogItem
	for rows.Next() {
		it, err := scanPgItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, eris.Wrap(rows.Err(), "postgres: list items iterate")
}

func (s *PostgresStore) UpdateItemPrices(ctx context.Context, item *model.CatalogItem) error {
	histJSON, err := json.Marshal(item.PriceHistory)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal history")
	}
	var lastCheck any
	if !item.LastPriceCheck.IsZero() {
		lastCheck = item.LastPriceCheck
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE items SET current_price = $1, base_price = $2, sale_price = $3,
			is_on_sale = $4, price_history = $5, last_price_check = $6, updated_at = $7
		 WHERE id = $8`,
		item.CurrentPrice, item.BasePrice, item.SalePrice, item.IsOnSale,
		histJSON, lastCheck, time.Now().UTC(), item.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update item prices %s", item.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("item not found: %s", item.ID)
	}
	return nil
}

func (s *PostgresStore) RecordCheckFailure(ctx context.Context, itemID, reason string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO check_failures (id, item_id, reason, created_at)
		 VALUES ($1, $2, $3, $4)`,
		uuid.New().String(), itemID, reason, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: record check failure")
}

func (s *PostgresStore) ListCheckFailures(ctx context.Context, since time.Time) ([]CheckFailure, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, item_id, reason, created_at FROM check_failures
		 WHERE created_at >= $1 ORDER BY created_at ASC`, since.UTC())
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list check failures")
	}
	defer rows.Close()

	var out []CheckFailure
	for rows.Next() {
		var f CheckFailure
		if err := rows.Scan(&f.ID, &f.ItemID, &f.Reason, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan check failure")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list check failures iterate")
}

func scanPgItem(row pgx.Row) (*model.CatalogItem, error) {
	var it model.CatalogItem
	var extID *string
	var histJSON []byte
	var lastCheck *time.Time
	var category string

	err := row.Scan(&it.ID, &extID, &it.Name, &it.NormalizedName, &category,
		&it.URL, &it.CurrentPrice, &it.BasePrice, &it.SalePrice, &it.IsOnSale,
		&histJSON, &lastCheck, &it.CreatedAt, &it.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan item")
	}

	if extID != nil {
		it.ExternalID = *extID
	}
	it.Category = model.Category(category)
	if lastCheck != nil {
		it.LastPriceCheck = *lastCheck
	}
	if err := json.Unmarshal(histJSON, &it.PriceHistory); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal history")
	}
	return &it, nil
}
