package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/pricewatch/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS items (
	id               TEXT PRIMARY KEY,
	external_id      TEXT UNIQUE,
	name             TEXT NOT NULL,
	normalized_name  TEXT NOT NULL,
	category         TEXT NOT NULL,
	url              TEXT NOT NULL DEFAULT '',
	current_price    REAL NOT NULL DEFAULT 0,
	base_price       REAL NOT NULL DEFAULT 0,
	sale_price       REAL NOT NULL DEFAULT 0,
	is_on_sale       INTEGER NOT NULL DEFAULT 0,
	price_history    TEXT NOT NULL DEFAULT '[]',
	last_price_check DATETIME,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS check_failures (
	id         TEXT PRIMARY KEY,
	item_id    TEXT NOT NULL REFERENCES items(id),
	reason     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_items_normalized_name ON items(normalized_name);
CREATE INDEX IF NOT EXISTS idx_items_category ON items(category);
CREATE INDEX IF NOT EXISTS idx_check_failures_item_id ON check_failures(item_id);
CREATE INDEX IF NOT EXISTS idx_check_failures_created_at ON check_failures(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const itemColumns = `id, external_id, name, normalized_name, category, url,
	current_price, base_price, sale_price, is_on_sale, price_history,
	last_price_check, created_at, updated_at`

// CreateItem inserts the item, or returns the existing row when another
// writer already inserted the same external ID. This is the serialization
// point for concurrent discovery workers.
func (s *SQLiteStore) CreateItem(ctx context.Context, item model.CatalogItem) (*model.CatalogItem, error) {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	histJSON, err := json.Marshal(item.PriceHistory)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal history")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO items (id, external_id, name, normalized_name, category, url,
			current_price, base_price, sale_price, is_on_sale, price_history,
			last_price_check, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(external_id) DO NOTHING`,
		item.ID, nullable(item.ExternalID), item.Name, item.NormalizedName,
		string(item.Category), item.URL, item.CurrentPrice, item.BasePrice,
		item.SalePrice, item.IsOnSale, string(histJSON),
		nullTime(item.LastPriceCheck), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert item")
	}

	if n, _ := res.RowsAffected(); n == 0 && item.ExternalID != "" {
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

func (s *SQLiteStore) GetItem(ctx context.Context, id string) (*model.CatalogItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	return scanItem(row)
}

func (s *SQLiteStore) GetItemByExternalID(ctx context.Context, externalID string) (*model.CatalogItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE external_id = ?`, externalID)
	return scanItem(row)
}

func (s *SQLiteStore) GetItemByNormalizedName(ctx context.Context, name string) (*model.CatalogItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE normalized_name = ?`, name)
	return scanItem(row)
}

func (s *SQLiteStore) ListItems(ctx context.Context, filter ItemFilter) ([]model.CatalogItem, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE 1=1`
	var args []any

	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, string(filter.Category))
	}
	query += ` ORDER BY created_at ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list items")
	}
	defer rows.Close()

	var items []model.CatalogItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: list items iterate")
}

func (s *SQLiteStore) UpdateItemPrices(ctx context.Context, item *model.CatalogItem) error {
	histJSON, err := json.Marshal(item.PriceHistory)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal history")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE items SET current_price = ?, base_price = ?, sale_price = ?,
			is_on_sale = ?, price_history = ?, last_price_check = ?, updated_at = ?
		 WHERE id = ?`,
		item.CurrentPrice, item.BasePrice, item.SalePrice, item.IsOnSale,
		string(histJSON), nullTime(item.LastPriceCheck), time.Now().UTC(), item.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update item prices %s", item.ID)
	}
	return checkRowsAffected(res, "item", item.ID)
}

func (s *SQLiteStore) RecordCheckFailure(ctx context.Context, itemID, reason string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO check_failures (id, item_id, reason, created_at) VALUES (?, ?, ?, ?)`,
		uuid.New().String(), itemID, reason, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: record check failure")
}

func (s *SQLiteStore) ListCheckFailures(ctx context.Context, since time.Time) ([]CheckFailure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_id, reason, created_at FROM check_failures
		 WHERE created_at >= ? ORDER BY created_at ASC`, since.UTC())
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list check failures")
	}
	defer rows.Close()

	var out []CheckFailure
	for rows.Next() {
		var f CheckFailure
		if err := rows.Scan(&f.ID, &f.ItemID, &f.Reason, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan check failure")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list check failures iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanItem(row scannable) (*model.CatalogItem, error) {
	var it model.CatalogItem
	var extID sql.NullString
	var histJSON string
	var lastCheck sql.NullTime
	var category string

	err := row.Scan(&it.ID, &extID, &it.Name, &it.NormalizedName, &category,
		&it.URL, &it.CurrentPrice, &it.BasePrice, &it.SalePrice, &it.IsOnSale,
		&histJSON, &lastCheck, &it.CreatedAt, &it.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan item")
	}

	it.ExternalID = extID.String
	it.Category = model.Category(category)
	if lastCheck.Valid {
		it.LastPriceCheck = lastCheck.Time
	}
	if err := json.Unmarshal([]byte(histJSON), &it.PriceHistory); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal history")
	}
	return &it, nil
}
