/*
Package sqlite provides the SQLite-backed Persister.

PURPOSE:

	Persists the engine's last computed state - the lot collection and the
	ledger entries - after every mutating operation. The contract is
	deliberately simple: Save rewrites both tables wholesale inside one
	database transaction, Load reads them back in order. There is no
	incremental update path; the engine is the source of truth between
	saves.

KEY TABLES:

	lots:           Current lot records, in display order
	ledger_entries: Sale and resupply lines, in recording order

DECIMALS:

	All money values are stored as TEXT and parsed back through
	shopspring/decimal, so no precision is lost to floating point.

LEGACY COLUMN:

	shipping_combined materializes the old single-field shipping+tax value
	alongside the split shipping and tax columns. It exists only at this
	serialization boundary, for consumers of the raw database file that
	still expect the legacy shape.

WAL MODE:

	SQLite is opened with WAL for better crash recovery. Use ":memory:"
	for tests.

SEE ALSO:
  - store/memory: In-memory Persister for tests
  - engine: The only caller of Save/Load
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/humidor/valuation-engine/inventory"
	"github.com/humidor/valuation-engine/ledger"
)

// Store implements engine.Persister using SQLite.
type Store struct {
	db *sql.DB
}

// New opens (and migrates) the database at dbPath. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Current lot records (rewritten wholesale on every save)
	CREATE TABLE IF NOT EXISTS lots (
		id TEXT PRIMARY KEY,
		brand TEXT NOT NULL,
		name TEXT NOT NULL,
		size TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT '',
		count INTEGER NOT NULL,
		price TEXT NOT NULL,
		shipping TEXT NOT NULL,
		tax TEXT NOT NULL,
		shipping_combined TEXT NOT NULL,
		unit_cost TEXT NOT NULL,
		original_quantity INTEGER NOT NULL,
		rating INTEGER,
		history_json TEXT NOT NULL DEFAULT '[]',
		position INTEGER NOT NULL
	);

	-- Sale/resupply lines (rewritten wholesale on every save)
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		kind TEXT NOT NULL,
		lot_id TEXT NOT NULL,
		brand TEXT NOT NULL,
		name TEXT NOT NULL,
		size TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		total_cost TEXT NOT NULL,
		price TEXT NOT NULL,
		shipping_tax_allocated TEXT NOT NULL,
		position INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_transaction
		ON ledger_entries(transaction_id);
	CREATE INDEX IF NOT EXISTS idx_entries_lot
		ON ledger_entries(lot_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SAVE - Write last computed state
// =============================================================================

func (s *Store) Save(ctx context.Context, lots []*inventory.Lot, entries []ledger.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM lots"); err != nil {
		return fmt.Errorf("clear lots: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM ledger_entries"); err != nil {
		return fmt.Errorf("clear ledger entries: %w", err)
	}

	lotStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO lots (id, brand, name, size, type, count, price, shipping, tax,
			shipping_combined, unit_cost, original_quantity, rating, history_json, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer lotStmt.Close()

	for i, l := range lots {
		historyJSON, err := json.Marshal(historyRecords(l.History))
		if err != nil {
			return fmt.Errorf("marshal history for lot %s: %w", l.ID, err)
		}
		var rating any
		if l.Rating != nil {
			rating = *l.Rating
		}
		_, err = lotStmt.ExecContext(ctx,
			string(l.ID), l.Brand, l.Name, l.Size, l.Type, l.Count,
			l.Price.String(), l.Shipping.String(), l.Tax.String(),
			l.ShippingAndTax().String(), l.UnitCost.String(),
			l.OriginalQuantity, rating, string(historyJSON), i,
		)
		if err != nil {
			return fmt.Errorf("insert lot %s: %w", l.ID, err)
		}
	}

	entryStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ledger_entries (id, transaction_id, timestamp, kind, lot_id,
			brand, name, size, unit_price, quantity, total_cost, price,
			shipping_tax_allocated, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer entryStmt.Close()

	for i, e := range entries {
		_, err = entryStmt.ExecContext(ctx,
			string(e.ID), string(e.TransactionID), e.Timestamp.Format(time.RFC3339Nano),
			string(e.Kind), string(e.LotID), e.Brand, e.Name, e.Size,
			e.UnitPrice.String(), e.Quantity, e.TotalCost.String(),
			e.Price.String(), e.ShippingTaxAllocated.String(), i,
		)
		if err != nil {
			return fmt.Errorf("insert ledger entry %s: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

// =============================================================================
// LOAD
// =============================================================================

func (s *Store) Load(ctx context.Context) ([]*inventory.Lot, []ledger.Entry, error) {
	lots, err := s.loadLots(ctx)
	if err != nil {
		return nil, nil, err
	}
	entries, err := s.loadEntries(ctx)
	if err != nil {
		return nil, nil, err
	}
	return lots, entries, nil
}

func (s *Store) loadLots(ctx context.Context) ([]*inventory.Lot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, brand, name, size, type, count, price, shipping, tax,
			unit_cost, original_quantity, rating, history_json
		FROM lots ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query lots: %w", err)
	}
	defer rows.Close()

	var lots []*inventory.Lot
	for rows.Next() {
		var (
			l                              inventory.Lot
			id                             string
			price, shipping, tax, unitCost string
			rating                         sql.NullInt64
			historyJSON                    string
		)
		err := rows.Scan(&id, &l.Brand, &l.Name, &l.Size, &l.Type, &l.Count,
			&price, &shipping, &tax, &unitCost, &l.OriginalQuantity, &rating, &historyJSON)
		if err != nil {
			return nil, fmt.Errorf("scan lot: %w", err)
		}
		l.ID = inventory.LotID(id)
		if l.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("lot %s price: %w", id, err)
		}
		if l.Shipping, err = decimal.NewFromString(shipping); err != nil {
			return nil, fmt.Errorf("lot %s shipping: %w", id, err)
		}
		if l.Tax, err = decimal.NewFromString(tax); err != nil {
			return nil, fmt.Errorf("lot %s tax: %w", id, err)
		}
		if l.UnitCost, err = decimal.NewFromString(unitCost); err != nil {
			return nil, fmt.Errorf("lot %s unit cost: %w", id, err)
		}
		if rating.Valid {
			r := int(rating.Int64)
			l.Rating = &r
		}
		var records []historyRecord
		if err := json.Unmarshal([]byte(historyJSON), &records); err != nil {
			return nil, fmt.Errorf("lot %s history: %w", id, err)
		}
		l.History, err = historyEvents(records)
		if err != nil {
			return nil, fmt.Errorf("lot %s history: %w", id, err)
		}
		lots = append(lots, &l)
	}
	return lots, rows.Err()
}

func (s *Store) loadEntries(ctx context.Context) ([]ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, transaction_id, timestamp, kind, lot_id, brand, name, size,
			unit_price, quantity, total_cost, price, shipping_tax_allocated
		FROM ledger_entries ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var (
			e                                 ledger.Entry
			id, txID, ts, kind, lotID         string
			unitPrice, totalCost, price, allo string
		)
		err := rows.Scan(&id, &txID, &ts, &kind, &lotID, &e.Brand, &e.Name, &e.Size,
			&unitPrice, &e.Quantity, &totalCost, &price, &allo)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.ID = ledger.EntryID(id)
		e.TransactionID = ledger.TransactionID(txID)
		e.Kind = ledger.Kind(kind)
		e.LotID = inventory.LotID(lotID)
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("entry %s timestamp: %w", id, err)
		}
		if e.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return nil, fmt.Errorf("entry %s unit price: %w", id, err)
		}
		if e.TotalCost, err = decimal.NewFromString(totalCost); err != nil {
			return nil, fmt.Errorf("entry %s total cost: %w", id, err)
		}
		if e.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("entry %s price: %w", id, err)
		}
		if e.ShippingTaxAllocated, err = decimal.NewFromString(allo); err != nil {
			return nil, fmt.Errorf("entry %s shipping/tax: %w", id, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// HISTORY SERIALIZATION
// =============================================================================

type historyRecord struct {
	At       time.Time `json:"at"`
	Count    int       `json:"count"`
	Price    string    `json:"price"`
	Shipping string    `json:"shipping"`
	Tax      string    `json:"tax"`
	UnitCost string    `json:"unit_cost"`
}

func historyRecords(events []inventory.MergeEvent) []historyRecord {
	records := make([]historyRecord, len(events))
	for i, ev := range events {
		records[i] = historyRecord{
			At:       ev.At,
			Count:    ev.Count,
			Price:    ev.Price.String(),
			Shipping: ev.Shipping.String(),
			Tax:      ev.Tax.String(),
			UnitCost: ev.UnitCost.String(),
		}
	}
	return records
}

func historyEvents(records []historyRecord) ([]inventory.MergeEvent, error) {
	events := make([]inventory.MergeEvent, len(records))
	for i, r := range records {
		ev := inventory.MergeEvent{At: r.At, Count: r.Count}
		var err error
		if ev.Price, err = decimal.NewFromString(r.Price); err != nil {
			return nil, err
		}
		if ev.Shipping, err = decimal.NewFromString(r.Shipping); err != nil {
			return nil, err
		}
		if ev.Tax, err = decimal.NewFromString(r.Tax); err != nil {
			return nil, err
		}
		if ev.UnitCost, err = decimal.NewFromString(r.UnitCost); err != nil {
			return nil, err
		}
		events[i] = ev
	}
	return events, nil
}
