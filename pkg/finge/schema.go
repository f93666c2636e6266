package finge

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// seedCatalog is the starting catalog written on first init. The first entry
// has an empty ticker; it is kept as-is (see DESIGN.md).
var seedCatalog = []Candidate{
	{Ticker: "", Popularity: 0.9, Industry: "Tech", Features: []float64{1.0, 0.5, 0.3}},
	{Ticker: "GOOGL", Popularity: 0.85, Industry: "Tech", Features: []float64{1.0, 0.6, 0.2}},
	{Ticker: "TSLA", Popularity: 0.95, Industry: "Automotive", Features: []float64{0.7, 0.2, 1.0}},
	{Ticker: "AMZN", Popularity: 0.8, Industry: "Retail", Features: []float64{0.9, 0.4, 0.5}},
}

func initDatabase(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := exec(tx, `
		CREATE TABLE IF NOT EXISTS app_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return err
	}

	if err := exec(tx, `
		CREATE TABLE IF NOT EXISTS candidates (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ticker TEXT NOT NULL UNIQUE,
			popularity REAL NOT NULL CHECK(popularity >= 0 AND popularity <= 1),
			industry TEXT NOT NULL DEFAULT '',
			features TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return err
	}

	if err := exec(tx, `
		CREATE TABLE IF NOT EXISTS scans (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ticker TEXT,
			status TEXT NOT NULL CHECK(status IN ('ok', 'not_public', 'failed')),
			image_key TEXT,
			image_url TEXT,
			content_type TEXT,
			company_name TEXT,
			last_sale_price TEXT,
			card_json TEXT,
			error TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return err
	}
	if hasRawTicker, err := tableHasColumn(tx, "scans", "raw_ticker"); err != nil {
		return err
	} else if !hasRawTicker {
		if err := exec(tx, "ALTER TABLE scans ADD COLUMN raw_ticker TEXT"); err != nil {
			return err
		}
	}
	if err := exec(tx, "CREATE INDEX IF NOT EXISTS idx_scans_created_at ON scans(created_at)"); err != nil {
		return err
	}

	if err := seedCandidates(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// seedCandidates writes seedCatalog once. Deleting every candidate later does
// not bring the seed back.
func seedCandidates(tx *sql.Tx) error {
	var seeded string
	err := tx.QueryRow("SELECT value FROM app_meta WHERE key = 'catalog_seeded'").Scan(&seeded)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return err
	}
	for _, candidate := range seedCatalog {
		features, err := json.Marshal(candidate.Features)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO candidates (ticker, popularity, industry, features) VALUES (?, ?, ?, ?)",
			candidate.Ticker, candidate.Popularity, candidate.Industry, string(features),
		); err != nil {
			return fmt.Errorf("seed candidate %q: %w", candidate.Ticker, err)
		}
	}
	_, err = tx.Exec("INSERT INTO app_meta (key, value) VALUES ('catalog_seeded', '1')")
	return err
}

func exec(tx *sql.Tx, query string) error {
	_, err := tx.Exec(query)
	return err
}

func tableExists(tx *sql.Tx, table string) (bool, error) {
	var name string
	err := tx.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func tableHasColumn(tx *sql.Tx, table, column string) (bool, error) {
	exists, err := tableExists(tx, table)
	if err != nil || !exists {
		return false, err
	}
	rows, err := tx.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name string
		var ctype string
		var notnull int
		var dflt sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
