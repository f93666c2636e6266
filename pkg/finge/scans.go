package finge

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

const (
	defaultScanLimit = 50
	maxScanLimit     = 200
)

// scanTimeLayout is fixed-width so created_at sorts as text.
const scanTimeLayout = "2006-01-02T15:04:05.000000Z"

// ScanImage stores an uploaded image, asks the vision model for its ticker,
// fetches quote data and records the scan. An image showing no listed company
// is recorded with status not_public and reported as ErrCodeNotPublic. With
// vision disabled it fails with ErrCodeUnsupported and stores nothing.
func (c *Core) ScanImage(ctx context.Context, img Image) (*ScanResult, error) {
	img, err := ValidateImage(img)
	if err != nil {
		return nil, err
	}
	if disabled, ok := c.vision.(disabledExtractor); ok {
		_, err := disabled.ExtractTicker(ctx, img)
		return nil, err
	}
	stored, err := c.images.Put(ctx, img)
	if err != nil {
		return nil, err
	}
	scan := Scan{
		ImageKey:    stored.Key,
		ImageURL:    stored.URL,
		ContentType: stored.ContentType,
	}

	ticker, raw, err := c.ExtractTicker(ctx, img)
	scan.RawTicker = raw
	if err != nil {
		scan.Status = ScanStatusFailed
		if IsErrorCode(err, ErrCodeNotPublic) {
			scan.Status = ScanStatusNotPublic
		}
		c.recordFailedScan(ctx, scan, err)
		return nil, err
	}
	scan.Ticker = ticker

	snapshot, yahoo, err := c.fetchQuotes(ctx, ticker)
	if err != nil {
		scan.Status = ScanStatusFailed
		c.recordFailedScan(ctx, scan, err)
		return nil, err
	}
	fundamentals, err := c.quotes.fetchFundamentals(ctx, ticker)
	if err != nil {
		c.logger.Debug("fundamentals unavailable", "ticker", ticker, "err", err)
	}
	card := BuildDeckCard(snapshot, fundamentals, nil, yahoo)

	scan.Status = ScanStatusOK
	scan.Card = card
	if snapshot != nil {
		scan.CompanyName = stringPtr(cleanField(snapshot.CompanyName))
		scan.LastSalePrice = stringPtr(cleanField(snapshot.LastSalePrice))
	}
	if scan.CompanyName == nil && yahoo != nil {
		scan.CompanyName = stringPtr(yahoo.Name)
	}
	id, err := c.insertScan(ctx, scan)
	if err != nil {
		return nil, err
	}

	result := &ScanResult{
		ScanID: id,
		Ticker: ticker,
		Image:  stored,
		Nasdaq: snapshot,
		Card:   card,
	}
	if yahoo != nil {
		result.YahooFinance = &YahooSummary{CompanyName: yahoo.Name, Price: yahoo.CurrentPrice}
	}
	c.logger.Info("image scanned", "scan_id", id, "ticker", ticker, "image_key", stored.Key)
	return result, nil
}

func (c *Core) recordFailedScan(ctx context.Context, scan Scan, cause error) {
	scan.Error = stringPtr(cause.Error())
	id, err := c.insertScan(ctx, scan)
	if err != nil {
		c.logger.Error("record failed scan", "err", err, "cause", cause)
		return
	}
	c.logger.Info("image scan unsuccessful", "scan_id", id, "status", scan.Status, "raw", scan.RawTicker, "err", cause)
}

func (c *Core) insertScan(ctx context.Context, scan Scan) (int64, error) {
	var cardJSON *string
	if scan.Card != nil {
		data, err := json.Marshal(scan.Card)
		if err != nil {
			return 0, WrapError(ErrCodeInternal, "encode card", err)
		}
		cardJSON = stringPtr(string(data))
	}
	result, err := c.db.ExecContext(ctx, `
		INSERT INTO scans (ticker, raw_ticker, status, image_key, image_url, content_type,
			company_name, last_sale_price, card_json, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, nullIfEmpty(scan.Ticker), nullIfEmpty(scan.RawTicker), scan.Status, scan.ImageKey, scan.ImageURL,
		scan.ContentType, scan.CompanyName, scan.LastSalePrice, cardJSON, scan.Error,
		time.Now().UTC().Format(scanTimeLayout))
	if err != nil {
		return 0, WrapError(ErrCodeDatabase, "insert scan", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, WrapError(ErrCodeDatabase, "insert scan", err)
	}
	return id, nil
}

// ListScans returns recorded scans, newest first.
func (c *Core) ListScans(ctx context.Context, limit, offset int) ([]Scan, error) {
	if limit <= 0 {
		limit = defaultScanLimit
	}
	if limit > maxScanLimit {
		limit = maxScanLimit
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := c.db.QueryContext(ctx, scanSelect+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, WrapError(ErrCodeDatabase, "list scans", err)
	}
	defer rows.Close()

	scans := []Scan{}
	for rows.Next() {
		scan, err := scanScan(rows)
		if err != nil {
			return nil, err
		}
		scans = append(scans, scan)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapError(ErrCodeDatabase, "list scans", err)
	}
	return scans, nil
}

// GetScan returns one scan by id.
func (c *Core) GetScan(ctx context.Context, id int64) (*Scan, error) {
	row := c.db.QueryRowContext(ctx, scanSelect+" WHERE id = ?", id)
	scan, err := scanScan(row)
	if err != nil {
		if IsErrorCode(err, ErrCodeNotFound) {
			return nil, Errorf(ErrCodeNotFound, "scan %d not found", id)
		}
		return nil, err
	}
	return &scan, nil
}

const scanSelect = `
	SELECT id, COALESCE(ticker, ''), COALESCE(raw_ticker, ''), status, COALESCE(image_key, ''),
		COALESCE(image_url, ''), COALESCE(content_type, ''), company_name, last_sale_price,
		card_json, error, created_at
	FROM scans`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScan(row rowScanner) (Scan, error) {
	var scan Scan
	var companyName, lastSalePrice, cardJSON, scanErr sql.NullString
	err := row.Scan(&scan.ID, &scan.Ticker, &scan.RawTicker, &scan.Status, &scan.ImageKey,
		&scan.ImageURL, &scan.ContentType, &companyName, &lastSalePrice, &cardJSON, &scanErr, &scan.CreatedAt)
	if err == sql.ErrNoRows {
		return Scan{}, NewError(ErrCodeNotFound, "scan not found")
	}
	if err != nil {
		return Scan{}, WrapError(ErrCodeDatabase, "scan row", err)
	}
	scan.CompanyName = nullStringPtr(companyName)
	scan.LastSalePrice = nullStringPtr(lastSalePrice)
	scan.Error = nullStringPtr(scanErr)
	if cardJSON.Valid && cardJSON.String != "" {
		var card DeckCard
		if err := json.Unmarshal([]byte(cardJSON.String), &card); err != nil {
			return Scan{}, WrapError(ErrCodeDatabase, "decode scan card", err)
		}
		scan.Card = &card
	}
	return scan, nil
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
