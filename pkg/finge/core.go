package finge

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Options controls Core initialization.
type Options struct {
	DBPath             string
	Logger             *slog.Logger
	QuoteCacheTTL      time.Duration
	QuoteFailThreshold int
	QuoteCooldown      time.Duration
	HTTPTimeout        time.Duration
	HTTPClient         HTTPDoer
	NasdaqBaseURL      string
	YahooBaseURL       string
	// OnQuoteFetch, when set, receives the outcome of every quote lookup.
	OnQuoteFetch QuoteObserver
	Vision             VisionConfig
	// Extractor overrides the client built from Vision.
	Extractor TickerExtractor
	// Images defaults to a local store next to the database.
	Images ImageStore
	// Tickers is the static list sampled by RecommendTicker.
	Tickers []string
}

// Core provides access to finge business logic and storage.
type Core struct {
	db      *sql.DB
	logger  *slog.Logger
	quotes  *quoteFetcher
	vision  TickerExtractor
	images  ImageStore
	tickers []string
	dbPath  string
}

// Open initializes a Core using the provided database path.
func Open(dbPath string) (*Core, error) {
	return OpenWithOptions(Options{DBPath: dbPath})
}

// OpenWithOptions initializes a Core using the provided options.
func OpenWithOptions(opts Options) (*Core, error) {
	if opts.DBPath == "" {
		return nil, errors.New("db path is required")
	}
	cleanPath := filepath.Clean(opts.DBPath)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", cleanPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite performs best with a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Warn("pragma busy_timeout failed", "err", err)
	}

	if err := initDatabase(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init database: %w", err)
	}

	quotes := newQuoteFetcher(quoteFetcherOptions{
		Logger:        logger,
		CacheTTL:      defaultDuration(opts.QuoteCacheTTL, 30*time.Second),
		FailThreshold: defaultInt(opts.QuoteFailThreshold, 3),
		Cooldown:      defaultDuration(opts.QuoteCooldown, 120*time.Second),
		HTTPTimeout:   defaultDuration(opts.HTTPTimeout, 10*time.Second),
		HTTPClient:    opts.HTTPClient,
		NasdaqBaseURL: opts.NasdaqBaseURL,
		YahooBaseURL:  opts.YahooBaseURL,
		Observe:       opts.OnQuoteFetch,
	})

	extractor := opts.Extractor
	if extractor == nil {
		extractor, err = NewTickerExtractor(opts.Vision, logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	images := opts.Images
	if images == nil {
		images = NewLocalImageStore(filepath.Join(filepath.Dir(cleanPath), "images"))
	}

	tickers := opts.Tickers
	if len(tickers) == 0 {
		tickers = defaultRecommendTickers
	}

	return &Core{
		db:      db,
		logger:  logger,
		quotes:  quotes,
		vision:  extractor,
		images:  images,
		tickers: tickers,
		dbPath:  cleanPath,
	}, nil
}

// Close releases database resources.
func (c *Core) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// DBPath returns the underlying database path.
func (c *Core) DBPath() string {
	return c.dbPath
}

// NewRand returns an independently seeded generator for one request.
// *rand.Rand is not safe for concurrent use, so callers must not share it.
func NewRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

func defaultDuration(v time.Duration, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}

func defaultInt(v int, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
