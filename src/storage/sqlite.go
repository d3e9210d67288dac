package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"market-analytics/src/helpers"
	"market-analytics/src/logger"
	"market-analytics/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type AsyncSQLiteDB struct {
	Config models.MStorageConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg models.MStorageConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	if cfg.DBPath == "" {
		return nil, helpers.NewValidationError("sqlite path is empty")
	}
	if log == nil {
		log = logger.NewSilentLogger()
	}
	return &AsyncSQLiteDB{
		Config: cfg,
		Logger: log.Named("SQLite"),
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize() error {
	db, err := sql.Open("sqlite", d.Config.DBPath)
	if err != nil {
		return helpers.NewDatabaseError("open sqlite", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return helpers.NewDatabaseError("ping sqlite", err)
	}

	// SQLite allows one writer at a time
	db.SetMaxOpenConns(1)
	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	if err := d.createTables(); err != nil {
		return err
	}
	d.Logger.Info("SQLite initialized (%s)", d.Config.DBPath)
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS candles (
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			open REAL,
			high REAL,
			low REAL,
			close REAL,
			volume REAL,
			vwap REAL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (symbol, timeframe, timestamp)
		);`,
		`CREATE TABLE IF NOT EXISTS quotes (
			symbol TEXT PRIMARY KEY,
			price REAL,
			change REAL,
			change_percent REAL,
			volume REAL,
			timestamp INTEGER,
			bid REAL,
			ask REAL,
			bid_size REAL,
			ask_size REAL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS fundamentals (
			symbol TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			symbol TEXT PRIMARY KEY,
			updated_at INTEGER NOT NULL
		);`,
	}
	for _, q := range queries {
		if _, err := d.DB.Exec(q); err != nil {
			return helpers.NewDatabaseError("create sqlite tables", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// SaveSeries replaces the stored candles of symbol/timeframe in one transaction.
func (d *AsyncSQLiteDB) SaveSeries(series models.MHistoricalSeries) error {
	tx, err := d.DB.Begin()
	if err != nil {
		return helpers.NewDatabaseError("begin", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM candles WHERE symbol = ? AND timeframe = ?", series.Symbol, series.Timeframe); err != nil {
		return helpers.NewDatabaseError("delete candles", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO candles (symbol, timeframe, timestamp, open, high, low, close, volume, vwap, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return helpers.NewDatabaseError("prepare candles", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Unix()
	for _, c := range series.Candles {
		if _, err := stmt.Exec(series.Symbol, series.Timeframe, c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume, nullableFloat(c.VWAP), now); err != nil {
			return helpers.NewDatabaseError("insert candle", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return helpers.NewDatabaseError("commit candles", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) LoadSeries(symbol, timeframe string) ([]models.MCandle, error) {
	rows, err := d.DB.Query(`
		SELECT timestamp, open, high, low, close, volume, vwap
		FROM candles WHERE symbol = ? AND timeframe = ?
		ORDER BY timestamp ASC
	`, symbol, timeframe)
	if err != nil {
		return nil, helpers.NewDatabaseError("query candles", err)
	}
	defer rows.Close()
	return scanCandles(rows)
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveQuote(q models.MRealTimeQuote) error {
	_, err := d.DB.Exec(`
		INSERT INTO quotes (symbol, price, change, change_percent, volume, timestamp, bid, ask, bid_size, ask_size, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol) DO UPDATE SET
			price = excluded.price,
			change = excluded.change,
			change_percent = excluded.change_percent,
			volume = excluded.volume,
			timestamp = excluded.timestamp,
			bid = excluded.bid,
			ask = excluded.ask,
			bid_size = excluded.bid_size,
			ask_size = excluded.ask_size,
			updated_at = excluded.updated_at
	`, q.Symbol, q.Price, q.Change, q.ChangePercent, q.Volume, q.Timestamp, q.Bid, q.Ask, q.BidSize, q.AskSize, time.Now().UTC().Unix())
	if err != nil {
		return helpers.NewDatabaseError("save quote", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// LoadQuote returns the persisted quote of symbol, if any.
func (d *AsyncSQLiteDB) LoadQuote(symbol string) (*models.MRealTimeQuote, error) {
	q := models.MRealTimeQuote{Symbol: symbol}
	err := d.DB.QueryRow(`
		SELECT price, change, change_percent, volume, timestamp, bid, ask, bid_size, ask_size
		FROM quotes WHERE symbol = ?
	`, symbol).Scan(&q.Price, &q.Change, &q.ChangePercent, &q.Volume, &q.Timestamp, &q.Bid, &q.Ask, &q.BidSize, &q.AskSize)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, helpers.NewDatabaseError("load quote", err)
	}
	return &q, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveFundamentals(snapshot models.MFundamentalSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal fundamentals: %w", err)
	}
	_, err = d.DB.Exec(`
		INSERT INTO fundamentals (symbol, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (symbol) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, snapshot.Symbol, string(data), time.Now().UTC().Unix())
	if err != nil {
		return helpers.NewDatabaseError("save fundamentals", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// SaveSubscriptions replaces the stored subscription set.
func (d *AsyncSQLiteDB) SaveSubscriptions(symbols []string) error {
	tx, err := d.DB.Begin()
	if err != nil {
		return helpers.NewDatabaseError("begin", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM subscriptions"); err != nil {
		return helpers.NewDatabaseError("clear subscriptions", err)
	}
	now := time.Now().UTC().Unix()
	for _, s := range symbols {
		if _, err := tx.Exec("INSERT INTO subscriptions (symbol, updated_at) VALUES (?, ?)", s, now); err != nil {
			return helpers.NewDatabaseError("insert subscription", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return helpers.NewDatabaseError("commit subscriptions", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) LoadSubscriptions() ([]string, error) {
	rows, err := d.DB.Query("SELECT symbol FROM subscriptions ORDER BY symbol")
	if err != nil {
		return nil, helpers.NewDatabaseError("query subscriptions", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// -----------------------------------------------------------------------------

// CleanupOldData drops rows not refreshed within the retention window.
func (d *AsyncSQLiteDB) CleanupOldData() error {
	if d.Config.RetentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -d.Config.RetentionDays).Unix()
	d.Logger.Info("Cleaning up data older than %d days (updated_at < %d)", d.Config.RetentionDays, cutoff)

	for _, table := range []string{"candles", "quotes", "fundamentals"} {
		if _, err := d.DB.Exec(fmt.Sprintf("DELETE FROM %s WHERE updated_at < ?", table), cutoff); err != nil {
			return helpers.NewDatabaseError("cleanup "+table, err)
		}
	}

	d.Logger.Info("Cleanup completed")
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
