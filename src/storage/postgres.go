package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"market-analytics/src/helpers"
	"market-analytics/src/logger"
	"market-analytics/src/models"

	_ "github.com/lib/pq"
)

var schemaNameRegex = regexp.MustCompile(`[^a-z0-9_]`)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config models.MStorageConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

// NewPostgresDB stores its tables in a schema named after the executable.
func NewPostgresDB(cfg models.MStorageConfig, log *logger.Logger) (*PostgresDB, error) {
	if cfg.DBConnectionString == "" {
		return nil, helpers.NewValidationError("postgres connection string is empty")
	}
	if log == nil {
		log = logger.NewSilentLogger()
	}

	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}

	return &PostgresDB{
		Config: cfg,
		Schema: SchemaName(filepath.Base(exe)),
		Logger: log.Named("Postgres"),
	}, nil
}

// -----------------------------------------------------------------------------

// SchemaName turns a binary name into a safe schema identifier.
func SchemaName(exe string) string {
	name := strings.ToLower(strings.TrimSuffix(exe, filepath.Ext(exe)))
	name = schemaNameRegex.ReplaceAllString(name, "_")
	if name == "" {
		return "market_analytics"
	}
	return name
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	db, err := sql.Open("postgres", d.Config.DBConnectionString)
	if err != nil {
		return helpers.NewDatabaseError("open postgres", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return helpers.NewDatabaseError("ping postgres", err)
	}
	d.DB = db

	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return helpers.NewDatabaseError("create schema "+d.Schema, err)
	}
	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) table(name string) string {
	return fmt.Sprintf(`"%s"."%s"`, d.Schema, name)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables() error {
	queries := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			timestamp BIGINT NOT NULL,
			open DOUBLE PRECISION,
			high DOUBLE PRECISION,
			low DOUBLE PRECISION,
			close DOUBLE PRECISION,
			volume DOUBLE PRECISION,
			vwap DOUBLE PRECISION,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (symbol, timeframe, timestamp)
		);`, d.table("candles")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			symbol TEXT PRIMARY KEY,
			price DOUBLE PRECISION,
			change DOUBLE PRECISION,
			change_percent DOUBLE PRECISION,
			volume DOUBLE PRECISION,
			timestamp BIGINT,
			bid DOUBLE PRECISION,
			ask DOUBLE PRECISION,
			bid_size DOUBLE PRECISION,
			ask_size DOUBLE PRECISION,
			updated_at BIGINT NOT NULL
		);`, d.table("quotes")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			symbol TEXT PRIMARY KEY,
			data JSONB NOT NULL,
			updated_at BIGINT NOT NULL
		);`, d.table("fundamentals")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			symbol TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			ref_schema TEXT,
			ref_table TEXT,
			ref_field TEXT,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`, d.table("symbols")),
	}
	for _, q := range queries {
		if _, err := d.DB.Exec(q); err != nil {
			return helpers.NewDatabaseError("create postgres tables", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveSeries(series models.MHistoricalSeries) error {
	tx, err := d.DB.Begin()
	if err != nil {
		return helpers.NewDatabaseError("begin", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE symbol = $1 AND timeframe = $2`, d.table("candles")), series.Symbol, series.Timeframe); err != nil {
		return helpers.NewDatabaseError("delete candles", err)
	}

	stmt, err := tx.Prepare(fmt.Sprintf(`
		INSERT INTO %s (symbol, timeframe, timestamp, open, high, low, close, volume, vwap, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, d.table("candles")))
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

func (d *PostgresDB) LoadSeries(symbol, timeframe string) ([]models.MCandle, error) {
	rows, err := d.DB.Query(fmt.Sprintf(`
		SELECT timestamp, open, high, low, close, volume, vwap
		FROM %s WHERE symbol = $1 AND timeframe = $2
		ORDER BY timestamp ASC
	`, d.table("candles")), symbol, timeframe)
	if err != nil {
		return nil, helpers.NewDatabaseError("query candles", err)
	}
	defer rows.Close()
	return scanCandles(rows)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveQuote(q models.MRealTimeQuote) error {
	_, err := d.DB.Exec(fmt.Sprintf(`
		INSERT INTO %s (symbol, price, change, change_percent, volume, timestamp, bid, ask, bid_size, ask_size, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (symbol) DO UPDATE SET
			price = EXCLUDED.price,
			change = EXCLUDED.change,
			change_percent = EXCLUDED.change_percent,
			volume = EXCLUDED.volume,
			timestamp = EXCLUDED.timestamp,
			bid = EXCLUDED.bid,
			ask = EXCLUDED.ask,
			bid_size = EXCLUDED.bid_size,
			ask_size = EXCLUDED.ask_size,
			updated_at = EXCLUDED.updated_at
	`, d.table("quotes")), q.Symbol, q.Price, q.Change, q.ChangePercent, q.Volume, q.Timestamp, q.Bid, q.Ask, q.BidSize, q.AskSize, time.Now().UTC().Unix())
	if err != nil {
		return helpers.NewDatabaseError("save quote", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveFundamentals(snapshot models.MFundamentalSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal fundamentals: %w", err)
	}
	_, err = d.DB.Exec(fmt.Sprintf(`
		INSERT INTO %s (symbol, data, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (symbol) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`, d.table("fundamentals")), snapshot.Symbol, string(data), time.Now().UTC().Unix())
	if err != nil {
		return helpers.NewDatabaseError("save fundamentals", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// CleanupOldData drops rows not refreshed within the retention window.
func (d *PostgresDB) CleanupOldData() error {
	if d.Config.RetentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -d.Config.RetentionDays).Unix()
	d.Logger.Info("Cleaning up data older than %d days (updated_at < %d)", d.Config.RetentionDays, cutoff)

	for _, name := range []string{"candles", "quotes", "fundamentals"} {
		if _, err := d.DB.Exec(fmt.Sprintf(`DELETE FROM %s WHERE updated_at < $1`, d.table(name)), cutoff); err != nil {
			return helpers.NewDatabaseError("cleanup "+name, err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
