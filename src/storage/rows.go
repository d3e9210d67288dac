package storage

import (
	"database/sql"

	"market-analytics/src/helpers"
	"market-analytics/src/models"
)

// -----------------------------------------------------------------------------

func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// -----------------------------------------------------------------------------

func scanCandles(rows *sql.Rows) ([]models.MCandle, error) {
	candles := []models.MCandle{}
	for rows.Next() {
		var c models.MCandle
		var vwap sql.NullFloat64
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &vwap); err != nil {
			return nil, helpers.NewDatabaseError("scan candle", err)
		}
		if vwap.Valid {
			v := vwap.Float64
			c.VWAP = &v
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, helpers.NewDatabaseError("iterate candles", err)
	}
	return candles, nil
}

// -----------------------------------------------------------------------------

func scanStrings(rows *sql.Rows) ([]string, error) {
	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, helpers.NewDatabaseError("scan", err)
		}
		if s != "" {
			out = append(out, s)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, helpers.NewDatabaseError("iterate", err)
	}
	return out, nil
}
