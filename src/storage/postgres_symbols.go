package storage

import (
	"fmt"
	"regexp"
	"time"

	"market-analytics/src/helpers"
)

// Symbol registry of the Postgres backend. Besides plain tickers it accepts
// "schema.table.field" references whose column supplies the tickers.

const (
	SymbolClassic     = "classic"
	SymbolPostgresRef = "postgres_ref"
)

var pgSymbolRegex = regexp.MustCompile(`^(\w+)\.(\w+)\.(\w+)$`)

// SymbolMetadata is one row of the registry.
type SymbolMetadata struct {
	Symbol    string
	Type      string
	RefSchema string
	RefTable  string
	RefField  string
}

// -----------------------------------------------------------------------------

// ParseSymbolRef splits a "schema.table.field" reference.
func ParseSymbolRef(sym string) (SymbolMetadata, bool) {
	m := pgSymbolRegex.FindStringSubmatch(sym)
	if len(m) != 4 {
		return SymbolMetadata{Symbol: sym, Type: SymbolClassic}, false
	}
	return SymbolMetadata{Symbol: sym, Type: SymbolPostgresRef, RefSchema: m[1], RefTable: m[2], RefField: m[3]}, true
}

// -----------------------------------------------------------------------------

// FilterAndRegisterSymbols expands references, registers everything and
// returns the plain tickers.
func (d *PostgresDB) FilterAndRegisterSymbols(rawSymbols []string) ([]string, error) {
	var classic []string
	var entries []SymbolMetadata

	for _, sym := range rawSymbols {
		ref, isRef := ParseSymbolRef(sym)
		if !isRef {
			classic = append(classic, sym)
			entries = append(entries, ref)
			continue
		}

		entries = append(entries, ref)
		loaded, err := d.GetSymbolsFromTable(ref.RefSchema, ref.RefTable, ref.RefField)
		if err != nil {
			return classic, fmt.Errorf("failed to load symbols from %s: %w", sym, err)
		}
		for _, s := range loaded {
			classic = append(classic, s)
			entries = append(entries, SymbolMetadata{Symbol: s, Type: SymbolClassic})
		}
	}

	if err := d.RegisterSymbols(entries); err != nil {
		return classic, fmt.Errorf("failed to register symbols: %w", err)
	}
	return classic, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) RegisterSymbols(symbols []SymbolMetadata) error {
	if len(symbols) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return helpers.NewDatabaseError("begin", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(fmt.Sprintf(`
		INSERT INTO %s (symbol, type, ref_schema, ref_table, ref_field, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol) DO UPDATE SET
			type = EXCLUDED.type,
			ref_schema = EXCLUDED.ref_schema,
			ref_table = EXCLUDED.ref_table,
			ref_field = EXCLUDED.ref_field,
			updated_at = EXCLUDED.updated_at
	`, d.table("symbols")))
	if err != nil {
		return helpers.NewDatabaseError("prepare symbols", err)
	}
	defer stmt.Close()

	for _, s := range symbols {
		if _, err := stmt.Exec(s.Symbol, s.Type, s.RefSchema, s.RefTable, s.RefField, time.Now().UTC()); err != nil {
			return helpers.NewDatabaseError("register symbol", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return helpers.NewDatabaseError("commit symbols", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// SaveSubscriptions replaces the plain tickers of the registry; references
// are kept.
func (d *PostgresDB) SaveSubscriptions(symbols []string) error {
	if _, err := d.DB.Exec(fmt.Sprintf(`DELETE FROM %s WHERE type = $1`, d.table("symbols")), SymbolClassic); err != nil {
		return helpers.NewDatabaseError("clear subscriptions", err)
	}

	entries := make([]SymbolMetadata, 0, len(symbols))
	for _, s := range symbols {
		entries = append(entries, SymbolMetadata{Symbol: s, Type: SymbolClassic})
	}
	return d.RegisterSymbols(entries)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) LoadSubscriptions() ([]string, error) {
	rows, err := d.DB.Query(fmt.Sprintf(`SELECT symbol FROM %s WHERE type = $1 ORDER BY symbol`, d.table("symbols")), SymbolClassic)
	if err != nil {
		return nil, helpers.NewDatabaseError("query subscriptions", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// -----------------------------------------------------------------------------

// GetSymbolsFromTable reads tickers from a column. Identifiers are limited
// to \w+ by the reference pattern and quoted.
func (d *PostgresDB) GetSymbolsFromTable(schema, table, field string) ([]string, error) {
	rows, err := d.DB.Query(fmt.Sprintf(`SELECT "%s" FROM "%s"."%s"`, field, schema, table))
	if err != nil {
		return nil, helpers.NewDatabaseError("query reference table", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}
