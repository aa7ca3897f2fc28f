package postgres

import (
	"fmt"

	"github.com/vlogbase/evolve/internal/database/sqlgateway"
)

type Dialect struct {
	ledgerTable string
}

var _ sqlgateway.Dialect = (*Dialect)(nil)

func NewDialect(ledgerTable string) *Dialect {
	return &Dialect{ledgerTable: ledgerTable}
}

func (d Dialect) TableExistsQuery() string {
	return `
		SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name = $1
	`
}

func (d Dialect) ColumnExistsQuery() string {
	return `
		SELECT COUNT(*) FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2
	`
}

func (d Dialect) CreateLedgerQuery() string {
	const createSQL = `
		CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`

	return fmt.Sprintf(createSQL, d.ledgerTable)
}

func (d Dialect) InsertLedgerQuery() string {
	const insertSQL = "INSERT INTO %s (name, applied_at) VALUES ($1, $2);"
	return fmt.Sprintf(insertSQL, d.ledgerTable)
}

func (d Dialect) ReadLedgerQuery() string {
	const readSQL = "SELECT name, applied_at FROM %s ORDER BY applied_at ASC;"
	return fmt.Sprintf(readSQL, d.ledgerTable)
}
