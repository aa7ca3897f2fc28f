package sqlite

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
	return "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?;"
}

func (d Dialect) ColumnExistsQuery() string {
	// pragma_table_info requires sqlite 3.16+
	return "SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?;"
}

func (d Dialect) CreateLedgerQuery() string {
	const createSQL = `
		CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL
		);
	`

	return fmt.Sprintf(createSQL, d.ledgerTable)
}

func (d Dialect) InsertLedgerQuery() string {
	const insertSQL = "INSERT INTO %s (name, applied_at) VALUES (?, ?);"
	return fmt.Sprintf(insertSQL, d.ledgerTable)
}

func (d Dialect) ReadLedgerQuery() string {
	const readSQL = "SELECT name, applied_at FROM %s ORDER BY applied_at ASC;"
	return fmt.Sprintf(readSQL, d.ledgerTable)
}
