package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/plenert/payments"
)

var columns = []string{"run_id", "client", "available", "held", "total", "locked", "exported_at"}

// Sink copies a snapshot into a PostgreSQL table. Each run is a separate
// set of rows keyed by run id; nothing is ever read back.
type Sink struct {
	db    *sql.DB
	table string
	runID uuid.UUID
	now   func() time.Time
}

// Open connects to dsn. The connection is only used on Write.
func Open(dsn, table string, runID uuid.UUID) (*Sink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres sink: %w", err)
	}
	return New(db, table, runID), nil
}

func New(db *sql.DB, table string, runID uuid.UUID) *Sink {
	return &Sink{
		db:    db,
		table: table,
		runID: runID,
		now:   time.Now,
	}
}

func createTableSQL(table string) string {
	return `CREATE TABLE IF NOT EXISTS ` + pq.QuoteIdentifier(table) + ` (
	run_id      uuid        NOT NULL,
	client      integer     NOT NULL,
	available   numeric     NOT NULL,
	held        numeric     NOT NULL,
	total       numeric     NOT NULL,
	locked      boolean     NOT NULL,
	exported_at timestamptz NOT NULL,
	PRIMARY KEY (run_id, client)
)`
}

func (p *Sink) rowArgs(row payments.AccountRow, at time.Time) []any {
	return []any{
		p.runID.String(),
		int(row.Client),
		row.Available.StringFixedBank(payments.OutputPlaces),
		row.Held.StringFixedBank(payments.OutputPlaces),
		row.Total.StringFixedBank(payments.OutputPlaces),
		row.Locked,
		at,
	}
}

// Write stores all rows in one transaction using COPY.
func (p *Sink) Write(ctx context.Context, rows []payments.AccountRow) (err error) {
	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres sink: %w", err)
	}

	defer func() {
		if err != nil {
			dbTx.Rollback()
			err = fmt.Errorf("postgres sink: %w", err)
		}
	}()

	if _, err = dbTx.ExecContext(ctx, createTableSQL(p.table)); err != nil {
		return err
	}

	stmt, err := dbTx.PrepareContext(ctx, pq.CopyIn(p.table, columns...))
	if err != nil {
		return err
	}

	at := p.now().UTC()
	for _, row := range rows {
		if _, err = stmt.ExecContext(ctx, p.rowArgs(row, at)...); err != nil {
			stmt.Close()
			return err
		}
	}
	if _, err = stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return err
	}
	if err = stmt.Close(); err != nil {
		return err
	}

	return dbTx.Commit()
}

func (p *Sink) Close() error {
	return p.db.Close()
}
