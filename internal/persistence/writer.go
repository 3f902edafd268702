package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// OperationLogWriter writes applied operations and completed cycles to
// Postgres using multi-row INSERT. Writes are idempotent: conflicting
// rows (same sequence / cycle index) are skipped.
type OperationLogWriter struct {
	db *sql.DB
}

// OperationRow represents a row in synth.operations
type OperationRow struct {
	Sequence   int64
	CommandID  string
	Kind       string
	Caller     string
	Account    string
	Amount     int64
	Collateral int64
	Price      int64
	CycleIndex int64
	State      string
	Timestamp  time.Time
}

// CycleRow represents a row in synth.cycles
type CycleRow struct {
	CycleIndex    int64
	SettlePrice   int64
	Open          int64
	High          int64
	Low           int64
	Close         int64
	LPCount       int64
	Interest      int64
	InterestIndex int64
	Halted        bool
	CompletedAt   time.Time
}

func NewOperationLogWriter(db *sql.DB) *OperationLogWriter {
	return &OperationLogWriter{db: db}
}

// WriteOperationBatch writes a batch of operations inside the given tx.
func (w *OperationLogWriter) WriteOperationBatch(ctx context.Context, tx *sql.Tx, ops []OperationRow) error {
	if len(ops) == 0 {
		return nil
	}

	query := `INSERT INTO synth.operations
		(sequence, command_id, kind, caller, account, amount, collateral, price, cycle_index, state, timestamp)
		VALUES `

	values := make([]string, 0, len(ops))
	args := make([]interface{}, 0, len(ops)*11)

	for i, o := range ops {
		base := i * 11
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10, base+11,
		))
		args = append(args,
			o.Sequence, o.CommandID, o.Kind, o.Caller, o.Account,
			o.Amount, o.Collateral, o.Price, o.CycleIndex, o.State, o.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING" // Idempotent writes

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WriteCycleBatch writes completed-cycle records inside the given tx.
func (w *OperationLogWriter) WriteCycleBatch(ctx context.Context, tx *sql.Tx, cycles []CycleRow) error {
	if len(cycles) == 0 {
		return nil
	}

	query := `INSERT INTO synth.cycles
		(cycle_index, settle_price, open, high, low, close, lp_count, interest, interest_index, halted, completed_at)
		VALUES `

	values := make([]string, 0, len(cycles))
	args := make([]interface{}, 0, len(cycles)*11)

	for i, c := range cycles {
		base := i * 11
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10, base+11,
		))
		args = append(args,
			c.CycleIndex, c.SettlePrice, c.Open, c.High, c.Low, c.Close,
			c.LPCount, c.Interest, c.InterestIndex, c.Halted, c.CompletedAt,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (cycle_index) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
