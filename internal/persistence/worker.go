package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"SynthPool/internal/core"
	"SynthPool/internal/observability"
)

// Worker drains the persist channel and batch-writes to Postgres. The
// persist channel uses BLOCKING sends from the core, so if this worker
// falls behind the core stalls — guaranteeing no applied operation is
// lost.
type Worker struct {
	writer       *OperationLogWriter
	db           *sql.DB
	inputChan    <-chan core.AppliedOp
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
}

func NewWorker(
	db *sql.DB,
	inputChan <-chan core.AppliedOp,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
) *Worker {
	return &Worker{
		writer:       NewOperationLogWriter(db),
		db:           db,
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
	}
}

// ToOperationRow flattens an applied operation for storage.
func ToOperationRow(op core.AppliedOp) OperationRow {
	return OperationRow{
		Sequence:   op.Sequence,
		CommandID:  op.Command.ID.String(),
		Kind:       op.Command.Kind.String(),
		Caller:     op.Command.Caller.String(),
		Account:    op.Command.Account.String(),
		Amount:     op.Command.Amount,
		Collateral: op.Command.Collateral,
		Price:      op.Command.Price,
		CycleIndex: op.CycleIndex,
		State:      op.State.String(),
		Timestamp:  op.Command.Timestamp,
	}
}

func toCycleRow(op core.AppliedOp) CycleRow {
	rec := op.CompletedCycle
	return CycleRow{
		CycleIndex:    rec.Index,
		SettlePrice:   rec.SettlePrice,
		Open:          rec.Open,
		High:          rec.High,
		Low:           rec.Low,
		Close:         rec.Close,
		LPCount:       rec.LPCount,
		Interest:      rec.Interest,
		InterestIndex: rec.InterestIndex,
		Halted:        rec.Halted,
		CompletedAt:   rec.CompletedAt,
	}
}

// Run starts the worker loop. It batches incoming operations and
// flushes either when the batch is full or the flush timeout expires.
// Blocks until ctx is cancelled.
func (pw *Worker) Run(ctx context.Context) error {
	opBatch := make([]OperationRow, 0, pw.batchSize)
	cycleBatch := make([]CycleRow, 0, 8)

	timer := time.NewTimer(pw.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			// Graceful shutdown: flush remaining
			if len(opBatch) > 0 {
				if err := pw.flush(context.Background(), opBatch, cycleBatch); err != nil {
					log.Printf("ERROR: final flush failed: %v", err)
				}
			}
			return ctx.Err()

		case op, ok := <-pw.inputChan:
			if !ok {
				if len(opBatch) > 0 {
					if err := pw.flush(context.Background(), opBatch, cycleBatch); err != nil {
						log.Printf("ERROR: final flush failed: %v", err)
					}
				}
				return nil
			}

			opBatch = append(opBatch, ToOperationRow(op))
			if op.CompletedCycle != nil {
				cycleBatch = append(cycleBatch, toCycleRow(op))
			}

			if len(opBatch) >= pw.batchSize {
				if err := pw.flushWithRetry(ctx, opBatch, cycleBatch); err != nil {
					log.Printf("ERROR: batch flush failed after retries: %v", err)
				}
				opBatch = opBatch[:0]
				cycleBatch = cycleBatch[:0]
				timer.Reset(pw.flushTimeout)
			}

		case <-timer.C:
			if len(opBatch) > 0 {
				if err := pw.flushWithRetry(ctx, opBatch, cycleBatch); err != nil {
					log.Printf("ERROR: timeout flush failed after retries: %v", err)
				}
				opBatch = opBatch[:0]
				cycleBatch = cycleBatch[:0]
			}
			timer.Reset(pw.flushTimeout)
		}
	}
}

// flushWithRetry attempts to flush with exponential backoff. The worker
// never drops operations — it retries until the write succeeds or the
// context is cancelled.
func (pw *Worker) flushWithRetry(ctx context.Context, ops []OperationRow, cycles []CycleRow) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			log.Printf("WARN: persistence retry attempt %d (backoff=%v, ops=%d)",
				attempt, backoff, len(ops))
			select {
			case <-ctx.Done():
				// Graceful shutdown — one final attempt with background
				// context to avoid losing the batch.
				if finalErr := pw.flush(context.Background(), ops, cycles); finalErr != nil {
					return fmt.Errorf("final flush on shutdown failed: %w", finalErr)
				}
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := pw.flush(ctx, ops, cycles)
		if err == nil {
			if attempt > 0 {
				log.Printf("INFO: persistence flush succeeded after %d retries", attempt)
			}
			return nil
		}

		if pw.metrics != nil {
			pw.metrics.PersistErrors.WithLabelValues("retry").Inc()
		}
	}
}

func (pw *Worker) flush(ctx context.Context, ops []OperationRow, cycles []CycleRow) error {
	start := time.Now()

	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		if pw.metrics != nil {
			pw.metrics.PersistErrors.WithLabelValues("tx_begin").Inc()
		}
		return err
	}
	defer tx.Rollback()

	if err := pw.writer.WriteOperationBatch(ctx, tx, ops); err != nil {
		if pw.metrics != nil {
			pw.metrics.PersistErrors.WithLabelValues("write_operations").Inc()
		}
		return err
	}

	if err := pw.writer.WriteCycleBatch(ctx, tx, cycles); err != nil {
		if pw.metrics != nil {
			pw.metrics.PersistErrors.WithLabelValues("write_cycles").Inc()
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		if pw.metrics != nil {
			pw.metrics.PersistErrors.WithLabelValues("tx_commit").Inc()
		}
		return err
	}

	if pw.metrics != nil {
		pw.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		pw.metrics.PersistBatchSize.Observe(float64(len(ops)))
		pw.metrics.PersistOpsWritten.Add(float64(len(ops)))
		pw.metrics.PersistCyclesWritten.Add(float64(len(cycles)))
		if len(ops) > 0 {
			pw.metrics.PersistLastSequence.Set(float64(ops[len(ops)-1].Sequence))
		}
	}

	return nil
}
