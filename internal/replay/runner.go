package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"cpamm/internal/amm"
	"cpamm/internal/ledger"
	"cpamm/internal/model"
	"cpamm/internal/storage"
)

// Refresher updates a clock from an external source before each batch.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Config controls replay behavior.
type Config struct {
	BatchSize  int
	StateStore StateStore
	Sinks      []storage.ResultSink
	Clock      *Clock
	Refresher  Refresher
}

// Summary counts what a run did with each input line.
type Summary struct {
	Total    int
	Applied  int
	Rejected int
	Skipped  int
	Failed   int
	LastSeq  uint64
}

// Runner replays an operation stream against an engine and its ledgers.
type Runner struct {
	cfg    Config
	engine *amm.Engine
	bank   *ledger.Bank
	shares *ledger.Shares
	logger *zap.Logger
}

func NewRunner(cfg Config, engine *amm.Engine, bank *ledger.Bank, shares *ledger.Shares, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &Runner{
		cfg:    cfg,
		engine: engine,
		bank:   bank,
		shares: shares,
		logger: logger,
	}
}

// Run applies every record of the JSONL file at inputPath whose seq is past
// the saved state, writing results and state after each batch.
func (r *Runner) Run(ctx context.Context, inputPath string) (Summary, error) {
	var summary Summary

	lastSeq, err := r.loadState(ctx)
	if err != nil {
		return summary, err
	}
	summary.LastSeq = lastSeq

	file, err := os.Open(inputPath)
	if err != nil {
		return summary, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	if err := r.refresh(ctx); err != nil {
		return summary, err
	}

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	batch := make([]model.ResultRecord, 0, r.cfg.BatchSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		summary.Total++

		var rec model.OperationRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			summary.Failed++
			r.logger.Warn("decode operation record", zap.Error(err))
			continue
		}
		if rec.Seq <= summary.LastSeq {
			summary.Skipped++
			continue
		}

		r.setClock(rec.Timestamp)
		result := Apply(ctx, r.engine, rec)
		r.setClock(0)

		if result.Status == model.StatusOK {
			summary.Applied++
		} else {
			summary.Rejected++
		}
		summary.LastSeq = rec.Seq
		batch = append(batch, result)

		if len(batch) >= r.cfg.BatchSize {
			if err := r.flush(ctx, batch, summary.LastSeq); err != nil {
				return summary, err
			}
			batch = batch[:0]
			r.logger.Info("replay progress",
				zap.Int("applied", summary.Applied),
				zap.Int("rejected", summary.Rejected),
				zap.Uint64("last_seq", summary.LastSeq),
			)
			if err := r.refresh(ctx); err != nil {
				return summary, err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("scan input: %w", err)
	}

	if err := r.flush(ctx, batch, summary.LastSeq); err != nil {
		return summary, err
	}
	if err := r.engine.Registry().CheckInvariants(); err != nil {
		return summary, fmt.Errorf("check invariants: %w", err)
	}

	r.logger.Info("replay complete",
		zap.Int("total", summary.Total),
		zap.Int("applied", summary.Applied),
		zap.Int("rejected", summary.Rejected),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Uint64("last_seq", summary.LastSeq),
	)

	return summary, nil
}

func (r *Runner) loadState(ctx context.Context) (uint64, error) {
	if r.cfg.StateStore == nil {
		return 0, nil
	}
	snap, ok, err := r.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load state: %w", err)
	}
	if !ok {
		return 0, nil
	}
	if err := Restore(snap, r.engine.Registry(), r.bank, r.shares); err != nil {
		return 0, fmt.Errorf("restore state: %w", err)
	}
	r.logger.Info("resuming from state",
		zap.Uint64("last_seq", snap.LastSeq),
		zap.Int("pools", len(snap.Pools)),
		zap.String("updated_at", snap.UpdatedAt),
	)
	return snap.LastSeq, nil
}

// flush writes the batch to every sink, then saves state.
func (r *Runner) flush(ctx context.Context, batch []model.ResultRecord, lastSeq uint64) error {
	for _, sink := range r.cfg.Sinks {
		if err := sink.PutResults(ctx, batch); err != nil {
			return fmt.Errorf("write results: %w", err)
		}
	}
	if r.cfg.StateStore == nil {
		return nil
	}
	if err := r.cfg.StateStore.Save(ctx, Capture(lastSeq, r.engine.Registry(), r.bank, r.shares)); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (r *Runner) refresh(ctx context.Context) error {
	if r.cfg.Refresher == nil {
		return nil
	}
	if err := r.cfg.Refresher.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh clock: %w", err)
	}
	return nil
}

func (r *Runner) setClock(ts uint64) {
	if r.cfg.Clock != nil {
		r.cfg.Clock.set(ts)
	}
}
