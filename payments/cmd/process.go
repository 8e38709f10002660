package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/hako/durafmt"
	"github.com/plenert/payments"
	"github.com/plenert/payments/payments/internal/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Summary describes a finished replay.
type Summary struct {
	payments.Stats
	Malformed  int
	Suppressed int
	Accounts   int
	Locked     int
	Elapsed    time.Duration
}

// Records is the number of lines read after the header.
func (s Summary) Records() int {
	return s.Applied + s.Invalid + s.Unresolved + s.Malformed
}

// Processor replays one transaction source into a fresh engine.
type Processor struct {
	cfg     config.Config
	logger  *zap.Logger
	engine  *payments.Engine
	limiter *rate.Limiter
	runID   uuid.UUID

	malformed  int
	suppressed int
}

func NewProcessor(cfg config.Config, logger *zap.Logger, runID uuid.UUID) *Processor {
	var opts []payments.Option
	if cfg.StrictTxIDs {
		opts = append(opts, payments.WithStrictTxIDs())
	}

	return &Processor{
		cfg:     cfg,
		logger:  logger.With(zap.String("run_id", runID.String())),
		engine:  payments.NewEngine(opts...),
		limiter: rate.NewLimiter(rate.Limit(cfg.WarnRate), cfg.WarnBurst),
		runID:   runID,
	}
}

// Run reads every record of the named source and applies it. Only a source
// that cannot be opened or read is an error; bad records, and all records
// under an unusable header, are logged and skipped.
func (p *Processor) Run(ctx context.Context, filename string) error {
	src, err := payments.OpenSource(filename)
	if err != nil {
		return err
	}
	defer src.Close()

	return p.replay(ctx, src)
}

func (p *Processor) replay(ctx context.Context, r io.Reader) error {
	var opts []payments.ParseOption
	if p.cfg.AmountExpressions {
		opts = append(opts, payments.WithAmountExpressions())
	}
	d := payments.NewDecoder(r, opts...)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := d.Next()
		if err == io.EOF {
			return nil
		}

		var malformed *payments.MalformedError
		switch {
		case err == nil:
		case errors.As(err, &malformed):
			p.malformed++
			p.logger.Debug("skipping malformed record", zap.Int("line", malformed.Line), zap.Error(malformed.Err))
			continue
		case errors.Is(err, payments.ErrEmptyInput):
			p.logger.Warn("transaction source is empty")
			return nil
		case errors.Is(err, payments.ErrBadHeader):
			p.logger.Warn("unusable header, every record will be skipped", zap.Error(err))
			continue
		default:
			return fmt.Errorf("%w: %w", payments.ErrSourceUnavailable, err)
		}

		if err := p.engine.Apply(rec); err != nil {
			p.warnInvalid(d.Line(), rec, err)
		}
	}
}

func (p *Processor) warnInvalid(line int, rec payments.Record, err error) {
	if !p.limiter.Allow() {
		p.suppressed++
		return
	}
	p.logger.Warn("invalid record",
		zap.Int("line", line),
		zap.Stringer("type", rec.Kind),
		zap.Uint16("client", rec.Client),
		zap.Uint32("tx", rec.Tx),
		zap.Error(err),
	)
}

// Snapshot returns the account rows of the replay so far.
func (p *Processor) Snapshot() []payments.AccountRow {
	return p.engine.Snapshot()
}

// Summary reports counters, with elapsed measured from start.
func (p *Processor) Summary(rows []payments.AccountRow, start time.Time) Summary {
	s := Summary{
		Stats:      p.engine.Stats(),
		Malformed:  p.malformed,
		Suppressed: p.suppressed,
		Accounts:   len(rows),
		Elapsed:    time.Since(start),
	}
	for _, row := range rows {
		if row.Locked {
			s.Locked++
		}
	}
	return s
}

func (p *Processor) logSummary(s Summary) {
	p.logger.Info("replay finished",
		zap.Int("records", s.Records()),
		zap.Int("applied", s.Applied),
		zap.Int("invalid", s.Invalid),
		zap.Int("unresolved", s.Unresolved),
		zap.Int("malformed", s.Malformed),
		zap.Int("suppressed_warnings", s.Suppressed),
		zap.Int("accounts", s.Accounts),
		zap.Int("locked", s.Locked),
		zap.String("elapsed", durafmt.Parse(s.Elapsed).LimitFirstN(2).String()),
	)
}
