// Package sink exports the final account snapshot of a run to an external
// system in addition to the rows printed on stdout.
package sink

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/plenert/payments"
	"github.com/plenert/payments/payments/internal/config"
	"github.com/plenert/payments/payments/sink/kafka"
	"github.com/plenert/payments/payments/sink/postgres"
)

// Sink receives the snapshot once, at the end of a run.
type Sink interface {
	Write(ctx context.Context, rows []payments.AccountRow) error
	Close() error
}

var (
	_ Sink = (*postgres.Sink)(nil)
	_ Sink = (*kafka.Sink)(nil)
)

// Open returns the sink selected by cfg, or nil for config.SinkNone. Every
// exported row is tagged with runID.
func Open(cfg config.Config, runID uuid.UUID) (Sink, error) {
	switch cfg.Sink {
	case config.SinkNone, "":
		return nil, nil
	case config.SinkPostgres:
		s, err := postgres.Open(cfg.Postgres.DSN, cfg.Postgres.Table, runID)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.SinkKafka:
		return kafka.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, runID), nil
	default:
		return nil, fmt.Errorf("unknown sink %q", cfg.Sink)
	}
}
