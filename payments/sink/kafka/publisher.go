package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/plenert/payments"
	"github.com/segmentio/kafka-go"
)

// RunIDHeader carries the run id on every published message.
const RunIDHeader = "run-id"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sink publishes one message per account, keyed by client id.
type Sink struct {
	writer messageWriter
	runID  uuid.UUID
}

func New(brokers []string, topic string, runID uuid.UUID) *Sink {
	return &Sink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		runID: runID,
	}
}

// AccountBalance is the JSON value of a published message.
type AccountBalance struct {
	Client    uint16 `json:"client"`
	Available string `json:"available"`
	Held      string `json:"held"`
	Total     string `json:"total"`
	Locked    bool   `json:"locked"`
}

func (p *Sink) messages(rows []payments.AccountRow) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(rows))
	for _, row := range rows {
		data, err := json.Marshal(AccountBalance{
			Client:    row.Client,
			Available: row.Available.StringFixedBank(payments.OutputPlaces),
			Held:      row.Held.StringFixedBank(payments.OutputPlaces),
			Total:     row.Total.StringFixedBank(payments.OutputPlaces),
			Locked:    row.Locked,
		})
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(strconv.Itoa(int(row.Client))),
			Value: data,
			Headers: []kafka.Header{
				{Key: RunIDHeader, Value: []byte(p.runID.String())},
			},
		})
	}
	return msgs, nil
}

func (p *Sink) Write(ctx context.Context, rows []payments.AccountRow) error {
	if len(rows) == 0 {
		return nil
	}
	msgs, err := p.messages(rows)
	if err != nil {
		return fmt.Errorf("kafka sink: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka sink: %w", err)
	}
	return nil
}

func (p *Sink) Close() error {
	return p.writer.Close()
}
