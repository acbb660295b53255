package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stockdata-pipeline/internal/application"
	"stockdata-pipeline/internal/domain"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const EventQuoteIngested = "quote.ingested"

// Publishing is best effort and runs inline with ingestion, so a write is
// bounded well below the provider request timeout.
const (
	publishTimeout   = 5 * time.Second
	writeMaxAttempts = 2
)

// QuoteIngested is the message value written for every newly inserted quote.
type QuoteIngested struct {
	Type      string    `json:"type"`
	Symbol    string    `json:"symbol"`
	Price     string    `json:"price"`
	Volume    int64     `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type Publisher struct {
	w       messageWriter
	topic   string
	timeout time.Duration
	log     *zap.Logger
}

var _ application.EventPublisher = (*Publisher)(nil)

// NewPublisher builds a synchronous writer keyed by symbol, so quotes for one
// symbol stay on one partition.
func NewPublisher(brokers []string, topic string, log *zap.Logger) *Publisher {
	dialer := &kafkago.Dialer{
		Timeout:   publishTimeout,
		DualStack: true,
	}
	w := kafkago.NewWriter(kafkago.WriterConfig{
		Brokers:      brokers,
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		Dialer:       dialer,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: int(kafkago.RequireOne),
		MaxAttempts:  writeMaxAttempts,
		WriteTimeout: publishTimeout,
	})
	return newPublisher(w, topic, log)
}

func newPublisher(w messageWriter, topic string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{w: w, topic: topic, timeout: publishTimeout, log: log}
}

func (p *Publisher) PublishQuote(ctx context.Context, q domain.Quote) error {
	b, err := json.Marshal(QuoteIngested{
		Type:      EventQuoteIngested,
		Symbol:    q.Symbol,
		Price:     q.Price.StringFixed(domain.PriceScale),
		Volume:    q.Volume,
		Timestamp: q.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", EventQuoteIngested, err)
	}
	msg := kafkago.Message{Key: []byte(q.Symbol), Value: b, Time: q.Timestamp}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", p.topic, err)
	}
	p.log.Debug("kafka.published", zap.String("topic", p.topic), zap.String("symbol", q.Symbol))
	return nil
}

func (p *Publisher) Close() error { return p.w.Close() }
