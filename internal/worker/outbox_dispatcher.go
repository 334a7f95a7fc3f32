package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rbravo-MCR/car-rental-reservations/internal/domain"
	"github.com/rbravo-MCR/car-rental-reservations/internal/repository"
	"github.com/rbravo-MCR/car-rental-reservations/pkg/kafka"
	"github.com/rbravo-MCR/car-rental-reservations/pkg/logger"
)

// HandlerFunc dispatches one claimed outbox event. A nil return marks the
// event DONE; an error schedules a retry with backoff.
type HandlerFunc func(ctx context.Context, event *domain.OutboxEvent) error

// Config holds dispatcher configuration
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	WorkerID     string
}

// DefaultConfig returns production defaults
func DefaultConfig() *Config {
	hostname, _ := os.Hostname()
	return &Config{
		PollInterval: 5 * time.Second,
		BatchSize:    50,
		WorkerID:     fmt.Sprintf("%s-%d", hostname, os.Getpid()),
	}
}

// OutboxDispatcher polls the outbox table and hands claimed events to
// registered handlers. Delivery is at-least-once; consumers dedupe on the
// event id.
type OutboxDispatcher struct {
	outbox   repository.OutboxRepository
	cfg      *Config
	handlers map[string]HandlerFunc
	fallback HandlerFunc

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewOutboxDispatcher creates a dispatcher with no handlers registered
func NewOutboxDispatcher(outbox repository.OutboxRepository, cfg *Config) *OutboxDispatcher {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &OutboxDispatcher{
		outbox:   outbox,
		cfg:      cfg,
		handlers: make(map[string]HandlerFunc),
		stopCh:   make(chan struct{}),
	}
}

// Handle registers a handler for one event type
func (d *OutboxDispatcher) Handle(eventType string, h HandlerFunc) {
	d.handlers[eventType] = h
}

// HandleDefault registers the handler for event types without a dedicated one
func (d *OutboxDispatcher) HandleDefault(h HandlerFunc) {
	d.fallback = h
}

// Start launches the polling loop
func (d *OutboxDispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		log := logger.Get().With(zap.String("worker_id", d.cfg.WorkerID))
		log.Info("outbox dispatcher started",
			zap.Duration("poll_interval", d.cfg.PollInterval),
			zap.Int("batch_size", d.cfg.BatchSize))

		ticker := time.NewTicker(d.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-d.stopCh:
				log.Info("outbox dispatcher stopped")
				return
			case <-ctx.Done():
				log.Info("outbox dispatcher context cancelled")
				return
			case <-ticker.C:
				if _, err := d.DispatchOnce(ctx); err != nil {
					log.Error("outbox dispatch cycle failed", zap.Error(err))
				}
			}
		}
	}()
}

// Stop signals the loop and waits for the in-flight batch
func (d *OutboxDispatcher) Stop() {
	close(d.stopCh)
	d.wg.Wait()
}

// DispatchOnce claims and dispatches batches until the table yields less than
// a full batch. It returns how many events were handled, counting failures.
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) (int, error) {
	total := 0
	for {
		events, err := d.outbox.Claim(ctx, d.cfg.BatchSize, d.cfg.WorkerID)
		if err != nil {
			return total, fmt.Errorf("failed to claim outbox events: %w", err)
		}
		if len(events) == 0 {
			return total, nil
		}

		for _, event := range events {
			d.dispatch(ctx, event)
			total++
		}
		if len(events) < d.cfg.BatchSize {
			return total, nil
		}
	}
}

func (d *OutboxDispatcher) dispatch(ctx context.Context, event *domain.OutboxEvent) {
	log := logger.Get().With(
		zap.String("event_id", event.ID),
		zap.String("event_type", event.EventType),
		zap.String("aggregate_id", event.AggregateID))

	handler, ok := d.handlers[event.EventType]
	if !ok {
		handler = d.fallback
	}
	if handler == nil {
		// Left NEW on purpose; the claim lock expires and another worker,
		// possibly with the handler registered, picks it up.
		log.Warn("no handler for outbox event type")
		return
	}

	if err := handler(ctx, event); err != nil {
		log.Warn("outbox dispatch failed",
			zap.Int("attempts", event.Attempts+1),
			zap.Error(err))
		if markErr := d.outbox.MarkFailed(ctx, event.ID, err.Error()); markErr != nil {
			log.Error("failed to record dispatch failure", zap.Error(markErr))
		}
		return
	}

	if err := d.outbox.MarkDone(ctx, event.ID); err != nil {
		log.Error("failed to mark outbox event done", zap.Error(err))
		return
	}
	log.Debug("outbox event dispatched")
}

// KafkaPublisher returns a handler that publishes events to one topic, keyed
// by aggregate id so per-reservation ordering survives partitioning.
func KafkaPublisher(producer *kafka.Producer, topic string) HandlerFunc {
	return func(ctx context.Context, event *domain.OutboxEvent) error {
		return producer.Produce(ctx, &kafka.Message{
			Topic: topic,
			Key:   []byte(event.AggregateID),
			Value: event.Payload,
			Headers: map[string]string{
				"event_id":       event.ID,
				"event_type":     event.EventType,
				"aggregate_type": event.AggregateType,
			},
			Timestamp: event.CreatedAt,
		})
	}
}
