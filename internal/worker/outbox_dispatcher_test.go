package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rbravo-MCR/car-rental-reservations/internal/domain"
	"github.com/rbravo-MCR/car-rental-reservations/internal/repository"
)

// memoryOutbox mirrors the claim semantics of the SQL repository in memory
type memoryOutbox struct {
	events []*domain.OutboxEvent
}

func (m *memoryOutbox) CreateTx(ctx context.Context, tx pgx.Tx, e *domain.OutboxEvent) error {
	m.events = append(m.events, e)
	return nil
}

func (m *memoryOutbox) Claim(ctx context.Context, limit int, workerID string) ([]*domain.OutboxEvent, error) {
	now := time.Now().UTC()
	var claimed []*domain.OutboxEvent
	for _, e := range m.events {
		if len(claimed) >= limit {
			break
		}
		if e.Status != domain.OutboxStatusNew {
			continue
		}
		if e.NextAttemptAt != nil && e.NextAttemptAt.After(now) {
			continue
		}
		if e.LockedAt != nil && e.LockedAt.After(now.Add(-5*time.Minute)) {
			continue
		}
		e.LockedBy = workerID
		e.LockedAt = &now
		claimed = append(claimed, e)
	}
	return claimed, nil
}

func (m *memoryOutbox) MarkDone(ctx context.Context, id string) error {
	e := m.find(id)
	if e == nil {
		return domain.ErrOutboxEventNotFound
	}
	e.MarkDone(time.Now().UTC())
	return nil
}

func (m *memoryOutbox) MarkFailed(ctx context.Context, id string, dispatchErr string) error {
	e := m.find(id)
	if e == nil {
		return domain.ErrOutboxEventNotFound
	}
	e.MarkFailed(time.Now().UTC(), dispatchErr)
	return nil
}

func (m *memoryOutbox) CountByStatus(ctx context.Context) (map[domain.OutboxStatus]int64, error) {
	out := make(map[domain.OutboxStatus]int64)
	for _, e := range m.events {
		out[e.Status]++
	}
	return out, nil
}

func (m *memoryOutbox) find(id string) *domain.OutboxEvent {
	for _, e := range m.events {
		if e.ID == id {
			return e
		}
	}
	return nil
}

var _ repository.OutboxRepository = (*memoryOutbox)(nil)

func newEvent(t *testing.T, id, eventType string) *domain.OutboxEvent {
	t.Helper()
	e, err := domain.NewOutboxEvent(eventType, domain.AggregateReservation, "RES-20260910-A1B2C", map[string]any{
		"reservation_code": "RES-20260910-A1B2C",
	})
	if err != nil {
		t.Fatalf("NewOutboxEvent error: %v", err)
	}
	e.ID = id
	return e
}

func TestDispatchOnce_MarksDone(t *testing.T) {
	outbox := &memoryOutbox{}
	outbox.events = append(outbox.events,
		newEvent(t, "ev-1", domain.EventReservationCreated),
		newEvent(t, "ev-2", domain.EventPaymentCompleted),
	)

	var published []string
	d := NewOutboxDispatcher(outbox, &Config{PollInterval: time.Second, BatchSize: 10, WorkerID: "test-1"})
	d.HandleDefault(func(ctx context.Context, e *domain.OutboxEvent) error {
		published = append(published, e.ID)
		return nil
	})

	n, err := d.DispatchOnce(context.Background())
	if err != nil {
		t.Fatalf("DispatchOnce error: %v", err)
	}
	if n != 2 {
		t.Errorf("dispatched %d events, want 2", n)
	}
	if len(published) != 2 {
		t.Errorf("published %v, want both events", published)
	}
	for _, e := range outbox.events {
		if e.Status != domain.OutboxStatusDone {
			t.Errorf("event %s status = %s, want DONE", e.ID, e.Status)
		}
	}

	// A DONE event is terminal and never redelivered.
	n, err = d.DispatchOnce(context.Background())
	if err != nil {
		t.Fatalf("DispatchOnce error: %v", err)
	}
	if n != 0 {
		t.Errorf("second cycle dispatched %d events, want 0", n)
	}
	if len(published) != 2 {
		t.Errorf("published %v after redelivery cycle, want no duplicates", published)
	}
}

func TestDispatchOnce_FailureSchedulesRetry(t *testing.T) {
	outbox := &memoryOutbox{}
	outbox.events = append(outbox.events, newEvent(t, "ev-1", domain.EventReservationCreated))

	d := NewOutboxDispatcher(outbox, &Config{BatchSize: 10, WorkerID: "test-1"})
	d.HandleDefault(func(ctx context.Context, e *domain.OutboxEvent) error {
		return errors.New("broker unavailable")
	})

	if _, err := d.DispatchOnce(context.Background()); err != nil {
		t.Fatalf("DispatchOnce error: %v", err)
	}

	e := outbox.events[0]
	if e.Status != domain.OutboxStatusNew {
		t.Errorf("status = %s, want NEW (retriable)", e.Status)
	}
	if e.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", e.Attempts)
	}
	if e.LastError != "broker unavailable" {
		t.Errorf("LastError = %q", e.LastError)
	}
	if e.NextAttemptAt == nil || !e.NextAttemptAt.After(time.Now()) {
		t.Errorf("NextAttemptAt = %v, want a future backoff", e.NextAttemptAt)
	}

	// Backed-off events are not reclaimed before their next attempt.
	n, err := d.DispatchOnce(context.Background())
	if err != nil {
		t.Fatalf("DispatchOnce error: %v", err)
	}
	if n != 0 {
		t.Errorf("dispatched %d events during backoff, want 0", n)
	}
}

func TestDispatchOnce_PoisonEventMovesToFailed(t *testing.T) {
	outbox := &memoryOutbox{}
	e := newEvent(t, "ev-1", domain.EventReservationCreated)
	e.Attempts = domain.OutboxMaxAttempts - 1
	outbox.events = append(outbox.events, e)

	d := NewOutboxDispatcher(outbox, &Config{BatchSize: 10, WorkerID: "test-1"})
	d.HandleDefault(func(ctx context.Context, ev *domain.OutboxEvent) error {
		return errors.New("still broken")
	})

	if _, err := d.DispatchOnce(context.Background()); err != nil {
		t.Fatalf("DispatchOnce error: %v", err)
	}

	if e.Status != domain.OutboxStatusFailed {
		t.Errorf("status = %s, want FAILED after the attempt budget", e.Status)
	}
	if e.NextAttemptAt != nil {
		t.Errorf("NextAttemptAt = %v, want nil on a poison event", e.NextAttemptAt)
	}
}

func TestDispatchOnce_UnhandledTypeStaysNew(t *testing.T) {
	outbox := &memoryOutbox{}
	outbox.events = append(outbox.events, newEvent(t, "ev-1", "SomethingNobodyConsumes"))

	d := NewOutboxDispatcher(outbox, &Config{BatchSize: 10, WorkerID: "test-1"})
	d.Handle(domain.EventReservationCreated, func(ctx context.Context, e *domain.OutboxEvent) error {
		t.Error("handler for a different type must not run")
		return nil
	})

	if _, err := d.DispatchOnce(context.Background()); err != nil {
		t.Fatalf("DispatchOnce error: %v", err)
	}

	e := outbox.events[0]
	if e.Status != domain.OutboxStatusNew {
		t.Errorf("status = %s, want NEW (never silently dropped)", e.Status)
	}
	if e.Attempts != 0 {
		t.Errorf("attempts = %d, want 0", e.Attempts)
	}
}

func TestDispatch_TypedHandlerWinsOverDefault(t *testing.T) {
	outbox := &memoryOutbox{}
	outbox.events = append(outbox.events, newEvent(t, "ev-1", domain.EventPaymentCompleted))

	var typed, fallback int
	d := NewOutboxDispatcher(outbox, &Config{BatchSize: 10, WorkerID: "test-1"})
	d.Handle(domain.EventPaymentCompleted, func(ctx context.Context, e *domain.OutboxEvent) error {
		typed++
		return nil
	})
	d.HandleDefault(func(ctx context.Context, e *domain.OutboxEvent) error {
		fallback++
		return nil
	})

	if _, err := d.DispatchOnce(context.Background()); err != nil {
		t.Fatalf("DispatchOnce error: %v", err)
	}
	if typed != 1 || fallback != 0 {
		t.Errorf("typed = %d fallback = %d, want the dedicated handler only", typed, fallback)
	}
}
