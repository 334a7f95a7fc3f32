package domain

import (
	"testing"
	"time"
)

func TestNewOutboxEvent(t *testing.T) {
	evt, err := NewOutboxEvent(EventReservationCreated, AggregateReservation, "42", map[string]any{
		"reservation_code": "RES-20250201-A1B2C",
	})
	if err != nil {
		t.Fatalf("NewOutboxEvent error: %v", err)
	}

	if evt.Status != OutboxStatusNew {
		t.Errorf("Status = %s, want NEW", evt.Status)
	}
	if evt.Attempts != 0 {
		t.Errorf("Attempts = %d, want 0", evt.Attempts)
	}
	if evt.NextAttemptAt != nil {
		t.Error("NextAttemptAt should be nil on a fresh event")
	}

	var payload map[string]string
	if err := evt.DecodePayload(&payload); err != nil {
		t.Fatalf("DecodePayload error: %v", err)
	}
	if payload["reservation_code"] != "RES-20250201-A1B2C" {
		t.Errorf("payload = %v", payload)
	}
}

func TestOutboxEvent_MarkDone(t *testing.T) {
	evt, _ := NewOutboxEvent("X", AggregateReservation, "1", nil)
	evt.LockedBy = "worker-1"
	now := time.Now()
	evt.LockedAt = &now

	evt.MarkDone(now)

	if evt.Status != OutboxStatusDone {
		t.Errorf("Status = %s, want DONE", evt.Status)
	}
	if evt.LockedBy != "" || evt.LockedAt != nil {
		t.Error("MarkDone should release the lock")
	}
}

func TestOutboxEvent_MarkFailed_Backoff(t *testing.T) {
	evt, _ := NewOutboxEvent("X", AggregateReservation, "1", nil)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	evt.MarkFailed(now, "broker unavailable")

	if evt.Status != OutboxStatusNew {
		t.Errorf("Status = %s, want NEW (still retryable)", evt.Status)
	}
	if evt.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", evt.Attempts)
	}
	if evt.NextAttemptAt == nil {
		t.Fatal("NextAttemptAt should be scheduled")
	}
	if want := now.Add(2 * time.Minute); !evt.NextAttemptAt.Equal(want) {
		t.Errorf("NextAttemptAt = %v, want %v (2^1 minutes)", evt.NextAttemptAt, want)
	}
	if evt.LastError != "broker unavailable" {
		t.Errorf("LastError = %q", evt.LastError)
	}
}

func TestOutboxEvent_MarkFailed_PoisonQueue(t *testing.T) {
	evt, _ := NewOutboxEvent("X", AggregateReservation, "1", nil)
	now := time.Now()

	for i := 0; i < OutboxMaxAttempts; i++ {
		evt.MarkFailed(now, "still broken")
	}

	if evt.Status != OutboxStatusFailed {
		t.Errorf("Status = %s, want FAILED after %d attempts", evt.Status, OutboxMaxAttempts)
	}
	if evt.NextAttemptAt != nil {
		t.Error("FAILED events must not be rescheduled")
	}
}

func TestBackoffForAttempts(t *testing.T) {
	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{1, 2 * time.Minute},
		{2, 4 * time.Minute},
		{3, 8 * time.Minute},
		{4, 16 * time.Minute},
	}
	for _, tc := range cases {
		if got := BackoffForAttempts(tc.attempts); got != tc.want {
			t.Errorf("BackoffForAttempts(%d) = %v, want %v", tc.attempts, got, tc.want)
		}
	}
}
