package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// OutboxStatus represents the dispatch state of an outbox event
type OutboxStatus string

const (
	OutboxStatusNew    OutboxStatus = "NEW"
	OutboxStatusDone   OutboxStatus = "DONE"
	OutboxStatusFailed OutboxStatus = "FAILED"
)

// IsValid checks if the status is a known OutboxStatus
func (s OutboxStatus) IsValid() bool {
	switch s {
	case OutboxStatusNew, OutboxStatusDone, OutboxStatusFailed:
		return true
	}
	return false
}

// String returns the string representation of OutboxStatus
func (s OutboxStatus) String() string {
	return string(s)
}

// OutboxMaxAttempts is the poison-queue threshold
const OutboxMaxAttempts = 5

// OutboxEvent is a durable domain event row written in the same transaction
// as the state change it describes.
type OutboxEvent struct {
	ID            string
	EventType     string
	AggregateType string
	AggregateID   string
	Payload       []byte
	Status        OutboxStatus
	Attempts      int
	NextAttemptAt *time.Time
	LastError     string
	LockedBy      string
	LockedAt      *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOutboxEvent builds a NEW event with a JSON-encoded payload
func NewOutboxEvent(eventType, aggregateType, aggregateID string, payload any) (*OutboxEvent, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal outbox payload: %w", err)
	}
	now := time.Now().UTC()
	return &OutboxEvent{
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       body,
		Status:        OutboxStatusNew,
		Attempts:      0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// DecodePayload unmarshals the payload into v
func (e *OutboxEvent) DecodePayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// MarkDone records a successful dispatch. DONE is terminal: the event is
// never re-dispatched.
func (e *OutboxEvent) MarkDone(now time.Time) {
	e.Status = OutboxStatusDone
	e.LockedBy = ""
	e.LockedAt = nil
	e.UpdatedAt = now
}

// MarkFailed records a failed dispatch attempt, schedules the next one with
// 2^attempts minutes of backoff, and moves the event to FAILED once the
// attempt budget is spent.
func (e *OutboxEvent) MarkFailed(now time.Time, dispatchErr string) {
	e.Attempts++
	e.LastError = dispatchErr
	e.LockedBy = ""
	e.LockedAt = nil
	e.UpdatedAt = now

	if e.Attempts >= OutboxMaxAttempts {
		e.Status = OutboxStatusFailed
		e.NextAttemptAt = nil
		return
	}

	next := now.Add(BackoffForAttempts(e.Attempts))
	e.NextAttemptAt = &next
}

// BackoffForAttempts returns 2^attempts minutes
func BackoffForAttempts(attempts int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempts))) * time.Minute
}
