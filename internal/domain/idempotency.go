package domain

import "time"

// IdempotencyRecord stores the outcome of a completed request so that a
// replayed key returns the original response instead of re-running the
// operation. The row is written in the same transaction as the state change
// it protects.
type IdempotencyRecord struct {
	ID             int64
	Scope          string
	Key            string
	RequestHash    string
	ResponseStatus int
	ResponseBody   []byte
	// ReferenceID points at the resource the original request created, when
	// there was one. Empty for requests that failed before creating anything.
	ReferenceID string
	CreatedAt   time.Time
}

// NewIdempotencyRecord builds a record for a scope and key pair
func NewIdempotencyRecord(scope, key, requestHash string) *IdempotencyRecord {
	return &IdempotencyRecord{
		Scope:       scope,
		Key:         key,
		RequestHash: requestHash,
		CreatedAt:   time.Now().UTC(),
	}
}

// SetResponse attaches the response that will be replayed on key reuse
func (r *IdempotencyRecord) SetResponse(status int, body []byte) {
	r.ResponseStatus = status
	r.ResponseBody = body
}

// Matches reports whether a replayed request carries the same payload
func (r *IdempotencyRecord) Matches(requestHash string) bool {
	return r.RequestHash == requestHash
}
