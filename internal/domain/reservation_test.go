package domain

import (
	"errors"
	"testing"
	"time"
)

func newTestReservation() *Reservation {
	pickup := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	dropoff := pickup.Add(4 * 24 * time.Hour)
	return NewReservation("RES-20250201-A1B2C", 1, 10, 10, pickup, dropoff, "USD", d("1500.00"), d("1300.00"))
}

func TestNewReservation_Defaults(t *testing.T) {
	r := newTestReservation()

	if r.Status != StatusPending {
		t.Errorf("Status = %s, want PENDING", r.Status)
	}
	if r.PaymentStatus != PaymentUnpaid {
		t.Errorf("PaymentStatus = %s, want UNPAID", r.PaymentStatus)
	}
	if r.RentalDays != 4 {
		t.Errorf("RentalDays = %d, want 4", r.RentalDays)
	}
	if !r.CommissionTotal.Equal(d("200.00")) {
		t.Errorf("CommissionTotal = %s, want 200.00", r.CommissionTotal)
	}
	if r.LockVersion != 0 {
		t.Errorf("LockVersion = %d, want 0", r.LockVersion)
	}

	events := r.UncommittedEvents()
	if len(events) != 1 || events[0].Type != EventReservationCreated {
		t.Fatalf("expected a single ReservationCreated event, got %v", events)
	}
}

func TestReservation_ValidateBookable(t *testing.T) {
	r := newTestReservation()

	if err := r.ValidateBookable(); !errors.Is(err, ErrMissingPrimaryDriver) {
		t.Errorf("error = %v, want ErrMissingPrimaryDriver", err)
	}

	if err := r.AddDriver("Juan", "Pérez", "j@x.com", "+52551234", true); err != nil {
		t.Fatalf("AddDriver error: %v", err)
	}
	if err := r.ValidateBookable(); !errors.Is(err, ErrMissingBookerContact) {
		t.Errorf("error = %v, want ErrMissingBookerContact", err)
	}

	if err := r.AddContact(ContactTypeBooker, "Juan Pérez", "j@x.com", "+52551234"); err != nil {
		t.Fatalf("AddContact error: %v", err)
	}
	if err := r.ValidateBookable(); err != nil {
		t.Errorf("ValidateBookable = %v, want nil", err)
	}
}

func TestReservation_ConfirmWithSupplier(t *testing.T) {
	r := newTestReservation()
	confirmedAt := time.Date(2025, 1, 20, 9, 30, 0, 0, time.UTC)

	if err := r.ConfirmWithSupplier("LOC-789456", confirmedAt); err != nil {
		t.Fatalf("ConfirmWithSupplier error: %v", err)
	}

	if r.Status != StatusConfirmed {
		t.Errorf("Status = %s, want CONFIRMED", r.Status)
	}
	if r.SupplierReservationCode != "LOC-789456" {
		t.Errorf("SupplierReservationCode = %q", r.SupplierReservationCode)
	}
	if r.SupplierConfirmedAt == nil || !r.SupplierConfirmedAt.Equal(confirmedAt) {
		t.Errorf("SupplierConfirmedAt = %v, want %v", r.SupplierConfirmedAt, confirmedAt)
	}

	events := r.ClearEvents()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 (created + confirmed)", len(events))
	}
	if events[1].Type != EventReservationConfirmed {
		t.Errorf("second event = %s, want ReservationConfirmed", events[1].Type)
	}

	// Drained events do not reappear.
	if len(r.UncommittedEvents()) != 0 {
		t.Error("events should be empty after ClearEvents")
	}
}

func TestReservation_ConfirmTwiceIsIllegal(t *testing.T) {
	r := newTestReservation()
	if err := r.ConfirmWithSupplier("LOC-1", time.Now()); err != nil {
		t.Fatalf("first confirm error: %v", err)
	}

	err := r.ConfirmWithSupplier("LOC-2", time.Now())
	var invalid *InvalidStateTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("error = %v, want InvalidStateTransitionError", err)
	}
	if invalid.From != StatusConfirmed || invalid.To != StatusConfirmed {
		t.Errorf("error names %s → %s, want CONFIRMED → CONFIRMED", invalid.From, invalid.To)
	}
}

func TestReservation_FullLifecycle(t *testing.T) {
	r := newTestReservation()

	steps := []func() error{
		func() error { return r.ConfirmWithSupplier("LOC-1", time.Now()) },
		r.MarkPickedUp,
		r.MarkCompleted,
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d error: %v", i, err)
		}
	}

	if r.Status != StatusCompleted {
		t.Errorf("Status = %s, want COMPLETED", r.Status)
	}
	if err := r.MarkPickedUp(); err == nil {
		t.Error("transition out of COMPLETED should fail")
	}
}

func TestReservation_NoShow(t *testing.T) {
	r := newTestReservation()
	if err := r.ConfirmWithSupplier("LOC-1", time.Now()); err != nil {
		t.Fatalf("confirm error: %v", err)
	}
	if err := r.MarkNoShow(); err != nil {
		t.Fatalf("MarkNoShow error: %v", err)
	}
	if !IsTerminal(r.Status) {
		t.Errorf("NO_SHOW should be terminal, got %s", r.Status)
	}
}

func TestPayment_Lifecycle(t *testing.T) {
	p, err := NewPayment(7, "STRIPE", "pi_123", d("1500.00"), "USD")
	if err != nil {
		t.Fatalf("NewPayment error: %v", err)
	}
	if p.Status != PaymentPending {
		t.Errorf("Status = %s, want PENDING", p.Status)
	}

	captured := time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC)
	p.MarkCaptured("ch_456", captured)
	if p.Status != PaymentPaid {
		t.Errorf("Status = %s, want PAID", p.Status)
	}
	if p.CapturedAt == nil {
		t.Fatal("PAID payment must have captured_at set")
	}

	if err := p.ApplyRefund(d("500.00"), captured.Add(time.Hour)); err != nil {
		t.Fatalf("ApplyRefund error: %v", err)
	}
	if p.Status != PaymentPartiallyRefunded {
		t.Errorf("Status = %s, want PARTIALLY_REFUNDED", p.Status)
	}

	if err := p.ApplyRefund(d("1000.00"), captured.Add(2*time.Hour)); err != nil {
		t.Fatalf("ApplyRefund error: %v", err)
	}
	if p.Status != PaymentRefunded {
		t.Errorf("Status = %s, want REFUNDED", p.Status)
	}

	if err := p.ApplyRefund(d("0.01"), time.Now()); !errors.Is(err, ErrRefundExceedsAmount) {
		t.Errorf("error = %v, want ErrRefundExceedsAmount", err)
	}
}

func TestNewPayment_NegativeAmount(t *testing.T) {
	if _, err := NewPayment(1, "STRIPE", "pi", d("-1.00"), "USD"); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("error = %v, want ErrInvalidAmount", err)
	}
}
