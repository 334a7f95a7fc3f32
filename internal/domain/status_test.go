package domain

import "testing"

func TestCanTransition_LegalEdges(t *testing.T) {
	legal := [][2]ReservationStatus{
		{StatusPending, StatusOnRequest},
		{StatusPending, StatusConfirmed},
		{StatusOnRequest, StatusConfirmed},
		{StatusOnRequest, StatusPending},
		{StatusConfirmed, StatusInProgress},
		{StatusConfirmed, StatusNoShow},
		{StatusInProgress, StatusCompleted},
	}

	for _, edge := range legal {
		if !CanTransition(edge[0], edge[1]) {
			t.Errorf("CanTransition(%s, %s) = false, want true", edge[0], edge[1])
		}
	}
}

func TestCanTransition_IllegalEdges(t *testing.T) {
	illegal := [][2]ReservationStatus{
		{StatusPending, StatusInProgress},
		{StatusPending, StatusCompleted},
		{StatusConfirmed, StatusPending},
		{StatusCompleted, StatusPending},
		{StatusCompleted, StatusInProgress},
		{StatusNoShow, StatusConfirmed},
		{StatusCancelled, StatusPending},
		{StatusInProgress, StatusConfirmed},
		{StatusPending, StatusCancelled},
	}

	for _, edge := range illegal {
		if CanTransition(edge[0], edge[1]) {
			t.Errorf("CanTransition(%s, %s) = true, want false", edge[0], edge[1])
		}
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []ReservationStatus{StatusCompleted, StatusNoShow, StatusCancelled}
	for _, s := range terminal {
		if !IsTerminal(s) {
			t.Errorf("IsTerminal(%s) = false, want true", s)
		}
	}

	open := []ReservationStatus{StatusPending, StatusOnRequest, StatusConfirmed, StatusInProgress}
	for _, s := range open {
		if IsTerminal(s) {
			t.Errorf("IsTerminal(%s) = true, want false", s)
		}
	}
}

func TestAllowedTransitions_ReturnsCopy(t *testing.T) {
	allowed := AllowedTransitions(StatusPending)
	if len(allowed) != 2 {
		t.Fatalf("AllowedTransitions(PENDING) returned %d statuses, want 2", len(allowed))
	}

	allowed[0] = StatusCompleted
	again := AllowedTransitions(StatusPending)
	if again[0] == StatusCompleted {
		t.Error("AllowedTransitions should return a defensive copy")
	}
}

func TestDescribeTransition(t *testing.T) {
	if got := DescribeTransition(StatusConfirmed, StatusInProgress); got != "customer picked up the vehicle" {
		t.Errorf("DescribeTransition(CONFIRMED, IN_PROGRESS) = %q", got)
	}

	// Unknown edges still produce something useful for logs.
	if got := DescribeTransition(StatusCompleted, StatusPending); got == "" {
		t.Error("DescribeTransition should never return an empty string")
	}
}

func TestStatusIsValid(t *testing.T) {
	if !StatusPending.IsValid() {
		t.Error("PENDING should be valid")
	}
	if ReservationStatus("BOGUS").IsValid() {
		t.Error("BOGUS should not be valid")
	}
	if !PaymentPaid.IsValid() {
		t.Error("PAID should be valid")
	}
	if PaymentStatus("??").IsValid() {
		t.Error("?? should not be valid")
	}
}
