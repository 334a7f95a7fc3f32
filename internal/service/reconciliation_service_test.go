package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rbravo-MCR/car-rental-reservations/internal/domain"
	"github.com/rbravo-MCR/car-rental-reservations/internal/gateway"
)

func strandedReservation(t *testing.T) *domain.Reservation {
	t.Helper()
	reservation := domain.NewReservation("RES-20260910-S7R4N", 1, 10, 10,
		time.Now().Add(24*time.Hour), time.Now().Add(120*time.Hour),
		"BRL", decimal.RequireFromString("482.00"), decimal.RequireFromString("390.00"))
	reservation.ID = 42
	reservation.PickupOfficeCodeSnapshot = "GRU01"
	reservation.DropoffOfficeCodeSnapshot = "GRU01"
	reservation.CarAcrissCodeSnapshot = "EDMR"
	reservation.CarProductCodeSnapshot = "B"
	if err := reservation.AddDriver("Ana", "Souza", "ana@example.com", "", true); err != nil {
		t.Fatalf("AddDriver error: %v", err)
	}
	reservation.MarkPaid()
	reservation.ClearEvents()
	return reservation
}

func TestReconciliation_ReplayConfirms(t *testing.T) {
	f := newFixture(t)
	reservation := strandedReservation(t)
	f.reservations.ListPaidUnconfirmedFunc = func(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Reservation, error) {
		return []*domain.Reservation{reservation}, nil
	}
	f.supplierGW.CreateReservationFunc = func(ctx context.Context, req *gateway.SupplierBookingRequest) (*gateway.SupplierBookingResult, error) {
		if req.IdempotencyKey != reservation.ReservationCode {
			t.Errorf("IdempotencyKey = %q, want the original reservation code", req.IdempotencyKey)
		}
		if req.CarProductCode != "B" {
			t.Errorf("CarProductCode = %q, want the product code booked originally", req.CarProductCode)
		}
		if req.DriverFirstName != "Ana" || req.DriverLastName != "Souza" {
			t.Errorf("driver = %q %q, want the primary driver", req.DriverFirstName, req.DriverLastName)
		}
		return &gateway.SupplierBookingResult{SupplierReservationCode: "LOC-42", ConfirmedAt: time.Now().UTC()}, nil
	}

	factory := gateway.NewSupplierFactory()
	factory.Register("LOCALIZA", func() (gateway.SupplierGateway, error) { return f.supplierGW, nil })
	svc := NewReconciliationService(fakeDB{}, f.reservations, f.audits, f.outbox, f.catalog, factory, nil)

	repaired, err := svc.Sweep(context.Background(), 10)
	if err != nil {
		t.Fatalf("Sweep error: %v", err)
	}
	if repaired != 1 {
		t.Errorf("repaired = %d, want 1", repaired)
	}

	if reservation.Status != domain.StatusConfirmed {
		t.Errorf("Status = %s, want CONFIRMED", reservation.Status)
	}
	if reservation.SupplierReservationCode != "LOC-42" {
		t.Errorf("SupplierReservationCode = %q, want LOC-42", reservation.SupplierReservationCode)
	}

	if len(f.audits.Created) != 1 {
		t.Fatalf("got %d supplier requests, want 1", len(f.audits.Created))
	}
	if f.audits.Created[0].Attempt != 2 {
		t.Errorf("Attempt = %d, want 2 (the first attempt predates the crash)", f.audits.Created[0].Attempt)
	}
	if !f.outbox.Has(domain.EventReservationConfirmed) {
		t.Errorf("outbox = %v, want ReservationConfirmed", f.outbox.Types())
	}
}

func TestReconciliation_ReplayFailsEmitsMarker(t *testing.T) {
	f := newFixture(t)
	reservation := strandedReservation(t)
	f.reservations.ListPaidUnconfirmedFunc = func(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Reservation, error) {
		return []*domain.Reservation{reservation}, nil
	}
	f.supplierGW.CreateReservationFunc = func(ctx context.Context, req *gateway.SupplierBookingRequest) (*gateway.SupplierBookingResult, error) {
		return nil, &gateway.SupplierAPIError{Supplier: "LOCALIZA", StatusCode: 503}
	}

	factory := gateway.NewSupplierFactory()
	factory.Register("LOCALIZA", func() (gateway.SupplierGateway, error) { return f.supplierGW, nil })
	svc := NewReconciliationService(fakeDB{}, f.reservations, f.audits, f.outbox, f.catalog, factory, nil)

	repaired, err := svc.Sweep(context.Background(), 10)
	if err != nil {
		t.Fatalf("Sweep error: %v", err)
	}
	if repaired != 0 {
		t.Errorf("repaired = %d, want 0", repaired)
	}

	if reservation.Status != domain.StatusPending {
		t.Errorf("Status = %s, want PENDING", reservation.Status)
	}
	if !f.outbox.Has(domain.EventReservationReconciliationRequired) {
		t.Errorf("outbox = %v, want ReservationReconciliationRequired", f.outbox.Types())
	}
	if len(f.audits.Created) != 1 {
		t.Errorf("got %d supplier requests, want 1", len(f.audits.Created))
	}
}

func TestAvailability_SearchWithoutCache(t *testing.T) {
	f := newFixture(t)
	offers := []gateway.AvailabilityOffer{
		{CarProductCode: "B", AcrissCode: "EDMR", CurrencyCode: "BRL", TotalCost: decimal.RequireFromString("482.00")},
	}
	f.supplierGW.CheckAvailabilityFunc = func(ctx context.Context, query *gateway.AvailabilityQuery) ([]gateway.AvailabilityOffer, error) {
		if query.PickupOfficeCode != "GRU01" {
			t.Errorf("PickupOfficeCode = %q, want GRU01", query.PickupOfficeCode)
		}
		return offers, nil
	}

	factory := gateway.NewSupplierFactory()
	factory.Register("LOCALIZA", func() (gateway.SupplierGateway, error) { return f.supplierGW, nil })
	svc := NewAvailabilityService(f.reservations, f.catalog, factory, nil, nil)

	got, err := svc.Search(context.Background(), &AvailabilitySearch{
		SupplierID:      1,
		PickupOfficeID:  10,
		DropoffOfficeID: 10,
		PickupDatetime:  time.Now().Add(24 * time.Hour),
		DropoffDatetime: time.Now().Add(120 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(got) != 1 || got[0].AcrissCode != "EDMR" {
		t.Errorf("offers = %+v, want the supplier offer passed through", got)
	}
}

func TestAvailability_OverlapHidesOffers(t *testing.T) {
	f := newFixture(t)
	f.reservations.HasOverlappingFunc = func(ctx context.Context, categoryID, supplierID int64, pickup, dropoff time.Time) (bool, error) {
		if categoryID != 3 || supplierID != 1 {
			t.Errorf("overlap checked for category %d supplier %d, want 3 and 1", categoryID, supplierID)
		}
		return true, nil
	}
	supplierCalled := false
	f.supplierGW.CheckAvailabilityFunc = func(ctx context.Context, query *gateway.AvailabilityQuery) ([]gateway.AvailabilityOffer, error) {
		supplierCalled = true
		return []gateway.AvailabilityOffer{{CarProductCode: "B"}}, nil
	}

	factory := gateway.NewSupplierFactory()
	factory.Register("LOCALIZA", func() (gateway.SupplierGateway, error) { return f.supplierGW, nil })
	svc := NewAvailabilityService(f.reservations, f.catalog, factory, nil, nil)

	got, err := svc.Search(context.Background(), &AvailabilitySearch{
		SupplierID:      1,
		CarCategoryID:   3,
		PickupOfficeID:  10,
		DropoffOfficeID: 10,
		PickupDatetime:  time.Now().Add(24 * time.Hour),
		DropoffDatetime: time.Now().Add(120 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d offers, want none while an open reservation overlaps", len(got))
	}
	if supplierCalled {
		t.Error("supplier should not be queried when the window is already taken")
	}
}

func TestAvailability_RejectsInvertedWindow(t *testing.T) {
	f := newFixture(t)
	factory := gateway.NewSupplierFactory()
	svc := NewAvailabilityService(f.reservations, f.catalog, factory, nil, nil)

	_, err := svc.Search(context.Background(), &AvailabilitySearch{
		SupplierID:      1,
		PickupOfficeID:  10,
		DropoffOfficeID: 10,
		PickupDatetime:  time.Now().Add(120 * time.Hour),
		DropoffDatetime: time.Now().Add(24 * time.Hour),
	})
	if err == nil {
		t.Fatal("expected a validation error for dropoff before pickup")
	}
}
