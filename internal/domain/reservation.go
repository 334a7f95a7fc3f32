package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ContactTypeBooker marks the contact that made the booking
const ContactTypeBooker = "BOOKER"

// Driver is a reservation child entity
type Driver struct {
	ID            int64
	ReservationID int64
	FirstName     string
	LastName      string
	Email         string
	Phone         string
	IsPrimary     bool
}

// Contact is a reservation child entity
type Contact struct {
	ID            int64
	ReservationID int64
	ContactType   string
	FullName      string
	Email         string
	Phone         string
}

// PricingItem is a priced line belonging to the reservation
type PricingItem struct {
	ID            int64
	ReservationID int64
	Description   string
	UnitPrice     decimal.Decimal
	Quantity      int
	Total         decimal.Decimal
}

// Reservation is the aggregate root. Child entities are mutated only through
// it; their lifetime is bounded by the aggregate.
type Reservation struct {
	ID              int64
	ReservationCode string

	SupplierID           int64
	PickupOfficeID       int64
	DropoffOfficeID      int64
	PickupDatetime       time.Time
	DropoffDatetime      time.Time
	RentalDays           int
	CarCategoryID        int64
	SupplierCarProductID int64
	CustomerID           int64
	SalesChannelID       int64

	CurrencyCode       string
	PublicPriceTotal   decimal.Decimal
	SupplierCostTotal  decimal.Decimal
	DiscountTotal      decimal.Decimal
	TaxesTotal         decimal.Decimal
	FeesTotal          decimal.Decimal
	CommissionTotal    decimal.Decimal

	Status        ReservationStatus
	PaymentStatus PaymentStatus

	SupplierReservationCode string
	SupplierConfirmedAt     *time.Time

	// Historical snapshots captured at booking time so rows stay stable
	// under catalog edits.
	SupplierNameSnapshot       string
	PickupOfficeCodeSnapshot   string
	PickupOfficeNameSnapshot   string
	DropoffOfficeCodeSnapshot  string
	DropoffOfficeNameSnapshot  string
	CarAcrissCodeSnapshot      string
	CarCategoryNameSnapshot    string
	CarProductCodeSnapshot     string

	// Marketing attribution captured at booking time.
	UTMSource   string
	UTMMedium   string
	UTMCampaign string

	Drivers      []Driver
	Contacts     []Contact
	PricingItems []PricingItem

	LockVersion int
	CreatedAt   time.Time
	UpdatedAt   time.Time

	events []Event
}

// NewReservation builds a PENDING/UNPAID reservation. Snapshots, drivers and
// contacts are attached by the caller before the first save.
func NewReservation(code string, supplierID, pickupOfficeID, dropoffOfficeID int64, pickup, dropoff time.Time, currency string, publicTotal, supplierCost decimal.Decimal) *Reservation {
	now := time.Now().UTC()
	r := &Reservation{
		ReservationCode:   code,
		SupplierID:        supplierID,
		PickupOfficeID:    pickupOfficeID,
		DropoffOfficeID:   dropoffOfficeID,
		PickupDatetime:    pickup,
		DropoffDatetime:   dropoff,
		RentalDays:        RentalDays(pickup, dropoff),
		CurrencyCode:      currency,
		PublicPriceTotal:  publicTotal,
		SupplierCostTotal: supplierCost,
		CommissionTotal:   Commission(publicTotal, supplierCost),
		Status:            StatusPending,
		PaymentStatus:     PaymentUnpaid,
		LockVersion:       0,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	r.recordEvent(EventReservationCreated, map[string]any{
		"reservation_code": code,
		"supplier_id":      supplierID,
		"pickup_datetime":  pickup.UTC().Format(time.RFC3339),
		"dropoff_datetime": dropoff.UTC().Format(time.RFC3339),
		"total_amount":     publicTotal.StringFixed(2),
		"currency_code":    currency,
	})
	return r
}

// AddDriver attaches a driver to the aggregate
func (r *Reservation) AddDriver(firstName, lastName, email, phone string, isPrimary bool) error {
	if strings.TrimSpace(firstName) == "" || strings.TrimSpace(lastName) == "" {
		return &ValidationError{Field: "driver", Message: "first and last name are required"}
	}
	r.Drivers = append(r.Drivers, Driver{
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Phone:     phone,
		IsPrimary: isPrimary,
	})
	return nil
}

// AddContact attaches a contact to the aggregate
func (r *Reservation) AddContact(contactType, fullName, email, phone string) error {
	if strings.TrimSpace(contactType) == "" {
		return &ValidationError{Field: "contact_type", Message: "contact type is required"}
	}
	r.Contacts = append(r.Contacts, Contact{
		ContactType: contactType,
		FullName:    fullName,
		Email:       email,
		Phone:       phone,
	})
	return nil
}

// AddPricingItem attaches a pricing line to the aggregate
func (r *Reservation) AddPricingItem(description string, unitPrice decimal.Decimal, quantity int) {
	r.PricingItems = append(r.PricingItems, PricingItem{
		Description: description,
		UnitPrice:   unitPrice,
		Quantity:    quantity,
		Total:       unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2),
	})
}

// HasPrimaryDriver reports whether at least one primary driver is attached
func (r *Reservation) HasPrimaryDriver() bool {
	for _, d := range r.Drivers {
		if d.IsPrimary {
			return true
		}
	}
	return false
}

// HasBookerContact reports whether a BOOKER contact is attached
func (r *Reservation) HasBookerContact() bool {
	for _, c := range r.Contacts {
		if c.ContactType == ContactTypeBooker {
			return true
		}
	}
	return false
}

// ValidateBookable enforces the invariants required before the aggregate may
// be persisted in a bookable state.
func (r *Reservation) ValidateBookable() error {
	if !r.HasPrimaryDriver() {
		return ErrMissingPrimaryDriver
	}
	if !r.HasBookerContact() {
		return ErrMissingBookerContact
	}
	if r.PublicPriceTotal.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// TransitionTo moves the reservation along the transition matrix, rejecting
// illegal changes.
func (r *Reservation) TransitionTo(to ReservationStatus) error {
	if !CanTransition(r.Status, to) {
		return NewInvalidStateTransition(r.Status, to)
	}
	r.Status = to
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkPaid records that the charge for this reservation succeeded
func (r *Reservation) MarkPaid() {
	r.PaymentStatus = PaymentPaid
	r.UpdatedAt = time.Now().UTC()
}

// MarkPaymentFailed records a declined or failed charge
func (r *Reservation) MarkPaymentFailed() {
	r.PaymentStatus = PaymentFailed
	r.UpdatedAt = time.Now().UTC()
}

// ConfirmWithSupplier records the supplier confirmation and moves the
// reservation to CONFIRMED.
func (r *Reservation) ConfirmWithSupplier(supplierCode string, confirmedAt time.Time) error {
	if err := r.TransitionTo(StatusConfirmed); err != nil {
		return err
	}
	r.SupplierReservationCode = supplierCode
	t := confirmedAt.UTC()
	r.SupplierConfirmedAt = &t
	r.recordEvent(EventReservationConfirmed, map[string]any{
		"reservation_code":          r.ReservationCode,
		"supplier_reservation_code": supplierCode,
		"supplier_confirmed_at":     t.Format(time.RFC3339),
	})
	return nil
}

// MarkPickedUp moves a confirmed reservation into IN_PROGRESS
func (r *Reservation) MarkPickedUp() error {
	return r.TransitionTo(StatusInProgress)
}

// MarkCompleted closes an in-progress reservation
func (r *Reservation) MarkCompleted() error {
	return r.TransitionTo(StatusCompleted)
}

// MarkNoShow records that the customer never picked up the vehicle
func (r *Reservation) MarkNoShow() error {
	return r.TransitionTo(StatusNoShow)
}

func (r *Reservation) recordEvent(eventType string, payload map[string]any) {
	r.events = append(r.events, NewEvent(eventType, payload))
}

// UncommittedEvents returns the events accumulated since the last drain
func (r *Reservation) UncommittedEvents() []Event {
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// ClearEvents drains and returns the accumulated events; the coordinator
// moves them into the outbox before the final commit.
func (r *Reservation) ClearEvents() []Event {
	events := r.events
	r.events = nil
	return events
}
