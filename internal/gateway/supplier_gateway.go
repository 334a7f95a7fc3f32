package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// SupplierBookingRequest is the provider-neutral booking payload
type SupplierBookingRequest struct {
	ReservationCode   string
	PickupOfficeCode  string
	DropoffOfficeCode string
	PickupDatetime    time.Time
	DropoffDatetime   time.Time
	CarProductCode    string
	DriverFirstName   string
	DriverLastName    string
	DriverEmail       string
	DriverPhone       string
	IdempotencyKey    string
}

// SupplierBookingResult is a successful supplier confirmation
type SupplierBookingResult struct {
	SupplierReservationCode string
	ConfirmedAt             time.Time
	RawResponse             []byte
}

// AvailabilityQuery asks a supplier what it can offer for a window
type AvailabilityQuery struct {
	PickupOfficeCode  string
	DropoffOfficeCode string
	PickupDatetime    time.Time
	DropoffDatetime   time.Time
}

// AvailabilityOffer is one bookable car product quoted by a supplier
type AvailabilityOffer struct {
	CarProductCode   string
	AcrissCode       string
	CategoryName     string
	CurrencyCode     string
	DailyRate        decimal.Decimal
	TotalCost        decimal.Decimal
	FreeCancellation bool
}

// SupplierReservationStatus is a supplier's view of one of our bookings
type SupplierReservationStatus struct {
	SupplierReservationCode string
	Status                  string
	RawResponse             []byte
}

// SupplierGateway is the outbound port to one rental supplier.
// ConfirmReservation is a separate step for suppliers whose bookings start
// ON_REQUEST; suppliers that confirm at create time implement it as a no-op.
type SupplierGateway interface {
	Name() string
	CreateReservation(ctx context.Context, req *SupplierBookingRequest) (*SupplierBookingResult, error)
	ConfirmReservation(ctx context.Context, supplierReservationCode string) (*SupplierReservationStatus, error)
	CheckAvailability(ctx context.Context, query *AvailabilityQuery) ([]AvailabilityOffer, error)
	GetReservationStatus(ctx context.Context, supplierReservationCode string) (*SupplierReservationStatus, error)
	Close() error
}

// SupplierFactory builds and memoizes gateways per supplier code. Clients
// carry token caches and connection pools, so one instance per supplier.
type SupplierFactory struct {
	mu       sync.Mutex
	builders map[string]func() (SupplierGateway, error)
	cache    map[string]SupplierGateway
}

// NewSupplierFactory creates an empty factory
func NewSupplierFactory() *SupplierFactory {
	return &SupplierFactory{
		builders: make(map[string]func() (SupplierGateway, error)),
		cache:    make(map[string]SupplierGateway),
	}
}

// Register adds a builder for a supplier code
func (f *SupplierFactory) Register(code string, builder func() (SupplierGateway, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[strings.ToUpper(code)] = builder
}

// Get returns the gateway for a supplier code, building it on first use
func (f *SupplierFactory) Get(code string) (SupplierGateway, error) {
	key := strings.ToUpper(code)

	f.mu.Lock()
	defer f.mu.Unlock()

	if gw, ok := f.cache[key]; ok {
		return gw, nil
	}

	builder, ok := f.builders[key]
	if !ok {
		return nil, fmt.Errorf("unsupported supplier: %s", code)
	}

	gw, err := builder()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s gateway: %w", code, err)
	}
	f.cache[key] = gw
	return gw, nil
}

// parseDecimal parses supplier rate strings, treating empty as zero
func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
