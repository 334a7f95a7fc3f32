package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rbravo-MCR/car-rental-reservations/internal/domain"
	"github.com/rbravo-MCR/car-rental-reservations/internal/gateway"
	"github.com/rbravo-MCR/car-rental-reservations/internal/repository"
	"github.com/rbravo-MCR/car-rental-reservations/pkg/logger"
	"github.com/rbravo-MCR/car-rental-reservations/pkg/redis"
)

// AvailabilitySearch is a validated availability request. CarCategoryID is
// optional; when set, offers are suppressed while an open reservation for the
// same category and supplier overlaps the window.
type AvailabilitySearch struct {
	SupplierID      int64
	CarCategoryID   int64
	PickupOfficeID  int64
	DropoffOfficeID int64
	PickupDatetime  time.Time
	DropoffDatetime time.Time
}

// AvailabilityService quotes offers from suppliers with a cache in front
type AvailabilityService interface {
	Search(ctx context.Context, search *AvailabilitySearch) ([]gateway.AvailabilityOffer, error)
}

// AvailabilityServiceConfig tunes the offer cache
type AvailabilityServiceConfig struct {
	CacheTTL        time.Duration
	SupplierTimeout time.Duration
}

type availabilityService struct {
	reservations    repository.ReservationRepository
	catalog         repository.CatalogRepository
	suppliers       *gateway.SupplierFactory
	cache           *redis.Client
	cacheTTL        time.Duration
	supplierTimeout time.Duration
}

// NewAvailabilityService creates an availability search service. cache may be
// nil; searches then always hit the supplier.
func NewAvailabilityService(reservations repository.ReservationRepository, catalog repository.CatalogRepository, suppliers *gateway.SupplierFactory, cache *redis.Client, cfg *AvailabilityServiceConfig) AvailabilityService {
	ttl := 2 * time.Minute
	timeout := 30 * time.Second
	if cfg != nil {
		if cfg.CacheTTL > 0 {
			ttl = cfg.CacheTTL
		}
		if cfg.SupplierTimeout > 0 {
			timeout = cfg.SupplierTimeout
		}
	}
	return &availabilityService{
		reservations:    reservations,
		catalog:         catalog,
		suppliers:       suppliers,
		cache:           cache,
		cacheTTL:        ttl,
		supplierTimeout: timeout,
	}
}

// Search returns offers for the window, cache-aside. Offers are quotes, not
// holds: a cached offer can still be rejected at booking time.
func (s *availabilityService) Search(ctx context.Context, search *AvailabilitySearch) ([]gateway.AvailabilityOffer, error) {
	if err := validateSearch(search); err != nil {
		return nil, err
	}

	// The overlap check runs before the cache so a booking made a moment ago
	// hides offers immediately.
	if search.CarCategoryID != 0 {
		overlapping, err := s.reservations.HasOverlapping(ctx, search.CarCategoryID, search.SupplierID, search.PickupDatetime, search.DropoffDatetime)
		if err != nil {
			return nil, err
		}
		if overlapping {
			return nil, nil
		}
	}

	key := offerCacheKey(search)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key); err == nil {
			var offers []gateway.AvailabilityOffer
			if err := json.Unmarshal([]byte(cached), &offers); err == nil {
				return offers, nil
			}
		} else if !redis.IsNil(err) {
			logger.Get().Warn("offer cache read failed", zap.Error(err))
		}
	}

	supplier, err := s.catalog.GetSupplier(ctx, search.SupplierID)
	if err != nil {
		return nil, err
	}
	if !supplier.IsActive {
		return nil, &domain.ValidationError{Field: "supplier_id", Message: "supplier is not active"}
	}
	pickupOffice, err := s.catalog.GetOffice(ctx, search.PickupOfficeID)
	if err != nil {
		return nil, err
	}
	dropoffOffice, err := s.catalog.GetOffice(ctx, search.DropoffOfficeID)
	if err != nil {
		return nil, err
	}

	supplierGW, err := s.suppliers.Get(supplier.Code)
	if err != nil {
		return nil, err
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.supplierTimeout)
	defer cancel()
	offers, err := supplierGW.CheckAvailability(searchCtx, &gateway.AvailabilityQuery{
		PickupOfficeCode:  pickupOffice.Code,
		DropoffOfficeCode: dropoffOffice.Code,
		PickupDatetime:    search.PickupDatetime,
		DropoffDatetime:   search.DropoffDatetime,
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil && len(offers) > 0 {
		if encoded, err := json.Marshal(offers); err == nil {
			if err := s.cache.Set(ctx, key, encoded, s.cacheTTL); err != nil {
				logger.Get().Warn("offer cache write failed", zap.Error(err))
			}
		}
	}

	return offers, nil
}

func validateSearch(search *AvailabilitySearch) error {
	if search == nil {
		return &domain.ValidationError{Message: "search is required"}
	}
	if search.PickupDatetime.IsZero() || search.DropoffDatetime.IsZero() {
		return &domain.ValidationError{Field: "pickup_datetime", Message: "pickup and dropoff datetimes are required"}
	}
	if !search.DropoffDatetime.After(search.PickupDatetime) {
		return &domain.ValidationError{Field: "dropoff_datetime", Message: "dropoff must be after pickup"}
	}
	return nil
}

func offerCacheKey(search *AvailabilitySearch) string {
	return fmt.Sprintf("offers:%d:%d:%d:%d:%d:%d",
		search.SupplierID,
		search.CarCategoryID,
		search.PickupOfficeID,
		search.DropoffOfficeID,
		search.PickupDatetime.UTC().Unix(),
		search.DropoffDatetime.UTC().Unix(),
	)
}

// Ensure availabilityService implements AvailabilityService
var _ AvailabilityService = (*availabilityService)(nil)
