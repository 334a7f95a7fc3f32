package dto

import (
	"time"

	"github.com/rbravo-MCR/car-rental-reservations/internal/domain"
	"github.com/rbravo-MCR/car-rental-reservations/internal/gateway"
	"github.com/rbravo-MCR/car-rental-reservations/internal/service"
)

// ErrorResponse is the error envelope for every non-2xx response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// CreateReservationResponse is the 201 body of POST /reservations
type CreateReservationResponse struct {
	ReservationCode         string `json:"reservation_code"`
	SupplierReservationCode string `json:"supplier_reservation_code,omitempty"`
	Status                  string `json:"status"`
	PaymentStatus           string `json:"payment_status"`
	TotalAmount             string `json:"total_amount"`
	CurrencyCode            string `json:"currency_code"`
	ReceiptURL              string `json:"receipt_url,omitempty"`
}

// NewCreateReservationResponse maps the commit protocol outcome
func NewCreateReservationResponse(result *service.CreateReservationResult) *CreateReservationResponse {
	return &CreateReservationResponse{
		ReservationCode:         result.ReservationCode,
		SupplierReservationCode: result.SupplierReservationCode,
		Status:                  result.Status.String(),
		PaymentStatus:           result.PaymentStatus.String(),
		TotalAmount:             result.TotalAmount.StringFixed(2),
		CurrencyCode:            result.CurrencyCode,
		ReceiptURL:              result.ReceiptURL,
	}
}

// DriverResponse is one driver on a reservation
type DriverResponse struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	IsPrimary bool   `json:"is_primary"`
}

// ContactResponse is one contact on a reservation
type ContactResponse struct {
	ContactType string `json:"contact_type"`
	FullName    string `json:"full_name"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// PricingItemResponse is one priced line on a reservation
type PricingItemResponse struct {
	Description string `json:"description"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	Total       string `json:"total"`
}

// ReservationResponse is the full read model of a reservation
type ReservationResponse struct {
	ReservationCode string `json:"reservation_code"`
	Status          string `json:"status"`
	PaymentStatus   string `json:"payment_status"`

	SupplierName            string `json:"supplier_name"`
	SupplierReservationCode string `json:"supplier_reservation_code,omitempty"`
	SupplierConfirmedAt     string `json:"supplier_confirmed_at,omitempty"`

	PickupOfficeCode  string `json:"pickup_office_code"`
	PickupOfficeName  string `json:"pickup_office_name"`
	DropoffOfficeCode string `json:"dropoff_office_code"`
	DropoffOfficeName string `json:"dropoff_office_name"`
	PickupDatetime    string `json:"pickup_datetime"`
	DropoffDatetime   string `json:"dropoff_datetime"`
	RentalDays        int    `json:"rental_days"`

	CarAcrissCode   string `json:"car_acriss_code,omitempty"`
	CarCategoryName string `json:"car_category_name,omitempty"`

	CurrencyCode     string `json:"currency_code"`
	PublicPriceTotal string `json:"public_price_total"`
	DiscountTotal    string `json:"discount_total"`
	TaxesTotal       string `json:"taxes_total"`
	FeesTotal        string `json:"fees_total"`

	Drivers      []DriverResponse      `json:"drivers,omitempty"`
	Contacts     []ContactResponse     `json:"contacts,omitempty"`
	PricingItems []PricingItemResponse `json:"pricing_items,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// NewReservationResponse maps a reservation aggregate. Supplier cost and
// commission never leave the service.
func NewReservationResponse(r *domain.Reservation) *ReservationResponse {
	resp := &ReservationResponse{
		ReservationCode:         r.ReservationCode,
		Status:                  r.Status.String(),
		PaymentStatus:           r.PaymentStatus.String(),
		SupplierName:            r.SupplierNameSnapshot,
		SupplierReservationCode: r.SupplierReservationCode,
		PickupOfficeCode:        r.PickupOfficeCodeSnapshot,
		PickupOfficeName:        r.PickupOfficeNameSnapshot,
		DropoffOfficeCode:       r.DropoffOfficeCodeSnapshot,
		DropoffOfficeName:       r.DropoffOfficeNameSnapshot,
		PickupDatetime:          formatTime(r.PickupDatetime),
		DropoffDatetime:         formatTime(r.DropoffDatetime),
		RentalDays:              r.RentalDays,
		CarAcrissCode:           r.CarAcrissCodeSnapshot,
		CarCategoryName:         r.CarCategoryNameSnapshot,
		CurrencyCode:            r.CurrencyCode,
		PublicPriceTotal:        r.PublicPriceTotal.StringFixed(2),
		DiscountTotal:           r.DiscountTotal.StringFixed(2),
		TaxesTotal:              r.TaxesTotal.StringFixed(2),
		FeesTotal:               r.FeesTotal.StringFixed(2),
		CreatedAt:               formatTime(r.CreatedAt),
		UpdatedAt:               formatTime(r.UpdatedAt),
	}
	if r.SupplierConfirmedAt != nil {
		resp.SupplierConfirmedAt = formatTime(*r.SupplierConfirmedAt)
	}
	for _, d := range r.Drivers {
		resp.Drivers = append(resp.Drivers, DriverResponse{
			FirstName: d.FirstName,
			LastName:  d.LastName,
			Email:     d.Email,
			Phone:     d.Phone,
			IsPrimary: d.IsPrimary,
		})
	}
	for _, c := range r.Contacts {
		resp.Contacts = append(resp.Contacts, ContactResponse{
			ContactType: c.ContactType,
			FullName:    c.FullName,
			Email:       c.Email,
			Phone:       c.Phone,
		})
	}
	for _, p := range r.PricingItems {
		resp.PricingItems = append(resp.PricingItems, PricingItemResponse{
			Description: p.Description,
			UnitPrice:   p.UnitPrice.StringFixed(2),
			Quantity:    p.Quantity,
			Total:       p.Total.StringFixed(2),
		})
	}
	return resp
}

// ReservationListResponse is the GET /reservations body
type ReservationListResponse struct {
	Reservations []*ReservationResponse `json:"reservations"`
	Limit        int                    `json:"limit"`
	Offset       int                    `json:"offset"`
}

// OfferResponse is one availability offer
type OfferResponse struct {
	CarProductCode   string `json:"car_product_code"`
	AcrissCode       string `json:"acriss_code,omitempty"`
	CategoryName     string `json:"category_name,omitempty"`
	CurrencyCode     string `json:"currency_code"`
	DailyRate        string `json:"daily_rate"`
	TotalCost        string `json:"total_cost"`
	FreeCancellation bool   `json:"free_cancellation"`
}

// AvailabilityResponse is the POST /availability body
type AvailabilityResponse struct {
	Offers []OfferResponse `json:"offers"`
}

// NewAvailabilityResponse maps supplier offers
func NewAvailabilityResponse(offers []gateway.AvailabilityOffer) *AvailabilityResponse {
	resp := &AvailabilityResponse{Offers: make([]OfferResponse, 0, len(offers))}
	for _, o := range offers {
		resp.Offers = append(resp.Offers, OfferResponse{
			CarProductCode:   o.CarProductCode,
			AcrissCode:       o.AcrissCode,
			CategoryName:     o.CategoryName,
			CurrencyCode:     o.CurrencyCode,
			DailyRate:        o.DailyRate.StringFixed(2),
			TotalCost:        o.TotalCost.StringFixed(2),
			FreeCancellation: o.FreeCancellation,
		})
	}
	return resp
}

// SupplierStatusResponse is the GET /reservations/{code}/status body
type SupplierStatusResponse struct {
	ReservationCode         string `json:"reservation_code"`
	SupplierReservationCode string `json:"supplier_reservation_code"`
	SupplierStatus          string `json:"supplier_status"`
	Status                  string `json:"status"`
}

// NewSupplierStatusResponse maps a status probe result
func NewSupplierStatusResponse(result *service.SupplierStatusResult) *SupplierStatusResponse {
	return &SupplierStatusResponse{
		ReservationCode:         result.ReservationCode,
		SupplierReservationCode: result.SupplierReservationCode,
		SupplierStatus:          result.SupplierStatus,
		Status:                  result.Status.String(),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
