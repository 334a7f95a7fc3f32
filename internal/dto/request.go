package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rbravo-MCR/car-rental-reservations/internal/domain"
	"github.com/rbravo-MCR/car-rental-reservations/internal/service"
)

// DriverRequest is one driver on a booking request
type DriverRequest struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Email     string `json:"email" binding:"omitempty,email"`
	Phone     string `json:"phone"`
	IsPrimary bool   `json:"is_primary"`
}

// ContactRequest is one contact on a booking request
type ContactRequest struct {
	ContactType string `json:"contact_type" binding:"required"`
	FullName    string `json:"full_name" binding:"required"`
	Email       string `json:"email" binding:"omitempty,email"`
	Phone       string `json:"phone"`
}

// PricingItemRequest is one priced line on a booking request
type PricingItemRequest struct {
	Description string `json:"description" binding:"required"`
	UnitPrice   string `json:"unit_price" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required,min=1"`
}

// CreateReservationRequest is the POST /reservations payload. Money travels
// as fixed-point strings; floats never touch amounts.
type CreateReservationRequest struct {
	SupplierID      int64     `json:"supplier_id" binding:"required"`
	PickupOfficeID  int64     `json:"pickup_office_id" binding:"required"`
	DropoffOfficeID int64     `json:"dropoff_office_id" binding:"required"`
	PickupDatetime  time.Time `json:"pickup_datetime" binding:"required"`
	DropoffDatetime time.Time `json:"dropoff_datetime" binding:"required"`

	CarCategoryID        int64  `json:"car_category_id"`
	SupplierCarProductID int64  `json:"supplier_car_product_id"`
	CarProductCode       string `json:"car_product_code" binding:"required"`
	AcrissCode           string `json:"acriss_code"`
	CarCategoryName      string `json:"car_category_name"`

	CustomerID     int64 `json:"customer_id" binding:"required"`
	SalesChannelID int64 `json:"sales_channel_id"`

	CurrencyCode      string `json:"currency_code" binding:"required,len=3"`
	PublicPriceTotal  string `json:"public_price_total" binding:"required"`
	SupplierCostTotal string `json:"supplier_cost_total"`
	DiscountTotal     string `json:"discount_total"`
	TaxesTotal        string `json:"taxes_total"`
	FeesTotal         string `json:"fees_total"`

	PaymentMethodID string `json:"payment_method_id" binding:"required"`

	Drivers      []DriverRequest      `json:"drivers" binding:"required,min=1,dive"`
	Contacts     []ContactRequest     `json:"contacts" binding:"required,min=1,dive"`
	PricingItems []PricingItemRequest `json:"pricing_items" binding:"omitempty,dive"`

	UTMSource   string `json:"utm_source"`
	UTMMedium   string `json:"utm_medium"`
	UTMCampaign string `json:"utm_campaign"`
}

// ToCommand converts the request into a service command, parsing money fields
func (r *CreateReservationRequest) ToCommand() (*service.CreateReservationCommand, error) {
	publicTotal, err := parseMoney("public_price_total", r.PublicPriceTotal, true)
	if err != nil {
		return nil, err
	}
	supplierCost, err := parseMoney("supplier_cost_total", r.SupplierCostTotal, false)
	if err != nil {
		return nil, err
	}
	discount, err := parseMoney("discount_total", r.DiscountTotal, false)
	if err != nil {
		return nil, err
	}
	taxes, err := parseMoney("taxes_total", r.TaxesTotal, false)
	if err != nil {
		return nil, err
	}
	fees, err := parseMoney("fees_total", r.FeesTotal, false)
	if err != nil {
		return nil, err
	}

	cmd := &service.CreateReservationCommand{
		SupplierID:           r.SupplierID,
		PickupOfficeID:       r.PickupOfficeID,
		DropoffOfficeID:      r.DropoffOfficeID,
		PickupDatetime:       r.PickupDatetime.UTC(),
		DropoffDatetime:      r.DropoffDatetime.UTC(),
		CarCategoryID:        r.CarCategoryID,
		SupplierCarProductID: r.SupplierCarProductID,
		CarProductCode:       r.CarProductCode,
		AcrissCode:           r.AcrissCode,
		CarCategoryName:      r.CarCategoryName,
		CustomerID:           r.CustomerID,
		SalesChannelID:       r.SalesChannelID,
		CurrencyCode:         r.CurrencyCode,
		PublicPriceTotal:     publicTotal,
		SupplierCostTotal:    supplierCost,
		DiscountTotal:        discount,
		TaxesTotal:           taxes,
		FeesTotal:            fees,
		PaymentMethodID:      r.PaymentMethodID,
		UTMSource:            r.UTMSource,
		UTMMedium:            r.UTMMedium,
		UTMCampaign:          r.UTMCampaign,
	}
	for _, d := range r.Drivers {
		cmd.Drivers = append(cmd.Drivers, service.DriverInput{
			FirstName: d.FirstName,
			LastName:  d.LastName,
			Email:     d.Email,
			Phone:     d.Phone,
			IsPrimary: d.IsPrimary,
		})
	}
	for _, c := range r.Contacts {
		cmd.Contacts = append(cmd.Contacts, service.ContactInput{
			ContactType: c.ContactType,
			FullName:    c.FullName,
			Email:       c.Email,
			Phone:       c.Phone,
		})
	}
	for _, p := range r.PricingItems {
		unit, err := parseMoney("pricing_items.unit_price", p.UnitPrice, true)
		if err != nil {
			return nil, err
		}
		cmd.PricingItems = append(cmd.PricingItems, service.PricingItemInput{
			Description: p.Description,
			UnitPrice:   unit,
			Quantity:    p.Quantity,
		})
	}
	return cmd, nil
}

func parseMoney(field, value string, required bool) (decimal.Decimal, error) {
	if value == "" {
		if required {
			return decimal.Zero, &domain.ValidationError{Field: field, Message: "amount is required"}
		}
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, &domain.ValidationError{Field: field, Message: "amount must be a decimal string"}
	}
	if amount.IsNegative() {
		return decimal.Zero, &domain.ValidationError{Field: field, Message: "amount must not be negative"}
	}
	return amount, nil
}

// AvailabilityRequest is the POST /availability payload
type AvailabilityRequest struct {
	SupplierID      int64     `json:"supplier_id" binding:"required"`
	CarCategoryID   int64     `json:"car_category_id"`
	PickupOfficeID  int64     `json:"pickup_office_id" binding:"required"`
	DropoffOfficeID int64     `json:"dropoff_office_id" binding:"required"`
	PickupDatetime  time.Time `json:"pickup_datetime" binding:"required"`
	DropoffDatetime time.Time `json:"dropoff_datetime" binding:"required"`
}

// ToSearch converts the request into a service search
func (r *AvailabilityRequest) ToSearch() *service.AvailabilitySearch {
	return &service.AvailabilitySearch{
		SupplierID:      r.SupplierID,
		CarCategoryID:   r.CarCategoryID,
		PickupOfficeID:  r.PickupOfficeID,
		DropoffOfficeID: r.DropoffOfficeID,
		PickupDatetime:  r.PickupDatetime.UTC(),
		DropoffDatetime: r.DropoffDatetime.UTC(),
	}
}
