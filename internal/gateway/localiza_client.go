package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// tokenExpirySkew is subtracted from the advertised token lifetime so a token
// is refreshed before it can expire mid-request.
const tokenExpirySkew = 30 * time.Second

// LocalizaConfig holds LOCALIZA API credentials and endpoints
type LocalizaConfig struct {
	BaseURL      string
	AuthURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// LocalizaGateway implements SupplierGateway against the LOCALIZA partner API
type LocalizaGateway struct {
	client *baseSupplierClient
	config *LocalizaConfig

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewLocalizaGateway creates a new LOCALIZA gateway
func NewLocalizaGateway(config *LocalizaConfig) (*LocalizaGateway, error) {
	if config == nil {
		return nil, fmt.Errorf("localiza config is required")
	}
	if config.ClientID == "" || config.ClientSecret == "" {
		return nil, fmt.Errorf("localiza client credentials are required")
	}
	return &LocalizaGateway{
		client: newBaseSupplierClient("LOCALIZA", config.BaseURL, config.Timeout),
		config: config,
	}, nil
}

// Name returns the supplier name
func (g *LocalizaGateway) Name() string {
	return "LOCALIZA"
}

type localizaTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// accessToken returns a cached OAuth2 token, fetching a fresh one via the
// client-credentials grant when the cache is empty or near expiry.
func (g *LocalizaGateway) accessToken(ctx context.Context) (string, error) {
	g.tokenMu.Lock()
	defer g.tokenMu.Unlock()

	if g.token != "" && time.Now().Before(g.tokenExpiry) {
		return g.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", g.config.ClientID)
	form.Set("client_secret", g.config.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch LOCALIZA token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &SupplierAPIError{Supplier: "LOCALIZA", StatusCode: resp.StatusCode, Body: body}
	}

	var token localizaTokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("LOCALIZA token response carried no access token")
	}

	g.token = token.AccessToken
	g.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn)*time.Second - tokenExpirySkew)
	return g.token, nil
}

func (g *LocalizaGateway) authHeaders(ctx context.Context, idempotencyKey string) (map[string]string, error) {
	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	headers := map[string]string{"Authorization": "Bearer " + token}
	if idempotencyKey != "" {
		headers["X-Idempotency-Key"] = idempotencyKey
	}
	return headers, nil
}

type localizaBookingRequest struct {
	PartnerReference string `json:"partner_reference"`
	PickupAgency     string `json:"pickup_agency"`
	ReturnAgency     string `json:"return_agency"`
	PickupDate       string `json:"pickup_date"`
	ReturnDate       string `json:"return_date"`
	VehicleGroup     string `json:"vehicle_group"`
	Driver           struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
	} `json:"driver"`
}

type localizaBookingResponse struct {
	ReservationNumber string `json:"reservation_number"`
	Status            string `json:"status"`
	ConfirmedAt       string `json:"confirmed_at"`
}

// CreateReservation books a car with LOCALIZA
func (g *LocalizaGateway) CreateReservation(ctx context.Context, req *SupplierBookingRequest) (*SupplierBookingResult, error) {
	headers, err := g.authHeaders(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	payload := localizaBookingRequest{
		PartnerReference: req.ReservationCode,
		PickupAgency:     req.PickupOfficeCode,
		ReturnAgency:     req.DropoffOfficeCode,
		PickupDate:       req.PickupDatetime.UTC().Format(time.RFC3339),
		ReturnDate:       req.DropoffDatetime.UTC().Format(time.RFC3339),
		VehicleGroup:     req.CarProductCode,
	}
	payload.Driver.FirstName = req.DriverFirstName
	payload.Driver.LastName = req.DriverLastName
	payload.Driver.Email = req.DriverEmail
	payload.Driver.Phone = req.DriverPhone

	var resp localizaBookingResponse
	raw, err := g.client.doJSON(ctx, http.MethodPost, "/v1/reservations", headers, payload, &resp)
	if err != nil {
		return nil, err
	}
	if resp.ReservationNumber == "" {
		return nil, fmt.Errorf("LOCALIZA accepted the booking but returned no reservation number")
	}

	confirmedAt := time.Now().UTC()
	if resp.ConfirmedAt != "" {
		if t, err := time.Parse(time.RFC3339, resp.ConfirmedAt); err == nil {
			confirmedAt = t.UTC()
		}
	}

	return &SupplierBookingResult{
		SupplierReservationCode: resp.ReservationNumber,
		ConfirmedAt:             confirmedAt,
		RawResponse:             raw,
	}, nil
}

// ConfirmReservation is a no-op for LOCALIZA, bookings are confirmed at
// create time
func (g *LocalizaGateway) ConfirmReservation(ctx context.Context, supplierReservationCode string) (*SupplierReservationStatus, error) {
	return &SupplierReservationStatus{
		SupplierReservationCode: supplierReservationCode,
		Status:                  "CONFIRMED",
	}, nil
}

type localizaAvailabilityResponse struct {
	Offers []struct {
		VehicleGroup string `json:"vehicle_group"`
		Acriss       string `json:"acriss"`
		GroupName    string `json:"group_name"`
		Currency     string `json:"currency"`
		DailyRate    string `json:"daily_rate"`
		TotalRate    string `json:"total_rate"`
		FreeCancel   bool   `json:"free_cancellation"`
	} `json:"offers"`
}

// CheckAvailability quotes bookable vehicle groups for a window
func (g *LocalizaGateway) CheckAvailability(ctx context.Context, query *AvailabilityQuery) ([]AvailabilityOffer, error) {
	headers, err := g.authHeaders(ctx, "")
	if err != nil {
		return nil, err
	}

	payload := map[string]string{
		"pickup_agency": query.PickupOfficeCode,
		"return_agency": query.DropoffOfficeCode,
		"pickup_date":   query.PickupDatetime.UTC().Format(time.RFC3339),
		"return_date":   query.DropoffDatetime.UTC().Format(time.RFC3339),
	}

	var resp localizaAvailabilityResponse
	if _, err := g.client.doJSON(ctx, http.MethodPost, "/v1/availability", headers, payload, &resp); err != nil {
		return nil, err
	}

	offers := make([]AvailabilityOffer, 0, len(resp.Offers))
	for _, o := range resp.Offers {
		offer := AvailabilityOffer{
			CarProductCode:   o.VehicleGroup,
			AcrissCode:       o.Acriss,
			CategoryName:     o.GroupName,
			CurrencyCode:     o.Currency,
			FreeCancellation: o.FreeCancel,
		}
		if offer.DailyRate, err = parseDecimal(o.DailyRate); err != nil {
			return nil, fmt.Errorf("LOCALIZA offer %s has a bad daily rate: %w", o.VehicleGroup, err)
		}
		if offer.TotalCost, err = parseDecimal(o.TotalRate); err != nil {
			return nil, fmt.Errorf("LOCALIZA offer %s has a bad total rate: %w", o.VehicleGroup, err)
		}
		offers = append(offers, offer)
	}
	return offers, nil
}

type localizaStatusResponse struct {
	ReservationNumber string `json:"reservation_number"`
	Status            string `json:"status"`
}

// GetReservationStatus fetches LOCALIZA's view of one of our bookings
func (g *LocalizaGateway) GetReservationStatus(ctx context.Context, supplierReservationCode string) (*SupplierReservationStatus, error) {
	headers, err := g.authHeaders(ctx, "")
	if err != nil {
		return nil, err
	}

	var resp localizaStatusResponse
	raw, err := g.client.doJSON(ctx, http.MethodGet, "/v1/reservations/"+url.PathEscape(supplierReservationCode), headers, nil, &resp)
	if err != nil {
		return nil, err
	}

	return &SupplierReservationStatus{
		SupplierReservationCode: resp.ReservationNumber,
		Status:                  resp.Status,
		RawResponse:             raw,
	}, nil
}

// Close releases the underlying HTTP client and forgets the cached token
func (g *LocalizaGateway) Close() error {
	g.tokenMu.Lock()
	g.token = ""
	g.tokenExpiry = time.Time{}
	g.tokenMu.Unlock()
	return g.client.Close()
}

// Ensure LocalizaGateway implements SupplierGateway
var _ SupplierGateway = (*LocalizaGateway)(nil)
