package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rbravo-MCR/car-rental-reservations/internal/dto"
	"github.com/rbravo-MCR/car-rental-reservations/internal/service"
)

// AvailabilityHandler handles the availability search endpoint
type AvailabilityHandler struct {
	availability service.AvailabilityService
}

// NewAvailabilityHandler creates a new AvailabilityHandler
func NewAvailabilityHandler(availability service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability}
}

// Search handles POST /availability
func (h *AvailabilityHandler) Search(c *gin.Context) {
	var req dto.AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	offers, err := h.availability.Search(c.Request.Context(), req.ToSearch())
	if err != nil {
		respondError(c, err)
		return
	}
	if len(offers) == 0 {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:   "no_vehicles_available",
			Code:    codeNoVehiclesAvailable,
			Message: "no vehicles available for the requested dates and offices",
		})
		return
	}
	c.JSON(http.StatusOK, dto.NewAvailabilityResponse(offers))
}
