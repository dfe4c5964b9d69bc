package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"medreminder/internal/application/dto"
	"medreminder/internal/application/service"
	"medreminder/internal/interfaces/api/middleware"
	appErrors "medreminder/internal/pkg/errors"
	"medreminder/internal/pkg/logger"

	"github.com/labstack/echo/v4"
)

// MedicationHandler serves the /medications endpoints.
type MedicationHandler struct {
	medicationService service.MedicationService
	log               logger.Logger
}

// NewMedicationHandler creates a new MedicationHandler.
func NewMedicationHandler(medicationService service.MedicationService, log logger.Logger) *MedicationHandler {
	return &MedicationHandler{
		medicationService: medicationService,
		log:               log,
	}
}

// Create handles POST /medications.
func (h *MedicationHandler) Create(c echo.Context) error {
	var req dto.CreateMedicationRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, fmt.Errorf("%w: malformed request body", appErrors.ErrValidation))
	}

	resp, err := h.medicationService.AddMedication(c.Request().Context(), middleware.UserID(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// Update handles PUT /medications/:id.
func (h *MedicationHandler) Update(c echo.Context) error {
	id, err := medicationID(c)
	if err != nil {
		return respondError(c, err)
	}
	var req dto.UpdateMedicationRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, fmt.Errorf("%w: malformed request body", appErrors.ErrValidation))
	}

	resp, err := h.medicationService.UpdateMedication(c.Request().Context(), middleware.UserID(c), id, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Get handles GET /medications/:id.
func (h *MedicationHandler) Get(c echo.Context) error {
	id, err := medicationID(c)
	if err != nil {
		return respondError(c, err)
	}

	resp, err := h.medicationService.GetMedication(c.Request().Context(), middleware.UserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// List handles GET /medications.
func (h *MedicationHandler) List(c echo.Context) error {
	list, err := h.medicationService.ListMedications(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// Delete handles DELETE /medications/:id.
func (h *MedicationHandler) Delete(c echo.Context) error {
	id, err := medicationID(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := h.medicationService.DeleteMedication(c.Request().Context(), middleware.UserID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Medication deleted successfully"})
}

func medicationID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid medication id %q", appErrors.ErrValidation, c.Param("id"))
	}
	return uint(id), nil
}
