package records

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/errs"
	"github.com/carelink/carelink/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/records/medications", h.CreateMedication)
	api.GET("/records/medications", h.ListMedications)
	api.PUT("/records/medications/:id", h.UpdateMedication)
	api.DELETE("/records/medications/:id", h.DeleteMedication)

	api.POST("/records/doctors", h.CreateDoctor)
	api.GET("/records/doctors", h.ListDoctors)
	api.PUT("/records/doctors/:id", h.UpdateDoctor)
	api.DELETE("/records/doctors/:id", h.DeleteDoctor)

	api.POST("/records/emergency-contacts", h.CreateEmergencyContact)
	api.GET("/records/emergency-contacts", h.ListEmergencyContacts)
	api.PUT("/records/emergency-contacts/:id", h.UpdateEmergencyContact)
	api.DELETE("/records/emergency-contacts/:id", h.DeleteEmergencyContact)
}

func subject(c echo.Context) string {
	return auth.IdentityFromContext(c.Request().Context()).Subject
}

// patientScope reads the optional patient_id query parameter caregivers use
// to pick which linked patient to view.
func patientScope(c echo.Context) (uuid.UUID, error) {
	raw := c.QueryParam("patient_id")
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	return id, nil
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// -- Medications --

func (h *Handler) CreateMedication(c echo.Context) error {
	var in MedicationInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m, err := h.svc.CreateMedication(c.Request().Context(), subject(c), in)
	if err != nil {
		return errs.HTTP(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) ListMedications(c echo.Context) error {
	patientID, err := patientScope(c)
	if err != nil {
		return err
	}
	page := pagination.FromContext(c)
	items, total, err := h.svc.ListMedications(c.Request().Context(), subject(c), patientID, page)
	if err != nil {
		return errs.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, page.Limit, page.Offset))
}

func (h *Handler) UpdateMedication(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var in MedicationInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m, err := h.svc.UpdateMedication(c.Request().Context(), subject(c), id, in)
	if err != nil {
		return errs.HTTP(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) DeleteMedication(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteMedication(c.Request().Context(), subject(c), id); err != nil {
		return errs.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Doctors --

func (h *Handler) CreateDoctor(c echo.Context) error {
	var in DoctorInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.CreateDoctor(c.Request().Context(), subject(c), in)
	if err != nil {
		return errs.HTTP(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	patientID, err := patientScope(c)
	if err != nil {
		return err
	}
	page := pagination.FromContext(c)
	items, total, err := h.svc.ListDoctors(c.Request().Context(), subject(c), patientID, page)
	if err != nil {
		return errs.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, page.Limit, page.Offset))
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var in DoctorInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.UpdateDoctor(c.Request().Context(), subject(c), id, in)
	if err != nil {
		return errs.HTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDoctor(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteDoctor(c.Request().Context(), subject(c), id); err != nil {
		return errs.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Emergency contacts --

func (h *Handler) CreateEmergencyContact(c echo.Context) error {
	var in EmergencyContactInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := h.svc.CreateEmergencyContact(c.Request().Context(), subject(c), in)
	if err != nil {
		return errs.HTTP(err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) ListEmergencyContacts(c echo.Context) error {
	patientID, err := patientScope(c)
	if err != nil {
		return err
	}
	page := pagination.FromContext(c)
	items, total, err := h.svc.ListEmergencyContacts(c.Request().Context(), subject(c), patientID, page)
	if err != nil {
		return errs.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, page.Limit, page.Offset))
}

func (h *Handler) UpdateEmergencyContact(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var in EmergencyContactInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := h.svc.UpdateEmergencyContact(c.Request().Context(), subject(c), id, in)
	if err != nil {
		return errs.HTTP(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) DeleteEmergencyContact(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteEmergencyContact(c.Request().Context(), subject(c), id); err != nil {
		return errs.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
