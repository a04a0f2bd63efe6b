package linking

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/errs"
)

type Handler struct {
	svc          *Service
	shareBaseURL string
}

func NewHandler(svc *Service, shareBaseURL string) *Handler {
	return &Handler{svc: svc, shareBaseURL: shareBaseURL}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/linking/code", h.GenerateCode)
	api.GET("/linking/patients/lookup", h.LookupPatient)
	api.POST("/linking/links", h.LinkTwoWay)
	api.GET("/linking/patients", h.ListLinkedPatients)
	api.GET("/linking/caregivers", h.ListLinkedCaregivers)
	api.DELETE("/linking/links/:party_id", h.RevokeLink)

	api.POST("/linking/allowed-caregivers", h.AddAllowedCaregiver)
	api.GET("/linking/allowed-caregivers", h.ListAllowedCaregivers)
	api.DELETE("/linking/allowed-caregivers/:id", h.RemoveAllowedCaregiver)
}

func httpError(err error) error { return errs.HTTP(err) }

func (h *Handler) GenerateCode(c echo.Context) error {
	id := auth.IdentityFromContext(c.Request().Context())
	code, err := h.svc.GenerateCaregiverCode(c.Request().Context(), id.Subject)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"code":      code,
		"share_url": ShareURL(h.shareBaseURL, code),
	})
}

func (h *Handler) LookupPatient(c echo.Context) error {
	summary, err := h.svc.FindPatientByInviteCode(c.Request().Context(), c.QueryParam("code"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, summary)
}

type linkRequest struct {
	InviteCode string `json:"invite_code"`
}

func (h *Handler) LinkTwoWay(c echo.Context) error {
	var req linkRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id := auth.IdentityFromContext(c.Request().Context())
	link, err := h.svc.LinkPatientToCaregiverTwoWay(c.Request().Context(), id.Subject, req.InviteCode)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, link)
}

func (h *Handler) ListLinkedPatients(c echo.Context) error {
	id := auth.IdentityFromContext(c.Request().Context())
	patients, err := h.svc.GetLinkedPatients(c.Request().Context(), id.Subject)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, patients)
}

func (h *Handler) ListLinkedCaregivers(c echo.Context) error {
	id := auth.IdentityFromContext(c.Request().Context())
	caregivers, err := h.svc.GetLinkedCaregivers(c.Request().Context(), id.Subject)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, caregivers)
}

func (h *Handler) RevokeLink(c echo.Context) error {
	partyID, err := uuid.Parse(c.Param("party_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid party id")
	}
	id := auth.IdentityFromContext(c.Request().Context())
	if err := h.svc.RevokeLink(c.Request().Context(), id.Subject, partyID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type allowRequest struct {
	CaregiverCode string `json:"caregiver_code"`
	Nickname      string `json:"nickname"`
}

func (h *Handler) AddAllowedCaregiver(c echo.Context) error {
	var req allowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id := auth.IdentityFromContext(c.Request().Context())
	entry, err := h.svc.AddAllowedCaregiver(c.Request().Context(), id.Subject, req.CaregiverCode, req.Nickname)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, entry)
}

func (h *Handler) ListAllowedCaregivers(c echo.Context) error {
	id := auth.IdentityFromContext(c.Request().Context())
	entries, err := h.svc.ListAllowedCaregivers(c.Request().Context(), id.Subject)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) RemoveAllowedCaregiver(c echo.Context) error {
	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid entry id")
	}
	id := auth.IdentityFromContext(c.Request().Context())
	if err := h.svc.RemoveAllowedCaregiver(c.Request().Context(), id.Subject, entryID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
