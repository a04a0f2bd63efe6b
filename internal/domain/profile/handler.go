package profile

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/errs"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/profiles/me", h.GetMe)
	api.PUT("/profiles/me", h.UpdateMe)
	api.PUT("/profiles/me/role", h.SetRole)
	api.POST("/profiles/me/onboarding/complete", h.CompleteOnboarding)
}

// GetMe ensures a profile exists for the caller and returns it. This is the
// first call a freshly signed-in client makes.
func (h *Handler) GetMe(c echo.Context) error {
	id := auth.IdentityFromContext(c.Request().Context())
	p, err := h.svc.EnsureProfile(c.Request().Context(), id)
	if err != nil {
		return errs.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateMe(c echo.Context) error {
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id := auth.IdentityFromContext(c.Request().Context())
	p, err := h.svc.UpdateProfile(c.Request().Context(), id.Subject, in)
	if err != nil {
		return errs.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

type roleRequest struct {
	Role string `json:"role"`
}

func (h *Handler) SetRole(c echo.Context) error {
	var req roleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id := auth.IdentityFromContext(c.Request().Context())
	p, err := h.svc.SetRole(c.Request().Context(), id.Subject, req.Role)
	if err != nil {
		return errs.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) CompleteOnboarding(c echo.Context) error {
	id := auth.IdentityFromContext(c.Request().Context())
	p, err := h.svc.CompleteOnboarding(c.Request().Context(), id.Subject)
	if err != nil {
		return errs.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}
