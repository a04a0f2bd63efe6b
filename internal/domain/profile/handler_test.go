package profile

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/auth"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _ := newTestService()
	return NewHandler(svc), echo.New()
}

func newAuthedContext(e *echo.Echo, method, target, body string, ident auth.Identity) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req = req.WithContext(auth.WithIdentity(req.Context(), ident))
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestGetMe_CreatesProfile(t *testing.T) {
	h, e := newTestHandler()
	ident := auth.Identity{Subject: "sub-1", DisplayName: "Sarah Connor", Email: "sarah@example.com"}

	c, rec := newAuthedContext(e, http.MethodGet, "/profiles/me", "", ident)
	if err := h.GetMe(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var p Profile
	json.Unmarshal(rec.Body.Bytes(), &p)
	if p.DisplayName != "Sarah Connor" {
		t.Errorf("unexpected profile %+v", p)
	}
}

func TestSetRoleHandler(t *testing.T) {
	h, e := newTestHandler()
	ident := auth.Identity{Subject: "sub-1", DisplayName: "Sarah"}
	c, _ := newAuthedContext(e, http.MethodGet, "/profiles/me", "", ident)
	h.GetMe(c)

	c, rec := newAuthedContext(e, http.MethodPut, "/profiles/me/role", `{"role":"patient"}`, ident)
	if err := h.SetRole(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c, _ = newAuthedContext(e, http.MethodPut, "/profiles/me/role", `{"role":"caregiver"}`, ident)
	err := h.SetRole(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}
}

func TestCompleteOnboardingHandler_NoRole(t *testing.T) {
	h, e := newTestHandler()
	ident := auth.Identity{Subject: "sub-1", DisplayName: "Sarah"}
	c, _ := newAuthedContext(e, http.MethodGet, "/profiles/me", "", ident)
	h.GetMe(c)

	c, _ = newAuthedContext(e, http.MethodPost, "/profiles/me/onboarding/complete", "", ident)
	err := h.CompleteOnboarding(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
