package records

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
	svc, _, _, _ := newTestService()
	return NewHandler(svc), echo.New()
}

func newAuthedContext(e *echo.Echo, method, target, body, subject string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{Subject: subject}))
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestCreateAndListMedications(t *testing.T) {
	h, e := newTestHandler()

	c, rec := newAuthedContext(e, http.MethodPost, "/records/medications",
		`{"name":"Metformin","dosage":"500mg","frequency":"twice daily"}`, "sarah")
	if err := h.CreateMedication(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	c, rec = newAuthedContext(e, http.MethodGet, "/records/medications", "", "sarah")
	if err := h.ListMedications(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Data  []Medication `json:"data"`
		Total int          `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 || len(resp.Data) != 1 {
		t.Errorf("expected one medication, got %+v", resp)
	}
}

func TestListMedications_CaregiverWithoutLink(t *testing.T) {
	h, e := newTestHandler()

	c, _ := newAuthedContext(e, http.MethodGet, "/records/medications?patient_id="+uuidString(), "", "tom")
	err := h.ListMedications(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}

func TestListMedications_BadPatientID(t *testing.T) {
	h, e := newTestHandler()
	c, _ := newAuthedContext(e, http.MethodGet, "/records/medications?patient_id=nope", "", "tom")
	err := h.ListMedications(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func uuidString() string {
	return "5bb18ab1-4876-4bd5-b5f0-ffbab0ad72d5"
}
