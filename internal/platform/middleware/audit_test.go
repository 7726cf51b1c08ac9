package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func serveAudited(t *testing.T, log *AuditLog, method, path string, handler echo.HandlerFunc, headers map[string]string) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	c := e.NewContext(req, httptest.NewRecorder())
	c.Set("request_id", "req-123")
	return Audit(zerolog.Nop(), log)(handler)(c)
}

func ok(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func TestAudit_RecordsPatientAccess(t *testing.T) {
	log := NewAuditLog(10)
	err := serveAudited(t, log, http.MethodGet, "/api/v1/patients/1/reconciliation", ok, map[string]string{ActorHeader: "dr.mehta"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := log.Recent(10, "")
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	got := entries[0]
	if got.PatientID != "1" || got.Resource != "reconciliation" || got.Action != "read" {
		t.Errorf("unexpected entry: %+v", got)
	}
	if got.Actor != "dr.mehta" || got.RequestID != "req-123" || got.StatusCode != http.StatusOK {
		t.Errorf("unexpected entry: %+v", got)
	}
	if got.ID == "" || got.Timestamp.IsZero() {
		t.Errorf("expected id and timestamp, got %+v", got)
	}
}

func TestAudit_RecordsErrorStatus(t *testing.T) {
	log := NewAuditLog(10)
	handler := func(c echo.Context) error { return echo.NewHTTPError(http.StatusNotFound, "patient not found") }

	err := serveAudited(t, log, http.MethodGet, "/api/v1/patients/99", handler, nil)
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected handler error to pass through, got %v", err)
	}
	got := log.Recent(1, "")[0]
	if got.StatusCode != http.StatusNotFound || got.Actor != "anonymous" || got.Resource != "patient" {
		t.Errorf("unexpected entry: %+v", got)
	}
}

func TestAudit_SkipsNonAPIAndAuditLog(t *testing.T) {
	log := NewAuditLog(10)
	serveAudited(t, log, http.MethodGet, "/health", ok, nil)
	serveAudited(t, log, http.MethodGet, "/api/v1/audit-log", ok, nil)
	if n := len(log.Recent(10, "")); n != 0 {
		t.Errorf("expected no entries, got %d", n)
	}
}

func TestAudit_RecorderErrorDoesNotFailRequest(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil), httptest.NewRecorder())
	failing := AuditRecorderFunc(func(AuditEntry) error { return errors.New("disk full") })

	if err := Audit(zerolog.Nop(), failing)(ok)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestActionFor(t *testing.T) {
	tests := []struct {
		method, path, want string
	}{
		{http.MethodGet, "/api/v1/patients/1", "read"},
		{http.MethodPost, "/api/v1/patients/1/adherence/adh1", "update"},
		{http.MethodPost, "/api/v1/patients/1/triage", "generate"},
		{http.MethodDelete, "/api/v1/patients/1", "delete"},
	}
	for _, tt := range tests {
		if got := actionFor(tt.method, tt.path); got != tt.want {
			t.Errorf("actionFor(%s %s) = %s, want %s", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestResourceFor(t *testing.T) {
	tests := map[string]string{
		"/api/v1/patients":                  "patients",
		"/api/v1/patients/1":                "patient",
		"/api/v1/patients/1/":               "patient",
		"/api/v1/patients/1/adherence/adh1": "adherence",
		"/api/v1/medications/explain":       "medications",
		"/api/v1/":                          "unknown",
	}
	for path, want := range tests {
		if got := resourceFor(path); got != want {
			t.Errorf("resourceFor(%s) = %s, want %s", path, got, want)
		}
	}
}

func TestAuditLog_RingKeepsNewest(t *testing.T) {
	log := NewAuditLog(3)
	for i := 1; i <= 5; i++ {
		log.RecordAccess(AuditEntry{ID: fmt.Sprint(i), PatientID: fmt.Sprint(i % 2)})
	}

	entries := log.Recent(10, "")
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, want := range []string{"5", "4", "3"} {
		if entries[i].ID != want {
			t.Errorf("entry %d: expected %s, got %s", i, want, entries[i].ID)
		}
	}

	odd := log.Recent(10, "1")
	if len(odd) != 2 || odd[0].ID != "5" || odd[1].ID != "3" {
		t.Errorf("unexpected filtered entries: %+v", odd)
	}

	if got := log.Recent(1, ""); len(got) != 1 || got[0].ID != "5" {
		t.Errorf("expected only the newest entry, got %+v", got)
	}
}

func TestAuditLog_Handler(t *testing.T) {
	log := NewAuditLog(5)
	log.RecordAccess(AuditEntry{ID: "a", PatientID: "1"})
	log.RecordAccess(AuditEntry{ID: "b", PatientID: "2"})

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/audit-log?patient_id=2", nil), rec)
	if err := log.Handler()(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Entries []AuditEntry `json:"entries"`
		Total   int          `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Total != 1 || body.Entries[0].ID != "b" {
		t.Errorf("unexpected body: %+v", body)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/audit-log?limit=-1", nil), httptest.NewRecorder())
	var he *echo.HTTPError
	if err := log.Handler()(c); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad limit, got %v", err)
	}
}
