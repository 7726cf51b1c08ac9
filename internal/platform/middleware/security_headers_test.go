package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestSecurityHeaders(t *testing.T) {
	tests := []struct {
		name    string
		handler echo.HandlerFunc
		wantErr bool
	}{
		{"success", func(c echo.Context) error { return c.String(http.StatusOK, "ok") }, false},
		{"handler error", func(c echo.Context) error { return echo.NewHTTPError(http.StatusNotFound, "patient not found") }, true},
	}

	want := map[string]string{
		"X-Content-Type-Options":    "nosniff",
		"X-Frame-Options":           "DENY",
		"X-XSS-Protection":          "0",
		"Content-Security-Policy":   "default-src 'none'; frame-ancestors 'none'",
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
		"Referrer-Policy":           "no-referrer",
		"Cache-Control":             "no-store",
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/patients/1", nil), rec)

			err := SecurityHeaders()(tt.handler)(c)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			for header, value := range want {
				if got := rec.Header().Get(header); got != value {
					t.Errorf("header %s: got %q, want %q", header, got, value)
				}
			}
		})
	}
}
